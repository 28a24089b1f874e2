package trip

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/trip-ledger/internal/ledger"
	"github.com/zombor/trip-ledger/internal/money"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveTrip", func() {
		var (
			trip *Trip
			err  error
		)

		BeforeEach(func() {
			trip = &Trip{
				ID:       "trip-1",
				Name:     "Lisbon",
				Currency: "EUR",
				Members: []Member{
					{ID: "a", Name: "Ana", Active: true},
					{ID: "b", Name: "Bruno", Active: true},
				},
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveTrip(trip)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the trip with its roster", func() {
				saved, getErr := db.GetTrip("trip-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Name).To(Equal("Lisbon"))
				Expect(saved.Members).To(HaveLen(2))
				Expect(saved.Members[1].Name).To(Equal("Bruno"))
			})
		})
	})

	Describe("GetTrip", func() {
		var err error

		JustBeforeEach(func() {
			_, err = db.GetTrip("nonexistent")
		})

		When("trip does not exist", func() {
			It("returns ErrNotFound", func() {
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListTrips", func() {
		var (
			trips []*Trip
			err   error
		)

		JustBeforeEach(func() {
			trips, err = db.ListTrips()
		})

		When("trips exist", func() {
			BeforeEach(func() {
				Expect(db.SaveTrip(&Trip{ID: "trip-1", Name: "One"})).To(Succeed())
				Expect(db.SaveTrip(&Trip{ID: "trip-2", Name: "Two"})).To(Succeed())
			})

			It("should return all trips", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(trips).To(HaveLen(2))
			})
		})

		When("no trips exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(trips).To(BeEmpty())
			})
		})
	})

	Describe("events", func() {
		var event *ledger.CostEvent

		BeforeEach(func() {
			event = &ledger.CostEvent{
				ID:           "event-1",
				Title:        "Dinner",
				Kind:         ledger.KindExpense,
				Visibility:   ledger.VisibilityPublic,
				CreatorID:    "a",
				Payer:        "a",
				Amount:       money.MustParse("100.00"),
				Participants: []string{"a", "b", "c"},
				Shares: ledger.Shares{
					"a": money.MustParse("50.00"),
					"b": money.MustParse("30.00"),
					"c": money.MustParse("20.00"),
				},
				Timestamp: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC),
			}
		})

		Describe("SaveEvent", func() {
			var err error

			JustBeforeEach(func() {
				err = db.SaveEvent("trip-1", event)
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should keep exact amounts and shares", func() {
				saved, getErr := db.GetEvent("trip-1", "event-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Amount.Equal(money.MustParse("100"))).To(BeTrue())
				Expect(saved.Shares["b"].String()).To(Equal("30"))
				Expect(saved.Participants).To(Equal([]string{"a", "b", "c"}))
			})

			It("should keep events of different trips apart", func() {
				_, getErr := db.GetEvent("trip-2", "event-1")
				Expect(getErr).To(MatchError(ErrNotFound))
			})
		})

		Describe("GetEvent", func() {
			When("the trip has no events", func() {
				It("returns ErrNotFound", func() {
					_, err := db.GetEvent("trip-1", "event-1")
					Expect(err).To(MatchError(ErrNotFound))
				})
			})

			When("the event does not exist", func() {
				BeforeEach(func() {
					Expect(db.SaveEvent("trip-1", event)).To(Succeed())
				})

				It("returns ErrNotFound", func() {
					_, err := db.GetEvent("trip-1", "nonexistent")
					Expect(err).To(MatchError(ErrNotFound))
				})
			})
		})

		Describe("ListEvents", func() {
			var (
				events []*ledger.CostEvent
				err    error
			)

			JustBeforeEach(func() {
				events, err = db.ListEvents("trip-1")
			})

			When("events exist", func() {
				BeforeEach(func() {
					second := *event
					second.ID = "event-2"
					Expect(db.SaveEvent("trip-1", event)).To(Succeed())
					Expect(db.SaveEvent("trip-1", &second)).To(Succeed())
					Expect(db.SaveEvent("trip-2", event)).To(Succeed())
				})

				It("should return only the trip's events", func() {
					Expect(err).NotTo(HaveOccurred())
					Expect(events).To(HaveLen(2))
				})
			})

			When("the trip has no events", func() {
				It("should return an empty list", func() {
					Expect(err).NotTo(HaveOccurred())
					Expect(events).To(BeEmpty())
				})
			})
		})

		Describe("DeleteEvent", func() {
			var err error

			JustBeforeEach(func() {
				err = db.DeleteEvent("trip-1", "event-1")
			})

			When("event exists", func() {
				BeforeEach(func() {
					Expect(db.SaveEvent("trip-1", event)).To(Succeed())
				})

				It("should remove the event", func() {
					Expect(err).NotTo(HaveOccurred())
					_, getErr := db.GetEvent("trip-1", "event-1")
					Expect(getErr).To(MatchError(ErrNotFound))
				})
			})

			When("event does not exist", func() {
				It("should not return an error", func() {
					Expect(err).NotTo(HaveOccurred())
				})
			})
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			err := db.Close()
			Expect(err).NotTo(HaveOccurred())
			db = nil
		})
	})
})
