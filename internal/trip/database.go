package trip

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/trip-ledger/internal/ledger"
)

const (
	tripBucketName  = "trips"
	eventBucketName = "events" // holds one nested bucket per trip
)

// ErrNotFound is returned when a trip or event does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for trip and event persistence
type DB interface {
	// SaveTrip saves a trip with its roster
	SaveTrip(trip *Trip) error

	// GetTrip retrieves a trip by ID
	GetTrip(id string) (*Trip, error)

	// ListTrips returns all trips
	ListTrips() ([]*Trip, error)

	// SaveEvent saves a cost event under a trip
	SaveEvent(tripID string, event *ledger.CostEvent) error

	// GetEvent retrieves a cost event by ID
	GetEvent(tripID, id string) (*ledger.CostEvent, error)

	// ListEvents returns every cost event of a trip
	ListEvents(tripID string) ([]*ledger.CostEvent, error)

	// DeleteEvent removes a cost event
	DeleteEvent(tripID, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tripBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(eventBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveTrip saves a trip to the database
func (b *BoltDB) SaveTrip(trip *Trip) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(trip)
		if err != nil {
			return fmt.Errorf("marshaling trip: %w", err)
		}
		return tx.Bucket([]byte(tripBucketName)).Put([]byte(trip.ID), data)
	})
}

// GetTrip retrieves a trip by ID
func (b *BoltDB) GetTrip(id string) (*Trip, error) {
	var trip *Trip
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(tripBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("trip %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// ListTrips returns all trips
func (b *BoltDB) ListTrips() ([]*Trip, error) {
	trips := make([]*Trip, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(tripBucketName)).ForEach(func(k, v []byte) error {
			var trip Trip
			if err := json.Unmarshal(v, &trip); err != nil {
				return fmt.Errorf("unmarshaling trip: %w", err)
			}
			trips = append(trips, &trip)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// SaveEvent saves a cost event in the trip's event bucket
func (b *BoltDB) SaveEvent(tripID string, event *ledger.CostEvent) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket([]byte(eventBucketName)).CreateBucketIfNotExists([]byte(tripID))
		if err != nil {
			return fmt.Errorf("creating event bucket: %w", err)
		}
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshaling event: %w", err)
		}
		return bucket.Put([]byte(event.ID), data)
	})
}

// GetEvent retrieves a cost event by ID
func (b *BoltDB) GetEvent(tripID, id string) (*ledger.CostEvent, error) {
	var event *ledger.CostEvent
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucketName)).Bucket([]byte(tripID))
		if bucket == nil {
			return fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns all cost events of a trip in key order
func (b *BoltDB) ListEvents(tripID string) ([]*ledger.CostEvent, error) {
	events := make([]*ledger.CostEvent, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucketName)).Bucket([]byte(tripID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var event ledger.CostEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("unmarshaling event: %w", err)
			}
			events = append(events, &event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteEvent removes a cost event from the database
func (b *BoltDB) DeleteEvent(tripID, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucketName)).Bucket([]byte(tripID))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
