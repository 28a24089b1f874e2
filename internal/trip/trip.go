package trip

import (
	"time"

	"github.com/zombor/trip-ledger/internal/ledger"
)

// Trip is a group of people sharing costs in one accounting currency
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"` // accounting currency every event is stored in
	Members   []Member  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a person on a trip. Members are deactivated, never removed, so
// past events stay attributable.
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joined_at"`
}

// Roster converts the members to the ledger's participant list
func (t *Trip) Roster() ledger.Roster {
	roster := make(ledger.Roster, 0, len(t.Members))
	for _, m := range t.Members {
		roster = append(roster, ledger.Participant{ID: m.ID, Name: m.Name, Active: m.Active})
	}
	return roster
}

// Member looks up a member by ID
func (t *Trip) Member(id string) (*Member, bool) {
	for i := range t.Members {
		if t.Members[i].ID == id {
			return &t.Members[i], true
		}
	}
	return nil, false
}

// ActiveMemberIDs returns the IDs of members still on the trip
func (t *Trip) ActiveMemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		if m.Active {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
