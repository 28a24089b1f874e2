package ledger

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zombor/trip-ledger/internal/money"
)

// ErrInvalidEvent is returned by Validate for events the calculator should never see
var ErrInvalidEvent = errors.New("invalid cost event")

// Kind distinguishes expenses from settlements
type Kind string

const (
	KindExpense    Kind = "expense"
	KindSettlement Kind = "settlement"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindSettlement
}

// Visibility controls who sees an event in balance computations
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Participant is a member of a trip roster
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Roster is the list of participants of a trip
type Roster []Participant

// IDs returns the participant IDs in roster order
func (r Roster) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, p := range r {
		ids = append(ids, p.ID)
	}
	return ids
}

// Find looks up a participant by ID
func (r Roster) Find(id string) (Participant, bool) {
	for _, p := range r {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Shares maps a participant ID to an explicit share. Empty means equal split.
type Shares map[string]money.Money

// CostEvent is a single expense or settlement
type CostEvent struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Kind             Kind        `json:"kind"`
	Visibility       Visibility  `json:"visibility"`
	CreatorID        string      `json:"creator_id"`
	Payer            string      `json:"payer"`
	Amount           money.Money `json:"amount"`
	Participants     []string    `json:"participants"`
	Shares           Shares      `json:"shares,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
	ReceiptFile      string      `json:"receipt_file,omitempty"`
	ContentType      string      `json:"content_type,omitempty"`
	OriginalAmount   money.Money `json:"original_amount,omitempty"`
	OriginalCurrency string      `json:"original_currency,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// IsPrivate reports whether the event is visible only to its creator
func (e *CostEvent) IsPrivate() bool {
	return e.Visibility == VisibilityPrivate
}

// visibleTo reports whether the event takes part in viewerID's computation
func (e *CostEvent) visibleTo(viewerID string) bool {
	return !e.IsPrivate() || e.CreatorID == viewerID
}

// SharesTotal sums the explicit shares
func (e *CostEvent) SharesTotal() money.Money {
	total := money.Zero
	for _, s := range e.Shares {
		total = total.Add(s)
	}
	return total
}

// participantShares returns what each participant consumes, allocating the
// equal split at most once. Explicit shares win over the equal split.
func (e *CostEvent) participantShares() map[string]money.Money {
	shares := make(map[string]money.Money, len(e.Participants))
	var parts []money.Money
	for i, id := range e.Participants {
		if share, ok := e.Shares[id]; ok {
			shares[id] = share
			continue
		}
		if parts == nil {
			// participants is non-empty here so Allocate cannot fail
			var err error
			if parts, err = e.Amount.Allocate(len(e.Participants)); err != nil {
				shares[id] = money.Zero
				continue
			}
		}
		shares[id] = parts[i]
	}
	return shares
}

// HasConsistentShares reports whether, with explicit shares (if any), what the
// participants consume adds up to the amount within one minor unit
func (e *CostEvent) HasConsistentShares() bool {
	return e.consistentWith(e.participantShares())
}

func (e *CostEvent) consistentWith(consumed map[string]money.Money) bool {
	if len(e.Shares) == 0 {
		return true
	}
	total := money.Zero
	for _, share := range consumed {
		total = total.Add(share)
	}
	return !total.Sub(e.Amount).Abs().GreaterThan(money.FromCents(1))
}

// Validate checks the structural rules upstream layers must enforce before an
// event is stored. The calculator itself never rejects events.
func (e *CostEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if !e.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidEvent, e.Visibility)
	}
	if e.Payer == "" {
		return fmt.Errorf("%w: payer is required", ErrInvalidEvent)
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidEvent)
	}
	if !e.Amount.IsWholeMinorUnits() {
		return fmt.Errorf("%w: amount %s is finer than a minor unit", ErrInvalidEvent, e.Amount)
	}
	if e.Kind == KindSettlement {
		if len(e.Participants) != 1 {
			return fmt.Errorf("%w: settlement must have exactly one recipient, got %d", ErrInvalidEvent, len(e.Participants))
		}
		if e.Participants[0] == e.Payer {
			return fmt.Errorf("%w: settlement recipient must differ from payer", ErrInvalidEvent)
		}
	}
	seen := make(map[string]bool, len(e.Participants))
	for _, id := range e.Participants {
		if seen[id] {
			return fmt.Errorf("%w: duplicate participant %s", ErrInvalidEvent, id)
		}
		seen[id] = true
	}
	for id, share := range e.Shares {
		if !seen[id] {
			return fmt.Errorf("%w: share for non-participant %s", ErrInvalidEvent, id)
		}
		if share.IsNegative() {
			return fmt.Errorf("%w: negative share for %s", ErrInvalidEvent, id)
		}
		if !share.IsWholeMinorUnits() {
			return fmt.Errorf("%w: share %s for %s is finer than a minor unit", ErrInvalidEvent, share, id)
		}
	}
	if len(e.Shares) > 0 {
		// a partial map would mix explicit shares with an equal split of the whole amount
		for _, id := range e.Participants {
			if _, ok := e.Shares[id]; !ok {
				return fmt.Errorf("%w: no share for participant %s", ErrInvalidEvent, id)
			}
		}
	}
	return nil
}

// SortByRecency orders events newest first. Ordering never affects balances.
func SortByRecency(events []*CostEvent) {
	slices.SortStableFunc(events, func(a, b *CostEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// VisibleTo returns the events viewerID may see, preserving order
func VisibleTo(events []*CostEvent, viewerID string) []*CostEvent {
	return slices.DeleteFunc(slices.Clone(events), func(e *CostEvent) bool {
		return !e.visibleTo(viewerID)
	})
}
