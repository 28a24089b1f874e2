package ledger

import (
	"slices"

	"github.com/zombor/trip-ledger/internal/money"
)

// Balances is the result of folding a trip's events from one viewer's perspective
type Balances struct {
	// NetBalances is paid minus consumed per participant; positive is a creditor
	NetBalances map[string]money.Money `json:"net_balances"`

	// PairwiseDebt is how much each other participant owes the viewer (negative: viewer owes them)
	PairwiseDebt map[string]money.Money `json:"pairwise_debt"`

	MyTotalSpend    money.Money `json:"my_total_spend"`
	MyTotalPaid     money.Money `json:"my_total_paid"`
	MyTotalReceived money.Money `json:"my_total_received"`

	// Inconsistent lists events whose explicit shares do not add up to their amount.
	// They are used as given, so NetBalances may not sum to zero.
	Inconsistent []string `json:"inconsistent,omitempty"`
}

// MemberShare returns how much participantID consumes from event. Explicit
// shares win; otherwise participants split the amount equally with the
// remainder-safe allocator.
func MemberShare(event *CostEvent, participantID string) money.Money {
	if share, ok := event.Shares[participantID]; ok {
		return share
	}
	idx := slices.Index(event.Participants, participantID)
	if idx < 0 {
		return money.Zero
	}
	// participants is non-empty here so Allocate cannot fail
	parts, err := event.Amount.Allocate(len(event.Participants))
	if err != nil {
		return money.Zero
	}
	return parts[idx]
}

// CalculateBalances folds events into net balances, the viewer's pairwise
// debts and the viewer's personal totals. It never mutates its arguments.
func CalculateBalances(events []*CostEvent, roster Roster, viewerID string) Balances {
	b := Balances{
		NetBalances:  make(map[string]money.Money, len(roster)),
		PairwiseDebt: make(map[string]money.Money),
	}
	for _, p := range roster {
		b.NetBalances[p.ID] = money.Zero
	}

	for _, e := range events {
		if !e.visibleTo(viewerID) {
			continue
		}
		shares := e.participantShares()
		if !e.consistentWith(shares) {
			b.Inconsistent = append(b.Inconsistent, e.ID)
		}

		b.NetBalances[e.Payer] = b.NetBalances[e.Payer].Add(e.Amount)

		for _, id := range e.Participants {
			b.NetBalances[id] = b.NetBalances[id].Sub(shares[id])
		}

		switch e.Kind {
		case KindExpense:
			spend, ok := shares[viewerID]
			if !ok {
				spend = MemberShare(e, viewerID)
			}
			b.MyTotalSpend = b.MyTotalSpend.Add(spend)
			if e.Payer == viewerID {
				b.MyTotalPaid = b.MyTotalPaid.Add(e.Amount)
			}
		case KindSettlement:
			if e.Payer == viewerID {
				b.MyTotalPaid = b.MyTotalPaid.Add(e.Amount)
			}
			if slices.Contains(e.Participants, viewerID) {
				b.MyTotalReceived = b.MyTotalReceived.Add(e.Amount)
			}
		}

		for _, consumerID := range e.Participants {
			if consumerID == e.Payer {
				continue
			}
			switch viewerID {
			case e.Payer:
				b.PairwiseDebt[consumerID] = b.PairwiseDebt[consumerID].Add(shares[consumerID])
			case consumerID:
				b.PairwiseDebt[e.Payer] = b.PairwiseDebt[e.Payer].Sub(shares[viewerID])
			}
		}
	}

	return b
}

// Total sums all net balances. It is zero for an internally consistent ledger.
func (b Balances) Total() money.Money {
	total := money.Zero
	for _, v := range b.NetBalances {
		total = total.Add(v)
	}
	return total
}
