package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/zombor/trip-ledger/internal/money"
)

// dust is the balance magnitude below which a participant counts as settled
var dust = money.FromCents(1)

// Transfer is a suggested payment from a debtor to a creditor
type Transfer struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount money.Money `json:"amount"`
}

// Summary bundles a viewer's balances with the settlement plan for the trip
type Summary struct {
	Balances
	SmartTransfers []Transfer `json:"smart_transfers"`
}

type position struct {
	id     string
	amount money.Money
}

// CalculateSmartTransfers computes a settlement plan over net balances by
// greedily matching the largest debtor with the largest creditor. Every step
// resolves at least one party, so the plan has at most n-1 transfers for n
// participants with a non-dust balance.
func CalculateSmartTransfers(netBalances map[string]money.Money) []Transfer {
	var debtors, creditors []position
	for id, amount := range netBalances {
		switch {
		case amount.LessThan(dust.Neg()):
			debtors = append(debtors, position{id: id, amount: amount})
		case amount.GreaterThan(dust):
			creditors = append(creditors, position{id: id, amount: amount})
		}
	}

	// most negative first; map order is random so ties break on ID
	slices.SortFunc(debtors, func(a, b position) int {
		if c := a.amount.Cmp(b.amount); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	// most positive first
	slices.SortFunc(creditors, func(a, b position) int {
		if c := b.amount.Cmp(a.amount); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})

	transfers := make([]Transfer, 0)
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtAbs := debtors[i].amount.Abs()
		creditAbs := creditors[j].amount

		settle := money.Min(debtAbs, creditAbs).Round(money.MinorUnitPlaces)
		if settle.IsPositive() {
			transfers = append(transfers, Transfer{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: settle,
			})
		}

		debtors[i].amount = debtors[i].amount.Add(settle)
		creditors[j].amount = creditors[j].amount.Sub(settle)

		if debtors[i].amount.Abs().LessThan(dust) {
			i++
		}
		if creditors[j].amount.Abs().LessThan(dust) {
			j++
		}
	}

	return transfers
}

// Summarize computes balances for viewerID and the trip-wide settlement plan
func Summarize(events []*CostEvent, roster Roster, viewerID string) Summary {
	balances := CalculateBalances(events, roster, viewerID)
	return Summary{
		Balances:       balances,
		SmartTransfers: CalculateSmartTransfers(balances.NetBalances),
	}
}

// ApplyTransfers replays a settlement plan against net balances and returns
// the resulting balances. The input map is not modified.
func ApplyTransfers(netBalances map[string]money.Money, transfers []Transfer) map[string]money.Money {
	out := make(map[string]money.Money, len(netBalances))
	for id, v := range netBalances {
		out[id] = v
	}
	for _, t := range transfers {
		out[t.From] = out[t.From].Add(t.Amount)
		out[t.To] = out[t.To].Sub(t.Amount)
	}
	return out
}

// SettlementFromTransfer builds the settlement event recorded when someone
// acts on a suggested transfer
func SettlementFromTransfer(t Transfer, id, creatorID string, at time.Time) *CostEvent {
	return &CostEvent{
		ID:           id,
		Title:        "Settlement",
		Kind:         KindSettlement,
		Visibility:   VisibilityPublic,
		CreatorID:    creatorID,
		Payer:        t.From,
		Amount:       t.Amount,
		Participants: []string{t.To},
		Timestamp:    at,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}
