package settle

import (
	"container/list"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"namiokai/debt"
)

type position struct {
	uid    string
	amount decimal.Decimal
}

// queues splits normalized balances into receivers and payers, both sorted
// by amount descending and then by uid.
func queues(balances []Balance) (*list.List, *list.List) {
	var receivers, payers []position
	for _, b := range balances {
		switch {
		case b.Receive > epsilon && b.Receive > b.Pay:
			receivers = append(receivers, position{b.UID, decimal.NewFromFloat(b.Receive - b.Pay)})
		case b.Pay > epsilon && b.Pay > b.Receive:
			payers = append(payers, position{b.UID, decimal.NewFromFloat(b.Pay - b.Receive)})
		}
	}
	byAmount := func(s []position) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].amount.Equal(s[j].amount) {
				return s[i].uid < s[j].uid
			}
			return s[i].amount.GreaterThan(s[j].amount)
		}
	}
	sort.SliceStable(receivers, byAmount(receivers))
	sort.SliceStable(payers, byAmount(payers))

	receiveQueue := list.New()
	for _, p := range receivers {
		receiveQueue.PushBack(p)
	}
	payQueue := list.New()
	for _, p := range payers {
		payQueue.PushBack(p)
	}
	return receiveQueue, payQueue
}

// Greedy pays the largest receiver from the largest payers first. A payer
// whose amount exceeds what is still owed is split and its remainder goes
// back to the front of the queue.
func Greedy(balances []Balance) ([]Transfer, error) {
	receiveQueue, payQueue := queues(balances)
	threshold := decimal.NewFromFloat(epsilon)

	var transfers []Transfer
	for receiveQueue.Len() > 0 {
		receiver := receiveQueue.Remove(receiveQueue.Front()).(position)
		owed := receiver.amount

		for owed.GreaterThan(threshold) {
			if payQueue.Len() == 0 {
				return nil, fmt.Errorf("%s is still owed %s with no payer left", receiver.uid, owed.StringFixed(2))
			}
			payer := payQueue.Remove(payQueue.Front()).(position)
			amount := decimal.Min(payer.amount, owed)
			transfers = append(transfers, Transfer{
				FromUID: payer.uid,
				ToUID:   receiver.uid,
				Amount:  amount.Round(2).InexactFloat64(),
			})
			owed = owed.Sub(amount)

			if rest := payer.amount.Sub(amount); rest.GreaterThan(threshold) {
				payQueue.PushFront(position{payer.uid, rest})
			}
		}
	}

	var remaining decimal.Decimal
	for e := payQueue.Front(); e != nil; e = e.Next() {
		remaining = remaining.Add(e.Value.(position).amount)
	}
	if remaining.GreaterThan(threshold) {
		return nil, fmt.Errorf("payers have %s left unassigned", remaining.StringFixed(2))
	}
	return transfers, nil
}

// Space builds the settlement plan of one space with the given strategy,
// Greedy when nil. The plan only proposes payments; the debts themselves
// stay untouched.
func Space(sd debt.SpaceDebts, strategy Strategy) (Plan, error) {
	if strategy == nil {
		strategy = Greedy
	}
	transfers, err := strategy(Normalize(Balances(sd.Debts)))
	if err != nil {
		return Plan{}, fmt.Errorf("settling space %s: %w", sd.Space.ID, err)
	}
	if transfers == nil {
		transfers = []Transfer{}
	}
	return Plan{SpaceID: sd.Space.ID, Transfers: transfers}, nil
}

// Verify reports whether applying transfers clears every balance.
func Verify(balances []Balance, transfers []Transfer) bool {
	adjusted := make([]Balance, 0, len(balances)+len(transfers))
	adjusted = append(adjusted, balances...)
	for _, t := range transfers {
		adjusted = append(adjusted,
			Balance{UID: t.FromUID, Receive: t.Amount},
			Balance{UID: t.ToUID, Pay: t.Amount},
		)
	}
	return len(Normalize(adjusted)) == 0
}
