// Package debt resolves bills into who owes whom. Every debt keeps the bill it
// came from; opposite directions between two users are never netted.
package debt

import (
	"namiokai/ledger"
	"namiokai/period"
)

// DebtBill is one debtor's share of one bill, owed to the bill's payer.
type DebtBill struct {
	Bill        ledger.Bill `json:"bill"`
	DebtorUID   string      `json:"debtorUid"`
	CreditorUID string      `json:"creditorUid"`
	Amount      float64     `json:"amount"`
}

// CreditorDebts lists what one debtor owes a single creditor.
type CreditorDebts struct {
	CreditorUID string     `json:"creditorUid"`
	Bills       []DebtBill `json:"bills"`
}

// Sum adds the already rounded amounts without rounding again.
func (c CreditorDebts) Sum() float64 {
	var sum float64
	for _, b := range c.Bills {
		sum += b.Amount
	}
	return sum
}

// DebtorDebts is everything one user owes, grouped by creditor.
type DebtorDebts struct {
	DebtorUID string          `json:"debtorUid"`
	Creditors []CreditorDebts `json:"creditors"`
}

// Total is the sum over all creditors.
func (d DebtorDebts) Total() float64 {
	var total float64
	for _, c := range d.Creditors {
		total += c.Sum()
	}
	return total
}

// Owes returns the aggregate owed to creditor.
func (d DebtorDebts) Owes(creditor string) float64 {
	for _, c := range d.Creditors {
		if c.CreditorUID == creditor {
			return c.Sum()
		}
	}
	return 0
}

// Debts is a debt map in discovery order.
type Debts []DebtorDebts

// Debtor looks a debtor up.
func (d Debts) Debtor(uid string) (DebtorDebts, bool) {
	for _, dd := range d {
		if dd.DebtorUID == uid {
			return dd, true
		}
	}
	return DebtorDebts{}, false
}

// Owes is what debtor owes creditor in this map.
func (d Debts) Owes(debtor, creditor string) float64 {
	dd, ok := d.Debtor(debtor)
	if !ok {
		return 0
	}
	return dd.Owes(creditor)
}

// SpaceDebts is the debt map of one space for one period.
type SpaceDebts struct {
	Space  ledger.Space  `json:"space"`
	Period period.Period `json:"period"`
	Debts  Debts         `json:"debts"`
}
