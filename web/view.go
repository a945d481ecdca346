package web

import (
	"namiokai/debt"
	"namiokai/ledger"
	"namiokai/period"
)

// BillLine is one bill's contribution to a debt.
type BillLine struct {
	DocumentID  string      `json:"documentId"`
	Kind        ledger.Kind `json:"kind"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      float64     `json:"amount"`
}

type CreditorView struct {
	CreditorUID  string     `json:"creditorUid"`
	CreditorName string     `json:"creditorName"`
	Amount       float64    `json:"amount"`
	Bills        []BillLine `json:"bills"`
}

type DebtorView struct {
	DebtorUID  string         `json:"debtorUid"`
	DebtorName string         `json:"debtorName"`
	Total      float64        `json:"total"`
	Creditors  []CreditorView `json:"creditors"`
}

// DebtView is the debt screen of one space for one period.
type DebtView struct {
	SpaceID   string        `json:"spaceId"`
	SpaceName string        `json:"spaceName"`
	Period    period.Period `json:"period" diff:"-"`
	Debtors   []DebtorView  `json:"debtors"`
}

// uids lists every debtor and creditor of debts.
func uids(debts debt.Debts) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(uid string) {
		if _, ok := seen[uid]; !ok {
			seen[uid] = struct{}{}
			out = append(out, uid)
		}
	}
	for _, d := range debts {
		add(d.DebtorUID)
		for _, c := range d.Creditors {
			add(c.CreditorUID)
		}
	}
	return out
}

func newDebtView(space ledger.Space, p period.Period, debts debt.Debts, names map[string]string) DebtView {
	name := func(uid string) string {
		if n, ok := names[uid]; ok {
			return n
		}
		return uid
	}
	view := DebtView{
		SpaceID:   space.ID,
		SpaceName: space.Name,
		Period:    p,
		Debtors:   make([]DebtorView, 0, len(debts)),
	}
	for _, d := range debts {
		dv := DebtorView{
			DebtorUID:  d.DebtorUID,
			DebtorName: name(d.DebtorUID),
			Total:      d.Total(),
			Creditors:  make([]CreditorView, 0, len(d.Creditors)),
		}
		for _, c := range d.Creditors {
			cv := CreditorView{
				CreditorUID:  c.CreditorUID,
				CreditorName: name(c.CreditorUID),
				Amount:       c.Sum(),
				Bills:        make([]BillLine, 0, len(c.Bills)),
			}
			for _, b := range c.Bills {
				cv.Bills = append(cv.Bills, BillLine{
					DocumentID:  b.Bill.DocumentID,
					Kind:        b.Bill.Kind,
					Date:        b.Bill.Date,
					Description: b.Bill.Description(),
					Amount:      b.Amount,
				})
			}
			dv.Creditors = append(dv.Creditors, cv)
		}
		view.Debtors = append(view.Debtors, dv)
	}
	return view
}

// spaceFromSnapshot finds space in a resolve result. Spaces without debts
// are omitted from it, in which case fallback is returned with no debts.
func spaceFromSnapshot(all []debt.SpaceDebts, fallback ledger.Space) (ledger.Space, debt.Debts) {
	for _, sd := range all {
		if sd.Space.ID == fallback.ID {
			return sd.Space, sd.Debts
		}
	}
	return fallback, debt.Debts{}
}
