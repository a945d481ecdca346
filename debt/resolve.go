package debt

import (
	"time"

	"namiokai/ledger"
	"namiokai/period"
)

// Contributions returns one DebtBill per splitter other than the payer. A
// splitter listed twice still owes once. An empty split set yields nothing.
func Contributions(b ledger.Bill) []DebtBill {
	if len(b.SplitUsersUID) == 0 {
		return nil
	}
	amount := b.DebtPerUser()
	seen := make(map[string]struct{}, len(b.SplitUsersUID))
	debts := make([]DebtBill, 0, len(b.SplitUsersUID))
	for _, uid := range b.SplitUsersUID {
		if uid == b.PaymasterUID {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		debts = append(debts, DebtBill{
			Bill:        b,
			DebtorUID:   uid,
			CreditorUID: b.PaymasterUID,
			Amount:      amount,
		})
	}
	return debts
}

// inPeriod reports whether b falls into p. The zero period matches every
// bill; a bill whose date cannot be parsed is dated now.
func inPeriod(b ledger.Bill, p period.Period, now time.Time) bool {
	if p.IsZero() {
		return true
	}
	return p.Contains(b.ParsedDate(now))
}

// ResolveSpace builds the debt map of one space. Bills of other spaces are
// ignored; payer membership is not checked. The result is never nil.
func ResolveSpace(bills []ledger.Bill, space ledger.Space, p period.Period, now time.Time) Debts {
	debts := Debts{}
	debtorIdx := make(map[string]int)
	creditorIdx := make(map[string]map[string]int)

	for _, b := range bills {
		if b.SpaceID != space.ID || !inPeriod(b, p, now) {
			continue
		}
		for _, db := range Contributions(b) {
			di, ok := debtorIdx[db.DebtorUID]
			if !ok {
				di = len(debts)
				debtorIdx[db.DebtorUID] = di
				creditorIdx[db.DebtorUID] = make(map[string]int)
				debts = append(debts, DebtorDebts{DebtorUID: db.DebtorUID})
			}
			ci, ok := creditorIdx[db.DebtorUID][db.CreditorUID]
			if !ok {
				ci = len(debts[di].Creditors)
				creditorIdx[db.DebtorUID][db.CreditorUID] = ci
				debts[di].Creditors = append(debts[di].Creditors, CreditorDebts{CreditorUID: db.CreditorUID})
			}
			debts[di].Creditors[ci].Bills = append(debts[di].Creditors[ci].Bills, db)
		}
	}
	return debts
}

// Resolve builds one SpaceDebts per space that has at least one debt, in the
// order spaces are given. Bills of spaces not listed are excluded and the
// zero period disables period filtering. now dates bills whose date cannot be
// parsed.
func Resolve(bills []ledger.Bill, spaces []ledger.Space, p period.Period, now time.Time) []SpaceDebts {
	result := make([]SpaceDebts, 0, len(spaces))
	done := make(map[string]struct{}, len(spaces))
	for _, space := range spaces {
		if _, dup := done[space.ID]; dup {
			continue
		}
		done[space.ID] = struct{}{}
		debts := ResolveSpace(bills, space, p, now)
		if len(debts) == 0 {
			continue
		}
		result = append(result, SpaceDebts{Space: space, Period: p, Debts: debts})
	}
	return result
}

// Net is owes(a→b) minus owes(b→a), rounded to cents. The engine itself
// never nets; this is for callers that want a single figure.
func Net(debts Debts, a, b string) float64 {
	return ledger.Round2(debts.Owes(a, b) - debts.Owes(b, a))
}

// Summary is a user's footer figures across spaces.
type Summary struct {
	UID  string  `json:"uid"`
	Owes float64 `json:"owes"` // total the user owes others
	Owed float64 `json:"owed"` // total others owe the user
}

// Balance is positive when the user is owed more than they owe.
func (s Summary) Balance() float64 {
	return ledger.Round2(s.Owed - s.Owes)
}

// UserSummary totals what uid owes and is owed over spaces.
func UserSummary(spaces []SpaceDebts, uid string) Summary {
	s := Summary{UID: uid}
	for _, sd := range spaces {
		for _, dd := range sd.Debts {
			if dd.DebtorUID == uid {
				s.Owes += dd.Total()
				continue
			}
			s.Owed += dd.Owes(uid)
		}
	}
	s.Owes = ledger.Round2(s.Owes)
	s.Owed = ledger.Round2(s.Owed)
	return s
}
