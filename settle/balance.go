package settle

import (
	"sort"

	"github.com/shopspring/decimal"

	"namiokai/debt"
)

// Balances sums every debt entry into per-user amounts to pay and receive.
// The result is sorted by uid and not yet normalized.
func Balances(debts debt.Debts) []Balance {
	byUID := make(map[string]*Balance)
	entry := func(uid string) *Balance {
		if b, ok := byUID[uid]; ok {
			return b
		}
		b := &Balance{UID: uid}
		byUID[uid] = b
		return b
	}

	for _, d := range debts {
		for _, c := range d.Creditors {
			sum := c.Sum()
			entry(d.DebtorUID).Pay += sum
			entry(c.CreditorUID).Receive += sum
		}
	}

	result := make([]Balance, 0, len(byUID))
	for _, b := range byUID {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UID < result[j].UID })
	return result
}

// Normalize merges entries of the same user and offsets pay against receive,
// so every balance has at most one side set. Amounts are rounded to cents and
// fully settled users are dropped.
func Normalize(balances []Balance) []Balance {
	type side struct{ receive, pay decimal.Decimal }
	byUID := make(map[string]*side)
	order := make([]string, 0, len(balances))
	for _, b := range balances {
		s, ok := byUID[b.UID]
		if !ok {
			s = &side{}
			byUID[b.UID] = s
			order = append(order, b.UID)
		}
		s.receive = s.receive.Add(decimal.NewFromFloat(b.Receive))
		s.pay = s.pay.Add(decimal.NewFromFloat(b.Pay))
	}

	result := make([]Balance, 0, len(order))
	for _, uid := range order {
		s := byUID[uid]
		net := s.receive.Sub(s.pay).Round(2)
		v := net.Abs().InexactFloat64()
		if v < epsilon {
			continue
		}
		if net.IsPositive() {
			result = append(result, Balance{UID: uid, Receive: v})
		} else {
			result = append(result, Balance{UID: uid, Pay: v})
		}
	}
	return result
}
