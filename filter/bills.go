package filter

import (
	"sort"
	"time"

	"namiokai/ledger"
	"namiokai/period"
)

func distinct(bills []ledger.Bill, key func(ledger.Bill) []string) []string {
	seen := make(map[string]struct{})
	var values []string
	for _, b := range bills {
		for _, v := range key(b) {
			if _, ok := seen[v]; ok || v == "" {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}

// ByPayer filters on the bill's payer.
func ByPayer(bills []ledger.Bill) *Filter[ledger.Bill, string] {
	return &Filter[ledger.Bill, string]{
		Label:  "Payer",
		Name:   "payer",
		Values: distinct(bills, func(b ledger.Bill) []string { return []string{b.PaymasterUID} }),
		Predicate: func(b ledger.Bill, uid string) bool {
			return b.PaymasterUID == uid
		},
	}
}

// BySplitter filters on membership of the split set.
func BySplitter(bills []ledger.Bill) *Filter[ledger.Bill, string] {
	return &Filter[ledger.Bill, string]{
		Label:  "Splitter",
		Name:   "splitter",
		Values: distinct(bills, func(b ledger.Bill) []string { return b.SplitUsersUID }),
		Predicate: func(b ledger.Bill, uid string) bool {
			for _, s := range b.SplitUsersUID {
				if s == uid {
					return true
				}
			}
			return false
		},
	}
}

func BySpace(bills []ledger.Bill) *Filter[ledger.Bill, string] {
	return &Filter[ledger.Bill, string]{
		Label:  "Space",
		Name:   "space",
		Values: distinct(bills, func(b ledger.Bill) []string { return []string{b.SpaceID} }),
		Predicate: func(b ledger.Bill, id string) bool {
			return b.SpaceID == id
		},
	}
}

func ByKind() *Filter[ledger.Bill, ledger.Kind] {
	return &Filter[ledger.Bill, ledger.Kind]{
		Label:  "Kind",
		Name:   "kind",
		Values: ledger.Kinds[:],
		Predicate: func(b ledger.Bill, k ledger.Kind) bool {
			return b.Kind == k
		},
	}
}

// ByPeriod filters on the bill date. Unparsable dates count as now.
func ByPeriod(periods []period.Period, now func() time.Time) *Filter[ledger.Bill, period.Period] {
	if now == nil {
		now = time.Now
	}
	return &Filter[ledger.Bill, period.Period]{
		Label:  "Period",
		Name:   "period",
		Values: periods,
		Predicate: func(b ledger.Bill, p period.Period) bool {
			return p.Contains(b.ParsedDate(now()))
		},
	}
}
