package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrIncompleteBill is returned by Validate; the wrapped message names the field.
var ErrIncompleteBill = errors.New("please fill all fields")

// DateLayout is the ISO-8601 local date-time layout bills are written with.
const DateLayout = "2006-01-02T15:04:05"

var dateLayouts = []string{
	DateLayout, // also accepts a fractional second suffix
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// NormalizeUIDs returns the uids sorted with blanks and duplicates removed.
func NormalizeUIDs(uids []string) []string {
	seen := make(map[string]struct{}, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// NewPurchase builds a purchase bill.
func NewPurchase(info Info, shoppingList string, total float64) Bill {
	info.SplitUsersUID = NormalizeUIDs(info.SplitUsersUID)
	return Bill{Info: info, Kind: KindPurchase, Purchase: &Purchase{ShoppingList: shoppingList, Total: total}}
}

// NewTrip builds a trip bill to dest, fixing the per-user price from the number
// of passengers splitting it.
func NewTrip(info Info, dest Destination) Bill {
	info.SplitUsersUID = NormalizeUIDs(info.SplitUsersUID)
	return Bill{Info: info, Kind: KindTrip, Trip: &Trip{
		TripDestination:  dest.Name,
		TripPricePerUser: dest.PricePerUser(len(info.SplitUsersUID)),
	}}
}

// NewFlat builds a flat bill. When taxes is given, TaxesTotal is its sum.
func NewFlat(info Info, rentTotal, taxesTotal float64, taxes *Taxes) Bill {
	info.SplitUsersUID = NormalizeUIDs(info.SplitUsersUID)
	if taxes != nil {
		taxesTotal = Round2(taxes.Sum())
	}
	return Bill{Info: info, Kind: KindFlat, Flat: &Flat{RentTotal: rentTotal, TaxesTotal: taxesTotal, Taxes: taxes}}
}

// PricePerUser picks the solo rate for a single passenger and the shared rate otherwise.
func (d Destination) PricePerUser(passengers int) float64 {
	if passengers <= 1 {
		return Round2(d.PriceAlone)
	}
	return Round2(d.PriceWithOthers)
}

// Total is the bill's full cost.
func (b Bill) Total() float64 {
	switch b.Kind {
	case KindPurchase:
		if b.Purchase == nil {
			return 0
		}
		return b.Purchase.Total
	case KindTrip:
		if b.Trip == nil {
			return 0
		}
		return b.Trip.TripPricePerUser * float64(len(b.SplitUsersUID))
	case KindFlat:
		if b.Flat == nil {
			return 0
		}
		return b.Flat.Total()
	}
	return 0
}

// SplitPricePerUser divides Total by the number of splitters, payer included
// when present, rounded to cents. An empty split set yields 0.
func (b Bill) SplitPricePerUser() float64 {
	n := len(b.SplitUsersUID)
	if n == 0 {
		return 0
	}
	return decimal.NewFromFloat(b.Total()).
		Div(decimal.NewFromInt(int64(n))).
		Round(2).
		InexactFloat64()
}

// DebtPerUser is what each splitter other than the payer owes for this bill.
func (b Bill) DebtPerUser() float64 {
	switch b.Kind {
	case KindPurchase, KindFlat:
		return b.SplitPricePerUser()
	case KindTrip:
		if b.Trip == nil || len(b.SplitUsersUID) == 0 {
			return 0
		}
		return b.Trip.TripPricePerUser
	}
	return 0
}

// Description is the short human label of the bill.
func (b Bill) Description() string {
	switch b.Kind {
	case KindPurchase:
		if b.Purchase != nil {
			return b.Purchase.ShoppingList
		}
	case KindTrip:
		if b.Trip != nil {
			return b.Trip.TripDestination
		}
	case KindFlat:
		return "rent & taxes"
	}
	return ""
}

// Validate rejects bills that must not be persisted.
func (b Bill) Validate() error {
	if strings.TrimSpace(b.PaymasterUID) == "" {
		return fmt.Errorf("%w: paymaster", ErrIncompleteBill)
	}
	if len(b.SplitUsersUID) == 0 {
		return fmt.Errorf("%w: split users", ErrIncompleteBill)
	}
	if strings.TrimSpace(b.SpaceID) == "" {
		return fmt.Errorf("%w: space", ErrIncompleteBill)
	}
	switch b.Kind {
	case KindPurchase:
		if b.Purchase == nil || strings.TrimSpace(b.Purchase.ShoppingList) == "" {
			return fmt.Errorf("%w: shopping list", ErrIncompleteBill)
		}
	case KindTrip:
		if b.Trip == nil || strings.TrimSpace(b.Trip.TripDestination) == "" {
			return fmt.Errorf("%w: destination", ErrIncompleteBill)
		}
	case KindFlat:
		if b.Flat == nil {
			return fmt.Errorf("%w: rent", ErrIncompleteBill)
		}
	default:
		return fmt.Errorf("%w: kind", ErrIncompleteBill)
	}
	if !(b.Total() > 0) {
		return fmt.Errorf("%w: total", ErrIncompleteBill)
	}
	return nil
}

// Clone returns a deep copy.
func (b Bill) Clone() Bill {
	c := b
	if b.SplitUsersUID != nil {
		c.SplitUsersUID = append([]string(nil), b.SplitUsersUID...)
	}
	if b.Purchase != nil {
		p := *b.Purchase
		c.Purchase = &p
	}
	if b.Trip != nil {
		t := *b.Trip
		c.Trip = &t
	}
	if b.Flat != nil {
		f := *b.Flat
		if b.Flat.Taxes != nil {
			taxes := *b.Flat.Taxes
			f.Taxes = &taxes
		}
		c.Flat = &f
	}
	return c
}

// ParseDate parses a bill date in local time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable bill date %q", s)
}

// FormatDate renders t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParsedDate returns the bill's date, or now when it cannot be parsed.
func (b Bill) ParsedDate(now time.Time) time.Time {
	t, err := ParseDate(b.Date)
	if err != nil {
		slog.Debug("falling back to now for bill date", "documentId", b.DocumentID, "error", err)
		return now
	}
	return t
}
