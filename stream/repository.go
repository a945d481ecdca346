package stream

import (
	"context"
	"sort"
	"time"

	"namiokai/ledger"
	"namiokai/period"
)

// BillSource is a live feed of one bill kind, ordered by date descending.
type BillSource interface {
	StreamAll(ctx context.Context) Stream[[]ledger.Bill]
	// StreamInPeriod is limited to bills dated within p's bounds, inclusive.
	StreamInPeriod(ctx context.Context, p period.Period) Stream[[]ledger.Bill]
}

// Repository merges the purchase, trip and flat feeds into one bill list.
type Repository struct {
	purchases BillSource
	trips     BillSource
	flats     BillSource
}

func NewRepository(purchases, trips, flats BillSource) *Repository {
	return &Repository{purchases: purchases, trips: trips, flats: flats}
}

// GetBills emits the concatenated bills of every kind once each feed has
// emitted, then again on every feed update. A feed error ends the stream.
func (r *Repository) GetBills(ctx context.Context) Stream[[]ledger.Bill] {
	return Scoped(ctx, func(ctx context.Context) Stream[[]ledger.Bill] {
		return CombineLatest3(ctx,
			r.purchases.StreamAll(ctx),
			r.trips.StreamAll(ctx),
			r.flats.StreamAll(ctx),
			concat)
	})
}

// GetBillsInPeriod is GetBills with every feed scoped to p.
func (r *Repository) GetBillsInPeriod(ctx context.Context, p period.Period) Stream[[]ledger.Bill] {
	return Scoped(ctx, func(ctx context.Context) Stream[[]ledger.Bill] {
		return CombineLatest3(ctx,
			r.purchases.StreamInPeriod(ctx, p),
			r.trips.StreamInPeriod(ctx, p),
			r.flats.StreamInPeriod(ctx, p),
			concat)
	})
}

func concat(purchases, trips, flats []ledger.Bill) []ledger.Bill {
	bills := make([]ledger.Bill, 0, len(purchases)+len(trips)+len(flats))
	bills = append(bills, purchases...)
	bills = append(bills, trips...)
	return append(bills, flats...)
}

// SortByDateDesc returns a copy of bills, newest first. Bills with the same
// date keep their relative order.
func SortByDateDesc(bills []ledger.Bill) []ledger.Bill {
	now := time.Now()
	sorted := append([]ledger.Bill(nil), bills...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ParsedDate(now).After(sorted[j].ParsedDate(now))
	})
	return sorted
}
