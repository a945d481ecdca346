package debt

import (
	"context"
	"time"

	"namiokai/ledger"
	"namiokai/period"
	"namiokai/stream"
)

// Observer is told how long each recomputation took and how many spaces had debts.
type Observer func(elapsed time.Duration, spaces int)

// Service recomputes debt views from live bill and space feeds.
type Service struct {
	bills   *stream.Repository
	observe Observer
	now     func() time.Time
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observe = o }
}

// WithClock sets the clock used to date bills whose date cannot be parsed.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(bills *stream.Repository, opts ...Option) *Service {
	s := &Service{bills: bills, observe: func(time.Duration, int) {}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch emits the debt views of spaces for p, recomputed from scratch on every
// bill or space update. Slow readers only see the newest view. The zero
// period watches every bill.
func (s *Service) Watch(ctx context.Context, spaces stream.Stream[[]ledger.Space], p period.Period) stream.Stream[[]SpaceDebts] {
	return stream.Scoped(ctx, func(ctx context.Context) stream.Stream[[]SpaceDebts] {
		var bills stream.Stream[[]ledger.Bill]
		if p.IsZero() {
			bills = s.bills.GetBills(ctx)
		} else {
			bills = s.bills.GetBillsInPeriod(ctx, p)
		}
		views := stream.Combine2(ctx, bills, spaces, func(bills []ledger.Bill, spaces []ledger.Space) []SpaceDebts {
			start := time.Now()
			result := Resolve(bills, spaces, p, s.now())
			s.observe(time.Since(start), len(result))
			return result
		})
		return stream.Latest(ctx, views)
	})
}

// WatchSelected is Watch for the period currently selected in sel.
func (s *Service) WatchSelected(ctx context.Context, spaces stream.Stream[[]ledger.Space], sel *period.Selection) stream.Stream[[]SpaceDebts] {
	return s.Watch(ctx, spaces, sel.Selected())
}
