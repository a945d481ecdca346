package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namiokai/ledger"
	"namiokai/period"
)

const waitFor = time.Second

func receive[T any](t *testing.T, s Stream[T]) (Snapshot[T], bool) {
	t.Helper()
	select {
	case snap, ok := <-s:
		return snap, ok
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot[T]{}, false
	}
}

func assertSilent[T any](t *testing.T, s Stream[T]) {
	t.Helper()
	select {
	case snap, ok := <-s:
		t.Fatalf("unexpected emission %+v (open=%v)", snap, ok)
	case <-time.After(50 * time.Millisecond):
	}
}

// feed is a manually driven source.
type feed[T any] chan Snapshot[T]

func (f feed[T]) push(v T)          { f <- Snapshot[T]{Value: v} }
func (f feed[T]) fail(err error)    { f <- Snapshot[T]{Err: err} }
func (f feed[T]) stream() Stream[T] { return (chan Snapshot[T])(f) }

func TestCombineLatestWaitsForAllSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b, c := make(feed[int]), make(feed[int]), make(feed[int])
	combined := CombineLatest(ctx, a.stream(), b.stream(), c.stream())

	a.push(1)
	b.push(2)
	assertSilent(t, combined)

	c.push(3)
	snap, ok := receive(t, combined)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, snap.Value)

	// one emission per upstream update from here on
	b.push(20)
	snap, _ = receive(t, combined)
	assert.Equal(t, []int{1, 20, 3}, snap.Value)

	a.push(10)
	snap, _ = receive(t, combined)
	assert.Equal(t, []int{10, 20, 3}, snap.Value)
	assertSilent(t, combined)
}

func TestCombineLatestForwardsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := make(feed[int]), make(feed[int])
	combined := CombineLatest(ctx, a.stream(), b.stream())

	a.push(1)
	boom := errors.New("backend unavailable")
	b.fail(boom)

	snap, ok := receive(t, combined)
	require.True(t, ok)
	assert.ErrorIs(t, snap.Err, boom)

	_, ok = receive(t, combined)
	assert.False(t, ok, "stream should close after an error")
}

func TestCombineLatest3Types(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	combined := CombineLatest3(ctx,
		Of(ctx, 2),
		Of(ctx, "x"),
		Of(ctx, []string(nil)),
		func(n int, s string, list []string) string {
			for i := 0; i < n; i++ {
				list = append(list, s)
			}
			return list[0] + list[1]
		})

	got, err := First(ctx, combined)
	require.NoError(t, err)
	assert.Equal(t, "xx", got)
}

func TestLatestDropsSupersededSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := make(feed[int], 3)
	src.push(1)
	src.push(2)
	src.push(3)
	close(src)

	latest := Latest(ctx, src.stream())
	time.Sleep(50 * time.Millisecond)

	snap, ok := receive(t, latest)
	require.True(t, ok)
	assert.Equal(t, 3, snap.Value)

	_, ok = receive(t, latest)
	assert.False(t, ok)
}

func TestFirst(t *testing.T) {
	ctx := context.Background()

	v, err := First(ctx, Of(ctx, 7, 8))
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = First(ctx, Of[int](ctx))
	assert.ErrorIs(t, err, ErrClosed)

	boom := errors.New("boom")
	_, err = First(ctx, Fail[int](boom))
	assert.ErrorIs(t, err, boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = First(cancelled, make(feed[int]).stream())
	assert.ErrorIs(t, err, context.Canceled)
}

// staticSource serves fixed bills, recording the period it was asked for.
type staticSource struct {
	bills  []ledger.Bill
	asked  period.Period
	failed error
}

func (s *staticSource) StreamAll(ctx context.Context) Stream[[]ledger.Bill] {
	if s.failed != nil {
		return Fail[[]ledger.Bill](s.failed)
	}
	return Of(ctx, s.bills)
}

func (s *staticSource) StreamInPeriod(ctx context.Context, p period.Period) Stream[[]ledger.Bill] {
	s.asked = p
	return s.StreamAll(ctx)
}

func bill(kind ledger.Kind, id, date string) ledger.Bill {
	return ledger.Bill{Info: ledger.Info{DocumentID: id, Date: date}, Kind: kind}
}

func TestRepositoryGetBills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purchases := &staticSource{bills: []ledger.Bill{bill(ledger.KindPurchase, "p1", "2024-01-20T10:00:00")}}
	trips := &staticSource{bills: []ledger.Bill{bill(ledger.KindTrip, "t1", "2024-01-25T10:00:00")}}
	flats := &staticSource{}
	repo := NewRepository(purchases, trips, flats)

	bills, err := First(ctx, repo.GetBills(ctx))
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "p1", bills[0].DocumentID)
	assert.Equal(t, "t1", bills[1].DocumentID)

	sorted := SortByDateDesc(bills)
	assert.Equal(t, "t1", sorted[0].DocumentID)
	assert.Equal(t, "p1", bills[0].DocumentID, "input left untouched")

	p := period.Current(time.Date(2024, 1, 20, 0, 0, 0, 0, time.Local), 15)
	_, err = First(ctx, repo.GetBillsInPeriod(ctx, p))
	require.NoError(t, err)
	assert.True(t, purchases.asked.Equal(p))
	assert.True(t, flats.asked.Equal(p))
}

func TestRepositoryPropagatesSourceFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("listen failed")
	repo := NewRepository(&staticSource{}, &staticSource{failed: boom}, &staticSource{})

	_, err := First(ctx, repo.GetBills(ctx))
	assert.ErrorIs(t, err, boom)
}
