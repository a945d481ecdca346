// Package stream is a small live-sequence toolkit built on channels. A Stream
// delivers snapshots until its context is cancelled; a snapshot carrying an
// error is always the last one.
package stream

import (
	"context"
	"errors"
)

// ErrClosed is returned by First when the stream ends without a value.
var ErrClosed = errors.New("stream closed before emitting")

// Snapshot is one emission: a value, or the error that ended the stream.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Stream is a receive-only live sequence of snapshots.
type Stream[T any] <-chan Snapshot[T]

func send[T any](ctx context.Context, out chan<- Snapshot[T], snap Snapshot[T]) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

// Of emits values in order and closes.
func Of[T any](ctx context.Context, values ...T) Stream[T] {
	out := make(chan Snapshot[T])
	go func() {
		defer close(out)
		for _, v := range values {
			if !send(ctx, out, Snapshot[T]{Value: v}) {
				return
			}
		}
	}()
	return out
}

// Fail emits err and closes.
func Fail[T any](err error) Stream[T] {
	out := make(chan Snapshot[T], 1)
	out <- Snapshot[T]{Err: err}
	close(out)
	return out
}

// Map applies fn to every value; errors pass through untouched.
func Map[T, R any](ctx context.Context, in Stream[T], fn func(T) R) Stream[R] {
	out := make(chan Snapshot[R])
	go func() {
		defer close(out)
		for {
			select {
			case snap, ok := <-in:
				if !ok {
					return
				}
				if snap.Err != nil {
					send(ctx, out, Snapshot[R]{Err: snap.Err})
					return
				}
				if !send(ctx, out, Snapshot[R]{Value: fn(snap.Value)}) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// CombineLatest emits the latest value of every source each time one of them
// updates, starting once all of them have emitted at least once. An upstream
// error is forwarded and ends the combined stream.
func CombineLatest[T any](ctx context.Context, sources ...Stream[T]) Stream[[]T] {
	out := make(chan Snapshot[[]T])

	go func() {
		defer close(out)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		type update struct {
			idx  int
			snap Snapshot[T]
			ok   bool
		}
		updates := make(chan update)
		for i, src := range sources {
			i, src := i, src
			go func() {
				for {
					select {
					case snap, ok := <-src:
						select {
						case updates <- update{idx: i, snap: snap, ok: ok}:
						case <-ctx.Done():
							return
						}
						if !ok {
							return
						}
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		latest := make([]T, len(sources))
		seen := make([]bool, len(sources))
		waiting, open := len(sources), len(sources)
		for open > 0 {
			select {
			case u := <-updates:
				if !u.ok {
					open--
					continue
				}
				if u.snap.Err != nil {
					send(ctx, out, Snapshot[[]T]{Err: u.snap.Err})
					return
				}
				if !seen[u.idx] {
					seen[u.idx] = true
					waiting--
				}
				latest[u.idx] = u.snap.Value
				if waiting > 0 {
					continue
				}
				if !send(ctx, out, Snapshot[[]T]{Value: append([]T(nil), latest...)}) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func toAny[T any](ctx context.Context, in Stream[T]) Stream[any] {
	return Map(ctx, in, func(v T) any { return v })
}

// Combine2 is CombineLatest over two differently typed sources.
func Combine2[A, B, R any](ctx context.Context, a Stream[A], b Stream[B], fn func(A, B) R) Stream[R] {
	combined := CombineLatest(ctx, toAny(ctx, a), toAny(ctx, b))
	return Map(ctx, combined, func(v []any) R {
		va, _ := v[0].(A)
		vb, _ := v[1].(B)
		return fn(va, vb)
	})
}

// CombineLatest3 is CombineLatest over three differently typed sources.
func CombineLatest3[A, B, C, R any](ctx context.Context, a Stream[A], b Stream[B], c Stream[C], fn func(A, B, C) R) Stream[R] {
	combined := CombineLatest(ctx, toAny(ctx, a), toAny(ctx, b), toAny(ctx, c))
	return Map(ctx, combined, func(v []any) R {
		va, _ := v[0].(A)
		vb, _ := v[1].(B)
		vc, _ := v[2].(C)
		return fn(va, vb, vc)
	})
}

// Latest conflates in: a slow reader only ever receives the newest pending
// snapshot, superseded ones are dropped. An error is never superseded.
func Latest[T any](ctx context.Context, in Stream[T]) Stream[T] {
	out := make(chan Snapshot[T])
	go func() {
		defer close(out)
		var pending *Snapshot[T]
		src := in
		for src != nil || pending != nil {
			var sendCh chan<- Snapshot[T]
			var next Snapshot[T]
			if pending != nil {
				sendCh = out
				next = *pending
			}
			select {
			case snap, ok := <-src:
				if !ok {
					src = nil
					continue
				}
				if pending != nil && pending.Err != nil {
					continue
				}
				pending = &snap
			case sendCh <- next:
				if next.Err != nil {
					return
				}
				pending = nil
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Scoped runs open with a child context that is cancelled once the returned
// stream ends, so upstream producers started by open are released.
func Scoped[T any](ctx context.Context, open func(ctx context.Context) Stream[T]) Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	in := open(ctx)
	out := make(chan Snapshot[T])
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case snap, ok := <-in:
				if !ok {
					return
				}
				if !send(ctx, out, snap) || snap.Err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// First waits for the first snapshot of s.
func First[T any](ctx context.Context, s Stream[T]) (T, error) {
	var zero T
	select {
	case snap, ok := <-s:
		if !ok {
			return zero, ErrClosed
		}
		if snap.Err != nil {
			return zero, snap.Err
		}
		return snap.Value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
