// Package live turns the stores into live feeds: every feed emits the result
// of its query once, then again after each change published for its topic.
package live

import (
	"context"
	"fmt"

	"namiokai/mq/mq"
	"namiokai/stream"
)

// watch subscribes to topic before running query for the first time, so no
// change between the initial read and the subscription is lost. Changes that
// arrive while a query runs are coalesced into one re-query.
func watch[T any](ctx context.Context, queue mq.ChangeQueue, topic string, query func(ctx context.Context) (T, error)) stream.Stream[T] {
	changes := make(chan struct{})
	err := mq.SubscribeProcessor(ctx, topic, queue, func(mq.Change) (struct{}, bool, error) {
		return struct{}{}, false, nil
	}, changes)
	if err != nil {
		return stream.Fail[T](err)
	}

	dirty := make(chan struct{}, 1)
	go func() {
		defer close(dirty)
		for range changes {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
	}()

	out := make(chan stream.Snapshot[T])
	go func() {
		defer close(out)
		for {
			v, err := query(ctx)
			snap := stream.Snapshot[T]{Value: v, Err: err}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-dirty:
				if ok {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- stream.Snapshot[T]{Err: fmt.Errorf("change feed %s ended", topic)}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out
}
