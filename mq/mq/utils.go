package mq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Subscriber is anything that can be subscribed to by topic.
type Subscriber[M any] interface {
	Subscribe(topic string) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

// SubscribeProcessor subscribes to topic and pumps every message through
// transform into output until ctx is done or the subscription ends. Messages
// for which transform errors or asks to skip are dropped. The subscription is
// made before returning, so no message published afterwards is missed.
// output is closed when the pump stops.
func SubscribeProcessor[S Subscriber[M], M any, O any](
	ctx context.Context,
	topic string,
	service S,
	transform func(msg M) (O, bool, error),
	output chan<- O,
) error {
	uid, inputCh, err := service.Subscribe(topic)
	if err != nil {
		close(output)
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		defer func() {
			if err := service.DeSubscribe(uid); err != nil {
				slog.Debug("de-subscribe", "id", uid, "topic", topic, "error", err)
			}
			close(output)
		}()

		for {
			select {
			case msg, ok := <-inputCh:
				if !ok {
					return
				}
				out, skip, err := transform(msg)
				if err != nil {
					slog.Warn("dropping message", "topic", topic, "error", err)
					continue
				}
				if skip {
					continue
				}
				select {
				case output <- out:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
