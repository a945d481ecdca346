package goch

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"namiokai/mq/mq"
)

// Helper to receive a message from a channel with a timeout.
// Returns the message and true if successful, or zero value and false on timeout/closed.
func receiveMsgWithTimeout[T any](tb testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	tb.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			var zero T
			return zero, false
		}
		return msg, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// Helper to check if a channel is closed (non-blocking).
func isChanClosed[T any](ch <-chan T) bool {
	select {
	case _, ok := <-ch:
		return !ok
	default:
		return false
	}
}

type mockItem struct {
	Value int
	Topic string
}

func (item mockItem) GetTopic() string {
	return item.Topic
}

func TestNewFanOutQueueCore(t *testing.T) {
	t.Parallel()

	t.Run("Unbuffered", func(t *testing.T) {
		t.Parallel()
		core := newFanOutQueueCore[mockItem](0)
		defer core.Stop()

		if cap(core.publishChan) != 0 {
			t.Errorf("expected publishChan capacity 0, got %d", cap(core.publishChan))
		}
		if core.subscribers == nil {
			t.Error("subscribers map is nil")
		}
	})

	t.Run("Buffered", func(t *testing.T) {
		t.Parallel()
		core := newFanOutQueueCore[mockItem](10)
		defer core.Stop()

		if cap(core.publishChan) != 10 {
			t.Errorf("expected publishChan capacity 10, got %d", cap(core.publishChan))
		}
		if core.bufferSize != 10 {
			t.Errorf("expected bufferSize 10, got %d", core.bufferSize)
		}
	})
}

func TestFanOutQueueCore_PublishSubscribeDeSubscribe(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](0)
	defer core.Stop()

	id, ch, err := core.Subscribe("bills.purchase")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	go func() {
		if err := core.Publish(mockItem{Value: 42, Topic: "bills.purchase"}); err != nil {
			t.Errorf("Publish failed: %v", err)
		}
	}()

	msg, ok := receiveMsgWithTimeout(t, ch, time.Second)
	if !ok || msg.Value != 42 {
		t.Fatalf("expected 42, got %v (ok=%v)", msg, ok)
	}

	if err := core.DeSubscribe(id); err != nil {
		t.Fatalf("DeSubscribe failed: %v", err)
	}
	if !isChanClosed(ch) {
		t.Error("subscriber channel not closed after DeSubscribe")
	}
}

func TestFanOutQueueCore_TopicFiltering(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](4)
	defer core.Stop()

	_, trips, _ := core.Subscribe("bills.trip")
	_, flats, _ := core.Subscribe("bills.flat")
	_, flats2, _ := core.Subscribe("bills.flat")

	if err := core.Publish(mockItem{Value: 1, Topic: "bills.flat"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, ch := range []<-chan mockItem{flats, flats2} {
		if msg, ok := receiveMsgWithTimeout(t, ch, time.Second); !ok || msg.Value != 1 {
			t.Errorf("flat subscriber %d: expected 1, got %v (ok=%v)", i, msg, ok)
		}
	}
	if msg, ok := receiveMsgWithTimeout(t, trips, 100*time.Millisecond); ok {
		t.Errorf("trip subscriber received %v for another topic", msg)
	}
}

func TestFanOutQueueCore_DeSubscribeNonExistent(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](0)
	defer core.Stop()

	missing := uuid.New()
	err := core.DeSubscribe(missing)
	if err == nil {
		t.Fatal("expected error when desubscribing non-existent ID")
	}
	expected := fmt.Sprintf("goch: subscriber with ID '%s' not found", missing)
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestFanOutQueueCore_BlockedSubscriberWillRemove(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](1)
	defer core.Stop()

	id, ch, err := core.Subscribe("spaces")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// first message fills the subscriber buffer, the second one blocks
	for _, v := range []int{1, 2} {
		if err := core.Publish(mockItem{Value: v, Topic: "spaces"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	time.Sleep(4 * sendTimeout)

	core.mu.RLock()
	_, stillSubscribed := core.subscribers[id]
	core.mu.RUnlock()
	if stillSubscribed {
		t.Errorf("blocked subscriber %s not removed", id)
	}

	if msg, ok := receiveMsgWithTimeout(t, ch, time.Second); !ok || msg.Value != 1 {
		t.Errorf("buffered message lost: %v (ok=%v)", msg, ok)
	}
	if _, ok := receiveMsgWithTimeout(t, ch, time.Second); ok {
		t.Error("channel of removed subscriber should be closed")
	}
}

func TestFanOutQueueCore_Stop(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](0)
	_, ch, _ := core.Subscribe("users")

	core.Stop()
	core.Stop() // idempotent

	if err := core.Publish(mockItem{Topic: "users"}); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("expected ErrQueueStopped, got %v", err)
	}
	if _, _, err := core.Subscribe("users"); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("expected ErrQueueStopped on subscribe, got %v", err)
	}
	if isChanClosed(ch) {
		t.Error("Stop must not close subscriber channels")
	}
}

func TestChannelMessageQueue_Close(t *testing.T) {
	t.Parallel()
	var q mq.ChangeQueue = NewChannelMessageQueue[mq.Change](1)

	_, ch, err := q.Subscribe(mq.TopicSpaces)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	change := mq.Change{Topic: mq.TopicSpaces, Action: mq.ActionUpdate, ID: "s1"}
	if err := q.Publish(change); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if got, ok := receiveMsgWithTimeout(t, ch, time.Second); !ok || got != change {
		t.Fatalf("expected %+v, got %+v (ok=%v)", change, got, ok)
	}

	q.Close()
	if _, ok := receiveMsgWithTimeout(t, ch, time.Second); ok {
		t.Error("Close should close subscriber channels")
	}
}
