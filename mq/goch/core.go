package goch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"namiokai/mq/mq"
)

var (
	ErrQueueStopped = errors.New("goch: queue stopped")
	ErrQueueFull    = errors.New("goch: message queue is full")
)

const (
	publishTimeout = time.Second
	// subscribers that cannot take a message within this window are dropped
	sendTimeout = 200 * time.Millisecond
)

type subscriber[T any] struct {
	topic string
	ch    chan T
}

// fanOutQueueCore delivers every published message to the subscribers of its
// topic from a single routine.
type fanOutQueueCore[T mq.TopicProvider] struct {
	publishChan chan T
	subscribers map[uuid.UUID]subscriber[T]
	mu          sync.RWMutex
	quit        chan struct{}
	stopOnce    sync.Once
	bufferSize  int
}

func newFanOutQueueCore[T mq.TopicProvider](bufferSize int) *fanOutQueueCore[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	core := &fanOutQueueCore[T]{
		publishChan: make(chan T, bufferSize),
		subscribers: make(map[uuid.UUID]subscriber[T]),
		quit:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	go core.fanOut()
	return core
}

func (c *fanOutQueueCore[T]) fanOut() {
	for {
		select {
		case msg := <-c.publishChan:
			c.dispatch(msg)
		case <-c.quit:
			return
		}
	}
}

func (c *fanOutQueueCore[T]) dispatch(msg T) {
	topic := msg.GetTopic()
	var blocked []uuid.UUID

	c.mu.RLock()
	for id, sub := range c.subscribers {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		case <-time.After(sendTimeout):
			blocked = append(blocked, id)
		}
	}
	c.mu.RUnlock()

	if len(blocked) == 0 {
		return
	}
	c.mu.Lock()
	for _, id := range blocked {
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub.ch)
			slog.Warn("removed blocked subscriber", "id", id, "topic", topic)
		}
	}
	c.mu.Unlock()
}

// Publish hands msg to the fan-out routine, waiting briefly when the
// publish buffer is full.
func (c *fanOutQueueCore[T]) Publish(msg T) error {
	select {
	case <-c.quit:
		return ErrQueueStopped
	default:
	}
	select {
	case c.publishChan <- msg:
		return nil
	case <-c.quit:
		return ErrQueueStopped
	case <-time.After(publishTimeout):
		return ErrQueueFull
	}
}

func (c *fanOutQueueCore[T]) Subscribe(topic string) (uuid.UUID, <-chan T, error) {
	select {
	case <-c.quit:
		return uuid.Nil, nil, ErrQueueStopped
	default:
	}
	id := uuid.New()
	ch := make(chan T, c.bufferSize)

	c.mu.Lock()
	c.subscribers[id] = subscriber[T]{topic: topic, ch: ch}
	c.mu.Unlock()
	return id, ch, nil
}

func (c *fanOutQueueCore[T]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscribers[id]
	if !ok {
		return fmt.Errorf("goch: subscriber with ID '%s' not found", id)
	}
	delete(c.subscribers, id)
	close(sub.ch)
	return nil
}

// Stop ends the fan-out routine. Subscriber channels stay open.
func (c *fanOutQueueCore[T]) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

// closeAll removes every subscriber, closing its channel.
func (c *fanOutQueueCore[T]) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sub := range c.subscribers {
		delete(c.subscribers, id)
		close(sub.ch)
	}
}
