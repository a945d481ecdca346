package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"namiokai/mq/mq"
)

// ExchangeName is the topic exchange every change event goes through; the
// message topic is the routing key.
const ExchangeName = "namiokai_events_exchange"

type consumer[M any] struct {
	channel *amqp091.Channel
	out     chan M
}

// RabbitMessageQueue implements mq.MessageQueue on a RabbitMQ topic exchange.
// Each subscriber gets its own exclusive, auto-deleted queue bound to its topic.
type RabbitMessageQueue[M mq.TopicProvider] struct {
	conn      *amqp091.Connection
	channel   *amqp091.Channel
	exchange  string
	publishMu sync.Mutex
	mu        sync.Mutex
	consumers map[uuid.UUID]*consumer[M]
}

func NewRabbitMessageQueue[M mq.TopicProvider](conn *amqp091.Connection, exchange string) (*RabbitMessageQueue[M], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitMessageQueue[M]{
		conn:      conn,
		channel:   ch,
		exchange:  exchange,
		consumers: make(map[uuid.UUID]*consumer[M]),
	}, nil
}

// NewChangeQueue dials addr and returns the change queue used by --mq rabbitmq.
func NewChangeQueue(addr string) (mq.ChangeQueue, error) {
	conn, err := NewRabbitConnection(addr)
	if err != nil {
		return nil, err
	}
	q, err := NewRabbitMessageQueue[mq.Change](conn, ExchangeName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitMessageQueue[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	err = q.channel.PublishWithContext(ctx,
		q.exchange,     // exchange
		msg.GetTopic(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (q *RabbitMessageQueue[M]) Subscribe(topic string) (uuid.UUID, <-chan M, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	queue, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, topic, q.exchange, false, nil); err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to bind queue to %s: %w", topic, err)
	}

	id := uuid.New()
	deliveries, err := ch.Consume(
		queue.Name,  // queue
		id.String(), // consumer
		true,        // auto-ack
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	c := &consumer[M]{channel: ch, out: make(chan M)}
	q.mu.Lock()
	q.consumers[id] = c
	q.mu.Unlock()

	go func() {
		// deliveries closes once the consumer channel is closed
		defer func() {
			q.mu.Lock()
			delete(q.consumers, id)
			q.mu.Unlock()
			close(c.out)
		}()

		for d := range deliveries {
			var msg M
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				slog.Warn("failed to unmarshal message", "topic", topic, "error", err)
				continue
			}
			select {
			case c.out <- msg:
			case <-time.After(time.Second):
				slog.Warn("timeout sending message to consumer, skipping", "id", id, "topic", topic)
			}
		}
	}()

	return id, c.out, nil
}

// DeSubscribe closes the subscriber's AMQP channel; its output channel is
// closed once pending deliveries drain.
func (q *RabbitMessageQueue[M]) DeSubscribe(id uuid.UUID) error {
	q.mu.Lock()
	c, ok := q.consumers[id]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("consumer with ID %s not found on exchange %s", id, q.exchange)
	}
	return c.channel.Close()
}

// Close closes every consumer, the publishing channel and the connection.
func (q *RabbitMessageQueue[M]) Close() {
	q.mu.Lock()
	consumers := make([]*consumer[M], 0, len(q.consumers))
	for _, c := range q.consumers {
		consumers = append(consumers, c)
	}
	q.mu.Unlock()

	for _, c := range consumers {
		c.channel.Close()
	}
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}
