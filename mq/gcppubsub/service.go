package gcppubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"namiokai/mq/mq"
)

// messages carry their topic in this attribute; subscriptions filter on it
const topicAttribute = "topic"

type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService implements mq.MessageQueue on one Pub/Sub topic.
// Logical topics are mapped to filtered subscriptions.
type GenericPubSubService[M mq.TopicProvider] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
	ownsClient          bool
}

// NewGenericPubSubService ensures topicID exists, creating it if necessary.
func NewGenericPubSubService[M mq.TopicProvider](ctx context.Context, client *pubsub.Client, topicID string) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, errors.New("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		slog.Info("created Pub/Sub topic", "topic", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

func typeName[M any]() string {
	return reflect.TypeOf(*new(M)).Name()
}

// Publish sends msg with its topic as an attribute and waits for the server ack.
func (s *GenericPubSubService[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName[M](), err)
	}

	result := s.topic.Publish(s.ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{topicAttribute: msg.GetTopic()},
	})
	if _, err := result.Get(s.ctx); err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName[M](), s.topic.ID(), err)
	}
	return nil
}

// Subscribe creates a filtered GCP subscription for topic and starts receiving.
// The GCP subscription is deleted when the receiver stops.
func (s *GenericPubSubService[M]) Subscribe(topic string) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New()
	gcpSubName := fmt.Sprintf("sub-%s-%s", typeName[M](), subscriptionID.String())

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           fmt.Sprintf("attributes.%s = %q", topicAttribute, topic),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	})
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s: %w", gcpSubName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{gcpSubscription: gcpSub, cancel: cancel}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			if err := gcpSub.Delete(context.Background()); err != nil {
				slog.Warn("deleting GCP subscription", "subscription", gcpSub.ID(), "error", err)
			}
			close(msgChan)
		}()

		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				slog.Warn("unmarshal pubsub message", "type", typeName[M](), "id", subscriptionID, "error", err)
				return
			}
			select {
			case msgChan <- msg:
			case <-time.After(2 * time.Second):
				slog.Warn("timeout delivering pubsub message", "id", subscriptionID, "topic", topic)
			case <-receiveCtx.Done():
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("pubsub receive loop", "id", subscriptionID, "error", err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe stops the receiver; cleanup happens in the receiver goroutine.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, typeName[M]())
	}
	return nil
}

// Close stops all receivers and, when it created it, the client.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	s.topic.Stop()
	if s.ownsClient {
		s.client.Close()
	}
}
