package mq

import "github.com/google/uuid"

// Mode selects the message queue backend.
type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)

// TopicProvider is implemented by messages that know which topic they belong to.
type TopicProvider interface {
	GetTopic() string
}

// MessageQueue is a topic-filtered fan-out queue. Every subscriber of a topic
// receives every message published to it after subscribing.
type MessageQueue[M TopicProvider] interface {
	Publish(msg M) error
	Subscribe(topic string) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
	Close()
}

// ChangeQueue carries data change notifications.
type ChangeQueue = MessageQueue[Change]
