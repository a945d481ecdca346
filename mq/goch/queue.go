package goch

import (
	"github.com/google/uuid"

	"namiokai/mq/mq"
)

// ChannelMessageQueue implements mq.MessageQueue in process with Go channels.
type ChannelMessageQueue[M mq.TopicProvider] struct {
	core *fanOutQueueCore[M]
}

// NewChannelMessageQueue creates a queue whose publish buffer and subscriber
// channels hold bufferSize messages. Zero means unbuffered.
func NewChannelMessageQueue[M mq.TopicProvider](bufferSize int) *ChannelMessageQueue[M] {
	return &ChannelMessageQueue[M]{core: newFanOutQueueCore[M](bufferSize)}
}

// NewChangeQueue is the in-process change queue used by --mq go_chan.
func NewChangeQueue() mq.ChangeQueue {
	return NewChannelMessageQueue[mq.Change](16)
}

func (q *ChannelMessageQueue[M]) Publish(msg M) error {
	return q.core.Publish(msg)
}

func (q *ChannelMessageQueue[M]) Subscribe(topic string) (uuid.UUID, <-chan M, error) {
	return q.core.Subscribe(topic)
}

func (q *ChannelMessageQueue[M]) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

// Close stops delivery and closes every subscriber channel.
func (q *ChannelMessageQueue[M]) Close() {
	q.core.Stop()
	q.core.closeAll()
}
