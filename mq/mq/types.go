package mq

import (
	"fmt"

	"namiokai/ledger"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

const (
	TopicSpaces = "spaces"
	TopicUsers  = "users"
)

// BillTopic is the topic bills of kind k are announced on.
func BillTopic(k ledger.Kind) string {
	return "bills." + k.String()
}

// Change announces that a record was written. Consumers re-read the data
// instead of trusting the message body.
type Change struct {
	Topic   string `json:"topic"`
	Action  Action `json:"action"`
	ID      string `json:"id"`
	SpaceID string `json:"spaceId,omitempty"`
}

func (c Change) GetTopic() string {
	return c.Topic
}
