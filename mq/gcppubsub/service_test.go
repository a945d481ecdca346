package gcppubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namiokai/ledger"
	"namiokai/mq/mq"
)

// getTestService runs against the Pub/Sub emulator named by PUBSUB_EMULATOR_HOST.
func getTestService(t *testing.T) mq.ChangeQueue {
	t.Helper()
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST not set")
	}
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		projectID = "namiokai-test"
	}
	q, err := NewChangeQueue(context.Background(), projectID)
	require.NoError(t, err)
	t.Cleanup(q.Close)
	return q
}

func TestNewChangeQueueRequiresProject(t *testing.T) {
	_, err := NewChangeQueue(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingProjectID)
}

func TestGenericPubSubService_Lifecycle(t *testing.T) {
	q := getTestService(t)
	topic := mq.BillTopic(ledger.KindFlat)

	id, ch, err := q.Subscribe(topic)
	require.NoError(t, err)
	// allow time for the subscription to be ready on the emulator backend
	time.Sleep(2 * time.Second)

	change := mq.Change{Topic: topic, Action: mq.ActionDelete, ID: "f1", SpaceID: "s1"}
	require.NoError(t, q.Publish(change))
	require.NoError(t, q.Publish(mq.Change{Topic: mq.TopicUsers, Action: mq.ActionUpdate, ID: "u1"}))

	select {
	case got := <-ch:
		assert.Equal(t, change, got)
	case <-time.After(30 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	require.NoError(t, q.DeSubscribe(id))
}
