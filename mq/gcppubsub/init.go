package gcppubsub

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"namiokai/mq/mq"
)

// ChangeTopicID is the Pub/Sub topic carrying change events.
const ChangeTopicID = "namiokai-changes"

var ErrMissingProjectID = errors.New("GCP_PROJECT_ID must be set for gcp_pub_sub mode")

// NewChangeQueue creates a client for projectID and returns the change queue
// used by --mq gcp_pub_sub.
func NewChangeQueue(ctx context.Context, projectID string) (mq.ChangeQueue, error) {
	if projectID == "" {
		return nil, ErrMissingProjectID
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Pub/Sub client for project %s: %w", projectID, err)
	}
	svc, err := NewGenericPubSubService[mq.Change](ctx, client, ChangeTopicID)
	if err != nil {
		client.Close()
		return nil, err
	}
	svc.ownsClient = true
	return svc, nil
}
