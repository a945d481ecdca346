package live

import (
	"context"
	"errors"
	"log/slog"

	dbt "namiokai/db/db"
	"namiokai/ledger"
	"namiokai/mq/mq"
	"namiokai/stream"
)

// SpaceSource serves spaces and announces writes to them on mq.TopicSpaces.
type SpaceSource struct {
	db    dbt.SpaceDBWrapper
	queue mq.ChangeQueue
}

func NewSpaceSource(db dbt.SpaceDBWrapper, queue mq.ChangeQueue) *SpaceSource {
	return &SpaceSource{db: db, queue: queue}
}

// StreamSpacesForUser emits the spaces uid belongs to, again after each space change.
func (s *SpaceSource) StreamSpacesForUser(ctx context.Context, uid string) stream.Stream[[]ledger.Space] {
	return watch(ctx, s.queue, mq.TopicSpaces, func(ctx context.Context) ([]ledger.Space, error) {
		return s.db.GetSpacesForUser(ctx, uid)
	})
}

// StreamSpace emits a single space as a one-element list, again after each
// space change. A missing space is an empty list, not an error.
func (s *SpaceSource) StreamSpace(ctx context.Context, id string) stream.Stream[[]ledger.Space] {
	return watch(ctx, s.queue, mq.TopicSpaces, func(ctx context.Context) ([]ledger.Space, error) {
		space, err := s.db.GetSpace(ctx, id)
		if errors.Is(err, dbt.ErrNotFound) {
			return []ledger.Space{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []ledger.Space{space}, nil
	})
}

func (s *SpaceSource) SpacesForUser(ctx context.Context, uid string) ([]ledger.Space, error) {
	return s.db.GetSpacesForUser(ctx, uid)
}

func (s *SpaceSource) GetSpace(ctx context.Context, id string) (ledger.Space, error) {
	return s.db.GetSpace(ctx, id)
}

func (s *SpaceSource) Create(ctx context.Context, space *ledger.Space) error {
	if err := s.db.CreateSpace(ctx, space); err != nil {
		return err
	}
	s.publish(mq.ActionCreate, space.ID)
	return nil
}

func (s *SpaceSource) Update(ctx context.Context, space ledger.Space) error {
	if err := s.db.UpdateSpace(ctx, space); err != nil {
		return err
	}
	s.publish(mq.ActionUpdate, space.ID)
	return nil
}

func (s *SpaceSource) Delete(ctx context.Context, id string) error {
	if err := s.db.DeleteSpace(ctx, id); err != nil {
		return err
	}
	s.publish(mq.ActionDelete, id)
	return nil
}

func (s *SpaceSource) publish(action mq.Action, id string) {
	change := mq.Change{Topic: mq.TopicSpaces, Action: action, ID: id, SpaceID: id}
	if err := s.queue.Publish(change); err != nil {
		slog.Warn("publishing space change", "action", action, "id", id, "error", err)
	}
}
