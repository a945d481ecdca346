package live

import (
	"context"
	"log/slog"

	dbt "namiokai/db/db"
	"namiokai/ledger"
	"namiokai/mq/mq"
	"namiokai/stream"
)

// UserDirectory is the read-mostly user reference data.
type UserDirectory struct {
	db    dbt.UserDBWrapper
	queue mq.ChangeQueue
}

func NewUserDirectory(db dbt.UserDBWrapper, queue mq.ChangeQueue) *UserDirectory {
	return &UserDirectory{db: db, queue: queue}
}

// StreamUsers emits every user, again after each user change.
func (d *UserDirectory) StreamUsers(ctx context.Context) stream.Stream[ledger.UsersMap] {
	return watch(ctx, d.queue, mq.TopicUsers, func(ctx context.Context) (ledger.UsersMap, error) {
		users, err := d.db.GetUsers(ctx)
		if err != nil {
			return nil, err
		}
		return ledger.NewUsersMap(users), nil
	})
}

func (d *UserDirectory) Upsert(ctx context.Context, user ledger.User) error {
	if err := d.db.UpsertUser(ctx, user); err != nil {
		return err
	}
	change := mq.Change{Topic: mq.TopicUsers, Action: mq.ActionUpdate, ID: user.UID}
	if err := d.queue.Publish(change); err != nil {
		slog.Warn("publishing user change", "uid", user.UID, "error", err)
	}
	return nil
}

// Loader returns a request-scoped batching loader over the directory.
func (d *UserDirectory) Loader() *dbt.UserDataLoader {
	return dbt.NewUserDataLoader(d.db)
}
