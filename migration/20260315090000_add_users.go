package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddUsers, downAddUsers)
}

func upAddUsers(ctx context.Context, tx *sql.Tx) error {
	// users are reference data mirrored from the identity provider, so
	// space_members.user_uid stays free of a foreign key
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE users (
			uid VARCHAR(128) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			photo_url TEXT,
			admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	return nil
}

func downAddUsers(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS users;`)
	if err != nil {
		return err
	}

	return nil
}
