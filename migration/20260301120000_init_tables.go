package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitTables, downInitTables)
}

func upInitTables(ctx context.Context, tx *sql.Tx) error {
	// Create spaces table
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE spaces (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_by_uid VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	// Create space_members table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE space_members (
			space_id UUID NOT NULL,
			user_uid VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (space_id, user_uid),
			CONSTRAINT fk_space_members_space
				FOREIGN KEY(space_id)
				REFERENCES spaces(id)
		);
		CREATE INDEX idx_space_members_user_uid ON space_members(user_uid);
	`)
	if err != nil {
		return err
	}

	// Create destinations table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE destinations (
			space_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			price_alone NUMERIC(10,2) NOT NULL,
			price_with_others NUMERIC(10,2) NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (space_id, name),
			CONSTRAINT fk_destinations_space
				FOREIGN KEY(space_id)
				REFERENCES spaces(id)
		);
	`)
	if err != nil {
		return err
	}

	// Create bills table; space_id is not a foreign key since bills outlive their space
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE bills (
			id UUID PRIMARY KEY,
			kind INTEGER NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			space_id VARCHAR(64) NOT NULL,
			paymaster_uid VARCHAR(128) NOT NULL,
			created_by_uid VARCHAR(128),
			shopping_list TEXT,
			total NUMERIC(10,2),
			trip_destination VARCHAR(255),
			trip_price_per_user NUMERIC(10,2),
			rent_total NUMERIC(10,2),
			taxes_total NUMERIC(10,2),
			has_taxes BOOLEAN NOT NULL DEFAULT FALSE,
			electricity NUMERIC(10,2),
			gas NUMERIC(10,2),
			water NUMERIC(10,2),
			internet NUMERIC(10,2),
			other NUMERIC(10,2),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_bills_kind_date ON bills(kind, date);
	`)
	if err != nil {
		return err
	}

	// Create bill_split_users table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE bill_split_users (
			bill_id UUID NOT NULL,
			user_uid VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (bill_id, user_uid),
			CONSTRAINT fk_bill_split_users_bill
				FOREIGN KEY(bill_id)
				REFERENCES bills(id)
		);
	`)
	if err != nil {
		return err
	}

	return nil
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	// children before parents for the foreign keys
	for _, table := range []string{"bill_split_users", "bills", "destinations", "space_members", "spaces"} {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table+`;`); err != nil {
			return err
		}
	}
	return nil
}
