package db

import (
	"context"
	"errors"
	"time"

	"namiokai/ledger"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

type BillDBWrapper interface {
	// Create; assigns bill.DocumentID
	InsertBill(ctx context.Context, bill *ledger.Bill) error
	// Update and Delete are no-ops for a bill without a DocumentID
	UpdateBill(ctx context.Context, bill ledger.Bill) error
	DeleteBill(ctx context.Context, bill ledger.Bill) error
	// Read, date descending
	GetBill(ctx context.Context, kind ledger.Kind, documentID string) (ledger.Bill, error)
	GetBills(ctx context.Context, kind ledger.Kind) ([]ledger.Bill, error)
	GetBillsBetween(ctx context.Context, kind ledger.Kind, from, to time.Time) ([]ledger.Bill, error)
}

type SpaceDBWrapper interface {
	// Create; assigns space.ID
	CreateSpace(ctx context.Context, space *ledger.Space) error
	// Read
	GetSpace(ctx context.Context, id string) (ledger.Space, error)
	GetSpacesForUser(ctx context.Context, uid string) ([]ledger.Space, error)
	// Update
	UpdateSpace(ctx context.Context, space ledger.Space) error
	// Delete
	DeleteSpace(ctx context.Context, id string) error
}

type UserDBWrapper interface {
	UpsertUser(ctx context.Context, user ledger.User) error
	GetUsers(ctx context.Context) ([]ledger.User, error)
	// Data Loader
	DataLoaderGetUsers(ctx context.Context, uids []string) (map[string]ledger.User, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	BillDBWrapper
	SpaceDBWrapper
	UserDBWrapper
}
