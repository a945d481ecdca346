package mem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "namiokai/db/db"
	"namiokai/db/mem"
	"namiokai/ledger"
)

// setupTest creates a new in-memory store for each test.
func setupTest() dbt.Store {
	return mem.NewInMemoryDBWrapper()
}

func purchase(date, payer string, total float64, split ...string) ledger.Bill {
	return ledger.NewPurchase(ledger.Info{
		Date:          date,
		PaymasterUID:  payer,
		SplitUsersUID: split,
		SpaceID:       "s1",
	}, "milk", total)
}

func TestInsertBill(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	bill := purchase("2024-01-20T10:00:00", "a", 30, "b", "a", "b")
	require.NoError(t, db.InsertBill(ctx, &bill))
	require.NotEmpty(t, bill.DocumentID, "InsertBill should assign a document id")

	got, err := db.GetBill(ctx, ledger.KindPurchase, bill.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.SplitUsersUID)
	assert.Equal(t, 30.0, got.Total())

	// the stored copy is independent of the caller's value
	bill.Purchase.Total = 99
	got, err = db.GetBill(ctx, ledger.KindPurchase, bill.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Total())

	_, err = db.GetBill(ctx, ledger.KindTrip, bill.DocumentID)
	assert.ErrorIs(t, err, dbt.ErrNotFound, "bills are stored per kind")
}

func TestUpdateDeleteBill(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	bill := purchase("2024-01-20T10:00:00", "a", 30, "a", "b")
	require.NoError(t, db.InsertBill(ctx, &bill))

	bill.Purchase.Total = 40
	require.NoError(t, db.UpdateBill(ctx, bill))
	got, err := db.GetBill(ctx, ledger.KindPurchase, bill.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.Total())

	// no document id: silently ignored
	assert.NoError(t, db.UpdateBill(ctx, purchase("2024-01-20T10:00:00", "a", 1, "b")))
	assert.NoError(t, db.DeleteBill(ctx, ledger.Bill{Kind: ledger.KindPurchase}))

	missing := bill
	missing.DocumentID = "nope"
	assert.ErrorIs(t, db.UpdateBill(ctx, missing), dbt.ErrNotFound)

	require.NoError(t, db.DeleteBill(ctx, bill))
	_, err = db.GetBill(ctx, ledger.KindPurchase, bill.DocumentID)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
	assert.ErrorIs(t, db.DeleteBill(ctx, bill), dbt.ErrNotFound)
}

func TestGetBillsOrderAndRange(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	dates := []string{
		"2024-01-14T23:59:59",
		"2024-02-14T23:59:59",
		"2024-01-15T00:00:00",
		"2024-02-15T00:00:00",
	}
	for _, d := range dates {
		b := purchase(d, "a", 10, "a", "b")
		require.NoError(t, db.InsertBill(ctx, &b))
	}

	all, err := db.GetBills(ctx, ledger.KindPurchase)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2024-02-15T00:00:00", all[0].Date)
	assert.Equal(t, "2024-01-14T23:59:59", all[3].Date)

	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 2, 14, 23, 59, 59, 0, time.Local)
	in, err := db.GetBillsBetween(ctx, ledger.KindPurchase, from, to)
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, "2024-02-14T23:59:59", in[0].Date)
	assert.Equal(t, "2024-01-15T00:00:00", in[1].Date)

	_, err = db.GetBills(ctx, ledger.KindCnt)
	assert.Error(t, err)
}

func TestSpaces(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	flat := ledger.Space{Name: "flat", MemberIDs: []string{"b", "a"}}
	club := ledger.Space{Name: "club", MemberIDs: []string{"a"}}
	require.NoError(t, db.CreateSpace(ctx, &flat))
	require.NoError(t, db.CreateSpace(ctx, &club))
	require.NotEmpty(t, flat.ID)

	got, err := db.GetSpace(ctx, flat.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.MemberIDs)

	spaces, err := db.GetSpacesForUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, spaces, 2)
	assert.Equal(t, "club", spaces[0].Name)

	spaces, err = db.GetSpacesForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, spaces)

	flat.Destinations = []ledger.Destination{{Name: "airport", PriceAlone: 20, PriceWithOthers: 12}}
	require.NoError(t, db.UpdateSpace(ctx, flat))
	got, err = db.GetSpace(ctx, flat.ID)
	require.NoError(t, err)
	d, ok := got.Destination("airport")
	assert.True(t, ok)
	assert.Equal(t, 12.0, d.PriceWithOthers)

	require.NoError(t, db.DeleteSpace(ctx, flat.ID))
	_, err = db.GetSpace(ctx, flat.ID)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
	assert.ErrorIs(t, db.UpdateSpace(ctx, flat), dbt.ErrNotFound)
}

func TestUsersAndDataLoader(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	require.NoError(t, db.UpsertUser(ctx, ledger.User{UID: "b", Name: "Bob"}))
	require.NoError(t, db.UpsertUser(ctx, ledger.User{UID: "a", Name: "Ann"}))
	require.NoError(t, db.UpsertUser(ctx, ledger.User{UID: "a", Name: "Anna"}))
	assert.Error(t, db.UpsertUser(ctx, ledger.User{Name: "ghost"}))

	users, err := db.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Anna", users[0].Name)

	found, err := db.DataLoaderGetUsers(ctx, []string{"a", "zzz"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	loader := dbt.NewUserDataLoader(db)
	names := loader.DisplayNames(ctx, []string{"a", "b", "zzz"})
	assert.Equal(t, map[string]string{"a": "Anna", "b": "Bob", "zzz": "zzz"}, names)
}
