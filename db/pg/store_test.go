package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbt "namiokai/db/db"
	"namiokai/ledger"
)

// initTest connects to the migrated database named by DATABASE_URL and
// empties it again when the test ends.
func initTest(t *testing.T) (*gorm.DB, dbt.Store) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	testDB, err := InitPostgresGORM(CreateDSN(os.Getenv("DATABASE_URL")))
	require.NoError(t, err, "failed to initialize test database")

	t.Cleanup(func() {
		// children first
		testDB.Exec("DELETE FROM bill_split_users;")
		testDB.Exec("DELETE FROM bills;")
		testDB.Exec("DELETE FROM space_members;")
		testDB.Exec("DELETE FROM destinations;")
		testDB.Exec("DELETE FROM spaces;")
		testDB.Exec("DELETE FROM users;")
		CloseGORM(testDB)
	})
	return testDB, NewGORMDBWrapper(testDB)
}

func TestWithSearchPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"host=db user=u", "host=db user=u search_path=namiokai"},
		{"postgres://u:p@db/x", "postgres://u:p@db/x?search_path=namiokai"},
		{"postgresql://u@db/x?sslmode=disable", "postgresql://u@db/x?sslmode=disable&search_path=namiokai"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withSearchPath(tt.in, "namiokai"))
	}
}

func TestCreateDSN(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "")

	assert.Equal(t, "postgres://u:p@db/x?search_path=namiokai", CreateDSN("postgres://u:p@db/x"))
	assert.Equal(t, DefaultDSN+" search_path=namiokai", CreateDSN(""))

	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("DATABASE_HOST", "pg")
	assert.Contains(t, CreateDSN(""), "host=pg user=postgres")
	assert.Equal(t, "postgres://u:p@db/x?search_path=namiokai", CreateDSN("postgres://u:p@db/x"))
}

func TestBillModelRoundTrip(t *testing.T) {
	flat := ledger.NewFlat(ledger.Info{
		DocumentID:    "ignored",
		Date:          "2024-03-01T08:30:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b"},
		SpaceID:       "s1",
	}, 800, 120.5, &ledger.Taxes{Electricity: 60, Gas: 20.5, Water: 40})

	model := toBillModel(flat, uuid.New())
	assert.True(t, model.HasTaxes)
	got := fromBillModel(model, []string{"a", "b"})

	assert.Equal(t, flat.Date, got.Date)
	assert.Equal(t, ledger.KindFlat, got.Kind)
	assert.Equal(t, flat.Flat, got.Flat)
	assert.Equal(t, flat.Total(), got.Total())
	assert.Nil(t, got.Purchase)
}

func TestInsertAndGetBills(t *testing.T) {
	_, store := initTest(t)
	ctx := context.Background()

	trip := ledger.NewTrip(ledger.Info{
		Date:          "2024-01-20T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"b", "a"},
		SpaceID:       "s1",
	}, ledger.Destination{Name: "airport", PriceAlone: 20, PriceWithOthers: 12})
	require.NoError(t, store.InsertBill(ctx, &trip))
	require.NotEmpty(t, trip.DocumentID)

	older := ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-02T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a"},
		SpaceID:       "s1",
	}, "bread", 3)
	require.NoError(t, store.InsertBill(ctx, &older))

	got, err := store.GetBill(ctx, ledger.KindTrip, trip.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.SplitUsersUID)
	assert.InDelta(t, 12, got.Trip.TripPricePerUser, 0.001)

	trips, err := store.GetBills(ctx, ledger.KindTrip)
	require.NoError(t, err)
	assert.Len(t, trips, 1, "bills are listed per kind")

	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 2, 14, 23, 59, 59, 0, time.Local)
	in, err := store.GetBillsBetween(ctx, ledger.KindPurchase, from, to)
	require.NoError(t, err)
	assert.Empty(t, in)

	_, err = store.GetBill(ctx, ledger.KindTrip, "not-a-uuid")
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestUpdateDeleteBill(t *testing.T) {
	_, store := initTest(t)
	ctx := context.Background()

	bill := ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-20T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b"},
		SpaceID:       "s1",
	}, "milk", 30)
	require.NoError(t, store.InsertBill(ctx, &bill))

	bill.Purchase.Total = 45
	bill.SplitUsersUID = []string{"a", "b", "c"}
	require.NoError(t, store.UpdateBill(ctx, bill))

	got, err := store.GetBill(ctx, ledger.KindPurchase, bill.DocumentID)
	require.NoError(t, err)
	assert.InDelta(t, 45, got.Total(), 0.001)
	assert.Equal(t, []string{"a", "b", "c"}, got.SplitUsersUID)

	assert.NoError(t, store.UpdateBill(ctx, ledger.Bill{Kind: ledger.KindPurchase}), "no document id is a no-op")

	require.NoError(t, store.DeleteBill(ctx, bill))
	assert.ErrorIs(t, store.DeleteBill(ctx, bill), dbt.ErrNotFound)
}

func TestSpacesAndUsers(t *testing.T) {
	_, store := initTest(t)
	ctx := context.Background()

	space := ledger.Space{
		Name:         "flat",
		MemberIDs:    []string{"b", "a"},
		Destinations: []ledger.Destination{{Name: "airport", PriceAlone: 20, PriceWithOthers: 12}},
	}
	require.NoError(t, store.CreateSpace(ctx, &space))

	got, err := store.GetSpace(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.MemberIDs)
	assert.Len(t, got.Destinations, 1)

	require.NoError(t, store.UpsertUser(ctx, ledger.User{UID: "a", Name: "Ann"}))
	require.NoError(t, store.UpsertUser(ctx, ledger.User{UID: "a", Name: "Anna"}))
	users, err := store.DataLoaderGetUsers(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Anna", users["a"].Name)
	assert.Equal(t, []string{space.ID}, users["a"].SpaceIDs)

	space.Name = "home"
	space.MemberIDs = []string{"a"}
	require.NoError(t, store.UpdateSpace(ctx, space))
	spaces, err := store.GetSpacesForUser(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, spaces)

	require.NoError(t, store.DeleteSpace(ctx, space.ID))
	_, err = store.GetSpace(ctx, space.ID)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}
