package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namiokai/config"
	"namiokai/db/mem"
	"namiokai/ledger"
	"namiokai/mq/goch"
	"namiokai/settle"
)

var testNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.Local)

func setupTest(t *testing.T) (*Services, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	queue := goch.NewChangeQueue()
	t.Cleanup(queue.Close)

	svc := NewServices(mem.NewInMemoryDBWrapper(), queue, &config.Config{
		DBMode:              config.DBModeMem,
		PeriodStartDay:      15,
		PeriodPreviousCount: 3,
	})
	svc.Now = func() time.Time { return testNow }
	return svc, NewRouter(svc, true)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSpace(t *testing.T, r http.Handler, members ...string) ledger.Space {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/spaces", ledger.Space{
		Name:         "flat",
		MemberIDs:    members,
		Destinations: []ledger.Destination{{Name: "airport", PriceAlone: 20, PriceWithOthers: 12}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var space ledger.Space
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &space))
	return space
}

func createBill(t *testing.T, r http.Handler, bill ledger.Bill) ledger.Bill {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/bills", bill)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got ledger.Bill
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestHealth(t *testing.T) {
	_, r := setupTest(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPeriods(t *testing.T) {
	_, r := setupTest(t)

	w := doJSON(t, r, http.MethodGet, "/periods?previous=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Current struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"current"`
		Periods []json.RawMessage `json:"periods"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Periods, 3)
	assert.True(t, strings.HasPrefix(resp.Current.Start, "2024-01-15"), resp.Current.Start)
	assert.True(t, strings.HasPrefix(resp.Current.End, "2024-02-14"), resp.Current.End)

	w = doJSON(t, r, http.MethodGet, "/periods?previous=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillWritesAndDebts(t *testing.T) {
	_, r := setupTest(t)
	space := createSpace(t, r, "a", "b", "c")

	createBill(t, r, ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-16T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b", "c"},
		SpaceID:       space.ID,
	}, "groceries", 30))

	// priced from the space's destination: two passengers share the rate
	trip := createBill(t, r, ledger.Bill{
		Info: ledger.Info{
			Date:          "2024-01-18T08:00:00",
			PaymasterUID:  "b",
			SplitUsersUID: []string{"a", "b"},
			SpaceID:       space.ID,
		},
		Kind: ledger.KindTrip,
		Trip: &ledger.Trip{TripDestination: "airport"},
	})
	assert.Equal(t, 12.0, trip.Trip.TripPricePerUser)

	// previous period, excluded at offset 0
	createBill(t, r, ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-10T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b"},
		SpaceID:       space.ID,
	}, "old", 100))

	w := doJSON(t, r, http.MethodGet, "/spaces/"+space.ID+"/debts?uid=b", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		View    DebtView `json:"view"`
		Summary struct {
			Owes float64 `json:"owes"`
			Owed float64 `json:"owed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.View.Debtors, 3)
	assert.Equal(t, "b", resp.View.Debtors[0].DebtorUID)
	assert.Equal(t, 10.0, resp.View.Debtors[0].Total)
	assert.Equal(t, "c", resp.View.Debtors[1].DebtorUID)
	assert.Equal(t, "a", resp.View.Debtors[2].DebtorUID)
	assert.Equal(t, 12.0, resp.View.Debtors[2].Total)

	w = doJSON(t, r, http.MethodGet, "/spaces/"+space.ID+"/debts?offset=-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.View.Debtors, 1)
	assert.Equal(t, 50.0, resp.View.Debtors[0].Total)
}

func TestSpaceSettlement(t *testing.T) {
	_, r := setupTest(t)
	space := createSpace(t, r, "a", "b", "c")

	createBill(t, r, ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-16T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b", "c"},
		SpaceID:       space.ID,
	}, "groceries", 30))
	createBill(t, r, ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-18T08:00:00",
		PaymasterUID:  "b",
		SplitUsersUID: []string{"a", "b"},
		SpaceID:       space.ID,
	}, "fuel", 24))

	var resp struct {
		Plan settle.Plan `json:"plan"`
	}
	w := doJSON(t, r, http.MethodGet, "/spaces/"+space.ID+"/settlement", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, space.ID, resp.Plan.SpaceID)
	assert.Equal(t, []settle.Transfer{
		{FromUID: "c", ToUID: "a", Amount: 8},
		{FromUID: "c", ToUID: "b", Amount: 2},
	}, resp.Plan.Transfers)

	w = doJSON(t, r, http.MethodGet, "/spaces/"+space.ID+"/settlement?offset=-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp.Plan = settle.Plan{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Plan.Transfers)

	w = doJSON(t, r, http.MethodGet, "/spaces/unknown/settlement", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBillValidation(t *testing.T) {
	_, r := setupTest(t)
	space := createSpace(t, r, "a", "b")

	w := doJSON(t, r, http.MethodPost, "/bills", ledger.NewPurchase(ledger.Info{
		Date:         "2024-01-16T10:00:00",
		PaymasterUID: "a",
		SpaceID:      space.ID,
	}, "groceries", 30))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "please fill all fields")

	w = doJSON(t, r, http.MethodPost, "/bills", ledger.Bill{
		Info: ledger.Info{PaymasterUID: "a", SplitUsersUID: []string{"b"}, SpaceID: space.ID},
		Kind: ledger.KindTrip,
		Trip: &ledger.Trip{TripDestination: "moon"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateDeleteBill(t *testing.T) {
	_, r := setupTest(t)
	space := createSpace(t, r, "a", "b")
	bill := createBill(t, r, ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-16T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b"},
		SpaceID:       space.ID,
	}, "groceries", 30))

	bill.Purchase.Total = 50
	w := doJSON(t, r, http.MethodPut, "/bills/"+bill.DocumentID, bill)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPut, "/bills/missing", bill)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/spaces/"+space.ID+"/bills?payer=a&kind=purchase", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Bills  []ledger.Bill `json:"bills"`
		Payers []string      `json:"payers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Bills, 1)
	assert.Equal(t, 50.0, list.Bills[0].Total())
	assert.Equal(t, []string{"a"}, list.Payers)

	w = doJSON(t, r, http.MethodGet, "/spaces/"+space.ID+"/bills?payer=b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Bills)

	w = doJSON(t, r, http.MethodDelete, "/bills/purchase/"+bill.DocumentID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodDelete, "/bills/purchase/"+bill.DocumentID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodDelete, "/bills/boat/x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpacesAndUsers(t *testing.T) {
	_, r := setupTest(t)
	space := createSpace(t, r, "a", "b")

	w := doJSON(t, r, http.MethodPost, "/spaces", ledger.Space{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/users/a", ledger.User{Name: "Ann"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/users/a/spaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Spaces []ledger.Space `json:"spaces"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Spaces, 1)
	assert.Equal(t, space.ID, resp.Spaces[0].ID)

	w = doJSON(t, r, http.MethodGet, "/spaces/unknown/debts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWatchSpaceDebts(t *testing.T) {
	svc, r := setupTest(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	space := ledger.Space{Name: "flat", MemberIDs: []string{"a", "b"}}
	require.NoError(t, svc.Spaces.Create(context.Background(), &space))
	require.NoError(t, svc.Users.Upsert(context.Background(), ledger.User{UID: "b", Name: "Bob"}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/spaces/" + space.ID + "/debts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wsMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	msg := read()
	require.NotNil(t, msg.View)
	assert.Empty(t, msg.View.Debtors)
	assert.Equal(t, "flat", msg.View.SpaceName)

	bill := ledger.NewPurchase(ledger.Info{
		Date:          "2024-01-16T10:00:00",
		PaymasterUID:  "a",
		SplitUsersUID: []string{"a", "b"},
		SpaceID:       space.ID,
	}, "groceries", 30)
	require.NoError(t, svc.Bills[ledger.KindPurchase].Insert(context.Background(), &bill))

	msg = read()
	require.NotNil(t, msg.View)
	require.Len(t, msg.View.Debtors, 1)
	assert.Equal(t, "Bob", msg.View.Debtors[0].DebtorName)
	assert.Equal(t, 15.0, msg.View.Debtors[0].Total)

	// a deleted space pushes an empty view and keeps the socket open
	require.NoError(t, svc.Spaces.Delete(context.Background(), space.ID))
	msg = read()
	assert.Empty(t, msg.Error)
	require.NotNil(t, msg.View)
	assert.Empty(t, msg.View.Debtors)
}
