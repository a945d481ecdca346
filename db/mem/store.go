package mem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dbt "namiokai/db/db"
	"namiokai/ledger"
)

// inMemoryDBWrapper is an in-memory implementation of dbt.Store.
// Values are copied on the way in and out so callers never share state with it.
type inMemoryDBWrapper struct {
	bills  [ledger.KindCnt]map[string]ledger.Bill
	spaces map[string]ledger.Space
	users  map[string]ledger.User

	mu sync.RWMutex
	// now dates bills whose date cannot be parsed
	now func() time.Time
}

// NewInMemoryDBWrapper creates and returns a new, empty store.
func NewInMemoryDBWrapper() dbt.Store {
	db := &inMemoryDBWrapper{
		spaces: make(map[string]ledger.Space),
		users:  make(map[string]ledger.User),
		now:    time.Now,
	}
	for i := range db.bills {
		db.bills[i] = make(map[string]ledger.Bill)
	}
	return db
}

func (db *inMemoryDBWrapper) kindBills(kind ledger.Kind) (map[string]ledger.Bill, error) {
	if kind < 0 || kind >= ledger.KindCnt {
		return nil, fmt.Errorf("unknown bill kind %d", int(kind))
	}
	return db.bills[kind], nil
}

// InsertBill stores a copy of bill under a fresh document id.
func (db *inMemoryDBWrapper) InsertBill(_ context.Context, bill *ledger.Bill) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	bills, err := db.kindBills(bill.Kind)
	if err != nil {
		return err
	}
	bill.DocumentID = uuid.New().String()
	bill.SplitUsersUID = ledger.NormalizeUIDs(bill.SplitUsersUID)
	bills[bill.DocumentID] = bill.Clone()
	return nil
}

func (db *inMemoryDBWrapper) UpdateBill(_ context.Context, bill ledger.Bill) error {
	if bill.DocumentID == "" {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	bills, err := db.kindBills(bill.Kind)
	if err != nil {
		return err
	}
	if _, exists := bills[bill.DocumentID]; !exists {
		return fmt.Errorf("%s bill %s: %w", bill.Kind, bill.DocumentID, dbt.ErrNotFound)
	}
	bill.SplitUsersUID = ledger.NormalizeUIDs(bill.SplitUsersUID)
	bills[bill.DocumentID] = bill.Clone()
	return nil
}

func (db *inMemoryDBWrapper) DeleteBill(_ context.Context, bill ledger.Bill) error {
	if bill.DocumentID == "" {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	bills, err := db.kindBills(bill.Kind)
	if err != nil {
		return err
	}
	if _, exists := bills[bill.DocumentID]; !exists {
		return fmt.Errorf("%s bill %s: %w", bill.Kind, bill.DocumentID, dbt.ErrNotFound)
	}
	delete(bills, bill.DocumentID)
	return nil
}

func (db *inMemoryDBWrapper) GetBill(_ context.Context, kind ledger.Kind, documentID string) (ledger.Bill, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	bills, err := db.kindBills(kind)
	if err != nil {
		return ledger.Bill{}, err
	}
	bill, exists := bills[documentID]
	if !exists {
		return ledger.Bill{}, fmt.Errorf("%s bill %s: %w", kind, documentID, dbt.ErrNotFound)
	}
	return bill.Clone(), nil
}

func (db *inMemoryDBWrapper) GetBills(_ context.Context, kind ledger.Kind) ([]ledger.Bill, error) {
	return db.selectBills(kind, func(time.Time) bool { return true })
}

// GetBillsBetween returns bills dated within [from, to].
func (db *inMemoryDBWrapper) GetBillsBetween(_ context.Context, kind ledger.Kind, from, to time.Time) ([]ledger.Bill, error) {
	return db.selectBills(kind, func(t time.Time) bool {
		t = t.Truncate(time.Second)
		return !t.Before(from) && !t.After(to)
	})
}

func (db *inMemoryDBWrapper) selectBills(kind ledger.Kind, keep func(time.Time) bool) ([]ledger.Bill, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	bills, err := db.kindBills(kind)
	if err != nil {
		return nil, err
	}
	now := db.now()
	out := make([]ledger.Bill, 0, len(bills))
	for _, b := range bills {
		if keep(b.ParsedDate(now)) {
			out = append(out, b.Clone())
		}
	}
	// ties broken by id so repeated reads agree
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].ParsedDate(now), out[j].ParsedDate(now)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out, nil
}

func cloneSpace(s ledger.Space) ledger.Space {
	s.MemberIDs = append([]string(nil), s.MemberIDs...)
	s.Destinations = append([]ledger.Destination(nil), s.Destinations...)
	return s
}

// CreateSpace stores a copy of space under a fresh id.
func (db *inMemoryDBWrapper) CreateSpace(_ context.Context, space *ledger.Space) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	space.ID = uuid.New().String()
	space.MemberIDs = ledger.NormalizeUIDs(space.MemberIDs)
	db.spaces[space.ID] = cloneSpace(*space)
	return nil
}

func (db *inMemoryDBWrapper) GetSpace(_ context.Context, id string) (ledger.Space, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	space, exists := db.spaces[id]
	if !exists {
		return ledger.Space{}, fmt.Errorf("space %s: %w", id, dbt.ErrNotFound)
	}
	return cloneSpace(space), nil
}

// GetSpacesForUser returns the spaces uid is a member of, ordered by name.
func (db *inMemoryDBWrapper) GetSpacesForUser(_ context.Context, uid string) ([]ledger.Space, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []ledger.Space{}
	for _, s := range db.spaces {
		if s.HasMember(uid) {
			out = append(out, cloneSpace(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (db *inMemoryDBWrapper) UpdateSpace(_ context.Context, space ledger.Space) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.spaces[space.ID]; !exists {
		return fmt.Errorf("space %s: %w", space.ID, dbt.ErrNotFound)
	}
	space.MemberIDs = ledger.NormalizeUIDs(space.MemberIDs)
	db.spaces[space.ID] = cloneSpace(space)
	return nil
}

// DeleteSpace removes the space. Its bills are kept.
func (db *inMemoryDBWrapper) DeleteSpace(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.spaces[id]; !exists {
		return fmt.Errorf("space %s: %w", id, dbt.ErrNotFound)
	}
	delete(db.spaces, id)
	return nil
}

func (db *inMemoryDBWrapper) UpsertUser(_ context.Context, user ledger.User) error {
	if user.UID == "" {
		return fmt.Errorf("user without uid")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	user.SpaceIDs = append([]string(nil), user.SpaceIDs...)
	db.users[user.UID] = user
	return nil
}

// GetUsers returns every user ordered by uid.
func (db *inMemoryDBWrapper) GetUsers(_ context.Context) ([]ledger.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]ledger.User, 0, len(db.users))
	for _, u := range db.users {
		u.SpaceIDs = append([]string(nil), u.SpaceIDs...)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

// DataLoaderGetUsers returns the known users among uids; unknown ones are absent.
func (db *inMemoryDBWrapper) DataLoaderGetUsers(_ context.Context, uids []string) (map[string]ledger.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string]ledger.User, len(uids))
	for _, uid := range uids {
		if u, exists := db.users[uid]; exists {
			u.SpaceIDs = append([]string(nil), u.SpaceIDs...)
			out[uid] = u
		}
	}
	return out, nil
}
