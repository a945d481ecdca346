package db

import (
	"context"

	"github.com/vikstrous/dataloadgen"

	"namiokai/ledger"
)

type dataLoaderKey string

const (
	DataLoaderKeyUsers dataLoaderKey = "user_data_loader"
)

// UserDataLoader batches user lookups made while rendering one request.
//
// The web middleware stores one per gin context under DataLoaderKeyUsers:
//
//	v, _ := c.Get(string(db.DataLoaderKeyUsers))
//	loader, ok := v.(*db.UserDataLoader)
type UserDataLoader struct {
	GetUser *dataloadgen.Loader[string, ledger.User]
}

func NewUserDataLoader(dbWrapper UserDBWrapper) *UserDataLoader {
	return &UserDataLoader{
		GetUser: dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetUsers),
	}
}

// DisplayNames resolves uids to display names. Unknown users, and any lookup
// failure, fall back to the uid.
func (l *UserDataLoader) DisplayNames(ctx context.Context, uids []string) map[string]string {
	names := make(map[string]string, len(uids))
	thunks := make([]func() (ledger.User, error), 0, len(uids))
	for _, uid := range uids {
		thunks = append(thunks, l.GetUser.LoadThunk(ctx, uid))
	}
	users := make([]ledger.User, 0, len(uids))
	for _, thunk := range thunks {
		if u, err := thunk(); err == nil {
			users = append(users, u)
		}
	}
	m := ledger.NewUsersMap(users)
	for _, uid := range uids {
		names[uid] = m.DisplayName(uid)
	}
	return names
}
