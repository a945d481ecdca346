package web

import (
	"time"

	"namiokai/config"
	dbt "namiokai/db/db"
	"namiokai/db/live"
	"namiokai/debt"
	"namiokai/ledger"
	"namiokai/mq/mq"
	"namiokai/period"
	"namiokai/stream"
)

// Services is everything the handlers depend on.
type Services struct {
	Store  dbt.Store
	Queue  mq.ChangeQueue
	Bills  [ledger.KindCnt]*live.BillSource
	Repo   *stream.Repository
	Spaces *live.SpaceSource
	Users  *live.UserDirectory
	Debts  *debt.Service

	AnchorDay     int
	PreviousCount int
	Now           func() time.Time
}

func NewServices(store dbt.Store, queue mq.ChangeQueue, cfg *config.Config) *Services {
	repo, bills := live.NewRepository(store, queue)
	s := &Services{
		Store:         store,
		Queue:         queue,
		Bills:         bills,
		Repo:          repo,
		Spaces:        live.NewSpaceSource(store, queue),
		Users:         live.NewUserDirectory(store, queue),
		AnchorDay:     cfg.AnchorDay(),
		PreviousCount: cfg.PeriodPreviousCount,
		Now:           time.Now,
	}
	// read through s so a replaced clock reaches the debt engine
	s.Debts = debt.NewService(repo, debt.WithObserver(observeDebts), debt.WithClock(func() time.Time { return s.Now() }))
	return s
}

// selection is built per request so the anchor and clock are read fresh.
func (s *Services) selection() *period.Selection {
	return period.NewSelection(s.AnchorDay, s.Now)
}
