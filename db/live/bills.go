package live

import (
	"context"
	"fmt"
	"log/slog"

	dbt "namiokai/db/db"
	"namiokai/ledger"
	"namiokai/mq/mq"
	"namiokai/period"
	"namiokai/stream"
)

// BillSource is the live feed and write path of one bill kind.
type BillSource struct {
	kind  ledger.Kind
	db    dbt.BillDBWrapper
	queue mq.ChangeQueue
}

var _ stream.BillSource = (*BillSource)(nil)

func NewBillSource(kind ledger.Kind, db dbt.BillDBWrapper, queue mq.ChangeQueue) *BillSource {
	return &BillSource{kind: kind, db: db, queue: queue}
}

// NewRepository wires one live source per kind into a stream.Repository.
func NewRepository(db dbt.BillDBWrapper, queue mq.ChangeQueue) (*stream.Repository, [ledger.KindCnt]*BillSource) {
	var sources [ledger.KindCnt]*BillSource
	for _, k := range ledger.Kinds {
		sources[k] = NewBillSource(k, db, queue)
	}
	return stream.NewRepository(sources[ledger.KindPurchase], sources[ledger.KindTrip], sources[ledger.KindFlat]), sources
}

func (s *BillSource) Kind() ledger.Kind {
	return s.kind
}

func (s *BillSource) StreamAll(ctx context.Context) stream.Stream[[]ledger.Bill] {
	return watch(ctx, s.queue, mq.BillTopic(s.kind), func(ctx context.Context) ([]ledger.Bill, error) {
		return s.db.GetBills(ctx, s.kind)
	})
}

func (s *BillSource) StreamInPeriod(ctx context.Context, p period.Period) stream.Stream[[]ledger.Bill] {
	from, to := p.Bounds()
	return watch(ctx, s.queue, mq.BillTopic(s.kind), func(ctx context.Context) ([]ledger.Bill, error) {
		return s.db.GetBillsBetween(ctx, s.kind, from, to)
	})
}

func (s *BillSource) checkKind(bill ledger.Bill) error {
	if bill.Kind != s.kind {
		return fmt.Errorf("%s bill written to the %s source", bill.Kind, s.kind)
	}
	return nil
}

// Insert stores bill, assigning its DocumentID, and announces it.
func (s *BillSource) Insert(ctx context.Context, bill *ledger.Bill) error {
	if err := s.checkKind(*bill); err != nil {
		return err
	}
	if err := s.db.InsertBill(ctx, bill); err != nil {
		return err
	}
	s.publish(mq.ActionCreate, *bill)
	return nil
}

// Update is a no-op for a bill without a DocumentID.
func (s *BillSource) Update(ctx context.Context, bill ledger.Bill) error {
	if bill.DocumentID == "" {
		return nil
	}
	if err := s.checkKind(bill); err != nil {
		return err
	}
	if err := s.db.UpdateBill(ctx, bill); err != nil {
		return err
	}
	s.publish(mq.ActionUpdate, bill)
	return nil
}

// Delete is a no-op for a bill without a DocumentID.
func (s *BillSource) Delete(ctx context.Context, bill ledger.Bill) error {
	if bill.DocumentID == "" {
		return nil
	}
	if err := s.checkKind(bill); err != nil {
		return err
	}
	if err := s.db.DeleteBill(ctx, bill); err != nil {
		return err
	}
	s.publish(mq.ActionDelete, bill)
	return nil
}

// publish failures are logged only; the write itself has succeeded.
func (s *BillSource) publish(action mq.Action, bill ledger.Bill) {
	change := mq.Change{
		Topic:   mq.BillTopic(s.kind),
		Action:  action,
		ID:      bill.DocumentID,
		SpaceID: bill.SpaceID,
	}
	if err := s.queue.Publish(change); err != nil {
		slog.Warn("publishing bill change", "topic", change.Topic, "action", action, "id", change.ID, "error", err)
	}
}
