package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	dbt "namiokai/db/db"
	"namiokai/debt"
	"namiokai/filter"
	"namiokai/ledger"
	"namiokai/mq/mq"
	"namiokai/period"
	"namiokai/settle"
	"namiokai/stream"
)

type handlers struct {
	svc *Services
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrIncompleteBill):
		status = http.StatusBadRequest
	case errors.Is(err, dbt.ErrNotFound):
		status = http.StatusNotFound
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// intQuery reads an optional integer query parameter.
func intQuery(c *gin.Context, name string, def int) (int, bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, true, nil
}

func (h *handlers) periods(c *gin.Context) {
	previous, _, err := intQuery(c, "previous", h.svc.PreviousCount)
	if err != nil || previous < 0 {
		badRequest(c, fmt.Errorf("previous must be a non-negative integer"))
		return
	}
	sel := h.svc.selection()
	c.JSON(http.StatusOK, gin.H{
		"current": sel.Current(),
		"periods": sel.Periods(previous),
	})
}

// first reads one snapshot of s and releases it.
func first[T any](ctx context.Context, open func(ctx context.Context) stream.Stream[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return stream.First(ctx, open(ctx))
}

// resolveSpace computes the debts of the :spaceId space for the ?offset period.
func (h *handlers) resolveSpace(c *gin.Context) (ledger.Space, period.Period, []debt.SpaceDebts, bool) {
	offset, _, err := intQuery(c, "offset", 0)
	if err != nil {
		badRequest(c, err)
		return ledger.Space{}, period.Period{}, nil, false
	}
	ctx := c.Request.Context()
	space, err := h.svc.Spaces.GetSpace(ctx, c.Param("spaceId"))
	if err != nil {
		abortWithError(c, err)
		return ledger.Space{}, period.Period{}, nil, false
	}
	p := h.svc.selection().AtOffset(offset)

	all, err := first(ctx, func(ctx context.Context) stream.Stream[[]debt.SpaceDebts] {
		return h.svc.Debts.Watch(ctx, stream.Of(ctx, []ledger.Space{space}), p)
	})
	if err != nil {
		abortWithError(c, err)
		return ledger.Space{}, period.Period{}, nil, false
	}
	return space, p, all, true
}

func (h *handlers) spaceDebts(c *gin.Context) {
	space, p, all, ok := h.resolveSpace(c)
	if !ok {
		return
	}
	space, debts := spaceFromSnapshot(all, space)
	view := newDebtView(space, p, debts, h.displayNames(c, debts))
	c.JSON(http.StatusOK, gin.H{
		"view":    view,
		"summary": debt.UserSummary(all, c.Query("uid")),
	})
}

func (h *handlers) spaceSettlement(c *gin.Context) {
	space, p, all, ok := h.resolveSpace(c)
	if !ok {
		return
	}
	space, debts := spaceFromSnapshot(all, space)
	plan, err := settle.Space(debt.SpaceDebts{Space: space, Period: p, Debts: debts}, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"period": p,
		"plan":   plan,
	})
}

func (h *handlers) displayNames(c *gin.Context, debts debt.Debts) map[string]string {
	loader := userLoader(c)
	if loader == nil {
		return nil
	}
	return loader.DisplayNames(c.Request.Context(), uids(debts))
}

func (h *handlers) spaceBills(c *gin.Context) {
	offset, hasOffset, err := intQuery(c, "offset", 0)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	spaceID := c.Param("spaceId")
	if _, err := h.svc.Spaces.GetSpace(ctx, spaceID); err != nil {
		abortWithError(c, err)
		return
	}

	var p period.Period
	if hasOffset {
		p = h.svc.selection().AtOffset(offset)
	}
	bills, err := first(ctx, func(ctx context.Context) stream.Stream[[]ledger.Bill] {
		if p.IsZero() {
			return h.svc.Repo.GetBills(ctx)
		}
		return h.svc.Repo.GetBillsInPeriod(ctx, p)
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	bySpace := filter.BySpace(bills)
	bySpace.Select(spaceID)
	inSpace := filter.Apply[ledger.Bill](bills, bySpace)

	byPayer := filter.ByPayer(inSpace)
	bySplitter := filter.BySplitter(inSpace)
	byKind := filter.ByKind()
	if v := c.Query("payer"); v != "" {
		byPayer.Select(v)
	}
	if v := c.Query("splitter"); v != "" {
		bySplitter.Select(v)
	}
	if v := c.Query("kind"); v != "" {
		k, err := ledger.ParseKind(v)
		if err != nil {
			badRequest(c, err)
			return
		}
		byKind.Select(k)
	}

	selected := stream.SortByDateDesc(filter.Apply[ledger.Bill](inSpace, byPayer, bySplitter, byKind))
	resp := gin.H{
		"bills":     selected,
		"payers":    byPayer.Values,
		"splitters": bySplitter.Values,
	}
	if !p.IsZero() {
		resp["period"] = p
	}
	c.JSON(http.StatusOK, resp)
}

// prepareBill normalizes an incoming bill the way the constructors do and
// validates it. A trip without a price is priced from its space's destination.
func (h *handlers) prepareBill(ctx context.Context, b ledger.Bill) (ledger.Bill, error) {
	switch b.Kind {
	case ledger.KindPurchase:
		if b.Purchase != nil {
			b = ledger.NewPurchase(b.Info, b.Purchase.ShoppingList, b.Purchase.Total)
		}
	case ledger.KindTrip:
		if b.Trip != nil && b.Trip.TripPricePerUser == 0 && b.SpaceID != "" {
			space, err := h.svc.Spaces.GetSpace(ctx, b.SpaceID)
			if err != nil {
				return b, err
			}
			dest, ok := space.Destination(b.Trip.TripDestination)
			if !ok {
				return b, fmt.Errorf("%w: destination", ledger.ErrIncompleteBill)
			}
			b = ledger.NewTrip(b.Info, dest)
		}
	case ledger.KindFlat:
		if b.Flat != nil {
			b = ledger.NewFlat(b.Info, b.Flat.RentTotal, b.Flat.TaxesTotal, b.Flat.Taxes)
		}
	}
	b.SplitUsersUID = ledger.NormalizeUIDs(b.SplitUsersUID)
	return b, b.Validate()
}

func (h *handlers) bindBill(c *gin.Context) (ledger.Bill, bool) {
	var b ledger.Bill
	if err := c.ShouldBindJSON(&b); err != nil {
		badRequest(c, err)
		return b, false
	}
	b, err := h.prepareBill(c.Request.Context(), b)
	if err != nil {
		abortWithError(c, err)
		return b, false
	}
	return b, true
}

func (h *handlers) createBill(c *gin.Context) {
	b, ok := h.bindBill(c)
	if !ok {
		return
	}
	if err := h.svc.Bills[b.Kind].Insert(c.Request.Context(), &b); err != nil {
		abortWithError(c, err)
		return
	}
	countBillWrite(b.Kind.String(), mq.ActionCreate)
	c.JSON(http.StatusCreated, b)
}

func (h *handlers) updateBill(c *gin.Context) {
	b, ok := h.bindBill(c)
	if !ok {
		return
	}
	b.DocumentID = c.Param("id")
	if err := h.svc.Bills[b.Kind].Update(c.Request.Context(), b); err != nil {
		abortWithError(c, err)
		return
	}
	countBillWrite(b.Kind.String(), mq.ActionUpdate)
	c.JSON(http.StatusOK, b)
}

func (h *handlers) deleteBill(c *gin.Context) {
	kind, err := ledger.ParseKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err)
		return
	}
	b := ledger.Bill{Info: ledger.Info{DocumentID: c.Param("id")}, Kind: kind}
	if err := h.svc.Bills[kind].Delete(c.Request.Context(), b); err != nil {
		abortWithError(c, err)
		return
	}
	countBillWrite(kind.String(), mq.ActionDelete)
	c.Status(http.StatusNoContent)
}

func (h *handlers) createSpace(c *gin.Context) {
	var space ledger.Space
	if err := c.ShouldBindJSON(&space); err != nil {
		badRequest(c, err)
		return
	}
	if space.Name == "" || len(space.MemberIDs) == 0 {
		badRequest(c, errors.New("a space needs a name and members"))
		return
	}
	if err := h.svc.Spaces.Create(c.Request.Context(), &space); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, space)
}

func (h *handlers) userSpaces(c *gin.Context) {
	spaces, err := h.svc.Spaces.SpacesForUser(c.Request.Context(), c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaces": spaces})
}

func (h *handlers) upsertUser(c *gin.Context) {
	var user ledger.User
	if err := c.ShouldBindJSON(&user); err != nil {
		badRequest(c, err)
		return
	}
	user.UID = c.Param("uid")
	if err := h.svc.Users.Upsert(c.Request.Context(), user); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
