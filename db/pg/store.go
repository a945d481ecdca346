package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbt "namiokai/db/db"
	"namiokai/ledger"
)

// GORMDBWrapper is a GORM-based PostgreSQL implementation of dbt.Store.
type GORMDBWrapper struct {
	db *gorm.DB
}

// NewGORMDBWrapper creates and returns a new instance of GORMDBWrapper.
func NewGORMDBWrapper(db *gorm.DB) dbt.Store {
	return &GORMDBWrapper{
		db: db,
	}
}

func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %s: %w", kind, id, dbt.ErrNotFound)
	}
	return parsed, nil
}

func toBillModel(bill ledger.Bill, id uuid.UUID) BillModel {
	date, err := ledger.ParseDate(bill.Date)
	if err != nil {
		date = time.Now()
	}
	m := BillModel{
		ID:           id,
		Kind:         int(bill.Kind),
		Date:         date,
		SpaceID:      bill.SpaceID,
		PaymasterUID: bill.PaymasterUID,
		CreatedByUID: bill.CreatedByUID,
	}
	switch bill.Kind {
	case ledger.KindPurchase:
		if bill.Purchase != nil {
			m.ShoppingList = bill.Purchase.ShoppingList
			m.Total = bill.Purchase.Total
		}
	case ledger.KindTrip:
		if bill.Trip != nil {
			m.TripDestination = bill.Trip.TripDestination
			m.TripPricePerUser = bill.Trip.TripPricePerUser
		}
	case ledger.KindFlat:
		if bill.Flat != nil {
			m.RentTotal = bill.Flat.RentTotal
			m.TaxesTotal = bill.Flat.TaxesTotal
			if t := bill.Flat.Taxes; t != nil {
				m.HasTaxes = true
				m.Electricity, m.Gas, m.Water, m.Internet, m.Other = t.Electricity, t.Gas, t.Water, t.Internet, t.Other
			}
		}
	}
	return m
}

func fromBillModel(m BillModel, split []string) ledger.Bill {
	info := ledger.Info{
		DocumentID:    m.ID.String(),
		Date:          ledger.FormatDate(m.Date.In(time.Local)),
		PaymasterUID:  m.PaymasterUID,
		SplitUsersUID: split,
		SpaceID:       m.SpaceID,
		CreatedByUID:  m.CreatedByUID,
	}
	bill := ledger.Bill{Info: info, Kind: ledger.Kind(m.Kind)}
	switch bill.Kind {
	case ledger.KindPurchase:
		bill.Purchase = &ledger.Purchase{ShoppingList: m.ShoppingList, Total: m.Total}
	case ledger.KindTrip:
		bill.Trip = &ledger.Trip{TripDestination: m.TripDestination, TripPricePerUser: m.TripPricePerUser}
	case ledger.KindFlat:
		bill.Flat = &ledger.Flat{RentTotal: m.RentTotal, TaxesTotal: m.TaxesTotal}
		if m.HasTaxes {
			bill.Flat.Taxes = &ledger.Taxes{
				Electricity: m.Electricity,
				Gas:         m.Gas,
				Water:       m.Water,
				Internet:    m.Internet,
				Other:       m.Other,
			}
		}
	}
	return bill
}

func splitUserModels(billID uuid.UUID, uids []string) []BillSplitUserModel {
	out := make([]BillSplitUserModel, 0, len(uids))
	for _, uid := range ledger.NormalizeUIDs(uids) {
		out = append(out, BillSplitUserModel{BillID: billID, UserUID: uid})
	}
	return out
}

// InsertBill creates the bill and its split users in one transaction.
func (pgdb *GORMDBWrapper) InsertBill(ctx context.Context, bill *ledger.Bill) error {
	id := uuid.New()
	model := toBillModel(*bill, id)
	splits := splitUserModels(id, bill.SplitUsersUID)

	err := pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(splits) > 0 {
			if err := tx.Create(&splits).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s bill: %w", bill.Kind, err)
	}
	bill.DocumentID = id.String()
	bill.SplitUsersUID = ledger.NormalizeUIDs(bill.SplitUsersUID)
	return nil
}

// UpdateBill overwrites every column and replaces the split users.
func (pgdb *GORMDBWrapper) UpdateBill(ctx context.Context, bill ledger.Bill) error {
	if bill.DocumentID == "" {
		return nil
	}
	id, err := parseID(bill.Kind.String()+" bill", bill.DocumentID)
	if err != nil {
		return err
	}
	model := toBillModel(bill, id)

	return pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&BillModel{}).
			Where("id = ? AND kind = ?", id, int(bill.Kind)).
			Select("*").Omit("id", "created_at").
			Updates(&model)
		if result.Error != nil {
			return fmt.Errorf("failed to update bill %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%s bill %s: %w", bill.Kind, id, dbt.ErrNotFound)
		}
		if err := tx.Where("bill_id = ?", id).Delete(&BillSplitUserModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear split users of bill %s: %w", id, err)
		}
		if splits := splitUserModels(id, bill.SplitUsersUID); len(splits) > 0 {
			if err := tx.Create(&splits).Error; err != nil {
				return fmt.Errorf("failed to store split users of bill %s: %w", id, err)
			}
		}
		return nil
	})
}

func (pgdb *GORMDBWrapper) DeleteBill(ctx context.Context, bill ledger.Bill) error {
	if bill.DocumentID == "" {
		return nil
	}
	id, err := parseID(bill.Kind.String()+" bill", bill.DocumentID)
	if err != nil {
		return err
	}

	return pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bill_id = ?", id).Delete(&BillSplitUserModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete split users of bill %s: %w", id, err)
		}
		result := tx.Where("id = ? AND kind = ?", id, int(bill.Kind)).Delete(&BillModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete bill %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%s bill %s: %w", bill.Kind, id, dbt.ErrNotFound)
		}
		return nil
	})
}

func (pgdb *GORMDBWrapper) GetBill(ctx context.Context, kind ledger.Kind, documentID string) (ledger.Bill, error) {
	id, err := parseID(kind.String()+" bill", documentID)
	if err != nil {
		return ledger.Bill{}, err
	}
	var model BillModel
	result := pgdb.db.WithContext(ctx).First(&model, "id = ? AND kind = ?", id, int(kind))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ledger.Bill{}, fmt.Errorf("%s bill %s: %w", kind, id, dbt.ErrNotFound)
		}
		return ledger.Bill{}, fmt.Errorf("failed to get bill %s: %w", id, result.Error)
	}
	bills, err := pgdb.withSplitUsers(ctx, []BillModel{model})
	if err != nil {
		return ledger.Bill{}, err
	}
	return bills[0], nil
}

func (pgdb *GORMDBWrapper) GetBills(ctx context.Context, kind ledger.Kind) ([]ledger.Bill, error) {
	var models []BillModel
	result := pgdb.db.WithContext(ctx).
		Where("kind = ?", int(kind)).
		Order("date DESC, id").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get %s bills: %w", kind, result.Error)
	}
	return pgdb.withSplitUsers(ctx, models)
}

// GetBillsBetween returns bills dated within [from, to].
func (pgdb *GORMDBWrapper) GetBillsBetween(ctx context.Context, kind ledger.Kind, from, to time.Time) ([]ledger.Bill, error) {
	var models []BillModel
	result := pgdb.db.WithContext(ctx).
		Where("kind = ? AND date >= ? AND date <= ?", int(kind), from, to).
		Order("date DESC, id").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get %s bills between %s and %s: %w", kind, from, to, result.Error)
	}
	return pgdb.withSplitUsers(ctx, models)
}

func (pgdb *GORMDBWrapper) withSplitUsers(ctx context.Context, models []BillModel) ([]ledger.Bill, error) {
	bills := make([]ledger.Bill, 0, len(models))
	if len(models) == 0 {
		return bills, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var splits []BillSplitUserModel
	if err := pgdb.db.WithContext(ctx).Where("bill_id IN ?", ids).Order("user_uid").Find(&splits).Error; err != nil {
		return nil, fmt.Errorf("failed to get split users: %w", err)
	}
	byBill := make(map[uuid.UUID][]string, len(models))
	for _, s := range splits {
		byBill[s.BillID] = append(byBill[s.BillID], s.UserUID)
	}
	for _, m := range models {
		split := byBill[m.ID]
		if split == nil {
			split = []string{}
		}
		bills = append(bills, fromBillModel(m, split))
	}
	return bills, nil
}

func spaceChildren(id uuid.UUID, space ledger.Space) ([]SpaceMemberModel, []DestinationModel) {
	members := make([]SpaceMemberModel, 0, len(space.MemberIDs))
	for _, uid := range ledger.NormalizeUIDs(space.MemberIDs) {
		members = append(members, SpaceMemberModel{SpaceID: id, UserUID: uid})
	}
	destinations := make([]DestinationModel, 0, len(space.Destinations))
	for i, d := range space.Destinations {
		destinations = append(destinations, DestinationModel{
			SpaceID:         id,
			Name:            d.Name,
			PriceAlone:      d.PriceAlone,
			PriceWithOthers: d.PriceWithOthers,
			Position:        i,
		})
	}
	return members, destinations
}

func createSpaceChildren(tx *gorm.DB, members []SpaceMemberModel, destinations []DestinationModel) error {
	if len(members) > 0 {
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
	}
	if len(destinations) > 0 {
		if err := tx.Create(&destinations).Error; err != nil {
			return err
		}
	}
	return nil
}

func (pgdb *GORMDBWrapper) CreateSpace(ctx context.Context, space *ledger.Space) error {
	id := uuid.New()
	model := SpaceModel{ID: id, Name: space.Name, CreatedByUID: space.CreatedByUID}
	members, destinations := spaceChildren(id, *space)

	err := pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return createSpaceChildren(tx, members, destinations)
	})
	if err != nil {
		return fmt.Errorf("failed to create space %q: %w", space.Name, err)
	}
	space.ID = id.String()
	space.MemberIDs = ledger.NormalizeUIDs(space.MemberIDs)
	return nil
}

func (pgdb *GORMDBWrapper) GetSpace(ctx context.Context, id string) (ledger.Space, error) {
	spaceID, err := parseID("space", id)
	if err != nil {
		return ledger.Space{}, err
	}
	var model SpaceModel
	result := pgdb.db.WithContext(ctx).First(&model, "id = ?", spaceID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ledger.Space{}, fmt.Errorf("space %s: %w", id, dbt.ErrNotFound)
		}
		return ledger.Space{}, fmt.Errorf("failed to get space %s: %w", id, result.Error)
	}
	spaces, err := pgdb.withSpaceChildren(ctx, []SpaceModel{model})
	if err != nil {
		return ledger.Space{}, err
	}
	return spaces[0], nil
}

// GetSpacesForUser returns the spaces uid is a member of, ordered by name.
func (pgdb *GORMDBWrapper) GetSpacesForUser(ctx context.Context, uid string) ([]ledger.Space, error) {
	var models []SpaceModel
	result := pgdb.db.WithContext(ctx).
		Joins("JOIN space_members ON space_members.space_id = spaces.id").
		Where("space_members.user_uid = ?", uid).
		Order("spaces.name, spaces.id").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get spaces for user %s: %w", uid, result.Error)
	}
	return pgdb.withSpaceChildren(ctx, models)
}

func (pgdb *GORMDBWrapper) withSpaceChildren(ctx context.Context, models []SpaceModel) ([]ledger.Space, error) {
	spaces := make([]ledger.Space, 0, len(models))
	if len(models) == 0 {
		return spaces, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	var members []SpaceMemberModel
	if err := pgdb.db.WithContext(ctx).Where("space_id IN ?", ids).Order("user_uid").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to get space members: %w", err)
	}
	var destinations []DestinationModel
	if err := pgdb.db.WithContext(ctx).Where("space_id IN ?", ids).Order("position").Find(&destinations).Error; err != nil {
		return nil, fmt.Errorf("failed to get destinations: %w", err)
	}

	memberIDs := make(map[uuid.UUID][]string, len(models))
	for _, m := range members {
		memberIDs[m.SpaceID] = append(memberIDs[m.SpaceID], m.UserUID)
	}
	spaceDestinations := make(map[uuid.UUID][]ledger.Destination, len(models))
	for _, d := range destinations {
		spaceDestinations[d.SpaceID] = append(spaceDestinations[d.SpaceID], ledger.Destination{
			Name:            d.Name,
			PriceAlone:      d.PriceAlone,
			PriceWithOthers: d.PriceWithOthers,
		})
	}

	for _, m := range models {
		spaces = append(spaces, ledger.Space{
			ID:           m.ID.String(),
			Name:         m.Name,
			MemberIDs:    memberIDs[m.ID],
			Destinations: spaceDestinations[m.ID],
			CreatedByUID: m.CreatedByUID,
		})
	}
	return spaces, nil
}

// UpdateSpace renames the space and replaces its members and destinations.
func (pgdb *GORMDBWrapper) UpdateSpace(ctx context.Context, space ledger.Space) error {
	id, err := parseID("space", space.ID)
	if err != nil {
		return err
	}
	members, destinations := spaceChildren(id, space)

	return pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&SpaceModel{}).Where("id = ?", id).Updates(map[string]any{
			"name":           space.Name,
			"created_by_uid": space.CreatedByUID,
			"updated_at":     time.Now(),
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update space %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("space %s: %w", id, dbt.ErrNotFound)
		}
		if err := tx.Where("space_id = ?", id).Delete(&SpaceMemberModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("space_id = ?", id).Delete(&DestinationModel{}).Error; err != nil {
			return err
		}
		return createSpaceChildren(tx, members, destinations)
	})
}

// DeleteSpace removes the space with its members and destinations. Its bills are kept.
func (pgdb *GORMDBWrapper) DeleteSpace(ctx context.Context, id string) error {
	spaceID, err := parseID("space", id)
	if err != nil {
		return err
	}

	return pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("space_id = ?", spaceID).Delete(&SpaceMemberModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("space_id = ?", spaceID).Delete(&DestinationModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", spaceID).Delete(&SpaceModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete space %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("space %s: %w", id, dbt.ErrNotFound)
		}
		return nil
	})
}

func (pgdb *GORMDBWrapper) UpsertUser(ctx context.Context, user ledger.User) error {
	if user.UID == "" {
		return errors.New("user without uid")
	}
	model := UserModel{
		UID:      user.UID,
		Name:     user.Name,
		Email:    user.Email,
		PhotoURL: user.PhotoURL,
		Admin:    user.Admin,
	}
	result := pgdb.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "photo_url", "admin", "updated_at"}),
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.UID, result.Error)
	}
	return nil
}

// GetUsers returns every user ordered by uid, with the spaces they belong to.
func (pgdb *GORMDBWrapper) GetUsers(ctx context.Context) ([]ledger.User, error) {
	var models []UserModel
	if err := pgdb.db.WithContext(ctx).Order("uid").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return pgdb.withSpaceIDs(ctx, models)
}

// DataLoaderGetUsers returns the known users among uids; unknown ones are absent.
func (pgdb *GORMDBWrapper) DataLoaderGetUsers(ctx context.Context, uids []string) (map[string]ledger.User, error) {
	var models []UserModel
	if err := pgdb.db.WithContext(ctx).Where("uid IN ?", uids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	users, err := pgdb.withSpaceIDs(ctx, models)
	if err != nil {
		return nil, err
	}
	return ledger.NewUsersMap(users), nil
}

func (pgdb *GORMDBWrapper) withSpaceIDs(ctx context.Context, models []UserModel) ([]ledger.User, error) {
	users := make([]ledger.User, 0, len(models))
	if len(models) == 0 {
		return users, nil
	}
	uids := make([]string, len(models))
	for i, m := range models {
		uids[i] = m.UID
	}
	var members []SpaceMemberModel
	if err := pgdb.db.WithContext(ctx).Where("user_uid IN ?", uids).Order("space_id").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to get user spaces: %w", err)
	}
	spaceIDs := make(map[string][]string, len(models))
	for _, m := range members {
		spaceIDs[m.UserUID] = append(spaceIDs[m.UserUID], m.SpaceID.String())
	}
	for _, m := range models {
		users = append(users, ledger.User{
			UID:      m.UID,
			Name:     m.Name,
			Email:    m.Email,
			PhotoURL: m.PhotoURL,
			Admin:    m.Admin,
			SpaceIDs: spaceIDs[m.UID],
		})
	}
	return users, nil
}
