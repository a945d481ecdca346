package pg

import (
	"time"

	"github.com/google/uuid"
)

type BillModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind         int       `gorm:"not null;index:idx_bills_kind_date"`
	Date         time.Time `gorm:"not null;index:idx_bills_kind_date"`
	SpaceID      string    `gorm:"size:64;not null"`
	PaymasterUID string    `gorm:"size:128;not null"`
	CreatedByUID string    `gorm:"size:128"`
	// purchase
	ShoppingList string  `gorm:"type:text"`
	Total        float64 `gorm:"type:numeric(10,2)"`
	// trip
	TripDestination  string  `gorm:"size:255"`
	TripPricePerUser float64 `gorm:"type:numeric(10,2)"`
	// flat
	RentTotal  float64 `gorm:"type:numeric(10,2)"`
	TaxesTotal float64 `gorm:"type:numeric(10,2)"`
	HasTaxes   bool    `gorm:"not null;default:false"`
	// taxes breakdown, set when HasTaxes
	Electricity float64 `gorm:"type:numeric(10,2)"`
	Gas         float64 `gorm:"type:numeric(10,2)"`
	Water       float64 `gorm:"type:numeric(10,2)"`
	Internet    float64 `gorm:"type:numeric(10,2)"`
	Other       float64 `gorm:"type:numeric(10,2)"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for BillModel.
func (BillModel) TableName() string {
	return "bills"
}

type BillSplitUserModel struct {
	BillID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserUID string    `gorm:"size:128;primaryKey"`
	// meta data
	CreatedAt time.Time
}

func (BillSplitUserModel) TableName() string {
	return "bill_split_users"
}

type SpaceModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:255;not null"`
	CreatedByUID string    `gorm:"size:128"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for SpaceModel.
func (SpaceModel) TableName() string {
	return "spaces"
}

type SpaceMemberModel struct {
	SpaceID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserUID string    `gorm:"size:128;primaryKey"`
	// meta data
	CreatedAt time.Time
}

func (SpaceMemberModel) TableName() string {
	return "space_members"
}

type DestinationModel struct {
	SpaceID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name            string    `gorm:"size:255;primaryKey"`
	PriceAlone      float64   `gorm:"type:numeric(10,2);not null"`
	PriceWithOthers float64   `gorm:"type:numeric(10,2);not null"`
	Position        int       `gorm:"not null"`
}

func (DestinationModel) TableName() string {
	return "destinations"
}

type UserModel struct {
	UID      string `gorm:"size:128;primaryKey"`
	Name     string `gorm:"size:255;not null"`
	Email    string `gorm:"size:255"`
	PhotoURL string `gorm:"type:text"`
	Admin    bool   `gorm:"not null;default:false"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}
