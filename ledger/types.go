package ledger

import (
	"fmt"
	"strings"
)

// Kind is the discriminator of a Bill variant.
type Kind int

const (
	KindPurchase Kind = iota
	KindTrip
	KindFlat
	KindCnt
)

// Kinds lists every bill kind in a stable order.
var Kinds = [KindCnt]Kind{KindPurchase, KindTrip, KindFlat}

func (k Kind) String() string {
	switch k {
	case KindPurchase:
		return "purchase"
	case KindTrip:
		return "trip"
	case KindFlat:
		return "flat"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "purchase":
		return KindPurchase, nil
	case "trip":
		return KindTrip, nil
	case "flat":
		return KindFlat, nil
	}
	return 0, fmt.Errorf("unknown bill kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || k >= KindCnt {
		return nil, fmt.Errorf("unknown bill kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Info holds the attributes shared by every bill kind.
type Info struct {
	DocumentID    string   `json:"documentId"`    // empty until the bill is persisted
	Date          string   `json:"date"`          // ISO-8601 local date-time
	PaymasterUID  string   `json:"paymasterUid"`  // who fronted the money
	SplitUsersUID []string `json:"splitUsersUid"` // cost participants, payer may be included
	SpaceID       string   `json:"spaceId"`
	CreatedByUID  string   `json:"createdByUid"`
}

// Purchase is a shopping bill.
type Purchase struct {
	ShoppingList string  `json:"shoppingList"`
	Total        float64 `json:"total"`
}

// Trip is a car trip leg. TripPricePerUser is fixed when the bill is created
// from the destination's solo or shared rate.
type Trip struct {
	TripDestination  string  `json:"tripDestination"`
	TripPricePerUser float64 `json:"tripPricePerUser"`
}

// Taxes is the optional breakdown of a flat bill's utilities.
type Taxes struct {
	Electricity float64 `json:"electricity"`
	Gas         float64 `json:"gas"`
	Water       float64 `json:"water"`
	Internet    float64 `json:"internet"`
	Other       float64 `json:"other"`
}

// Sum adds up the breakdown.
func (t Taxes) Sum() float64 {
	return t.Electricity + t.Gas + t.Water + t.Internet + t.Other
}

// Flat is a rent and utilities bill.
type Flat struct {
	RentTotal  float64 `json:"rentTotal"`
	TaxesTotal float64 `json:"taxesTotal"`
	Taxes      *Taxes  `json:"taxes,omitempty"`
}

// Total is rent plus taxes.
func (f Flat) Total() float64 {
	return f.RentTotal + f.TaxesTotal
}

// Bill is a tagged variant over the three bill kinds. Exactly one of
// Purchase, Trip or Flat is set, selected by Kind.
type Bill struct {
	Info
	Kind     Kind      `json:"kind"`
	Purchase *Purchase `json:"purchase,omitempty"`
	Trip     *Trip     `json:"trip,omitempty"`
	Flat     *Flat     `json:"flat,omitempty"`
}

// Destination is a named trip endpoint owned by a space.
type Destination struct {
	Name            string  `json:"name"`
	PriceAlone      float64 `json:"priceAlone"`
	PriceWithOthers float64 `json:"priceWithOthers"`
}

// Space is a named group of users scoping bills and debts.
type Space struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	MemberIDs    []string      `json:"memberIds"`
	Destinations []Destination `json:"destinations"`
	CreatedByUID string        `json:"createdByUid"`
}

// HasMember reports whether uid belongs to the space.
func (s Space) HasMember(uid string) bool {
	for _, m := range s.MemberIDs {
		if m == uid {
			return true
		}
	}
	return false
}

// Destination looks a destination up by name.
func (s Space) Destination(name string) (Destination, bool) {
	for _, d := range s.Destinations {
		if d.Name == name {
			return d, true
		}
	}
	return Destination{}, false
}

// User is read-only reference data for display.
type User struct {
	UID      string   `json:"uid"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	PhotoURL string   `json:"photoUrl"`
	Admin    bool     `json:"admin"`
	SpaceIDs []string `json:"spaceIds"`
}

// UsersMap resolves user ids to users.
type UsersMap map[string]User

// NewUsersMap indexes users by uid.
func NewUsersMap(users []User) UsersMap {
	m := make(UsersMap, len(users))
	for _, u := range users {
		m[u.UID] = u
	}
	return m
}

// DisplayName returns the user's name, or the uid itself when unknown.
func (m UsersMap) DisplayName(uid string) string {
	if u, ok := m[uid]; ok && u.Name != "" {
		return u.Name
	}
	return uid
}
