package settle

// amounts below half a cent count as settled
const epsilon = 0.005

// Balance is the net position of one user across a set of debts.
type Balance struct {
	UID     string  // The user
	Receive float64 // Amount other users owe this user
	Pay     float64 // Amount this user owes other users
}

// Transfer is one payment that clears part of the debts.
type Transfer struct {
	FromUID string  `json:"fromUid"`
	ToUID   string  `json:"toUid"`
	Amount  float64 `json:"amount"`
}

// Plan is the list of transfers that settles a space.
type Plan struct {
	SpaceID   string     `json:"spaceId"`
	Transfers []Transfer `json:"transfers"`
}

// Strategy turns normalized balances into transfers.
type Strategy func(balances []Balance) ([]Transfer, error)
