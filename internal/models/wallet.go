package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClearingWalletID is the system-owned wallet that balances every transaction.
// It is seeded by the initial migration and never returned to callers.
const ClearingWalletID int64 = 0

const (
	TransactionTypeAquisition  = "aquisition"
	TransactionTypeConsumption = "consumption"
)

type Wallet struct {
	ID      int64
	Balance decimal.Decimal
}

// PointTransaction is one line of a wallet's history: all entries a single
// transaction produced on the same account side, summed.
type PointTransaction struct {
	Type         string
	TransactedAt time.Time
	Amount       decimal.Decimal
}

// ExpiringPoints is the remaining amount of one acquisition batch together
// with the date it stops being spendable.
type ExpiringPoints struct {
	ExpiresOn time.Time
	Amount    decimal.Decimal
}
