package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCredit = "credit"
	AccountDebit  = "debit"
)

type Transaction struct {
	ID           int64
	TransactedAt time.Time
}

// Entry is one signed leg of a transaction. Entries of a transaction always
// sum to zero.
type Entry struct {
	ID            int64
	TransactionID int64
	WalletID      int64
	Account       string
	Amount        decimal.Decimal
}

// ConsumptionTarget is a non-expired acquisition batch that still has points
// left, ordered FIFO by the repository.
type ConsumptionTarget struct {
	AquisitionEntryID int64
	Remaining         decimal.Decimal
}
