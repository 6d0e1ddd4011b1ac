package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vmarkelov/pointwallet/internal/models"
)

// Wallet repository interface
type WalletRepo interface {
	// Create wallet with zero balance
	CreateWallet(ctx context.Context) (models.Wallet, error)

	// Get wallet by id
	// If wallet not found must return apperrors.ErrWalletNotFound
	GetWallet(ctx context.Context, walletID int64) (models.Wallet, error)

	// Get wallet by id locking its row until the surrounding transaction ends.
	// Serializes concurrent balance updates on the same wallet.
	GetWalletForUpdate(ctx context.Context, walletID int64) (models.Wallet, error)

	// Add delta (may be negative) to the wallet's cached balance
	UpdateBalance(ctx context.Context, walletID int64, delta decimal.Decimal) (models.Wallet, error)
}

// Ledger repository interface: append-only transactions, entries and the
// acquisition/consumption rows that tie them together
type LedgerRepo interface {
	// Create transaction row for one business event
	CreateTransaction(ctx context.Context, transactedAt time.Time) (models.Transaction, error)

	// Create one signed entry of the transaction
	CreateEntry(ctx context.Context, transactionID int64, walletID int64, account string, amount decimal.Decimal) (models.Entry, error)

	// Register the credit entry as an acquisition batch with a shelf life
	CreateAquisition(ctx context.Context, aquisitionEntryID int64, expiresOn time.Time) error

	// Link a debit entry to the acquisition batch it drew down
	CreateConsumption(ctx context.Context, aquisitionEntryID int64, consumptionEntryID int64) error

	// Latest history lines of the wallet, newest first, at most limit rows.
	// Entries of one transaction on the same account side collapse into one line.
	ListHistory(ctx context.Context, walletID int64, limit int) ([]models.PointTransaction, error)

	// Acquisitions of the wallet that are not expired at 'now' and still have
	// points remaining, oldest transaction first (FIFO, entry id breaks ties)
	ListConsumptionTargets(ctx context.Context, walletID int64, now time.Time) ([]models.ConsumptionTarget, error)

	// Same filtering as ListConsumptionTargets but ordered by expiry date ascending
	ListExpiringPoints(ctx context.Context, walletID int64, now time.Time) ([]models.ExpiringPoints, error)
}

type Storage interface {
	Wallet() WalletRepo
	Ledger() LedgerRepo

	// Run fn within single database transaction
	InTx(ctx context.Context, fn func(s Storage) error) error
}
