package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vmarkelov/pointwallet/internal/apperrors"
	"github.com/vmarkelov/pointwallet/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (transacted_at)
VALUES ($1)
RETURNING id, transacted_at
`

func (r *LedgerRepo) CreateTransaction(ctx context.Context, transactedAt time.Time) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, createTransaction, transactedAt)
	t, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Transaction, error) {
		var t models.Transaction
		err := row.Scan(&t.ID, &t.TransactedAt)
		return t, err
	})
	if err != nil {
		return t, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

const createEntry = `-- name: CreateEntry
INSERT INTO entries (transaction_id, wallet_id, account, amount)
VALUES ($1, $2, $3, $4)
RETURNING id, transaction_id, wallet_id, account, amount
`

func (r *LedgerRepo) CreateEntry(ctx context.Context, transactionID int64, walletID int64, account string, amount decimal.Decimal) (models.Entry, error) {
	rows, _ := r.DB.Query(ctx, createEntry, transactionID, walletID, account, amount)
	e, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Entry, error) {
		var e models.Entry
		err := row.Scan(&e.ID, &e.TransactionID, &e.WalletID, &e.Account, &e.Amount)
		return e, err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation && pgErr.ConstraintName == "entries_wallet_id_fkey" {
			return e, apperrors.ErrWalletNotFound
		}

		return e, fmt.Errorf("db error: %w", err)
	}

	return e, nil
}

const createAquisition = `-- name: CreateAquisition
INSERT INTO aquisitions (aquisition_entry_id, expires_on)
VALUES ($1, $2)
`

func (r *LedgerRepo) CreateAquisition(ctx context.Context, aquisitionEntryID int64, expiresOn time.Time) error {
	_, err := r.DB.Exec(ctx, createAquisition, aquisitionEntryID, expiresOn)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const createConsumption = `-- name: CreateConsumption
INSERT INTO consumptions (aquisition_entry_id, consumption_entry_id)
VALUES ($1, $2)
`

func (r *LedgerRepo) CreateConsumption(ctx context.Context, aquisitionEntryID int64, consumptionEntryID int64) error {
	_, err := r.DB.Exec(ctx, createConsumption, aquisitionEntryID, consumptionEntryID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// One line per (transaction, account side): a consumption that drew from
// several acquisition batches produced several debit entries but reads as a
// single history line.
const listHistory = `-- name: ListHistory
SELECT t.transacted_at, e.account, SUM(e.amount) AS amount
FROM entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE e.wallet_id = $1
GROUP BY t.id, t.transacted_at, e.account
ORDER BY t.transacted_at DESC, t.id DESC
LIMIT $2
`

func (r *LedgerRepo) ListHistory(ctx context.Context, walletID int64, limit int) ([]models.PointTransaction, error) {
	rows, _ := r.DB.Query(ctx, listHistory, walletID, limit)
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PointTransaction, error) {
		var pt models.PointTransaction
		var account string
		err := row.Scan(&pt.TransactedAt, &account, &pt.Amount)

		// History lines report point volumes, signs are a ledger detail
		pt.Amount = pt.Amount.Abs()
		pt.Type = models.TransactionTypeConsumption
		if account == models.AccountCredit {
			pt.Type = models.TransactionTypeAquisition
		}

		return pt, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return history, nil
}

// Remaining amount of a batch is its credited amount minus everything already
// consumed from it. Consumption entries carry negative amounts on the wallet,
// so adding them subtracts the draws. Oldest grant first, entry id breaks
// timestamp ties.
const listConsumptionTargets = `-- name: ListConsumptionTargets
SELECT a.aquisition_entry_id,
       ae.amount + COALESCE(SUM(ce.amount), 0) AS remaining
FROM aquisitions a
JOIN entries ae ON ae.id = a.aquisition_entry_id
JOIN transactions t ON t.id = ae.transaction_id
LEFT JOIN consumptions c ON c.aquisition_entry_id = a.aquisition_entry_id
LEFT JOIN entries ce ON ce.id = c.consumption_entry_id
WHERE ae.wallet_id = $1
  AND a.expires_on >= $2
GROUP BY a.aquisition_entry_id, ae.amount, t.transacted_at
HAVING ae.amount + COALESCE(SUM(ce.amount), 0) > 0
ORDER BY t.transacted_at ASC, a.aquisition_entry_id ASC
`

func (r *LedgerRepo) ListConsumptionTargets(ctx context.Context, walletID int64, now time.Time) ([]models.ConsumptionTarget, error) {
	rows, _ := r.DB.Query(ctx, listConsumptionTargets, walletID, now)
	targets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ConsumptionTarget, error) {
		var ct models.ConsumptionTarget
		err := row.Scan(&ct.AquisitionEntryID, &ct.Remaining)
		return ct, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return targets, nil
}

const listExpiringPoints = `-- name: ListExpiringPoints
SELECT a.expires_on,
       ae.amount + COALESCE(SUM(ce.amount), 0) AS remaining
FROM aquisitions a
JOIN entries ae ON ae.id = a.aquisition_entry_id
LEFT JOIN consumptions c ON c.aquisition_entry_id = a.aquisition_entry_id
LEFT JOIN entries ce ON ce.id = c.consumption_entry_id
WHERE ae.wallet_id = $1
  AND a.expires_on >= $2
GROUP BY a.aquisition_entry_id, a.expires_on, ae.amount
HAVING ae.amount + COALESCE(SUM(ce.amount), 0) > 0
ORDER BY a.expires_on ASC
`

func (r *LedgerRepo) ListExpiringPoints(ctx context.Context, walletID int64, now time.Time) ([]models.ExpiringPoints, error) {
	rows, _ := r.DB.Query(ctx, listExpiringPoints, walletID, now)
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExpiringPoints, error) {
		var ep models.ExpiringPoints
		err := row.Scan(&ep.ExpiresOn, &ep.Amount)
		return ep, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return points, nil
}
