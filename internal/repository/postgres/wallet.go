package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vmarkelov/pointwallet/internal/apperrors"
	"github.com/vmarkelov/pointwallet/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (balance)
VALUES (0)
RETURNING id, balance
`

func (r *WalletRepo) CreateWallet(ctx context.Context) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, createWallet)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)
	if err != nil {
		return wallet, fmt.Errorf("db error: %w", err)
	}

	return wallet, nil
}

const getWallet = `-- name: GetWallet
SELECT id, balance FROM wallets
WHERE id = $1
`

func (r *WalletRepo) GetWallet(ctx context.Context, walletID int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWallet, walletID)
	return collectWallet(rows)
}

// Locks the wallet row until the surrounding transaction commits or rolls
// back. Both mutating ledger operations read the cached balance and write it
// back later, the lock keeps concurrent calls from losing updates.
const getWalletForUpdate = `-- name: GetWalletForUpdate
SELECT id, balance FROM wallets
WHERE id = $1
FOR UPDATE
`

func (r *WalletRepo) GetWalletForUpdate(ctx context.Context, walletID int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWalletForUpdate, walletID)
	return collectWallet(rows)
}

const updateBalance = `-- name: UpdateBalance
UPDATE wallets
SET balance = balance + $2
WHERE id = $1
RETURNING id, balance
`

func (r *WalletRepo) UpdateBalance(ctx context.Context, walletID int64, delta decimal.Decimal) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, updateBalance, walletID, delta)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return wallet, apperrors.ErrBalanceInsufficient
		}

		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func collectWallet(rows pgx.Rows) (models.Wallet, error) {
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.Balance)
	return w, err
}
