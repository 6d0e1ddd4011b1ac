package point

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vmarkelov/pointwallet/internal/apperrors"
	"github.com/vmarkelov/pointwallet/internal/models"
	"github.com/vmarkelov/pointwallet/internal/repository"
)

const (
	// Acquired points stay spendable for 180 days
	validityPeriod = 180 * 24 * time.Hour

	// How many history lines GetWallet returns
	historyLimit = 10
)

// WalletInfo is a wallet together with its recent history, newest first.
type WalletInfo struct {
	Wallet  models.Wallet
	History []models.PointTransaction
}

// Service is the accounting engine. Every mutating operation runs in a single
// database transaction and locks the wallet row before touching its balance.
type Service struct {
	storage repository.Storage

	// Replaceable in tests
	now func() time.Time
}

func NewService(storage repository.Storage) *Service {
	return &Service{
		storage: storage,
		now:     time.Now,
	}
}

func (s *Service) CreateWallet(ctx context.Context) (models.Wallet, error) {
	wallet, err := s.storage.Wallet().CreateWallet(ctx)
	if err != nil {
		return wallet, fmt.Errorf("can't create wallet. Err: %w", err)
	}

	return wallet, nil
}

func (s *Service) GetWallet(ctx context.Context, walletID int64) (WalletInfo, error) {
	var info WalletInfo

	if walletID == models.ClearingWalletID {
		return info, apperrors.ErrWalletNotFound
	}

	wallet, err := s.storage.Wallet().GetWallet(ctx, walletID)
	if err != nil {
		return info, err
	}

	history, err := s.storage.Ledger().ListHistory(ctx, walletID, historyLimit)
	if err != nil {
		return info, fmt.Errorf("can't load wallet history. Err: %w", err)
	}

	return WalletInfo{Wallet: wallet, History: history}, nil
}

// AcquirePoints grants amount points to the wallet: a credit entry on the
// wallet, an offsetting debit on the clearing wallet and an acquisition batch
// expiring in 180 days.
func (s *Service) AcquirePoints(ctx context.Context, walletID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.ErrAmountInvalid
	}
	if walletID == models.ClearingWalletID {
		return apperrors.ErrWalletNotFound
	}

	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		_, err := storage.Wallet().GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}

		now := s.now()

		transaction, err := storage.Ledger().CreateTransaction(ctx, now)
		if err != nil {
			return err
		}

		credit, err := storage.Ledger().CreateEntry(ctx, transaction.ID, walletID, models.AccountCredit, amount)
		if err != nil {
			return err
		}

		_, err = storage.Ledger().CreateEntry(ctx, transaction.ID, models.ClearingWalletID, models.AccountDebit, amount.Neg())
		if err != nil {
			return err
		}

		err = storage.Ledger().CreateAquisition(ctx, credit.ID, now.Add(validityPeriod))
		if err != nil {
			return err
		}

		_, err = storage.Wallet().UpdateBalance(ctx, walletID, amount)
		return err
	})
}

// ConsumePoints spends amount points drawing from the oldest non-expired
// acquisition batches first. Balance equal to amount is sufficient.
func (s *Service) ConsumePoints(ctx context.Context, walletID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.ErrAmountInvalid
	}
	if walletID == models.ClearingWalletID {
		return apperrors.ErrWalletNotFound
	}

	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		wallet, err := storage.Wallet().GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}

		if wallet.Balance.LessThan(amount) {
			return apperrors.ErrBalanceInsufficient
		}

		now := s.now()

		targets, err := storage.Ledger().ListConsumptionTargets(ctx, walletID, now)
		if err != nil {
			return err
		}

		// The cached balance still counts batches that expired unconsumed, so
		// it may exceed what is actually spendable. Short targets here mean
		// expired points, a client error, not a bookkeeping fault.
		spendable := decimal.Zero
		for _, target := range targets {
			spendable = spendable.Add(target.Remaining)
		}
		if spendable.LessThan(amount) {
			return apperrors.ErrBalanceInsufficient
		}

		allocations, err := allocate(targets, amount)
		if err != nil {
			return err
		}

		transaction, err := storage.Ledger().CreateTransaction(ctx, now)
		if err != nil {
			return err
		}

		// Points flow back to the clearing wallet: positive credit there,
		// negative debit on the spending wallet, so entry sums keep matching
		// cached balances on both sides.
		for _, alloc := range allocations {
			_, err := storage.Ledger().CreateEntry(ctx, transaction.ID, models.ClearingWalletID, models.AccountCredit, alloc.Amount)
			if err != nil {
				return err
			}

			debit, err := storage.Ledger().CreateEntry(ctx, transaction.ID, walletID, models.AccountDebit, alloc.Amount.Neg())
			if err != nil {
				return err
			}

			err = storage.Ledger().CreateConsumption(ctx, alloc.AquisitionEntryID, debit.ID)
			if err != nil {
				return err
			}
		}

		_, err = storage.Wallet().UpdateBalance(ctx, walletID, amount.Neg())
		return err
	})
}

// PointsCloseToExpiry lists remaining amounts of the wallet's non-expired
// batches, soonest expiry first.
func (s *Service) PointsCloseToExpiry(ctx context.Context, walletID int64) ([]models.ExpiringPoints, error) {
	if walletID == models.ClearingWalletID {
		return nil, apperrors.ErrWalletNotFound
	}

	_, err := s.storage.Wallet().GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	return s.storage.Ledger().ListExpiringPoints(ctx, walletID, s.now())
}
