package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vmarkelov/pointwallet/internal/apperrors"
	"github.com/vmarkelov/pointwallet/internal/models"
	"github.com/vmarkelov/pointwallet/internal/repository"
	"github.com/vmarkelov/pointwallet/internal/testutil"
)

func TestLedger(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	now := time.Now().Truncate(time.Microsecond)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	// Record a full acquisition event: balanced entry pair plus the
	// acquisition row. Returns the credit entry id.
	acquire := func(t *testing.T, storage repository.Storage, walletID int64, amount int64, at time.Time, expiresOn time.Time) int64 {
		t.Helper()

		tr, err := storage.Ledger().CreateTransaction(t.Context(), at)
		require.NoError(t, err)

		credit, err := storage.Ledger().CreateEntry(t.Context(), tr.ID, walletID, models.AccountCredit, decimal.NewFromInt(amount))
		require.NoError(t, err)

		_, err = storage.Ledger().CreateEntry(t.Context(), tr.ID, models.ClearingWalletID, models.AccountDebit, decimal.NewFromInt(-amount))
		require.NoError(t, err)

		err = storage.Ledger().CreateAquisition(t.Context(), credit.ID, expiresOn)
		require.NoError(t, err)

		return credit.ID
	}

	// Record a consumption event drawing from one acquisition batch
	consume := func(t *testing.T, storage repository.Storage, walletID int64, aquisitionEntryID int64, amount int64, at time.Time) {
		t.Helper()

		tr, err := storage.Ledger().CreateTransaction(t.Context(), at)
		require.NoError(t, err)

		_, err = storage.Ledger().CreateEntry(t.Context(), tr.ID, models.ClearingWalletID, models.AccountCredit, decimal.NewFromInt(amount))
		require.NoError(t, err)

		debit, err := storage.Ledger().CreateEntry(t.Context(), tr.ID, walletID, models.AccountDebit, decimal.NewFromInt(-amount))
		require.NoError(t, err)

		err = storage.Ledger().CreateConsumption(t.Context(), aquisitionEntryID, debit.ID)
		require.NoError(t, err)
	}

	t.Run("CreateEntry", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			wallet, err := storage.Wallet().CreateWallet(t.Context())
			require.NoError(t, err)

			tr, err := storage.Ledger().CreateTransaction(t.Context(), now)
			require.NoError(t, err)

			t.Run("create ok", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					entry, err := storage.Ledger().CreateEntry(t.Context(), tr.ID, wallet.ID, models.AccountCredit, decimal.NewFromInt(100))

					require.NoError(t, err)
					require.Positive(t, entry.ID)
					require.Equal(t, tr.ID, entry.TransactionID)
					require.Equal(t, wallet.ID, entry.WalletID)
					require.Equal(t, models.AccountCredit, entry.Account)
					require.True(t, entry.Amount.Equal(decimal.NewFromInt(100)))
				})
			})

			t.Run("nonexistent wallet", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Ledger().CreateEntry(t.Context(), tr.ID, wallet.ID+100500, models.AccountCredit, decimal.NewFromInt(100))

					require.ErrorIs(t, err, apperrors.ErrWalletNotFound, "should return well known error")
				})
			})
		})
	})

	t.Run("ListHistory", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			wallet, err := storage.Wallet().CreateWallet(t.Context())
			require.NoError(t, err)

			expiresOn := now.Add(180 * 24 * time.Hour)

			// Acquisition of 100, then one consumption transaction that drew
			// from two batches (two debit entries)
			aq1 := acquire(t, storage, wallet.ID, 100, now.Add(-2*time.Hour), expiresOn)
			aq2 := acquire(t, storage, wallet.ID, 50, now.Add(-2*time.Hour), expiresOn)

			tr, err := storage.Ledger().CreateTransaction(t.Context(), now.Add(-time.Hour))
			require.NoError(t, err)
			for _, draw := range []struct {
				aqEntryID int64
				amount    int64
			}{{aq1, 100}, {aq2, 20}} {
				_, err = storage.Ledger().CreateEntry(t.Context(), tr.ID, models.ClearingWalletID, models.AccountCredit, decimal.NewFromInt(draw.amount))
				require.NoError(t, err)
				debit, err := storage.Ledger().CreateEntry(t.Context(), tr.ID, wallet.ID, models.AccountDebit, decimal.NewFromInt(-draw.amount))
				require.NoError(t, err)
				err = storage.Ledger().CreateConsumption(t.Context(), draw.aqEntryID, debit.ID)
				require.NoError(t, err)
			}

			t.Run("lines grouped per transaction and side", func(t *testing.T) {
				history, err := storage.Ledger().ListHistory(t.Context(), wallet.ID, 10)

				require.NoError(t, err)
				require.Len(t, history, 3, "two acquisitions and one collapsed consumption line")

				require.Equal(t, models.TransactionTypeConsumption, history[0].Type, "newest line first")
				require.True(t, history[0].Amount.Equal(decimal.NewFromInt(120)), "both debit entries should sum into one line")

				require.Equal(t, models.TransactionTypeAquisition, history[1].Type)
				require.Equal(t, models.TransactionTypeAquisition, history[2].Type)
			})

			t.Run("window limit", func(t *testing.T) {
				history, err := storage.Ledger().ListHistory(t.Context(), wallet.ID, 1)

				require.NoError(t, err)
				require.Len(t, history, 1)
				require.Equal(t, models.TransactionTypeConsumption, history[0].Type)
			})

			t.Run("empty wallet", func(t *testing.T) {
				other, err := storage.Wallet().CreateWallet(t.Context())
				require.NoError(t, err)

				history, err := storage.Ledger().ListHistory(t.Context(), other.ID, 10)

				require.NoError(t, err)
				require.Empty(t, history)
			})
		})
	})

	t.Run("ListConsumptionTargets", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			wallet, err := storage.Wallet().CreateWallet(t.Context())
			require.NoError(t, err)

			expiresOn := now.Add(180 * 24 * time.Hour)

			// Oldest batch is expired, the next is partially consumed, the
			// newest is untouched
			expired := acquire(t, storage, wallet.ID, 70, now.Add(-3*time.Hour), now.Add(-time.Minute))
			older := acquire(t, storage, wallet.ID, 50, now.Add(-2*time.Hour), expiresOn)
			newer := acquire(t, storage, wallet.ID, 30, now.Add(-time.Hour), expiresOn)

			consume(t, storage, wallet.ID, older, 20, now.Add(-30*time.Minute))

			t.Run("fifo order with remaining amounts", func(t *testing.T) {
				targets, err := storage.Ledger().ListConsumptionTargets(t.Context(), wallet.ID, now)

				require.NoError(t, err)
				require.Len(t, targets, 2, "expired batch must not be a target")

				require.Equal(t, older, targets[0].AquisitionEntryID, "oldest non-expired batch first")
				require.True(t, targets[0].Remaining.Equal(decimal.NewFromInt(30)), "remaining should subtract prior draws")

				require.Equal(t, newer, targets[1].AquisitionEntryID)
				require.True(t, targets[1].Remaining.Equal(decimal.NewFromInt(30)))

				for _, target := range targets {
					require.NotEqual(t, expired, target.AquisitionEntryID)
				}
			})

			t.Run("exhausted batch drops out", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					consume(t, storage, wallet.ID, older, 30, now.Add(-10*time.Minute))

					targets, err := storage.Ledger().ListConsumptionTargets(t.Context(), wallet.ID, now)

					require.NoError(t, err)
					require.Len(t, targets, 1)
					require.Equal(t, newer, targets[0].AquisitionEntryID)
				})
			})
		})
	})

	t.Run("ListExpiringPoints", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			wallet, err := storage.Wallet().CreateWallet(t.Context())
			require.NoError(t, err)

			soon := now.Add(24 * time.Hour)
			later := now.Add(30 * 24 * time.Hour)

			// The batch expiring sooner was acquired later: ordering must
			// follow expiry, not acquisition time
			acquire(t, storage, wallet.ID, 30, now.Add(-time.Hour), soon)
			first := acquire(t, storage, wallet.ID, 50, now.Add(-2*time.Hour), later)
			acquire(t, storage, wallet.ID, 70, now.Add(-3*time.Hour), now.Add(-time.Minute))

			consume(t, storage, wallet.ID, first, 35, now.Add(-30*time.Minute))

			points, err := storage.Ledger().ListExpiringPoints(t.Context(), wallet.ID, now)

			require.NoError(t, err)
			require.Len(t, points, 2, "expired batch must not be reported")

			require.True(t, points[0].ExpiresOn.Equal(soon), "soonest expiry first")
			require.True(t, points[0].Amount.Equal(decimal.NewFromInt(30)))

			require.True(t, points[1].ExpiresOn.Equal(later))
			require.True(t, points[1].Amount.Equal(decimal.NewFromInt(15)), "remaining should subtract prior draws")
		})
	})
}
