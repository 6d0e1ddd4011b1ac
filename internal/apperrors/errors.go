package apperrors

import (
	"errors"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")

	ErrAmountInvalid       = errors.New("point amount must be positive")
	ErrBalanceInsufficient = errors.New("insufficient balance")

	// ErrLedgerInconsistent means the balance check passed but the non-expired
	// acquisitions could not cover the requested amount. The ledger bookkeeping
	// is broken if this ever happens.
	ErrLedgerInconsistent = errors.New("ledger state inconsistent with wallet balance")
)
