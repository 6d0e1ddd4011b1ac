package point

import (
	"github.com/shopspring/decimal"

	"github.com/vmarkelov/pointwallet/internal/apperrors"
	"github.com/vmarkelov/pointwallet/internal/models"
)

// allocation is a decision to draw Amount from one acquisition batch.
type allocation struct {
	AquisitionEntryID int64
	Amount            decimal.Decimal
}

// allocate walks targets in the given order and greedily draws from each
// until amount is covered. Targets must already be ordered oldest-first.
//
// Returns apperrors.ErrLedgerInconsistent when the targets cannot cover the
// amount. The caller has verified the targets cover the amount before, so
// running out of targets here means the bookkeeping is broken.
func allocate(targets []models.ConsumptionTarget, amount decimal.Decimal) ([]allocation, error) {
	remaining := amount
	allocations := make([]allocation, 0, len(targets))

	for _, target := range targets {
		drawn := decimal.Min(remaining, target.Remaining)
		remaining = remaining.Sub(drawn)

		allocations = append(allocations, allocation{
			AquisitionEntryID: target.AquisitionEntryID,
			Amount:            drawn,
		})

		if !remaining.IsPositive() {
			return allocations, nil
		}
	}

	return nil, apperrors.ErrLedgerInconsistent
}
