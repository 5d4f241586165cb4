// Package ledger derives balances from ledger entries and holds the bonus
// claim policy. Nothing here performs I/O.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
)

// currencyPlaces is the number of fractional digits a stored amount may carry.
const currencyPlaces = 2

var ErrInvalidEntry = errors.New("invalid ledger entry")

// ValidateAmount checks an amount before it is written to the ledger.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidEntry, amount)
	}
	if !amount.Equal(amount.Truncate(currencyPlaces)) {
		return fmt.Errorf("%w: amount %s has more than %d fractional digits", ErrInvalidEntry, amount, currencyPlaces)
	}
	return nil
}

// Compute folds entries of a single account into a BalanceView. The result
// does not depend on the order of entries.
func Compute(entries []domain.LedgerEntry) (domain.BalanceView, error) {
	view := domain.BalanceView{
		Total:     decimal.Zero,
		BonusOnly: decimal.Zero,
		Pure:      decimal.Zero,
		Reserved:  decimal.Zero,
	}

	for _, e := range entries {
		if !e.Amount.IsPositive() {
			return domain.BalanceView{}, fmt.Errorf("%w: entry %d has non-positive amount %s", ErrInvalidEntry, e.ID, e.Amount)
		}
		if !e.Kind.Valid() {
			return domain.BalanceView{}, fmt.Errorf("%w: entry %d has unknown kind %q", ErrInvalidEntry, e.ID, e.Kind)
		}
		if !e.Status.Valid() {
			return domain.BalanceView{}, fmt.Errorf("%w: entry %d has unknown status %q", ErrInvalidEntry, e.ID, e.Status)
		}

		switch e.Status {
		case domain.StatusConfirmed:
			switch e.Kind {
			case domain.KindInflow:
				view.Total = view.Total.Add(e.Amount)
				view.Pure = view.Pure.Add(e.Amount)
			case domain.KindBonus:
				view.Total = view.Total.Add(e.Amount)
				view.BonusOnly = view.BonusOnly.Add(e.Amount)
			case domain.KindReferral:
				view.Total = view.Total.Add(e.Amount)
			case domain.KindOutflow:
				view.Total = view.Total.Sub(e.Amount)
				view.Pure = view.Pure.Sub(e.Amount)
			}
		case domain.StatusPending:
			if e.Kind == domain.KindOutflow {
				view.Reserved = view.Reserved.Add(e.Amount)
			}
		}
	}

	return view, nil
}
