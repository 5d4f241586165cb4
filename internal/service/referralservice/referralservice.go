package referralservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatsWindow is the number of days covered by Stats.LastMonth.
const StatsWindow = 30

type AccountRepo interface {
	FindByID(ctx context.Context, id int) (*domain.Account, error)
	MarkDeposited(ctx context.Context, id int) error
	AddReferralEarnings(ctx context.Context, id int, amount decimal.Decimal) error
	CountReferralsByDay(ctx context.Context, referrerID int, since time.Time) ([]domain.DailyCount, error)
}

type LedgerRepo interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)
	SumByKind(ctx context.Context, accountID int, kind domain.Kind) (decimal.Decimal, error)
}

var (
	ErrReferrerNotFound = errors.New("referrer not found")
	ErrAccountNotFound  = errors.New("account not found")
)

type Service struct {
	accountRepo AccountRepo
	ledgerRepo  LedgerRepo
	now         func() time.Time
}

func New(accountRepo AccountRepo, ledgerRepo LedgerRepo) *Service {
	return &Service{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		now:         time.Now,
	}
}

// ApplyIfEligible credits the referrer of account with a share of its first
// deposit. It must run inside the deposit transaction, with the depositor's
// row already locked, before the deposit entry is appended.
//
// The has_deposited flag is the only idempotency gate: once set, later
// calls return nil without touching the ledger. A missing referrer is
// logged and skipped, and the flag is still set.
func (s *Service) ApplyIfEligible(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.LedgerEntry, error) {
	if account.HasDeposited {
		return nil, nil
	}

	var credited *domain.LedgerEntry
	if account.ReferrerID != nil {
		entry, err := s.credit(ctx, account, *account.ReferrerID, amount)
		switch {
		case errors.Is(err, ErrReferrerNotFound):
			zap.L().Warn("referral bonus skipped",
				zap.Int("account_id", account.ID),
				zap.Int("referrer_id", *account.ReferrerID),
				zap.Error(err))
		case err != nil:
			return nil, err
		default:
			credited = entry
		}
	}

	if err := s.accountRepo.MarkDeposited(ctx, account.ID); err != nil {
		zap.L().Error("failed to mark account deposited", zap.Int("account_id", account.ID), zap.Error(err))
		return nil, err
	}
	account.HasDeposited = true
	return credited, nil
}

func (s *Service) credit(ctx context.Context, account *domain.Account, referrerID int, amount decimal.Decimal) (*domain.LedgerEntry, error) {
	referrer, err := s.accountRepo.FindByID(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, ErrReferrerNotFound
	}

	// A zero rate turns payouts off for this referrer.
	bonus := amount.Mul(referrer.ReferralBonusRate).Round(2)
	if !bonus.IsPositive() {
		return nil, nil
	}

	entry, err := s.ledgerRepo.Append(ctx, &domain.LedgerEntry{
		AccountID:     referrer.ID,
		Kind:          domain.KindReferral,
		Amount:        bonus,
		Status:        domain.StatusConfirmed,
		PaymentSystem: domain.PaymentInternal,
		FromAccount:   fmt.Sprintf("referral:%d", account.ID),
	})
	if err != nil {
		zap.L().Error("failed to append referral entry", zap.Int("referrer_id", referrer.ID), zap.Error(err))
		return nil, err
	}

	if err := s.accountRepo.AddReferralEarnings(ctx, referrer.ID, bonus); err != nil {
		zap.L().Error("failed to add referral earnings", zap.Int("referrer_id", referrer.ID), zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// Stats reports daily referral registrations for the last StatsWindow days,
// oldest first, with days without registrations filled with zero.
func (s *Service) Stats(ctx context.Context, accountID int) (*domain.ReferralStats, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(StatsWindow - 1))
	counts, err := s.accountRepo.CountReferralsByDay(ctx, accountID, since)
	if err != nil {
		return nil, err
	}
	byDay := make(map[time.Time]int, len(counts))
	for _, c := range counts {
		byDay[c.Day.UTC().Truncate(24*time.Hour)] += c.Count
	}

	days := make([]domain.DailyCount, 0, StatsWindow)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		days = append(days, domain.DailyCount{Day: d, Count: byDay[d]})
	}

	revenue, err := s.ledgerRepo.SumByKind(ctx, accountID, domain.KindReferral)
	if err != nil {
		return nil, err
	}

	return &domain.ReferralStats{
		LastMonth:      days,
		TotalReferrals: account.ReferralCount,
		TotalRevenue:   revenue,
	}, nil
}
