package walletservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/ledger"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/GlebRadaev/casino-wallet/pkg/validate"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const MaxHistoryLimit = 100

// NoWithdrawalSentinel is reported by LastWithdrawalAt for accounts that
// never requested a withdrawal.
var NoWithdrawalSentinel = time.Date(1900, time.September, 1, 0, 0, 0, 0, time.UTC)

type AccountRepo interface {
	FindByID(ctx context.Context, id int) (*domain.Account, error)
	LockByID(ctx context.Context, id int) (*domain.Account, error)
}

type LedgerRepo interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)
	GetForUpdate(ctx context.Context, id int) (*domain.LedgerEntry, error)
	ListByAccount(ctx context.Context, accountID int) ([]domain.LedgerEntry, error)
	UpdateStatus(ctx context.Context, id int, status domain.Status) (*domain.LedgerEntry, error)
	ListPendingWithdrawals(ctx context.Context) ([]domain.LedgerEntry, error)
	LatestByKind(ctx context.Context, accountID int, kind domain.Kind) (*domain.LedgerEntry, error)
	History(ctx context.Context, filter domain.HistoryFilter) (*domain.HistoryPage, error)
}

type PromoRepo interface {
	Create(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error)
	FindForUpdate(ctx context.Context, code string) (*domain.PromoCode, error)
	MarkUsed(ctx context.Context, code string, accountID int) error
}

type ReferralApplier interface {
	ApplyIfEligible(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.LedgerEntry, error)
}

type Notifier interface {
	Notify(ctx context.Context, events ...domain.LedgerEvent)
}

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrInsufficientPureFunds = errors.New("insufficient pure funds")
	ErrNotPending            = errors.New("withdrawal is not pending")
	ErrEntryNotFound         = errors.New("ledger entry not found")
	ErrNotWithdrawal         = errors.New("ledger entry is not a withdrawal")
	ErrNoBonus               = errors.New("no bonus earned yet")
	ErrPromoNotFound         = errors.New("promo code not found")
	ErrPromoUsed             = domain.ErrPromoUsed
	ErrInvalidPage           = errors.New("invalid page parameters")
)

type Service struct {
	txManager pg.TXManager
	accounts  AccountRepo
	ledger    LedgerRepo
	promos    PromoRepo
	referrals ReferralApplier
	bonus     *ledger.BonusPolicy
	notifier  Notifier
	now       func() time.Time
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, ...domain.LedgerEvent) {}

func New(
	txManager pg.TXManager,
	accounts AccountRepo,
	ledgerRepo LedgerRepo,
	promos PromoRepo,
	referrals ReferralApplier,
	bonus *ledger.BonusPolicy,
	notifier Notifier,
) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		txManager: txManager,
		accounts:  accounts,
		ledger:    ledgerRepo,
		promos:    promos,
		referrals: referrals,
		bonus:     bonus,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (s *Service) lock(ctx context.Context, accountID int) (*domain.Account, error) {
	account, err := s.accounts.LockByID(ctx, accountID)
	if err != nil {
		zap.L().Error("failed to lock account", zap.Int("account_id", accountID), zap.Error(err))
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) balance(ctx context.Context, accountID int) (domain.BalanceView, error) {
	entries, err := s.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		zap.L().Error("failed to list ledger", zap.Int("account_id", accountID), zap.Error(err))
		return domain.BalanceView{}, err
	}
	return ledger.Compute(entries)
}

// GetBalance derives the balance views from a snapshot of the ledger.
func (s *Service) GetBalance(ctx context.Context, accountID int) (domain.BalanceView, error) {
	return s.balance(ctx, accountID)
}

// Deposit appends a confirmed inflow or bonus entry. The first deposit of
// an account also credits its referrer, in the same transaction.
func (s *Service) Deposit(ctx context.Context, accountID int, kind domain.Kind, amount decimal.Decimal, system domain.PaymentSystem, from string) (*domain.LedgerEntry, error) {
	if kind != domain.KindInflow && kind != domain.KindBonus {
		return nil, fmt.Errorf("%w: deposit kind %q", ledger.ErrInvalidEntry, kind)
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if !system.Valid() {
		return nil, fmt.Errorf("%w: payment system %q", ledger.ErrInvalidEntry, system)
	}

	var deposit, referral *domain.LedgerEntry
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		account, err := s.lock(ctx, accountID)
		if err != nil {
			return err
		}
		if referral, err = s.referrals.ApplyIfEligible(ctx, account, amount); err != nil {
			return err
		}
		deposit, err = s.ledger.Append(ctx, &domain.LedgerEntry{
			AccountID:     accountID,
			Kind:          kind,
			Amount:        amount,
			Status:        domain.StatusConfirmed,
			CreatedAt:     s.now(),
			PaymentSystem: system,
			FromAccount:   from,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	events := []domain.LedgerEvent{{Type: domain.EventDeposit, Entry: *deposit}}
	if referral != nil {
		events = append(events, domain.LedgerEvent{Type: domain.EventReferralCredited, Entry: *referral})
	}
	s.notifier.Notify(ctx, events...)
	return deposit, nil
}

func validateDestination(system domain.PaymentSystem, to string) error {
	if !system.Valid() || system == domain.PaymentInternal {
		return fmt.Errorf("%w: payment system %q", ledger.ErrInvalidEntry, system)
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: destination account is required", ledger.ErrInvalidEntry)
	}
	if system == domain.PaymentCard && !validate.IsCardNumber(to) {
		return fmt.Errorf("%w: invalid card number", ledger.ErrInvalidEntry)
	}
	return nil
}

// RequestWithdrawal reserves amount for payout. The check against the
// available pure balance and the append happen under the account lock.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID int, amount decimal.Decimal, system domain.PaymentSystem, to string) (*domain.LedgerEntry, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := validateDestination(system, to); err != nil {
		return nil, err
	}

	var withdrawal *domain.LedgerEntry
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.lock(ctx, accountID); err != nil {
			return err
		}
		view, err := s.balance(ctx, accountID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(view.Available()) {
			return ErrInsufficientPureFunds
		}
		withdrawal, err = s.ledger.Append(ctx, &domain.LedgerEntry{
			AccountID:     accountID,
			Kind:          domain.KindOutflow,
			Amount:        amount,
			Status:        domain.StatusPending,
			CreatedAt:     s.now(),
			PaymentSystem: system,
			ToAccount:     to,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, domain.LedgerEvent{Type: domain.EventWithdrawalRequested, Entry: *withdrawal})
	return withdrawal, nil
}

func (s *Service) ConfirmWithdrawal(ctx context.Context, id int) (*domain.LedgerEntry, error) {
	return s.decide(ctx, id, domain.StatusConfirmed, domain.EventWithdrawalConfirmed)
}

func (s *Service) RejectWithdrawal(ctx context.Context, id int) (*domain.LedgerEntry, error) {
	return s.decide(ctx, id, domain.StatusRejected, domain.EventWithdrawalRejected)
}

func (s *Service) decide(ctx context.Context, id int, status domain.Status, event domain.EventType) (*domain.LedgerEntry, error) {
	var decided *domain.LedgerEntry
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		entry, err := s.ledger.GetForUpdate(ctx, id)
		switch {
		case err != nil:
			return err
		case entry == nil:
			return fmt.Errorf("%w: %w", ErrNotPending, ErrEntryNotFound)
		case entry.Kind != domain.KindOutflow:
			return fmt.Errorf("%w: %w", ErrNotPending, ErrNotWithdrawal)
		case entry.Status != domain.StatusPending:
			return fmt.Errorf("%w: %w: already %s", ErrNotPending, domain.ErrInvalidTransition, entry.Status)
		}

		decided, err = s.ledger.UpdateStatus(ctx, id, status)
		if errors.Is(err, domain.ErrInvalidTransition) {
			return fmt.Errorf("%w: %w", ErrNotPending, err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			zap.L().Info("withdrawal decision refused", zap.Int("entry_id", id), zap.String("status", string(status)), zap.Error(err))
		}
		return nil, err
	}

	s.notifier.Notify(ctx, domain.LedgerEvent{Type: event, Entry: *decided})
	return decided, nil
}

// ListPendingWithdrawals is a lock-free snapshot of every pending outflow.
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]domain.LedgerEntry, error) {
	entries, err := s.ledger.ListPendingWithdrawals(ctx)
	if err != nil {
		zap.L().Error("failed to list pending withdrawals", zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// ClaimDailyBonus issues one bonus entry if the interval since the latest
// bonus entry has elapsed, and returns it with the updated balance.
func (s *Service) ClaimDailyBonus(ctx context.Context, accountID int) (*domain.BonusClaim, error) {
	var claim domain.BonusClaim
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.lock(ctx, accountID); err != nil {
			return err
		}
		last, err := s.ledger.LatestByKind(ctx, accountID, domain.KindBonus)
		if err != nil {
			return err
		}
		// created_at shares the clock the interval is checked against
		now := s.now()
		if err := s.bonus.Check(last, now); err != nil {
			return err
		}

		claim.Entry, err = s.ledger.Append(ctx, &domain.LedgerEntry{
			AccountID:     accountID,
			Kind:          domain.KindBonus,
			Amount:        s.bonus.Amount(),
			Status:        domain.StatusConfirmed,
			CreatedAt:     now,
			PaymentSystem: domain.PaymentInternal,
			FromAccount:   "daily_bonus",
		})
		if err != nil {
			return err
		}
		claim.Balance, err = s.balance(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, domain.LedgerEvent{Type: domain.EventBonusClaimed, Entry: *claim.Entry})
	return &claim, nil
}

func (s *Service) LastBonusAt(ctx context.Context, accountID int) (time.Time, error) {
	last, err := s.ledger.LatestByKind(ctx, accountID, domain.KindBonus)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return time.Time{}, ErrNoBonus
	}
	return last.CreatedAt, nil
}

// LastWithdrawalAt returns the time of the latest withdrawal request in any
// status, or NoWithdrawalSentinel.
func (s *Service) LastWithdrawalAt(ctx context.Context, accountID int) (time.Time, error) {
	last, err := s.ledger.LatestByKind(ctx, accountID, domain.KindOutflow)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return NoWithdrawalSentinel, nil
	}
	return last.CreatedAt, nil
}

func (s *Service) History(ctx context.Context, filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	if filter.Page < 1 || filter.Limit < 1 || filter.Limit > MaxHistoryLimit {
		return nil, ErrInvalidPage
	}
	for _, k := range filter.Kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: kind %q", ErrInvalidPage, k)
		}
	}
	page, err := s.ledger.History(ctx, filter)
	if err != nil {
		zap.L().Error("failed to load history", zap.Int("account_id", filter.AccountID), zap.Error(err))
		return nil, err
	}
	return page, nil
}

// ApplyPromoCode redeems a single-use code into a confirmed bonus entry.
func (s *Service) ApplyPromoCode(ctx context.Context, accountID int, code string) (*domain.LedgerEntry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}

	var entry *domain.LedgerEntry
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.lock(ctx, accountID); err != nil {
			return err
		}
		promo, err := s.promos.FindForUpdate(ctx, code)
		switch {
		case err != nil:
			return err
		case promo == nil:
			return ErrPromoNotFound
		case promo.UsedBy != nil:
			return ErrPromoUsed
		}
		if err := s.promos.MarkUsed(ctx, code, accountID); err != nil {
			return err
		}
		entry, err = s.ledger.Append(ctx, &domain.LedgerEntry{
			AccountID:     accountID,
			Kind:          domain.KindBonus,
			Amount:        promo.Amount,
			Status:        domain.StatusConfirmed,
			CreatedAt:     s.now(),
			PaymentSystem: domain.PaymentInternal,
			FromAccount:   "promo:" + code,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, domain.LedgerEvent{Type: domain.EventPromoRedeemed, Entry: *entry})
	return entry, nil
}

func (s *Service) CreatePromoCode(ctx context.Context, code string, amount decimal.Decimal) (*domain.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty promo code", ledger.ErrInvalidEntry)
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	promo, err := s.promos.Create(ctx, &domain.PromoCode{Code: code, Amount: amount})
	if err != nil {
		zap.L().Error("failed to create promo code", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return promo, nil
}
