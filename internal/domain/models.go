package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSupport   Role = "support"
	RoleSuperuser Role = "superuser"
)

type Kind string

const (
	KindInflow   Kind = "inflow"
	KindOutflow  Kind = "outflow"
	KindBonus    Kind = "bonus"
	KindReferral Kind = "referral"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInflow, KindOutflow, KindBonus, KindReferral:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

type PaymentSystem string

const (
	PaymentFPS      PaymentSystem = "faster_payment_system"
	PaymentSberPay  PaymentSystem = "sberpay"
	PaymentYooMoney PaymentSystem = "yoomoney"
	PaymentCard     PaymentSystem = "card"
	PaymentP2P      PaymentSystem = "p2p"
	PaymentInternal PaymentSystem = "internal"
)

func (p PaymentSystem) Valid() bool {
	switch p {
	case PaymentFPS, PaymentSberPay, PaymentYooMoney, PaymentCard, PaymentP2P, PaymentInternal:
		return true
	}
	return false
}

// ErrInvalidTransition is returned by the ledger store when a status change
// is not pending -> confirmed or pending -> rejected.
var ErrInvalidTransition = errors.New("invalid status transition")

var ErrLoginTaken = errors.New("login already taken")

var ErrPromoUsed = errors.New("promo code already used")

type Account struct {
	ID                int             `db:"id"`
	Login             string          `db:"login"`
	PasswordHash      string          `db:"password_hash"`
	Role              Role            `db:"role"`
	ReferrerID        *int            `db:"referrer_id"`
	HasDeposited      bool            `db:"has_deposited"`
	ReferralBonusRate decimal.Decimal `db:"referral_bonus_rate"`
	ReferralEarnings  decimal.Decimal `db:"referral_earnings"`
	ReferralCount     int             `db:"referral_count"`
	CreatedAt         time.Time       `db:"created_at"`
}

// LedgerEntry is immutable once stored, except for the single
// pending -> confirmed/rejected transition of an outflow.
type LedgerEntry struct {
	ID            int             `db:"id"`
	AccountID     int             `db:"account_id"`
	Kind          Kind            `db:"kind"`
	Amount        decimal.Decimal `db:"amount"`
	Status        Status          `db:"status"`
	PaymentSystem PaymentSystem   `db:"payment_system"`
	FromAccount   string          `db:"from_account"`
	ToAccount     string          `db:"to_account"`
	CreatedAt     time.Time       `db:"created_at"`
}

// BalanceView is derived from the ledger and never stored.
type BalanceView struct {
	Total     decimal.Decimal
	BonusOnly decimal.Decimal
	Pure      decimal.Decimal
	// Reserved is the sum of pending outflows.
	Reserved decimal.Decimal
}

// Available is the amount that can still be requested for withdrawal.
func (b BalanceView) Available() decimal.Decimal {
	return b.Pure.Sub(b.Reserved)
}

type HistoryFilter struct {
	AccountID int
	Kinds     []Kind
	Page      int
	Limit     int
}

func (f HistoryFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type HistoryPage struct {
	Total   int
	Entries []LedgerEntry
}

type BonusClaim struct {
	Entry   *LedgerEntry
	Balance BalanceView
}

type DailyCount struct {
	Day   time.Time
	Count int
}

type ReferralStats struct {
	LastMonth      []DailyCount
	TotalReferrals int
	TotalRevenue   decimal.Decimal
}

type PromoCode struct {
	Code      string          `db:"code"`
	Amount    decimal.Decimal `db:"amount"`
	UsedBy    *int            `db:"used_by"`
	UsedAt    *time.Time      `db:"used_at"`
	CreatedAt time.Time       `db:"created_at"`
}

type EventType string

const (
	EventDeposit             EventType = "deposit"
	EventWithdrawalRequested EventType = "withdrawal.requested"
	EventWithdrawalConfirmed EventType = "withdrawal.confirmed"
	EventWithdrawalRejected  EventType = "withdrawal.rejected"
	EventBonusClaimed        EventType = "bonus.claimed"
	EventReferralCredited    EventType = "referral.credited"
	EventPromoRedeemed       EventType = "promo.redeemed"
)

// LedgerEvent is emitted after the transaction that produced Entry commits.
type LedgerEvent struct {
	Type  EventType
	Entry LedgerEntry
}
