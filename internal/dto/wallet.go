package dto

import (
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/shopspring/decimal"
)

// Amounts travel as decimal strings, e.g. "100.50".

type BalanceResponseDTO struct {
	Balance      decimal.Decimal `json:"balance" swaggertype:"string" example:"150.00"`
	BonusBalance decimal.Decimal `json:"bonus_balance" swaggertype:"string" example:"50.00"`
	PureBalance  decimal.Decimal `json:"pure_balance" swaggertype:"string" example:"100.00"`
	Reserved     decimal.Decimal `json:"reserved" swaggertype:"string" example:"20.00"`
	Available    decimal.Decimal `json:"available" swaggertype:"string" example:"80.00"`
}

func NewBalanceResponse(v domain.BalanceView) BalanceResponseDTO {
	return BalanceResponseDTO{
		Balance:      v.Total,
		BonusBalance: v.BonusOnly,
		PureBalance:  v.Pure,
		Reserved:     v.Reserved,
		Available:    v.Available(),
	}
}

type DepositRequestDTO struct {
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"100.00"`
	PaymentSystem string          `json:"payment_system" example:"sberpay"`
	FromAccount   string          `json:"from_account,omitempty" example:"+79990000000"`
}

type WithdrawalRequestDTO struct {
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"50.00"`
	PaymentSystem string          `json:"payment_system" example:"card"`
	ToAccount     string          `json:"to_account" example:"4561261212345467"`
}

type TransactionDTO struct {
	ID            int             `json:"id" example:"17"`
	Type          string          `json:"type" example:"inflow"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"100.00"`
	Status        string          `json:"status" example:"confirmed"`
	PaymentSystem string          `json:"payment_system" example:"sberpay"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	AccountID     int             `json:"user_id" example:"1"`
	CreatedAt     time.Time       `json:"created_at" example:"2024-09-01T12:00:00Z"`
}

func NewTransaction(e domain.LedgerEntry) TransactionDTO {
	return TransactionDTO{
		ID:            e.ID,
		Type:          string(e.Kind),
		Amount:        e.Amount,
		Status:        string(e.Status),
		PaymentSystem: string(e.PaymentSystem),
		FromAccount:   e.FromAccount,
		ToAccount:     e.ToAccount,
		AccountID:     e.AccountID,
		CreatedAt:     e.CreatedAt,
	}
}

func NewTransactions(entries []domain.LedgerEntry) []TransactionDTO {
	out := make([]TransactionDTO, len(entries))
	for i, e := range entries {
		out[i] = NewTransaction(e)
	}
	return out
}

type HistoryResponseDTO struct {
	Total        int              `json:"total" example:"12"`
	Transactions []TransactionDTO `json:"transactions"`
}

type BonusClaimResponseDTO struct {
	Amount  decimal.Decimal `json:"amount" swaggertype:"string" example:"250"`
	Balance decimal.Decimal `json:"balance" swaggertype:"string" example:"400.00"`
}

type LastEarnResponseDTO struct {
	CreatedAt time.Time `json:"created_at" example:"2024-09-01T12:00:00Z"`
}

type LastWithdrawalResponseDTO struct {
	CreatedAt time.Time `json:"created_at" example:"1900-09-01T00:00:00Z"`
}

type PromoRequestDTO struct {
	Code string `json:"code" example:"WELCOME100"`
}

type PromoAppliedResponseDTO struct {
	Message string          `json:"message"`
	Amount  decimal.Decimal `json:"amount" swaggertype:"string" example:"100"`
}
