package dto

import (
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/shopspring/decimal"
)

type CreatePromoRequestDTO struct {
	Code   string          `json:"code" example:"WELCOME100"`
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"100"`
}

type PromoCodeDTO struct {
	Code      string          `json:"code" example:"WELCOME100"`
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"100"`
	UsedBy    *int            `json:"used_by,omitempty"`
	UsedAt    *time.Time      `json:"used_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewPromoCode(p domain.PromoCode) PromoCodeDTO {
	return PromoCodeDTO{
		Code:      p.Code,
		Amount:    p.Amount,
		UsedBy:    p.UsedBy,
		UsedAt:    p.UsedAt,
		CreatedAt: p.CreatedAt,
	}
}

type ReferralDayDTO struct {
	Date  string `json:"date" example:"2024-09-01"`
	Count int    `json:"count" example:"3"`
}

type ReferralStatsDTO struct {
	LastMonth      []ReferralDayDTO `json:"last_month"`
	TotalReferrals int              `json:"total_referrals" example:"12"`
	TotalRevenue   decimal.Decimal  `json:"total_revenue" swaggertype:"string" example:"120.50"`
}

func NewReferralStats(s domain.ReferralStats) ReferralStatsDTO {
	days := make([]ReferralDayDTO, len(s.LastMonth))
	for i, d := range s.LastMonth {
		days[i] = ReferralDayDTO{Date: d.Day.Format(time.DateOnly), Count: d.Count}
	}
	return ReferralStatsDTO{
		LastMonth:      days,
		TotalReferrals: s.TotalReferrals,
		TotalRevenue:   s.TotalRevenue,
	}
}
