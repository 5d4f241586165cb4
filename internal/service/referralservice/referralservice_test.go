package referralservice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

type decimalMatcher struct{ want decimal.Decimal }

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string { return "is decimal " + m.want.String() }

func dec(s string) gomock.Matcher { return decimalMatcher{decimal.RequireFromString(s)} }

func NewMock(t *testing.T) (*Service, *MockAccountRepo, *MockLedgerRepo) {
	ctrl := gomock.NewController(t)
	accountRepo := NewMockAccountRepo(ctrl)
	ledgerRepo := NewMockLedgerRepo(ctrl)
	service := New(accountRepo, ledgerRepo)
	return service, accountRepo, ledgerRepo
}

func ptr(v int) *int { return &v }

func TestApplyIfEligible(t *testing.T) {
	errDB := errors.New("db error")

	tests := []struct {
		name          string
		account       domain.Account
		amount        string
		prepareMock   func(accountRepo *MockAccountRepo, ledgerRepo *MockLedgerRepo)
		expectedBonus string
		expectedErr   error
		deposited     bool
	}{
		{
			name:        "Already deposited",
			account:     domain.Account{ID: 3, ReferrerID: ptr(2), HasDeposited: true},
			amount:      "100",
			prepareMock: func(*MockAccountRepo, *MockLedgerRepo) {},
			deposited:   true,
		},
		{
			name:    "No referrer",
			account: domain.Account{ID: 3},
			amount:  "100",
			prepareMock: func(accountRepo *MockAccountRepo, _ *MockLedgerRepo) {
				accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(nil)
			},
			deposited: true,
		},
		{
			name:    "Referrer credited with its own rate",
			account: domain.Account{ID: 3, ReferrerID: ptr(2)},
			amount:  "200",
			prepareMock: func(accountRepo *MockAccountRepo, ledgerRepo *MockLedgerRepo) {
				gomock.InOrder(
					accountRepo.EXPECT().FindByID(gomock.Any(), 2).
						Return(&domain.Account{ID: 2, ReferralBonusRate: decimal.RequireFromString("0.1")}, nil),
					ledgerRepo.EXPECT().Append(gomock.Any(), gomock.Any()).
						DoAndReturn(func(_ context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
							assert.Equal(t, 2, e.AccountID)
							assert.Equal(t, domain.KindReferral, e.Kind)
							assert.Equal(t, domain.StatusConfirmed, e.Status)
							stored := *e
							stored.ID = 10
							return &stored, nil
						}),
					accountRepo.EXPECT().AddReferralEarnings(gomock.Any(), 2, dec("20")).Return(nil),
					accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(nil),
				)
			},
			expectedBonus: "20",
			deposited:     true,
		},
		{
			name:    "Bonus rounds to cents",
			account: domain.Account{ID: 3, ReferrerID: ptr(2)},
			amount:  "33.33",
			prepareMock: func(accountRepo *MockAccountRepo, ledgerRepo *MockLedgerRepo) {
				accountRepo.EXPECT().FindByID(gomock.Any(), 2).
					Return(&domain.Account{ID: 2, ReferralBonusRate: decimal.RequireFromString("0.1")}, nil)
				ledgerRepo.EXPECT().Append(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
						return e, nil
					})
				accountRepo.EXPECT().AddReferralEarnings(gomock.Any(), 2, dec("3.33")).Return(nil)
				accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(nil)
			},
			expectedBonus: "3.33",
			deposited:     true,
		},
		{
			name:    "Zero rate pays nothing",
			account: domain.Account{ID: 3, ReferrerID: ptr(2)},
			amount:  "100",
			prepareMock: func(accountRepo *MockAccountRepo, _ *MockLedgerRepo) {
				accountRepo.EXPECT().FindByID(gomock.Any(), 2).
					Return(&domain.Account{ID: 2, ReferralBonusRate: decimal.Zero}, nil)
				accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(nil)
			},
			deposited: true,
		},
		{
			name:    "Referrer missing still sets the flag",
			account: domain.Account{ID: 3, ReferrerID: ptr(2)},
			amount:  "100",
			prepareMock: func(accountRepo *MockAccountRepo, _ *MockLedgerRepo) {
				accountRepo.EXPECT().FindByID(gomock.Any(), 2).Return(nil, nil)
				accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(nil)
			},
			deposited: true,
		},
		{
			name:    "Append fails",
			account: domain.Account{ID: 3, ReferrerID: ptr(2)},
			amount:  "100",
			prepareMock: func(accountRepo *MockAccountRepo, ledgerRepo *MockLedgerRepo) {
				accountRepo.EXPECT().FindByID(gomock.Any(), 2).Return(&domain.Account{ID: 2, ReferralBonusRate: decimal.RequireFromString("0.1")}, nil)
				ledgerRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil, errDB)
			},
			expectedErr: errDB,
		},
		{
			name:    "Mark deposited fails",
			account: domain.Account{ID: 3},
			amount:  "100",
			prepareMock: func(accountRepo *MockAccountRepo, _ *MockLedgerRepo) {
				accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(errDB)
			},
			expectedErr: errDB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, accountRepo, ledgerRepo := NewMock(t)
			tt.prepareMock(accountRepo, ledgerRepo)

			account := tt.account
			entry, err := service.ApplyIfEligible(context.Background(), &account, decimal.RequireFromString(tt.amount))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.False(t, account.HasDeposited)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.deposited, account.HasDeposited)
			if tt.expectedBonus == "" {
				assert.Nil(t, entry)
			} else {
				require.NotNil(t, entry)
				assert.True(t, decimal.RequireFromString(tt.expectedBonus).Equal(entry.Amount), entry.Amount.String())
			}
		})
	}
}

func TestApplyIfEligible_RunsOncePerAccount(t *testing.T) {
	service, accountRepo, ledgerRepo := NewMock(t)
	account := &domain.Account{ID: 3, ReferrerID: ptr(2)}

	accountRepo.EXPECT().FindByID(gomock.Any(), 2).Return(&domain.Account{ID: 2}, nil).Times(1)
	ledgerRepo.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
			return e, nil
		}).Times(1)
	accountRepo.EXPECT().AddReferralEarnings(gomock.Any(), 2, dec("20")).Return(nil).Times(1)
	accountRepo.EXPECT().MarkDeposited(gomock.Any(), 3).Return(nil).Times(1)

	first, err := service.ApplyIfEligible(context.Background(), account, decimal.RequireFromString("200"))
	require.NoError(t, err)
	assert.NotNil(t, first)

	second, err := service.ApplyIfEligible(context.Background(), account, decimal.RequireFromString("500"))
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestStats(t *testing.T) {
	service, accountRepo, ledgerRepo := NewMock(t)
	service.now = func() time.Time { return time.Date(2024, 10, 15, 18, 30, 0, 0, time.UTC) }

	today := time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -29)

	tests := []struct {
		name        string
		prepareMock func()
		expectedErr error
		check       func(t *testing.T, stats *domain.ReferralStats)
	}{
		{
			name: "Fills missing days",
			prepareMock: func() {
				accountRepo.EXPECT().FindByID(gomock.Any(), 2).Return(&domain.Account{ID: 2, ReferralCount: 5}, nil)
				accountRepo.EXPECT().CountReferralsByDay(gomock.Any(), 2, since).Return([]domain.DailyCount{
					{Day: since, Count: 1},
					{Day: today, Count: 3},
				}, nil)
				ledgerRepo.EXPECT().SumByKind(gomock.Any(), 2, domain.KindReferral).Return(decimal.RequireFromString("45.50"), nil)
			},
			check: func(t *testing.T, stats *domain.ReferralStats) {
				require.Len(t, stats.LastMonth, StatsWindow)
				assert.Equal(t, domain.DailyCount{Day: since, Count: 1}, stats.LastMonth[0])
				assert.Equal(t, domain.DailyCount{Day: today, Count: 3}, stats.LastMonth[StatsWindow-1])
				for _, d := range stats.LastMonth[1 : StatsWindow-1] {
					assert.Zero(t, d.Count, fmt.Sprint(d.Day))
				}
				assert.Equal(t, 5, stats.TotalReferrals)
				assert.Equal(t, "45.5", stats.TotalRevenue.String())
			},
		},
		{
			name: "Unknown account",
			prepareMock: func() {
				accountRepo.EXPECT().FindByID(gomock.Any(), 2).Return(nil, nil)
			},
			expectedErr: ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			stats, err := service.Stats(context.Background(), 2)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, stats)
		})
	}
}
