package ledgerrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now     = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	columns = []string{"id", "account_id", "kind", "amount", "status", "payment_system", "from_account", "to_account", "created_at"}
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	t.Cleanup(mockDB.Close)

	return repo, mockDB
}

func entry(id int, kind domain.Kind, amount string, status domain.Status) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:            id,
		AccountID:     1,
		Kind:          kind,
		Amount:        decimal.RequireFromString(amount),
		Status:        status,
		PaymentSystem: domain.PaymentCard,
		ToAccount:     "4561261212345467",
		CreatedAt:     now.Add(time.Duration(id) * time.Minute),
	}
}

func entryRows(entries ...domain.LedgerEntry) *pgxmock.Rows {
	rows := pgxmock.NewRows(columns)
	for _, e := range entries {
		rows.AddRow(e.ID, e.AccountID, e.Kind, e.Amount, e.Status, e.PaymentSystem, e.FromAccount, e.ToAccount, e.CreatedAt)
	}
	return rows
}

func TestRepository_Append(t *testing.T) {
	repo, mock := NewMock(t)
	repo.now = func() time.Time { return now.Add(time.Hour) }
	query := regexp.QuoteMeta("INSERT INTO transactions (account_id, kind, amount, status, payment_system, from_account, to_account, created_at)")

	stamped := entry(0, domain.KindBonus, "30.10", domain.StatusConfirmed)
	stamped.CreatedAt = now
	unstamped := entry(0, domain.KindOutflow, "30.10", domain.StatusPending)
	unstamped.CreatedAt = time.Time{}

	tests := []struct {
		name      string
		in        domain.LedgerEntry
		mockSetup func()
		wantAt    time.Time
		expectErr bool
	}{
		{
			name: "Caller timestamp is stored as given",
			in:   stamped,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, domain.KindBonus, stamped.Amount, domain.StatusConfirmed, domain.PaymentCard, "", "4561261212345467", now).
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))
			},
			wantAt: now,
		},
		{
			name: "Missing timestamp uses application clock",
			in:   unstamped,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, domain.KindOutflow, unstamped.Amount, domain.StatusPending, domain.PaymentCard, "", "4561261212345467", now.Add(time.Hour)).
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(42, now.Add(time.Hour)))
			},
			wantAt: now.Add(time.Hour),
		},
		{
			name: "Database error",
			in:   stamped,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, domain.KindBonus, stamped.Amount, domain.StatusConfirmed, domain.PaymentCard, "", "4561261212345467", now).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			in := tt.in
			result, err := repo.Append(context.Background(), &in)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 42, result.ID)
				assert.Equal(t, tt.wantAt, result.CreatedAt)
				assert.Equal(t, 0, in.ID, "input entry must not be modified")
				assert.Equal(t, tt.in.CreatedAt, in.CreatedAt, "input entry must not be modified")
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_GetForUpdate(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta("SELECT " + entryColumns + " FROM transactions WHERE id = $1 FOR UPDATE")
	e := entry(5, domain.KindOutflow, "10", domain.StatusPending)

	mock.ExpectQuery(query).WithArgs(5).WillReturnRows(entryRows(e))
	result, err := repo.GetForUpdate(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, &e, result)

	mock.ExpectQuery(query).WithArgs(6).WillReturnError(pgx.ErrNoRows)
	result, err = repo.GetForUpdate(context.Background(), 6)
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListByAccount(t *testing.T) {
	repo, mock := NewMock(t)
	entries := []domain.LedgerEntry{
		entry(1, domain.KindInflow, "100.10", domain.StatusConfirmed),
		entry(2, domain.KindBonus, "42", domain.StatusConfirmed),
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE account_id = $1 ORDER BY created_at, id")).
		WithArgs(1).
		WillReturnRows(entryRows(entries...))

	result, err := repo.ListByAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, entries, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta("UPDATE transactions SET status = $2")

	tests := []struct {
		name        string
		status      domain.Status
		mockSetup   func()
		expectedErr error
	}{
		{
			name:   "Confirm pending entry",
			status: domain.StatusConfirmed,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(5, domain.StatusConfirmed).
					WillReturnRows(entryRows(entry(5, domain.KindOutflow, "10", domain.StatusConfirmed)))
			},
		},
		{
			name:   "Entry no longer pending",
			status: domain.StatusRejected,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(5, domain.StatusRejected).
					WillReturnError(pgx.ErrNoRows)
			},
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:        "Target status is not terminal",
			status:      domain.StatusPending,
			mockSetup:   func() {},
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:   "Database error",
			status: domain.StatusConfirmed,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(5, domain.StatusConfirmed).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.UpdateStatus(context.Background(), 5, tt.status)
			if tt.expectedErr != nil {
				assert.Nil(t, result)
				if errors.Is(tt.expectedErr, domain.ErrInvalidTransition) {
					assert.ErrorIs(t, err, domain.ErrInvalidTransition)
				} else {
					assert.EqualError(t, err, tt.expectedErr.Error())
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.status, result.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_ListPendingWithdrawals(t *testing.T) {
	repo, mock := NewMock(t)
	pending := entry(3, domain.KindOutflow, "15", domain.StatusPending)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE kind = 'outflow' AND status = 'pending'")).
		WillReturnRows(entryRows(pending))

	result, err := repo.ListPendingWithdrawals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.LedgerEntry{pending}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LatestByKind(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta("WHERE account_id = $1 AND kind = $2 ORDER BY created_at DESC, id DESC LIMIT 1")
	bonus := entry(9, domain.KindBonus, "55", domain.StatusConfirmed)

	mock.ExpectQuery(query).WithArgs(1, domain.KindBonus).WillReturnRows(entryRows(bonus))
	result, err := repo.LatestByKind(context.Background(), 1, domain.KindBonus)
	require.NoError(t, err)
	assert.Equal(t, &bonus, result)

	mock.ExpectQuery(query).WithArgs(1, domain.KindOutflow).WillReturnError(pgx.ErrNoRows)
	result, err = repo.LatestByKind(context.Background(), 1, domain.KindOutflow)
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_History(t *testing.T) {
	repo, mock := NewMock(t)
	countQuery := regexp.QuoteMeta("SELECT COUNT(*) FROM transactions")
	pageQuery := regexp.QuoteMeta("LIMIT $3 OFFSET $4")
	newest := entry(4, domain.KindBonus, "20", domain.StatusConfirmed)

	tests := []struct {
		name      string
		filter    domain.HistoryFilter
		mockSetup func()
		expectErr bool
		result    *domain.HistoryPage
	}{
		{
			name:   "All kinds",
			filter: domain.HistoryFilter{AccountID: 1, Page: 2, Limit: 1},
			mockSetup: func() {
				mock.ExpectQuery(countQuery).
					WithArgs(1, []string(nil)).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
				mock.ExpectQuery(pageQuery).
					WithArgs(1, []string(nil), 1, 1).
					WillReturnRows(entryRows(newest))
			},
			result: &domain.HistoryPage{Total: 3, Entries: []domain.LedgerEntry{newest}},
		},
		{
			name:   "Filtered by kind",
			filter: domain.HistoryFilter{AccountID: 1, Kinds: []domain.Kind{domain.KindBonus, domain.KindReferral}, Page: 1, Limit: 10},
			mockSetup: func() {
				mock.ExpectQuery(countQuery).
					WithArgs(1, []string{"bonus", "referral"}).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
				mock.ExpectQuery(pageQuery).
					WithArgs(1, []string{"bonus", "referral"}, 10, 0).
					WillReturnRows(entryRows(newest))
			},
			result: &domain.HistoryPage{Total: 1, Entries: []domain.LedgerEntry{newest}},
		},
		{
			name:   "Count fails",
			filter: domain.HistoryFilter{AccountID: 1, Page: 1, Limit: 10},
			mockSetup: func() {
				mock.ExpectQuery(countQuery).
					WithArgs(1, []string(nil)).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.History(context.Background(), tt.filter)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.result, result)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_SumByKind(t *testing.T) {
	repo, mock := NewMock(t)
	sum := decimal.RequireFromString("17.35")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0)")).
		WithArgs(3, domain.KindReferral).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(sum))

	result, err := repo.SumByKind(context.Background(), 3, domain.KindReferral)
	require.NoError(t, err)
	assert.True(t, sum.Equal(result))
	assert.NoError(t, mock.ExpectationsWereMet())
}
