package ledgerrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const entryColumns = `id, account_id, kind, amount, status, payment_system, from_account, to_account, created_at`

type Repository struct {
	db  pg.Database
	now func() time.Time
}

func New(db pg.Database) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Status,
		&e.PaymentSystem, &e.FromAccount, &e.ToAccount, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Append stores a new entry and fills in its id. created_at is taken from the
// entry, or from the application clock when unset; the database clock is
// never used.
func (r *Repository) Append(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	query := `
		INSERT INTO transactions (account_id, kind, amount, status, payment_system, from_account, to_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	stored := *entry
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	err := r.db.QueryRow(ctx, query, entry.AccountID, entry.Kind, entry.Amount, entry.Status,
		entry.PaymentSystem, entry.FromAccount, entry.ToAccount, stored.CreatedAt).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		zap.L().Error("failed to append ledger entry", zap.Error(err))
		return nil, err
	}
	return &stored, nil
}

func (r *Repository) get(ctx context.Context, query string, id int) (*domain.LedgerEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to get ledger entry", zap.Error(err))
		return nil, err
	}
	return entry, nil
}

func (r *Repository) Get(ctx context.Context, id int) (*domain.LedgerEntry, error) {
	return r.get(ctx, "SELECT "+entryColumns+" FROM transactions WHERE id = $1", id)
}

func (r *Repository) GetForUpdate(ctx context.Context, id int) (*domain.LedgerEntry, error) {
	return r.get(ctx, "SELECT "+entryColumns+" FROM transactions WHERE id = $1 FOR UPDATE", id)
}

func (r *Repository) ListByAccount(ctx context.Context, accountID int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, "SELECT "+entryColumns+" FROM transactions WHERE account_id = $1 ORDER BY created_at, id", accountID)
	if err != nil {
		zap.L().Error("failed to list ledger entries", zap.Error(err))
		return nil, err
	}
	entries, err := collect(rows)
	if err != nil {
		zap.L().Error("failed to scan ledger entries", zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// UpdateStatus moves a pending entry to a terminal status. Any other
// transition leaves the row untouched and returns domain.ErrInvalidTransition.
func (r *Repository) UpdateStatus(ctx context.Context, id int, status domain.Status) (*domain.LedgerEntry, error) {
	if status != domain.StatusConfirmed && status != domain.StatusRejected {
		return nil, fmt.Errorf("%w: to %q", domain.ErrInvalidTransition, status)
	}
	query := `
		UPDATE transactions SET status = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + entryColumns
	entry, err := scanEntry(r.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: entry %d is not pending", domain.ErrInvalidTransition, id)
		}
		zap.L().Error("failed to update ledger entry status", zap.Error(err))
		return nil, err
	}
	return entry, nil
}

func (r *Repository) ListPendingWithdrawals(ctx context.Context) ([]domain.LedgerEntry, error) {
	query := "SELECT " + entryColumns + " FROM transactions WHERE kind = 'outflow' AND status = 'pending' ORDER BY created_at, id"
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		zap.L().Error("failed to list pending withdrawals", zap.Error(err))
		return nil, err
	}
	entries, err := collect(rows)
	if err != nil {
		zap.L().Error("failed to scan pending withdrawals", zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// LatestByKind returns the newest entry of the given kind, or nil.
func (r *Repository) LatestByKind(ctx context.Context, accountID int, kind domain.Kind) (*domain.LedgerEntry, error) {
	query := "SELECT " + entryColumns + " FROM transactions WHERE account_id = $1 AND kind = $2 ORDER BY created_at DESC, id DESC LIMIT 1"
	entry, err := scanEntry(r.db.QueryRow(ctx, query, accountID, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to get latest ledger entry", zap.Error(err))
		return nil, err
	}
	return entry, nil
}

func kindArg(kinds []domain.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func (r *Repository) CountHistory(ctx context.Context, filter domain.HistoryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1 AND ($2::text[] IS NULL OR kind = ANY($2))`
	var total int
	if err := r.db.QueryRow(ctx, query, filter.AccountID, kindArg(filter.Kinds)).Scan(&total); err != nil {
		zap.L().Error("failed to count history", zap.Error(err))
		return 0, err
	}
	return total, nil
}

// History returns one page of entries, newest first, and the total number
// of entries matching the filter.
func (r *Repository) History(ctx context.Context, filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	total, err := r.CountHistory(ctx, filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + entryColumns + ` FROM transactions
		WHERE account_id = $1 AND ($2::text[] IS NULL OR kind = ANY($2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, filter.AccountID, kindArg(filter.Kinds), filter.Limit, filter.Offset())
	if err != nil {
		zap.L().Error("failed to query history", zap.Error(err))
		return nil, err
	}
	entries, err := collect(rows)
	if err != nil {
		zap.L().Error("failed to scan history", zap.Error(err))
		return nil, err
	}
	return &domain.HistoryPage{Total: total, Entries: entries}, nil
}

// SumByKind totals the confirmed entries of one kind on an account.
func (r *Repository) SumByKind(ctx context.Context, accountID int, kind domain.Kind) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1 AND kind = $2 AND status = 'confirmed'
	`
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, accountID, kind).Scan(&sum); err != nil {
		zap.L().Error("failed to sum ledger entries", zap.Error(err))
		return decimal.Zero, err
	}
	return sum, nil
}
