package accountrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

const accountColumns = `id, login, password_hash, role, referrer_id, has_deposited,
		referral_bonus_rate, referral_earnings, referral_count, created_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Login, &a.PasswordHash, &a.Role, &a.ReferrerID, &a.HasDeposited,
		&a.ReferralBonusRate, &a.ReferralEarnings, &a.ReferralCount, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (repo *Repository) find(ctx context.Context, query string, arg any) (*domain.Account, error) {
	account, err := scanAccount(repo.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't find account", zap.Error(err))
		return nil, err
	}
	return account, nil
}

func (repo *Repository) FindByLogin(ctx context.Context, login string) (*domain.Account, error) {
	return repo.find(ctx, "SELECT "+accountColumns+" FROM accounts WHERE login = $1", login)
}

func (repo *Repository) FindByID(ctx context.Context, id int) (*domain.Account, error) {
	return repo.find(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
}

// LockByID must run inside a transaction: the row stays locked until it ends.
func (repo *Repository) LockByID(ctx context.Context, id int) (*domain.Account, error) {
	return repo.find(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id)
}

func (repo *Repository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (login, password_hash, role, referrer_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns
	created, err := scanAccount(repo.db.QueryRow(ctx, query,
		account.Login, account.PasswordHash, account.Role, account.ReferrerID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrLoginTaken
		}
		zap.L().Error("can't save account", zap.Error(err))
		return nil, err
	}
	return created, nil
}

func (repo *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := repo.db.Exec(ctx, query, args...)
	if err != nil {
		zap.L().Error("can't update account", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %v: %w", args[0], pgx.ErrNoRows)
	}
	return nil
}

func (repo *Repository) IncrementReferralCount(ctx context.Context, id int) error {
	return repo.exec(ctx, "UPDATE accounts SET referral_count = referral_count + 1 WHERE id = $1", id)
}

func (repo *Repository) MarkDeposited(ctx context.Context, id int) error {
	return repo.exec(ctx, "UPDATE accounts SET has_deposited = TRUE WHERE id = $1", id)
}

// AddReferralEarnings increments in place so the referrer row is never read
// and rewritten under concurrent referral credits.
func (repo *Repository) AddReferralEarnings(ctx context.Context, id int, amount decimal.Decimal) error {
	return repo.exec(ctx, "UPDATE accounts SET referral_earnings = referral_earnings + $2 WHERE id = $1", id, amount)
}

func (repo *Repository) SetRole(ctx context.Context, id int, role domain.Role) error {
	return repo.exec(ctx, "UPDATE accounts SET role = $2 WHERE id = $1", id, role)
}

// CountReferralsByDay returns registrations referred by referrerID since the
// given time, grouped by UTC day. Days without registrations are omitted.
func (repo *Repository) CountReferralsByDay(ctx context.Context, referrerID int, since time.Time) ([]domain.DailyCount, error) {
	query := `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*)
		FROM accounts
		WHERE referrer_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day
	`
	rows, err := repo.db.Query(ctx, query, referrerID, since)
	if err != nil {
		zap.L().Error("can't count referrals", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var counts []domain.DailyCount
	for rows.Next() {
		var c domain.DailyCount
		if err := rows.Scan(&c.Day, &c.Count); err != nil {
			zap.L().Error("can't scan referral count", zap.Error(err))
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
