package promorepo

import (
	"context"
	"errors"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var ErrCodeExists = errors.New("promo code already exists")

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	query := `
		INSERT INTO promo_codes (code, amount)
		VALUES ($1, $2)
		RETURNING created_at
	`
	created := *promo
	if err := r.db.QueryRow(ctx, query, promo.Code, promo.Amount).Scan(&created.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrCodeExists
		}
		zap.L().Error("failed to create promo code", zap.Error(err))
		return nil, err
	}
	return &created, nil
}

// FindForUpdate locks the code row for the rest of the transaction.
func (r *Repository) FindForUpdate(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `
		SELECT code, amount, used_by, used_at, created_at
		FROM promo_codes
		WHERE code = $1
		FOR UPDATE
	`
	var p domain.PromoCode
	err := r.db.QueryRow(ctx, query, code).Scan(&p.Code, &p.Amount, &p.UsedBy, &p.UsedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to find promo code", zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *Repository) MarkUsed(ctx context.Context, code string, accountID int) error {
	tag, err := r.db.Exec(ctx, "UPDATE promo_codes SET used_by = $2, used_at = NOW() WHERE code = $1 AND used_by IS NULL", code, accountID)
	if err != nil {
		zap.L().Error("failed to mark promo code used", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPromoUsed
	}
	return nil
}
