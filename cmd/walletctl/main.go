// Command walletctl runs operator tasks against the wallet database.
//
//	walletctl create-staff -login alice -password secret123 -role admin
//	walletctl create-promo -code WELCOME100 -amount 100
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/casino-wallet/internal/config"
	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/GlebRadaev/casino-wallet/internal/repo"
	"github.com/GlebRadaev/casino-wallet/internal/service/authservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/referralservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/walletservice"
	"github.com/GlebRadaev/casino-wallet/pkg/auth"
	"github.com/GlebRadaev/casino-wallet/pkg/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: walletctl <create-staff|create-promo> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv()
	if err := logger.InitLogger(cfg); err != nil {
		log.Fatal().Err(err).Msg("Can't init logger")
	}

	var err error
	switch os.Args[1] {
	case "create-staff":
		err = createStaff(ctx, cfg, os.Args[2:])
	case "create-promo":
		err = createPromo(ctx, cfg, os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, *repo.Repositories, error) {
	pool, err := pgxpool.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("can't build pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("can't reach database: %w", err)
	}
	if err := pg.RunMigrations(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("can't run migrations: %w", err)
	}
	return pool, repo.New(pg.New(pool)), nil
}

func createStaff(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-staff", flag.ExitOnError)
	login := fs.String("login", "", "staff login")
	password := fs.String("password", "", "staff password")
	role := fs.String("role", string(domain.RoleSupport), "admin, support or superuser")
	fs.StringVar(&cfg.Database, "d", cfg.Database, "database DSN")
	fs.Parse(args)

	pool, repos, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := authservice.New(repos.AccountRepo, pg.NewTXManager(pool), auth.NewHashService(cfg.BcryptCost), auth.NewJWTService(cfg.JWTSecret), cfg.TokenTTL)
	account, err := svc.CreateStaff(ctx, *login, *password, domain.Role(*role))
	if err != nil {
		return err
	}

	log.Info().Int("id", account.ID).Str("login", account.Login).Str("role", string(account.Role)).Msg("Staff account created")
	return nil
}

func createPromo(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-promo", flag.ExitOnError)
	code := fs.String("code", "", "promo code")
	amount := fs.String("amount", "", "bonus amount, e.g. 100.00")
	fs.StringVar(&cfg.Database, "d", cfg.Database, "database DSN")
	fs.Parse(args)

	value, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", *amount, err)
	}

	pool, repos, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	referrals := referralservice.New(repos.AccountRepo, repos.LedgerRepo)
	svc := walletservice.New(pg.NewTXManager(pool), repos.AccountRepo, repos.LedgerRepo, repos.PromoRepo, referrals, nil, nil)
	promo, err := svc.CreatePromoCode(ctx, *code, value)
	if err != nil {
		return err
	}

	log.Info().Str("code", promo.Code).Str("amount", promo.Amount.StringFixed(2)).Msg("Promo code created")
	return nil
}
