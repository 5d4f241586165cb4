package service

import (
	"fmt"

	"github.com/GlebRadaev/casino-wallet/internal/config"
	"github.com/GlebRadaev/casino-wallet/internal/handlers/admin"
	"github.com/GlebRadaev/casino-wallet/internal/handlers/auth"
	"github.com/GlebRadaev/casino-wallet/internal/handlers/referrals"
	"github.com/GlebRadaev/casino-wallet/internal/handlers/wallet"
	"github.com/GlebRadaev/casino-wallet/internal/ledger"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/GlebRadaev/casino-wallet/internal/repo"
	"github.com/GlebRadaev/casino-wallet/internal/service/authservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/referralservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/walletservice"

	pkgauth "github.com/GlebRadaev/casino-wallet/pkg/auth"
)

type Services struct {
	AuthService     auth.Service
	WalletService   wallet.Service
	AdminService    admin.Service
	ReferralService referrals.Service
	JWTService      pkgauth.JWTServiceInterface
}

func New(repos *repo.Repositories, txManager pg.TXManager, cfg *config.Config, notifier walletservice.Notifier) (*Services, error) {
	policy, err := ledger.NewBonusPolicy(cfg.BonusMin, cfg.BonusMax, cfg.BonusInterval, ledger.NewSeededSource(cfg.BonusSeed))
	if err != nil {
		return nil, fmt.Errorf("bonus policy: %w", err)
	}

	jwtService := pkgauth.NewJWTService(cfg.JWTSecret)
	referralService := referralservice.New(repos.AccountRepo, repos.LedgerRepo)
	walletService := walletservice.New(txManager, repos.AccountRepo, repos.LedgerRepo, repos.PromoRepo, referralService, policy, notifier)
	authService := authservice.New(repos.AccountRepo, txManager, pkgauth.NewHashService(cfg.BcryptCost), jwtService, cfg.TokenTTL)

	return &Services{
		AuthService:     authService,
		WalletService:   walletService,
		AdminService:    walletService,
		ReferralService: referralService,
		JWTService:      jwtService,
	}, nil
}
