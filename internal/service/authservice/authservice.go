package authservice

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/GlebRadaev/casino-wallet/internal/service/referralservice"
	"github.com/GlebRadaev/casino-wallet/pkg/auth"
	"go.uber.org/zap"
)

const DefaultTokenTTL = 15 * time.Minute

type Repo interface {
	FindByLogin(ctx context.Context, login string) (*domain.Account, error)
	FindByID(ctx context.Context, id int) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	IncrementReferralCount(ctx context.Context, id int) error
	SetRole(ctx context.Context, id int, role domain.Role) error
}

var (
	ErrLoginTaken         = domain.ErrLoginTaken
	ErrInvalidLogin       = errors.New("login must be 3 to 64 characters without spaces")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid staff role")
)

type Service struct {
	accountRepo Repo
	txManager   pg.TXManager
	hashService auth.HashServiceInterface
	jwtService  auth.JWTServiceInterface
	tokenTTL    time.Duration
}

func New(repo Repo, txManager pg.TXManager, hashService auth.HashServiceInterface, jwtService auth.JWTServiceInterface, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		accountRepo: repo,
		txManager:   txManager,
		hashService: hashService,
		jwtService:  jwtService,
		tokenTTL:    tokenTTL,
	}
}

func validLogin(login string) bool {
	if len(login) < 3 || len(login) > 64 {
		return false
	}
	return !strings.ContainsFunc(login, unicode.IsSpace)
}

// Register creates a user account. The referrer, when given, must already
// exist; its referral_count grows in the same transaction.
func (s *Service) Register(ctx context.Context, login, password string, referrerID *int) (*domain.Account, error) {
	if !validLogin(login) {
		return nil, ErrInvalidLogin
	}
	existing, err := s.accountRepo.FindByLogin(ctx, login)
	if err != nil {
		zap.L().Error("can't find account", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		zap.L().Info("account already exists", zap.String("login", login))
		return nil, ErrLoginTaken
	}
	hashedPassword, err := s.hashService.HashPassword(password)
	if err != nil {
		zap.L().Error("can't hash password", zap.Error(err))
		return nil, err
	}

	var account *domain.Account
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if referrerID != nil {
			referrer, err := s.accountRepo.FindByID(ctx, *referrerID)
			if err != nil {
				return err
			}
			if referrer == nil {
				return referralservice.ErrReferrerNotFound
			}
		}

		account, err = s.accountRepo.Create(ctx, &domain.Account{
			Login:        login,
			PasswordHash: hashedPassword,
			Role:         domain.RoleUser,
			ReferrerID:   referrerID,
		})
		if err != nil {
			return err
		}

		if referrerID != nil {
			return s.accountRepo.IncrementReferralCount(ctx, *referrerID)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("can't create account", zap.String("login", login), zap.Error(err))
		return nil, err
	}

	zap.L().Info("account successfully registered", zap.String("login", login), zap.Int("account_id", account.ID))
	return account, nil
}

func (s *Service) Authenticate(ctx context.Context, login, password string) (*domain.Account, error) {
	account, err := s.accountRepo.FindByLogin(ctx, login)
	if err != nil || account == nil {
		zap.L().Info("invalid credentials", zap.String("login", login), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if ok := s.hashService.ComparePassword(account.PasswordHash, password); !ok {
		zap.L().Info("invalid credentials", zap.String("login", login))
		return nil, ErrInvalidCredentials
	}
	zap.L().Info("account successfully authenticated", zap.String("login", login))
	return account, nil
}

func (s *Service) GenerateToken(account *domain.Account) (string, error) {
	token, err := s.jwtService.GenerateJWT(account.ID, string(account.Role), time.Now().Add(s.tokenTTL))
	if err != nil {
		zap.L().Error("can't generate token", zap.Error(err))
		return "", err
	}
	return token, nil
}

// CreateStaff registers an operator account and assigns it a staff role.
func (s *Service) CreateStaff(ctx context.Context, login, password string, role domain.Role) (*domain.Account, error) {
	switch role {
	case domain.RoleAdmin, domain.RoleSupport, domain.RoleSuperuser:
	default:
		return nil, ErrInvalidRole
	}

	var account *domain.Account
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		if account, err = s.Register(ctx, login, password, nil); err != nil {
			return err
		}
		if err = s.accountRepo.SetRole(ctx, account.ID, role); err != nil {
			return err
		}
		account.Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("staff account created", zap.String("login", login), zap.String("role", string(role)))
	return account, nil
}
