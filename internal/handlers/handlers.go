package handlers

import (
	"net/http"
	"strconv"
	"time"

	_ "github.com/GlebRadaev/casino-wallet/docs"
	adminhandlers "github.com/GlebRadaev/casino-wallet/internal/handlers/admin"
	authhandlers "github.com/GlebRadaev/casino-wallet/internal/handlers/auth"
	referralhandlers "github.com/GlebRadaev/casino-wallet/internal/handlers/referrals"
	wallethandlers "github.com/GlebRadaev/casino-wallet/internal/handlers/wallet"
	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/service"
	"github.com/GlebRadaev/casino-wallet/pkg/auth"
	"github.com/GlebRadaev/casino-wallet/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

type WalletHandler interface {
	GetBalance(w http.ResponseWriter, r *http.Request)
	Deposit(w http.ResponseWriter, r *http.Request)
	BonusDeposit(w http.ResponseWriter, r *http.Request)
	Withdraw(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	ClaimBonus(w http.ResponseWriter, r *http.Request)
	LastBonus(w http.ResponseWriter, r *http.Request)
	LastWithdrawal(w http.ResponseWriter, r *http.Request)
	ApplyPromo(w http.ResponseWriter, r *http.Request)
}

type AdminHandler interface {
	PendingWithdrawals(w http.ResponseWriter, r *http.Request)
	ConfirmWithdrawal(w http.ResponseWriter, r *http.Request)
	RejectWithdrawal(w http.ResponseWriter, r *http.Request)
	CreatePromoCode(w http.ResponseWriter, r *http.Request)
}

type ReferralHandler interface {
	Stats(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	AuthHandler     AuthHandler
	WalletHandler   WalletHandler
	AdminHandler    AdminHandler
	ReferralHandler ReferralHandler

	jwtService auth.JWTServiceInterface
	limiter    ratelimit.Consumer
	rateLimit  int
}

// New wires the HTTP layer. A nil limiter disables rate limiting of the
// mutating wallet endpoints.
func New(s *service.Services, limiter ratelimit.Consumer, rateLimitPerMinute int) *Handlers {
	return &Handlers{
		AuthHandler:     authhandlers.New(s.AuthService),
		WalletHandler:   wallethandlers.New(s.WalletService),
		AdminHandler:    adminhandlers.New(s.AdminService),
		ReferralHandler: referralhandlers.New(s.ReferralService),
		jwtService:      s.JWTService,
		limiter:         limiter,
		rateLimit:       rateLimitPerMinute,
	}
}

func byUser(r *http.Request) string {
	id, ok := auth.UserID(r.Context())
	if !ok {
		return ""
	}
	return strconv.Itoa(id)
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Authorization", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))

	limited := ratelimit.Middleware(h.limiter, "wallet", h.rateLimit, time.Minute, byUser)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.AuthHandler.Register)
		r.Post("/login", h.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(h.jwtService))
			r.Get("/referrals/stats", h.ReferralHandler.Stats)
		})
	})

	r.Route("/api/wallet", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(h.jwtService))

		r.Get("/balance", h.WalletHandler.GetBalance)
		r.Get("/history", h.WalletHandler.History)
		r.Get("/bonus/last-earn", h.WalletHandler.LastBonus)
		r.Get("/withdrawals/last", h.WalletHandler.LastWithdrawal)

		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/deposit", h.WalletHandler.Deposit)
			r.Post("/bonus-deposit", h.WalletHandler.BonusDeposit)
			r.Post("/withdrawal", h.WalletHandler.Withdraw)
			r.Post("/bonus", h.WalletHandler.ClaimBonus)
			r.Post("/promo", h.WalletHandler.ApplyPromo)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			auth.AuthMiddleware(h.jwtService),
			auth.RequireRole(string(domain.RoleAdmin), string(domain.RoleSuperuser)),
		)
		r.Get("/withdrawals/pending", h.AdminHandler.PendingWithdrawals)
		r.Post("/withdrawals/{id}/confirm", h.AdminHandler.ConfirmWithdrawal)
		r.Post("/withdrawals/{id}/reject", h.AdminHandler.RejectWithdrawal)
		r.Post("/promo-codes", h.AdminHandler.CreatePromoCode)
	})

	return r
}
