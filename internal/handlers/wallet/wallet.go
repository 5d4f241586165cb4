package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/dto"
	"github.com/GlebRadaev/casino-wallet/internal/ledger"
	"github.com/GlebRadaev/casino-wallet/internal/service/walletservice"
	"github.com/GlebRadaev/casino-wallet/pkg/auth"
	"github.com/GlebRadaev/casino-wallet/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	defaultLimit = 5
)

type Service interface {
	GetBalance(ctx context.Context, accountID int) (domain.BalanceView, error)
	Deposit(ctx context.Context, accountID int, kind domain.Kind, amount decimal.Decimal, system domain.PaymentSystem, from string) (*domain.LedgerEntry, error)
	RequestWithdrawal(ctx context.Context, accountID int, amount decimal.Decimal, system domain.PaymentSystem, to string) (*domain.LedgerEntry, error)
	History(ctx context.Context, filter domain.HistoryFilter) (*domain.HistoryPage, error)
	ClaimDailyBonus(ctx context.Context, accountID int) (*domain.BonusClaim, error)
	LastBonusAt(ctx context.Context, accountID int) (time.Time, error)
	LastWithdrawalAt(ctx context.Context, accountID int) (time.Time, error)
	ApplyPromoCode(ctx context.Context, accountID int, code string) (*domain.LedgerEntry, error)
}

type WalletHandler struct {
	walletService Service
}

func New(walletService Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	var tooEarly *ledger.TooEarlyError
	switch {
	case errors.As(err, &tooEarly):
		seconds := int(math.Ceil(tooEarly.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		utils.RespondWithError(w, http.StatusTooEarly, "Too early")
	case errors.Is(err, ledger.ErrInvalidEntry):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, walletservice.ErrInsufficientPureFunds):
		utils.RespondWithError(w, http.StatusPaymentRequired, "Insufficient pure balance to withdraw")
	case errors.Is(err, walletservice.ErrInvalidPage):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, walletservice.ErrAccountNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, walletservice.ErrNoBonus):
		utils.RespondWithError(w, http.StatusNotFound, "No bonus transactions found for this user")
	case errors.Is(err, walletservice.ErrPromoNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Promo code not found")
	case errors.Is(err, walletservice.ErrPromoUsed):
		utils.RespondWithError(w, http.StatusBadRequest, "Promo code already used")
	default:
		zap.L().Error("wallet request failed", zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}

// GetBalance godoc
//
//	@Summary		Get wallet balance
//	@Description	Total, bonus-only and pure balances derived from the ledger, plus funds reserved by pending withdrawals.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.BalanceResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	view, err := h.walletService.GetBalance(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewBalanceResponse(view))
}

// Deposit godoc
//
//	@Summary		Deposit funds
//	@Description	Record a confirmed inflow. The first deposit credits the referrer, if any.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.DepositRequestDTO	true	"Deposit payload"
//	@Success		200		{object}	dto.TransactionDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Invalid amount or payment system"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/deposit [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.deposit(w, r, domain.KindInflow)
}

// BonusDeposit godoc
//
//	@Summary		Deposit bonus funds
//	@Description	Record a confirmed bonus entry. Bonus funds count towards the total balance only.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.DepositRequestDTO	true	"Deposit payload"
//	@Success		200		{object}	dto.TransactionDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Invalid amount or payment system"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/bonus-deposit [post]
func (h *WalletHandler) BonusDeposit(w http.ResponseWriter, r *http.Request) {
	h.deposit(w, r, domain.KindBonus)
}

func (h *WalletHandler) deposit(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.DepositRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	entry, err := h.walletService.Deposit(r.Context(), id, kind, req.Amount, domain.PaymentSystem(req.PaymentSystem), req.FromAccount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransaction(*entry))
}

// Withdraw godoc
//
//	@Summary		Request a withdrawal
//	@Description	Create a pending withdrawal. It reserves funds until an operator confirms or rejects it.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.WithdrawalRequestDTO	true	"Withdrawal payload"
//	@Success		200		{object}	dto.TransactionDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		402		{object}	utils.Response	"Insufficient pure balance"
//	@Failure		422		{object}	utils.Response	"Invalid amount, payment system or destination"
//	@Failure		429		{object}	utils.Response	"Too many requests"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/withdrawal [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.WithdrawalRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	entry, err := h.walletService.RequestWithdrawal(r.Context(), id, req.Amount, domain.PaymentSystem(req.PaymentSystem), req.ToAccount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransaction(*entry))
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parseKinds(raw string) []domain.Kind {
	if raw == "" {
		return nil
	}
	var kinds []domain.Kind
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			kinds = append(kinds, domain.Kind(part))
		}
	}
	return kinds
}

// History godoc
//
//	@Summary		Transaction history
//	@Description	Paginated ledger entries, newest first, optionally filtered by a comma separated list of types.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			page	query		int		false	"Page number"	default(1)
//	@Param			limit	query		int		false	"Page size"		default(5)
//	@Param			types	query		string	false	"Entry types, e.g. inflow,bonus"
//	@Success		200		{object}	dto.HistoryResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid page parameters"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/history [get]
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page", defaultPage)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	result, err := h.walletService.History(r.Context(), domain.HistoryFilter{
		AccountID: id,
		Kinds:     parseKinds(r.URL.Query().Get("types")),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.HistoryResponseDTO{
		Total:        result.Total,
		Transactions: dto.NewTransactions(result.Entries),
	})
}

// ClaimBonus godoc
//
//	@Summary		Claim the daily bonus
//	@Description	Issue a random bonus once per interval. Too early claims get 425 with Retry-After in seconds.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.BonusClaimResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		425	{object}	utils.Response	"Too early"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/bonus [post]
func (h *WalletHandler) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	claim, err := h.walletService.ClaimDailyBonus(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.BonusClaimResponseDTO{
		Amount:  claim.Entry.Amount,
		Balance: claim.Balance.Total,
	})
}

// LastBonus godoc
//
//	@Summary		Time of the last bonus
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.LastEarnResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		404	{object}	utils.Response	"No bonus transactions"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/bonus/last-earn [get]
func (h *WalletHandler) LastBonus(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	at, err := h.walletService.LastBonusAt(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.LastEarnResponseDTO{CreatedAt: at.UTC()})
}

// LastWithdrawal godoc
//
//	@Summary		Time of the last withdrawal request
//	@Description	Returns 1900-09-01T00:00:00Z when the user never requested a withdrawal.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.LastWithdrawalResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/withdrawals/last [get]
func (h *WalletHandler) LastWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	at, err := h.walletService.LastWithdrawalAt(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.LastWithdrawalResponseDTO{CreatedAt: at.UTC()})
}

// ApplyPromo godoc
//
//	@Summary		Redeem a promo code
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PromoRequestDTO	true	"Promo code"
//	@Success		200		{object}	dto.PromoAppliedResponseDTO
//	@Failure		400		{object}	utils.Response	"Promo code already used"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		404		{object}	utils.Response	"Promo code not found"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/promo [post]
func (h *WalletHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.PromoRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	entry, err := h.walletService.ApplyPromoCode(r.Context(), id, req.Code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.PromoAppliedResponseDTO{
		Message: "Promo code applied successfully",
		Amount:  entry.Amount,
	})
}
