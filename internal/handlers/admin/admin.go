package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/dto"
	"github.com/GlebRadaev/casino-wallet/internal/ledger"
	promorepo "github.com/GlebRadaev/casino-wallet/internal/repo/promo-repo"
	"github.com/GlebRadaev/casino-wallet/internal/service/walletservice"
	"github.com/GlebRadaev/casino-wallet/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	ListPendingWithdrawals(ctx context.Context) ([]domain.LedgerEntry, error)
	ConfirmWithdrawal(ctx context.Context, id int) (*domain.LedgerEntry, error)
	RejectWithdrawal(ctx context.Context, id int) (*domain.LedgerEntry, error)
	CreatePromoCode(ctx context.Context, code string, amount decimal.Decimal) (*domain.PromoCode, error)
}

type AdminHandler struct {
	walletService Service
}

func New(walletService Service) *AdminHandler {
	return &AdminHandler{
		walletService: walletService,
	}
}

// PendingWithdrawals godoc
//
//	@Summary		List pending withdrawals
//	@Description	Withdrawal requests awaiting an operator decision, oldest first.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.TransactionDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		403	{object}	utils.Response	"Forbidden"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/admin/withdrawals/pending [get]
func (h *AdminHandler) PendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	entries, err := h.walletService.ListPendingWithdrawals(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch withdrawals")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransactions(entries))
}

// ConfirmWithdrawal godoc
//
//	@Summary		Confirm a withdrawal
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Withdrawal id"
//	@Success		200	{object}	dto.TransactionDTO
//	@Failure		400	{object}	utils.Response	"Invalid id"
//	@Failure		404	{object}	utils.Response	"Withdrawal not found"
//	@Failure		409	{object}	utils.Response	"Withdrawal is not pending"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/admin/withdrawals/{id}/confirm [post]
func (h *AdminHandler) ConfirmWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.walletService.ConfirmWithdrawal)
}

// RejectWithdrawal godoc
//
//	@Summary		Reject a withdrawal
//	@Description	Rejection releases the reserved funds.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Withdrawal id"
//	@Success		200	{object}	dto.TransactionDTO
//	@Failure		400	{object}	utils.Response	"Invalid id"
//	@Failure		404	{object}	utils.Response	"Withdrawal not found"
//	@Failure		409	{object}	utils.Response	"Withdrawal is not pending"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/admin/withdrawals/{id}/reject [post]
func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.walletService.RejectWithdrawal)
}

func (h *AdminHandler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, int) (*domain.LedgerEntry, error)) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid withdrawal id")
		return
	}
	entry, err := fn(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, walletservice.ErrEntryNotFound), errors.Is(err, walletservice.ErrNotWithdrawal):
			utils.RespondWithError(w, http.StatusNotFound, "Withdrawal not found")
		case errors.Is(err, walletservice.ErrNotPending):
			utils.RespondWithError(w, http.StatusConflict, "Withdrawal is not pending")
		default:
			zap.L().Error("withdrawal decision failed", zap.Int("id", id), zap.Error(err))
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransaction(*entry))
}

// CreatePromoCode godoc
//
//	@Summary		Create a promo code
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.CreatePromoRequestDTO	true	"Promo code"
//	@Success		201		{object}	dto.PromoCodeDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		409		{object}	utils.Response	"Promo code already exists"
//	@Failure		422		{object}	utils.Response	"Invalid code or amount"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/admin/promo-codes [post]
func (h *AdminHandler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePromoRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	promo, err := h.walletService.CreatePromoCode(r.Context(), req.Code, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidEntry):
			utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, promorepo.ErrCodeExists):
			utils.RespondWithError(w, http.StatusConflict, "Promo code already exists")
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewPromoCode(*promo))
}
