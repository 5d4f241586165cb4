package referrals

import (
	"context"
	"errors"
	"net/http"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/dto"
	"github.com/GlebRadaev/casino-wallet/internal/service/referralservice"
	"github.com/GlebRadaev/casino-wallet/pkg/auth"
	"github.com/GlebRadaev/casino-wallet/pkg/utils"
)

type Service interface {
	Stats(ctx context.Context, accountID int) (*domain.ReferralStats, error)
}

type ReferralHandler struct {
	referralService Service
}

func New(referralService Service) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

// Stats godoc
//
//	@Summary		Referral statistics
//	@Description	Referrals per day over the last 30 days, total referrals and total referral revenue.
//	@Tags			Referrals
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.ReferralStatsDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		404	{object}	utils.Response	"Account not found"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/user/referrals/stats [get]
func (h *ReferralHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	stats, err := h.referralService.Stats(r.Context(), userID)
	if err != nil {
		if errors.Is(err, referralservice.ErrAccountNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Account not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewReferralStats(*stats))
}
