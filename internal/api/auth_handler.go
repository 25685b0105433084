package api

import (
	"net/http"

	"github.com/promail/webmail/internal/auth"
	"github.com/promail/webmail/internal/models"
	"go.uber.org/zap"
)

type AuthHandler struct {
	repo   SettingsRepository
	logger *zap.Logger
}

func NewAuthHandler(repo SettingsRepository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{repo: repo, logger: logger}
}

func (h *AuthHandler) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email, ok := auth.GetUserEmailFromContext(ctx)
	if !ok {
		h.logger.Warn("AuthHandler: no user email in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := h.repo.GetOrCreateUser(ctx, email)
	if err != nil {
		h.logger.Error("AuthHandler: failed to get/create user", zap.String("email", email), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	isSetupComplete, err := h.repo.UserSettingsExist(ctx, userID)
	if err != nil {
		h.logger.Error("AuthHandler: failed to check setup status", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// The middleware already rejected requests without a valid token.
	writeJSON(w, h.logger, http.StatusOK, models.AuthStatusResponse{
		IsAuthenticated: true,
		IsSetupComplete: isSetupComplete,
		Email:           email,
	})
}
