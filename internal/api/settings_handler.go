package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/crypto"
	"github.com/promail/webmail/internal/db"
	"github.com/promail/webmail/internal/models"
	"go.uber.org/zap"
)

const (
	defaultMessagesPerPage = 50
	maxMessagesPerPage     = 200
)

// SettingsHandler handles user settings-related API requests.
type SettingsHandler struct {
	repo      SettingsRepository
	encryptor *crypto.Encryptor
	logger    *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler instance.
func NewSettingsHandler(repo SettingsRepository, encryptor *crypto.Encryptor, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		repo:      repo,
		encryptor: encryptor,
		logger:    logger,
	}
}

// GetSettings returns the user settings for the current user.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.repo, h.logger)
	if !ok {
		return
	}

	settings, err := h.repo.GetUserSettings(ctx, userID)
	if errors.Is(err, db.ErrUserSettingsNotFound) {
		http.Error(w, "Settings not found for this user", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("SettingsHandler: failed to get settings", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, models.UserSettingsResponse{
		DisplayName:        settings.DisplayName,
		MessagesPerPage:    settings.MessagesPerPage,
		IMAPServerHostname: settings.IMAPServerHostname,
		IMAPUsername:       settings.IMAPUsername,
		IMAPPasswordSet:    len(settings.EncryptedIMAPPassword) > 0,
		SMTPServerHostname: settings.SMTPServerHostname,
		SMTPUsername:       settings.SMTPUsername,
		SMTPPasswordSet:    len(settings.EncryptedSMTPPassword) > 0,
		SentFolderName:     settings.SentFolderName,
		TrashFolderName:    settings.TrashFolderName,
	})
}

// PostSettings saves or updates the user settings for the current user.
func (h *SettingsHandler) PostSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.repo, h.logger)
	if !ok {
		return
	}

	var req models.UserSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Info("SettingsHandler: failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateSettingsRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Existing settings supply the passwords the request leaves empty.
	existing, err := h.repo.GetUserSettings(ctx, userID)
	if err != nil && !errors.Is(err, db.ErrUserSettingsNotFound) {
		h.logger.Error("SettingsHandler: failed to get existing settings", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var existingIMAP, existingSMTP []byte
	if existing != nil {
		existingIMAP = existing.EncryptedIMAPPassword
		existingSMTP = existing.EncryptedSMTPPassword
	}

	encryptedIMAPPassword, status, err := h.resolvePassword("IMAP", req.IMAPPassword, existingIMAP)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	encryptedSMTPPassword, status, err := h.resolvePassword("SMTP", req.SMTPPassword, existingSMTP)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	perPage := req.MessagesPerPage
	if perPage == 0 {
		perPage = defaultMessagesPerPage
	}

	settings := &models.UserSettings{
		UserID:                userID,
		DisplayName:           strings.TrimSpace(req.DisplayName),
		MessagesPerPage:       perPage,
		IMAPServerHostname:    req.IMAPServerHostname,
		IMAPUsername:          req.IMAPUsername,
		EncryptedIMAPPassword: encryptedIMAPPassword,
		SMTPServerHostname:    req.SMTPServerHostname,
		SMTPUsername:          req.SMTPUsername,
		EncryptedSMTPPassword: encryptedSMTPPassword,
		SentFolderName:        orDefault(req.SentFolderName, account.DefaultSentFolder),
		TrashFolderName:       orDefault(req.TrashFolderName, account.DefaultTrashFolder),
	}

	if err := h.repo.SaveUserSettings(ctx, settings); err != nil {
		h.logger.Error("SettingsHandler: failed to save settings", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("SettingsHandler: settings saved", zap.String("user_id", userID))
	writeJSON(w, h.logger, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// resolvePassword encrypts a new password or keeps the stored one. A password is
// required when nothing is stored yet.
func (h *SettingsHandler) resolvePassword(kind, plain string, stored []byte) ([]byte, int, error) {
	if plain == "" {
		if len(stored) == 0 {
			return nil, http.StatusBadRequest, errors.New(kind + " password is required for initial setup")
		}
		return stored, 0, nil
	}

	encrypted, err := h.encryptor.Encrypt(plain)
	if err != nil {
		h.logger.Error("SettingsHandler: failed to encrypt password", zap.String("kind", kind), zap.Error(err))
		return nil, http.StatusInternalServerError, errors.New("Internal server error")
	}
	return encrypted, 0, nil
}

// validateSettingsRequest checks required fields. Passwords are checked separately
// since they may be omitted on update.
func validateSettingsRequest(req *models.UserSettingsRequest) error {
	if req.IMAPServerHostname == "" {
		return errors.New("IMAP server hostname is required")
	}
	if req.IMAPUsername == "" {
		return errors.New("IMAP username is required")
	}
	if req.SMTPServerHostname == "" {
		return errors.New("SMTP server hostname is required")
	}
	if req.SMTPUsername == "" {
		return errors.New("SMTP username is required")
	}
	if req.MessagesPerPage < 0 || req.MessagesPerPage > maxMessagesPerPage {
		return errors.New("messages per page must be between 1 and 200")
	}
	return nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
