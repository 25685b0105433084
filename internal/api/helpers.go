package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/auth"
	"github.com/promail/webmail/internal/db"
	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/message"
	"github.com/promail/webmail/internal/metrics"
	"github.com/promail/webmail/internal/models"
	"go.uber.org/zap"
)

const defaultFolder = "INBOX"

// SettingsRepository is the user and settings storage used by the handlers.
type SettingsRepository interface {
	GetOrCreateUser(ctx context.Context, email string) (string, error)
	UserSettingsExist(ctx context.Context, userID string) (bool, error)
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveUserSettings(ctx context.Context, settings *models.UserSettings) error
}

// AccountResolver returns the decrypted mail account of a user.
type AccountResolver interface {
	Resolve(ctx context.Context, userID string) (*account.Account, error)
}

var (
	_ SettingsRepository = (*db.Store)(nil)
	_ AccountResolver    = (*account.Resolver)(nil)
)

// GetUserIDFromContext extracts the user's email from context, resolves/creates the DB user,
// and writes appropriate HTTP errors when it fails. Returns (userID, true) on success.
func GetUserIDFromContext(ctx context.Context, w http.ResponseWriter, repo SettingsRepository, logger *zap.Logger) (string, bool) {
	email, ok := auth.GetUserEmailFromContext(ctx)
	if !ok {
		logger.Warn("API: no user email in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	userID, err := repo.GetOrCreateUser(ctx, email)
	if err != nil {
		logger.Error("API: failed to get/create user", zap.String("email", email), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return "", false
	}

	return userID, true
}

// ParsePaginationParams parses page and per_page from query parameters.
// Returns default values (page=1, perPage=defaultPerPage) if parameters are missing or invalid.
func ParsePaginationParams(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if perPageStr := r.URL.Query().Get("per_page"); perPageStr != "" {
		if parsed, err := strconv.Atoi(perPageStr); err == nil && parsed > 0 {
			perPage = parsed
		}
	}

	return page, perPage
}

// parseUID reads the {uid} path value.
func parseUID(r *http.Request) (uint32, bool) {
	uid, err := strconv.ParseUint(r.PathValue("uid"), 10, 32)
	if err != nil || uid == 0 {
		return 0, false
	}
	return uint32(uid), true
}

func folderParam(r *http.Request) string {
	if folder := r.URL.Query().Get("folder"); folder != "" {
		return folder
	}
	return defaultFolder
}

// writeJSON encodes to a buffer first so a failed encode never leaves a partial body.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, value interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(value); err != nil {
		logger.Error("API: failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Warn("API: failed to write response", zap.Error(err))
	}
}

// writeMailError maps mailbox and retrieval errors to a status code.
func writeMailError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := http.StatusBadGateway
	text := "Mail server error"

	switch {
	case errors.Is(err, imap.ErrMessageNotFound):
		status, text = http.StatusNotFound, "Message not found"
	case errors.Is(err, message.ErrAttachmentNotFound):
		status, text = http.StatusNotFound, "Attachment not found"
	case errors.Is(err, message.ErrNotAttachment):
		status, text = http.StatusBadRequest, "Part is not an attachment"
	case errors.Is(err, message.ErrAttachmentEmpty):
		status, text = http.StatusNotFound, "Attachment is empty"
	case errors.Is(err, message.ErrAttachmentChanged):
		status, text = http.StatusConflict, "Attachment changed, reload the message"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, text = http.StatusServiceUnavailable, "Request cancelled"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("API: mailbox operation failed", zap.String("operation", op), zap.Error(err))
	} else {
		logger.Info("API: mailbox operation rejected", zap.String("operation", op), zap.Int("status", status), zap.Error(err))
	}
	http.Error(w, text, status)
}

// mailDeps is shared by every handler that talks to the user's mailbox.
type mailDeps struct {
	repo      SettingsRepository
	accounts  AccountResolver
	connector imap.MailboxConnector
	logger    *zap.Logger
}

// resolveAccount writes the error response itself and reports whether to continue.
func (d *mailDeps) resolveAccount(w http.ResponseWriter, r *http.Request) (*account.Account, bool) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, d.repo, d.logger)
	if !ok {
		return nil, false
	}

	acct, err := d.accounts.Resolve(ctx, userID)
	if errors.Is(err, db.ErrUserSettingsNotFound) {
		http.Error(w, "Settings not found for this user", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		d.logger.Error("API: failed to resolve account", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	return acct, true
}

// openMailbox resolves the account and opens a session. On success the caller must
// Logout the session.
func (d *mailDeps) openMailbox(w http.ResponseWriter, r *http.Request) (imap.MailboxSession, *account.Account, bool) {
	acct, ok := d.resolveAccount(w, r)
	if !ok {
		return nil, nil, false
	}

	session, err := d.connector.Open(r.Context(), acct.IMAP)
	metrics.RecordMailboxOperation("open", err)
	if err != nil {
		writeMailError(w, d.logger, "open", err)
		return nil, nil, false
	}

	return session, acct, true
}

// openFolder is openMailbox plus Select.
func (d *mailDeps) openFolder(w http.ResponseWriter, r *http.Request, folder string) (imap.MailboxSession, *account.Account, bool) {
	session, acct, ok := d.openMailbox(w, r)
	if !ok {
		return nil, nil, false
	}

	if err := session.Select(folder); err != nil {
		d.closeSession(session)
		writeMailError(w, d.logger, "select", err)
		return nil, nil, false
	}

	return session, acct, true
}

func (d *mailDeps) closeSession(session imap.MailboxSession) {
	if err := session.Logout(); err != nil {
		d.logger.Debug("API: logout failed", zap.Error(err))
	}
}
