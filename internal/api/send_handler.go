package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/auth"
	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/metrics"
	"github.com/promail/webmail/internal/models"
	"github.com/promail/webmail/internal/sender"
	"go.uber.org/zap"
)

const (
	maxSendSize   = 25 << 20
	maxFormMemory = 8 << 20
)

// SendHandler composes and submits outgoing mail.
type SendHandler struct {
	mailDeps
	sender sender.MailSender
}

func NewSendHandler(repo SettingsRepository, accounts AccountResolver, connector imap.MailboxConnector, mailSender sender.MailSender, logger *zap.Logger) *SendHandler {
	return &SendHandler{
		mailDeps: mailDeps{repo: repo, accounts: accounts, connector: connector, logger: logger},
		sender:   mailSender,
	}
}

// Send accepts a JSON body or a multipart form with "attachments" files, submits the
// message over SMTP and then stores a copy in the Sent folder.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.GetUserEmailFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSendSize)
	draft, err := readDraft(r)
	if err != nil {
		h.logger.Info("SendHandler: invalid request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	acct, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	draft.FromName = acct.DisplayName
	draft.FromAddress = email
	draft.Date = time.Now()

	composed, err := sender.Compose(draft)
	if errors.Is(err, sender.ErrNoRecipients) || errors.Is(err, sender.ErrInvalidAddress) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("SendHandler: failed to compose message", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	err = h.sender.Send(r.Context(), acct.SMTP, composed)
	metrics.IncrementMessagesSent(err)
	if err != nil {
		h.logger.Error("SendHandler: failed to send message", zap.String("user_id", acct.UserID), zap.Error(err))
		http.Error(w, "Failed to send message", http.StatusBadGateway)
		return
	}

	saved := h.saveSentCopy(r, acct.IMAP, acct.SentFolder, composed)

	writeJSON(w, h.logger, http.StatusOK, models.SendResponse{
		Message:   "Message sent",
		MessageID: composed.MessageID,
		SavedCopy: saved,
	})
}

// saveSentCopy appends the sent message to the Sent folder. The message is already
// delivered, so failures are only logged.
func (h *SendHandler) saveSentCopy(r *http.Request, creds account.Credentials, folder string, composed *sender.Composed) bool {
	session, err := h.connector.Open(r.Context(), creds)
	metrics.RecordMailboxOperation("open", err)
	if err != nil {
		h.logger.Warn("SendHandler: failed to open mailbox for sent copy", zap.Error(err))
		return false
	}
	defer h.closeSession(session)

	err = session.Append(folder, []string{imap.SeenFlag}, time.Now(), composed.Raw)
	metrics.RecordMailboxOperation("append", err)
	if err != nil {
		h.logger.Warn("SendHandler: failed to save sent copy", zap.String("folder", folder), zap.Error(err))
		return false
	}
	return true
}

func readDraft(r *http.Request) (*sender.Draft, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}

	if mediaType == "multipart/form-data" {
		return readMultipartDraft(r)
	}

	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return draftFromRequest(&req), nil
}

func readMultipartDraft(r *http.Request) (*sender.Draft, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	draft := draftFromRequest(&models.SendRequest{
		To:      r.FormValue("to"),
		CC:      r.FormValue("cc"),
		BCC:     r.FormValue("bcc"),
		Subject: r.FormValue("subject"),
		Body:    r.FormValue("body"),
		IsHTML:  r.FormValue("is_html") == "true",
	})

	for _, fh := range r.MultipartForm.File["attachments"] {
		file, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open attachment %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", fh.Filename, err)
		}

		draft.Attachments = append(draft.Attachments, sender.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return draft, nil
}

func draftFromRequest(req *models.SendRequest) *sender.Draft {
	return &sender.Draft{
		To:      strings.TrimSpace(req.To),
		CC:      strings.TrimSpace(req.CC),
		BCC:     strings.TrimSpace(req.BCC),
		Subject: req.Subject,
		Body:    req.Body,
		IsHTML:  req.IsHTML,
	}
}
