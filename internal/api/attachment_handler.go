package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/message"
	"github.com/promail/webmail/internal/metrics"
	"go.uber.org/zap"
)

// AttachmentHandler streams one attachment of a message.
type AttachmentHandler struct {
	mailDeps
}

func NewAttachmentHandler(repo SettingsRepository, accounts AccountResolver, connector imap.MailboxConnector, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{mailDeps{repo: repo, accounts: accounts, connector: connector, logger: logger}}
}

// GetAttachment re-fetches the message and returns the part at {index}. When the hash
// query parameter is given, the part must still have that content hash.
func (h *AttachmentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(r)
	if !ok {
		http.Error(w, "Invalid message UID", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		http.Error(w, "Invalid attachment index", http.StatusBadRequest)
		return
	}
	folder := folderParam(r)
	expectedHash := r.URL.Query().Get("hash")

	session, _, ok := h.openFolder(w, r, folder)
	if !ok {
		return
	}
	defer h.closeSession(session)

	raw, err := session.FetchMessage(uid)
	metrics.RecordMailboxOperation("fetch", err)
	if err != nil {
		writeMailError(w, h.logger, "fetch", err)
		return
	}

	attachment, err := message.VerifyAttachment(raw.Raw, index, expectedHash)
	if err != nil {
		metrics.IncrementAttachmentDownload(attachmentResult(err))
		writeMailError(w, h.logger, "attachment", err)
		return
	}
	metrics.IncrementAttachmentDownload("ok")

	disposition := contentDisposition(attachment.Filename)

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(attachment.Data)))
	w.Header().Set("X-Content-Hash", attachment.ContentHash)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(attachment.Data); err != nil {
		h.logger.Warn("AttachmentHandler: failed to write attachment",
			zap.String("folder", folder), zap.Uint32("uid", uid), zap.Int("index", index), zap.Error(err))
	}
}

// contentDisposition always quotes printable ASCII names. Other names go through
// mime.FormatMediaType, which switches to the RFC 2231 filename* form.
func contentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	if isQuotableASCII(filename) {
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
		return `attachment; filename="` + escaped + `"`
	}
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); disposition != "" {
		return disposition
	}
	return "attachment"
}

func isQuotableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func attachmentResult(err error) string {
	switch {
	case errors.Is(err, message.ErrAttachmentNotFound):
		return "not_found"
	case errors.Is(err, message.ErrNotAttachment):
		return "not_attachment"
	case errors.Is(err, message.ErrAttachmentEmpty):
		return "empty"
	case errors.Is(err, message.ErrAttachmentChanged):
		return "changed"
	default:
		return "error"
	}
}
