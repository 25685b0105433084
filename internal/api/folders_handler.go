package api

import (
	"net/http"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/metrics"
	"github.com/promail/webmail/internal/models"
	"go.uber.org/zap"
)

// FoldersHandler lists the default folders with their counts.
type FoldersHandler struct {
	mailDeps
}

// NewFoldersHandler creates a new FoldersHandler instance.
func NewFoldersHandler(repo SettingsRepository, accounts AccountResolver, connector imap.MailboxConnector, logger *zap.Logger) *FoldersHandler {
	return &FoldersHandler{mailDeps{repo: repo, accounts: accounts, connector: connector, logger: logger}}
}

// defaultFolders returns the sidebar folders in display order. Sent and Trash follow
// the account's configured names.
func defaultFolders(acct *account.Account) []*models.Folder {
	return []*models.Folder{
		{Name: "INBOX", DisplayName: "Inbox", Icon: "inbox"},
		{Name: acct.SentFolder, DisplayName: "Sent", Icon: "send"},
		{Name: "Drafts", DisplayName: "Drafts", Icon: "file-text"},
		{Name: acct.TrashFolder, DisplayName: "Trash", Icon: "trash-2"},
		{Name: "Junk", DisplayName: "Spam", Icon: "alert-octagon"},
		{Name: "Archive", DisplayName: "Archive", Icon: "archive"},
	}
}

// GetFolders returns the folders for the current user. A folder whose status cannot be
// read is listed with zero counts.
func (h *FoldersHandler) GetFolders(w http.ResponseWriter, r *http.Request) {
	session, acct, ok := h.openMailbox(w, r)
	if !ok {
		return
	}
	defer h.closeSession(session)

	folders := defaultFolders(acct)
	for _, folder := range folders {
		status, err := session.Status(folder.Name)
		metrics.RecordMailboxOperation("status", err)
		if err != nil {
			h.logger.Debug("FoldersHandler: folder status unavailable", zap.String("folder", folder.Name), zap.Error(err))
			continue
		}
		folder.Count = status.Messages
		folder.Unread = status.Unseen
	}

	writeJSON(w, h.logger, http.StatusOK, models.FoldersResponse{Folders: folders})
}
