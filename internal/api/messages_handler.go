package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/message"
	"github.com/promail/webmail/internal/metrics"
	"github.com/promail/webmail/internal/models"
	"go.uber.org/zap"
)

// MessagesHandler serves normalized messages and mutates their state.
type MessagesHandler struct {
	mailDeps
	defaultPerPage int
}

// NewMessagesHandler creates a new MessagesHandler. defaultPerPage applies when neither
// the request nor the user's settings give a page size.
func NewMessagesHandler(repo SettingsRepository, accounts AccountResolver, connector imap.MailboxConnector, defaultPerPage int, logger *zap.Logger) *MessagesHandler {
	return &MessagesHandler{
		mailDeps:       mailDeps{repo: repo, accounts: accounts, connector: connector, logger: logger},
		defaultPerPage: defaultPerPage,
	}
}

// ListMessages returns one page of the folder, newest first.
func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	folder := folderParam(r)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	session, acct, ok := h.openFolder(w, r, folder)
	if !ok {
		return
	}
	defer h.closeSession(session)

	defaultPerPage := h.defaultPerPage
	if acct.PerPage > 0 {
		defaultPerPage = acct.PerPage
	}
	page, perPage := ParsePaginationParams(r, defaultPerPage)
	if perPage > maxMessagesPerPage {
		perPage = maxMessagesPerPage
	}

	uids, err := session.SearchUIDs(search)
	metrics.RecordMailboxOperation("search", err)
	if err != nil {
		writeMailError(w, h.logger, "search", err)
		return
	}

	pageUIDs := newestFirstPage(uids, page, perPage)

	fetched, err := session.FetchMessages(pageUIDs)
	metrics.RecordMailboxOperation("fetch", err)
	if err != nil {
		writeMailError(w, h.logger, "fetch", err)
		return
	}

	byUID := make(map[uint32]*imap.RawMessage, len(fetched))
	for _, raw := range fetched {
		byUID[raw.UID] = raw
	}

	messages := make([]*models.Message, 0, len(pageUIDs))
	for _, uid := range pageUIDs {
		raw, found := byUID[uid]
		if !found {
			continue
		}
		messages = append(messages, message.Normalize(raw.Raw, raw.UID, folder, raw.Flags))
	}
	metrics.IncrementMessagesNormalized("list", len(messages))

	writeJSON(w, h.logger, http.StatusOK, models.MessageListResponse{
		Messages: messages,
		Total:    len(uids),
		Page:     page,
		PerPage:  perPage,
		Folder:   folder,
	})
}

// newestFirstPage orders UIDs descending and returns the requested page of them.
func newestFirstPage(uids []uint32, page, perPage int) []uint32 {
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	start := (page - 1) * perPage
	if start >= len(sorted) {
		return []uint32{}
	}
	end := start + perPage
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end]
}

// GetMessage returns the full record and marks the message read.
func (h *MessagesHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(r)
	if !ok {
		http.Error(w, "Invalid message UID", http.StatusBadRequest)
		return
	}
	folder := folderParam(r)

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

	msg := message.Normalize(raw.Raw, raw.UID, folder, raw.Flags)
	metrics.IncrementMessagesNormalized("detail", 1)

	// The record reflects the fetch; it only turns read once the store succeeded.
	if !msg.IsRead {
		err := session.AddFlags(uid, imap.SeenFlag)
		metrics.RecordMailboxOperation("store", err)
		if err != nil {
			h.logger.Warn("MessagesHandler: failed to mark message read",
				zap.String("folder", folder), zap.Uint32("uid", uid), zap.Error(err))
		} else {
			msg.IsRead = true
			msg.Flags = append(msg.Flags, imap.SeenFlag)
		}
	}

	writeJSON(w, h.logger, http.StatusOK, models.MessageResponse{Message: msg})
}

// ToggleStar flips \Flagged.
func (h *MessagesHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(r)
	if !ok {
		http.Error(w, "Invalid message UID", http.StatusBadRequest)
		return
	}
	folder := folderParam(r)

	session, _, ok := h.openFolder(w, r, folder)
	if !ok {
		return
	}
	defer h.closeSession(session)

	flags, err := session.FetchFlags(uid)
	if err != nil {
		writeMailError(w, h.logger, "fetch_flags", err)
		return
	}

	if hasFlag(flags, imap.FlaggedFlag) {
		err = session.RemoveFlags(uid, imap.FlaggedFlag)
	} else {
		err = session.AddFlags(uid, imap.FlaggedFlag)
	}
	metrics.RecordMailboxOperation("store", err)
	if err != nil {
		writeMailError(w, h.logger, "store", err)
		return
	}

	h.writeFlags(w, session, uid)
}

// SetFlags sets or clears \Seen and \Flagged explicitly.
func (h *MessagesHandler) SetFlags(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(r)
	if !ok {
		http.Error(w, "Invalid message UID", http.StatusBadRequest)
		return
	}
	folder := folderParam(r)

	var req models.FlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seen == nil && req.Flagged == nil {
		http.Error(w, "At least one of seen or flagged is required", http.StatusBadRequest)
		return
	}

	session, _, ok := h.openFolder(w, r, folder)
	if !ok {
		return
	}
	defer h.closeSession(session)

	if _, err := session.FetchFlags(uid); err != nil {
		writeMailError(w, h.logger, "fetch_flags", err)
		return
	}

	if err := setFlag(session, uid, imap.SeenFlag, req.Seen); err != nil {
		writeMailError(w, h.logger, "store", err)
		return
	}
	if err := setFlag(session, uid, imap.FlaggedFlag, req.Flagged); err != nil {
		writeMailError(w, h.logger, "store", err)
		return
	}

	h.writeFlags(w, session, uid)
}

func setFlag(session imap.MailboxSession, uid uint32, flag string, value *bool) error {
	if value == nil {
		return nil
	}

	var err error
	if *value {
		err = session.AddFlags(uid, flag)
	} else {
		err = session.RemoveFlags(uid, flag)
	}
	metrics.RecordMailboxOperation("store", err)
	return err
}

// writeFlags reports the flags as the server now has them.
func (h *MessagesHandler) writeFlags(w http.ResponseWriter, session imap.MailboxSession, uid uint32) {
	flags, err := session.FetchFlags(uid)
	if err != nil {
		writeMailError(w, h.logger, "fetch_flags", err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, models.FlagsResponse{
		UID:     uid,
		Read:    hasFlag(flags, imap.SeenFlag),
		Starred: hasFlag(flags, imap.FlaggedFlag),
	})
}

// DeleteMessage moves the message to Trash, or removes it for good when it is already
// there.
func (h *MessagesHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(r)
	if !ok {
		http.Error(w, "Invalid message UID", http.StatusBadRequest)
		return
	}
	folder := folderParam(r)

	session, acct, ok := h.openFolder(w, r, folder)
	if !ok {
		return
	}
	defer h.closeSession(session)

	if _, err := session.FetchFlags(uid); err != nil {
		writeMailError(w, h.logger, "fetch_flags", err)
		return
	}

	if strings.EqualFold(folder, acct.TrashFolder) {
		err := session.Delete(uid)
		metrics.RecordMailboxOperation("delete", err)
		if err != nil {
			writeMailError(w, h.logger, "delete", err)
			return
		}
		h.logger.Info("MessagesHandler: message deleted", zap.String("folder", folder), zap.Uint32("uid", uid))
		writeJSON(w, h.logger, http.StatusOK, models.StatusResponse{Message: "Message deleted"})
		return
	}

	err := session.Move(uid, acct.TrashFolder)
	metrics.RecordMailboxOperation("move", err)
	if err != nil {
		writeMailError(w, h.logger, "move", err)
		return
	}
	h.logger.Info("MessagesHandler: message moved to trash",
		zap.String("folder", folder), zap.String("trash", acct.TrashFolder), zap.Uint32("uid", uid))
	writeJSON(w, h.logger, http.StatusOK, models.StatusResponse{Message: "Message moved to Trash"})
}

// MoveMessage moves the message to another folder.
func (h *MessagesHandler) MoveMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(r)
	if !ok {
		http.Error(w, "Invalid message UID", http.StatusBadRequest)
		return
	}
	folder := folderParam(r)

	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	target := strings.TrimSpace(req.Target)
	if target == "" {
		http.Error(w, "Target folder is required", http.StatusBadRequest)
		return
	}
	if target == folder {
		http.Error(w, "Message is already in the target folder", http.StatusBadRequest)
		return
	}

	session, _, ok := h.openFolder(w, r, folder)
	if !ok {
		return
	}
	defer h.closeSession(session)

	if _, err := session.FetchFlags(uid); err != nil {
		writeMailError(w, h.logger, "fetch_flags", err)
		return
	}

	err := session.Move(uid, target)
	metrics.RecordMailboxOperation("move", err)
	if err != nil {
		writeMailError(w, h.logger, "move", err)
		return
	}

	h.logger.Info("MessagesHandler: message moved",
		zap.String("folder", folder), zap.String("target", target), zap.Uint32("uid", uid))
	writeJSON(w, h.logger, http.StatusOK, models.StatusResponse{Message: "Message moved to " + target})
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
