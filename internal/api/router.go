package api

import (
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/auth"
	"github.com/promail/webmail/internal/config"
	"github.com/promail/webmail/internal/crypto"
	"github.com/promail/webmail/internal/db"
	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/metrics"
	"github.com/promail/webmail/internal/sender"
	"go.uber.org/zap"
)

// NewRouter wires the stores, mail clients and handlers into the HTTP routes.
func NewRouter(cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (http.Handler, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	store := db.NewStore(dbPool)
	accounts := account.NewResolver(store, encryptor)
	connector := imap.NewConnector(cfg.MailTLS, logger)
	mailSender := sender.NewClient(cfg.MailTLS, logger)
	validator := auth.NewValidator(cfg.JWTSecret, logger)

	authHandler := NewAuthHandler(store, logger)
	settingsHandler := NewSettingsHandler(store, encryptor, logger)
	foldersHandler := NewFoldersHandler(store, accounts, connector, logger)
	messagesHandler := NewMessagesHandler(store, accounts, connector, cfg.PerPage, logger)
	attachmentHandler := NewAttachmentHandler(store, accounts, connector, logger)
	sendHandler := NewSendHandler(store, accounts, connector, mailSender, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handleRoot)
	mux.Handle("GET /metrics", metrics.Handler())

	route := func(pattern, name string, handler http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(name, validator.RequireAuth(handler)))
	}

	route("GET /api/v1/auth/status", "auth_status", authHandler.GetAuthStatus)
	route("GET /api/v1/settings", "settings", settingsHandler.GetSettings)
	route("POST /api/v1/settings", "settings", settingsHandler.PostSettings)
	route("GET /api/v1/folders", "folders", foldersHandler.GetFolders)
	route("GET /api/v1/messages", "messages", messagesHandler.ListMessages)
	route("GET /api/v1/messages/{uid}", "message", messagesHandler.GetMessage)
	route("POST /api/v1/messages/{uid}/star", "star", messagesHandler.ToggleStar)
	route("POST /api/v1/messages/{uid}/flags", "flags", messagesHandler.SetFlags)
	route("POST /api/v1/messages/{uid}/delete", "delete", messagesHandler.DeleteMessage)
	route("POST /api/v1/messages/{uid}/move", "move", messagesHandler.MoveMessage)
	route("GET /api/v1/messages/{uid}/attachments/{index}", "attachment", attachmentHandler.GetAttachment)
	route("POST /api/v1/send", "send", sendHandler.Send)

	return mux, nil
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ProMail API is running")
}
