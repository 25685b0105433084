package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promail/webmail/internal/api"
	"github.com/promail/webmail/internal/auth"
	"github.com/promail/webmail/internal/config"
	"github.com/promail/webmail/internal/crypto"
	"github.com/promail/webmail/internal/db"
	"github.com/promail/webmail/internal/models"
	"github.com/promail/webmail/internal/sender"
	"github.com/promail/webmail/internal/testutil"
	"go.uber.org/zap"
)

const (
	testEmail    = "test@example.com"
	testTokenTTL = 24 * time.Hour
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("Test server failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := setupTestEnvironment(); err != nil {
		return fmt.Errorf("failed to setup test environment: %w", err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("Starting test Postgres database")
	postgresContainer, connStr, err := testutil.StartPostgres(ctx, "promail_test")
	if err != nil {
		return err
	}
	defer func() {
		if err := postgresContainer.Terminate(context.Background()); err != nil {
			logger.Warn("Failed to terminate Postgres container", zap.Error(err))
		}
	}()

	imapServer, err := testutil.StartIMAPServer()
	if err != nil {
		return fmt.Errorf("failed to start test IMAP server: %w", err)
	}
	defer imapServer.Close()

	smtpServer, err := testutil.StartSMTPServer()
	if err != nil {
		return fmt.Errorf("failed to start test SMTP server: %w", err)
	}
	defer smtpServer.Close()

	if err := seedMailbox(imapServer); err != nil {
		return fmt.Errorf("failed to seed test data: %w", err)
	}

	pool, err := setupDatabase(ctx, connStr)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := seedUserSettings(ctx, pool, cfg, imapServer, smtpServer); err != nil {
		return fmt.Errorf("failed to seed user settings: %w", err)
	}

	token, err := auth.IssueToken(cfg.JWTSecret, testEmail, testTokenTTL)
	if err != nil {
		return err
	}

	handler, err := api.NewRouter(cfg, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	server := &http.Server{Addr: ":" + cfg.Port, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	logger.Info("Test server starting",
		zap.String("address", server.Addr),
		zap.String("imap", imapServer.Address),
		zap.String("smtp", smtpServer.Address),
		zap.String("email", testEmail),
		zap.String("token", token))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// setupTestEnvironment sets the variables config.NewConfig requires. Existing values
// are kept.
func setupTestEnvironment() error {
	defaults := map[string]string{
		"PROMAIL_ENV":                   "test",
		"PROMAIL_ENCRYPTION_KEY_BASE64": "dGVzdC1rZXktMTIzNDU2Nzg5MDEyMzQ1Njc4OTAxMjM=",
		"PROMAIL_JWT_SECRET":            "test-jwt-secret",
		"PROMAIL_DB_PASSWORD":           "promail",
		"PROMAIL_MAIL_TLS":              "false",
	}

	for key, value := range defaults {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// setupDatabase creates a connection pool and runs migrations.
func setupDatabase(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	db.ApplyPoolSettings(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := testutil.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// seedMailbox creates the default folders and a few messages covering plain text,
// HTML and attachments.
func seedMailbox(imapServer *testutil.TestIMAPServer) error {
	for _, folder := range []string{"Sent", "Drafts", "Trash", "Junk", "Archive"} {
		if err := imapServer.Create(folder); err != nil {
			return err
		}
	}

	now := time.Now()
	drafts := []*sender.Draft{
		{
			FromName:    "Sender",
			FromAddress: "sender@example.com",
			To:          testEmail,
			Subject:     "Welcome to ProMail",
			Body:        "This is a test message.",
			Date:        now.Add(-2 * time.Hour),
		},
		{
			FromName:    "Colleague",
			FromAddress: "colleague@example.com",
			To:          testEmail,
			Subject:     "Meeting Tomorrow",
			Body:        "<p>Don't forget about the meeting tomorrow at <b>2 PM</b>.</p>",
			IsHTML:      true,
			Date:        now.Add(-1 * time.Hour),
		},
		{
			FromName:    "Reports",
			FromAddress: "reports@example.com",
			To:          testEmail,
			Subject:     "Special Report Q3",
			Body:        "Here is the Q3 report you requested.",
			Date:        now,
			Attachments: []sender.Attachment{{
				Filename:    "q3-report.csv",
				ContentType: "text/csv",
				Data:        []byte("quarter,revenue\nQ3,1200\n"),
			}},
		},
	}

	for _, draft := range drafts {
		composed, err := sender.Compose(draft)
		if err != nil {
			return fmt.Errorf("failed to compose %q: %w", draft.Subject, err)
		}
		if _, err := imapServer.Append("INBOX", composed.Raw); err != nil {
			return err
		}
	}

	// One starred message so the flag views have something to show.
	composed, err := sender.Compose(&sender.Draft{
		FromAddress: "boss@example.com",
		To:          testEmail,
		Subject:     "Important",
		Body:        "Please review.",
		Date:        now.Add(-3 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("failed to compose starred message: %w", err)
	}
	_, err = imapServer.Append("INBOX", composed.Raw, goimap.FlaggedFlag)
	return err
}

// seedUserSettings points the test user at the in-process mail servers.
func seedUserSettings(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, imapServer *testutil.TestIMAPServer, smtpServer *testutil.TestSMTPServer) error {
	userID, err := db.GetOrCreateUser(ctx, pool, testEmail)
	if err != nil {
		return fmt.Errorf("failed to get or create user: %w", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}

	encryptedIMAPPassword, err := encryptor.Encrypt(imapServer.Password())
	if err != nil {
		return fmt.Errorf("failed to encrypt IMAP password: %w", err)
	}

	encryptedSMTPPassword, err := encryptor.Encrypt(smtpServer.Password())
	if err != nil {
		return fmt.Errorf("failed to encrypt SMTP password: %w", err)
	}

	return db.SaveUserSettings(ctx, pool, &models.UserSettings{
		UserID:                userID,
		DisplayName:           "Test User",
		MessagesPerPage:       cfg.PerPage,
		IMAPServerHostname:    imapServer.Address,
		IMAPUsername:          imapServer.Username(),
		EncryptedIMAPPassword: encryptedIMAPPassword,
		SMTPServerHostname:    smtpServer.Address,
		SMTPUsername:          smtpServer.Username(),
		EncryptedSMTPPassword: encryptedSMTPPassword,
		SentFolderName:        "Sent",
		TrashFolderName:       "Trash",
	})
}
