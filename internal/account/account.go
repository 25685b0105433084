// Package account turns stored user settings into usable mailbox credentials.
package account

import (
	"context"
	"fmt"

	"github.com/promail/webmail/internal/crypto"
	"github.com/promail/webmail/internal/models"
)

const (
	DefaultSentFolder  = "Sent"
	DefaultTrashFolder = "Trash"
)

// Credentials identify one login on a mail server. Server is "host:port".
type Credentials struct {
	Server   string
	Username string
	Password string
}

// Account is a user's decrypted mail configuration.
type Account struct {
	UserID      string
	DisplayName string
	PerPage     int
	IMAP        Credentials
	SMTP        Credentials
	SentFolder  string
	TrashFolder string
}

// SettingsGetter loads stored settings. It returns db.ErrUserSettingsNotFound for
// users who have not completed setup.
type SettingsGetter interface {
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
}

// Resolver decrypts stored settings with an injected key.
type Resolver struct {
	settings  SettingsGetter
	encryptor *crypto.Encryptor
}

func NewResolver(settings SettingsGetter, encryptor *crypto.Encryptor) *Resolver {
	return &Resolver{settings: settings, encryptor: encryptor}
}

// Resolve returns the account of userID. Settings errors are returned unwrapped so
// callers can match them with errors.Is.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Account, error) {
	settings, err := r.settings.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	imapPassword, err := r.encryptor.Decrypt(settings.EncryptedIMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	smtpPassword, err := r.encryptor.Decrypt(settings.EncryptedSMTPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	return &Account{
		UserID:      settings.UserID,
		DisplayName: settings.DisplayName,
		PerPage:     settings.MessagesPerPage,
		IMAP: Credentials{
			Server:   settings.IMAPServerHostname,
			Username: settings.IMAPUsername,
			Password: imapPassword,
		},
		SMTP: Credentials{
			Server:   settings.SMTPServerHostname,
			Username: settings.SMTPUsername,
			Password: smtpPassword,
		},
		SentFolder:  orDefault(settings.SentFolderName, DefaultSentFolder),
		TrashFolder: orDefault(settings.TrashFolderName, DefaultTrashFolder),
	}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
