package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promail/webmail/internal/models"
)

// ErrUserSettingsNotFound is returned when user settings cannot be found.
var ErrUserSettingsNotFound = errors.New("user settings not found")

// UserSettingsExist returns true if the user settings exist.
func UserSettingsExist(ctx context.Context, pool *pgxpool.Pool, userID string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_settings WHERE user_id = $1)
	`, userID).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("failed to check user settings existence: %w", err)
	}

	return exists, nil
}

// GetUserSettings returns the user settings for the given user.
func GetUserSettings(ctx context.Context, pool *pgxpool.Pool, userID string) (*models.UserSettings, error) {
	var settings models.UserSettings

	err := pool.QueryRow(ctx, `
		SELECT
			user_id,
			display_name,
			messages_per_page,
			imap_server_hostname,
			imap_username,
			encrypted_imap_password,
			smtp_server_hostname,
			smtp_username,
			encrypted_smtp_password,
			sent_folder_name,
			trash_folder_name,
			created_at,
			updated_at
		FROM user_settings
		WHERE user_id = $1
	`, userID).Scan(
		&settings.UserID,
		&settings.DisplayName,
		&settings.MessagesPerPage,
		&settings.IMAPServerHostname,
		&settings.IMAPUsername,
		&settings.EncryptedIMAPPassword,
		&settings.SMTPServerHostname,
		&settings.SMTPUsername,
		&settings.EncryptedSMTPPassword,
		&settings.SentFolderName,
		&settings.TrashFolderName,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserSettingsNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}

	return &settings, nil
}

// SaveUserSettings inserts or replaces the user settings for the given user.
func SaveUserSettings(ctx context.Context, pool *pgxpool.Pool, settings *models.UserSettings) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO user_settings (
			user_id,
			display_name,
			messages_per_page,
			imap_server_hostname,
			imap_username,
			encrypted_imap_password,
			smtp_server_hostname,
			smtp_username,
			encrypted_smtp_password,
			sent_folder_name,
			trash_folder_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			messages_per_page = EXCLUDED.messages_per_page,
			imap_server_hostname = EXCLUDED.imap_server_hostname,
			imap_username = EXCLUDED.imap_username,
			encrypted_imap_password = EXCLUDED.encrypted_imap_password,
			smtp_server_hostname = EXCLUDED.smtp_server_hostname,
			smtp_username = EXCLUDED.smtp_username,
			encrypted_smtp_password = EXCLUDED.encrypted_smtp_password,
			sent_folder_name = EXCLUDED.sent_folder_name,
			trash_folder_name = EXCLUDED.trash_folder_name,
			updated_at = NOW()
	`,
		settings.UserID,
		settings.DisplayName,
		settings.MessagesPerPage,
		settings.IMAPServerHostname,
		settings.IMAPUsername,
		settings.EncryptedIMAPPassword,
		settings.SMTPServerHostname,
		settings.SMTPUsername,
		settings.EncryptedSMTPPassword,
		settings.SentFolderName,
		settings.TrashFolderName,
	)

	if err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}

	return nil
}

// Store binds the queries above to a pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetOrCreateUser(ctx context.Context, email string) (string, error) {
	return GetOrCreateUser(ctx, s.pool, email)
}

func (s *Store) UserSettingsExist(ctx context.Context, userID string) (bool, error) {
	return UserSettingsExist(ctx, s.pool, userID)
}

func (s *Store) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	return GetUserSettings(ctx, s.pool, userID)
}

func (s *Store) SaveUserSettings(ctx context.Context, settings *models.UserSettings) error {
	return SaveUserSettings(ctx, s.pool, settings)
}
