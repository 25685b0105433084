package models

import (
	"time"
)

// User is an authenticated webmail user, keyed by the email claim of their token.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSettings holds the mailbox servers and encrypted credentials of one user.
// Hostnames are "host:port".
type UserSettings struct {
	UserID                string    `json:"user_id"`
	DisplayName           string    `json:"display_name"`
	MessagesPerPage       int       `json:"messages_per_page"`
	IMAPServerHostname    string    `json:"imap_server_hostname"`
	IMAPUsername          string    `json:"imap_username"`
	EncryptedIMAPPassword []byte    `json:"-"`
	SMTPServerHostname    string    `json:"smtp_server_hostname"`
	SMTPUsername          string    `json:"smtp_username"`
	EncryptedSMTPPassword []byte    `json:"-"`
	SentFolderName        string    `json:"sent_folder_name"`
	TrashFolderName       string    `json:"trash_folder_name"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// UserSettingsRequest is the payload for saving settings. Empty passwords keep the
// stored ones.
type UserSettingsRequest struct {
	DisplayName        string `json:"display_name"`
	MessagesPerPage    int    `json:"messages_per_page"`
	IMAPServerHostname string `json:"imap_server_hostname"`
	IMAPUsername       string `json:"imap_username"`
	IMAPPassword       string `json:"imap_password"`
	SMTPServerHostname string `json:"smtp_server_hostname"`
	SMTPUsername       string `json:"smtp_username"`
	SMTPPassword       string `json:"smtp_password"`
	SentFolderName     string `json:"sent_folder_name"`
	TrashFolderName    string `json:"trash_folder_name"`
}

// UserSettingsResponse never includes passwords.
type UserSettingsResponse struct {
	DisplayName        string `json:"display_name"`
	MessagesPerPage    int    `json:"messages_per_page"`
	IMAPServerHostname string `json:"imap_server_hostname"`
	IMAPUsername       string `json:"imap_username"`
	IMAPPasswordSet    bool   `json:"imap_password_set"`
	SMTPServerHostname string `json:"smtp_server_hostname"`
	SMTPUsername       string `json:"smtp_username"`
	SMTPPasswordSet    bool   `json:"smtp_password_set"`
	SentFolderName     string `json:"sent_folder_name"`
	TrashFolderName    string `json:"trash_folder_name"`
}

// AuthStatusResponse represents the authentication and setup status of a user.
type AuthStatusResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsSetupComplete bool   `json:"isSetupComplete"`
	Email           string `json:"email"`
}
