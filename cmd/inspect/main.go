// Command inspect prints the normalized record of one message, read either from a
// raw .eml file or from a live mailbox.
//
//	inspect message.eml
//	IMAP_SERVER=imap.example.com:993 IMAP_USER=me IMAP_PASSWORD=secret inspect
//
// In mailbox mode IMAP_FOLDER defaults to INBOX, IMAP_UID to the newest message and
// IMAP_TLS to true. The message is read without marking it seen.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/message"
	"github.com/promail/webmail/internal/models"
	"go.uber.org/zap"
)

var errMissingCredentials = errors.New("IMAP_SERVER, IMAP_USER, and IMAP_PASSWORD environment variables are required")

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		logger.Fatal("Inspect failed", zap.Error(err))
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger *zap.Logger) error {
	var (
		msg *models.Message
		err error
	)

	if len(args) > 0 {
		msg, err = inspectFile(args[0])
	} else {
		msg, err = inspectMailbox(ctx, logger)
	}
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(msg)
}

func inspectFile(path string) (*models.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return message.Normalize(raw, 0, "", nil), nil
}

func inspectMailbox(ctx context.Context, logger *zap.Logger) (*models.Message, error) {
	creds := account.Credentials{
		Server:   os.Getenv("IMAP_SERVER"),
		Username: os.Getenv("IMAP_USER"),
		Password: os.Getenv("IMAP_PASSWORD"),
	}
	if creds.Server == "" || creds.Username == "" || creds.Password == "" {
		return nil, errMissingCredentials
	}

	folder := os.Getenv("IMAP_FOLDER")
	if folder == "" {
		folder = "INBOX"
	}

	useTLS := true
	if value := os.Getenv("IMAP_TLS"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("IMAP_TLS must be a boolean: %w", err)
		}
		useTLS = parsed
	}

	session, err := imap.NewConnector(useTLS, logger).Open(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Logout() }()

	status, err := session.Status(folder)
	if err != nil {
		return nil, err
	}
	logger.Info("Inspect: folder opened",
		zap.String("folder", folder), zap.Int("messages", status.Messages), zap.Int("unseen", status.Unseen))

	uid, err := targetUID(session)
	if err != nil {
		return nil, err
	}

	raw, err := session.FetchMessage(uid)
	if err != nil {
		return nil, err
	}
	return message.Normalize(raw.Raw, raw.UID, folder, raw.Flags), nil
}

// targetUID is IMAP_UID, or the highest UID of the examined folder.
func targetUID(session imap.MailboxSession) (uint32, error) {
	if value := os.Getenv("IMAP_UID"); value != "" {
		uid, err := strconv.ParseUint(value, 10, 32)
		if err != nil || uid == 0 {
			return 0, fmt.Errorf("IMAP_UID must be a positive integer")
		}
		return uint32(uid), nil
	}

	uids, err := session.SearchUIDs("")
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, imap.ErrMessageNotFound
	}

	newest := uids[0]
	for _, uid := range uids[1:] {
		if uid > newest {
			newest = uid
		}
	}
	return newest, nil
}
