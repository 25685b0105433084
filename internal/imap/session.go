package imap

import (
	"context"
	"errors"
	"time"

	"github.com/emersion/go-imap"
	"github.com/promail/webmail/internal/account"
)

const (
	SeenFlag    = imap.SeenFlag
	FlaggedFlag = imap.FlaggedFlag
)

// ErrMessageNotFound is returned when a UID matches no message in the selected folder.
var ErrMessageNotFound = errors.New("message not found")

// RawMessage is one fetched message: its exact bytes and the flags reported with them.
type RawMessage struct {
	UID   uint32
	Flags []string
	Raw   []byte
}

// FolderStatus holds the counters of one folder.
type FolderStatus struct {
	Messages int
	Unseen   int
}

// MailboxSession is one logged-in connection, used by a single request and then
// logged out. Implementations are not safe for concurrent use.
type MailboxSession interface {
	// Select opens a folder for the operations below.
	Select(folder string) error
	// Status examines a folder read-only and counts its messages. The folder stays
	// selected afterwards.
	Status(folder string) (*FolderStatus, error)
	// SearchUIDs returns the UIDs of the selected folder in ascending order. An empty
	// query matches everything; otherwise Subject or From must contain it.
	SearchUIDs(query string) ([]uint32, error)
	// FetchMessages returns the raw bytes and flags of the given UIDs. Missing UIDs
	// are skipped.
	FetchMessages(uids []uint32) ([]*RawMessage, error)
	// FetchMessage is FetchMessages for one UID, failing with ErrMessageNotFound.
	FetchMessage(uid uint32) (*RawMessage, error)
	FetchFlags(uid uint32) ([]string, error)
	AddFlags(uid uint32, flags ...string) error
	RemoveFlags(uid uint32, flags ...string) error
	// Move copies the message to target, then deletes it from the selected folder.
	Move(uid uint32, target string) error
	// Delete marks the message \Deleted and expunges.
	Delete(uid uint32) error
	Append(folder string, flags []string, date time.Time, raw []byte) error
	Logout() error
}

// MailboxConnector opens sessions. Every call dials a new connection.
type MailboxConnector interface {
	Open(ctx context.Context, creds account.Credentials) (MailboxSession, error)
}

var (
	_ MailboxSession   = (*Mailbox)(nil)
	_ MailboxConnector = (*Connector)(nil)
)
