package testutil

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// TestIMAPServer is an in-process IMAP server backed by memory. The backend has one
// user, "username"/"password", whose INBOX starts with a single message.
type TestIMAPServer struct {
	Server   *server.Server
	Address  string
	Backend  *memory.Backend
	username string
	password string
}

// StartIMAPServer starts a server on a random local port. The caller must Close it.
func StartIMAPServer() (*TestIMAPServer, error) {
	be := memory.New()

	s := server.New(be)
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()

	return &TestIMAPServer{
		Server:   s,
		Address:  listener.Addr().String(),
		Backend:  be,
		username: "username",
		password: "password",
	}, nil
}

// NewTestIMAPServer starts a server and stops it when the test finishes.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	s, err := StartIMAPServer()
	if err != nil {
		t.Fatalf("Failed to start IMAP server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Close stops the server.
func (s *TestIMAPServer) Close() {
	_ = s.Server.Close()
}

// Username returns the default test username.
func (s *TestIMAPServer) Username() string {
	return s.username
}

// Password returns the default test password.
func (s *TestIMAPServer) Password() string {
	return s.password
}

// Dial returns a logged-in client connection to the server.
func (s *TestIMAPServer) Dial() (*imapclient.Client, error) {
	client, err := imapclient.Dial(s.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test server: %w", err)
	}

	if err := client.Login(s.username, s.password); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return client, nil
}

// Connect is Dial for tests.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := s.Dial()
	if err != nil {
		t.Fatalf("%v", err)
	}
	return client, func() { _ = client.Logout() }
}

// Create creates a mailbox for the default user.
func (s *TestIMAPServer) Create(name string) error {
	client, err := s.Dial()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout() }()

	if err := client.Create(name); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", name, err)
	}
	return nil
}

// CreateFolder is Create for tests.
func (s *TestIMAPServer) CreateFolder(t *testing.T, name string) {
	t.Helper()

	if err := s.Create(name); err != nil {
		t.Fatalf("%v", err)
	}
}

// Append stores raw in the folder and returns the UID it was given.
func (s *TestIMAPServer) Append(folderName string, raw []byte, flags ...string) (uint32, error) {
	client, err := s.Dial()
	if err != nil {
		return 0, err
	}
	defer func() { _ = client.Logout() }()

	status, err := client.Status(folderName, []imap.StatusItem{imap.StatusUidNext})
	if err != nil {
		return 0, fmt.Errorf("failed to get status of %s: %w", folderName, err)
	}

	if err := client.Append(folderName, flags, time.Now(), bytes.NewReader(raw)); err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}

	return status.UidNext, nil
}

// AddRawMessage is Append for tests.
func (s *TestIMAPServer) AddRawMessage(t *testing.T, folderName string, raw []byte, flags ...string) uint32 {
	t.Helper()

	uid, err := s.Append(folderName, raw, flags...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return uid
}

// AddMessage appends a plain text message built from the given headers.
func (s *TestIMAPServer) AddMessage(t *testing.T, folderName, messageID, subject, from, to string, sentAt time.Time) uint32 {
	t.Helper()

	raw := fmt.Sprintf("Message-ID: %s\r\n"+
		"Date: %s\r\n"+
		"From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"Test message body.\r\n", messageID, sentAt.Format(time.RFC1123Z), from, to, subject)

	return s.AddRawMessage(t, folderName, []byte(raw))
}

// Flags returns the current flags of a message, read without side effects.
func (s *TestIMAPServer) Flags(t *testing.T, folderName string, uid uint32) []string {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select(folderName, true); err != nil {
		t.Fatalf("Failed to select %s: %v", folderName, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	if err := client.UidFetch(seqSet, []imap.FetchItem{imap.FetchFlags, imap.FetchUid}, messages); err != nil {
		t.Fatalf("Failed to fetch flags: %v", err)
	}

	msg := <-messages
	if msg == nil {
		return nil
	}
	return msg.Flags
}

// Count returns the number of messages in a folder.
func (s *TestIMAPServer) Count(t *testing.T, folderName string) int {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	status, err := client.Status(folderName, []imap.StatusItem{imap.StatusMessages})
	if err != nil {
		t.Fatalf("Failed to get status of %s: %v", folderName, err)
	}
	return int(status.Messages)
}
