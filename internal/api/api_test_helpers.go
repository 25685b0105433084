package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/auth"
	"github.com/promail/webmail/internal/db"
	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/models"
	"github.com/promail/webmail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testEmail = "alice@example.com"

// memoryRepo is an in-memory SettingsRepository.
type memoryRepo struct {
	mu       sync.Mutex
	users    map[string]string
	settings map[string]*models.UserSettings
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[string]string),
		settings: make(map[string]*models.UserSettings),
	}
}

func (m *memoryRepo) GetOrCreateUser(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	if id, ok := m.users[email]; ok {
		return id, nil
	}
	id := fmt.Sprintf("user-%d", len(m.users)+1)
	m.users[email] = id
	return id, nil
}

func (m *memoryRepo) UserSettingsExist(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.settings[userID]
	return ok, nil
}

func (m *memoryRepo) GetUserSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, ok := m.settings[userID]
	if !ok {
		return nil, db.ErrUserSettingsNotFound
	}
	copied := *settings
	return &copied, nil
}

func (m *memoryRepo) SaveUserSettings(_ context.Context, settings *models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *settings
	m.settings[settings.UserID] = &copied
	return nil
}

// staticAccounts resolves every user to the same account.
type staticAccounts struct {
	account *account.Account
	err     error
}

func (s *staticAccounts) Resolve(_ context.Context, userID string) (*account.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	acct := *s.account
	acct.UserID = userID
	return &acct, nil
}

// mailEnv is an in-process IMAP server with an account pointing at it.
type mailEnv struct {
	server    *testutil.TestIMAPServer
	repo      *memoryRepo
	accounts  *staticAccounts
	connector imap.MailboxConnector
	logger    *zap.Logger
}

func newMailEnv(t *testing.T) *mailEnv {
	t.Helper()

	server := testutil.NewTestIMAPServer(t)
	server.CreateFolder(t, "Trash")
	server.CreateFolder(t, "Sent")
	server.CreateFolder(t, "Archive")

	return &mailEnv{
		server: server,
		repo:   newMemoryRepo(),
		accounts: &staticAccounts{account: &account.Account{
			DisplayName: "Alice",
			IMAP:        account.Credentials{Server: server.Address, Username: server.Username(), Password: server.Password()},
			SentFolder:  account.DefaultSentFolder,
			TrashFolder: account.DefaultTrashFolder,
		}},
		connector: imap.NewConnector(false, zap.NewNop()),
		logger:    zap.NewNop(),
	}
}

// createRequestWithUser creates an HTTP request with user email in context.
func createRequestWithUser(method, url, email string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	ctx := context.WithValue(req.Context(), auth.UserEmailKey, email)
	return req.WithContext(ctx)
}

// jsonRequest is createRequestWithUser with a JSON body and path values.
func jsonRequest(method, url, body string, pathValues map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := createRequestWithUser(method, url, testEmail, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range pathValues {
		req.SetPathValue(key, value)
	}
	return req
}

// FailingResponseWriter is a ResponseWriter that fails on Write to test error handling.
type FailingResponseWriter struct {
	http.ResponseWriter
	WriteShouldFail bool
}

func (f *FailingResponseWriter) Write(p []byte) (int, error) {
	if f.WriteShouldFail {
		return 0, fmt.Errorf("write failed")
	}
	return f.ResponseWriter.Write(p)
}

// VerifyAuthCheck verifies that the handler returns 401 Unauthorized when no user is in context.
func VerifyAuthCheck(t *testing.T, handlerFunc http.HandlerFunc, method, url string) {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	rr := httptest.NewRecorder()
	handlerFunc(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected status 401 when no user email in context")
}
