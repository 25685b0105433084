package testutil

import (
	"testing"
	"time"

	"github.com/promail/webmail/internal/auth"
)

// TestJWTSecret signs tokens in tests.
const TestJWTSecret = "test-jwt-secret"

// SignToken returns a token carrying the email claim, valid for ttl.
// A negative ttl yields an expired token.
func SignToken(t *testing.T, secret, email string, ttl time.Duration) string {
	t.Helper()

	signed, err := auth.IssueToken(secret, email, ttl)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return signed
}
