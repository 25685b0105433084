package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmptyEmail is returned when a user is looked up without an email.
var ErrEmptyEmail = errors.New("email is empty")

// normalizeEmail folds case so that tokens issued for "Alice@Example.com" and
// "alice@example.com" resolve to one user.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetOrCreateUser returns the id of the user with the given email, creating the row
// on first sight.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrEmptyEmail
	}

	var userID string
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, email).Scan(&userID)
	if err != nil {
		return "", fmt.Errorf("failed to get or create user %s: %w", email, err)
	}

	return userID, nil
}
