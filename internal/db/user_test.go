package db

import (
	"context"
	"testing"

	"github.com/promail/webmail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUser(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	t.Run("creates a user on first sight", func(t *testing.T) {
		userID, err := GetOrCreateUser(ctx, pool, "test@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, userID)
	})

	t.Run("is stable across calls", func(t *testing.T) {
		first, err := GetOrCreateUser(ctx, pool, "existing@example.com")
		require.NoError(t, err)

		second, err := GetOrCreateUser(ctx, pool, "existing@example.com")
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("folds case and whitespace", func(t *testing.T) {
		lower, err := GetOrCreateUser(ctx, pool, "mixed@example.com")
		require.NoError(t, err)

		mixed, err := GetOrCreateUser(ctx, pool, "  Mixed@Example.COM ")
		require.NoError(t, err)

		assert.Equal(t, lower, mixed)
	})

	t.Run("different emails get different users", func(t *testing.T) {
		one, err := GetOrCreateUser(ctx, pool, "one@example.com")
		require.NoError(t, err)

		two, err := GetOrCreateUser(ctx, pool, "two@example.com")
		require.NoError(t, err)

		assert.NotEqual(t, one, two)
	})

	t.Run("rejects an empty email", func(t *testing.T) {
		_, err := GetOrCreateUser(ctx, pool, "   ")
		assert.ErrorIs(t, err, ErrEmptyEmail)
	})
}
