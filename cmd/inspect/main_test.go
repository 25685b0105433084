package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/promail/webmail/internal/imap"
	"github.com/promail/webmail/internal/models"
	"github.com/promail/webmail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleMessage = "From: =?utf-8?q?Jos=C3=A9?= <jose@example.com>\r\n" +
	"To: alice@example.com\r\n" +
	"Subject: Lunch\r\n" +
	"Date: Fri, 01 Mar 2024 12:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See you at noon.\r\n"

func decode(t *testing.T, out *bytes.Buffer) models.Message {
	t.Helper()

	var msg models.Message
	require.NoError(t, json.Unmarshal(out.Bytes(), &msg))
	return msg
}

func TestRunWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lunch.eml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMessage), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{path}, &out, zap.NewNop()))

	msg := decode(t, &out)
	assert.Equal(t, "Lunch", msg.Subject)
	assert.Equal(t, "José", msg.FromName)
	assert.Contains(t, msg.BodyText, "See you at noon.")
}

func TestRunWithMissingFile(t *testing.T) {
	err := run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.eml")}, &bytes.Buffer{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRunWithMailbox(t *testing.T) {
	server := testutil.NewTestIMAPServer(t)
	uid := server.AddMessage(t, "INBOX", "<newest@example.com>", "Newest", "bob@example.com", "alice@example.com", time.Now())

	t.Setenv("IMAP_SERVER", server.Address)
	t.Setenv("IMAP_USER", server.Username())
	t.Setenv("IMAP_PASSWORD", server.Password())
	t.Setenv("IMAP_TLS", "false")

	t.Run("defaults to the newest message", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, run(context.Background(), nil, &out, zap.NewNop()))

		msg := decode(t, &out)
		assert.Equal(t, uid, msg.UID)
		assert.Equal(t, "Newest", msg.Subject)
		assert.Equal(t, "INBOX", msg.Folder)
		assert.NotContains(t, server.Flags(t, "INBOX", uid), imap.SeenFlag)
	})

	t.Run("reads the requested uid", func(t *testing.T) {
		t.Setenv("IMAP_UID", "6")

		var out bytes.Buffer
		require.NoError(t, run(context.Background(), nil, &out, zap.NewNop()))
		assert.Equal(t, uint32(6), decode(t, &out).UID)
	})

	t.Run("rejects a malformed uid", func(t *testing.T) {
		t.Setenv("IMAP_UID", "zero")

		err := run(context.Background(), nil, &bytes.Buffer{}, zap.NewNop())
		assert.ErrorContains(t, err, "IMAP_UID must be a positive integer")
	})
}

func TestRunRequiresCredentials(t *testing.T) {
	t.Setenv("IMAP_SERVER", "")
	t.Setenv("IMAP_USER", "")
	t.Setenv("IMAP_PASSWORD", "")

	err := run(context.Background(), nil, &bytes.Buffer{}, zap.NewNop())
	assert.ErrorIs(t, err, errMissingCredentials)
}
