package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/promail/webmail/internal/account"
	"github.com/promail/webmail/internal/models"
	"github.com/promail/webmail/internal/sender"
	"github.com/promail/webmail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSendHandler(t *testing.T, env *mailEnv) (*SendHandler, *testutil.TestSMTPServer) {
	t.Helper()

	smtpServer := testutil.NewTestSMTPServer(t)
	env.accounts.account.SMTP = account.Credentials{
		Server:   smtpServer.Address,
		Username: smtpServer.Username(),
		Password: smtpServer.Password(),
	}

	mailSender := sender.NewClient(false, zap.NewNop())
	return NewSendHandler(env.repo, env.accounts, env.connector, mailSender, env.logger), smtpServer
}

func TestSendHandler_Send(t *testing.T) {
	t.Run("returns 401 when no user email in context", func(t *testing.T) {
		env := newMailEnv(t)
		handler, _ := newSendHandler(t, env)

		VerifyAuthCheck(t, handler.Send, "POST", "/api/v1/send")
	})

	t.Run("sends JSON and stores a sent copy", func(t *testing.T) {
		env := newMailEnv(t)
		handler, smtpServer := newSendHandler(t, env)

		body := `{"to":"bob@example.com","cc":"carol@example.com","bcc":"dave@example.com","subject":"Hello","body":"Hi Bob"}`
		rr := httptest.NewRecorder()
		handler.Send(rr, jsonRequest("POST", "/api/v1/send", body, nil))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var response models.SendResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
		assert.NotEmpty(t, response.MessageID)
		assert.True(t, response.SavedCopy)

		received := smtpServer.Messages()
		require.Len(t, received, 1)
		assert.Equal(t, testEmail, received[0].From)
		assert.ElementsMatch(t, []string{"bob@example.com", "carol@example.com", "dave@example.com"}, received[0].To)
		assert.Contains(t, string(received[0].Data), "Subject: Hello")
		assert.NotContains(t, string(received[0].Data), "dave@example.com")

		assert.Equal(t, 1, env.server.Count(t, "Sent"))
	})

	t.Run("sends multipart with attachments", func(t *testing.T) {
		env := newMailEnv(t)
		handler, smtpServer := newSendHandler(t, env)

		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		require.NoError(t, form.WriteField("to", "bob@example.com"))
		require.NoError(t, form.WriteField("subject", "Files"))
		require.NoError(t, form.WriteField("body", "<p>Attached</p>"))
		require.NoError(t, form.WriteField("is_html", "true"))

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="attachments"; filename="notes.txt"`)
		header.Set("Content-Type", "text/plain")
		part, err := form.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("meeting notes"))
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req := createRequestWithUser("POST", "/api/v1/send", testEmail, &buf)
		req.Header.Set("Content-Type", form.FormDataContentType())

		rr := httptest.NewRecorder()
		handler.Send(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		received := smtpServer.Messages()
		require.Len(t, received, 1)
		assert.Contains(t, string(received[0].Data), "notes.txt")
		assert.Contains(t, string(received[0].Data), "text/html")
	})

	t.Run("still succeeds when the sent copy cannot be stored", func(t *testing.T) {
		env := newMailEnv(t)
		env.accounts.account.SentFolder = "Missing"
		handler, smtpServer := newSendHandler(t, env)

		rr := httptest.NewRecorder()
		handler.Send(rr, jsonRequest("POST", "/api/v1/send", `{"to":"bob@example.com","body":"x"}`, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"saved_copy":false`)
		assert.Len(t, smtpServer.Messages(), 1)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"no recipients", `{"subject":"x","body":"x"}`},
			{"invalid address", `{"to":"not an address <","body":"x"}`},
			{"invalid json", `{"to":`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newMailEnv(t)
				handler, smtpServer := newSendHandler(t, env)

				rr := httptest.NewRecorder()
				handler.Send(rr, jsonRequest("POST", "/api/v1/send", tt.body, nil))

				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Empty(t, smtpServer.Messages())
			})
		}
	})

	t.Run("returns 502 when SMTP rejects the login", func(t *testing.T) {
		env := newMailEnv(t)
		handler, smtpServer := newSendHandler(t, env)
		env.accounts.account.SMTP.Password = "wrong"

		rr := httptest.NewRecorder()
		handler.Send(rr, jsonRequest("POST", "/api/v1/send", `{"to":"bob@example.com","body":"x"}`, nil))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Empty(t, smtpServer.Messages())
	})
}
