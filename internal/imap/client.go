package imap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/promail/webmail/internal/account"
	"go.uber.org/zap"
)

const dialTimeout = 5 * time.Second

// Dial connects to the IMAP server with a 5-second timeout.
// useTLS: true for production (implicit TLS), false for tests.
func Dial(server string, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout: dialTimeout,
	}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, server, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial with TLS: %w", err)
		}
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, server)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	return c, nil
}

// Connector dials and logs in a fresh connection per call.
type Connector struct {
	useTLS bool
	logger *zap.Logger
}

func NewConnector(useTLS bool, logger *zap.Logger) *Connector {
	return &Connector{useTLS: useTLS, logger: logger}
}

// Open dials creds.Server and logs in. The caller must Logout the session.
func (c *Connector) Open(ctx context.Context, creds account.Credentials) (MailboxSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := Dial(creds.Server, c.useTLS)
	if err != nil {
		c.logger.Warn("IMAP: dial failed", zap.String("server", creds.Server), zap.Error(err))
		return nil, err
	}

	if err := conn.Login(creds.Username, creds.Password); err != nil {
		_ = conn.Logout()
		c.logger.Warn("IMAP: login failed", zap.String("server", creds.Server), zap.String("username", creds.Username), zap.Error(err))
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return newMailbox(conn, c.logger), nil
}
