package sender

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/promail/webmail/internal/account"
	"go.uber.org/zap"
)

// MailSender submits composed messages.
type MailSender interface {
	Send(ctx context.Context, creds account.Credentials, msg *Composed) error
}

var _ MailSender = (*Client)(nil)

// Client submits over SMTP, one connection per message.
type Client struct {
	startTLS bool
	logger   *zap.Logger
}

func NewClient(startTLS bool, logger *zap.Logger) *Client {
	return &Client{startTLS: startTLS, logger: logger}
}

// Send dials the server, authenticates with PLAIN when AUTH is advertised and
// submits msg to all of its recipients.
func (c *Client) Send(ctx context.Context, creds account.Credentials, msg *Composed) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := c.dial(creds.Server)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if ok, _ := conn.Extension("AUTH"); ok {
		if err := conn.Auth(sasl.NewPlainClient("", creds.Username, creds.Password)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := conn.SendMail(msg.From, msg.Recipients, bytes.NewReader(msg.Raw)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if err := conn.Quit(); err != nil {
		c.logger.Debug("SMTP: quit failed", zap.String("server", creds.Server), zap.Error(err))
	}

	c.logger.Info("SMTP: message sent",
		zap.String("message_id", msg.MessageID),
		zap.Int("recipients", len(msg.Recipients)))

	return nil
}

func (c *Client) dial(server string) (*smtp.Client, error) {
	if c.startTLS {
		return smtp.DialStartTLS(server, nil)
	}
	return smtp.Dial(server)
}
