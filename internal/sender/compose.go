// Package sender builds outgoing messages and submits them over SMTP.
package sender

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

const noSubject = "(No subject)"

var (
	// ErrNoRecipients is returned when a draft has no To, Cc or Bcc address.
	ErrNoRecipients = errors.New("no recipients")
	// ErrInvalidAddress is returned when an address list does not parse.
	ErrInvalidAddress = errors.New("invalid address")
)

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft is an outgoing message before encoding. Address fields are comma-separated
// RFC 5322 address lists.
type Draft struct {
	FromName    string
	FromAddress string
	To          string
	CC          string
	BCC         string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []Attachment
	Date        time.Time
}

// Composed is an encoded message ready for submission.
type Composed struct {
	From       string
	Recipients []string
	MessageID  string
	Raw        []byte
}

// Compose encodes a draft. Bcc recipients are in Recipients but not in the headers.
func Compose(d *Draft) (*Composed, error) {
	to, err := parseAddresses("To", d.To)
	if err != nil {
		return nil, err
	}
	cc, err := parseAddresses("Cc", d.CC)
	if err != nil {
		return nil, err
	}
	bcc, err := parseAddresses("Bcc", d.BCC)
	if err != nil {
		return nil, err
	}
	if len(to)+len(cc)+len(bcc) == 0 {
		return nil, ErrNoRecipients
	}

	subject := strings.TrimSpace(d.Subject)
	if subject == "" {
		subject = noSubject
	}

	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(d.FromAddress))

	builder := enmime.Builder().
		From(d.FromName, d.FromAddress).
		ToAddrs(to).
		CCAddrs(cc).
		BCCAddrs(bcc).
		Subject(subject).
		Date(date).
		Header("Message-ID", messageID)

	if d.IsHTML {
		builder = builder.HTML([]byte(d.Body))
	} else {
		builder = builder.Text([]byte(d.Body))
	}

	for _, a := range d.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		builder = builder.AddAttachment(a.Data, contentType, a.Filename)
	}

	root, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	return &Composed{
		From:       d.FromAddress,
		Recipients: collectRecipients(to, cc, bcc),
		MessageID:  messageID,
		Raw:        buf.Bytes(),
	}, nil
}

func parseAddresses(field, value string) ([]mail.Address, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	list, err := mail.ParseAddressList(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s address list: %v", ErrInvalidAddress, field, err)
	}

	addrs := make([]mail.Address, len(list))
	for i, a := range list {
		addrs[i] = *a
	}
	return addrs, nil
}

func collectRecipients(lists ...[]mail.Address) []string {
	seen := make(map[string]bool)
	var recipients []string
	for _, list := range lists {
		for _, a := range list {
			key := strings.ToLower(a.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			recipients = append(recipients, a.Address)
		}
	}
	return recipients
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
