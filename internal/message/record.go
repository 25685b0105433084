package message

import (
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/promail/webmail/internal/models"
)

const (
	// NoSubject replaces a missing Subject header.
	NoSubject = "(No subject)"
	// PreviewLength is the maximum preview length in characters.
	PreviewLength = 200

	seenFlag    = `\Seen`
	flaggedFlag = `\Flagged`
)

// Normalize builds the canonical record for a raw message. The flags are the ones the
// mailbox reported with this fetch; they are not cached anywhere. Malformed input
// degrades field by field and never produces an error.
func Normalize(raw []byte, uid uint32, folder string, flags []string) *models.Message {
	parsed := Parse(raw)
	header := parsed.Header

	fromName, fromAddress := SplitAddress(DecodeHeader(header.Get("From")))
	if fromName == "" || fromName == fromAddress {
		fromName = localPart(fromAddress)
	}

	body := ExtractBody(parsed.Root)
	bodyHTML := Sanitize(body.HTML)

	attachments := body.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}

	msg := &models.Message{
		UID:             uid,
		Folder:          folder,
		MessageIDHeader: strings.TrimSpace(header.Get("Message-ID")),
		Subject:         subject(header),
		FromName:        fromName,
		FromAddress:     fromAddress,
		To:              DecodeHeader(header.Get("To")),
		CC:              DecodeHeader(header.Get("Cc")),
		BCC:             DecodeHeader(header.Get("Bcc")),
		ReplyTo:         DecodeHeader(header.Get("Reply-To")),
		SentAt:          ParseDate(header.Get("Date")),
		BodyText:        body.Text,
		BodyHTML:        bodyHTML,
		Preview:         Preview(body.Text, bodyHTML),
		Attachments:     attachments,
		HasAttachments:  len(attachments) > 0,
		Flags:           append([]string{}, flags...),
	}

	for _, flag := range flags {
		switch {
		case strings.EqualFold(flag, seenFlag):
			msg.IsRead = true
		case strings.EqualFold(flag, flaggedFlag):
			msg.IsFlagged = true
		}
	}

	return msg
}

func subject(header textproto.MIMEHeader) string {
	values := header.Values("Subject")
	if len(values) == 0 {
		return NoSubject
	}
	return DecodeHeader(values[0])
}

// ParseDate parses a Date header. Text that does not parse is kept as is.
func ParseDate(value string) models.Timestamp {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.Timestamp{}
	}

	t, err := mail.ParseDate(value)
	if err != nil {
		return models.Timestamp{Raw: value}
	}
	return models.Timestamp{Time: t, Raw: value}
}

// Preview is derived from the text body when there is one, else from the HTML body.
// It is cut to PreviewLength characters with newlines turned into spaces.
func Preview(text, html string) string {
	source := text
	if source == "" {
		source = html
	}

	runes := []rune(source)
	if len(runes) > PreviewLength {
		runes = runes[:PreviewLength]
	}

	preview := strings.ReplaceAll(string(runes), "\n", " ")
	return strings.ReplaceAll(preview, "\r", "")
}
