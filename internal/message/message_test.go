package message

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mimePart is one body part of a test message.
type mimePart struct {
	headers []string
	body    string
}

// buildMultipart assembles a multipart/mixed message with CRLF line endings.
func buildMultipart(headers []string, parts ...mimePart) []byte {
	var buf bytes.Buffer
	for _, h := range headers {
		buf.WriteString(h + "\r\n")
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: multipart/mixed; boundary=\"frontier\"\r\n\r\n")
	for _, p := range parts {
		buf.WriteString("--frontier\r\n")
		for _, h := range p.headers {
			buf.WriteString(h + "\r\n")
		}
		buf.WriteString("\r\n")
		buf.WriteString(p.body)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--frontier--\r\n")
	return buf.Bytes()
}

func base64Lines(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for len(encoded) > 76 {
		lines = append(lines, encoded[:76])
		encoded = encoded[76:]
	}
	lines = append(lines, encoded)
	return strings.Join(lines, "\r\n")
}

var reportPDF = bytes.Repeat([]byte{0x25, 0x50, 0x44, 0x46}, 256)

func sampleHeaders() []string {
	return []string{
		"From: Alice Example <alice@example.com>",
		"To: bob@example.com, carol@example.com",
		"Cc: dave@example.com",
		"Reply-To: replies@example.com",
		"Subject: =?utf-8?q?Quarterly_report?=",
		"Date: Mon, 02 Jan 2006 15:04:05 -0700",
		"Message-ID: <report-1@example.com>",
	}
}

func reportMessage() []byte {
	return buildMultipart(sampleHeaders(),
		mimePart{
			headers: []string{"Content-Type: text/plain; charset=utf-8"},
			body:    "Hi there",
		},
		mimePart{
			headers: []string{"Content-Type: text/html; charset=utf-8"},
			body:    "<p>Hi <script>x</script>there</p>",
		},
		mimePart{
			headers: []string{
				"Content-Type: application/pdf",
				`Content-Disposition: attachment; filename="report.pdf"`,
				"Content-Transfer-Encoding: base64",
			},
			body: base64Lines(reportPDF),
		},
	)
}

func TestNormalize(t *testing.T) {
	t.Run("multipart with text, html and attachment", func(t *testing.T) {
		msg := Normalize(reportMessage(), 42, "INBOX", []string{`\Seen`})

		assert.Equal(t, uint32(42), msg.UID)
		assert.Equal(t, "INBOX", msg.Folder)
		assert.Equal(t, "Quarterly report", msg.Subject)
		assert.Equal(t, "Alice Example", msg.FromName)
		assert.Equal(t, "alice@example.com", msg.FromAddress)
		assert.Equal(t, "bob@example.com, carol@example.com", msg.To)
		assert.Equal(t, "dave@example.com", msg.CC)
		assert.Equal(t, "replies@example.com", msg.ReplyTo)
		assert.Equal(t, "<report-1@example.com>", msg.MessageIDHeader)
		assert.Equal(t, "Hi there", msg.BodyText)
		assert.Equal(t, "<p>Hi there</p>", msg.BodyHTML)
		assert.Equal(t, "Hi there", msg.Preview)
		assert.True(t, msg.HasAttachments)
		assert.True(t, msg.IsRead)
		assert.False(t, msg.IsFlagged)

		require.Len(t, msg.Attachments, 1)
		attachment := msg.Attachments[0]
		assert.Equal(t, "report.pdf", attachment.Filename)
		assert.Equal(t, "application/pdf", attachment.ContentType)
		assert.Equal(t, 1024, attachment.Size)
		assert.Equal(t, 2, attachment.PartIndex)
		assert.Equal(t, contentHash(reportPDF), attachment.ContentHash)

		assert.Equal(t, "2006-01-02T15:04:05-07:00", msg.SentAt.String())
	})

	t.Run("is deterministic apart from flags", func(t *testing.T) {
		raw := reportMessage()
		first := Normalize(raw, 1, "INBOX", nil)
		second := Normalize(raw, 1, "INBOX", []string{`\Flagged`})

		assert.False(t, first.IsFlagged)
		assert.True(t, second.IsFlagged)

		second.IsFlagged = false
		second.Flags = first.Flags
		assert.Equal(t, first, second)
	})

	t.Run("missing subject gets the placeholder", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\n\r\nbody\r\n")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.Equal(t, NoSubject, msg.Subject)
	})

	t.Run("empty subject is kept empty", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\nSubject: \r\n\r\nbody\r\n")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.Equal(t, "", msg.Subject)
	})

	t.Run("bare sender address falls back to the local part for display", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\nSubject: hi\r\n\r\nbody\r\n")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.Equal(t, "bob", msg.FromName)
		assert.Equal(t, "bob@example.com", msg.FromAddress)
	})

	t.Run("encoded sender name is decoded", func(t *testing.T) {
		raw := []byte("From: =?utf-8?q?Ren=C3=A9?= <rene@example.com>\r\nSubject: hi\r\n\r\nbody\r\n")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.Equal(t, "René", msg.FromName)
		assert.Equal(t, "rene@example.com", msg.FromAddress)
	})

	t.Run("malformed date keeps the raw text", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\nDate: sometime last tuesday\r\nSubject: hi\r\n\r\nbody\r\n")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.True(t, msg.SentAt.Time.IsZero())
		assert.Equal(t, "sometime last tuesday", msg.SentAt.String())

		encoded, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.Contains(t, string(encoded), `"date":"sometime last tuesday"`)
	})

	t.Run("single part html message", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\nSubject: hi\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<b onclick=\"x()\">Bold</b>")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.Equal(t, "", msg.BodyText)
		assert.Equal(t, "<b>Bold</b>", msg.BodyHTML)
		assert.Equal(t, "<b>Bold</b>", msg.Preview)
		assert.False(t, msg.HasAttachments)
		assert.NotNil(t, msg.Attachments)
	})

	t.Run("single part plain message", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\nSubject: hi\r\n\r\nHello\nWorld")
		msg := Normalize(raw, 1, "INBOX", nil)
		assert.Equal(t, "", msg.BodyHTML)
		assert.Equal(t, "Hello World", msg.Preview)
	})

	t.Run("flags are matched case-insensitively", func(t *testing.T) {
		raw := []byte("Subject: hi\r\n\r\nbody")
		msg := Normalize(raw, 1, "INBOX", []string{`\seen`, `\FLAGGED`})
		assert.True(t, msg.IsRead)
		assert.True(t, msg.IsFlagged)
		assert.Equal(t, []string{`\seen`, `\FLAGGED`}, msg.Flags)
	})
}

func TestExtractBody(t *testing.T) {
	t.Run("indexes are stable across walks", func(t *testing.T) {
		raw := reportMessage()
		first := ExtractBody(Parse(raw).Root)
		second := ExtractBody(Parse(raw).Root)
		assert.Equal(t, first.Attachments, second.Attachments)
	})

	t.Run("attachment without filename gets a synthetic name", func(t *testing.T) {
		root := &Multipart{
			ContentType: "multipart/mixed",
			Children: []Part{
				&Leaf{ContentType: "text/plain", Content: []byte("hello")},
				&Multipart{
					ContentType: "multipart/alternative",
					Children: []Part{
						&Leaf{ContentType: "text/plain", Content: []byte("second")},
						&Leaf{ContentType: "text/html", Content: []byte("<p>hello</p>")},
					},
				},
				&Leaf{ContentType: "application/zip", Disposition: "attachment", Content: []byte("PK")},
			},
		}

		body := ExtractBody(root)
		require.Len(t, body.Attachments, 1)
		assert.Equal(t, "attachment_3", body.Attachments[0].Filename)
		assert.Equal(t, 3, body.Attachments[0].PartIndex)
		assert.Equal(t, "hello", body.Text)
		assert.Equal(t, "<p>hello</p>", body.HTML)
	})

	t.Run("disposition wins over content type", func(t *testing.T) {
		root := &Multipart{Children: []Part{
			&Leaf{ContentType: "text/plain", Disposition: `attachment; filename="notes.txt"`, FileName: "notes.txt", Content: []byte("notes")},
			&Leaf{ContentType: "text/plain", Content: []byte("body")},
		}}

		body := ExtractBody(root)
		assert.Equal(t, "body", body.Text)
		require.Len(t, body.Attachments, 1)
		assert.Equal(t, "notes.txt", body.Attachments[0].Filename)
		assert.Equal(t, 0, body.Attachments[0].PartIndex)
	})

	t.Run("disposition match is case-sensitive", func(t *testing.T) {
		root := &Leaf{ContentType: "text/plain", Disposition: "ATTACHMENT", Content: []byte("body")}
		body := ExtractBody(root)
		assert.Empty(t, body.Attachments)
		assert.Equal(t, "body", body.Text)
	})

	t.Run("last html part wins", func(t *testing.T) {
		root := &Multipart{Children: []Part{
			&Leaf{ContentType: "text/html", Content: []byte("<p>one</p>")},
			&Leaf{ContentType: "text/html", Content: []byte("<p>two</p>")},
		}}
		assert.Equal(t, "<p>two</p>", ExtractBody(root).HTML)
	})

	t.Run("missing content type is treated as text", func(t *testing.T) {
		body := ExtractBody(&Leaf{Content: []byte("plain")})
		assert.Equal(t, "plain", body.Text)
	})

	t.Run("declared charset is used for unconverted content", func(t *testing.T) {
		body := ExtractBody(&Leaf{ContentType: "text/plain", Charset: "iso-8859-1", Content: []byte{'c', 'a', 'f', 0xE9}})
		assert.Equal(t, "café", body.Text)
	})

	t.Run("unknown charset falls back to lossy utf-8", func(t *testing.T) {
		body := ExtractBody(&Leaf{ContentType: "text/plain", Charset: "x-unknown", Content: []byte{'o', 'k', 0xFF}})
		assert.Equal(t, "ok�", body.Text)
	})

	t.Run("encoded filename is decoded", func(t *testing.T) {
		body := ExtractBody(&Leaf{ContentType: "application/pdf", Disposition: "attachment", FileName: "=?utf-8?q?r=C3=A9sum=C3=A9.pdf?=", Content: []byte("x")})
		require.Len(t, body.Attachments, 1)
		assert.Equal(t, "résumé.pdf", body.Attachments[0].Filename)
	})
}

func TestWalk(t *testing.T) {
	root := &Multipart{Children: []Part{
		&Leaf{ContentType: "text/plain"},
		&Multipart{Children: []Part{
			&Leaf{ContentType: "text/plain"},
			&Multipart{Children: []Part{&Leaf{ContentType: "image/png"}}},
		}},
		&Leaf{ContentType: "application/pdf"},
	}}

	var order []string
	var indexes []int
	Walk(root, func(index int, leaf *Leaf) {
		indexes = append(indexes, index)
		order = append(order, leaf.ContentType)
	})

	assert.Equal(t, []int{0, 1, 2, 3}, indexes)
	assert.Equal(t, []string{"text/plain", "text/plain", "image/png", "application/pdf"}, order)
	assert.Equal(t, "image/png", LeafAt(root, 2).ContentType)
	assert.Nil(t, LeafAt(root, 4))
}

func TestPreview(t *testing.T) {
	t.Run("newlines become spaces", func(t *testing.T) {
		assert.Equal(t, "Hello World", Preview("Hello\nWorld", ""))
	})

	t.Run("carriage returns are removed", func(t *testing.T) {
		assert.Equal(t, "Hello World", Preview("Hello\r\nWorld", ""))
	})

	t.Run("text is preferred over html", func(t *testing.T) {
		assert.Equal(t, "text", Preview("text", "<p>html</p>"))
	})

	t.Run("html is used without text", func(t *testing.T) {
		assert.Equal(t, "<p>html</p>", Preview("", "<p>html</p>"))
	})

	t.Run("long bodies are truncated by characters", func(t *testing.T) {
		preview := Preview(strings.Repeat("é", 300), "")
		assert.Equal(t, PreviewLength, len([]rune(preview)))
	})
}

func TestParseDate(t *testing.T) {
	t.Run("rfc 5322 date", func(t *testing.T) {
		ts := ParseDate("Tue, 10 Nov 2009 23:00:00 +0000")
		assert.False(t, ts.Time.IsZero())
		assert.Equal(t, "2009-11-10T23:00:00Z", ts.String())
	})

	t.Run("empty date", func(t *testing.T) {
		ts := ParseDate("")
		assert.Equal(t, "", ts.String())
	})

	t.Run("garbage", func(t *testing.T) {
		assert.Equal(t, "32/13/2020", ParseDate("32/13/2020").String())
	})
}

func TestFindAttachment(t *testing.T) {
	raw := reportMessage()

	t.Run("returns the attachment bytes", func(t *testing.T) {
		attachment, err := FindAttachment(raw, 2)
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", attachment.Filename)
		assert.Equal(t, "application/pdf", attachment.ContentType)
		assert.Equal(t, reportPDF, attachment.Data)
	})

	t.Run("part that is not an attachment", func(t *testing.T) {
		_, err := FindAttachment(raw, 0)
		assert.ErrorIs(t, err, ErrNotAttachment)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := FindAttachment(raw, 3)
		assert.ErrorIs(t, err, ErrAttachmentNotFound)

		_, err = FindAttachment(raw, -1)
		assert.ErrorIs(t, err, ErrAttachmentNotFound)
	})

	t.Run("empty attachment", func(t *testing.T) {
		emptyRaw := buildMultipart(sampleHeaders(),
			mimePart{headers: []string{"Content-Type: text/plain"}, body: "body"},
			mimePart{headers: []string{"Content-Type: application/octet-stream", `Content-Disposition: attachment; filename="empty.bin"`}, body: ""},
		)
		_, err := FindAttachment(emptyRaw, 1)
		assert.ErrorIs(t, err, ErrAttachmentEmpty)
	})
}

func TestAttachmentKeepsDeclaredCharsetBytes(t *testing.T) {
	csv := []byte{'c', 'a', 'f', 0xE9, ',', '3', 0x80}
	raw := buildMultipart(sampleHeaders(),
		mimePart{headers: []string{"Content-Type: text/plain; charset=utf-8"}, body: "see attached"},
		mimePart{
			headers: []string{
				"Content-Type: text/csv; charset=windows-1252",
				`Content-Disposition: attachment; filename="prices.csv"`,
				"Content-Transfer-Encoding: base64",
			},
			body: base64Lines(csv),
		},
	)

	msg := Normalize(raw, 3, "INBOX", nil)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, len(csv), msg.Attachments[0].Size)
	assert.Equal(t, "text/csv", msg.Attachments[0].ContentType)

	attachment, err := FindAttachment(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, csv, attachment.Data)
	assert.Equal(t, msg.Attachments[0].ContentHash, attachment.ContentHash)
}

func TestAttachmentWithoutContentType(t *testing.T) {
	raw := buildMultipart(sampleHeaders(),
		mimePart{headers: []string{"Content-Type: text/plain"}, body: "body"},
		mimePart{headers: []string{`Content-Disposition: attachment; filename="blob"`}, body: "data"},
	)

	msg := Normalize(raw, 4, "INBOX", nil)
	require.Len(t, msg.Attachments, 1)

	attachment, err := FindAttachment(raw, msg.Attachments[0].PartIndex)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", msg.Attachments[0].ContentType)
	assert.Equal(t, msg.Attachments[0].ContentType, attachment.ContentType)
}

func TestBodyTransferEncodings(t *testing.T) {
	t.Run("base64 windows-1252 text", func(t *testing.T) {
		raw := buildMultipart(sampleHeaders(), mimePart{
			headers: []string{"Content-Type: text/plain; charset=windows-1252", "Content-Transfer-Encoding: base64"},
			body:    base64Lines([]byte{'c', 'a', 'f', 0xE9, ' ', 0x80}),
		})
		assert.Equal(t, "café €", Normalize(raw, 1, "INBOX", nil).BodyText)
	})

	t.Run("quoted-printable utf-8 html", func(t *testing.T) {
		raw := buildMultipart(sampleHeaders(), mimePart{
			headers: []string{"Content-Type: text/html; charset=utf-8", "Content-Transfer-Encoding: quoted-printable"},
			body:    "<p>caf=C3=A9 au l=\r\nait</p>",
		})
		assert.Equal(t, "<p>café au lait</p>", Normalize(raw, 1, "INBOX", nil).BodyHTML)
	})
}

func TestVerifyAttachment(t *testing.T) {
	raw := reportMessage()
	msg := Normalize(raw, 1, "INBOX", nil)
	require.Len(t, msg.Attachments, 1)
	issued := msg.Attachments[0]

	t.Run("matching hash", func(t *testing.T) {
		attachment, err := VerifyAttachment(raw, issued.PartIndex, issued.ContentHash)
		require.NoError(t, err)
		assert.Equal(t, issued.Size, len(attachment.Data))
	})

	t.Run("no hash keeps positional lookup", func(t *testing.T) {
		_, err := VerifyAttachment(raw, issued.PartIndex, "")
		assert.NoError(t, err)
	})

	t.Run("message changed under the index", func(t *testing.T) {
		changed := buildMultipart(sampleHeaders(),
			mimePart{headers: []string{"Content-Type: text/plain"}, body: "Hi there"},
			mimePart{headers: []string{"Content-Type: text/html"}, body: "<p>Hi</p>"},
			mimePart{
				headers: []string{"Content-Type: application/pdf", `Content-Disposition: attachment; filename="other.pdf"`},
				body:    "different",
			},
		)
		_, err := VerifyAttachment(changed, issued.PartIndex, issued.ContentHash)
		assert.ErrorIs(t, err, ErrAttachmentChanged)
	})
}

func ExampleNormalize() {
	raw := []byte("From: Jane <jane@example.com>\r\nSubject: Lunch?\r\n\r\nNoon\nat the usual place")
	msg := Normalize(raw, 7, "INBOX", []string{`\Seen`})
	fmt.Println(msg.FromName, "|", msg.Subject, "|", msg.Preview, "|", msg.IsRead)
	// Output: Jane | Lunch? | Noon at the usual place | true
}
