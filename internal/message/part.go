package message

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"net/textproto"
	"strings"

	"github.com/jhillyerd/enmime"
)

// Part is a node of a message structure: either a *Leaf or a *Multipart.
type Part interface {
	isPart()
}

// Leaf is a part that carries content.
type Leaf struct {
	// ContentType is the media type without parameters, e.g. "text/plain".
	ContentType string
	// Charset is the declared charset of the content, if any.
	Charset string
	// Disposition is the raw Content-Disposition header value.
	Disposition string
	FileName    string
	// Content is the payload with its transfer encoding removed. Text is left in its
	// declared charset.
	Content []byte
}

// Multipart is a container whose children are kept in message order.
type Multipart struct {
	ContentType string
	Children    []Part
}

func (*Leaf) isPart()      {}
func (*Multipart) isPart() {}

// Parsed is a raw message split into its top-level header and part tree.
type Parsed struct {
	Header textproto.MIMEHeader
	Root   Part
}

// partParser leaves part content alone so attachments keep their exact bytes;
// transfer decoding is done in convertPart and charset decoding in Leaf.text.
var partParser = enmime.NewParser(enmime.RawContent(true))

// Parse reads a raw RFC 5322 message. It never fails: input enmime cannot read
// is treated as a single text/plain part with no headers.
func Parse(raw []byte) *Parsed {
	root, err := partParser.ReadParts(bytes.NewReader(raw))
	if err != nil || root == nil {
		return &Parsed{
			Header: textproto.MIMEHeader{},
			Root:   &Leaf{ContentType: "text/plain", Content: raw},
		}
	}

	header := root.Header
	if header == nil {
		header = textproto.MIMEHeader{}
	}

	return &Parsed{Header: header, Root: convertPart(root)}
}

func convertPart(p *enmime.Part) Part {
	if p.FirstChild != nil || strings.HasPrefix(strings.ToLower(p.ContentType), "multipart/") {
		mp := &Multipart{ContentType: strings.ToLower(p.ContentType)}
		for child := p.FirstChild; child != nil; child = child.NextSibling {
			mp.Children = append(mp.Children, convertPart(child))
		}
		return mp
	}

	leaf := &Leaf{
		ContentType: strings.ToLower(p.ContentType),
		Charset:     p.Charset,
		FileName:    p.FileName,
		Content:     p.Content,
	}
	if p.Header != nil {
		leaf.Disposition = p.Header.Get("Content-Disposition")
		leaf.Content = decodeTransfer(p.Header.Get("Content-Transfer-Encoding"), p.Content)
	}
	return leaf
}

// decodeTransfer removes a base64 or quoted-printable transfer encoding. Broken
// input keeps whatever decoded before the error; unknown encodings pass through.
func decodeTransfer(encoding string, content []byte) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := bytes.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, content)
		cleaned = bytes.TrimRight(cleaned, "=")
		decoded := make([]byte, base64.RawStdEncoding.DecodedLen(len(cleaned)))
		n, _ := base64.RawStdEncoding.Decode(decoded, cleaned)
		return decoded[:n]
	case "quoted-printable":
		decoded, _ := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(content)))
		return decoded
	default:
		return content
	}
}

// Walk visits every leaf of the tree in depth-first pre-order. The index passed to
// visit starts at zero and counts leaves only; containers are not numbered.
func Walk(root Part, visit func(index int, leaf *Leaf)) {
	index := 0
	var walk func(Part)
	walk = func(p Part) {
		switch node := p.(type) {
		case *Leaf:
			visit(index, node)
			index++
		case *Multipart:
			for _, child := range node.Children {
				walk(child)
			}
		}
	}
	walk(root)
}

// LeafAt returns the leaf with the given walk index, or nil when there is none.
func LeafAt(root Part, index int) *Leaf {
	var found *Leaf
	Walk(root, func(i int, leaf *Leaf) {
		if i == index {
			found = leaf
		}
	})
	return found
}

// mediaType returns the content type, defaulting to text/plain as RFC 2045 does.
func (l *Leaf) mediaType() string {
	if l.ContentType == "" {
		return "text/plain"
	}
	return l.ContentType
}

// attachmentType returns the content type served for an attachment, defaulting to
// application/octet-stream when the part declares none.
func (l *Leaf) attachmentType() string {
	if l.ContentType == "" {
		return defaultContentType
	}
	return l.ContentType
}

// isAttachment reports whether the disposition marks the part as an attachment.
// The match is case-sensitive and takes priority over the content type.
func (l *Leaf) isAttachment() bool {
	return strings.Contains(l.Disposition, "attachment")
}

// text returns the content decoded from its declared charset to UTF-8, lossy on failure.
func (l *Leaf) text() string {
	return decodeCharset(l.Charset, l.Content)
}
