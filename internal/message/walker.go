package message

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/promail/webmail/internal/models"
)

// Body is the displayable content of a message as found by ExtractBody.
// HTML is not sanitized yet.
type Body struct {
	Text        string
	HTML        string
	Attachments []models.Attachment
}

// ExtractBody walks the tree and classifies every leaf:
//   - attachment disposition: recorded as an attachment, whatever its content type
//   - text/html: becomes the HTML body, the last one wins
//   - text/plain: becomes the text body unless one was already found
//
// Other parts are ignored.
func ExtractBody(root Part) Body {
	var body Body
	Walk(root, func(index int, leaf *Leaf) {
		switch {
		case leaf.isAttachment():
			body.Attachments = append(body.Attachments, models.Attachment{
				Filename:    attachmentName(leaf, index),
				ContentType: leaf.attachmentType(),
				Size:        len(leaf.Content),
				PartIndex:   index,
				ContentHash: contentHash(leaf.Content),
			})
		case leaf.mediaType() == "text/html":
			body.HTML = leaf.text()
		case leaf.mediaType() == "text/plain" && body.Text == "":
			body.Text = leaf.text()
		}
	})

	return body
}

// attachmentName returns the part's file name, or attachment_<index> when it has none.
func attachmentName(leaf *Leaf, index int) string {
	if leaf.FileName != "" {
		return DecodeHeader(leaf.FileName)
	}
	return fmt.Sprintf("attachment_%d", index)
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
