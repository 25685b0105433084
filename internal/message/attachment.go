package message

import (
	"errors"
	"strings"
)

var (
	// ErrAttachmentNotFound is returned when no part has the requested index.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrNotAttachment is returned when the part at the index is not an attachment.
	ErrNotAttachment = errors.New("part is not an attachment")
	// ErrAttachmentEmpty is returned when the attachment decodes to zero bytes.
	ErrAttachmentEmpty = errors.New("attachment is empty")
	// ErrAttachmentChanged is returned when the part at the index no longer has the
	// content hash the caller was given.
	ErrAttachmentChanged = errors.New("attachment content changed")
)

const defaultContentType = "application/octet-stream"

// AttachmentContent is the payload of one attachment part.
type AttachmentContent struct {
	Filename    string
	ContentType string
	Data        []byte
	ContentHash string
}

// FindAttachment re-walks a raw message and returns the attachment at the given walk
// index. The index is only valid for the same raw bytes it was computed from.
func FindAttachment(raw []byte, index int) (*AttachmentContent, error) {
	if index < 0 {
		return nil, ErrAttachmentNotFound
	}

	leaf := LeafAt(Parse(raw).Root, index)
	if leaf == nil {
		return nil, ErrAttachmentNotFound
	}

	if !leaf.isAttachment() {
		return nil, ErrNotAttachment
	}

	if len(leaf.Content) == 0 {
		return nil, ErrAttachmentEmpty
	}

	return &AttachmentContent{
		Filename:    attachmentName(leaf, index),
		ContentType: leaf.attachmentType(),
		Data:        leaf.Content,
		ContentHash: contentHash(leaf.Content),
	}, nil
}

// VerifyAttachment is FindAttachment plus a check that the part still has the expected
// content hash. An empty hash skips the check.
func VerifyAttachment(raw []byte, index int, expectedHash string) (*AttachmentContent, error) {
	attachment, err := FindAttachment(raw, index)
	if err != nil {
		return nil, err
	}

	if expectedHash != "" && !strings.EqualFold(expectedHash, attachment.ContentHash) {
		return nil, ErrAttachmentChanged
	}

	return attachment, nil
}
