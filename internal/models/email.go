package models

import (
	"encoding/json"
	"time"
)

// Folder is a mailbox folder as shown in the sidebar.
type Folder struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon"`
	Count       int    `json:"count"`
	Unread      int    `json:"unread"`
}

// Message is the normalized form of a mail message. It is built fresh on every read
// and never stored.
type Message struct {
	UID             uint32       `json:"uid"`
	Folder          string       `json:"folder"`
	MessageIDHeader string       `json:"message_id"`
	Subject         string       `json:"subject"`
	FromName        string       `json:"from_name"`
	FromAddress     string       `json:"from_email"`
	To              string       `json:"to"`
	CC              string       `json:"cc"`
	BCC             string       `json:"bcc"`
	ReplyTo         string       `json:"reply_to"`
	SentAt          Timestamp    `json:"date"`
	BodyText        string       `json:"body_text"`
	BodyHTML        string       `json:"body_html"`
	Preview         string       `json:"preview"`
	Attachments     []Attachment `json:"attachments"`
	HasAttachments  bool         `json:"has_attachments"`
	IsRead          bool         `json:"read"`
	IsFlagged       bool         `json:"starred"`
	Flags           []string     `json:"flags"`
}

// Attachment describes one attachment part. PartIndex is only meaningful for the raw
// message it was computed from; ContentHash lets a later fetch detect that the
// message changed underneath the index.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	PartIndex   int    `json:"index"`
	ContentHash string `json:"content_hash"`
}

// Timestamp is a best-effort parsed Date header. When the header could not be parsed,
// Time is zero and Raw holds the original text.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// String returns the time in RFC 3339 form, or the raw header text when unparsed.
func (t Timestamp) String() string {
	if !t.Time.IsZero() {
		return t.Time.Format(time.RFC3339)
	}
	return t.Raw
}

// MarshalJSON encodes the timestamp as a string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON reverses MarshalJSON. Text that is not RFC 3339 is kept as Raw.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}

	if parsed, err := time.Parse(time.RFC3339, text); err == nil {
		*t = Timestamp{Time: parsed}
		return nil
	}
	*t = Timestamp{Raw: text}
	return nil
}

// MessageListResponse is the paginated message list.
type MessageListResponse struct {
	Messages []*Message `json:"messages"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PerPage  int        `json:"per_page"`
	Folder   string     `json:"folder"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message *Message `json:"message"`
}

// FoldersResponse wraps the folder list.
type FoldersResponse struct {
	Folders []*Folder `json:"folders"`
}

// SendRequest is the JSON body of a send request.
type SendRequest struct {
	To      string `json:"to"`
	CC      string `json:"cc"`
	BCC     string `json:"bcc"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsHTML  bool   `json:"is_html"`
}

// FlagsRequest sets or clears flags. A nil field leaves the flag unchanged.
type FlagsRequest struct {
	Seen    *bool `json:"seen"`
	Flagged *bool `json:"flagged"`
}

// MoveRequest names the folder a message is moved to.
type MoveRequest struct {
	Target string `json:"target"`
}

// StatusResponse is a short confirmation.
type StatusResponse struct {
	Message string `json:"message"`
}

// FlagsResponse reports the read and starred state after a flag change.
type FlagsResponse struct {
	UID     uint32 `json:"uid"`
	Read    bool   `json:"read"`
	Starred bool   `json:"starred"`
}

// SendResponse confirms a submission.
type SendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	SavedCopy bool   `json:"saved_copy"`
}
