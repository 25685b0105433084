package imap

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

// Mailbox is a MailboxSession over a go-imap client.
type Mailbox struct {
	client   *client.Client
	logger   *zap.Logger
	selected string
}

func newMailbox(c *client.Client, logger *zap.Logger) *Mailbox {
	return &Mailbox{client: c, logger: logger}
}

func (m *Mailbox) Select(folder string) error {
	if _, err := m.client.Select(folder, false); err != nil {
		return fmt.Errorf("failed to select folder %s: %w", folder, err)
	}
	m.selected = folder
	return nil
}

func (m *Mailbox) Status(folder string) (*FolderStatus, error) {
	status, err := m.client.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to examine folder %s: %w", folder, err)
	}
	m.selected = folder

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	unseen, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to count unseen in %s: %w", folder, err)
	}

	return &FolderStatus{Messages: int(status.Messages), Unseen: len(unseen)}, nil
}

func (m *Mailbox) SearchUIDs(query string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	if query != "" {
		bySubject := imap.NewSearchCriteria()
		bySubject.Header.Add("Subject", query)
		byFrom := imap.NewSearchCriteria()
		byFrom.Header.Add("From", query)
		criteria.Or = [][2]*imap.SearchCriteria{{bySubject, byFrom}}
	}

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", m.selected, err)
	}
	return uids, nil
}

func (m *Mailbox) FetchMessages(uids []uint32) ([]*RawMessage, error) {
	if len(uids) == 0 {
		return []*RawMessage{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek leaves \Seen alone; marking read is an explicit step of the caller.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	result := make([]*RawMessage, 0, len(uids))
	var readErr error
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			m.logger.Warn("IMAP: message without body", zap.String("folder", m.selected), zap.Uint32("uid", msg.Uid))
			continue
		}

		raw, err := io.ReadAll(body)
		if err != nil {
			if readErr == nil {
				readErr = fmt.Errorf("failed to read message %d: %w", msg.Uid, err)
			}
			continue
		}

		result = append(result, &RawMessage{UID: msg.Uid, Flags: msg.Flags, Raw: raw})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}

	return result, nil
}

func (m *Mailbox) FetchMessage(uid uint32) (*RawMessage, error) {
	messages, err := m.FetchMessages([]uint32{uid})
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if msg.UID == uid {
			return msg, nil
		}
	}
	return nil, ErrMessageNotFound
}

func (m *Mailbox) FetchFlags(uid uint32) ([]string, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- m.client.UidFetch(seqSet, []imap.FetchItem{imap.FetchUid, imap.FetchFlags}, messages)
	}()

	var flags []string
	found := false
	for msg := range messages {
		if msg.Uid == uid {
			flags = msg.Flags
			found = true
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch flags: %w", err)
	}
	if !found {
		return nil, ErrMessageNotFound
	}

	return flags, nil
}

func (m *Mailbox) AddFlags(uid uint32, flags ...string) error {
	return m.storeFlags(uid, imap.AddFlags, flags)
}

func (m *Mailbox) RemoveFlags(uid uint32, flags ...string) error {
	return m.storeFlags(uid, imap.RemoveFlags, flags)
}

func (m *Mailbox) storeFlags(uid uint32, op imap.FlagsOp, flags []string) error {
	if len(flags) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	values := make([]interface{}, len(flags))
	for i, flag := range flags {
		values[i] = flag
	}

	if err := m.client.UidStore(seqSet, imap.FormatFlagsOp(op, true), values, nil); err != nil {
		return fmt.Errorf("failed to store flags: %w", err)
	}
	return nil
}

func (m *Mailbox) Move(uid uint32, target string) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := m.client.UidCopy(seqSet, target); err != nil {
		return fmt.Errorf("failed to copy message to %s: %w", target, err)
	}

	return m.Delete(uid)
}

func (m *Mailbox) Delete(uid uint32) error {
	if err := m.AddFlags(uid, imap.DeletedFlag); err != nil {
		return err
	}

	if err := m.client.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

func (m *Mailbox) Append(folder string, flags []string, date time.Time, raw []byte) error {
	if err := m.client.Append(folder, flags, date, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", folder, err)
	}
	return nil
}

func (m *Mailbox) Logout() error {
	if err := m.client.Logout(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}
