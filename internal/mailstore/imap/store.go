package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"policy-report/internal/logger"
	"policy-report/internal/mailstore"
	"policy-report/internal/model"
)

// Store is the IMAP mail-store backend.
type Store struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	logger   *logger.Logger
}

func NewStore(host, port, username, password string, useTLS bool, logger *logger.Logger) *Store {
	return &Store{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      useTLS,
		logger:   logger,
	}
}

// connect dials and authenticates. The caller is responsible for
// logging out the returned client.
func (s *Store) connect(_ context.Context) (*imapclient.Client, error) {
	addr := s.host + ":" + s.port

	var client *imapclient.Client
	var err error
	if s.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", mailstore.ErrUnavailable, addr, err)
	}

	if err := client.Login(s.username, s.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: authentication failed for %s: %v", mailstore.ErrUnavailable, s.username, err)
	}
	return client, nil
}

func (s *Store) ListMailboxes(ctx context.Context) ([]string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	data, err := client.List("", "%", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}

	var names []string
	for _, d := range data {
		names = append(names, d.Mailbox)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ListFolders(ctx context.Context, depth int) ([]string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	data, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	var names []string
	for _, d := range data {
		if depth > 0 && strings.Count(d.Mailbox, string(d.Delim))+1 > depth {
			continue
		}
		names = append(names, d.Mailbox)
	}
	sort.Strings(names)
	return names, nil
}

// ResolveFolder walks the path one segment at a time, listing children
// at each level. Matching is case-insensitive on the leaf component, the
// way mail clients resolve display names.
func (s *Store) ResolveFolder(ctx context.Context, path []string) (mailstore.Folder, error) {
	if len(path) == 0 {
		return &Folder{store: s, mailbox: "INBOX"}, nil
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	prefix := ""
	delim := "/"
	for _, segment := range path {
		pattern := "%"
		if prefix != "" {
			pattern = prefix + delim + "%"
		}
		data, err := client.List("", pattern, nil).Collect()
		if err != nil {
			return nil, fmt.Errorf("listing folders under %q: %w", prefix, err)
		}

		found := ""
		for _, d := range data {
			if d.Delim != 0 {
				delim = string(d.Delim)
			}
			leaf := d.Mailbox
			if idx := strings.LastIndex(leaf, delim); idx >= 0 {
				leaf = leaf[idx+len(delim):]
			}
			if strings.EqualFold(leaf, segment) {
				found = d.Mailbox
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("%w: segment %q under %q", mailstore.ErrFolderNotFound, segment, prefix)
		}
		prefix = found
	}

	return &Folder{store: s, mailbox: prefix}, nil
}

// Folder is one selected IMAP mailbox.
type Folder struct {
	store   *Store
	mailbox string
}

func (f *Folder) Name() string { return f.mailbox }

// Messages applies a degrading server-side range filter and fetches the
// matching messages, most recent first. IMAP SEARCH dates are
// day-granular and zone-fuzzy, so the result is only advisory; the
// caller's receipt-time check is the authoritative window filter.
func (f *Folder) Messages(ctx context.Context, since, until time.Time) ([]model.RawMessage, error) {
	client, err := f.store.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(f.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %q: %w", f.mailbox, err)
	}

	numSet := f.searchRange(client, since, until)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(numSet, fetchOpts)

	var messages []model.RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			f.store.logger.Warn("failed to collect an IMAP message:", err)
			continue
		}
		messages = append(messages, rawMessageFromBuffer(buf, bodySection))
	}
	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
	return messages, nil
}

// searchRange tries a UID SEARCH with both bounds, then a plain SEARCH
// with the lower bound only, and finally falls back to the whole
// mailbox.
func (f *Folder) searchRange(client *imapclient.Client, since, until time.Time) imap.NumSet {
	// BEFORE is exclusive and day-granular; widen by one day.
	criteria := &imap.SearchCriteria{
		Since:  since,
		Before: until.AddDate(0, 0, 1),
	}
	if data, err := client.UIDSearch(criteria, nil).Wait(); err == nil {
		uids := data.AllUIDs()
		f.store.logger.Infof("applied UID SEARCH range filter: %d candidates", len(uids))
		if len(uids) > 0 {
			return imap.UIDSetNum(uids...)
		}
		// A zero count from the server is not trusted as final; fall
		// through to the coarser dialects.
	} else {
		f.store.logger.Warn("UID SEARCH with range criteria failed; trying SINCE-only SEARCH:", err)
	}

	if data, err := client.Search(&imap.SearchCriteria{Since: since}, nil).Wait(); err == nil {
		nums := data.AllSeqNums()
		f.store.logger.Infof("applied SINCE-only SEARCH filter: %d candidates", len(nums))
		if len(nums) > 0 {
			return imap.SeqSetNum(nums...)
		}
	} else {
		f.store.logger.Warn("SEARCH failed; fetching unfiltered mailbox (client-side filter will apply):", err)
	}

	return imap.SeqSet{imap.SeqRange{Start: 1, Stop: 0}} // 1:*
}

func rawMessageFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) model.RawMessage {
	msg := model.RawMessage{
		ReceivedAt: mailstore.ToNaiveLocal(buf.InternalDate),
		EntryID:    fmt.Sprintf("imap-uid-%d", buf.UID),
	}

	if buf.Envelope != nil {
		msg.Subject = buf.Envelope.Subject
		msg.MessageID = buf.Envelope.MessageID
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				msg.Sender = from.Name
			} else {
				msg.Sender = from.Addr()
			}
		}
	}

	raw := buf.FindBodySection(section)
	if raw == nil {
		return msg
	}

	msg.RawHeader = headerBlock(raw)
	body, attachments := parseMIMEBody(raw)
	msg.Body = body
	msg.Attachments = attachments
	return msg
}

// headerBlock returns the raw header portion of an RFC 5322 message.
func headerBlock(raw []byte) string {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return string(raw[:idx])
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return string(raw[:idx])
	}
	return string(raw)
}

// parseMIMEBody extracts the plain-text body (falling back to stripped
// HTML) and attachment contents from a raw message.
func parseMIMEBody(raw []byte) (string, []model.Attachment) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; treat everything after the headers as plain text.
		if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
			return string(raw[idx+4:]), nil
		}
		return string(raw), nil
	}
	defer mr.Close()

	var textBody, htmlBody string
	var attachments []model.Attachment

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				textBody = string(data)
			case strings.HasPrefix(contentType, "text/html"):
				htmlBody = string(data)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if filename == "" {
				continue
			}
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			attachments = append(attachments, model.Attachment{
				Filename: filename,
				Data:     data,
			})
		}
	}

	if textBody == "" && htmlBody != "" {
		textBody = mailstore.StripHTML(htmlBody)
	}
	return textBody, attachments
}
