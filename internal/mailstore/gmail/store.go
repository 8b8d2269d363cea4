package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"policy-report/internal/logger"
	"policy-report/internal/mailstore"
	"policy-report/internal/model"
)

const user = "me"

// Store is the Gmail mail-store backend. Hierarchical folder paths map
// to Gmail label names joined with '/'.
type Store struct {
	service *gmailapi.Service
	logger  *logger.Logger
}

func NewStore(accessToken string, logger *logger.Logger) (*Store, error) {
	httpClient := &http.Client{
		Transport: &bearerTransport{token: accessToken},
	}

	service, err := gmailapi.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("%w: creating Gmail service: %v", mailstore.ErrUnavailable, err)
	}
	return &Store{service: service, logger: logger}, nil
}

type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

func (s *Store) ListMailboxes(ctx context.Context) ([]string, error) {
	profile, err := s.service.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching Gmail profile: %v", mailstore.ErrUnavailable, err)
	}
	return []string{profile.EmailAddress}, nil
}

func (s *Store) ListFolders(ctx context.Context, depth int) ([]string, error) {
	labels, err := s.labelNames(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, name := range labels {
		if depth > 0 && strings.Count(name, "/")+1 > depth {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ResolveFolder resolves path segments against the label tree one
// segment at a time, so a missing intermediate segment is reported by
// name.
func (s *Store) ResolveFolder(ctx context.Context, path []string) (mailstore.Folder, error) {
	if len(path) == 0 {
		return &Folder{store: s, label: "INBOX", labelID: "INBOX"}, nil
	}

	resp, err := s.service.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: listing Gmail labels: %v", mailstore.ErrUnavailable, err)
	}

	prefix := ""
	for _, segment := range path {
		next := segment
		if prefix != "" {
			next = prefix + "/" + segment
		}
		if !labelExistsUnder(resp.Labels, next) {
			return nil, fmt.Errorf("%w: segment %q under %q", mailstore.ErrFolderNotFound, segment, prefix)
		}
		prefix = next
	}

	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, prefix) {
			return &Folder{store: s, label: l.Name, labelID: l.Id}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", mailstore.ErrFolderNotFound, prefix)
}

func (s *Store) labelNames(ctx context.Context) ([]string, error) {
	resp, err := s.service.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: listing Gmail labels: %v", mailstore.ErrUnavailable, err)
	}
	var names []string
	for _, l := range resp.Labels {
		names = append(names, l.Name)
	}
	return names, nil
}

// labelExistsUnder reports whether some label equals the prefix or
// lives below it.
func labelExistsUnder(labels []*gmailapi.Label, prefix string) bool {
	lower := strings.ToLower(prefix)
	for _, l := range labels {
		name := strings.ToLower(l.Name)
		if name == lower || strings.HasPrefix(name, lower+"/") {
			return true
		}
	}
	return false
}

// Folder is one Gmail label.
type Folder struct {
	store   *Store
	label   string
	labelID string
}

func (f *Folder) Name() string { return f.label }

// Messages lists messages under the label using a degrading search
// chain: an epoch-seconds after:/before: query, then the legacy
// YYYY/MM/DD date dialect, then the unfiltered label listing. Gmail
// date queries are day-granular, so the caller's receipt-time check
// remains the authoritative filter either way.
func (f *Folder) Messages(ctx context.Context, since, until time.Time) ([]model.RawMessage, error) {
	ids, err := f.searchIDs(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("listing messages under %q: %w", f.label, err)
	}

	var messages []model.RawMessage
	for _, id := range ids {
		msg, err := f.fetchMessage(ctx, id)
		if err != nil {
			f.store.logger.Warn("failed to fetch Gmail message", id, ":", err)
			continue
		}
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
	return messages, nil
}

// searchIDs walks the query dialects from sharpest to coarsest. A zero
// count from a successful query is not trusted as final: Gmail date
// operators are fuzzy around zone boundaries, so an empty result falls
// through to the next dialect the same way a failed one does.
func (f *Folder) searchIDs(ctx context.Context, since, until time.Time) ([]string, error) {
	ids, err := f.listIDs(ctx, fmt.Sprintf("after:%d before:%d", since.Unix(), until.Unix()+1))
	if err != nil {
		f.store.logger.Warn("epoch range query failed; trying date dialect:", err)
	} else if len(ids) > 0 {
		f.store.logger.Infof("applied epoch range query: %d candidates", len(ids))
		return ids, nil
	}

	ids, err = f.listIDs(ctx, fmt.Sprintf(
		"after:%s before:%s",
		since.Format("2006/01/02"),
		until.AddDate(0, 0, 1).Format("2006/01/02"),
	))
	if err != nil {
		f.store.logger.Warn("date range query failed; listing unfiltered (client-side filter will apply):", err)
	} else if len(ids) > 0 {
		f.store.logger.Infof("applied date range query: %d candidates", len(ids))
		return ids, nil
	}

	return f.listIDs(ctx, "")
}

func (f *Folder) listIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := f.store.service.Users.Messages.List(user).LabelIds(f.labelID).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, err
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (f *Folder) fetchMessage(ctx context.Context, id string) (model.RawMessage, error) {
	full, err := f.store.service.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return model.RawMessage{}, err
	}

	msg := model.RawMessage{
		ReceivedAt: mailstore.ToNaiveLocal(time.Unix(full.InternalDate/1000, 0)),
		EntryID:    "gmail-" + full.Id,
	}

	var headerLines []string
	for _, h := range full.Payload.Headers {
		headerLines = append(headerLines, h.Name+": "+h.Value)
		switch h.Name {
		case "Subject":
			msg.Subject = h.Value
		case "From":
			msg.Sender = h.Value
		case "Message-ID", "Message-Id":
			msg.MessageID = h.Value
		}
	}
	msg.RawHeader = strings.Join(headerLines, "\r\n")

	msg.Body = f.extractBody(full.Payload)
	msg.Attachments = f.fetchAttachments(ctx, full.Id, full.Payload)
	return msg, nil
}

// extractBody prefers text/plain, then falls back to a stripped
// text/html rendition, walking nested multipart payloads.
func (f *Folder) extractBody(payload *gmailapi.MessagePart) string {
	text, html := collectBodies(payload)
	if text != "" {
		return text
	}
	return mailstore.StripHTML(html)
}

func collectBodies(part *gmailapi.MessagePart) (text, html string) {
	if part == nil {
		return "", ""
	}
	if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain"):
				text = string(decoded)
			case strings.HasPrefix(part.MimeType, "text/html"):
				html = string(decoded)
			}
		}
	}
	for _, sub := range part.Parts {
		subText, subHTML := collectBodies(sub)
		if text == "" {
			text = subText
		}
		if html == "" {
			html = subHTML
		}
	}
	return text, html
}

func (f *Folder) fetchAttachments(ctx context.Context, msgID string, payload *gmailapi.MessagePart) []model.Attachment {
	var attachments []model.Attachment
	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Filename != "" && part.Body != nil {
			data, err := f.attachmentData(ctx, msgID, part.Body)
			if err != nil {
				f.store.logger.Warn("failed to fetch attachment", part.Filename, ":", err)
			} else {
				attachments = append(attachments, model.Attachment{
					Filename: part.Filename,
					Data:     data,
				})
			}
		}
		for _, sub := range part.Parts {
			walk(sub)
		}
	}
	walk(payload)
	return attachments
}

func (f *Folder) attachmentData(ctx context.Context, msgID string, body *gmailapi.MessagePartBody) ([]byte, error) {
	data := body.Data
	if data == "" && body.AttachmentId != "" {
		att, err := f.store.service.Users.Messages.Attachments.Get(user, msgID, body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		data = att.Data
	}
	return base64.URLEncoding.DecodeString(data)
}
