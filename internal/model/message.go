package model

import (
	"time"
)

// TimestampSource records which policy branch produced a message's
// canonical timestamp.
type TimestampSource string

const (
	// SourceHeaderDate means the Date: header in the raw header block
	// parsed successfully and was used.
	SourceHeaderDate TimestampSource = "header_date"
	// SourceReceivedTime means the mail store's reported receipt time
	// was used.
	SourceReceivedTime TimestampSource = "received_time"
	// SourceSynthetic means the timestamp was fabricated (mock mode).
	SourceSynthetic TimestampSource = "synthetic"
)

// Attachment is one attachment carried by a raw message, content included.
type Attachment struct {
	Filename string
	Data     []byte
}

// RawMessage is a message as yielded by a mail-store backend, before
// normalization. MessageID and EntryID are provider identifiers and may
// be empty. RawHeader is the raw RFC 5322 header block when the backend
// exposes one.
type RawMessage struct {
	Subject     string
	Sender      string
	ReceivedAt  time.Time
	Body        string
	RawHeader   string
	MessageID   string
	EntryID     string
	Attachments []Attachment
}

// NormalizedMessage is the immutable record produced by the normalizer
// for one in-window message.
type NormalizedMessage struct {
	// Identity is the stable dedup key: provider message-id, then
	// provider entry-id, then a content fingerprint. Empty means no
	// identity could be derived (never deduplicated).
	Identity string

	// CanonicalTimestamp is the naive local timestamp used for ordering
	// and window clamping, chosen header-date-first.
	CanonicalTimestamp time.Time

	// RawReceivedTimestamp is the store-reported receipt time, kept for
	// diagnostics and as the authoritative window-filter input.
	RawReceivedTimestamp time.Time

	TimestampSource TimestampSource

	// BodyPath is the persisted plain-text rendition of the message.
	BodyPath string

	// AttachmentPaths are persisted whitelisted attachments, in
	// enumeration order.
	AttachmentPaths []string
}

// Window is the closed local-time interval a fetch run covers.
type Window struct {
	Since time.Time
	Until time.Time
}

// Contains reports whether t falls inside the window (closed interval).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && !t.After(w.Until)
}
