package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"policy-report/internal/logger"
	"policy-report/internal/mailstore"
	"policy-report/internal/model"
)

// ErrSkipMessage marks a single message as unusable or out of window.
// Callers log it and continue with the next item; it is never fatal.
var ErrSkipMessage = errors.New("skip message")

// allowedExtensions is the attachment whitelist. Matching is
// case-insensitive; anything else is logged and not persisted.
var allowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true,
	".xlsx": true, ".xls": true, ".pptx": true,
	".ppt": true, ".txt": true, ".csv": true,
}

const bodyFingerprintLen = 500

// Normalizer turns one raw message into a NormalizedMessage, persisting
// its body and whitelisted attachments under OutDir. The receipt-time
// window check here is the authoritative range filter; whatever
// server-side restriction the mail store applied is only advisory.
type Normalizer struct {
	OutDir string
	Window model.Window
	Logger *logger.Logger

	// Synthetic marks timestamps as fabricated (mock backend).
	Synthetic bool
}

// Normalize produces a NormalizedMessage or an error wrapping
// ErrSkipMessage.
func (n *Normalizer) Normalize(msg model.RawMessage) (*model.NormalizedMessage, error) {
	received := mailstore.ToNaiveLocal(msg.ReceivedAt)
	if received.IsZero() {
		return nil, fmt.Errorf("%w: no receipt time", ErrSkipMessage)
	}
	if !n.Window.Contains(received) {
		return nil, fmt.Errorf("%w: receipt time %s outside window", ErrSkipMessage, received.Format("2006-01-02 15:04:05"))
	}

	subject := msg.Subject
	if subject == "" {
		subject = "no_subject"
	}

	// Canonical timestamp policy: a parsable Date: header wins over the
	// store's receipt time.
	canonical := received
	source := model.SourceReceivedTime
	if headerDate, ok := parseHeaderDate(msg.RawHeader); ok {
		canonical = headerDate
		source = model.SourceHeaderDate
	} else if n.Synthetic {
		source = model.SourceSynthetic
	}

	identity := msg.MessageID
	if identity == "" {
		identity = msg.EntryID
	}
	if identity == "" {
		identity = fingerprint(subject, msg.Sender, canonical, msg.Body)
	}

	// The filename embeds the receipt time, not the canonical one, so
	// files stay monotonic by arrival.
	baseName := received.Format("20060102_150405") + "_" + sanitizeSubject(subject)

	bodyPath := filepath.Join(n.OutDir, baseName+".txt")
	if err := n.writeBody(bodyPath, subject, msg.Sender, received, msg.Body); err != nil {
		return nil, fmt.Errorf("%w: writing body: %v", ErrSkipMessage, err)
	}

	record := &model.NormalizedMessage{
		Identity:             identity,
		CanonicalTimestamp:   canonical,
		RawReceivedTimestamp: received,
		TimestampSource:      source,
		BodyPath:             bodyPath,
	}

	for _, att := range msg.Attachments {
		ext := strings.ToLower(filepath.Ext(att.Filename))
		if !allowedExtensions[ext] {
			n.Logger.Infof("skipping non-document attachment %s (ext=%s)", att.Filename, ext)
			continue
		}
		// Base strips any path components a hostile sender smuggled into
		// the filename, so the attachment cannot escape OutDir.
		attPath := filepath.Join(n.OutDir, baseName+"_"+filepath.Base(att.Filename))
		if err := os.WriteFile(attPath, att.Data, 0o644); err != nil {
			n.Logger.Warnf("failed to save attachment %s: %v", att.Filename, err)
			continue
		}
		record.AttachmentPaths = append(record.AttachmentPaths, attPath)
	}

	return record, nil
}

func (n *Normalizer) writeBody(path, subject, sender string, received time.Time, body string) error {
	var b strings.Builder
	b.WriteString("Subject: " + subject + "\n")
	b.WriteString("From: " + sender + "\n")
	b.WriteString("Received: " + received.Format("2006-01-02 15:04:05") + "\n\n")
	b.WriteString(body)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// parseHeaderDate finds a Date: line in a raw header block and parses
// it to naive local time.
func parseHeaderDate(rawHeader string) (time.Time, bool) {
	if rawHeader == "" {
		return time.Time{}, false
	}
	for _, line := range strings.Split(rawHeader, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 5 || !strings.EqualFold(line[:5], "date:") {
			continue
		}
		value := strings.TrimSpace(line[5:])
		t, err := mail.ParseDate(value)
		if err != nil {
			return time.Time{}, false
		}
		return mailstore.ToNaiveLocal(t), true
	}
	return time.Time{}, false
}

// fingerprint is the deterministic identity fallback for messages with
// no provider identifier.
func fingerprint(subject, sender string, canonical time.Time, body string) string {
	prefix := body
	if len(prefix) > bodyFingerprintLen {
		prefix = prefix[:bodyFingerprintLen]
	}
	key := fmt.Sprintf("%s|%s|%s|%s", subject, sender, canonical.Format("2006-01-02 15:04:05"), prefix)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// sanitizeSubject keeps letters, digits, spaces, underscores and
// hyphens, truncated to 100 runes.
func sanitizeSubject(subject string) string {
	var b strings.Builder
	count := 0
	for _, r := range subject {
		if count >= 100 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
			count++
		}
	}
	return strings.TrimSpace(b.String())
}
