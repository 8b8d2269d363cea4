package mailstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"policy-report/internal/model"
)

// ErrUnavailable means the mail store cannot be reached or is
// misconfigured. Fatal to the run.
var ErrUnavailable = errors.New("mail store unavailable")

// ErrFolderNotFound means a segment of the requested folder path does
// not exist under the mailbox.
var ErrFolderNotFound = errors.New("folder not found")

// Store is the mail-store collaborator: folder discovery plus resolution
// of a hierarchical folder path to a queryable folder.
type Store interface {
	// ListMailboxes returns the top-level mailbox names.
	ListMailboxes(ctx context.Context) ([]string, error)

	// ListFolders returns folder paths under the mailbox, at most depth
	// levels deep.
	ListFolders(ctx context.Context, depth int) ([]string, error)

	// ResolveFolder walks the path segments iteratively and returns the
	// folder handle, or an error wrapping ErrFolderNotFound naming the
	// missing segment.
	ResolveFolder(ctx context.Context, path []string) (Folder, error)
}

// Folder yields raw messages whose receipt time plausibly falls in
// [since, until]. The server-side range filter is best effort: backends
// degrade through simpler filter dialects and finally to the unfiltered
// item list. Callers must re-check each message's receipt time
// themselves; a Folder's output is advisory, never authoritative.
type Folder interface {
	Name() string
	Messages(ctx context.Context, since, until time.Time) ([]model.RawMessage, error)
}

var pathSeparators = regexp.MustCompile(`[\\/>|]+`)

// SplitFolderPath splits a folder path like "Inbox/2. Policy Update"
// into segments. Any run of '/', '\', '>' or '|' separates segments.
func SplitFolderPath(s string) []string {
	if s == "" {
		return nil
	}
	normalized := pathSeparators.ReplaceAllString(s, "/")
	var parts []string
	for _, p := range strings.Split(normalized, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// ToNaiveLocal converts a timestamp carrying zone information to local
// wall-clock time. A zero time passes through unchanged.
func ToNaiveLocal(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(time.Local)
}
