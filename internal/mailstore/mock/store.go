package mock

import (
	"context"
	"time"

	"policy-report/internal/mailstore"
	"policy-report/internal/model"
)

// Store is an offline mail-store backend that fabricates one message at
// the midpoint of the requested window. Enabled via USE_MOCK_EMAILS for
// exercising the pipeline without a mailbox.
type Store struct{}

func NewStore() *Store { return &Store{} }

func (s *Store) ListMailboxes(_ context.Context) ([]string, error) {
	return []string{"mock"}, nil
}

func (s *Store) ListFolders(_ context.Context, _ int) ([]string, error) {
	return []string{"INBOX"}, nil
}

func (s *Store) ResolveFolder(_ context.Context, path []string) (mailstore.Folder, error) {
	name := "INBOX"
	if len(path) > 0 {
		name = path[len(path)-1]
	}
	return &Folder{name: name}, nil
}

// Folder fabricates a single mid-window message.
type Folder struct {
	name string
}

func (f *Folder) Name() string { return f.name }

func (f *Folder) Messages(_ context.Context, since, until time.Time) ([]model.RawMessage, error) {
	mid := since.Add(until.Sub(since) / 2)
	return []model.RawMessage{
		{
			Subject:    "MOCK",
			Sender:     "tester",
			ReceivedAt: mid,
			Body:       "This is mock policy email content for testing.",
			EntryID:    "mock-1",
		},
	}, nil
}
