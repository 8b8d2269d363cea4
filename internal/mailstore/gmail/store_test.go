package gmail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"policy-report/internal/logger"
)

// fakeGmail serves the two endpoints Messages touches and records every
// q= query it sees.
type fakeGmail struct {
	queries []string
	// answer maps a query classifier to the message list response.
	answer func(q string) string
}

func (f *fakeGmail) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, f.answer(q))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "m1",
			"internalDate": "1754449815000",
			"payload": {
				"headers": [
					{"name": "Subject", "value": "Rates update"},
					{"name": "From", "value": "lender@example.com"}
				],
				"mimeType": "text/plain",
				"body": {}
			}
		}`)
	})
	return mux
}

func testFolder(t *testing.T, fake *fakeGmail) *Folder {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	service, err := gmailapi.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL))
	require.NoError(t, err)

	store := &Store{service: service, logger: logger.NewWithWriter(io.Discard)}
	return &Folder{store: store, label: "INBOX", labelID: "INBOX"}
}

func isEpochQuery(q string) bool { return q != "" && !strings.Contains(q, "/") }
func isDateQuery(q string) bool  { return strings.Contains(q, "/") }

func TestMessagesZeroCountFallsThroughToDateDialect(t *testing.T) {
	// The epoch query succeeds with zero matches; only the date dialect
	// knows about the message. An empty success must not end the search.
	fake := &fakeGmail{answer: func(q string) string {
		if isDateQuery(q) {
			return `{"messages": [{"id": "m1"}]}`
		}
		return `{}`
	}}
	folder := testFolder(t, fake)

	since := time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local)
	until := time.Date(2025, 8, 7, 23, 59, 59, 0, time.Local)

	msgs, err := folder.Messages(context.Background(), since, until)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Rates update", msgs[0].Subject)

	require.Len(t, fake.queries, 2)
	assert.True(t, isEpochQuery(fake.queries[0]), "first query uses epoch operators: %q", fake.queries[0])
	assert.True(t, isDateQuery(fake.queries[1]), "second query uses the date dialect: %q", fake.queries[1])
}

func TestMessagesZeroCountsDegradeToUnfilteredListing(t *testing.T) {
	// Both range dialects come back empty; the last resort is the
	// unfiltered label listing, leaving the client-side filter to work.
	fake := &fakeGmail{answer: func(q string) string {
		if q == "" {
			return `{"messages": [{"id": "m1"}]}`
		}
		return `{}`
	}}
	folder := testFolder(t, fake)

	since := time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local)
	until := time.Date(2025, 8, 7, 23, 59, 59, 0, time.Local)

	msgs, err := folder.Messages(context.Background(), since, until)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.Len(t, fake.queries, 3)
	assert.True(t, isEpochQuery(fake.queries[0]))
	assert.True(t, isDateQuery(fake.queries[1]))
	assert.Equal(t, "", fake.queries[2])
}

func TestMessagesStopsAtFirstNonEmptyResult(t *testing.T) {
	fake := &fakeGmail{answer: func(q string) string {
		return `{"messages": [{"id": "m1"}]}`
	}}
	folder := testFolder(t, fake)

	since := time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local)
	until := time.Date(2025, 8, 7, 23, 59, 59, 0, time.Local)

	msgs, err := folder.Messages(context.Background(), since, until)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.Len(t, fake.queries, 1)
	assert.True(t, isEpochQuery(fake.queries[0]))
}
