package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-report/internal/logger"
	"policy-report/internal/model"
)

var testLog = logger.NewWithWriter(io.Discard)

func rec(identity string, ts time.Time) *model.NormalizedMessage {
	return &model.NormalizedMessage{Identity: identity, CanonicalTimestamp: ts}
}

func TestDedupeKeepsFirstSeen(t *testing.T) {
	early := rec("A", time.Date(2025, 8, 10, 0, 0, 0, 0, time.Local))
	late := rec("A", time.Date(2025, 8, 12, 0, 0, 0, 0, time.Local))

	out := Dedupe([]*model.NormalizedMessage{early, late}, testLog)

	require.Len(t, out, 1)
	assert.Same(t, early, out[0])
}

func TestDedupeIsIdempotent(t *testing.T) {
	in := []*model.NormalizedMessage{
		rec("A", time.Date(2025, 8, 10, 0, 0, 0, 0, time.Local)),
		rec("B", time.Date(2025, 8, 11, 0, 0, 0, 0, time.Local)),
		rec("A", time.Date(2025, 8, 12, 0, 0, 0, 0, time.Local)),
	}

	once := Dedupe(in, testLog)
	twice := Dedupe(once, testLog)
	assert.Equal(t, once, twice)

	// Appending an exact duplicate identity changes nothing.
	again := Dedupe(append(append([]*model.NormalizedMessage{}, once...), rec("B", time.Time{})), testLog)
	assert.Equal(t, once, again)
}

func TestDedupeKeepsIdentitylessRecords(t *testing.T) {
	in := []*model.NormalizedMessage{
		rec("", time.Date(2025, 8, 10, 0, 0, 0, 0, time.Local)),
		rec("", time.Date(2025, 8, 10, 0, 0, 0, 0, time.Local)),
	}
	out := Dedupe(in, testLog)
	assert.Len(t, out, 2)
}

func TestSortByCanonicalIsStableAndTotal(t *testing.T) {
	tie := time.Date(2025, 8, 10, 12, 0, 0, 0, time.Local)
	a := rec("a", tie)
	b := rec("b", tie)
	c := rec("c", time.Date(2025, 8, 9, 0, 0, 0, 0, time.Local))
	since := time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local)
	// Zero timestamp sorts as the window's since bound.
	z := rec("z", time.Time{})

	records := []*model.NormalizedMessage{a, b, z, c}
	SortByCanonical(records, since)

	assert.Equal(t, []*model.NormalizedMessage{z, c, a, b}, records)
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1].CanonicalTimestamp, records[i].CanonicalTimestamp
		if prev.IsZero() {
			prev = since
		}
		if cur.IsZero() {
			cur = since
		}
		assert.False(t, cur.Before(prev), "output must be non-decreasing")
	}
}

func TestPeriodBoundsClampedToWindow(t *testing.T) {
	w := model.Window{
		Since: time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local),
		Until: time.Date(2025, 8, 7, 23, 59, 59, 0, time.Local),
	}

	// A mis-dated header can push the canonical timestamp past the
	// window; the displayed bounds stay clamped.
	records := []*model.NormalizedMessage{
		rec("a", time.Date(2025, 8, 3, 0, 0, 0, 0, time.Local)),
		rec("b", time.Date(2025, 8, 15, 0, 0, 0, 0, time.Local)),
	}

	start, end := PeriodBounds(records, w)
	assert.True(t, start.Equal(time.Date(2025, 8, 3, 0, 0, 0, 0, time.Local)))
	assert.True(t, end.Equal(w.Until))
}

func TestPeriodBoundsDefaultToWindow(t *testing.T) {
	w := model.Window{
		Since: time.Date(2025, 8, 1, 0, 0, 0, 0, time.Local),
		Until: time.Date(2025, 8, 7, 0, 0, 0, 0, time.Local),
	}

	start, end := PeriodBounds(nil, w)
	assert.True(t, start.Equal(w.Since))
	assert.True(t, end.Equal(w.Until))

	// Records with no timestamp contribute nothing.
	start, end = PeriodBounds([]*model.NormalizedMessage{rec("a", time.Time{})}, w)
	assert.True(t, start.Equal(w.Since))
	assert.True(t, end.Equal(w.Until))
}

func writeBodyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildPayloadOrderAndSeparators(t *testing.T) {
	dir := t.TempDir()
	first := writeBodyFile(t, dir, "first.txt", "Subject: one\n\nfirst body")
	second := writeBodyFile(t, dir, "second.txt", "Subject: two\n\nsecond body")

	b := &PayloadBuilder{
		ExtractPDF: func(path string) (string, error) { return "", nil },
		Logger:     testLog,
	}
	payload := b.Build([]*model.NormalizedMessage{
		{BodyPath: first},
		{BodyPath: second},
	})

	parts := strings.Split(payload, "\n\n---EMAIL_BREAK---\n\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "---EMAIL 1/2---\n"))
	assert.Contains(t, parts[0], "first body")
	assert.True(t, strings.HasPrefix(parts[1], "---EMAIL 2/2---\n"))
	assert.Contains(t, parts[1], "second body")
}

func TestBuildPayloadInlinesPDFText(t *testing.T) {
	dir := t.TempDir()
	body := writeBodyFile(t, dir, "mail.txt", "Subject: one\n\nbody")
	pdfPath := filepath.Join(dir, "rates.pdf")
	otherPath := filepath.Join(dir, "notes.docx")

	b := &PayloadBuilder{
		ExtractPDF: func(path string) (string, error) {
			assert.Equal(t, pdfPath, path, "only pdf attachments are extracted")
			return "extracted rates table", nil
		},
		Logger: testLog,
	}
	payload := b.Build([]*model.NormalizedMessage{
		{BodyPath: body, AttachmentPaths: []string{pdfPath, otherPath}},
	})

	assert.Contains(t, payload, "[PDF: rates.pdf]")
	assert.Contains(t, payload, "extracted rates table")
	assert.NotContains(t, payload, "notes.docx")
}

func TestBuildPayloadExtractionFailureDegradesToOmission(t *testing.T) {
	dir := t.TempDir()
	body := writeBodyFile(t, dir, "mail.txt", "Subject: one\n\nbody")

	calls := 0
	b := &PayloadBuilder{
		ExtractPDF: func(path string) (string, error) {
			calls++
			return "", errors.New("corrupt pdf")
		},
		Logger: testLog,
	}
	payload := b.Build([]*model.NormalizedMessage{
		{BodyPath: body, AttachmentPaths: []string{filepath.Join(dir, "broken.pdf")}},
	})

	assert.Equal(t, 1, calls)
	assert.NotContains(t, payload, "[PDF:")
	assert.Contains(t, payload, "body")
}

func TestBuildPayloadIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	var records []*model.NormalizedMessage
	for i := 0; i < 3; i++ {
		p := writeBodyFile(t, dir, fmt.Sprintf("m%d.txt", i), fmt.Sprintf("body %d", i))
		records = append(records, &model.NormalizedMessage{BodyPath: p})
	}

	b := &PayloadBuilder{
		ExtractPDF: func(string) (string, error) { return "", nil },
		Logger:     testLog,
	}
	assert.Equal(t, b.Build(records), b.Build(records))
}
