package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"policy-report/internal/logger"
	"policy-report/internal/model"
)

const blockSeparator = "\n\n---EMAIL_BREAK---\n\n"

// Dedupe keeps the first-seen record per identity in input order and
// drops later duplicates. Records with no identity are unique by
// construction and always kept.
func Dedupe(records []*model.NormalizedMessage, log *logger.Logger) []*model.NormalizedMessage {
	seen := make(map[string]bool, len(records))
	out := make([]*model.NormalizedMessage, 0, len(records))
	for _, rec := range records {
		if rec.Identity == "" {
			out = append(out, rec)
			continue
		}
		if seen[rec.Identity] {
			log.Infof("dropping duplicate message id=%s", rec.Identity)
			continue
		}
		seen[rec.Identity] = true
		out = append(out, rec)
	}
	return out
}

// SortByCanonical orders records ascending by canonical timestamp,
// preserving input order for ties. A record with no timestamp sorts as
// if it were at the window's since bound.
func SortByCanonical(records []*model.NormalizedMessage, since time.Time) {
	key := func(rec *model.NormalizedMessage) time.Time {
		if rec.CanonicalTimestamp.IsZero() {
			return since
		}
		return rec.CanonicalTimestamp
	}
	sort.SliceStable(records, func(i, j int) bool {
		return key(records[i]).Before(key(records[j]))
	})
}

// PeriodBounds computes the report's displayed start and end, clamped
// to the requested window even when message timestamps fall outside it.
// With no records the bounds default to the window itself.
func PeriodBounds(records []*model.NormalizedMessage, w model.Window) (time.Time, time.Time) {
	start, end := w.Since, w.Until
	first := true
	var min, max time.Time
	for _, rec := range records {
		if rec.CanonicalTimestamp.IsZero() {
			continue
		}
		if first {
			min, max = rec.CanonicalTimestamp, rec.CanonicalTimestamp
			first = false
			continue
		}
		if rec.CanonicalTimestamp.Before(min) {
			min = rec.CanonicalTimestamp
		}
		if rec.CanonicalTimestamp.After(max) {
			max = rec.CanonicalTimestamp
		}
	}
	if first {
		return start, end
	}
	if min.After(start) {
		start = min
	}
	if max.Before(end) {
		end = max
	}
	return start, end
}

// PayloadBuilder concatenates the persisted per-message text, inlining
// extracted text for PDF attachments, into the single merge payload
// submitted to the extraction stage.
type PayloadBuilder struct {
	// ExtractPDF is the document-text-extraction collaborator. A failure
	// degrades to omission of that attachment's text, never to a run
	// failure.
	ExtractPDF func(path string) (string, error)
	Logger     *logger.Logger
}

// Build returns the merge payload. Block order equals the order of
// records; the output is fully deterministic for a fixed input.
func (b *PayloadBuilder) Build(records []*model.NormalizedMessage) string {
	parts := make([]string, 0, len(records))
	for i, rec := range records {
		text, err := os.ReadFile(rec.BodyPath)
		if err != nil {
			b.Logger.Warnf("failed to read email text %s: %v", rec.BodyPath, err)
			text = nil
		}

		var block strings.Builder
		fmt.Fprintf(&block, "---EMAIL %d/%d---\n", i+1, len(records))
		block.Write(text)

		for _, attPath := range rec.AttachmentPaths {
			if !strings.EqualFold(filepath.Ext(attPath), ".pdf") {
				continue
			}
			pdfText, err := b.ExtractPDF(attPath)
			if err != nil {
				b.Logger.Warnf("pdf text extraction failed for %s: %v", attPath, err)
				continue
			}
			if strings.TrimSpace(pdfText) == "" {
				continue
			}
			fmt.Fprintf(&block, "\n\n[PDF: %s]\n%s\n", filepath.Base(attPath), pdfText)
		}

		parts = append(parts, block.String())
	}
	return strings.Join(parts, blockSeparator)
}
