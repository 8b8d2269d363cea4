package model

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses recorded in the run ledger.
const (
	RunStatusCompleted = "completed"
	RunStatusExtracted = "extracted"
	RunStatusDumped    = "dumped"
	RunStatusDetached  = "detached"
	RunStatusFailed    = "failed"
)

// Run is one ledger entry describing a completed (or failed) report run.
type Run struct {
	ID           string    `db:"id"`
	Period       string    `db:"period"`
	Since        time.Time `db:"since"`
	Until        time.Time `db:"until"`
	MessageCount int       `db:"message_count"`
	PayloadPath  string    `db:"payload_path"`
	ExtractPath  string    `db:"extract_path"`
	ReportPath   string    `db:"report_path"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewRun creates a ledger entry for the given window.
func NewRun(period string, since, until time.Time) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Period:    period,
		Since:     since,
		Until:     until,
		CreatedAt: time.Now(),
	}
}
