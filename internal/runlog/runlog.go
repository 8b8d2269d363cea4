// Package runlog records one ledger entry per report run so past
// periods can be listed and re-generated from their artifacts.
package runlog

import (
	"context"

	"policy-report/internal/model"
)

// Repository defines the run-ledger data operations.
type Repository interface {
	Create(ctx context.Context, run *model.Run) error
	FindByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context) ([]*model.Run, error)
	Close() error
}
