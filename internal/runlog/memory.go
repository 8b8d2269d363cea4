package runlog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"policy-report/internal/model"
)

// InMemoryRepository keeps the run ledger in memory. Used when no
// ledger path is configured and in tests.
type InMemoryRepository struct {
	runs  map[string]*model.Run
	mutex sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		runs: make(map[string]*model.Run),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, run *model.Run) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.runs[run.ID] = run
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*model.Run, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, errors.New("run not found")
	}
	return run, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*model.Run, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	runs := make([]*model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (r *InMemoryRepository) Close() error { return nil }
