package memory

import (
	"context"
	"sync"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
)

// AuditRunRepoImpl keeps audit runs in process memory. Runs are copied on
// the way in and out so callers never share a value with the store.
type AuditRunRepoImpl struct {
	mu   sync.RWMutex
	runs map[string]entity.AuditRun
}

// NewAuditRunRepo creates an empty run store.
func NewAuditRunRepo() *AuditRunRepoImpl {
	return &AuditRunRepoImpl{runs: make(map[string]entity.AuditRun)}
}

func (r *AuditRunRepoImpl) Save(_ context.Context, run *entity.AuditRun) error {
	r.mu.Lock()
	r.runs[run.ID] = *run
	r.mu.Unlock()
	return nil
}

func (r *AuditRunRepoImpl) FindByID(_ context.Context, id string) (*entity.AuditRun, error) {
	r.mu.RLock()
	run, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &run, nil
}
