package memory

import (
	"context"
	"sync"

	"github.com/user/site-auditor/internal/repository"
)

// AuditQueueImpl is a FIFO of run IDs for single-process deployments.
type AuditQueueImpl struct {
	mu    sync.Mutex
	items []string
}

func NewAuditQueue() *AuditQueueImpl {
	return &AuditQueueImpl{}
}

func (q *AuditQueueImpl) Push(_ context.Context, runID string) error {
	q.mu.Lock()
	q.items = append(q.items, runID)
	q.mu.Unlock()
	return nil
}

func (q *AuditQueueImpl) Pop(_ context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", repository.ErrQueueEmpty
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, nil
}

func (q *AuditQueueImpl) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
