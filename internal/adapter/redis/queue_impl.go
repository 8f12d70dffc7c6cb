package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/user/site-auditor/internal/repository"
)

const auditQueueKey = "auditor:queue"

// QueueRepoImpl implements repository.AuditQueue on a Redis list.
type QueueRepoImpl struct {
	client *redis.Client
}

// NewQueueRepo creates a new instance of QueueRepoImpl.
func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client}
}

// Push adds a run ID to the left side of the list.
func (r *QueueRepoImpl) Push(ctx context.Context, runID string) error {
	return r.client.LPush(ctx, auditQueueKey, runID).Err()
}

// Pop removes a run ID from the right side of the list.
func (r *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	id, err := r.client.RPop(ctx, auditQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	return id, err
}

// Size returns the current number of queued runs.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, auditQueueKey).Result()
}
