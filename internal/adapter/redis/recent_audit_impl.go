package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/site-auditor/pkg/utils"
)

const auditedSitePrefix = "audited:"

// RecentAuditRepoImpl implements repository.RecentAuditRepository with
// expiring keys.
type RecentAuditRepoImpl struct {
	client *redis.Client
}

// NewRecentAuditRepo creates a new instance of RecentAuditRepoImpl.
func NewRecentAuditRepo(client *redis.Client) *RecentAuditRepoImpl {
	return &RecentAuditRepoImpl{client: client}
}

// generateKey hashes the site so keys stay short and uniform.
func (r *RecentAuditRepoImpl) generateKey(site string) string {
	return fmt.Sprintf("%s%s", auditedSitePrefix, utils.HashURL(site))
}

// MarkAudited sets the site key with an expiry.
func (r *RecentAuditRepoImpl) MarkAudited(ctx context.Context, site string, expiry time.Duration) error {
	return r.client.SetEx(ctx, r.generateKey(site), "1", expiry).Err()
}

// IsAudited checks for the existence of the site key.
func (r *RecentAuditRepoImpl) IsAudited(ctx context.Context, site string) (bool, error) {
	val, err := r.client.Exists(ctx, r.generateKey(site)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// RemoveAudited deletes the site key, used for forced audits.
func (r *RecentAuditRepoImpl) RemoveAudited(ctx context.Context, site string) error {
	return r.client.Del(ctx, r.generateKey(site)).Err()
}
