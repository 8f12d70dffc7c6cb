package memory

import (
	"context"
	"sync"
	"time"
)

// RecentAuditRepoImpl remembers audited sites until their expiry passes.
type RecentAuditRepoImpl struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewRecentAuditRepo() *RecentAuditRepoImpl {
	return &RecentAuditRepoImpl{expires: make(map[string]time.Time), now: time.Now}
}

func (r *RecentAuditRepoImpl) MarkAudited(_ context.Context, site string, expiry time.Duration) error {
	r.mu.Lock()
	r.expires[site] = r.now().Add(expiry)
	r.mu.Unlock()
	return nil
}

func (r *RecentAuditRepoImpl) IsAudited(_ context.Context, site string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.expires[site]
	if !ok {
		return false, nil
	}
	if !r.now().Before(exp) {
		delete(r.expires, site)
		return false, nil
	}
	return true, nil
}

func (r *RecentAuditRepoImpl) RemoveAudited(_ context.Context, site string) error {
	r.mu.Lock()
	delete(r.expires, site)
	r.mu.Unlock()
	return nil
}
