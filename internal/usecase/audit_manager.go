package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRunNotFound         = errors.New("audit run not found")
	ErrSiteRecentlyAudited = errors.New("site has been audited recently and force is false")
)

const (
	defaultDedupWindow = 10 * time.Minute
	defaultPollEvery   = 500 * time.Millisecond
)

// SiteRunner audits one site. *SiteAuditor implements it.
type SiteRunner interface {
	AuditSite(ctx context.Context, runID string, target entity.SiteTarget, extra ...repository.ReportSink) (*entity.SiteSummary, error)
}

// AuditManager defines the interface for submitting audits and checking
// their progress.
type AuditManager interface {
	Submit(ctx context.Context, target entity.SiteTarget, force bool) (string, error)
	Status(ctx context.Context, runID string) (*entity.AuditRun, error)
	// Run processes queued audits until ctx is cancelled.
	Run(ctx context.Context) error
}

// ManagerOptions tunes the background workers.
type ManagerOptions struct {
	Workers     int
	DedupWindow time.Duration
	PollEvery   time.Duration
}

type auditManagerUseCase struct {
	auditor SiteRunner
	runs    repository.AuditRunRepository
	queue   repository.AuditQueue
	recent  repository.RecentAuditRepository
	opts    ManagerOptions
	logger  *zap.Logger
}

// NewAuditManager creates a new AuditManager use case. recent may be nil to
// accept every submission.
func NewAuditManager(
	auditor SiteRunner,
	runs repository.AuditRunRepository,
	queue repository.AuditQueue,
	recent repository.RecentAuditRepository,
	opts ManagerOptions,
	logger *zap.Logger,
) AuditManager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = defaultDedupWindow
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = defaultPollEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditManagerUseCase{
		auditor: auditor,
		runs:    runs,
		queue:   queue,
		recent:  recent,
		opts:    opts,
		logger:  logger,
	}
}

func (uc *auditManagerUseCase) Submit(ctx context.Context, target entity.SiteTarget, force bool) (string, error) {
	site := utils.MustParseSite(target.Website)
	if site == nil || (site.Scheme != "http" && site.Scheme != "https") {
		return "", ErrInvalidTarget
	}
	key, err := utils.Normalize(nil, site.String())
	if err != nil {
		return "", ErrInvalidTarget
	}

	if uc.recent != nil {
		if force {
			if err := uc.recent.RemoveAudited(ctx, key); err != nil {
				uc.logger.Warn("failed to clear recent audit for forced run", zap.String("site", key), zap.Error(err))
			}
		} else {
			audited, err := uc.recent.IsAudited(ctx, key)
			if err != nil {
				return "", err
			}
			if audited {
				return "", ErrSiteRecentlyAudited
			}
		}
	}

	run := &entity.AuditRun{
		ID:          utils.NewRunID(),
		Target:      target,
		State:       entity.RunPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := uc.runs.Save(ctx, run); err != nil {
		return "", err
	}
	if err := uc.queue.Push(ctx, run.ID); err != nil {
		return "", err
	}

	if uc.recent != nil {
		if err := uc.recent.MarkAudited(ctx, key, uc.opts.DedupWindow); err != nil {
			// The run is queued; a duplicate submission may slip through.
			uc.logger.Error("failed to mark site as audited after queueing", zap.String("site", key), zap.Error(err))
		}
	}
	uc.logger.Info("audit submitted", zap.String("run_id", run.ID), zap.String("site", key), zap.Bool("force", force))
	return run.ID, nil
}

func (uc *auditManagerUseCase) Status(ctx context.Context, runID string) (*entity.AuditRun, error) {
	run, err := uc.runs.FindByID(ctx, runID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (uc *auditManagerUseCase) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < uc.opts.Workers; i++ {
		g.Go(func() error {
			uc.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (uc *auditManagerUseCase) work(ctx context.Context) {
	ticker := time.NewTicker(uc.opts.PollEvery)
	defer ticker.Stop()
	for {
		id, err := uc.queue.Pop(ctx)
		switch {
		case err == nil:
			uc.process(ctx, id)
			continue
		case errors.Is(err, repository.ErrQueueEmpty):
		case ctx.Err() != nil:
			return
		default:
			uc.logger.Warn("audit queue pop failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (uc *auditManagerUseCase) process(ctx context.Context, id string) {
	logger := uc.logger.With(zap.String("run_id", id))
	run, err := uc.runs.FindByID(ctx, id)
	if err != nil {
		logger.Error("queued run could not be loaded", zap.Error(err))
		return
	}
	run.State = entity.RunRunning
	if err := uc.runs.Save(ctx, run); err != nil {
		logger.Warn("failed to mark run as running", zap.Error(err))
	}

	summary, auditErr := uc.auditor.AuditSite(ctx, id, run.Target)
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Summary = summary
	run.State = entity.RunCompleted
	if auditErr != nil {
		run.State = entity.RunFailed
		run.Error = auditErr.Error()
		if uc.recent != nil {
			if key, err := utils.Normalize(nil, run.Target.Website); err == nil {
				if err := uc.recent.RemoveAudited(context.WithoutCancel(ctx), key); err != nil {
					logger.Warn("failed to clear recent audit after failure", zap.Error(err))
				}
			}
		}
	}
	if err := uc.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to store finished run", zap.Error(err))
		return
	}
	logger.Info("audit run finished", zap.String("state", string(run.State)))
}
