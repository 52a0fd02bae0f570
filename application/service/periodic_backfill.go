package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/internal/config"
)

// TenantLister finds tenants that still have images without embeddings.
type TenantLister interface {
	TenantsMissingEmbeddings(ctx context.Context) ([]string, error)
}

// PeriodicBackfill enqueues an embedding backfill for every tenant with
// unembedded images on a timer.
type PeriodicBackfill struct {
	tenants  TenantLister
	queue    *Queue
	logger   *slog.Logger
	interval time.Duration
	enabled  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicBackfill creates a new PeriodicBackfill from config and dependencies.
func NewPeriodicBackfill(
	cfg config.PeriodicBackfillConfig,
	tenants TenantLister,
	queue *Queue,
	logger *slog.Logger,
) *PeriodicBackfill {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodicBackfill{
		tenants:  tenants,
		queue:    queue,
		logger:   logger,
		interval: cfg.Interval(),
		enabled:  cfg.Enabled(),
	}
}

// Start begins periodic backfill in a background goroutine.
// If disabled, this is a no-op.
func (p *PeriodicBackfill) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic backfill disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic backfill started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicBackfill) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *PeriodicBackfill) run(ctx context.Context) {
	p.enqueue(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.enqueue(ctx)
		}
	}
}

func (p *PeriodicBackfill) enqueue(ctx context.Context) {
	tenants, err := p.tenants.TenantsMissingEmbeddings(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic backfill failed to find tenants", slog.String("error", err.Error()))
		return
	}

	for _, tenantID := range tenants {
		if err := p.queue.EnqueueBackfill(ctx, tenantID, task.PriorityBackground); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("periodic backfill failed to enqueue",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.logger.Debug("periodic backfill enqueued", slog.Int("count", len(tenants)))
}
