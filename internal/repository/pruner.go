package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PruneTarget is a store that can drop old generated assets.
type PruneTarget interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Pruner removes generated assets older than a retention window, on demand or
// on a cron schedule.
type Pruner struct {
	target PruneTarget
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPruner creates a pruner for target
func NewPruner(target PruneTarget, maxAge time.Duration, logger *zap.Logger) *Pruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{target: target, maxAge: maxAge, logger: logger.Named("pruner"), now: time.Now}
}

// Prune removes everything older than the retention window once
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.target.PruneBefore(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("failed to prune assets: %w", err)
	}
	p.logger.Info("pruned assets", zap.Int("removed", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// Start schedules Prune with a six-field (seconds first) cron spec. Runs never
// overlap; a run still in progress when the next one is due is skipped.
func (p *Pruner) Start(ctx context.Context, spec string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("pruner already started")
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled prune failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	c.Start()
	p.cron = c
	p.logger.Info("prune scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	p.logger.Info("prune scheduler stopped")
}
