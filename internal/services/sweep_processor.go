package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"billable/internal/log"
)

// Sweeper catches shards up with the journal.
type Sweeper interface {
	Sweep(ctx context.Context) (SweepReport, error)
}

// SweepProcessorConfig holds configuration for the sweep processor
type SweepProcessorConfig struct {
	// Interval is how often to sweep (default: 1h)
	Interval time.Duration
}

// DefaultSweepProcessorConfig returns sensible defaults
func DefaultSweepProcessorConfig() SweepProcessorConfig {
	return SweepProcessorConfig{Interval: time.Hour}
}

// SweepProcessor runs Sweep periodically so lazily propagated shards do
// not wait for their next read to catch up.
type SweepProcessor struct {
	sweeper Sweeper
	config  SweepProcessorConfig
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweepProcessor(sweeper Sweeper, config SweepProcessorConfig, logger *log.Logger) *SweepProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SweepProcessor{
		sweeper: sweeper,
		config:  config,
		logger:  logger.WithComponent(log.ComponentPropagation),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SweepProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sweep processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sweep processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for the running sweep.
func (p *SweepProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sweep processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sweep processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SweepProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SweepProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.sweepOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

func (p *SweepProcessor) sweepOnce(ctx context.Context) {
	report, err := p.sweeper.Sweep(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Sweep failed", log.FieldError, err, log.FieldOperation, log.OpCompact)
		return
	}
	p.logger.DebugContext(ctx, "Sweep completed",
		"months", report.Months,
		"rewritten", report.Rewritten,
		"compacted", report.Compacted)
}
