// Package maintenance runs periodic store checkpoints on a cron schedule.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Checkpointer is a store with a maintenance hook
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Scheduler runs every registered checkpointer on one schedule
type Scheduler struct {
	expr   string
	logger zerolog.Logger

	mu      sync.Mutex
	targets map[memory.Region]Checkpointer
	cron    *cron.Cron
	running bool
	runMu   sync.Mutex
}

// New creates a scheduler for a standard cron expression or descriptor.
// An empty expression yields a scheduler that only runs on RunOnce.
func New(expr string, logger zerolog.Logger) (*Scheduler, error) {
	if expr != "" {
		if _, err := cron.ParseStandard(expr); err != nil {
			return nil, memory.InvalidConfigf("invalid checkpoint schedule %q: %v", expr, err)
		}
	}
	return &Scheduler{
		expr:    expr,
		logger:  logger.With().Str("component", "maintenance").Logger(),
		targets: make(map[memory.Region]Checkpointer),
	}, nil
}

// Register adds a region's store. Registering a region twice replaces it.
func (s *Scheduler) Register(region memory.Region, c Checkpointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[region] = c
}

// Start begins scheduled runs. It is a no-op without a schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.expr == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.expr, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled checkpoint failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule checkpoints: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Debug().Str("schedule", s.expr).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running checkpoint to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce checkpoints every registered region in region order. All regions
// are attempted; failures are joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	regions := make([]memory.Region, 0, len(s.targets))
	for r := range s.targets {
		regions = append(regions, r)
	}
	targets := make(map[memory.Region]Checkpointer, len(s.targets))
	for r, c := range s.targets {
		targets[r] = c
	}
	s.mu.Unlock()

	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })

	var errs []error
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		rctx, span := tracing.StartSpan(ctx, "cortex/maintenance", "memory.checkpoint",
			attribute.String("memory.region", string(region)))
		start := time.Now()
		err := targets[region].Checkpoint(rctx)
		observability.RecordCheckpoint(string(region), time.Since(start), err == nil)
		tracing.RecordError(span, err)
		span.End()

		logger := tracing.LoggerFromContext(rctx, s.logger)
		if err != nil {
			logger.Warn().Err(err).Str("region", string(region)).Msg("Checkpoint failed")
			errs = append(errs, fmt.Errorf("checkpoint %s: %w", region, err))
			continue
		}
		logger.Debug().Str("region", string(region)).Dur("took", time.Since(start)).Msg("Checkpoint complete")
	}
	return errors.Join(errs...)
}
