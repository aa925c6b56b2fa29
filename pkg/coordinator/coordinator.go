// Package coordinator routes memory requests to the five region stores and
// applies the cross-cutting policy: caching, bounded retries and bounded
// composite operations.
//
// A Coordinator owns one store per region and is created once per process.
// It holds no lock across regions, so callers working on different regions
// never wait on each other.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/cortex/internal/config"
	"github.com/harun/cortex/internal/maintenance"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
	"github.com/harun/cortex/pkg/memory/associative"
	"github.com/harun/cortex/pkg/memory/declarative"
	"github.com/harun/cortex/pkg/memory/emotional"
	"github.com/harun/cortex/pkg/memory/procedural"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "cortex/coordinator"

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("coordinator is closed")

// region is the runtime state of one configured region
type region struct {
	name  memory.Region
	cfg   config.RegionConfig
	store Store
	cache *lookaside // nil when reads are not memoized
}

// check reports whether the region serves op.
func (r *region) check(op memory.Operation) error {
	if op == memory.OpTraverse && r.name == memory.RegionAssociative {
		return nil
	}
	if !r.store.Supports(op) {
		return unsupported(r.name, op)
	}
	return nil
}

// Option configures a Coordinator
type Option func(*options)

type options struct {
	logger      zerolog.Logger
	stores      map[memory.Region]Store
	maintenance bool
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore replaces the store opened for region. The coordinator takes
// ownership and closes it on Close.
func WithStore(r memory.Region, s Store) Option {
	return func(o *options) {
		o.stores[r] = s
	}
}

// WithoutMaintenance disables the checkpoint schedule. Checkpoint still works.
func WithoutMaintenance() Option {
	return func(o *options) {
		o.maintenance = false
	}
}

// Coordinator is the single entry point into memory
type Coordinator struct {
	logger    zerolog.Logger
	regions   map[memory.Region]*region
	scheduler *maintenance.Scheduler

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and opens every region. Any failure closes the regions
// already opened.
func New(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, memory.InvalidConfigf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger:      zerolog.Nop(),
		stores:      make(map[memory.Region]Store),
		maintenance: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	for r := range o.stores {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %q", memory.ErrUnknownRegion, r)
		}
	}

	c := &Coordinator{
		logger:  o.logger.With().Str("component", "coordinator").Logger(),
		regions: make(map[memory.Region]*region, len(memory.Regions())),
	}

	scheduleExpr := cfg.Maintenance.CheckpointSchedule
	if !o.maintenance {
		scheduleExpr = ""
	}
	scheduler, err := maintenance.New(scheduleExpr, o.logger)
	if err != nil {
		return nil, err
	}
	c.scheduler = scheduler

	for _, name := range memory.Regions() {
		rc, _ := cfg.Region(name)
		rt, err := c.openRegion(cfg, name, rc, o)
		if err != nil {
			c.abort(o)
			return nil, fmt.Errorf("failed to open %s region: %w", name, err)
		}
		c.regions[name] = rt
		if cp, ok := rt.store.(checkpointer); ok {
			c.scheduler.Register(name, cp)
		}
	}

	if err := c.scheduler.Start(); err != nil {
		c.abort(o)
		return nil, err
	}

	c.logger.Info().Int("regions", len(c.regions)).Msg("Memory coordinator started")
	return c, nil
}

func (c *Coordinator) openRegion(cfg *config.Config, name memory.Region, rc config.RegionConfig, o *options) (*region, error) {
	store, injected := o.stores[name]
	if !injected {
		var err error
		store, err = openStore(cfg, name, rc, o.logger)
		if err != nil {
			return nil, err
		}
	}
	rt := &region{name: name, cfg: rc, store: store}

	// Working memory is itself the cache; graph reads always hit the store
	if !rc.CacheEnabled || !cacheable(name) {
		return rt, nil
	}

	release := func() {
		if !injected {
			store.Close()
		}
	}

	cache, err := newLookaside(name)
	if err != nil {
		release()
		return nil, err
	}
	rt.cache = cache

	if w, ok := store.(watcher); ok {
		if err := w.Watch(cache.invalidate); err != nil {
			cache.close()
			release()
			return nil, fmt.Errorf("failed to watch %s: %w", name, err)
		}
	}
	return rt, nil
}

// abort closes opened regions and any injected store not yet adopted.
func (c *Coordinator) abort(o *options) {
	c.closeRegions()
	for name, s := range o.stores {
		if _, adopted := c.regions[name]; !adopted {
			s.Close()
		}
	}
}

func cacheable(r memory.Region) bool {
	switch r {
	case memory.RegionDeclarative, memory.RegionProcedural, memory.RegionEmotional:
		return true
	}
	return false
}

func openStore(cfg *config.Config, name memory.Region, rc config.RegionConfig, logger zerolog.Logger) (Store, error) {
	if name == memory.RegionWorking {
		if rc.Capacity == nil {
			return nil, memory.InvalidConfigf("region %s: capacity is required", name)
		}
		return NewWorkingStore(*rc.Capacity)
	}

	path, err := cfg.StoragePath(name)
	if err != nil {
		return nil, err
	}

	switch name {
	case memory.RegionDeclarative:
		return NewDeclarativeStore(declarative.Config{Path: path, Logger: logger})
	case memory.RegionProcedural:
		return NewProceduralStore(procedural.Config{Dir: path, Logger: logger})
	case memory.RegionAssociative:
		return NewAssociativeStore(associative.Config{Path: path, Logger: logger})
	case memory.RegionEmotional:
		return NewEmotionalStore(emotional.Config{Path: path, Logger: logger})
	}
	return nil, fmt.Errorf("%w: %q", memory.ErrUnknownRegion, name)
}

func (c *Coordinator) checkOpen() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (c *Coordinator) region(name memory.Region) (*region, error) {
	rt, ok := c.regions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", memory.ErrUnknownRegion, name)
	}
	return rt, nil
}

// Execute runs one request against its region and returns a uniform result.
// Unknown regions and unsupported operations fail before any store is
// touched. Transient store failures are retried per the region's
// max_retry_limit; every other error is returned unmodified.
func (c *Coordinator) Execute(ctx context.Context, req memory.Request) (memory.Result, error) {
	if err := c.checkOpen(); err != nil {
		return memory.Result{}, err
	}
	rt, err := c.region(req.Region)
	if err != nil {
		return memory.Result{}, err
	}

	ctx = tracing.NewRequestContext(ctx, string(rt.name))
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.execute",
		attribute.String("memory.region", string(rt.name)),
		attribute.String("memory.op", string(req.Op)),
	)
	defer span.End()

	start := time.Now()
	res, err := c.dispatch(ctx, rt, req)
	elapsed := time.Since(start)

	observability.RecordOperation(string(rt.name), string(req.Op), elapsed, err == nil)
	tracing.RecordError(span, err)
	if audited.has(req.Op) {
		observability.RecordMemoryAudit(ctx, string(rt.name), string(req.Op), req.Key, err)
	}

	logger := tracing.LoggerFromContext(ctx, c.logger)
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		logger.Warn().Err(err).Str("op", string(req.Op)).Str("key", req.Key).Msg("Memory operation failed")
	} else {
		logger.Debug().Str("op", string(req.Op)).Str("key", req.Key).Dur("took", elapsed).Msg("Memory operation complete")
	}
	return res, err
}

func (c *Coordinator) dispatch(ctx context.Context, rt *region, req memory.Request) (memory.Result, error) {
	if err := rt.check(req.Op); err != nil {
		return memory.Result{}, err
	}
	if req.Op == memory.OpTraverse {
		return c.traverse(ctx, rt, req)
	}

	run := func(ctx context.Context) (memory.Result, error) {
		return c.attempt(ctx, rt, req)
	}

	if rt.cache != nil && req.Key != "" {
		switch {
		case cachedReads.has(req.Op):
			return rt.cache.read(ctx, req.Key, run)
		case keyedWrites.has(req.Op):
			return rt.cache.write(ctx, req.Key, run)
		}
	}
	return run(ctx)
}

// CacheEnabled reports the region's cache_enabled flag.
func (c *Coordinator) CacheEnabled(r memory.Region) (bool, error) {
	rt, err := c.region(r)
	if err != nil {
		return false, err
	}
	return rt.cfg.CacheEnabled, nil
}

// Checkpoint runs store maintenance for every durable region now.
func (c *Coordinator) Checkpoint(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.scheduler.RunOnce(ctx)
}

// Close stops maintenance and closes every store. Further calls fail with
// ErrClosed; closing twice returns the first result.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.scheduler.Stop()
		c.closeErr = c.closeRegions()
		c.logger.Info().Msg("Memory coordinator stopped")
	})
	return c.closeErr
}

func (c *Coordinator) closeRegions() error {
	var errs []error
	for _, name := range memory.Regions() {
		rt, ok := c.regions[name]
		if !ok {
			continue
		}
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		if rt.cache != nil {
			rt.cache.close()
		}
	}
	return errors.Join(errs...)
}
