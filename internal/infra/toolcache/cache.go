package toolcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/hashutil"
	"lokkagw/internal/infra/mcpcodec"
	"lokkagw/internal/infra/telemetry"
	"lokkagw/internal/infra/transport"
)

const toolsListMethod = "tools/list"

// Cache holds the most recent tool catalog fetched from the child.
type Cache struct {
	caller  domain.Caller
	logger  *zap.Logger
	metrics domain.Metrics
	gate    *transport.Gate
	now     func() time.Time

	ttl     atomic.Int64
	seq     atomic.Uint64
	current atomic.Pointer[domain.ToolCatalogSnapshot]
}

type Options struct {
	Caller  domain.Caller
	Logger  *zap.Logger
	Metrics domain.Metrics
	TTL     time.Duration
	// Now overrides the clock used for fetch timestamps and expiry.
	Now func() time.Time
}

func New(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Cache{
		caller:  opts.Caller,
		logger:  logger.Named("toolcache"),
		metrics: metrics,
		gate:    transport.NewGate(),
		now:     now,
	}
	c.SetTTL(opts.TTL)
	c.current.Store(&domain.ToolCatalogSnapshot{})
	return c
}

// Get returns the catalog, refreshing it first when forced, empty, or older
// than the TTL. A failed refresh keeps the previous snapshot, which is
// returned alongside the error.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (domain.ToolCatalogSnapshot, error) {
	if !forceRefresh {
		if snap := c.Snapshot(); c.fresh(snap) {
			return snap, nil
		}
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return c.Snapshot(), err
	}
	defer c.gate.Release()

	// Another caller may have refreshed while this one waited.
	if !forceRefresh {
		if snap := c.Snapshot(); c.fresh(snap) {
			return snap, nil
		}
	}
	return c.refresh(ctx)
}

// Snapshot returns the current catalog without refreshing.
func (c *Cache) Snapshot() domain.ToolCatalogSnapshot {
	return *c.current.Load()
}

// Lookup finds a tool in the current snapshot. It never refreshes.
func (c *Cache) Lookup(name string) (domain.ToolDescriptor, error) {
	return c.Snapshot().Lookup(name)
}

// SetTTL changes the expiry window; non-positive values restore the default.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Duration(domain.DefaultCacheTTLMinutes) * time.Minute
	}
	c.ttl.Store(int64(ttl))
}

func (c *Cache) TTL() time.Duration {
	return time.Duration(c.ttl.Load())
}

func (c *Cache) fresh(snap domain.ToolCatalogSnapshot) bool {
	if snap.Empty() {
		return false
	}
	return snap.Age(c.now()) <= c.TTL()
}

func (c *Cache) refresh(ctx context.Context) (domain.ToolCatalogSnapshot, error) {
	started := time.Now()
	snap, skipped, err := c.fetch(ctx)
	duration := time.Since(started)
	c.metrics.ObserveCatalogRefresh(err, duration)

	logger := telemetry.LoggerWithRequest(ctx, c.logger)
	if err != nil {
		previous := c.Snapshot()
		logger.Warn("tool catalog refresh failed",
			telemetry.EventField(telemetry.EventCatalogFailure),
			zap.Int("cachedTools", previous.Count()),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		return previous, err
	}

	previous := c.current.Swap(&snap)
	c.metrics.SetCatalogTools(snap.Count())
	fields := []zap.Field{
		telemetry.EventField(telemetry.EventCatalogRefresh),
		zap.Int("tools", snap.Count()),
		zap.Bool("changed", previous == nil || previous.ETag != snap.ETag),
		telemetry.DurationField(duration),
	}
	if skipped > 0 {
		fields = append(fields, zap.Int("skipped", skipped))
	}
	logger.Info("tool catalog refreshed", fields...)
	return snap, nil
}

func (c *Cache) fetch(ctx context.Context) (domain.ToolCatalogSnapshot, int, error) {
	if c.caller == nil {
		return domain.ToolCatalogSnapshot{}, 0, fmt.Errorf("list tools: %w", domain.ErrNotReady)
	}
	id := fmt.Sprintf("tools-list-%d", c.seq.Add(1))
	payload, err := mcpcodec.EncodeRequest(id, toolsListMethod, nil)
	if err != nil {
		return domain.ToolCatalogSnapshot{}, 0, err
	}
	raw, err := c.caller.Call(ctx, payload)
	if err != nil {
		return domain.ToolCatalogSnapshot{}, 0, fmt.Errorf("list tools: %w", err)
	}
	result, err := mcpcodec.ResponseResult(raw)
	if err != nil {
		return domain.ToolCatalogSnapshot{}, 0, fmt.Errorf("list tools: %w", err)
	}
	list, err := mcpcodec.DecodeToolList(result)
	if err != nil {
		return domain.ToolCatalogSnapshot{}, 0, fmt.Errorf("list tools: %w", err)
	}
	return domain.ToolCatalogSnapshot{
		Tools:     list.Tools,
		FetchedAt: c.now(),
		ETag:      hashutil.ToolCatalogETag(c.logger, list.Tools),
	}, list.Skipped, nil
}
