package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ServiceConfig holds configuration for the cache service.
type ServiceConfig struct {
	// L1MaxSize is the L1 entry-count bound.
	L1MaxSize int
	// L1CleanupInterval is how often expired L1 entries are swept.
	// Zero disables the sweep; lazy expiry on read still applies.
	L1CleanupInterval time.Duration
	// L2KeyPrefix namespaces all L2 keys and tag sets.
	L2KeyPrefix string
	// L2Timeout bounds every L2 round trip.
	L2Timeout time.Duration
	// TTLs maps data types to their default TTLs. Nil means the
	// built-in policy table.
	TTLs map[DataType]time.Duration
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		L1MaxSize:         DefaultL1MaxSize,
		L1CleanupInterval: time.Minute,
		L2KeyPrefix:       "leafwise:",
		L2Timeout:         DefaultL2Timeout,
		TTLs:              DefaultTTLs,
	}
}

// Service is the cache orchestrator. Reads check L1 first and fall
// through to L2, back-filling L1 on an L2 hit. Writes go to L2 first
// (source of truth) and only then to L1, so a local read never observes
// a value the shared tier rejected.
//
// Values are JSON-encoded once at this boundary and stored as bytes in
// both tiers. Each L1 view is per-instance: after a concurrent write
// elsewhere it may briefly serve the previous value until its TTL or
// the next L2-backed refresh, which is the documented staleness window.
type Service struct {
	l1  *MemoryStore
	l2  *RedisStore
	ttl map[DataType]time.Duration

	metrics *Metrics
	log     *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option adjusts a single Get/Set/Delete call.
type Option func(*callOptions)

type callOptions struct {
	ttlOverride time.Duration
	tags        []string
	skipL1      bool
}

// WithTTL overrides the policy-table TTL for one Set call.
func WithTTL(ttl time.Duration) Option {
	return func(o *callOptions) { o.ttlOverride = ttl }
}

// WithTags attaches invalidation tags to one Set call. Both tiers carry
// the same tags.
func WithTags(tags ...string) Option {
	return func(o *callOptions) { o.tags = tags }
}

// WithoutL1 bypasses the local tier for one call.
func WithoutL1() Option {
	return func(o *callOptions) { o.skipL1 = true }
}

// NewService builds the cache orchestrator and starts its L1 sweep
// loop. Call Close to stop it.
func NewService(client *redis.Client, cfg *ServiceConfig, log *logrus.Logger) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	ttls := cfg.TTLs
	if ttls == nil {
		ttls = DefaultTTLs
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		l1:      NewMemoryStore(cfg.L1MaxSize),
		l2:      NewRedisStore(client, cfg.L2KeyPrefix, cfg.L2Timeout, log),
		ttl:     ttls,
		metrics: NewMetrics(),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.L1CleanupInterval > 0 {
		go s.sweepLoop(cfg.L1CleanupInterval)
	}
	return s
}

// Get retrieves the value for key into dest and reports whether it was
// found. An L2 hit back-fills L1 with the remaining L2 TTL, or the
// type's default when the remaining TTL is unknown. Infrastructure and
// decode failures are absorbed as misses.
func (s *Service) Get(ctx context.Context, key string, typ DataType, dest any, opts ...Option) bool {
	start := time.Now()
	defer func() { s.metrics.ObserveRead(time.Since(start)) }()

	o := applyOptions(opts)

	if !o.skipL1 {
		if data, ok := s.l1.Get(key); ok {
			if err := json.Unmarshal(data, dest); err != nil {
				// Malformed local entry; drop it and retry via L2.
				s.log.WithError(err).WithField("key", key).Warn("l1 decode failed, evicting entry")
				s.l1.Delete(key)
			} else {
				s.metrics.Hit(typ)
				return true
			}
		}
	}

	data, remaining, found := s.l2.Get(ctx, key)
	if !found {
		s.metrics.Miss(typ)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("l2 decode failed, treating as miss")
		s.metrics.Miss(typ)
		return false
	}

	if !o.skipL1 {
		ttl := remaining
		if ttl <= 0 {
			ttl = s.ttl[typ]
		}
		s.l1.Set(key, data, ttl, nil)
	}

	s.metrics.Hit(typ)
	return true
}

// Set caches value under key. The effective TTL is the per-call
// override, or the policy table's default for typ. The L2 write happens
// first; L1 is only updated when it succeeds. Returns whether the value
// was cached — callers must treat false as "not cached", not an error.
func (s *Service) Set(ctx context.Context, key string, value any, typ DataType, opts ...Option) bool {
	start := time.Now()
	defer func() { s.metrics.ObserveWrite(time.Since(start)) }()

	o := applyOptions(opts)

	ttl := o.ttlOverride
	if ttl <= 0 {
		var ok bool
		if ttl, ok = s.ttl[typ]; !ok {
			s.log.WithField("type", typ).Error("unknown data type, refusing to cache")
			return false
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("value not serializable, skipping cache")
		return false
	}

	if !s.l2.Set(ctx, key, data, ttl, o.tags) {
		return false
	}
	if !o.skipL1 {
		s.l1.Set(key, data, ttl, o.tags)
	}
	return true
}

// Delete removes key from both tiers and reports whether the L2 delete
// affected a key. Deleting an absent key returns false without error.
func (s *Service) Delete(ctx context.Context, key string, opts ...Option) bool {
	o := applyOptions(opts)
	if !o.skipL1 {
		s.l1.Delete(key)
	}
	return s.l2.Delete(ctx, key)
}

// InvalidateByTags removes every entry carrying one of the given tags
// from both tiers. The returned count is L2's (the tag index's source
// of truth); the L1 scan count stands in when L2 removed nothing, which
// covers L2 outages.
func (s *Service) InvalidateByTags(ctx context.Context, tags ...string) int {
	l1Removed := s.l1.InvalidateByTags(tags)
	removed := s.l2.InvalidateByTags(ctx, tags)
	if removed == 0 {
		removed = l1Removed
	}
	s.metrics.Invalidations(removed)
	return removed
}

// WarmCache fetches fresh data for an entity and writes it through Set,
// tagged with entity:<id> and the data type. Fetcher failures are
// logged, never propagated.
func (s *Service) WarmCache(ctx context.Context, entityID string, typ DataType, fetcher Fetcher) bool {
	value, err := fetcher.Fetch(ctx, entityID)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"entity": entityID,
			"type":   typ,
		}).Warn("warm fetch failed")
		return false
	}
	if value == nil {
		return false
	}

	key := BuildKey(typ, entityID)
	return s.Set(ctx, key, value, typ, WithTags("entity:"+entityID, string(typ)))
}

// TTLFor returns the policy-table default TTL for a data type.
func (s *Service) TTLFor(typ DataType) (time.Duration, bool) {
	ttl, ok := s.ttl[typ]
	return ttl, ok
}

// Stats returns a point-in-time snapshot of cache health. Safe to call
// concurrently with traffic.
func (s *Service) Stats(ctx context.Context) Snapshot {
	size := s.l1.Len()
	capacity := s.l1.Capacity()

	utilization := 0.0
	if capacity > 0 {
		utilization = float64(size) / float64(capacity)
	}

	return Snapshot{
		L1Size:        size,
		L1Capacity:    capacity,
		L1Utilization: utilization,
		L2MemoryUsed:  s.l2.MemoryUsed(ctx),
		Hits:          s.metrics.Hits(),
		Misses:        s.metrics.Misses(),
		HitRate:       s.metrics.HitRate(),
		Evictions:     s.l1.Evictions(),
		Invalidations: atomic.LoadInt64(&s.metrics.invalidations),
		AvgReadTime:   s.metrics.AvgReadTime(),
		AvgWriteTime:  s.metrics.AvgWriteTime(),
		ByType:        s.metrics.typeStats(),
	}
}

// Ping reports whether the L2 tier is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.l2.Ping(ctx)
}

// Close stops the service's background sweep loop.
func (s *Service) Close() error {
	s.cancel()
	return nil
}

func (s *Service) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.l1.Sweep(); n > 0 {
				s.log.WithField("removed", n).Debug("l1 sweep reclaimed expired entries")
			}
		}
	}
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
