package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks process-lifetime cache counters. All counters are
// updated atomically so a snapshot can be taken concurrently with
// ongoing traffic without locking the request path.
type Metrics struct {
	hits          int64
	misses        int64
	invalidations int64

	readTimeUs  int64
	writeTimeUs int64
	readCount   int64
	writeCount  int64

	mu     sync.RWMutex
	byType map[DataType]*typeCounters
}

type typeCounters struct {
	hits   int64
	misses int64
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{byType: make(map[DataType]*typeCounters)}
}

// Hit records a cache hit for the given data type.
func (m *Metrics) Hit(typ DataType) {
	atomic.AddInt64(&m.hits, 1)
	atomic.AddInt64(&m.forType(typ).hits, 1)
}

// Miss records a cache miss for the given data type.
func (m *Metrics) Miss(typ DataType) {
	atomic.AddInt64(&m.misses, 1)
	atomic.AddInt64(&m.forType(typ).misses, 1)
}

// Invalidations records n entries removed by tag invalidation.
func (m *Metrics) Invalidations(n int) {
	atomic.AddInt64(&m.invalidations, int64(n))
}

// ObserveRead adds one read's duration to the cumulative read time.
func (m *Metrics) ObserveRead(d time.Duration) {
	atomic.AddInt64(&m.readTimeUs, d.Microseconds())
	atomic.AddInt64(&m.readCount, 1)
}

// ObserveWrite adds one write's duration to the cumulative write time.
func (m *Metrics) ObserveWrite(d time.Duration) {
	atomic.AddInt64(&m.writeTimeUs, d.Microseconds())
	atomic.AddInt64(&m.writeCount, 1)
}

// Hits returns the total hit count.
func (m *Metrics) Hits() int64 { return atomic.LoadInt64(&m.hits) }

// Misses returns the total miss count.
func (m *Metrics) Misses() int64 { return atomic.LoadInt64(&m.misses) }

// HitRate returns hits/(hits+misses), or 0 before any traffic.
func (m *Metrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.hits)
	total := hits + atomic.LoadInt64(&m.misses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// AvgReadTime returns the mean read latency, or 0 before any reads.
func (m *Metrics) AvgReadTime() time.Duration {
	count := atomic.LoadInt64(&m.readCount)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.readTimeUs)/count) * time.Microsecond
}

// AvgWriteTime returns the mean write latency, or 0 before any writes.
func (m *Metrics) AvgWriteTime() time.Duration {
	count := atomic.LoadInt64(&m.writeCount)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.writeTimeUs)/count) * time.Microsecond
}

func (m *Metrics) forType(typ DataType) *typeCounters {
	m.mu.RLock()
	tc, ok := m.byType[typ]
	m.mu.RUnlock()
	if ok {
		return tc
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tc, ok = m.byType[typ]; !ok {
		tc = &typeCounters{}
		m.byType[typ] = tc
	}
	return tc
}

func (m *Metrics) typeStats() map[string]TypeStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]TypeStats, len(m.byType))
	for typ, tc := range m.byType {
		stats[string(typ)] = TypeStats{
			Hits:   atomic.LoadInt64(&tc.hits),
			Misses: atomic.LoadInt64(&tc.misses),
		}
	}
	return stats
}

// TypeStats is the per-data-type hit/miss breakdown in a snapshot.
type TypeStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Snapshot is a point-in-time, read-only view of cache health. Taking
// one never mutates state.
type Snapshot struct {
	L1Size        int           `json:"l1_size"`
	L1Capacity    int           `json:"l1_capacity"`
	L1Utilization float64       `json:"l1_utilization"`
	L2MemoryUsed  int64         `json:"l2_memory_used"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	HitRate       float64       `json:"hit_rate"`
	Evictions     int64         `json:"evictions"`
	Invalidations int64         `json:"invalidations"`
	AvgReadTime   time.Duration `json:"avg_read_time_ns"`
	AvgWriteTime  time.Duration `json:"avg_write_time_ns"`

	ByType map[string]TypeStats `json:"by_type"`
}
