package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher recomputes the value for one entity, e.g. "rebuild this care
// plan" or "look up this plant's environmental context". Implementations
// must be idempotent; a nil value with a nil error means "nothing to
// cache".
type Fetcher interface {
	Fetch(ctx context.Context, entityID string) (any, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, entityID string) (any, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, entityID string) (any, error) {
	return f(ctx, entityID)
}

// ActiveEntities supplies the entity IDs worth keeping warm, e.g. the
// plants with recent traffic. Called once per warming cycle.
type ActiveEntities func(ctx context.Context) []string

// WarmerConfig holds configuration for the warming scheduler.
type WarmerConfig struct {
	// Interval between warming cycles.
	Interval time.Duration
	// Delay between consecutive fetches, bounding load on upstream
	// data sources.
	Delay time.Duration
}

// DefaultWarmerConfig returns the production defaults.
func DefaultWarmerConfig() *WarmerConfig {
	return &WarmerConfig{
		Interval: 5 * time.Minute,
		Delay:    100 * time.Millisecond,
	}
}

// Warmer proactively refreshes cache entries for active entities,
// independent of request traffic. One failing entity never aborts the
// cycle; it is logged and skipped.
type Warmer struct {
	cache  *Service
	active ActiveEntities
	config *WarmerConfig
	log    *logrus.Logger

	mu       sync.RWMutex
	fetchers map[DataType]Fetcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWarmer creates a warming scheduler over the given cache service.
func NewWarmer(cache *Service, active ActiveEntities, config *WarmerConfig, log *logrus.Logger) *Warmer {
	if config == nil {
		config = DefaultWarmerConfig()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Warmer{
		cache:    cache,
		active:   active,
		config:   config,
		log:      log,
		fetchers: make(map[DataType]Fetcher),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a fetcher for a data type. Each warming cycle invokes
// every registered fetcher for every active entity.
func (w *Warmer) Register(typ DataType, fetcher Fetcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fetchers[typ] = fetcher
}

// Start launches the background warming loop.
func (w *Warmer) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop cancels the loop and waits for the current cycle to finish.
func (w *Warmer) Stop() {
	w.cancel()
	w.wg.Wait()
}

// RunOnce executes a single warming cycle synchronously and returns the
// number of entries successfully warmed.
func (w *Warmer) RunOnce(ctx context.Context) int {
	ids := w.active(ctx)

	w.mu.RLock()
	fetchers := make(map[DataType]Fetcher, len(w.fetchers))
	for typ, f := range w.fetchers {
		fetchers[typ] = f
	}
	w.mu.RUnlock()

	warmed := 0
	for _, id := range ids {
		for typ, fetcher := range fetchers {
			if w.cache.WarmCache(ctx, id, typ, fetcher) {
				warmed++
			}
			if !w.pause(ctx) {
				return warmed
			}
		}
	}
	return warmed
}

func (w *Warmer) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			warmed := w.RunOnce(w.ctx)
			w.log.WithField("warmed", warmed).Debug("warming cycle finished")
		}
	}
}

// pause waits the inter-call delay; returns false when the context is
// cancelled mid-cycle.
func (w *Warmer) pause(ctx context.Context) bool {
	if w.config.Delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(w.config.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
