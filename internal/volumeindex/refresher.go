package volumeindex

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/devzero-inc/cephfs-exporter/internal/metrics"
)

// Refresh cadence by index size. Larger clusters are listed less often.
const (
	ShortInterval  = 60 * time.Second
	MediumInterval = 120 * time.Second
	LongInterval   = 300 * time.Second
)

// IntervalFor returns the sleep between refresh cycles for an index with
// the given number of entries. A positive override wins.
func IntervalFor(entries int, override time.Duration) time.Duration {
	switch {
	case override > 0:
		return override
	case entries < 1000:
		return ShortInterval
	case entries < 5000:
		return MediumInterval
	default:
		return LongInterval
	}
}

// MappingBuilder produces a complete Mapping from cluster state.
type MappingBuilder interface {
	Build(ctx context.Context) (Mapping, error)
}

// RefresherConfig holds configuration for the background refresher
type RefresherConfig struct {
	CacheFile     string
	Interval      time.Duration
	APITimeout    time.Duration
	RestartPeriod time.Duration
}

// Refresher keeps the Store current for the lifetime of the process.
type Refresher struct {
	cfg     RefresherConfig
	builder MappingBuilder
	store   *Store
	metrics *metrics.Metrics
	logger  logr.Logger
	started atomic.Bool
}

// NewRefresher creates a Refresher. m may be nil.
func NewRefresher(cfg RefresherConfig, builder MappingBuilder, store *Store, m *metrics.Metrics, logger logr.Logger) *Refresher {
	if cfg.RestartPeriod <= 0 {
		cfg.RestartPeriod = time.Second
	}
	return &Refresher{
		cfg:     cfg,
		builder: builder,
		store:   store,
		metrics: m,
		logger:  logger.WithName("volume-index"),
	}
}

// WarmStart seeds the store from the cache file so scrapes arriving before
// the first refresh can still resolve pods.
func (r *Refresher) WarmStart() error {
	if r.cfg.CacheFile == "" {
		return nil
	}
	m, err := LoadFile(r.cfg.CacheFile)
	if err != nil {
		r.logger.Error(err, "Couldn't load volume index from cache file, starting empty")
		return err
	}
	r.publish(m)
	r.logger.Info("Loaded volume index from cache file", "path", r.cfg.CacheFile, "entries", len(m))
	return nil
}

// Started reports whether the index has been warm started or at least one
// refresh cycle has finished, successfully or not. A cluster API that stays
// unreachable must not hold the process in startup forever.
func (r *Refresher) Started() bool {
	return r.started.Load() || r.store.Ready()
}

// Run refreshes until ctx is cancelled. A panicking cycle is logged and the
// loop restarted after RestartPeriod.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Starting volume index refresher")
	wait.UntilWithContext(ctx, r.supervise, r.cfg.RestartPeriod)
	r.logger.Info("Volume index refresher stopped")
}

func (r *Refresher) supervise(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(fmt.Errorf("%v", rec), "Volume index refresher panicked, restarting", "after", r.cfg.RestartPeriod)
			if r.metrics != nil {
				r.metrics.IndexRefreshErrors.Inc()
			}
		}
	}()

	for {
		interval := r.RefreshOnce(ctx)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RefreshOnce runs one build-and-swap cycle and returns the interval to
// wait before the next one. On failure the published mapping is kept.
func (r *Refresher) RefreshOnce(ctx context.Context) time.Duration {
	if r.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.APITimeout)
		defer cancel()
	}
	defer r.started.Store(true)

	start := time.Now()
	m, err := r.builder.Build(ctx)
	if err != nil {
		interval := IntervalFor(r.store.Len(), r.cfg.Interval)
		keysAndValues := []any{"entries", r.store.Len(), "retry_in", interval}
		if built := r.store.BuiltAt(); !built.IsZero() {
			keysAndValues = append(keysAndValues, "index_age", time.Since(built).Round(time.Second))
		}
		r.logger.Error(err, "Volume index refresh failed, keeping previous mapping", keysAndValues...)
		if r.metrics != nil {
			r.metrics.IndexRefreshErrors.Inc()
		}
		return interval
	}

	r.publish(m)
	if r.metrics != nil {
		r.metrics.IndexLastRefresh.SetToCurrentTime()
	}

	if r.cfg.CacheFile != "" {
		if err := SaveFile(r.cfg.CacheFile, m); err != nil {
			r.logger.Error(err, "Failed to write volume index cache file", "path", r.cfg.CacheFile)
		}
	}

	interval := IntervalFor(len(m), r.cfg.Interval)
	r.logger.Info("Refreshed volume index",
		"entries", len(m),
		"duration", time.Since(start),
		"interval", interval)
	return interval
}

func (r *Refresher) publish(m Mapping) {
	r.store.Swap(m)
	if r.metrics != nil {
		r.metrics.IndexEntries.Set(float64(len(m)))
	}
}
