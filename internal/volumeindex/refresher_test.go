package volumeindex

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/devzero-inc/cephfs-exporter/internal/metrics"
)

type stubBuilder struct {
	mu    sync.Mutex
	calls int
	build func(call int) (Mapping, error)
}

func (b *stubBuilder) Build(ctx context.Context) (Mapping, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.mu.Unlock()
	return b.build(call)
}

func (b *stubBuilder) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestIntervalFor(t *testing.T) {
	tests := []struct {
		entries  int
		override time.Duration
		expected time.Duration
	}{
		{0, 0, ShortInterval},
		{999, 0, ShortInterval},
		{1000, 0, MediumInterval},
		{4999, 0, MediumInterval},
		{5000, 0, LongInterval},
		{100000, 0, LongInterval},
		{100000, 15 * time.Second, 15 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, IntervalFor(tt.entries, tt.override), "entries=%d override=%s", tt.entries, tt.override)
	}
}

func TestRefresher_RefreshOnce(t *testing.T) {
	logger := zapr.NewLogger(zaptest.NewLogger(t))
	cacheFile := filepath.Join(t.TempDir(), "ocpinfo")
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	good := Mapping{"/volumes/a": {SubvolumePath: "/volumes/a", Namespace: "ns", Name: "pod-a"}}
	builder := &stubBuilder{build: func(call int) (Mapping, error) {
		if call == 2 {
			return nil, &ClusterAPIError{Resource: "pods", Err: errors.New("timeout")}
		}
		return good, nil
	}}

	store := NewStore()
	r := NewRefresher(RefresherConfig{CacheFile: cacheFile}, builder, store, m, logger)

	assert.Equal(t, ShortInterval, r.RefreshOnce(context.Background()))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexEntries))

	onDisk, err := LoadFile(cacheFile)
	require.NoError(t, err)
	assert.Equal(t, good, onDisk)

	// A failed cycle keeps the last good mapping.
	assert.Equal(t, ShortInterval, r.RefreshOnce(context.Background()))
	entry, ok := store.Lookup("/volumes/a")
	require.True(t, ok)
	assert.Equal(t, "pod-a", entry.Name)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexRefreshErrors))
}

func TestRefresher_WarmStart(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "ocpinfo")
	require.NoError(t, SaveFile(cacheFile, Mapping{"/volumes/a": {SubvolumePath: "/volumes/a", Name: "pod-a"}}))

	store := NewStore()
	r := NewRefresher(RefresherConfig{CacheFile: cacheFile}, &stubBuilder{}, store, nil, logr.Discard())
	require.NoError(t, r.WarmStart())
	assert.True(t, store.Ready())
	assert.Equal(t, 1, store.Len())

	assert.True(t, r.Started())

	missing := NewRefresher(RefresherConfig{CacheFile: cacheFile + ".missing"}, &stubBuilder{}, NewStore(), nil, logr.Discard())
	var cacheErr *CacheReadError
	assert.True(t, errors.As(missing.WarmStart(), &cacheErr))
	assert.False(t, missing.Started())
}

func TestRefresher_StartedWhenClusterUnreachable(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	builder := &stubBuilder{build: func(int) (Mapping, error) {
		return nil, &ClusterAPIError{Resource: "persistentvolumes", Err: errors.New("forbidden")}
	}}

	store := NewStore()
	r := NewRefresher(RefresherConfig{CacheFile: filepath.Join(t.TempDir(), "missing")}, builder, store, m, logr.Discard())
	assert.Error(t, r.WarmStart())
	assert.False(t, r.Started())

	for range 5 {
		r.RefreshOnce(context.Background())
	}
	assert.True(t, r.Started())
	assert.False(t, store.Ready())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, float64(5), testutil.ToFloat64(m.IndexRefreshErrors))
}

func TestRefresher_RestartsAfterPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builder := &stubBuilder{build: func(call int) (Mapping, error) {
		if call == 1 {
			panic("unexpected nil volume")
		}
		return Mapping{"/volumes/a": {SubvolumePath: "/volumes/a"}}, nil
	}}

	store := NewStore()
	r := NewRefresher(RefresherConfig{RestartPeriod: 10 * time.Millisecond}, builder, store, nil, zapr.NewLogger(zaptest.NewLogger(t)))

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, store.Ready, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, builder.Calls(), 2)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}
