package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/go-logr/logr"

	"github.com/devzero-inc/cephfs-exporter/internal/asok"
	"github.com/devzero-inc/cephfs-exporter/internal/metrics"
	"github.com/devzero-inc/cephfs-exporter/internal/volumeindex"
)

// Unknown is used for namespace and pod when a session cannot be joined.
const Unknown = "unknown"

var defaultWarnTTL = 5 * time.Minute

// IndexReader resolves subvolume paths to pod identity.
type IndexReader interface {
	Lookup(path string) (volumeindex.Entry, bool)
}

// JoinWarning reports a session whose subvolume path is not (yet) in the
// volume index. The session is still published under Unknown labels.
type JoinWarning struct {
	Root    string
	Address string

	// Node is set when an entry exists but is bound to another node.
	Node string
}

func (w *JoinWarning) Error() string {
	if w.Node != "" {
		return fmt.Sprintf("volume %s is mounted from %s but indexed on node %s", w.Root, w.Address, w.Node)
	}
	return fmt.Sprintf("no volume index entry for %s", w.Root)
}

// Config holds configuration for the Reconciler
type Config struct {
	// MatchNode also requires the indexed pod's host IP to equal the session address.
	MatchNode bool

	// WarnTTL suppresses repeated join warnings for the same target and path.
	WarnTTL time.Duration
}

// Summary counts what one Reconcile call did.
type Summary struct {
	Updated   int
	Unmatched int
	Skipped   int
}

// Reconciler joins sessions with the volume index and updates session gauges.
type Reconciler struct {
	cfg     Config
	index   IndexReader
	gauges  *GaugeStore
	metrics *metrics.Metrics
	logger  logr.Logger
	warned  *cache.Cache[string, struct{}]
}

// New creates a Reconciler. m may be nil. The warning cache janitor stops
// when ctx is done.
func New(ctx context.Context, cfg Config, index IndexReader, gauges *GaugeStore, m *metrics.Metrics, logger logr.Logger) *Reconciler {
	if cfg.WarnTTL <= 0 {
		cfg.WarnTTL = defaultWarnTTL
	}
	return &Reconciler{
		cfg:     cfg,
		index:   index,
		gauges:  gauges,
		metrics: m,
		logger:  logger.WithName("reconciler"),
		warned:  cache.NewContext[string, struct{}](ctx),
	}
}

// Reconcile publishes every session read from target. A session that
// cannot be parsed is skipped without affecting the others.
func (r *Reconciler) Reconcile(target string, sessions []asok.Session) Summary {
	var sum Summary
	for _, s := range sessions {
		_, err := r.ReconcileSession(s)

		var jw *JoinWarning
		switch {
		case err == nil:
			sum.Updated++
		case errors.As(err, &jw):
			sum.Updated++
			sum.Unmatched++
			r.warn(target, s, jw)
		default:
			sum.Skipped++
			r.logger.Error(err, "Skipping session", "target", target, "root", s.Root)
		}
	}
	return sum
}

// ReconcileSession derives the label key for s and applies its counters.
// A *JoinWarning is returned alongside a valid key when the pod is unknown.
// Once a session joins, the series it was published under while unknown is
// dropped so the session is exposed only once.
func (r *Reconciler) ReconcileSession(s asok.Session) (LabelKey, error) {
	inst, err := ParseInstance(s.Inst)
	if err != nil {
		return LabelKey{}, err
	}

	key := LabelKey{
		Address:    inst.Address,
		ClientID:   inst.ClientID,
		Identifier: inst.Identifier,
		Volume:     s.Root,
		Namespace:  Unknown,
		Pod:        Unknown,
	}

	var joinErr error
	entry, ok := r.index.Lookup(s.Root)
	switch {
	case !ok:
		joinErr = &JoinWarning{Root: s.Root, Address: inst.Address}
	case r.cfg.MatchNode && !sameAddress(entry.Node, inst.Address):
		joinErr = &JoinWarning{Root: s.Root, Address: inst.Address, Node: entry.Node}
	default:
		r.gauges.Delete(key)
		key.Namespace = entry.Namespace
		key.Pod = entry.Name
	}

	r.gauges.Observe(key, Values{
		Flushes:   float64(s.NumCompletedFlushes),
		Completed: float64(s.NumCompletedRequests),
		InFlight:  float64(s.RequestsInFlight),
	})
	return key, joinErr
}

func (r *Reconciler) warn(target string, s asok.Session, jw *JoinWarning) {
	if r.metrics != nil {
		r.metrics.JoinMisses.WithLabelValues(target).Inc()
	}

	k := target + "\x00" + jw.Root
	if _, seen := r.warned.Get(k); seen {
		return
	}
	r.warned.Set(k, struct{}{}, cache.WithExpiration(r.cfg.WarnTTL))

	keysAndValues := []any{"target", target, "root", jw.Root, "address", jw.Address, "reason", jw.Error()}
	if host := s.Metadata["hostname"]; host != "" {
		keysAndValues = append(keysAndValues, "hostname", host)
	}
	r.logger.Info("Session not in volume index yet, publishing with unknown pod", keysAndValues...)
}
