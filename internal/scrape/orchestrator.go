package scrape

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/devzero-inc/cephfs-exporter/internal/asok"
	"github.com/devzero-inc/cephfs-exporter/internal/metrics"
	"github.com/devzero-inc/cephfs-exporter/internal/reconciler"
)

// StatsReader returns the raw "client ls" response of an admin socket.
type StatsReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// SessionReconciler publishes parsed sessions for one target.
type SessionReconciler interface {
	Reconcile(target string, sessions []asok.Session) reconciler.Summary
}

// TargetResult is the outcome of one target within a scrape.
type TargetResult struct {
	Target   string
	Sessions int
	Summary  reconciler.Summary
	Duration time.Duration
	Err      error
}

// Report collects the per-target results of one scrape.
type Report struct {
	Results []TargetResult
}

// Failed returns the number of targets that contributed no sessions because of an error.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// AllFailed reports whether every configured target failed.
func (r Report) AllFailed() bool {
	return len(r.Results) > 0 && r.Failed() == len(r.Results)
}

// Orchestrator runs one read-parse-reconcile pass per target, concurrently.
type Orchestrator struct {
	targets    []string
	reader     StatsReader
	reconciler SessionReconciler
	metrics    *metrics.Metrics
	logger     logr.Logger
}

// NewOrchestrator creates an Orchestrator. m may be nil.
func NewOrchestrator(targets []string, reader StatsReader, rec SessionReconciler, m *metrics.Metrics, logger logr.Logger) *Orchestrator {
	return &Orchestrator{
		targets:    targets,
		reader:     reader,
		reconciler: rec,
		metrics:    m,
		logger:     logger.WithName("scrape"),
	}
}

// Scrape reads every target and waits for all of them. Target failures are
// isolated and logged; they never fail the scrape as a whole.
func (o *Orchestrator) Scrape(ctx context.Context) Report {
	results := make([]TargetResult, len(o.targets))

	var g errgroup.Group
	for i, target := range o.targets {
		g.Go(func() error {
			results[i] = o.scrapeTarget(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Results: results}
	if report.AllFailed() {
		o.logger.Info("All admin sockets failed, serving previous gauge state", "targets", len(o.targets))
	}
	return report
}

func (o *Orchestrator) scrapeTarget(ctx context.Context, target string) (res TargetResult) {
	start := time.Now()
	res.Target = target
	defer func() {
		res.Duration = time.Since(start)
		o.record(res)
	}()

	payload, err := o.reader.Read(ctx, target)
	if err != nil {
		res.Err = err
		o.logger.Error(err, "Failed to read admin socket", "target", target)
		return res
	}

	sessions, err := asok.ParseClientList(payload)
	if err != nil {
		res.Err = err
		o.logger.Error(err, "Failed to parse admin socket response", "target", target, "bytes", len(payload))
		return res
	}

	res.Sessions = len(sessions)
	res.Summary = o.reconciler.Reconcile(target, sessions)
	o.logger.V(1).Info("Scraped admin socket",
		"target", target,
		"sessions", res.Sessions,
		"unmatched", res.Summary.Unmatched,
		"skipped", res.Summary.Skipped)
	return res
}

func (o *Orchestrator) record(res TargetResult) {
	if o.metrics == nil {
		return
	}
	up := 1.0
	if res.Err != nil {
		up = 0
	}
	o.metrics.TargetUp.WithLabelValues(res.Target).Set(up)
	o.metrics.TargetSessions.WithLabelValues(res.Target).Set(float64(res.Sessions))
	o.metrics.ScrapeDuration.WithLabelValues(res.Target).Set(res.Duration.Seconds())
}
