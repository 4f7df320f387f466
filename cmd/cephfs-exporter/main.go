package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/devzero-inc/cephfs-exporter/internal/asok"
	"github.com/devzero-inc/cephfs-exporter/internal/metrics"
	"github.com/devzero-inc/cephfs-exporter/internal/reconciler"
	"github.com/devzero-inc/cephfs-exporter/internal/scrape"
	"github.com/devzero-inc/cephfs-exporter/internal/server"
	"github.com/devzero-inc/cephfs-exporter/internal/util"
	"github.com/devzero-inc/cephfs-exporter/internal/version"
	"github.com/devzero-inc/cephfs-exporter/internal/volumeindex"
)

const metricsNamespace = "cephfs_exporter"

func main() {
	defaults := util.DefaultConfig()
	asokList := flag.String("asok", "", "Comma-separated ceph client admin socket paths.")
	apiInterval := flag.Duration("api-interval", 0, "Volume index refresh interval. Zero picks one from the index size.")
	kubeconfig := flag.String("kubeconfig", "", "Path to a kubeconfig. Only required if out-of-cluster.")
	listen := flag.String("listen", defaults.Listen, "Host the metrics endpoint binds to.")
	port := flag.Int("port", defaults.Port, "Port the metrics endpoint binds to.")
	cacheFile := flag.String("cache-file", defaults.CacheFile, "File the volume index is persisted to.")
	csiDriver := flag.String("csi-driver", defaults.CSIDriver, "Substring matched against persistent volume CSI driver names.")
	scrapeTimeout := flag.Duration("scrape-timeout", defaults.ScrapeTimeout, "Deadline for reading one admin socket.")
	apiTimeout := flag.Duration("api-timeout", defaults.APITimeout, "Deadline for one volume index refresh.")
	matchNode := flag.Bool("match-node", false, "Only join sessions to pods scheduled on the session's host.")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error.")
	logDev := flag.Bool("log-development", false, "Use the human readable development log encoder.")
	flag.Parse()
	explicit := util.ExplicitFlags(flag.CommandLine)

	if v := os.Getenv("LOG_LEVEL"); v != "" && !explicit["log-level"] {
		*logLevel = v
	}
	logger, flush, err := util.SetupLogger(*logLevel, *logDev || (!explicit["log-development"] && os.Getenv("LOG_DEVELOPMENT") == "true"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	cfg := defaults
	cfg.Targets = util.ParseCommaList(*asokList)
	cfg.APIInterval = *apiInterval
	cfg.Kubeconfig = *kubeconfig
	cfg.Listen = *listen
	cfg.Port = *port
	cfg.CacheFile = *cacheFile
	cfg.CSIDriver = *csiDriver
	cfg.ScrapeTimeout = *scrapeTimeout
	cfg.APITimeout = *apiTimeout
	cfg.MatchNode = *matchNode
	cfg.LogLevel = *logLevel
	cfg = util.LoadEnvConfig(cfg, explicit, logger)

	if err := cfg.Validate(); err != nil {
		logger.Error(err, "Invalid configuration")
		os.Exit(1)
	}

	info := version.Get()
	logger.Info("Starting cephfs-exporter", info.KeysAndValues()...)

	if err := run(cfg, logger); err != nil {
		logger.Error(err, "Exporter failed")
		flush()
		os.Exit(1)
	}
}

func run(cfg util.Config, logger logr.Logger) error {
	// 1. Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(metricsNamespace, reg)
	info := version.Get()
	m.BuildInfo.WithLabelValues(info.String(), info.GitCommit, info.GoVersion).Set(1)

	// 2. K8s client
	restCfg, err := getKubeConfig(cfg.Kubeconfig)
	if err != nil {
		return fmt.Errorf("get kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("create k8s client: %w", err)
	}

	// 3. Volume index, warm started from the cache file
	store := volumeindex.NewStore()
	refresher := volumeindex.NewRefresher(
		volumeindex.RefresherConfig{
			CacheFile:  cfg.CacheFile,
			Interval:   cfg.APIInterval,
			APITimeout: cfg.APITimeout,
		},
		volumeindex.NewBuilder(clientset, cfg.CSIDriver, logger),
		store, m, logger,
	)
	_ = refresher.WarmStart()

	// 4. Reconciler and scrape orchestration
	gauges := reconciler.NewGaugeStore()
	reg.MustRegister(reconciler.NewCollector(gauges))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rec := reconciler.New(ctx, reconciler.Config{MatchNode: cfg.MatchNode}, store, gauges, m, logger)
	orch := scrape.NewOrchestrator(cfg.Targets, asok.NewReader(cfg.ScrapeTimeout), rec, m, logger)

	go refresher.Run(ctx)

	// 5. HTTP server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(orch, reg, refresher.Started, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", srv.Addr, "targets", cfg.Targets)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func getKubeConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}
	// Try in-cluster
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}
	// Fallback to default local rules (e.g. ~/.kube/config)
	return clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
}
