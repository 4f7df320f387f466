// internal/util/env.go
package util

import (
	"errors"
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Config holds exporter configuration. Flags given on the command line take
// precedence over environment variables, which take precedence over defaults.
type Config struct {
	// Targets are the ceph client admin socket paths (ASOK).
	Targets []string

	// APIInterval overrides the adaptive volume index refresh interval (API_INTERVAL).
	APIInterval time.Duration

	// Kubeconfig is the cluster credentials path (KUBECONFIG). Empty means in-cluster.
	Kubeconfig string

	// Listen and Port form the HTTP listen address (LISTEN, PORT).
	Listen string
	Port   int

	// CacheFile persists the volume index between restarts (CACHE_FILE).
	CacheFile string

	// CSIDriver selects persistent volumes by driver name substring (CSI_DRIVER).
	CSIDriver string

	// ScrapeTimeout bounds each admin socket read (SCRAPE_TIMEOUT).
	ScrapeTimeout time.Duration

	// APITimeout bounds each volume index refresh (API_TIMEOUT).
	APITimeout time.Duration

	// MatchNode requires the pod host IP to match the session address (MATCH_NODE).
	MatchNode bool

	// LogLevel is one of debug, info, warn, error (LOG_LEVEL).
	LogLevel string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Listen:        "0.0.0.0",
		Port:          8080,
		CacheFile:     "/tmp/ocpinfo",
		CSIDriver:     "cephfs",
		ScrapeTimeout: 10 * time.Second,
		APITimeout:    60 * time.Second,
		LogLevel:      "info",
	}
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Listen, strconv.Itoa(c.Port))
}

// Validate reports configuration the exporter cannot start with.
func (c Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("no admin socket configured, set ASOK")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}
	return nil
}

// FlagName returns the command line flag matching an environment variable,
// e.g. API_INTERVAL is --api-interval.
func FlagName(env string) string {
	return strings.ReplaceAll(strings.ToLower(env), "_", "-")
}

// ExplicitFlags returns the names of the flags set on the command line.
func ExplicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// LoadEnvConfig applies environment overrides to cfg, skipping variables
// whose flag is in explicit. Unparseable values are logged and ignored.
func LoadEnvConfig(cfg Config, explicit map[string]bool, logger logr.Logger) Config {
	getenv := func(key string) string {
		if explicit[FlagName(key)] {
			return ""
		}
		return os.Getenv(key)
	}

	if v := getenv("ASOK"); v != "" {
		cfg.Targets = ParseCommaList(v)
		logger.Info("Loaded admin sockets from environment", "targets", cfg.Targets)
	}

	if v := getenv("API_INTERVAL"); v != "" {
		if d, err := parseInterval(v); err == nil {
			cfg.APIInterval = d
			logger.Info("Loaded API interval from environment", "interval", d)
		} else {
			logger.Error(err, "Failed to parse API_INTERVAL environment variable", "value", v)
		}
	}

	if v := getenv("KUBECONFIG"); v != "" {
		cfg.Kubeconfig = v
	}

	if v := getenv("LISTEN"); v != "" {
		cfg.Listen = v
	}

	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		} else {
			logger.Error(err, "Failed to parse PORT environment variable", "value", v)
		}
	}

	if v := getenv("CACHE_FILE"); v != "" {
		cfg.CacheFile = v
	}

	if v := getenv("CSI_DRIVER"); v != "" {
		cfg.CSIDriver = v
	}

	if v := getenv("SCRAPE_TIMEOUT"); v != "" {
		if d, err := parseInterval(v); err == nil {
			cfg.ScrapeTimeout = d
		} else {
			logger.Error(err, "Failed to parse SCRAPE_TIMEOUT environment variable", "value", v)
		}
	}

	if v := getenv("API_TIMEOUT"); v != "" {
		if d, err := parseInterval(v); err == nil {
			cfg.APITimeout = d
		} else {
			logger.Error(err, "Failed to parse API_TIMEOUT environment variable", "value", v)
		}
	}

	if v := getenv("MATCH_NODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MatchNode = b
		} else {
			logger.Error(err, "Failed to parse MATCH_NODE environment variable", "value", v)
		}
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// parseInterval accepts a Go duration or a plain number of seconds.
func parseInterval(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, errors.New("interval must not be negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("interval must not be negative")
	}
	return d, nil
}

// ParseCommaList parses a comma-separated list of strings
func ParseCommaList(input string) []string {
	if input == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(input, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
