package util

import (
	"flag"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommaList(t *testing.T) {
	assert.Nil(t, ParseCommaList(""))
	assert.Equal(t, []string{"/run/ceph/a.asok"}, ParseCommaList("/run/ceph/a.asok"))
	assert.Equal(t, []string{"/a", "/b"}, ParseCommaList("/a, /b,,"))
}

func TestParseInterval(t *testing.T) {
	d, err := parseInterval("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = parseInterval("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = parseInterval("-5")
	assert.Error(t, err)
	_, err = parseInterval("soon")
	assert.Error(t, err)
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("ASOK", "/run/ceph/a.asok,/run/ceph/b.asok")
	t.Setenv("API_INTERVAL", "30")
	t.Setenv("PORT", "9128")
	t.Setenv("SCRAPE_TIMEOUT", "not-a-duration")
	t.Setenv("MATCH_NODE", "true")
	t.Setenv("CSI_DRIVER", "cephfs.csi.ceph.com")

	cfg := LoadEnvConfig(DefaultConfig(), nil, logr.Discard())

	assert.Equal(t, []string{"/run/ceph/a.asok", "/run/ceph/b.asok"}, cfg.Targets)
	assert.Equal(t, 30*time.Second, cfg.APIInterval)
	assert.Equal(t, 9128, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ScrapeTimeout, "invalid value keeps the default")
	assert.True(t, cfg.MatchNode)
	assert.Equal(t, "cephfs.csi.ceph.com", cfg.CSIDriver)
	assert.Equal(t, "0.0.0.0:9128", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvConfig_ExplicitFlagsWin(t *testing.T) {
	t.Setenv("KUBECONFIG", "/home/user/.kube/config")
	t.Setenv("PORT", "9128")
	t.Setenv("API_INTERVAL", "30")

	fs := flag.NewFlagSet("cephfs-exporter", flag.ContinueOnError)
	kubeconfig := fs.String("kubeconfig", "", "")
	port := fs.Int("port", 8080, "")
	fs.Duration("api-interval", 0, "")
	require.NoError(t, fs.Parse([]string{"--kubeconfig=/etc/exporter/kubeconfig", "--port", "9000"}))

	cfg := DefaultConfig()
	cfg.Kubeconfig = *kubeconfig
	cfg.Port = *port
	cfg = LoadEnvConfig(cfg, ExplicitFlags(fs), logr.Discard())

	assert.Equal(t, "/etc/exporter/kubeconfig", cfg.Kubeconfig)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.APIInterval, "unset flag still takes the environment value")
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "api-interval", FlagName("API_INTERVAL"))
	assert.Equal(t, "asok", FlagName("ASOK"))
	assert.Equal(t, "log-level", FlagName("LOG_LEVEL"))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.Targets = []string{"/run/ceph/a.asok"}
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}
