package reconciler

import "github.com/prometheus/client_golang/prometheus"

var sessionLabels = []string{"address", "clientid", "identifier", "volume", "namespace", "pod"}

var (
	flushesDesc = prometheus.NewDesc(
		"cephfs_client_flushes",
		"Completed cap flushes reported by the CephFS client session.",
		sessionLabels, nil,
	)
	completedDesc = prometheus.NewDesc(
		"cephfs_client_completed",
		"Completed metadata requests reported by the CephFS client session.",
		sessionLabels, nil,
	)
	inflightDesc = prometheus.NewDesc(
		"cephfs_client_inflight",
		"Metadata requests currently in flight for the CephFS client session.",
		sessionLabels, nil,
	)
)

type gaugeCollector struct {
	store *GaugeStore
}

// NewCollector exposes the store's session gauges to a Prometheus registry.
func NewCollector(store *GaugeStore) prometheus.Collector {
	return &gaugeCollector{store: store}
}

// Describe implements the prometheus.Collector interface.
func (c *gaugeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- flushesDesc
	ch <- completedDesc
	ch <- inflightDesc
}

// Collect implements the prometheus.Collector interface.
func (c *gaugeCollector) Collect(ch chan<- prometheus.Metric) {
	c.store.each(func(key LabelKey, v Values) {
		labels := key.values()
		ch <- prometheus.MustNewConstMetric(flushesDesc, prometheus.GaugeValue, v.Flushes, labels...)
		ch <- prometheus.MustNewConstMetric(completedDesc, prometheus.GaugeValue, v.Completed, labels...)
		ch <- prometheus.MustNewConstMetric(inflightDesc, prometheus.GaugeValue, v.InFlight, labels...)
	})
}
