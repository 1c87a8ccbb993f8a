package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreStats is the subset of storage engine counts exported at scrape time.
type StoreStats struct {
	Keys        int
	Users       int
	WatchedKeys int
}

// StatsFunc samples the storage engine.
type StatsFunc func() StoreStats

// Collector reports storage engine counts on every scrape instead of
// tracking them on the write path.
type Collector struct {
	stats StatsFunc

	keys        *prometheus.Desc
	users       *prometheus.Desc
	watchedKeys *prometheus.Desc
}

// NewCollector creates a collector that calls stats on each scrape.
func NewCollector(stats StatsFunc) *Collector {
	return &Collector{
		stats: stats,
		keys: prometheus.NewDesc("kvwait_store_keys",
			"Number of keys held by the storage engine", nil, nil),
		users: prometheus.NewDesc("kvwait_store_users",
			"Number of registered users", nil, nil),
		watchedKeys: prometheus.NewDesc("kvwait_store_watched_keys",
			"Number of distinct keys with at least one blocked GETWHEN", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.users
	ch <- c.watchedKeys
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(s.Keys))
	ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(s.Users))
	ch <- prometheus.MustNewConstMetric(c.watchedKeys, prometheus.GaugeValue, float64(s.WatchedKeys))
}
