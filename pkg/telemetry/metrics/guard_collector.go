package metrics

import (
	"mercator-hq/callmeter/pkg/clientmetrics"

	"github.com/prometheus/client_golang/prometheus"
)

// GuardCollector exposes the state of a cardinality guard on every scrape.
type GuardCollector struct {
	guard *clientmetrics.Guard

	tracked *prometheus.Desc
	max     *prometheus.Desc
	denied  *prometheus.Desc
}

// NewGuardCollector creates a collector reading guard's snapshot.
func NewGuardCollector(namespace string, guard *clientmetrics.Guard) *GuardCollector {
	labels := []string{"metric", "label"}
	return &GuardCollector{
		guard: guard,
		tracked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "client_metrics", "guard_tracked_values"),
			"Distinct values currently tracked for the guarded label",
			labels, nil,
		),
		max: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "client_metrics", "guard_max_values"),
			"Maximum distinct values allowed for the guarded label",
			labels, nil,
		),
		denied: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "client_metrics", "guard_denied_samples_total"),
			"Samples dropped because their guarded label value was over the cap",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *GuardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tracked
	ch <- c.max
	ch <- c.denied
}

// Collect implements prometheus.Collector.
func (c *GuardCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.guard.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.tracked, prometheus.GaugeValue, float64(st.Tracked), st.Metric, st.Label)
		ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(st.MaxAllowed), st.Metric, st.Label)
		ch <- prometheus.MustNewConstMetric(c.denied, prometheus.CounterValue, float64(st.Denied), st.Metric, st.Label)
	}
}
