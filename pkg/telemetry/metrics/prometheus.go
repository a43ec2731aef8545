package metrics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"mercator-hq/callmeter/pkg/clientmetrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Reasons recorded on the dropped samples counter.
const (
	DropReasonLabelMismatch      = "label_mismatch"
	DropReasonRegistrationFailed = "registration_failed"
	DropReasonInvalidLabels      = "invalid_labels"
)

// PrometheusRegistry records client timings as Prometheus histograms.
//
// Each metric name gets one HistogramVec, created and registered on its first
// sample with that sample's label keys. Prometheus requires a fixed label
// schema per family, so later samples with a different key set are dropped
// and counted rather than panicking inside the caller's request path.
type PrometheusRegistry struct {
	namespace  string
	buckets    []float64
	registerer prometheus.Registerer

	mu       sync.RWMutex
	families map[string]*histogramFamily

	dropped *prometheus.CounterVec
}

// histogramFamily is the registered histogram for one metric name. A family
// whose registration failed keeps err and drops every sample.
type histogramFamily struct {
	keys []string
	vec  *prometheus.HistogramVec
	err  error
}

// NewPrometheusRegistry creates a registry that registers its histograms with
// registerer. An empty bucket list uses prometheus.DefBuckets.
func NewPrometheusRegistry(registerer prometheus.Registerer, namespace string, buckets []float64) (*PrometheusRegistry, error) {
	if registerer == nil {
		return nil, errors.New("prometheus registerer is required")
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_metrics_dropped_samples_total",
			Help:      "Client timing samples the Prometheus backend could not record",
		},
		[]string{"metric", "reason"},
	)
	if err := registerer.Register(dropped); err != nil {
		return nil, fmt.Errorf("failed to register dropped samples counter: %w", err)
	}

	return &PrometheusRegistry{
		namespace:  namespace,
		buckets:    slices.Clone(buckets),
		registerer: registerer,
		families:   make(map[string]*histogramFamily),
		dropped:    dropped,
	}, nil
}

// RecordTiming implements clientmetrics.Registry.
func (r *PrometheusRegistry) RecordTiming(metricName string, labels clientmetrics.LabelSet, d time.Duration) {
	fam := r.family(metricName, labels)
	if fam.err != nil {
		r.dropped.WithLabelValues(metricName, DropReasonRegistrationFailed).Inc()
		return
	}
	if !sameKeys(fam.keys, labels) {
		r.dropped.WithLabelValues(metricName, DropReasonLabelMismatch).Inc()
		return
	}

	obs, err := fam.vec.GetMetricWithLabelValues(labels.Values()...)
	if err != nil {
		r.dropped.WithLabelValues(metricName, DropReasonInvalidLabels).Inc()
		return
	}
	obs.Observe(d.Seconds())
}

// family returns the histogram for metricName, registering it with the
// label keys of labels on first use.
func (r *PrometheusRegistry) family(metricName string, labels clientmetrics.LabelSet) *histogramFamily {
	r.mu.RLock()
	fam, ok := r.families[metricName]
	r.mu.RUnlock()
	if ok {
		return fam
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if fam, ok := r.families[metricName]; ok {
		return fam
	}

	keys := labels.Keys()
	promKeys := make([]string, len(keys))
	for i, k := range keys {
		promKeys[i] = SanitizeName(k)
	}

	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      HistogramName(metricName),
			Help:      fmt.Sprintf("Duration of outbound calls recorded as %s", metricName),
			Buckets:   r.buckets,
		},
		promKeys,
	)

	fam = &histogramFamily{keys: keys, vec: vec}
	if err := r.registerer.Register(vec); err != nil {
		fam.err = err
	}
	r.families[metricName] = fam
	return fam
}

// Families returns the metric names that have a registered histogram.
func (r *PrometheusRegistry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.families))
	for name, fam := range r.families {
		if fam.err == nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func sameKeys(keys []string, labels clientmetrics.LabelSet) bool {
	if len(keys) != labels.Len() {
		return false
	}
	for i, l := range labels.Labels() {
		if keys[i] != l.Key {
			return false
		}
	}
	return true
}

// HistogramName converts a dotted metric name into the Prometheus histogram
// name without namespace: "http.client.requests" becomes
// "http_client_requests_seconds".
func HistogramName(metricName string) string {
	name := SanitizeName(metricName)
	if !strings.HasSuffix(name, "_seconds") {
		name += "_seconds"
	}
	return name
}

// SanitizeName maps every character outside [a-zA-Z0-9_] to '_' and prefixes
// names that start with a digit.
func SanitizeName(name string) string {
	if name == "" {
		return "_"
	}

	var sb strings.Builder
	sb.Grow(len(name) + 1)
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
			sb.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
