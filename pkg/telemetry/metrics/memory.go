package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"mercator-hq/callmeter/pkg/clientmetrics"
)

// Series is the aggregate of every sample recorded for one metric name and
// label set.
type Series struct {
	Metric string
	Labels clientmetrics.LabelSet
	Count  int64
	Total  time.Duration
	Max    time.Duration
}

// Mean returns the average sample duration.
func (s Series) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// MarshalJSON renders labels as an object and durations in seconds.
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Metric       string            `json:"metric"`
		Labels       map[string]string `json:"labels"`
		Count        int64             `json:"count"`
		TotalSeconds float64           `json:"total_seconds"`
		MaxSeconds   float64           `json:"max_seconds"`
	}{
		Metric:       s.Metric,
		Labels:       s.Labels.Map(),
		Count:        s.Count,
		TotalSeconds: s.Total.Seconds(),
		MaxSeconds:   s.Max.Seconds(),
	})
}

// MemoryRegistry aggregates samples in process. It keeps count, total and
// max per label set and is safe for concurrent use.
type MemoryRegistry struct {
	mu     sync.RWMutex
	series map[string]map[string]*Series
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{series: make(map[string]map[string]*Series)}
}

// RecordTiming implements clientmetrics.Registry.
func (r *MemoryRegistry) RecordTiming(metricName string, labels clientmetrics.LabelSet, d time.Duration) {
	key := labels.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	byLabels, ok := r.series[metricName]
	if !ok {
		byLabels = make(map[string]*Series)
		r.series[metricName] = byLabels
	}
	s, ok := byLabels[key]
	if !ok {
		s = &Series{Metric: metricName, Labels: labels}
		byLabels[key] = s
	}

	s.Count++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

// Query returns a copy of every series recorded for metricName, sorted by
// label set.
func (r *MemoryRegistry) Query(metricName string) []Series {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byLabels := r.series[metricName]
	keys := make([]string, 0, len(byLabels))
	for k := range byLabels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Series, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byLabels[k])
	}
	return out
}

// Metrics returns the recorded metric names, sorted.
func (r *MemoryRegistry) Metrics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export writes every series as one JSON object per line, ordered by metric
// name and then label set.
func (r *MemoryRegistry) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, name := range r.Metrics() {
		for _, s := range r.Query(name) {
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("failed to export series for %s: %w", name, err)
			}
		}
	}
	return nil
}

// Reset discards every recorded series.
func (r *MemoryRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = make(map[string]map[string]*Series)
}
