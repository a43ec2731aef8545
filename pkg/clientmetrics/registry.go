package clientmetrics

import "time"

// Registry is the sink for timing samples. RecordTiming is fire-and-forget:
// implementations must not block on slow storage and report failures through
// their own channels, never to the caller.
type Registry interface {
	RecordTiming(metricName string, labels LabelSet, d time.Duration)
}

// RegistryFunc adapts a function to Registry.
type RegistryFunc func(metricName string, labels LabelSet, d time.Duration)

// RecordTiming calls f(metricName, labels, d).
func (f RegistryFunc) RecordTiming(metricName string, labels LabelSet, d time.Duration) {
	f(metricName, labels, d)
}

// Discard is a Registry that drops every sample.
var Discard Registry = RegistryFunc(func(string, LabelSet, time.Duration) {})

// MultiRegistry fans each sample out to every registry in order. A registry
// that panics does not prevent delivery to the others.
type MultiRegistry []Registry

// RecordTiming implements Registry.
func (m MultiRegistry) RecordTiming(metricName string, labels LabelSet, d time.Duration) {
	for _, r := range m {
		recordSafely(r, metricName, labels, d)
	}
}
