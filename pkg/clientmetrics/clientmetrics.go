package clientmetrics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownGuardedKey is returned by New when the guarded label key is not
// one DefaultTagExtractor produces, so the guard would never see a value.
var ErrUnknownGuardedKey = errors.New("guarded label key is not produced by the tag extractor")

// Defaults for Options.
const (
	DefaultMetricName      = "http.client.requests"
	DefaultGuardedLabelKey = LabelURI
	DefaultMaxAllowed      = 100
)

// Options is the construction-time configuration of an instrumented client.
type Options struct {
	// MetricName names the timing metric family.
	// Default: "http.client.requests"
	MetricName string

	// GuardedLabelKey is the label whose distinct values are capped.
	// Default: "uri"
	GuardedLabelKey string

	// MaxAllowed is the cap on distinct GuardedLabelKey values per metric.
	// Must be greater than zero.
	MaxAllowed int

	// Registry receives admitted samples. nil discards them.
	Registry Registry

	// Logger receives the one-time cardinality warning. nil discards it.
	Logger Logger
}

// New builds a Guard and an Instrumenter from opts.
func New(opts Options, extra ...Option) (*Instrumenter, error) {
	if opts.MetricName == "" {
		opts.MetricName = DefaultMetricName
	}
	if opts.GuardedLabelKey == "" {
		opts.GuardedLabelKey = DefaultGuardedLabelKey
	}

	guard, err := NewGuard(opts.GuardedLabelKey, opts.MaxAllowed, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cardinality guard: %w", err)
	}

	in, err := NewInstrumenter(opts.MetricName, guard, opts.Registry, extra...)
	if err != nil {
		return nil, err
	}

	// A custom extractor may emit any keys; only the default one is known.
	if _, ok := in.extractor.(DefaultTagExtractor); ok && !slices.Contains(DefaultLabelKeys, opts.GuardedLabelKey) {
		return nil, fmt.Errorf("%w: %q (want one of %s)",
			ErrUnknownGuardedKey, opts.GuardedLabelKey, strings.Join(DefaultLabelKeys, ", "))
	}
	return in, nil
}
