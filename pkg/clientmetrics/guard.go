package clientmetrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrInvalidMaxAllowed is returned by NewGuard when maxAllowed is not positive.
var ErrInvalidMaxAllowed = errors.New("max allowed label values must be greater than zero")

// Logger is the logging capability the guard needs. Both *slog.Logger and
// *logging.Logger satisfy it.
type Logger interface {
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// Guard caps the number of distinct values a single label key may take per
// metric name. The first maxAllowed distinct values win; later new values
// are denied for the lifetime of the guard.
type Guard struct {
	labelKey   string
	maxAllowed int
	logger     Logger

	mu     sync.RWMutex
	states map[string]*cardinalityState
}

// cardinalityState is the tracked value set for one metric name.
type cardinalityState struct {
	mu     sync.Mutex
	values mapset.Set[string]
	warned atomic.Bool
	denied atomic.Int64
}

// GuardState is a point-in-time view of one metric's tracked values.
type GuardState struct {
	Metric     string `json:"metric"`
	Label      string `json:"label"`
	Tracked    int    `json:"tracked"`
	MaxAllowed int    `json:"max_allowed"`
	Warned     bool   `json:"warned"`
	Denied     int64  `json:"denied"`
}

// NewGuard creates a guard bounding labelKey to maxAllowed distinct values
// per metric. A nil logger discards the warning.
func NewGuard(labelKey string, maxAllowed int, logger Logger) (*Guard, error) {
	if labelKey == "" {
		return nil, errors.New("guarded label key is required")
	}
	if maxAllowed <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxAllowed, maxAllowed)
	}
	if logger == nil {
		logger = nopLogger{}
	}

	return &Guard{
		labelKey:   labelKey,
		maxAllowed: maxAllowed,
		logger:     logger,
		states:     make(map[string]*cardinalityState),
	}, nil
}

// LabelKey returns the guarded label key.
func (g *Guard) LabelKey() string { return g.labelKey }

// MaxAllowed returns the configured cap.
func (g *Guard) MaxAllowed() int { return g.maxAllowed }

// Admit reports whether a sample for metricName with labels may be recorded.
// A value already tracked is always admitted; a new value is admitted while
// fewer than maxAllowed values are tracked. The first denial per metric logs
// a single warning.
func (g *Guard) Admit(metricName string, labels LabelSet) bool {
	value, ok := labels.Get(g.labelKey)
	if !ok {
		// Without the guarded key the sample adds no cardinality to it.
		return true
	}

	st := g.state(metricName)

	st.mu.Lock()
	if st.values.Contains(value) {
		st.mu.Unlock()
		return true
	}
	if st.values.Cardinality() < g.maxAllowed {
		st.values.Add(value)
		st.mu.Unlock()
		return true
	}
	st.mu.Unlock()

	st.denied.Add(1)
	if st.warned.CompareAndSwap(false, true) {
		g.logger.Warn("reached the maximum number of distinct label values, dropping new values",
			"metric", metricName,
			"label", g.labelKey,
			"max_allowed", g.maxAllowed,
			"hint", "pass a route template instead of the expanded request path",
		)
	}
	return false
}

// state returns the state for metricName, creating it on first use.
func (g *Guard) state(metricName string) *cardinalityState {
	g.mu.RLock()
	st, ok := g.states[metricName]
	g.mu.RUnlock()
	if ok {
		return st
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if st, ok := g.states[metricName]; ok {
		return st
	}
	st = &cardinalityState{values: mapset.NewThreadUnsafeSet[string]()}
	g.states[metricName] = st
	return st
}

// Tracked returns the sorted values tracked for metricName.
func (g *Guard) Tracked(metricName string) []string {
	g.mu.RLock()
	st, ok := g.states[metricName]
	g.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	values := st.values.ToSlice()
	st.mu.Unlock()

	sort.Strings(values)
	return values
}

// Snapshot returns the state of every tracked metric, sorted by metric name.
func (g *Guard) Snapshot() []GuardState {
	g.mu.RLock()
	names := make([]string, 0, len(g.states))
	states := make(map[string]*cardinalityState, len(g.states))
	for name, st := range g.states {
		names = append(names, name)
		states[name] = st
	}
	g.mu.RUnlock()

	sort.Strings(names)

	out := make([]GuardState, 0, len(names))
	for _, name := range names {
		st := states[name]
		st.mu.Lock()
		tracked := st.values.Cardinality()
		st.mu.Unlock()

		out = append(out, GuardState{
			Metric:     name,
			Label:      g.labelKey,
			Tracked:    tracked,
			MaxAllowed: g.maxAllowed,
			Warned:     st.warned.Load(),
			Denied:     st.denied.Load(),
		})
	}
	return out
}
