package clientmetrics

import "strings"

// Label is a single key/value annotation attached to a sample.
type Label struct {
	Key   string
	Value string
}

// LabelSet is an ordered, immutable set of labels built once per call.
// The zero value is an empty set.
type LabelSet struct {
	labels []Label
}

// NewLabelSet builds a LabelSet from labels in the given order. A key that
// appears more than once keeps its first position and takes the last value.
func NewLabelSet(labels ...Label) LabelSet {
	out := make([]Label, 0, len(labels))
	index := make(map[string]int, len(labels))
	for _, l := range labels {
		if i, ok := index[l.Key]; ok {
			out[i].Value = l.Value
			continue
		}
		index[l.Key] = len(out)
		out = append(out, l)
	}
	return LabelSet{labels: out}
}

// Get returns the value for key and whether it is present.
func (s LabelSet) Get(key string) (string, bool) {
	for _, l := range s.labels {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// Len returns the number of labels.
func (s LabelSet) Len() int {
	return len(s.labels)
}

// Labels returns a copy of the labels in order.
func (s LabelSet) Labels() []Label {
	out := make([]Label, len(s.labels))
	copy(out, s.labels)
	return out
}

// Keys returns the label keys in order.
func (s LabelSet) Keys() []string {
	keys := make([]string, len(s.labels))
	for i, l := range s.labels {
		keys[i] = l.Key
	}
	return keys
}

// Values returns the label values in key order.
func (s LabelSet) Values() []string {
	values := make([]string, len(s.labels))
	for i, l := range s.labels {
		values[i] = l.Value
	}
	return values
}

// Map returns the labels as a freshly allocated map.
func (s LabelSet) Map() map[string]string {
	m := make(map[string]string, len(s.labels))
	for _, l := range s.labels {
		m[l.Key] = l.Value
	}
	return m
}

// String renders the set as {k="v",...} in label order.
func (s LabelSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, l := range s.labels {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(l.Key)
		sb.WriteString(`="`)
		sb.WriteString(l.Value)
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}
