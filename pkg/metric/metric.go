// Package metric defines the sample type exchanged between collectors and
// the snapshot builder.
package metric

import (
	"sort"
	"strings"
)

// Sample is a single named measurement with a label set and a numeric value.
// Name plus the full label set identify a sample uniquely within a snapshot.
type Sample struct {
	Name   string
	Help   string
	Labels map[string]string
	Value  float64
}

// New creates a sample. The labels map is used as-is; callers must not
// mutate it after handing it over.
func New(name string, value float64, labels map[string]string) Sample {
	return Sample{Name: name, Value: value, Labels: labels}
}

// Key returns a canonical identity string for the sample: the metric name
// followed by the label pairs in sorted key order. Two samples with equal
// keys violate the snapshot uniqueness invariant.
func (s Sample) Key() string {
	if len(s.Labels) == 0 {
		return s.Name
	}

	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Name)
	for _, k := range keys {
		b.WriteByte('{')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.Labels[k])
		b.WriteByte('}')
	}
	return b.String()
}

// LabelKeys returns the label names in sorted order.
func (s Sample) LabelKeys() []string {
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabelValues returns the label values ordered to match LabelKeys.
func (s Sample) LabelValues() []string {
	keys := s.LabelKeys()
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = s.Labels[k]
	}
	return vals
}
