package domain

import (
	"encoding/json"
	"slices"
	"strings"
)

// =============================================================================
// LabelSet
// =============================================================================

// LabelSet is a deduplicated set of template labels.
//
// The backing slice is always sorted ascending so that two sets holding the
// same labels marshal to identical JSON. Label order carries no meaning.
// The zero value is an empty set.
type LabelSet struct {
	items []string
}

// NewLabelSet builds a set from the given labels.
// Surrounding whitespace is trimmed and empty labels are dropped.
func NewLabelSet(labels ...string) LabelSet {
	items := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		items = append(items, l)
	}
	slices.Sort(items)
	return LabelSet{items: slices.Compact(items)}
}

// Len returns the number of labels in the set.
func (s LabelSet) Len() int {
	return len(s.items)
}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label string) bool {
	_, found := slices.BinarySearch(s.items, label)
	return found
}

// Slice returns a sorted copy of the labels. Never nil.
func (s LabelSet) Slice() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Union returns every label present in s or other.
// Union is commutative and idempotent: s.Union(s) equals s.
func (s LabelSet) Union(other LabelSet) LabelSet {
	merged := make([]string, 0, len(s.items)+len(other.items))
	merged = append(merged, s.items...)
	merged = append(merged, other.items...)
	return NewLabelSet(merged...)
}

// Difference returns the labels in s that are not in other.
func (s LabelSet) Difference(other LabelSet) LabelSet {
	out := make([]string, 0, len(s.items))
	for _, l := range s.items {
		if !other.Contains(l) {
			out = append(out, l)
		}
	}
	return LabelSet{items: out}
}

// Equal reports whether both sets hold the same labels.
func (s LabelSet) Equal(other LabelSet) bool {
	return slices.Equal(s.items, other.items)
}

// MarshalJSON encodes the set as a sorted JSON array. An empty set encodes
// as [] rather than null.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes a JSON array of strings, normalizing it into a set.
func (s *LabelSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*s = NewLabelSet(labels...)
	return nil
}
