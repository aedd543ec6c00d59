// Package lookup implements the fitted model of a text task: a mapping
// from the position of each training text to the text itself.
//
// A Model is immutable once built. Refitting produces a new Model; the
// task swaps it in wholesale.
package lookup

import (
	"iter"
	"maps"
	"slices"
	"strconv"
)

// NoSuchSentence is returned by Predict for keys the model does not hold.
const NoSuchSentence = "No such sentence in the original dataset"

// Model maps stringified 0-based indices to the training texts.
type Model struct {
	data map[string]string
}

// New returns an empty model.
func New() *Model {
	return &Model{data: map[string]string{}}
}

// Build assigns each text its decimal position as key, in order. Texts are
// neither deduplicated nor validated.
func Build(texts []string) *Model {
	data := make(map[string]string, len(texts))
	for i, text := range texts {
		data[strconv.Itoa(i)] = text
	}
	return &Model{data: data}
}

// FromMap builds a model from an existing mapping. The map is copied.
func FromMap(m map[string]string) *Model {
	return &Model{data: maps.Clone(m)}
}

// Has reports whether key is present. Keys are matched verbatim.
func (m *Model) Has(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Predict returns the text stored under key, or NoSuchSentence.
func (m *Model) Predict(key string) string {
	if v, ok := m.data[key]; ok {
		return v
	}
	return NoSuchSentence
}

// Len returns the number of entries.
func (m *Model) Len() int { return len(m.data) }

// All iterates over the entries in ascending key order.
func (m *Model) All() iter.Seq2[string, string] {
	keys := slices.Sorted(maps.Keys(m.data))
	return func(yield func(string, string) bool) {
		for _, k := range keys {
			if !yield(k, m.data[k]) {
				return
			}
		}
	}
}

// Equal reports whether m and o hold the same key/value mapping.
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	return maps.Equal(m.data, o.data)
}
