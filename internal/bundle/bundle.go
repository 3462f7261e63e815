// Package bundle defines the keyed payload handed back to callers when a
// recommendation completes.
package bundle

import (
	"fmt"
	"math"
)

// Well-known keys. Callers match on these exact strings, so they are part of
// the compatibility contract and must not change.
const (
	// KeyRecommendationResult holds the evaluator's result.
	KeyRecommendationResult = "extra.RECOMMENDATION_RESULT"
	// KeySequence holds the caller's correlation sequence.
	KeySequence = "extra.SEQUENCE"
)

// Bundle is a string-keyed bag of values. It marshals to a JSON object as-is.
type Bundle map[string]any

// New returns an empty bundle.
func New() Bundle {
	return make(Bundle)
}

// Put stores v under key.
func (b Bundle) Put(key string, v any) {
	b[key] = v
}

// PutInt stores an integer under key.
func (b Bundle) PutInt(key string, v int) {
	b[key] = v
}

// Get returns the raw value stored under key.
func (b Bundle) Get(key string) (any, bool) {
	v, ok := b[key]
	return v, ok
}

// GetInt returns the integer stored under key. Whole float64 values are
// accepted as well, since that is what a JSON round trip produces.
func (b Bundle) GetInt(key string) (int, bool) {
	switch v := b[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// Sequence is shorthand for GetInt(KeySequence).
func (b Bundle) Sequence() (int, bool) {
	return b.GetInt(KeySequence)
}

// Result is shorthand for Get(KeyRecommendationResult).
func (b Bundle) Result() (any, bool) {
	return b.Get(KeyRecommendationResult)
}

// String renders the bundle for log lines.
func (b Bundle) String() string {
	return fmt.Sprintf("Bundle[%d keys]", len(b))
}
