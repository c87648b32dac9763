// Package normalization maps loosely written configuration strings onto typed enum values.
package normalization

import (
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// Normalizer provides type-safe string-to-enum normalization.
type Normalizer[T comparable] struct {
	name         string
	validValues  map[string]T
	defaultValue T
	validKeys    []string // cached for error messages
}

// NewNormalizer creates a normalizer from spelling->value pairs. Keys are folded so that
// case, surrounding whitespace, '-' and '_' never matter ("on-save" == "onSave").
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	folded := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		folded[Fold(k)] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Normalizer[T]{
		name:         name,
		validValues:  folded,
		defaultValue: defaultValue,
		validKeys:    keys,
	}
}

// Normalize returns the matching value, or the default when raw is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.validValues[Fold(raw)]; ok {
		return v
	}
	return n.defaultValue
}

// Parse is Normalize with a validation error for unknown input. Blank input yields the default.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	if strings.TrimSpace(raw) == "" {
		return n.defaultValue, nil
	}
	if v, ok := n.validValues[Fold(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, ferrors.ValidationError("invalid "+n.name).
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.validKeys, ", ")).
		Build()
}

// Default is the fallback value.
func (n *Normalizer[T]) Default() T { return n.defaultValue }

// ValidKeys returns the accepted spellings, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.validKeys))
	copy(out, n.validKeys)
	return out
}

// Fold is the canonical key form used for lookups.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}
