package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

type mode string

const (
	modeAny  mode = "onAnyChange"
	modeSave mode = "onSave"
	modeOff  mode = "off"
)

func newModeNormalizer() *Normalizer[mode] {
	return NewNormalizer("mode", map[string]mode{
		"onAnyChange": modeAny,
		"onSave":      modeSave,
		"off":         modeOff,
	}, modeAny)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newModeNormalizer()

	tests := []struct {
		name  string
		input string
		want  mode
	}{
		{"exact", "onSave", modeSave},
		{"lower", "onsave", modeSave},
		{"kebab", "on-save", modeSave},
		{"snake with spaces", "  ON_ANY_CHANGE ", modeAny},
		{"unknown falls back", "sometimes", modeAny},
		{"empty falls back", "", modeAny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Parse(t *testing.T) {
	n := newModeNormalizer()

	v, err := n.Parse("OFF")
	require.NoError(t, err)
	assert.Equal(t, modeOff, v)

	v, err = n.Parse("  ")
	require.NoError(t, err)
	assert.Equal(t, modeAny, v)

	_, err = n.Parse("never")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	valid, _ := ce.Context().GetString("valid")
	assert.Equal(t, "off, onAnyChange, onSave", valid)
}

func TestNormalizer_ValidKeysIsCopy(t *testing.T) {
	n := newModeNormalizer()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	assert.Equal(t, "off", n.ValidKeys()[0])
	assert.Equal(t, modeAny, n.Default())
}
