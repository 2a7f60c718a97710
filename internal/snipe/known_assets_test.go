package snipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownAssetSetIsMonotonic(t *testing.T) {
	k := NewKnownAssetSet()

	assert.Equal(t, []string{"A", "B"}, k.AddNew([]string{"A", "B", "A", ""}))
	assert.Equal(t, []string{"C"}, k.AddNew([]string{"A", "B", "C"}))
	assert.Empty(t, k.AddNew([]string{"A", "B", "C"}))

	// assets missing from a later snapshot stay known
	assert.Empty(t, k.AddNew([]string{"C"}))
	assert.Empty(t, k.AddNew([]string{"A"}))
	assert.True(t, k.Contains("B"))
	assert.Equal(t, 3, k.Len())
}
