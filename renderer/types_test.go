package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	for name, want := range map[string]Stage{
		"vertex":    StageVertex,
		" Fragment": StageFragment,
		"frag":      StageFragment,
		"cs":        StageCompute,
	} {
		got, err := ParseStage(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseStage("geometry")
	assert.Error(t, err)
}

func TestExtentIsZero(t *testing.T) {
	assert.True(t, Extent{}.IsZero())
	assert.True(t, Extent{Width: 800}.IsZero())
	assert.False(t, Extent{Width: 800, Height: 600}.IsZero())
	assert.Equal(t, "800x600", Extent{Width: 800, Height: 600}.String())
}
