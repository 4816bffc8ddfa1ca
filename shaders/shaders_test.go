package shaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasEntryPoints(t *testing.T) {
	assert.Contains(t, Default, "fn vs_main")
	assert.Contains(t, Default, "fn fs_main")
	assert.Contains(t, Default, "@location(1) color")
}

func TestLoad(t *testing.T) {
	src, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default, src)

	path := filepath.Join(t.TempDir(), "custom.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("@vertex fn vs_main() {}"), 0o644))
	src, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@vertex fn vs_main() {}", src)

	_, err = Load(filepath.Join(t.TempDir(), "missing.wgsl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
