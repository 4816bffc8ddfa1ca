package main

import (
	"errors"
	"fmt"
	"testing"

	"GPU_frame_presenter/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourcesReleasable(t *testing.T) {
	assert.True(t, resourcesReleasable(nil))
	assert.True(t, resourcesReleasable(&renderer.FatalError{Op: "present", Err: renderer.ErrDeviceLost}))

	pending := fmt.Errorf("close: 2 submissions still pending: %w", errors.Join(renderer.ErrResourcesInUse, renderer.ErrWaitTimeout))
	assert.False(t, resourcesReleasable(pending))
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	cfg, err := loadConfig([]string{"--width", "1280", "--mesh", "cube"})
	require.NoError(t, err)
	assert.Equal(t, int32(1280), cfg.Window.Width)
	assert.Equal(t, int32(600), cfg.Window.Height)
	assert.Equal(t, "cube", cfg.Scene.Mesh)

	_, err = loadConfig([]string{"--width", "0"})
	assert.ErrorContains(t, err, "window")
}
