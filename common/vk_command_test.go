package common

import (
	"testing"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestEncoderStopsRecordingAfterFailure(t *testing.T) {
	e := &Encoder{}
	e.BeginRenderPass(renderer.RenderTarget{Handle: "x"}, vk.NullRenderPass, renderer.ClearColor{})
	assert.ErrorContains(t, e.err, "not a framebuffer")

	assert.NotPanics(t, func() {
		e.BindPipeline(renderer.PipelineGraphics, vk.NullPipeline)
		e.BindVertexBuffer(vk.NullBuffer)
		e.BindIndexBuffer(&Buffer{Handle: vk.NullBuffer})
		e.DrawIndexed(6)
		e.EndRenderPass()
	})
	assert.ErrorContains(t, e.err, "not a framebuffer", "the first failure is the one reported")
}

func TestEncoderKeepsFirstFailure(t *testing.T) {
	e := &Encoder{}
	e.BindPipeline(renderer.PipelineGraphics, "pipeline")
	e.BindVertexBuffer(42)
	assert.ErrorContains(t, e.err, "bind pipeline: string is not a pipeline")
}

func TestAsBuffer(t *testing.T) {
	buf, err := asBuffer(&Buffer{Handle: vk.NullBuffer})
	assert.NoError(t, err)
	assert.Equal(t, vk.NullBuffer, buf)

	_, err = asBuffer("buffer")
	assert.ErrorContains(t, err, "string is not a buffer")
}
