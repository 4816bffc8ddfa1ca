package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayoutMatchesStruct(t *testing.T) {
	assert.Equal(t, uint32(24), VertexSize)
	assert.Equal(t, VertexSize, GetVertexBindingDescription().Stride)
	attrs := GetVertexAttributeDescriptions()
	require.Len(t, attrs, 2)
	assert.Equal(t, uint32(0), attrs[0].Offset)
	assert.Equal(t, uint32(12), attrs[1].Offset)
	assert.Equal(t, uint32(1), attrs[1].Location)
}

func TestQuadMesh(t *testing.T) {
	m := NewQuadMesh()
	require.NoError(t, m.Validate())
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, m.VIndices)

	b, err := m.VertexBytes()
	require.NoError(t, err)
	assert.Len(t, b, 4*int(VertexSize))
	// first vertex position x, little endian float32
	assert.Equal(t, float32(-0.5), math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])))
	// second vertex colour g
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(b[24+16:24+20])))
}

func TestCubeMesh(t *testing.T) {
	m := NewCubeMesh()
	require.NoError(t, m.Validate())
	assert.Len(t, m.Vertices, 8)
	assert.Len(t, m.VIndices, 36)
}

func TestMeshValidate(t *testing.T) {
	v := []Vertex{{}, {}, {}}
	tests := []struct {
		name string
		mesh *Mesh
		ok   bool
	}{
		{"empty", NewMesh(nil, nil), false},
		{"no indices", NewMesh(v, nil), false},
		{"partial triangle", NewMesh(v, []uint32{0, 1}), false},
		{"index out of range", NewMesh(v, []uint32{0, 1, 3}), false},
		{"triangle", NewMesh(v, []uint32{0, 1, 2}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFitToClipSpace(t *testing.T) {
	m := NewMesh([]Vertex{
		{Pos: mgl32.Vec3{10, 10, 10}},
		{Pos: mgl32.Vec3{30, 20, 10}},
		{Pos: mgl32.Vec3{20, 30, 14}},
	}, []uint32{0, 1, 2})
	m.FitToClipSpace(1)
	lo, hi := m.Bounds()
	assert.InDelta(t, -0.5, lo.X(), 1e-5)
	assert.InDelta(t, 0.5, hi.X(), 1e-5)
	assert.InDelta(t, -0.5, lo.Y(), 1e-5)
	assert.InDelta(t, 0.5, hi.Y(), 1e-5)
	assert.InDelta(t, 0.2, hi.Z()-lo.Z(), 1e-5)

	flat := NewMesh([]Vertex{{Pos: mgl32.Vec3{1, 1, 1}}}, []uint32{0, 0, 0})
	flat.FitToClipSpace(1)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, flat.Vertices[0].Pos)
}
