package stl

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putVec3(b []byte, v mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v[i]))
	}
}

func encode(triangles [][4]mgl32.Vec3) []byte {
	b := make([]byte, headerSize+4+len(triangles)*triangleSize)
	copy(b, "test solid")
	binary.LittleEndian.PutUint32(b[headerSize:], uint32(len(triangles)))
	for t, tri := range triangles {
		off := headerSize + 4 + t*triangleSize
		for k, v := range tri {
			putVec3(b[off+k*12:], v)
		}
	}
	return b
}

func TestDecode(t *testing.T) {
	b := encode([][4]mgl32.Vec3{
		{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, -1}, {0, 0, 0}, {0, 1, 0}, {1, 0, 0}},
	})
	m, err := Decode(b)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Len(t, m.Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, m.VIndices)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Vertices[1].Pos)
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 1}, m.Vertices[0].Color)
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0}, m.Vertices[3].Color)
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	b := encode([][4]mgl32.Vec3{{{0, 0, 1}, {}, {}, {}}})
	binary.LittleEndian.PutUint32(b[headerSize:], 2)
	_, err = Decode(b)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = Decode(encode(nil))
	assert.Error(t, err)
}

func TestReadStlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	require.NoError(t, os.WriteFile(path, encode([][4]mgl32.Vec3{{{}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}}), 0o644))
	m, err := ReadStlFile(path)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 3)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, m.Vertices[0].Color, "zero normal falls back to white")

	_, err = ReadStlFile(filepath.Join(t.TempDir(), "missing.stl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
