package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is indexed triangle geometry. Every three indices form one triangle.
type Mesh struct {
	Vertices []Vertex
	VIndices []uint32
}

func NewMesh(v []Vertex, id []uint32) *Mesh {
	return &Mesh{
		Vertices: v,
		VIndices: id,
	}
}

// Validate reports empty meshes, incomplete triangles and indices pointing past the vertices.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 || len(m.VIndices) == 0 {
		return errors.New("mesh has no vertices or indices")
	}
	if len(m.VIndices)%3 != 0 {
		return fmt.Errorf("mesh index count %d is not a multiple of 3", len(m.VIndices))
	}
	for i, idx := range m.VIndices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("mesh index %d at %d is out of range for %d vertices", idx, i, len(m.Vertices))
		}
	}
	return nil
}

// VertexBytes returns the raw little-endian vertex data as the vertex buffer expects it.
func (m *Mesh) VertexBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(len(m.Vertices) * int(VertexSize))
	if err := binary.Write(buf, binary.LittleEndian, m.Vertices); err != nil {
		return nil, fmt.Errorf("encode vertices: %w", err)
	}
	return buf.Bytes(), nil
}

// Bounds returns the axis aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return lo, hi
	}
	lo, hi = m.Vertices[0].Pos, m.Vertices[0].Pos
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], v.Pos[i])
			hi[i] = max(hi[i], v.Pos[i])
		}
	}
	return lo, hi
}

// FitToClipSpace centers the mesh on the origin and scales it uniformly so its largest extent spans the given
// size. Meshes loaded from files come in arbitrary units and would otherwise land outside the view.
func (m *Mesh) FitToClipSpace(size float32) {
	lo, hi := m.Bounds()
	center := lo.Add(hi).Mul(0.5)
	ext := hi.Sub(lo)
	largest := max(ext.X(), ext.Y(), ext.Z())
	if largest == 0 {
		return
	}
	scale := mgl32.Scale3D(size/largest, size/largest, size/largest).Mul4(mgl32.Translate3D(-center.X(), -center.Y(), -center.Z()))
	for i := range m.Vertices {
		m.Vertices[i].Pos = mgl32.TransformCoordinate(m.Vertices[i].Pos, scale)
	}
}
