package stl

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"GPU_frame_presenter/model"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	headerSize   = 80
	triangleSize = 50 // normal, 3 vertices, attribute byte count
)

// ReadStlFile reads a binary STL file into a mesh, colouring each triangle with its normal.
func ReadStlFile(path string) (*model.Mesh, error) {
	log.Printf("Reading stl file %s", path)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("Successfully read stl file, Triangle Count: %d, Triangle memory size: %d KiB", len(m.VIndices)/3, len(b[headerSize:])/1024)
	return m, nil
}

// Decode parses binary STL data.
func Decode(b []byte) (*model.Mesh, error) {
	if len(b) < headerSize+4 {
		return nil, io.ErrUnexpectedEOF
	}
	tCnt := binary.LittleEndian.Uint32(b[headerSize : headerSize+4])
	body := b[headerSize+4:]
	if uint64(len(body)) < uint64(tCnt)*triangleSize {
		return nil, fmt.Errorf("stl announces %d triangles but holds %d bytes: %w", tCnt, len(body), io.ErrUnexpectedEOF)
	}
	if tCnt == 0 {
		return nil, fmt.Errorf("stl holds no triangles")
	}
	return toMesh(body, tCnt), nil
}

func toMesh(bytes []byte, triangleCnt uint32) *model.Mesh {
	v := make([]model.Vertex, 0, triangleCnt*3)
	id := make([]uint32, 0, triangleCnt*3)

	for t := 0; t < int(triangleCnt); t++ {
		i := t * triangleSize
		color := normalColor(toVec3(bytes[i : i+12]))
		for k := 0; k < 3; k++ {
			off := i + 12 + k*12
			id = append(id, uint32(len(v)))
			v = append(v, model.Vertex{
				Pos:   toVec3(bytes[off : off+12]),
				Color: color,
			})
		}
	}

	return model.NewMesh(v, id)
}

// normalColor maps a unit normal from [-1, 1] into [0, 1] so faces are distinguishable without lighting.
func normalColor(n mgl32.Vec3) mgl32.Vec3 {
	if n.Len() == 0 {
		return mgl32.Vec3{1, 1, 1}
	}
	n = n.Normalize()
	return n.Add(mgl32.Vec3{1, 1, 1}).Mul(0.5)
}

func toVec3(bytes []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		toFloat32(bytes[:4]),
		toFloat32(bytes[4:8]),
		toFloat32(bytes[8:12]),
	}
}

func toFloat32(bytes []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(bytes))
}
