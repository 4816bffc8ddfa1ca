package model

import "github.com/go-gl/mathgl/mgl32"

// NewQuadMesh is the default scene: a quad covering most of the view, one colour per corner.
func NewQuadMesh() *Mesh {
	v := []Vertex{
		{Pos: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
		{Pos: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
		{Pos: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
		{Pos: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}},
	}
	id := []uint32{
		0, 1, 2,
		2, 3, 0,
	}
	return NewMesh(v, id)
}

// NewCubeMesh is a unit cube around the origin. Without a camera it shows up as its front face, which is
// enough to tell the index buffer is bound correctly.
func NewCubeMesh() *Mesh {
	v := []Vertex{
		{Pos: mgl32.Vec3{-0.5, -0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
		{Pos: mgl32.Vec3{0.5, -0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}},
		{Pos: mgl32.Vec3{0.5, 0.5, -0.5}, Color: mgl32.Vec3{0, 0, 1}},
		{Pos: mgl32.Vec3{-0.5, 0.5, -0.5}, Color: mgl32.Vec3{1, 0.5, 1}},
		{Pos: mgl32.Vec3{-0.5, -0.5, 0.5}, Color: mgl32.Vec3{1, 0.5, 0.5}},
		{Pos: mgl32.Vec3{0.5, -0.5, 0.5}, Color: mgl32.Vec3{0.5, 1, 0.5}},
		{Pos: mgl32.Vec3{0.5, 0.5, 0.5}, Color: mgl32.Vec3{0.5, 0.5, 1}},
		{Pos: mgl32.Vec3{-0.5, 0.5, 0.5}, Color: mgl32.Vec3{0, 0.5, 0}},
	}
	id := []uint32{
		2, 1, 0, 0, 3, 2, // front
		5, 1, 6, 1, 2, 6, // right
		4, 5, 6, 7, 4, 6, // back
		4, 7, 0, 0, 7, 3, // left
		0, 1, 5, 5, 4, 0, // top
		3, 7, 6, 2, 3, 6, // bottom
	}
	return NewMesh(v, id)
}
