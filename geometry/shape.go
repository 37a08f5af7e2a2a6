package geometry

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

// Shape returns face normals and tangents of a cell from its node
// coordinates, 3 per node. Face -1 is the cell itself.
type Shape interface {
	Name() string
	FaceNormal(face int, xpts []float64) (r3.Vec, error)
	FaceTangent(face int, xpts []float64) (r3.Vec, error)
}

func NewShape(t mesh.CellType) (Shape, error) {
	switch t {
	case mesh.Point:
		return point{}, nil
	case mesh.Line:
		return line{}, nil
	case mesh.Triangle:
		return polygon{name: "Triangle", n: 3}, nil
	case mesh.Quad:
		return polygon{name: "Quad", n: 4}, nil
	case mesh.Tet:
		return solid{name: "Tet", faces: tetFaces}, nil
	case mesh.Hex:
		return solid{name: "Hex", faces: hexFaces}, nil
	case mesh.Prism:
		return solid{name: "Prism", faces: prismFaces}, nil
	}
	return nil, utils.InvalidCellError(-1, int(t), 1)
}

func node(xpts []float64, i int) r3.Vec {
	return r3.Vec{X: xpts[3*i], Y: xpts[3*i+1], Z: xpts[3*i+2]}
}

// Edge is the vector from node i to node j.
func Edge(xpts []float64, i, j int) r3.Vec {
	return r3.Sub(node(xpts, j), node(xpts, i))
}

func UnitTangent(v r3.Vec) r3.Vec {
	return r3.Unit(v)
}

// UnitNormal rotates v a quarter turn in the x-y plane and normalizes by
// the length of v.
func UnitNormal(v r3.Vec) r3.Vec {
	mag := r3.Norm(v)
	return r3.Vec{X: -v.Y / mag, Y: v.X / mag, Z: v.Z / mag}
}

type point struct{}

func (point) Name() string { return "Point" }

func (point) FaceNormal(int, []float64) (r3.Vec, error) { return r3.Vec{X: 1, Y: 1, Z: 1}, nil }

func (point) FaceTangent(int, []float64) (r3.Vec, error) { return r3.Vec{X: 1, Y: 1, Z: 1}, nil }

type line struct{}

func (line) Name() string { return "Line" }

func (l line) FaceNormal(face int, xpts []float64) (r3.Vec, error) {
	switch face {
	case 0:
		return UnitTangent(Edge(xpts, 0, 1)), nil
	case 1:
		return UnitTangent(Edge(xpts, 1, 0)), nil
	case -1:
		return UnitNormal(Edge(xpts, 0, 1)), nil
	}
	return r3.Vec{}, utils.InvalidFaceError(l.Name(), face)
}

func (l line) FaceTangent(face int, xpts []float64) (r3.Vec, error) {
	switch face {
	case 0:
		return UnitTangent(Edge(xpts, 0, 1)), nil
	case 1:
		return UnitTangent(Edge(xpts, 1, 0)), nil
	}
	return r3.Vec{}, utils.InvalidFaceError(l.Name(), face)
}

// polygon faces are its edges, edge k runs from vertex k to vertex k+1
type polygon struct {
	name string
	n    int
}

func (p polygon) Name() string { return p.name }

func (p polygon) FaceNormal(face int, xpts []float64) (r3.Vec, error) {
	switch {
	case face == -1:
		return r3.Unit(r3.Cross(Edge(xpts, 0, 1), Edge(xpts, 0, 2))), nil
	case face >= 0 && face < p.n:
		return UnitNormal(Edge(xpts, face, (face+1)%p.n)), nil
	}
	return r3.Vec{}, utils.InvalidFaceError(p.name, face)
}

func (p polygon) FaceTangent(face int, xpts []float64) (r3.Vec, error) {
	if face < 0 || face >= p.n {
		return r3.Vec{}, utils.InvalidFaceError(p.name, face)
	}
	return UnitTangent(Edge(xpts, face, (face+1)%p.n)), nil
}

// Face vertices are ordered so that the normal points out of a positively
// oriented cell.
var (
	tetFaces   = [][]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}
	hexFaces   = [][]int{{0, 3, 2, 1}, {0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {0, 4, 7, 3}, {4, 5, 6, 7}}
	prismFaces = [][]int{{0, 2, 1}, {3, 4, 5}, {0, 1, 4, 3}, {1, 2, 5, 4}, {0, 3, 5, 2}}
)

type solid struct {
	name  string
	faces [][]int
}

func (s solid) Name() string { return s.name }

func (s solid) FaceNormal(face int, xpts []float64) (r3.Vec, error) {
	if face < 0 || face >= len(s.faces) {
		return r3.Vec{}, utils.InvalidFaceError(s.name, face)
	}
	f := s.faces[face]
	return r3.Unit(r3.Cross(Edge(xpts, f[0], f[1]), Edge(xpts, f[0], f[2]))), nil
}

func (s solid) FaceTangent(face int, xpts []float64) (r3.Vec, error) {
	if face < 0 || face >= len(s.faces) {
		return r3.Vec{}, utils.InvalidFaceError(s.name, face)
	}
	f := s.faces[face]
	return UnitTangent(Edge(xpts, f[0], f[1])), nil
}
