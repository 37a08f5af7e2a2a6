package mesh

import (
	"fmt"
	"math"
)

// Region tags of the generated meshes.
const (
	TagDomain = iota
	TagLeft
	TagRight
	TagBottom
	TagTop
)

var boundaryNames = [...]string{"domain", "left", "right", "bottom", "top"}

// Bar is a 1D mesh of n LINE1 cells on [0, length] with POINT cells at the
// ends in regions "left" and "right".
func Bar(n int, length float64) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("bar needs at least one cell, got %d", n)
	}
	xpts := make([]float64, 3*(n+1))
	for i := 0; i <= n; i++ {
		xpts[3*i] = length * float64(i) / float64(n)
	}
	var (
		cells []Cell
		conn  []int
	)
	add := func(t CellType, tag int, nodes ...int) error {
		c, err := NewCell(len(cells), t, 1, tag, len(conn))
		if err != nil {
			return err
		}
		cells = append(cells, c)
		conn = append(conn, nodes...)
		return nil
	}
	for i := 0; i < n; i++ {
		if err := add(Line, TagDomain, i, i+1); err != nil {
			return nil, err
		}
	}
	if err := add(Point, TagLeft, 0); err != nil {
		return nil, err
	}
	if err := add(Point, TagRight, n); err != nil {
		return nil, err
	}
	regions := []Region{
		{Name: "domain", Dim: 1, Tag: TagDomain},
		{Name: "left", Dim: 0, Tag: TagLeft},
		{Name: "right", Dim: 0, Tag: TagRight},
	}
	return NewMesh(cells, conn, xpts, regions)
}

// Rectangle is a structured TRI1 mesh of [0,lx]x[0,ly] with nx by ny quads,
// each split along its diagonal.
func Rectangle(nx, ny int, lx, ly float64) (*Mesh, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("rectangle needs at least one cell per direction, got %dx%d", nx, ny)
	}
	pts := make([][2]float64, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			pts = append(pts, [2]float64{lx * float64(i) / float64(nx), ly * float64(j) / float64(ny)})
		}
	}
	id := func(i, j int) int { return j*(nx+1) + i }
	tris := make([][3]int, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, b, c, d := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			tris = append(tris, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return Triangulated(pts, tris)
}

// Triangulated builds a TRI1 mesh from a planar triangulation of a
// rectangular box. Triangles are reoriented counter clockwise and boundary
// edges become LINE1 cells in regions left, right, bottom and top.
func Triangulated(pts [][2]float64, tris [][3]int) (*Mesh, error) {
	if len(pts) == 0 || len(tris) == 0 {
		return nil, fmt.Errorf("empty triangulation: %d points, %d triangles", len(pts), len(tris))
	}
	var (
		xmin, ymin = math.Inf(1), math.Inf(1)
		xmax, ymax = math.Inf(-1), math.Inf(-1)
	)
	for _, p := range pts {
		xmin, xmax = math.Min(xmin, p[0]), math.Max(xmax, p[0])
		ymin, ymax = math.Min(ymin, p[1]), math.Max(ymax, p[1])
	}
	tol := 1.e-9 * math.Max(xmax-xmin, ymax-ymin)

	var (
		cells []Cell
		conn  []int
	)
	type edge struct{ a, b int }
	edgeCount := make(map[edge]int)
	var edgeOrder []edge
	for _, t := range tris {
		p0, p1, p2 := pts[t[0]], pts[t[1]], pts[t[2]]
		area := (p1[0]-p0[0])*(p2[1]-p0[1]) - (p2[0]-p0[0])*(p1[1]-p0[1])
		if area < 0 {
			t[1], t[2] = t[2], t[1]
		}
		c, err := NewCell(len(cells), Triangle, 1, TagDomain, len(conn))
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
		conn = append(conn, t[0], t[1], t[2])
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			key := edge{min(a, b), max(a, b)}
			if edgeCount[key] == 0 {
				edgeOrder = append(edgeOrder, edge{a, b})
			}
			edgeCount[key]++
		}
	}
	side := func(e edge) int {
		pa, pb := pts[e.a], pts[e.b]
		switch {
		case math.Abs(pa[0]-xmin) < tol && math.Abs(pb[0]-xmin) < tol:
			return TagLeft
		case math.Abs(pa[0]-xmax) < tol && math.Abs(pb[0]-xmax) < tol:
			return TagRight
		case math.Abs(pa[1]-ymin) < tol && math.Abs(pb[1]-ymin) < tol:
			return TagBottom
		case math.Abs(pa[1]-ymax) < tol && math.Abs(pb[1]-ymax) < tol:
			return TagTop
		}
		return -1
	}
	for tag := TagLeft; tag <= TagTop; tag++ {
		for _, e := range edgeOrder {
			if edgeCount[edge{min(e.a, e.b), max(e.a, e.b)}] != 1 || side(e) != tag {
				continue
			}
			c, err := NewCell(len(cells), Line, 1, tag, len(conn))
			if err != nil {
				return nil, err
			}
			cells = append(cells, c)
			conn = append(conn, e.a, e.b)
		}
	}
	xpts := make([]float64, 3*len(pts))
	for i, p := range pts {
		xpts[3*i], xpts[3*i+1] = p[0], p[1]
	}
	regions := make([]Region, len(boundaryNames))
	for tag, name := range boundaryNames {
		regions[tag] = Region{Name: name, Dim: 1, Tag: tag}
	}
	regions[TagDomain].Dim = 2
	return NewMesh(cells, conn, xpts, regions)
}
