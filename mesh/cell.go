package mesh

import (
	"fmt"

	"github.com/notargets/dfem/utils"
)

// CellType is the reference shape of a cell. The numeric values are the
// ones stored in the native Cells file.
type CellType int

const (
	Point CellType = iota
	Line
	Triangle
	Quad
	Tet
	Hex
	Prism
)

func (e CellType) String() string {
	if e < Point || e > Prism {
		return fmt.Sprintf("CellType(%d)", int(e))
	}
	return [...]string{"Point", "Line", "Triangle", "Quad", "Tet", "Hex", "Prism"}[e]
}

// Dim is the topological dimension of the reference shape.
func (e CellType) Dim() int {
	switch e {
	case Point:
		return 0
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	default:
		return 3
	}
}

type cellKey struct {
	t     CellType
	order int
}

var cellNodeCount = map[cellKey]int{
	{Point, 1}:    1,
	{Line, 1}:     2,
	{Line, 2}:     3,
	{Triangle, 1}: 3,
	{Triangle, 2}: 6,
	{Quad, 1}:     4,
	{Quad, 2}:     8,
	{Tet, 1}:      4,
	{Tet, 2}:      10,
	{Hex, 1}:      8,
	{Hex, 2}:      20,
	{Prism, 1}:    6,
}

// NumCellNodes returns the node count of a (type, order) pair, ok is false
// for combinations that have no definition.
func NumCellNodes(t CellType, order int) (n int, ok bool) {
	n, ok = cellNodeCount[cellKey{t, order}]
	return
}

// Cell is an immutable cell record. Its nodes occupy
// conn[FirstNode : FirstNode+NumNodes] of the owning mesh.
type Cell struct {
	ID        int
	Type      CellType
	Order     int
	RegionTag int
	FirstNode int
	NumNodes  int
}

func NewCell(id int, t CellType, order, regionTag, firstNode int) (c Cell, err error) {
	n, ok := NumCellNodes(t, order)
	if !ok {
		err = utils.InvalidCellError(id, int(t), order)
		return
	}
	c = Cell{
		ID:        id,
		Type:      t,
		Order:     order,
		RegionTag: regionTag,
		FirstNode: firstNode,
		NumNodes:  n,
	}
	return
}

// Region groups cells by tag for kernel assignment and node selection.
type Region struct {
	Name string
	Dim  int
	Tag  int
}
