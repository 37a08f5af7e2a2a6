package mesh

import (
	"testing"

	"github.com/notargets/dfem/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell(t *testing.T) {
	for _, tc := range []struct {
		t     CellType
		order int
		n     int
	}{
		{Point, 1, 1}, {Line, 1, 2}, {Line, 2, 3}, {Triangle, 1, 3}, {Triangle, 2, 6},
		{Quad, 1, 4}, {Quad, 2, 8}, {Tet, 1, 4}, {Tet, 2, 10}, {Hex, 1, 8}, {Hex, 2, 20},
		{Prism, 1, 6},
	} {
		c, err := NewCell(7, tc.t, tc.order, 3, 11)
		require.NoError(t, err, tc.t.String())
		assert.Equal(t, Cell{ID: 7, Type: tc.t, Order: tc.order, RegionTag: 3, FirstNode: 11, NumNodes: tc.n}, c)
	}
	for _, bad := range [][2]int{{int(Point), 2}, {int(Prism), 2}, {int(Tet), 3}, {9, 1}, {-1, 1}} {
		_, err := NewCell(0, CellType(bad[0]), bad[1], 0, 0)
		assert.ErrorIs(t, err, utils.ErrInvalidCell)
	}
	assert.Equal(t, "Tet", Tet.String())
	assert.Equal(t, "CellType(12)", CellType(12).String())
}

func TestIndexMap(t *testing.T) {
	l2g := []int{10, 3, 7, 0}
	l2r := []int{0, 1, 2, 5}
	im, err := NewIndexMap(l2g, l2r)
	require.NoError(t, err)
	for local := range l2g {
		g, err := im.ToSpace(Global, local)
		require.NoError(t, err)
		back, ok := im.ToLocal(Global, g)
		assert.True(t, ok)
		assert.Equal(t, local, back)
		r, err := im.ToSpace(Renumbered, local)
		require.NoError(t, err)
		assert.Equal(t, l2r[local], r)
	}
	_, ok := im.ToLocal(Global, 4)
	assert.False(t, ok)
	_, err = im.ToSpace(Global, 4)
	assert.Error(t, err)
	_, err = im.ToSpace(IndexSpace(9), 0)
	assert.Error(t, err)

	nodes := []int{3, 0, 2}
	require.NoError(t, im.MapInPlace(Global, nodes))
	assert.Equal(t, []int{0, 10, 7}, nodes)
	assert.Error(t, im.MapInPlace(Renumbered, []int{8}))

	_, err = NewIndexMap([]int{0, 1}, []int{0})
	assert.ErrorIs(t, err, utils.ErrInvalidSize)
	_, err = NewIndexMap([]int{0, 0}, []int{0, 1})
	assert.Error(t, err)

	id := IdentityIndexMap(3)
	for _, s := range []IndexSpace{Local, Global, Renumbered} {
		nodes := []int{2, 0, 1}
		require.NoError(t, id.MapInPlace(s, nodes))
		assert.Equal(t, []int{2, 0, 1}, nodes)
	}
}

func TestMesh(t *testing.T) {
	{ // Unit square, two triangles and four boundary lines
		m, err := Rectangle(1, 1, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Dim())
		assert.Equal(t, 4, m.NumNodes())
		assert.Equal(t, 4, m.NumNodesOwned())
		assert.Equal(t, 0, m.NumNodesGhost())
		assert.Equal(t, 6, m.NumCells())
		assert.Equal(t, 6+8, m.ConnSize())

		domain, err := m.RegionCells("domain")
		require.NoError(t, err)
		assert.Len(t, domain, 2)
		nodes, xpts, err := m.CellNodes(domain[0], Global)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 3}, nodes)
		assert.Equal(t, []float64{0, 0, 0, 1, 0, 0, 1, 1, 0}, xpts)

		left, err := m.RegionNodes("left", Renumbered)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{0, 2}, left)
		all, err := m.RegionNodes("domain", Local)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 3, 2}, all)

		_, err = m.RegionNodes("nowhere", Local)
		assert.ErrorIs(t, err, utils.ErrUnknownRegion)
		assert.Equal(t, []int{0, 1, 2, 3}, m.OwnedNodes(Global))
		assert.Empty(t, m.GhostNodes(Global))
	}
	{ // Partitioned view, one owned node and two ghosts
		c, err := NewCell(4, Triangle, 1, 0, 0)
		require.NoError(t, err)
		im, err := NewIndexMap([]int{5, 1, 9}, []int{2, 0, 7})
		require.NoError(t, err)
		xpts := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
		m, err := NewPartitionedMesh(12, []Cell{c}, []int{0, 1, 2}, 1, 2, 10, xpts,
			[]Region{{"domain", 2, 0}}, im)
		require.NoError(t, err)
		assert.True(t, m.IsNodeOwned(0))
		assert.False(t, m.IsNodeOwned(1))
		assert.Equal(t, []int{1, 9}, m.GhostNodes(Global))
		assert.Equal(t, []int{2}, m.OwnedNodes(Renumbered))
		nodes, _, err := m.CellNodes(c, Renumbered)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 0, 7}, nodes)
		assert.Equal(t, 12, m.NumCellsGlobal())
		assert.Equal(t, 10, m.NumNodesGlobal())

		_, err = NewPartitionedMesh(12, []Cell{c}, []int{0, 1, 2}, 2, 2, 10, xpts, nil, im)
		assert.ErrorIs(t, err, utils.ErrInvalidSize)
		_, err = NewPartitionedMesh(12, []Cell{c}, []int{0, 1, 3}, 1, 2, 10, xpts, nil, im)
		assert.Error(t, err)
	}
	{ // Bar
		m, err := Bar(4, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Dim())
		assert.Equal(t, 5, m.NumNodes())
		right, err := m.RegionNodes("right", Global)
		require.NoError(t, err)
		assert.Equal(t, []int{4}, right)
		assert.Equal(t, 2., m.Coordinates()[3*4])
	}
}

func TestTriangulatedOrientation(t *testing.T) {
	pts := [][2]float64{{0, 0}, {2, 0}, {2, 1}, {0, 1}}
	// Clockwise input is flipped
	m, err := Triangulated(pts, [][3]int{{0, 2, 1}, {0, 3, 2}})
	require.NoError(t, err)
	for _, c := range m.Cells()[:2] {
		_, x, err := m.CellNodes(c, Local)
		require.NoError(t, err)
		area := (x[3]-x[0])*(x[7]-x[1]) - (x[6]-x[0])*(x[4]-x[1])
		assert.Greater(t, area, 0.)
	}
	for _, name := range []string{"left", "right", "bottom", "top"} {
		cells, err := m.RegionCells(name)
		require.NoError(t, err)
		assert.Len(t, cells, 1, name)
	}
}
