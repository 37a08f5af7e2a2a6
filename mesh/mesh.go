package mesh

import (
	"fmt"

	"github.com/notargets/dfem/utils"
)

// Mesh holds cells, connectivity and coordinates of one rank. Geometry is
// stored once in local node order, the other index spaces only relabel it.
// A Mesh is not modified after construction.
type Mesh struct {
	cells   []Cell
	conn    []int     // local node ids, cell c owns conn[c.FirstNode:c.FirstNode+c.NumNodes]
	xpts    []float64 // 3 components per local node
	regions []Region
	index   *IndexMap

	nOwned, nGhost int
	nNodesGlobal   int
	nCellsGlobal   int
	dim            int
}

// NewMesh builds a single partition mesh where local, global and renumbered
// ids coincide.
func NewMesh(cells []Cell, conn []int, xpts []float64, regions []Region) (m *Mesh, err error) {
	nNodes := len(xpts) / 3
	return NewPartitionedMesh(len(cells), cells, conn, nNodes, 0, nNodes, xpts, regions,
		IdentityIndexMap(nNodes))
}

// NewPartitionedMesh builds the view of one rank. Nodes [0,nOwned) are
// owned, [nOwned,nOwned+nGhost) are ghosts owned by other ranks.
func NewPartitionedMesh(nCellsGlobal int, cells []Cell, conn []int, nOwned, nGhost, nNodesGlobal int,
	xpts []float64, regions []Region, index *IndexMap) (m *Mesh, err error) {
	nLocal := nOwned + nGhost
	if len(xpts) != 3*nLocal {
		return nil, utils.InvalidSizeError(3*nLocal, len(xpts))
	}
	if index == nil || index.Len() != nLocal {
		got := 0
		if index != nil {
			got = index.Len()
		}
		return nil, utils.InvalidSizeError(nLocal, got)
	}
	for _, c := range cells {
		if c.FirstNode < 0 || c.FirstNode+c.NumNodes > len(conn) {
			return nil, utils.InvalidSizeError(c.FirstNode+c.NumNodes, len(conn))
		}
		for _, n := range conn[c.FirstNode : c.FirstNode+c.NumNodes] {
			if n < 0 || n >= nLocal {
				return nil, fmt.Errorf("cell %d references node %d which is not present locally", c.ID, n)
			}
		}
	}
	m = &Mesh{
		cells:        cells,
		conn:         conn,
		xpts:         xpts,
		regions:      regions,
		index:        index,
		nOwned:       nOwned,
		nGhost:       nGhost,
		nNodesGlobal: nNodesGlobal,
		nCellsGlobal: nCellsGlobal,
	}
	for _, r := range regions {
		if r.Dim > m.dim {
			m.dim = r.Dim
		}
	}
	if len(regions) == 0 {
		for _, c := range cells {
			if d := c.Type.Dim(); d > m.dim {
				m.dim = d
			}
		}
	}
	return
}

func (m *Mesh) Dim() int            { return m.dim }
func (m *Mesh) NumCells() int       { return len(m.cells) }
func (m *Mesh) NumCellsGlobal() int { return m.nCellsGlobal }
func (m *Mesh) NumNodes() int       { return m.nOwned + m.nGhost }
func (m *Mesh) NumNodesOwned() int  { return m.nOwned }
func (m *Mesh) NumNodesGhost() int  { return m.nGhost }
func (m *Mesh) NumNodesGlobal() int { return m.nNodesGlobal }
func (m *Mesh) ConnSize() int       { return len(m.conn) }
func (m *Mesh) Cells() []Cell       { return m.cells }
func (m *Mesh) Regions() []Region   { return m.regions }
func (m *Mesh) Index() *IndexMap    { return m.index }

// Coordinates returns the local coordinate array, read only.
func (m *Mesh) Coordinates() []float64 { return m.xpts }

// Connectivity returns the local connectivity array, read only.
func (m *Mesh) Connectivity() []int { return m.conn }

// IsNodeOwned is only meaningful for local indices.
func (m *Mesh) IsNodeOwned(local int) bool { return local < m.nOwned }

// CellNodes returns the cell's nodes in the requested space together with
// their coordinates, 3 per node.
func (m *Mesh) CellNodes(c Cell, space IndexSpace) (nodes []int, xpts []float64, err error) {
	local := m.conn[c.FirstNode : c.FirstNode+c.NumNodes]
	nodes = make([]int, len(local))
	copy(nodes, local)
	xpts = make([]float64, 3*len(local))
	for i, n := range local {
		copy(xpts[3*i:3*i+3], m.xpts[3*n:3*n+3])
	}
	if err = m.index.MapInPlace(space, nodes); err != nil {
		return nil, nil, err
	}
	return
}

// MapLocalNodes rewrites local node ids into space.
func (m *Mesh) MapLocalNodes(space IndexSpace, nodes []int) error {
	return m.index.MapInPlace(space, nodes)
}

func (m *Mesh) rangeNodes(space IndexSpace, lo, hi int) (nodes []int) {
	nodes = make([]int, hi-lo)
	for i := range nodes {
		nodes[i] = lo + i
	}
	// local ids are in range by construction
	_ = m.index.MapInPlace(space, nodes)
	return
}

func (m *Mesh) OwnedNodes(space IndexSpace) []int {
	return m.rangeNodes(space, 0, m.nOwned)
}

func (m *Mesh) GhostNodes(space IndexSpace) []int {
	return m.rangeNodes(space, m.nOwned, m.nOwned+m.nGhost)
}

func (m *Mesh) Region(name string) (Region, error) {
	for _, r := range m.regions {
		if r.Name == name {
			return r, nil
		}
	}
	return Region{}, utils.UnknownRegionError(name)
}

// RegionCells returns the local cells tagged with the region's tag, in
// mesh order.
func (m *Mesh) RegionCells(name string) (cells []Cell, err error) {
	r, err := m.Region(name)
	if err != nil {
		return nil, err
	}
	for _, c := range m.cells {
		if c.RegionTag == r.Tag {
			cells = append(cells, c)
		}
	}
	return
}

// RegionNodes returns each node of the region's cells once, in first seen
// order.
func (m *Mesh) RegionNodes(name string, space IndexSpace) (nodes []int, err error) {
	cells, err := m.RegionCells(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{})
	for _, c := range cells {
		for _, n := range m.conn[c.FirstNode : c.FirstNode+c.NumNodes] {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			nodes = append(nodes, n)
		}
	}
	if err = m.index.MapInPlace(space, nodes); err != nil {
		return nil, err
	}
	return
}

func (m *Mesh) Info(log *utils.Logger) {
	log.Infof("mesh: dim %d, %d owned + %d ghost nodes (%d global), %d cells (%d global), %d regions",
		m.dim, m.nOwned, m.nGhost, m.nNodesGlobal, len(m.cells), m.nCellsGlobal, len(m.regions))
	for _, r := range m.regions {
		var n int
		for _, c := range m.cells {
			if c.RegionTag == r.Tag {
				n++
			}
		}
		log.Infof("  region %-16s dim %d tag %3d cells %d", r.Name, r.Dim, r.Tag, n)
	}
}
