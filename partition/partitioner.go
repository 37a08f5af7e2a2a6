package partition

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

// Part is the result for one partition, all ids are global.
type Part struct {
	Cells   []int // ascending
	ConnLen int   // total node count of Cells
	Owned   []int // ascending
	Ghost   []int // first seen order over Cells
}

// MeshPartitioner splits a serial mesh into parts that ranks load
// independently.
type MeshPartitioner struct {
	mesh   *mesh.Mesh
	nParts int
	oracle GraphPartitioner
	log    *utils.Logger

	cellPart, nodePart []int
	Parts              []Part
	Renumbered         []int // global node id -> renumbered id
}

func NewMeshPartitioner(m *mesh.Mesh, nParts int, oracle GraphPartitioner, log *utils.Logger) (*MeshPartitioner, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mesh")
	}
	if nParts < 1 {
		return nil, utils.InvalidSizeError(1, nParts)
	}
	if m.NumNodesGhost() != 0 || m.NumNodes() != m.NumNodesGlobal() {
		return nil, fmt.Errorf("mesh is already partitioned: %d owned, %d ghost, %d global nodes",
			m.NumNodesOwned(), m.NumNodesGhost(), m.NumNodesGlobal())
	}
	if oracle == nil {
		oracle = BlockPartitioner{}
	}
	if log == nil {
		log = utils.Discard(0, 1)
	}
	return &MeshPartitioner{
		mesh:   m,
		nParts: nParts,
		oracle: oracle,
		log:    log,
	}, nil
}

// Partition runs oracle assignment, cell and node assignment and the
// renumbering.
func (mp *MeshPartitioner) Partition() (err error) {
	mp.log.Infof("Partitioning mesh with %d cells and %d nodes into %d parts",
		mp.mesh.NumCells(), mp.mesh.NumNodes(), mp.nParts)
	eptr, eind := mp.connectivity()
	mp.cellPart, mp.nodePart, err = mp.oracle.Partition(eptr, eind, mp.mesh.NumNodes(), mp.nParts)
	if err != nil {
		return fmt.Errorf("graph partitioning: %w", err)
	}
	if len(mp.cellPart) != mp.mesh.NumCells() {
		return utils.InvalidSizeError(mp.mesh.NumCells(), len(mp.cellPart))
	}
	if len(mp.nodePart) != mp.mesh.NumNodes() {
		return utils.InvalidSizeError(mp.mesh.NumNodes(), len(mp.nodePart))
	}
	for _, parts := range [][]int{mp.cellPart, mp.nodePart} {
		for _, p := range parts {
			if p < 0 || p >= mp.nParts {
				return fmt.Errorf("graph partitioner returned partition %d of %d", p, mp.nParts)
			}
		}
	}
	mp.AssignCells()
	mp.AssignNodes()
	mp.RenumberNodes()
	mp.analyzePartition()
	return
}

func (mp *MeshPartitioner) connectivity() (eptr, eind []int) {
	cells := mp.mesh.Cells()
	conn := mp.mesh.Connectivity()
	eptr = make([]int, len(cells)+1)
	eind = make([]int, 0, len(conn))
	for i, c := range cells {
		eind = append(eind, conn[c.FirstNode:c.FirstNode+c.NumNodes]...)
		eptr[i+1] = len(eind)
	}
	return
}

// AssignCells groups cell ids by partition, ascending, and accumulates the
// connectivity length of each group.
func (mp *MeshPartitioner) AssignCells() {
	mp.Parts = make([]Part, mp.nParts)
	for i, c := range mp.mesh.Cells() {
		p := &mp.Parts[mp.cellPart[i]]
		p.Cells = append(p.Cells, c.ID)
		p.ConnLen += c.NumNodes
	}
	for i := range mp.Parts {
		sort.Ints(mp.Parts[i].Cells)
	}
}

// AssignNodes records the owned nodes of each partition and derives the
// ghosts: nodes referenced by an owned cell that another partition owns.
func (mp *MeshPartitioner) AssignNodes() {
	for n, p := range mp.nodePart {
		mp.Parts[p].Owned = append(mp.Parts[p].Owned, n)
	}
	byID := make(map[int]mesh.Cell, mp.mesh.NumCells())
	for _, c := range mp.mesh.Cells() {
		byID[c.ID] = c
	}
	conn := mp.mesh.Connectivity()
	for p := range mp.Parts {
		part := &mp.Parts[p]
		seen := make(map[int]struct{})
		for _, id := range part.Cells {
			c := byID[id]
			for _, n := range conn[c.FirstNode : c.FirstNode+c.NumNodes] {
				if mp.nodePart[n] == p {
					continue
				}
				if _, ok := seen[n]; ok {
					continue
				}
				seen[n] = struct{}{}
				part.Ghost = append(part.Ghost, n)
			}
		}
	}
}

// RenumberNodes numbers the owned nodes contiguously by partition rank.
func (mp *MeshPartitioner) RenumberNodes() {
	mp.Renumbered = make([]int, mp.mesh.NumNodes())
	var next int
	for _, part := range mp.Parts {
		for _, n := range part.Owned {
			mp.Renumbered[n] = next
			next++
		}
	}
}

// Stats holds statistics for a single partition
type Stats struct {
	ID        int
	NumCells  int
	NumOwned  int
	NumGhost  int
	Neighbors map[int]int // neighbor partition -> ghost nodes it owns
}

func (mp *MeshPartitioner) Stats() (stats []Stats) {
	stats = make([]Stats, len(mp.Parts))
	for p, part := range mp.Parts {
		stats[p] = Stats{
			ID:        p,
			NumCells:  len(part.Cells),
			NumOwned:  len(part.Owned),
			NumGhost:  len(part.Ghost),
			Neighbors: make(map[int]int),
		}
		for _, n := range part.Ghost {
			stats[p].Neighbors[mp.nodePart[n]]++
		}
	}
	return
}

// analyzePartition reports partition quality metrics
func (mp *MeshPartitioner) analyzePartition() {
	stats := mp.Stats()
	var (
		avgLoad          float64
		maxLoad, minLoad = 0, math.MaxInt
		totalGhost       int
	)
	for _, s := range stats {
		avgLoad += float64(s.NumCells)
		maxLoad = max(maxLoad, s.NumCells)
		minLoad = min(minLoad, s.NumCells)
		totalGhost += s.NumGhost
	}
	avgLoad /= float64(len(stats))
	imbalance := 0.
	if avgLoad > 0 {
		imbalance = float64(maxLoad)/avgLoad - 1.0
	}
	mp.log.Infof("Partition Analysis:")
	mp.log.Infof("  Load imbalance: %.2f%%", imbalance*100)
	mp.log.Infof("  Load range: [%d, %d], avg: %.1f", minLoad, maxLoad, avgLoad)
	mp.log.Infof("  Ghost nodes: %d", totalGhost)
	for _, s := range stats {
		mp.log.Infof("  Partition %d: cells %d, owned nodes %d, ghost nodes %d, neighbors %d",
			s.ID, s.NumCells, s.NumOwned, s.NumGhost, len(s.Neighbors))
	}
	for _, s := range stats {
		nbrs := make([]int, 0, len(s.Neighbors))
		for q := range s.Neighbors {
			nbrs = append(nbrs, q)
		}
		sort.Ints(nbrs)
		for _, q := range nbrs {
			mp.log.Infof("  Partition %d <- %d: %d shared nodes", s.ID, q, s.Neighbors[q])
		}
	}
}

// Write persists the CellPartition and NodePartition artifacts into dir.
func (mp *MeshPartitioner) Write(dir string) error {
	if mp.Parts == nil {
		return fmt.Errorf("mesh has not been partitioned")
	}
	if err := writeCellPartition(dir, mp.Parts); err != nil {
		return err
	}
	return writeNodePartition(dir, mp.Parts, mp.Renumbered)
}

// LocalMesh builds partition rank's mesh in memory, the same mesh a rank
// gets from reading the written artifacts.
func (mp *MeshPartitioner) LocalMesh(rank int) (*mesh.Mesh, error) {
	if mp.Parts == nil {
		return nil, fmt.Errorf("mesh has not been partitioned")
	}
	if rank < 0 || rank >= mp.nParts {
		return nil, utils.InvalidSizeError(mp.nParts, rank)
	}
	var (
		part     = mp.Parts[rank]
		nLocal   = len(part.Owned) + len(part.Ghost)
		global   = make([]int, 0, nLocal)
		renum    = make([]int, 0, nLocal)
		g2l      = make(map[int]int, nLocal)
		allXpts  = mp.mesh.Coordinates()
		xpts     = make([]float64, 0, 3*nLocal)
		allConn  = mp.mesh.Connectivity()
		allCells = mp.mesh.Cells()
		cells    = make([]mesh.Cell, 0, len(part.Cells))
		conn     = make([]int, 0, part.ConnLen)
	)
	for _, g := range append(append([]int(nil), part.Owned...), part.Ghost...) {
		g2l[g] = len(global)
		global = append(global, g)
		renum = append(renum, mp.Renumbered[g])
		xpts = append(xpts, allXpts[3*g:3*g+3]...)
	}
	byID := make(map[int]mesh.Cell, len(allCells))
	for _, c := range allCells {
		byID[c.ID] = c
	}
	for _, id := range part.Cells {
		c := byID[id]
		lc, err := mesh.NewCell(c.ID, c.Type, c.Order, c.RegionTag, len(conn))
		if err != nil {
			return nil, err
		}
		for _, n := range allConn[c.FirstNode : c.FirstNode+c.NumNodes] {
			conn = append(conn, g2l[n])
		}
		cells = append(cells, lc)
	}
	index, err := mesh.NewIndexMap(global, renum)
	if err != nil {
		return nil, err
	}
	return mesh.NewPartitionedMesh(mp.mesh.NumCells(), cells, conn, len(part.Owned), len(part.Ghost),
		mp.mesh.NumNodes(), xpts, mp.mesh.Regions(), index)
}
