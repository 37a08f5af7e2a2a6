package partition

import (
	"fmt"
	"sort"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/dfem/utils"
)

// GraphPartitioner assigns every cell and every node to a partition.
// Connectivity is given in compressed form, the nodes of cell c are
// eind[eptr[c]:eptr[c+1]].
type GraphPartitioner interface {
	Partition(eptr, eind []int, nNodes, nParts int) (cellPart, nodePart []int, err error)
}

func checkGraph(eptr, eind []int, nNodes, nParts int) error {
	if nParts < 1 {
		return utils.InvalidSizeError(1, nParts)
	}
	if len(eptr) == 0 || eptr[len(eptr)-1] != len(eind) {
		return fmt.Errorf("malformed cell connectivity: %d offsets for %d node ids", len(eptr), len(eind))
	}
	for _, n := range eind {
		if n < 0 || n >= nNodes {
			return fmt.Errorf("cell connectivity references node %d of %d", n, nNodes)
		}
	}
	return nil
}

// BlockPartitioner splits the cells into contiguous blocks of nearly equal
// size. A node belongs to the partition of the first cell referencing it.
type BlockPartitioner struct{}

func (BlockPartitioner) Partition(eptr, eind []int, nNodes, nParts int) (cellPart, nodePart []int, err error) {
	if err = checkGraph(eptr, eind, nNodes, nParts); err != nil {
		return
	}
	nCells := len(eptr) - 1
	cellPart = make([]int, nCells)
	pm := utils.NewPartitionMap(nParts, nCells)
	for c := range cellPart {
		cellPart[c], _, _ = pm.GetBucket(c)
	}
	nodePart = make([]int, nNodes)
	for n := range nodePart {
		nodePart[n] = -1
	}
	for c := 0; c < nCells; c++ {
		for _, n := range eind[eptr[c]:eptr[c+1]] {
			if nodePart[n] == -1 {
				nodePart[n] = cellPart[c]
			}
		}
	}
	// Unreferenced nodes
	pmN := utils.NewPartitionMap(nParts, nNodes)
	for n, p := range nodePart {
		if p == -1 {
			nodePart[n], _, _ = pmN.GetBucket(n)
		}
	}
	return
}

// PartitionConfig holds configuration for METIS partitioning
type PartitionConfig struct {
	NumPartitions    int32
	ImbalanceFactor  float32 // e.g., 1.05 for 5% imbalance
	UseEdgeWeights   bool
	UseVertexWeights bool
	Objective        string // "cut" or "vol"
}

func DefaultPartitionConfig(nparts int32) *PartitionConfig {
	return &PartitionConfig{
		NumPartitions:    nparts,
		ImbalanceFactor:  1.05,
		UseEdgeWeights:   true,
		UseVertexWeights: true,
		Objective:        "vol", // minimize communication volume
	}
}

// MetisPartitioner partitions the nodal graph with METIS. Two nodes are
// adjacent when they share a cell, edges are weighted by the number of
// shared cells and vertices by the number of incident cells. A cell goes to
// the partition holding most of its nodes.
type MetisPartitioner struct {
	Config *PartitionConfig
	// Objval is the edge cut or communication volume of the last call
	Objval int32
}

func NewMetisPartitioner(config *PartitionConfig) *MetisPartitioner {
	if config == nil {
		config = DefaultPartitionConfig(1)
	}
	return &MetisPartitioner{Config: config}
}

func (mp *MetisPartitioner) Partition(eptr, eind []int, nNodes, nParts int) (cellPart, nodePart []int, err error) {
	if err = checkGraph(eptr, eind, nNodes, nParts); err != nil {
		return
	}
	nCells := len(eptr) - 1
	if nParts == 1 {
		return make([]int, nCells), make([]int, nNodes), nil
	}
	xadj, adjncy, vwgt, adjwgt := buildNodalGraph(eptr, eind, nNodes)

	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if mp.Config.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}
	ubvec := []float32{mp.Config.ImbalanceFactor}

	var vwgtPtr, adjwgtPtr []int32
	if mp.Config.UseVertexWeights {
		vwgtPtr = vwgt
	}
	if mp.Config.UseEdgeWeights {
		adjwgtPtr = adjwgt
	}
	part, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, vwgtPtr, adjwgtPtr,
		int32(nParts), nil, ubvec, opts,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	mp.Objval = objval

	nodePart = make([]int, nNodes)
	for n := range nodePart {
		nodePart[n] = int(part[n])
	}
	cellPart = majorityCellPartition(eptr, eind, nodePart, nParts)
	return
}

// buildNodalGraph converts cell connectivity to the METIS CSR graph of nodes
func buildNodalGraph(eptr, eind []int, nNodes int) (xadj, adjncy, vwgt, adjwgt []int32) {
	adj := make([]map[int]int32, nNodes)
	vwgt = make([]int32, nNodes)
	for c := 0; c < len(eptr)-1; c++ {
		nodes := eind[eptr[c]:eptr[c+1]]
		for i, a := range nodes {
			vwgt[a]++
			for j, b := range nodes {
				if i == j || a == b {
					continue
				}
				if adj[a] == nil {
					adj[a] = make(map[int]int32)
				}
				adj[a][b]++
			}
		}
	}
	xadj = make([]int32, nNodes+1)
	for n := 0; n < nNodes; n++ {
		if vwgt[n] == 0 {
			vwgt[n] = 1
		}
		nbrs := make([]int, 0, len(adj[n]))
		for b := range adj[n] {
			nbrs = append(nbrs, b)
		}
		sort.Ints(nbrs)
		for _, b := range nbrs {
			adjncy = append(adjncy, int32(b))
			adjwgt = append(adjwgt, adj[n][b])
		}
		xadj[n+1] = int32(len(adjncy))
	}
	return
}

// majorityCellPartition places each cell with the partition owning most of
// its nodes, ties go to the lowest partition id.
func majorityCellPartition(eptr, eind, nodePart []int, nParts int) (cellPart []int) {
	cellPart = make([]int, len(eptr)-1)
	count := make([]int, nParts)
	for c := range cellPart {
		for i := range count {
			count[i] = 0
		}
		for _, n := range eind[eptr[c]:eptr[c+1]] {
			count[nodePart[n]]++
		}
		best := 0
		for p := 1; p < nParts; p++ {
			if count[p] > count[best] {
				best = p
			}
		}
		cellPart[c] = best
	}
	return
}
