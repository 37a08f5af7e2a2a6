package la

import (
	"context"
	"math"

	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
)

// SparsityPattern is the per owned DOF row count of nonzeros whose column
// is owned here (Diag) and owned elsewhere (Offdiag). Counts are upper
// bounds, a node pair seen from two ranks is counted on both.
type SparsityPattern struct {
	Diag    []int
	Offdiag []int
}

func (sp *SparsityPattern) NNZ() (n int) {
	for i := range sp.Diag {
		n += sp.Diag[i] + sp.Offdiag[i]
	}
	return
}

// ComputeSparsity counts the node pairs coupled through local cells. Pairs
// in ghost rows are sent to the owner of the row and land in its diagonal
// count. Collective.
func ComputeSparsity(ctx context.Context, comm *parallel.Comm, f *field.Field) (sp *SparsityPattern, err error) {
	var (
		m      = f.Mesh()
		nNodes = m.NumNodes()
		nOwned = m.NumNodesOwned()
		nv     = f.NumVars()
		adj    = make([]map[int]struct{}, nNodes)
	)
	for i := range adj {
		adj[i] = make(map[int]struct{})
	}
	for _, c := range m.Cells() {
		var nodes []int
		if nodes, _, err = m.CellNodes(c, mesh.Local); err != nil {
			return
		}
		for _, a := range nodes {
			for _, b := range nodes {
				adj[a][b] = struct{}{}
			}
		}
	}

	var (
		diag   = make([]int, nOwned)
		off    = make([]int, nOwned)
		ghosts = m.GhostNodes(mesh.Renumbered)
	)
	counts, err := NewVector(ctx, comm, nOwned, ghosts)
	if err != nil {
		return
	}
	for a := 0; a < nNodes; a++ {
		if a < nOwned {
			for b := range adj[a] {
				if m.IsNodeOwned(b) {
					diag[a]++
				} else {
					off[a]++
				}
			}
			continue
		}
		if err = counts.AddValues([]int{ghosts[a-nOwned]}, []float64{float64(len(adj[a]))}); err != nil {
			return
		}
	}
	if err = counts.Assemble(ctx); err != nil {
		return
	}
	for a, n := range counts.Owned() {
		diag[a] += int(math.Round(n))
	}

	sp = &SparsityPattern{
		Diag:    make([]int, 0, nOwned*nv),
		Offdiag: make([]int, 0, nOwned*nv),
	}
	for a := 0; a < nOwned; a++ {
		for v := 0; v < nv; v++ {
			sp.Diag = append(sp.Diag, diag[a]*nv)
			sp.Offdiag = append(sp.Offdiag, off[a]*nv)
		}
	}
	return
}
