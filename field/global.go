package field

import (
	"context"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
)

type ownedValues struct {
	Nodes  []int // global ids
	Values []float64
}

// AssembleGlobalValues gathers the owned values of every rank onto the
// root in global DOF order. Other ranks receive nil.
func AssembleGlobalValues(ctx context.Context, comm *parallel.Comm, f *Field) (global []float64, err error) {
	nv := f.NumVars()
	mine := ownedValues{
		Nodes:  f.Mesh().OwnedNodes(mesh.Global),
		Values: append([]float64(nil), f.Values()[:f.NumOwnedDof()]...),
	}
	if comm.Size() == 1 {
		global = make([]float64, f.NumGlobalDof())
		place(global, mine, nv)
		return
	}
	all, err := parallel.Gather(ctx, comm, parallel.Root, mine)
	if err != nil || all == nil {
		return
	}
	global = make([]float64, f.NumGlobalDof())
	for _, part := range all {
		place(global, part, nv)
	}
	return
}

func place(global []float64, ov ownedValues, nv int) {
	for i, n := range ov.Nodes {
		copy(global[n*nv:(n+1)*nv], ov.Values[i*nv:(i+1)*nv])
	}
}
