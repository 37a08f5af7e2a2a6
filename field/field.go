package field

import (
	"fmt"
	"sort"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

// Field carries nVars values per mesh node. The DOF of variable v at node
// n is n*nVars+v in every index space.
type Field struct {
	name   string
	nVars  int
	mesh   *mesh.Mesh // not owned
	values []float64  // owned then ghost, local DOF order
	fixed  map[int]float64
}

func NewField(name string, nVars int, m *mesh.Mesh) (*Field, error) {
	if m == nil {
		return nil, fmt.Errorf("field %s: nil mesh", name)
	}
	if nVars < 1 {
		return nil, utils.InvalidSizeError(1, nVars)
	}
	return &Field{
		name:   name,
		nVars:  nVars,
		mesh:   m,
		values: make([]float64, m.NumNodes()*nVars),
		fixed:  make(map[int]float64),
	}, nil
}

func (f *Field) Name() string      { return f.name }
func (f *Field) NumVars() int      { return f.nVars }
func (f *Field) Mesh() *mesh.Mesh  { return f.mesh }
func (f *Field) NumDof() int       { return f.mesh.NumNodes() * f.nVars }
func (f *Field) NumOwnedDof() int  { return f.mesh.NumNodesOwned() * f.nVars }
func (f *Field) NumGhostDof() int  { return f.mesh.NumNodesGhost() * f.nVars }
func (f *Field) NumGlobalDof() int { return f.mesh.NumNodesGlobal() * f.nVars }
func (f *Field) Values() []float64 { return f.values }

func (f *Field) SetValues(v []float64) error {
	if len(v) != len(f.values) {
		return utils.InvalidSizeError(len(f.values), len(v))
	}
	copy(f.values, v)
	return nil
}

// Fill sets every node to the same per variable values.
func (f *Field) Fill(perVar []float64) error {
	if len(perVar) != f.nVars {
		return utils.InvalidSizeError(f.nVars, len(perVar))
	}
	for i := range f.values {
		f.values[i] = perVar[i%f.nVars]
	}
	return nil
}

// NodeDof expands nodes into their DOF, node major.
func (f *Field) NodeDof(nodes []int) (dof []int) {
	dof = make([]int, 0, len(nodes)*f.nVars)
	for _, n := range nodes {
		for v := 0; v < f.nVars; v++ {
			dof = append(dof, n*f.nVars+v)
		}
	}
	return
}

func (f *Field) OwnedDof(space mesh.IndexSpace) []int {
	return f.NodeDof(f.mesh.OwnedNodes(space))
}

func (f *Field) GhostDof(space mesh.IndexSpace) []int {
	return f.NodeDof(f.mesh.GhostNodes(space))
}

// CellDof returns the DOF of the cell's nodes in space, node major and
// variable minor. Kernels rely on this order.
func (f *Field) CellDof(c mesh.Cell, space mesh.IndexSpace) ([]int, error) {
	nodes, _, err := f.mesh.CellNodes(c, space)
	if err != nil {
		return nil, err
	}
	return f.NodeDof(nodes), nil
}

// CellValues gathers the current local values of the cell's DOF.
func (f *Field) CellValues(c mesh.Cell) ([]float64, error) {
	dof, err := f.CellDof(c, mesh.Local)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, len(dof))
	for i, d := range dof {
		vals[i] = f.values[d]
	}
	return vals, nil
}

// AddFixedDof prescribes value for variable v on every node of region.
// The DOF are recorded in renumbered space, a later call for the same DOF
// overwrites it.
func (f *Field) AddFixedDof(region string, v int, value float64) error {
	if v < 0 || v >= f.nVars {
		return utils.InvalidSizeError(f.nVars, v)
	}
	nodes, err := f.mesh.RegionNodes(region, mesh.Renumbered)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		f.fixed[n*f.nVars+v] = value
	}
	return nil
}

// FixedDof lists the prescribed DOF ascending, in renumbered space.
func (f *Field) FixedDof() (dof []int, values []float64) {
	dof = make([]int, 0, len(f.fixed))
	for d := range f.fixed {
		dof = append(dof, d)
	}
	sort.Ints(dof)
	values = make([]float64, len(dof))
	for i, d := range dof {
		values[i] = f.fixed[d]
	}
	return
}

func (f *Field) ClearFixedDof() {
	f.fixed = make(map[int]float64)
}
