package assembly

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/notargets/dfem/fe"
	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/kernel"
	"github.com/notargets/dfem/la"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/utils"
)

type ProblemType uint8

const (
	Static ProblemType = iota
	Dynamic
	Modal
)

func (p ProblemType) String() string {
	switch p {
	case Static:
		return "Static"
	case Dynamic:
		return "Dynamic"
	case Modal:
		return "Modal"
	}
	return fmt.Sprintf("ProblemType(%d)", uint8(p))
}

// HasMass is true for the problem types that carry a mass matrix.
func (p ProblemType) HasMass() bool { return p == Dynamic || p == Modal }

// Assembler owns the distributed system of one field: the solution U with
// ghosts, the load F, the stiffness K and, for Dynamic and Modal problems,
// the mass M. They are allocated once and reset by every assembly.
type Assembler struct {
	comm    *parallel.Comm
	log     *utils.Logger
	field   *field.Field
	problem ProblemType
	kernels map[string][]kernel.Kernel

	U, F *la.Vector
	K, M *la.Matrix
}

// NewAssembler allocates the system of f with the preallocation sp.
// Collective.
func NewAssembler(ctx context.Context, comm *parallel.Comm, f *field.Field, sp *la.SparsityPattern,
	problem ProblemType) (a *Assembler, err error) {
	if f == nil {
		return nil, fmt.Errorf("nil field")
	}
	a = &Assembler{
		comm:    comm,
		log:     comm.Logger(),
		field:   f,
		problem: problem,
		kernels: make(map[string][]kernel.Kernel),
	}
	layout, err := la.NewLayout(ctx, comm, f.NumOwnedDof())
	if err != nil {
		return
	}
	if layout.GlobalSize() != f.NumGlobalDof() {
		return nil, utils.InvalidSizeError(f.NumGlobalDof(), layout.GlobalSize())
	}
	if a.U, err = la.NewVectorWithLayout(ctx, layout, f.GhostDof(mesh.Renumbered)); err != nil {
		return nil, fmt.Errorf("solution vector: %w", err)
	}
	if a.F, err = la.NewVectorWithLayout(ctx, layout, nil); err != nil {
		return
	}
	if a.K, err = la.NewMatrix(ctx, layout, f.NumGlobalDof(), sp); err != nil {
		return
	}
	if problem.HasMass() {
		if a.M, err = la.NewMatrix(ctx, layout, f.NumGlobalDof(), sp); err != nil {
			return
		}
	}
	a.log.RootInfof("Assembler for field %s: %d global DOF, %s problem", f.Name(), f.NumGlobalDof(), problem)
	return
}

// AddKernel attaches k to the cells of region.
func (a *Assembler) AddKernel(region string, k kernel.Kernel) error {
	if k == nil {
		return fmt.Errorf("nil kernel for region %s", region)
	}
	if _, err := a.field.Mesh().Region(region); err != nil {
		return err
	}
	a.kernels[region] = append(a.kernels[region], k)
	return nil
}

func (a *Assembler) Field() *field.Field   { return a.field }
func (a *Assembler) Solution() *la.Vector  { return a.U }
func (a *Assembler) Load() *la.Vector      { return a.F }
func (a *Assembler) Stiffness() *la.Matrix { return a.K }
func (a *Assembler) Mass() *la.Matrix      { return a.M }
func (a *Assembler) Problem() ProblemType  { return a.problem }
func (a *Assembler) Comm() *parallel.Comm  { return a.comm }

func (a *Assembler) Kernels(region string) []kernel.Kernel { return a.kernels[region] }

// AssembleSystem rebuilds F, U, K and M from the field values and the
// kernels, then eliminates the fixed DOF of the field. Collective.
func (a *Assembler) AssembleSystem(ctx context.Context) (err error) {
	start := time.Now()
	a.F.Zero()
	a.U.Zero()
	a.K.Reset()
	if a.M != nil {
		a.M.Reset()
	}
	copy(a.U.Owned(), a.field.Values()[:a.field.NumOwnedDof()])

	var nCells int
	m := a.field.Mesh()
	for _, r := range m.Regions() {
		kernels := a.kernels[r.Name]
		if len(kernels) == 0 {
			continue
		}
		var cells []mesh.Cell
		if cells, err = m.RegionCells(r.Name); err != nil {
			return
		}
		for _, c := range cells {
			if err = a.assembleCell(c, kernels); err != nil {
				return fmt.Errorf("region %s: %w", r.Name, err)
			}
		}
		nCells += len(cells)
	}
	assembledCells.WithLabelValues(strconv.Itoa(a.comm.Rank())).Add(float64(nCells))

	if err = a.K.Assemble(ctx); err != nil {
		return
	}
	if err = a.U.Assemble(ctx); err != nil {
		return
	}
	if err = a.F.Assemble(ctx); err != nil {
		return
	}
	dof, values := a.field.FixedDof()
	if err = a.K.ZeroRowsColumns(ctx, dof, values, a.U, a.F); err != nil {
		return
	}
	if err = a.U.GhostUpdate(ctx); err != nil {
		return
	}
	if a.M != nil {
		if err = a.M.Assemble(ctx); err != nil {
			return
		}
	}
	if a.comm.IsRoot() {
		assemblyDuration.Observe(time.Since(start).Seconds())
	}
	return
}

func (a *Assembler) assembleCell(c mesh.Cell, kernels []kernel.Kernel) (err error) {
	m := a.field.Mesh()
	_, xpts, err := m.CellNodes(c, mesh.Renumbered)
	if err != nil {
		return
	}
	dof, err := a.field.CellDof(c, mesh.Renumbered)
	if err != nil {
		return
	}
	e, err := fe.NewFiniteElement(c, m.Dim(), a.field.NumVars(), xpts)
	if err != nil {
		return
	}
	n := len(dof)
	for _, k := range kernels {
		if k.Kind() == kernel.MASS && a.M == nil {
			continue
		}
		var kloc []float64
		if kloc, err = kernel.Integrate(k, e); err != nil {
			return
		}
		switch k.Kind() {
		case kernel.LHS:
			err = a.K.AddValues(dof, dof, kloc)
		case kernel.RHS:
			err = a.F.AddValues(dof, kloc)
		case kernel.BOTH:
			if err = a.K.AddValues(dof, dof, kloc[:n*n]); err == nil {
				err = a.F.AddValues(dof, kloc[n*n:])
			}
		case kernel.MASS:
			err = a.M.AddValues(dof, dof, kloc)
		}
		if err != nil {
			return
		}
	}
	return
}

// UpdateFieldValues copies the solution, ghosts included, back into the
// field. Collective.
func (a *Assembler) UpdateFieldValues(ctx context.Context) error {
	if err := a.U.GhostUpdate(ctx); err != nil {
		return err
	}
	return a.field.SetValues(append([]float64(nil), a.U.Local()...))
}
