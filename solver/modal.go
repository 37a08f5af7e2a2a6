package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/dfem/assembly"
	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/la"
)

// Modal finds the NumModes lowest natural modes of K x = lambda M x. With
// Output set each mode is written as <Output>/<name>_mode_<i>.
type Modal struct {
	Base
	Assembler *assembly.Assembler
	NumModes  int
	Output    string

	Modes []la.EigenPair
}

// Frequency converts an eigenvalue into Hz, negative round off reads as 0.
func Frequency(lambda float64) float64 {
	return math.Sqrt(max(lambda, 0)) / (2 * math.Pi)
}

func (m *Modal) Run(ctx context.Context) (err error) {
	a := m.Assembler
	if a.Mass() == nil {
		return fmt.Errorf("%s problem has no mass matrix", a.Problem())
	}
	if m.NumModes < 1 {
		return fmt.Errorf("number of modes must be positive, got %d", m.NumModes)
	}
	if err = a.AssembleSystem(ctx); err != nil {
		return
	}
	if m.Modes, err = la.SolveEigen(ctx, a.Stiffness(), a.Mass(), m.NumModes); err != nil {
		return
	}
	log := a.Comm().Logger()
	for i, p := range m.Modes {
		log.RootInfof("Mode %3d: lambda = %12.6e, f = %12.6e Hz", i, p.Value, Frequency(p.Value))
	}
	return
}

// ModeField is mode i as a field on the assembler's mesh, ghosts included.
// Collective.
func (m *Modal) ModeField(ctx context.Context, i int) (mf *field.Field, err error) {
	f := m.Assembler.Field()
	if mf, err = field.NewField(fmt.Sprintf("%s_mode_%d", f.Name(), i), f.NumVars(), f.Mesh()); err != nil {
		return
	}
	v := m.Assembler.Solution().Duplicate()
	copy(v.Owned(), m.Modes[i].Vector.Owned())
	if err = v.GhostUpdate(ctx); err != nil {
		return
	}
	err = mf.SetValues(append([]float64(nil), v.Local()...))
	return
}

func (m *Modal) PostRun(ctx context.Context) (err error) {
	if m.Output == "" {
		return
	}
	for i := range m.Modes {
		var mf *field.Field
		if mf, err = m.ModeField(ctx, i); err != nil {
			return
		}
		if err = writeField(ctx, m.Assembler, m.Output, mf.Name(), mf); err != nil {
			return
		}
	}
	return
}
