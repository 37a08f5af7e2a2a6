package solver

import (
	"context"

	"github.com/notargets/dfem/assembly"
	"github.com/notargets/dfem/la"
)

// Static solves K U = F once.
type Static struct {
	Base
	Assembler *assembly.Assembler
	Options   la.SolverOptions
	Output    string
}

func (s *Static) Run(ctx context.Context) (err error) {
	a := s.Assembler
	if err = a.AssembleSystem(ctx); err != nil {
		return
	}
	iters, err := la.Solve(ctx, a.Stiffness(), a.Load(), a.Solution(), s.Options)
	if err != nil {
		return
	}
	a.Comm().Logger().RootInfof("Static solve converged in %d iterations", iters)
	return a.UpdateFieldValues(ctx)
}

func (s *Static) PostRun(ctx context.Context) error {
	f := s.Assembler.Field()
	return writeField(ctx, s.Assembler, s.Output, f.Name(), f)
}
