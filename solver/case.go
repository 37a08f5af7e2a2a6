package solver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/notargets/dfem/InputParameters"
	"github.com/notargets/dfem/assembly"
	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/kernel"
	"github.com/notargets/dfem/la"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/readfiles"
)

// Setup builds the field, the assembled system and the analysis of a case
// on this rank's mesh. Collective.
func Setup(ctx context.Context, comm *parallel.Comm, m *mesh.Mesh, cp *InputParameters.CaseParameters) (r Runner, a *assembly.Assembler, err error) {
	f, err := field.NewField(cp.Field.Name, cp.Field.NumVars, m)
	if err != nil {
		return
	}
	if len(cp.InitialValues) != 0 {
		if err = f.Fill(cp.InitialValues); err != nil {
			return
		}
	}
	for _, fd := range cp.FixedDof {
		if err = f.AddFixedDof(fd.Region, fd.Var, fd.Value); err != nil {
			return nil, nil, fmt.Errorf("fixed dof: %w", err)
		}
	}

	var problem assembly.ProblemType
	switch cp.Analysis {
	case InputParameters.Static:
		problem = assembly.Static
	case InputParameters.Dynamic:
		problem = assembly.Dynamic
	case InputParameters.Modal:
		problem = assembly.Modal
	default:
		return nil, nil, fmt.Errorf("unknown analysis %q", cp.Analysis)
	}
	sp, err := la.ComputeSparsity(ctx, comm, f)
	if err != nil {
		return
	}
	if a, err = assembly.NewAssembler(ctx, comm, f, sp, problem); err != nil {
		return
	}
	for _, kp := range cp.Kernels {
		spec := kernel.Spec{Type: kp.Type, Analysis: kp.Analysis, Params: kp.Params}
		if kp.Field != "" {
			if spec.Field, err = field.NewField(filepath.Base(kp.Field), 1, m); err != nil {
				return
			}
			if err = readfiles.ReadFieldValues(kp.Field, spec.Field); err != nil {
				return nil, nil, fmt.Errorf("kernel %s field: %w", kp.Type, err)
			}
		}
		var k kernel.Kernel
		if k, err = kernel.New(spec, f.NumVars()); err != nil {
			return
		}
		if err = a.AddKernel(kp.Region, k); err != nil {
			return nil, nil, fmt.Errorf("kernel %s: %w", kp.Type, err)
		}
	}

	opts := la.SolverOptions{Tol: cp.Solver.Tol, MaxIter: cp.Solver.MaxIter}
	switch problem {
	case assembly.Static:
		r = &Static{Assembler: a, Options: opts, Output: cp.Output}
	case assembly.Dynamic:
		r = &Dynamic{
			Assembler:  a,
			Start:      cp.Time.Start,
			Final:      cp.Time.Final,
			Step:       cp.Time.Step,
			Integrator: ImplicitEuler{Dt: cp.Time.Step},
			Options:    opts,
			Output:     cp.Output,
		}
	case assembly.Modal:
		r = &Modal{Assembler: a, NumModes: cp.NumModes, Output: cp.Output}
	}
	return
}
