package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/notargets/dfem/assembly"
	"github.com/notargets/dfem/la"
)

// TimeIntegrator advances the assembled solution of a by one step.
type TimeIntegrator interface {
	Step(ctx context.Context, a *assembly.Assembler, opts la.SolverOptions) (iters int, err error)
}

// ImplicitEuler solves (K + M/dt) U' = F + (M/dt) U.
type ImplicitEuler struct {
	Dt float64
}

func (ie ImplicitEuler) Step(ctx context.Context, a *assembly.Assembler, opts la.SolverOptions) (iters int, err error) {
	if ie.Dt <= 0 {
		return 0, fmt.Errorf("time step must be positive, got %g", ie.Dt)
	}
	var (
		M = a.Mass()
		U = a.Solution()
		A = a.Stiffness().Duplicate()
		b = a.Load().Copy()
		w = U.Copy()
	)
	if M == nil {
		return 0, fmt.Errorf("%s problem has no mass matrix", a.Problem())
	}
	if err = A.AXPY(ctx, 1/ie.Dt, M); err != nil {
		return
	}
	w.Scale(1 / ie.Dt)
	if err = M.MultAdd(ctx, w, b); err != nil {
		return
	}
	dof, values := a.Field().FixedDof()
	if err = A.ZeroRowsColumns(ctx, dof, values, U, b); err != nil {
		return
	}
	return la.Solve(ctx, A, b, U, opts)
}

// Dynamic marches from Start to Final in steps of Step, assembling and
// integrating once per step. With Output set the field is written after
// every step as <Output>/<name>_<step>.
type Dynamic struct {
	Assembler  *assembly.Assembler
	Start      float64
	Final      float64
	Step       float64
	Integrator TimeIntegrator
	Options    la.SolverOptions
	Output     string

	step      int
	time      float64
	stepStart time.Time
	elapsed   time.Duration
}

func (d *Dynamic) Steps() int {
	if d.Step <= 0 {
		return 0
	}
	return int((d.Final-d.Start)/d.Step) + 1
}

// Time is the simulated time reached, StepCount the completed steps.
func (d *Dynamic) Time() float64  { return d.time }
func (d *Dynamic) StepCount() int { return d.step }

// Reset validates the time window and rewinds to Start.
func (d *Dynamic) Reset(context.Context) error {
	if d.Step <= 0 || d.Final < d.Start {
		return fmt.Errorf("invalid time window [%g, %g] with step %g", d.Start, d.Final, d.Step)
	}
	if !d.Assembler.Problem().HasMass() {
		return fmt.Errorf("dynamic analysis of a %s problem", d.Assembler.Problem())
	}
	if d.Integrator == nil {
		d.Integrator = ImplicitEuler{Dt: d.Step}
	}
	d.step, d.time, d.elapsed = 0, d.Start, 0
	d.Assembler.Comm().Logger().RootInfof("Dynamic analysis: t = [%g, %g], dt = %g, %d steps",
		d.Start, d.Final, d.Step, d.Steps())
	return nil
}

// PreRun starts the clock of the coming step.
func (d *Dynamic) PreRun(context.Context) error {
	d.stepStart = time.Now()
	return nil
}

func (d *Dynamic) Run(ctx context.Context) (err error) {
	a := d.Assembler
	if err = a.AssembleSystem(ctx); err != nil {
		return
	}
	iters, err := d.Integrator.Step(ctx, a, d.Options)
	if err != nil {
		return
	}
	if err = a.UpdateFieldValues(ctx); err != nil {
		return
	}
	d.elapsed += time.Since(d.stepStart)
	a.Comm().Logger().RootInfof("step %5d, t = %10.4e, %d iterations, elapsed %v", d.step, d.time+d.Step, iters, d.elapsed)
	return
}

func (d *Dynamic) PostRun(ctx context.Context) (err error) {
	f := d.Assembler.Field()
	if err = writeField(ctx, d.Assembler, d.Output, fmt.Sprintf("%s_%d", f.Name(), d.step), f); err != nil {
		return
	}
	d.step++
	d.time += d.Step
	return
}
