package solver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/notargets/dfem/assembly"
	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/readfiles"
)

// Runner is one analysis. Execute calls PreRun, Run and PostRun once for
// each of Steps.
type Runner interface {
	PreRun(ctx context.Context) error
	Run(ctx context.Context) error
	PostRun(ctx context.Context) error
	Steps() int
}

// Resetter is a Runner with state to rewind before its first step.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Base gives the no-op hooks of a single step analysis.
type Base struct{}

func (Base) PreRun(context.Context) error  { return nil }
func (Base) PostRun(context.Context) error { return nil }
func (Base) Steps() int                    { return 1 }

func Execute(ctx context.Context, r Runner) (err error) {
	if rs, ok := r.(Resetter); ok {
		if err = rs.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	for step := 0; step < r.Steps(); step++ {
		if err = ctx.Err(); err != nil {
			return
		}
		if err = r.PreRun(ctx); err != nil {
			return fmt.Errorf("pre run %d: %w", step, err)
		}
		if err = r.Run(ctx); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		if err = r.PostRun(ctx); err != nil {
			return fmt.Errorf("post run %d: %w", step, err)
		}
	}
	return
}

// writeField writes f in global order into dir under name, nothing when
// dir is empty. Collective.
func writeField(ctx context.Context, a *assembly.Assembler, dir, name string, f *field.Field) error {
	if dir == "" {
		return nil
	}
	return readfiles.WriteFieldValues(ctx, a.Comm(), filepath.Join(dir, name), f, true)
}
