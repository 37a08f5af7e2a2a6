package la

import (
	"context"
	"fmt"
	"time"

	"github.com/notargets/dfem/utils"
)

type SolverOptions struct {
	Tol     float64 // relative to |b|
	MaxIter int
}

func DefaultSolverOptions() SolverOptions {
	return SolverOptions{Tol: 1.e-10, MaxIter: 10000}
}

// jacobi returns the inverted diagonal, zero diagonals map to one.
func jacobi(A *Matrix, like *Vector) *Vector {
	inv := like.Duplicate()
	for i, d := range A.Diagonal() {
		if d == 0 {
			d = 1
		}
		inv.Owned()[i] = 1 / d
	}
	return inv
}

// Solve runs Jacobi preconditioned BiCGStab on A x = b, starting from the
// current x. It is collective and every rank takes the same path, as all
// scalars come from rank ordered reductions.
func Solve(ctx context.Context, A *Matrix, b, x *Vector, opts SolverOptions) (iters int, err error) {
	if opts.MaxIter <= 0 {
		opts = DefaultSolverOptions()
	}
	start := time.Now()
	defer func() {
		if A.Layout().Comm().IsRoot() {
			solveDuration.Observe(time.Since(start).Seconds())
			solveIterations.Observe(float64(iters))
		}
	}()

	var bnorm, rnorm float64
	if bnorm, err = b.Norm(ctx); err != nil {
		return
	}
	if bnorm == 0 {
		x.Set(0)
		return
	}
	var (
		tol  = opts.Tol * bnorm
		minv = jacobi(A, b)
		r    = b.Duplicate()
		rhat = b.Duplicate()
		p    = b.Duplicate()
		v    = b.Duplicate()
		s    = b.Duplicate()
		t    = b.Duplicate()
		y    = b.Duplicate()
		z    = b.Duplicate()

		rho, alpha, omega = 1., 1., 1.
	)
	// r = b - A x
	if err = A.Mult(ctx, x, r); err != nil {
		return
	}
	r.AYPX(-1, b)
	if rnorm, err = r.Norm(ctx); err != nil || rnorm <= tol {
		return
	}
	_ = rhat.CopyFrom(r)

	for iters = 1; iters <= opts.MaxIter; iters++ {
		var rhoNew, den, tt, ts float64
		if rhoNew, err = rhat.Dot(ctx, r); err != nil {
			return
		}
		if rhoNew == 0 {
			return iters, fmt.Errorf("bicgstab breakdown: %w", utils.NotConvergedError(iters, rnorm/bnorm))
		}
		if iters == 1 {
			_ = p.CopyFrom(r)
		} else {
			beta := (rhoNew / rho) * (alpha / omega)
			p.AXPY(-omega, v)
			p.AYPX(beta, r)
		}
		y.PointwiseMult(minv, p)
		if err = A.Mult(ctx, y, v); err != nil {
			return
		}
		if den, err = rhat.Dot(ctx, v); err != nil {
			return
		}
		if den == 0 {
			return iters, fmt.Errorf("bicgstab breakdown: %w", utils.NotConvergedError(iters, rnorm/bnorm))
		}
		alpha = rhoNew / den
		_ = s.CopyFrom(r)
		s.AXPY(-alpha, v)
		var snorm float64
		if snorm, err = s.Norm(ctx); err != nil {
			return
		}
		if snorm <= tol {
			x.AXPY(alpha, y)
			return
		}
		z.PointwiseMult(minv, s)
		if err = A.Mult(ctx, z, t); err != nil {
			return
		}
		if tt, err = t.Dot(ctx, t); err != nil {
			return
		}
		if ts, err = t.Dot(ctx, s); err != nil {
			return
		}
		omega = ts / tt
		x.AXPY(alpha, y)
		x.AXPY(omega, z)
		_ = r.CopyFrom(s)
		r.AXPY(-omega, t)
		if rnorm, err = r.Norm(ctx); err != nil || rnorm <= tol {
			return
		}
		if utils.IsNan(rnorm) {
			return iters, fmt.Errorf("bicgstab diverged: %w", utils.NotConvergedError(iters, rnorm))
		}
		rho = rhoNew
	}
	iters = opts.MaxIter
	return iters, utils.NotConvergedError(opts.MaxIter, rnorm/bnorm)
}
