package kernel

import (
	"fmt"

	"github.com/notargets/dfem/fe"
)

// Kind selects where the local output of a kernel is scattered.
type Kind uint8

const (
	LHS  Kind = iota // n*n, stiffness
	RHS              // n, load
	BOTH             // n*n stiffness followed by n load
	MASS             // n*n, mass
)

func (k Kind) String() string {
	switch k {
	case LHS:
		return "LHS"
	case RHS:
		return "RHS"
	case BOTH:
		return "BOTH"
	case MASS:
		return "MASS"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Size is the length of the local output for an element with n DOF.
func (k Kind) Size(n int) int {
	switch k {
	case RHS:
		return n
	case BOTH:
		return n*n + n
	}
	return n * n
}

// Kernel computes the integrand of an element contribution at the
// quadrature point last passed to fe.ComputeTransform. kloc arrives zeroed
// with length Kind().Size(fe.NumDof()), DOF ordered node major and
// variable minor.
type Kernel interface {
	Kind() Kind
	Evaluate(e *fe.FiniteElement, kloc []float64) error
}

// elementIntegrator is a kernel that carries its own element measure.
type elementIntegrator interface {
	Integrate(e *fe.FiniteElement) ([]float64, error)
}

// Integrate sums k over the element's quadrature rule, each point weighted
// by J*w.
func Integrate(k Kernel, e *fe.FiniteElement) (kloc []float64, err error) {
	if ei, ok := k.(elementIntegrator); ok {
		return ei.Integrate(e)
	}
	var (
		size = k.Kind().Size(e.NumDof())
		tmp  = make([]float64, size)
		rule = e.Rule()
	)
	kloc = make([]float64, size)
	for q, pt := range rule.Points {
		if err = e.ComputeTransform(pt); err != nil {
			return nil, err
		}
		for i := range tmp {
			tmp[i] = 0
		}
		if err = k.Evaluate(e, tmp); err != nil {
			return nil, err
		}
		scale := e.J * rule.Weights[q]
		for i, v := range tmp {
			kloc[i] += v * scale
		}
	}
	return
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// interpolate evaluates sum N_k v_k for a scalar nodal array.
func interpolate(N, v []float64) (s float64) {
	for k, n := range N {
		s += n * v[k]
	}
	return
}
