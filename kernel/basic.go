package kernel

import (
	"github.com/notargets/dfem/fe"
	"github.com/notargets/dfem/utils"
)

// Diffusion is the Laplacian stiffness c grad(N_i) . grad(N_j), applied to
// each variable independently.
type Diffusion struct {
	Coeff float64
}

func (Diffusion) Kind() Kind { return LHS }

func (d Diffusion) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	var (
		nn = e.NumNodes()
		nv = e.NumVars()
		n  = nn * nv
	)
	for i := 0; i < nn; i++ {
		for j := 0; j < nn; j++ {
			v := d.Coeff * dot(e.DNdX[i], e.DNdX[j])
			for k := 0; k < nv; k++ {
				kloc[(i*nv+k)*n+j*nv+k] += v
			}
		}
	}
	return nil
}

// Mass is the consistent mass c N_i N_j on matching variables.
type Mass struct {
	Density float64
}

func (Mass) Kind() Kind { return MASS }

func (m Mass) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	var (
		nn = e.NumNodes()
		nv = e.NumVars()
		n  = nn * nv
	)
	for i := 0; i < nn; i++ {
		for j := 0; j < nn; j++ {
			v := m.Density * e.N[i] * e.N[j]
			for k := 0; k < nv; k++ {
				kloc[(i*nv+k)*n+j*nv+k] += v
			}
		}
	}
	return nil
}

// Source is a uniform body load, one value per variable.
type Source struct {
	Values []float64
}

func (Source) Kind() Kind { return RHS }

func (s Source) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	nv := e.NumVars()
	if len(s.Values) != nv {
		return utils.InvalidSizeError(nv, len(s.Values))
	}
	for i, N := range e.N {
		for k, c := range s.Values {
			kloc[i*nv+k] += c * N
		}
	}
	return nil
}
