package kernel

import "github.com/notargets/dfem/fe"

// ConvectiveBoundary is Newton cooling h (T - Ambient) on a boundary:
// h N_i N_j into the stiffness and h Ambient N_i into the load.
type ConvectiveBoundary struct {
	H       float64
	Ambient float64
}

func (ConvectiveBoundary) Kind() Kind { return BOTH }

func (c ConvectiveBoundary) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	var (
		nn = e.NumNodes()
		nv = e.NumVars()
		n  = nn * nv
		f  = kloc[n*n:]
	)
	for i := 0; i < nn; i++ {
		for j := 0; j < nn; j++ {
			v := c.H * e.N[i] * e.N[j]
			for k := 0; k < nv; k++ {
				kloc[(i*nv+k)*n+j*nv+k] += v
			}
		}
		for k := 0; k < nv; k++ {
			f[i*nv+k] += c.H * c.Ambient * e.N[i]
		}
	}
	return nil
}
