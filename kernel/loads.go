package kernel

import (
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dfem/fe"
	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/utils"
)

const StandardGravity = 9.81

// Gravity is the body weight -rho g N_i on the Direction variable.
type Gravity struct {
	Density   float64
	G         float64
	Direction int
}

func (Gravity) Kind() Kind { return RHS }

func (g Gravity) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	nv := e.NumVars()
	if g.Direction < 0 || g.Direction >= nv {
		return utils.InvalidSizeError(nv, g.Direction)
	}
	for i, N := range e.N {
		kloc[i*nv+g.Direction] -= g.Density * g.G * N
	}
	return nil
}

// nodalValue interpolates a scalar field over the element, or returns
// value when the field is nil.
func nodalValue(e *fe.FiniteElement, f *field.Field, value float64) (float64, error) {
	if f == nil {
		return value, nil
	}
	if f.NumVars() != 1 {
		return 0, utils.InvalidSizeError(1, f.NumVars())
	}
	vals, err := f.CellValues(e.Cell())
	if err != nil {
		return 0, err
	}
	return interpolate(e.N, vals), nil
}

// Pressure is a surface load p N_i n on boundary elements, n the unit
// normal of the element given by its node order. p is Value, or the
// interpolated scalar Field when set.
type Pressure struct {
	Value float64
	Field *field.Field
}

func (Pressure) Kind() Kind { return RHS }

func (p Pressure) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	nv := e.NumVars()
	if nv > 3 {
		return utils.InvalidSizeError(3, nv)
	}
	pv, err := nodalValue(e, p.Field, p.Value)
	if err != nil {
		return err
	}
	nrm, err := e.Normal()
	if err != nil {
		return err
	}
	n := [3]float64{nrm.X, nrm.Y, nrm.Z}
	for i, N := range e.N {
		for d := 0; d < nv; d++ {
			kloc[i*nv+d] += pv * N * n[d]
		}
	}
	return nil
}

// ThermalStress is the equivalent load B^T D eps of a free thermal strain
// eps = alpha (T - Reference) on the normal components. T is Temperature,
// or the interpolated scalar Field when set.
type ThermalStress struct {
	Elasticity  *Elasticity
	Alpha       float64
	Reference   float64
	Temperature float64
	Field       *field.Field
}

func (ThermalStress) Kind() Kind { return RHS }

func (ts ThermalStress) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	B, err := ts.Elasticity.strainMatrix(e)
	if err != nil {
		return err
	}
	T, err := nodalValue(e, ts.Field, ts.Temperature)
	if err != nil {
		return err
	}
	var (
		dim = ts.Elasticity.B.Dim()
		eps = mat.NewVecDense(ts.Elasticity.B.NumStrains(), nil)
		sig mat.VecDense
	)
	for i := 0; i < dim; i++ {
		eps.SetVec(i, ts.Alpha*(T-ts.Reference)*ts.Elasticity.D.ThermalFactor())
	}
	sig.MulVec(ts.Elasticity.D.Matrix(), eps)
	mat.NewVecDense(e.NumDof(), kloc).MulVec(B.T(), &sig)
	return nil
}
