package kernel

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/dfem/fe"
	"github.com/notargets/dfem/utils"
)

// StrainOperator fills the strain-displacement matrix B, NumStrains rows
// by NumNodes*Dim columns.
type StrainOperator interface {
	Dim() int
	NumStrains() int
	Fill(e *fe.FiniteElement, B *mat.Dense)
}

// ConstitutiveLaw gives the stress-strain matrix D and the factor applied
// to a free thermal expansion in the constrained directions.
type ConstitutiveLaw interface {
	Matrix() *mat.Dense
	ThermalFactor() float64
}

// PlanarStrain orders strains exx, eyy, exy.
type PlanarStrain struct{}

func (PlanarStrain) Dim() int        { return 2 }
func (PlanarStrain) NumStrains() int { return 3 }

func (PlanarStrain) Fill(e *fe.FiniteElement, B *mat.Dense) {
	for i, d := range e.DNdX {
		B.Set(0, 2*i, d[0])
		B.Set(1, 2*i+1, d[1])
		B.Set(2, 2*i, d[1])
		B.Set(2, 2*i+1, d[0])
	}
}

// SolidStrain orders strains exx, eyy, ezz, exy, eyz, exz.
type SolidStrain struct{}

func (SolidStrain) Dim() int        { return 3 }
func (SolidStrain) NumStrains() int { return 6 }

func (SolidStrain) Fill(e *fe.FiniteElement, B *mat.Dense) {
	for i, d := range e.DNdX {
		c := 3 * i
		B.Set(0, c, d[0])
		B.Set(1, c+1, d[1])
		B.Set(2, c+2, d[2])
		B.Set(3, c, d[1])
		B.Set(3, c+1, d[0])
		B.Set(4, c+1, d[2])
		B.Set(4, c+2, d[1])
		B.Set(5, c, d[2])
		B.Set(5, c+2, d[0])
	}
}

type IsotropicPlaneStress struct{ E, Nu float64 }

func (l IsotropicPlaneStress) Matrix() *mat.Dense {
	c := l.E / (1 - l.Nu*l.Nu)
	return mat.NewDense(3, 3, []float64{
		c, c * l.Nu, 0,
		c * l.Nu, c, 0,
		0, 0, c * (1 - l.Nu) / 2,
	})
}

func (IsotropicPlaneStress) ThermalFactor() float64 { return 1 }

type IsotropicPlaneStrain struct{ E, Nu float64 }

func (l IsotropicPlaneStrain) Matrix() *mat.Dense {
	c := l.E / ((1 - 2*l.Nu) * (1 + l.Nu))
	return mat.NewDense(3, 3, []float64{
		c * (1 - l.Nu), c * l.Nu, 0,
		c * l.Nu, c * (1 - l.Nu), 0,
		0, 0, c * (1 - 2*l.Nu) / 2,
	})
}

// ThermalFactor accounts for the expansion held back in z.
func (l IsotropicPlaneStrain) ThermalFactor() float64 { return 1 + l.Nu }

type IsotropicSolid struct{ E, Nu float64 }

func (l IsotropicSolid) Matrix() *mat.Dense {
	var (
		c1   = l.E / ((1 + l.Nu) * (1 - 2*l.Nu))
		c2   = (1 - 2*l.Nu) / 2
		D    = mat.NewDense(6, 6, nil)
		diag = (1 - l.Nu) * c1
		off  = l.Nu * c1
	)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				D.Set(i, j, diag)
			} else {
				D.Set(i, j, off)
			}
		}
		D.Set(i+3, i+3, c1*c2)
	}
	return D
}

func (IsotropicSolid) ThermalFactor() float64 { return 1 }

type Analysis uint8

const (
	PlaneStress Analysis = iota
	PlaneStrain
	Solid
)

func (a Analysis) String() string {
	switch a {
	case PlaneStress:
		return "PlaneStress"
	case PlaneStrain:
		return "PlaneStrain"
	case Solid:
		return "Solid"
	}
	return fmt.Sprintf("Analysis(%d)", uint8(a))
}

func ParseAnalysis(s string) (Analysis, error) {
	for _, a := range []Analysis{PlaneStress, PlaneStrain, Solid} {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown elasticity analysis %q", s)
}

// Elasticity is the stiffness B^T D B.
type Elasticity struct {
	B StrainOperator
	D ConstitutiveLaw
}

// NewElasticity composes the strain operator and isotropic law of the
// analysis from Young's modulus E and Poisson's ratio nu.
func NewElasticity(a Analysis, E, nu float64) (*Elasticity, error) {
	if E <= 0 || nu <= -1 || nu >= 0.5 {
		return nil, fmt.Errorf("invalid elastic constants E=%g nu=%g", E, nu)
	}
	switch a {
	case PlaneStress:
		return &Elasticity{B: PlanarStrain{}, D: IsotropicPlaneStress{E: E, Nu: nu}}, nil
	case PlaneStrain:
		return &Elasticity{B: PlanarStrain{}, D: IsotropicPlaneStrain{E: E, Nu: nu}}, nil
	case Solid:
		return &Elasticity{B: SolidStrain{}, D: IsotropicSolid{E: E, Nu: nu}}, nil
	}
	return nil, fmt.Errorf("unknown elasticity analysis %v", a)
}

func (*Elasticity) Kind() Kind { return LHS }

// strainMatrix checks the element carries one variable per direction and
// fills B at the current point.
func (el *Elasticity) strainMatrix(e *fe.FiniteElement) (*mat.Dense, error) {
	if e.NumVars() != el.B.Dim() {
		return nil, utils.InvalidSizeError(el.B.Dim(), e.NumVars())
	}
	B := mat.NewDense(el.B.NumStrains(), e.NumDof(), nil)
	el.B.Fill(e, B)
	return B, nil
}

func (el *Elasticity) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	B, err := el.strainMatrix(e)
	if err != nil {
		return err
	}
	var (
		n  = e.NumDof()
		DB mat.Dense
	)
	DB.Mul(el.D.Matrix(), B)
	mat.NewDense(n, n, kloc).Mul(B.T(), &DB)
	return nil
}

// shellVars is the number of DOF per shell node: three displacements and
// the rotations about the directors v1 and v2.
const shellVars = 5

// shearCorrection scales the transverse shear stiffness of a shell.
const shearCorrection = 5. / 6

// Shell is a flat Reissner-Mindlin shell on TRI and QUAD cells placed
// anywhere in 3D. The directors v1, v2 span the cell plane and v3 is its
// normal. Rotations are taken about v1 and v2, there is no drilling DOF.
type Shell struct {
	E, Nu, Thickness float64
}

func NewShell(E, nu, thickness float64) (*Shell, error) {
	if E <= 0 || nu <= -1 || nu >= 0.5 || thickness <= 0 {
		return nil, fmt.Errorf("invalid shell constants E=%g nu=%g thickness=%g", E, nu, thickness)
	}
	return &Shell{E: E, Nu: nu, Thickness: thickness}, nil
}

func (*Shell) Kind() Kind { return LHS }

// Matrix orders the local strains e11, e22, g12, g23, g13.
func (s *Shell) Matrix() *mat.Dense {
	var (
		c = s.E / (1 - s.Nu*s.Nu)
		g = c * (1 - s.Nu) / 2
	)
	return mat.NewDense(5, 5, []float64{
		c, s.Nu * c, 0, 0, 0,
		s.Nu * c, c, 0, 0, 0,
		0, 0, g, 0, 0,
		0, 0, 0, shearCorrection * g, 0,
		0, 0, 0, 0, shearCorrection * g,
	})
}

// directorFrame builds an orthonormal frame with v3 along n. v1 is normal
// to the global axis least aligned with n.
func directorFrame(n r3.Vec) (v [3]r3.Vec) {
	v[2] = r3.Unit(n)
	axis := r3.Vec{X: 1}
	switch {
	case math.Abs(v[2].Y) < math.Abs(v[2].X) && math.Abs(v[2].Y) <= math.Abs(v[2].Z):
		axis = r3.Vec{Y: 1}
	case math.Abs(v[2].Z) < math.Abs(v[2].X) && math.Abs(v[2].Z) < math.Abs(v[2].Y):
		axis = r3.Vec{Z: 1}
	}
	v[0] = r3.Unit(r3.Cross(axis, v[2]))
	v[1] = r3.Cross(v[2], v[0])
	return
}

// Integrate weights Evaluate by the mid-surface area measure, which
// fe.ComputeTransform does not give for a surface cell of a surface mesh.
func (s *Shell) Integrate(e *fe.FiniteElement) (kloc []float64, err error) {
	var (
		n    = e.NumDof()
		tmp  = make([]float64, n*n)
		rule = e.Rule()
		J    float64
	)
	kloc = make([]float64, n*n)
	for q, pt := range rule.Points {
		e.Basis().EvalTo(pt, e.N, e.DNdxi)
		for i := range tmp {
			tmp[i] = 0
		}
		if J, err = s.evaluate(e, tmp); err != nil {
			return nil, err
		}
		scale := J * rule.Weights[q]
		for i, v := range tmp {
			kloc[i] += v * scale
		}
	}
	return
}

// Evaluate gives the stiffness per unit mid-surface area at the reference
// point last evaluated into e.N and e.DNdxi.
func (s *Shell) Evaluate(e *fe.FiniteElement, kloc []float64) error {
	_, err := s.evaluate(e, kloc)
	return err
}

func (s *Shell) evaluate(e *fe.FiniteElement, kloc []float64) (J float64, err error) {
	if e.NumVars() != shellVars {
		return 0, utils.InvalidSizeError(shellVars, e.NumVars())
	}
	if e.Dim() != 2 {
		c := e.Cell()
		return 0, utils.InvalidCellError(c.ID, int(c.Type), c.Order)
	}
	normal, err := e.Normal()
	if err != nil {
		return
	}
	var (
		v     = directorFrame(normal)
		xpts  = e.Xpts()
		nodes = e.NumNodes()
	)
	var jac [2]r3.Vec
	for k := 0; k < nodes; k++ {
		x := r3.Vec{X: xpts[3*k], Y: xpts[3*k+1], Z: xpts[3*k+2]}
		jac[0] = r3.Add(jac[0], r3.Scale(e.DNdxi[k][0], x))
		jac[1] = r3.Add(jac[1], r3.Scale(e.DNdxi[k][1], x))
	}
	// A[a][b] = v_a . dx/dxi_b, the map from reference to director coordinates
	var A [2][2]float64
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			A[a][b] = r3.Dot(v[a], jac[b])
		}
	}
	if J = A[0][0]*A[1][1] - A[0][1]*A[1][0]; J <= 0 || math.IsNaN(J) {
		return 0, utils.NegativeJacobianError(e.Cell().ID, J)
	}
	// in-plane gradients solve A^T g = dN/dxi
	grad := make([][2]float64, nodes)
	for k := range grad {
		d0, d1 := e.DNdxi[k][0], e.DNdxi[k][1]
		grad[k] = [2]float64{
			(A[1][1]*d0 - A[1][0]*d1) / J,
			(A[0][0]*d1 - A[0][1]*d0) / J,
		}
	}

	var (
		h  = s.Thickness / 2
		n  = e.NumDof()
		D  = s.Matrix()
		B  = mat.NewDense(5, n, nil)
		DB mat.Dense
		K  mat.Dense
	)
	out := mat.NewDense(n, n, kloc)
	for _, zeta := range []float64{-1 / math.Sqrt(3), 1 / math.Sqrt(3)} {
		B.Zero()
		for k := 0; k < nodes; k++ {
			var (
				trans = [3]float64{grad[k][0], grad[k][1], 0}
				rot   = [3]float64{zeta * h * grad[k][0], zeta * h * grad[k][1], e.N[k]}
			)
			for q := 0; q < 3; q++ {
				dir := [3]float64{components(v[0])[q], components(v[1])[q], components(v[2])[q]}
				shellStrain(B, k*shellVars+q, dir, trans)
			}
			// a rotation about v1 moves the fibre along -v2, about v2 along v1
			shellStrain(B, k*shellVars+3, [3]float64{0, -1, 0}, rot)
			shellStrain(B, k*shellVars+4, [3]float64{1, 0, 0}, rot)
		}
		DB.Mul(D, B)
		K.Mul(B.T(), &DB)
		K.Scale(h, &K)
		out.Add(out, &K)
	}
	return
}

func components(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// shellStrain fills column j of B with the strains of a displacement
// gradient p g^T, both in director components.
func shellStrain(B *mat.Dense, j int, p, g [3]float64) {
	B.Set(0, j, p[0]*g[0])
	B.Set(1, j, p[1]*g[1])
	B.Set(2, j, p[0]*g[1]+p[1]*g[0])
	B.Set(3, j, p[1]*g[2]+p[2]*g[1])
	B.Set(4, j, p[0]*g[2]+p[2]*g[0])
}
