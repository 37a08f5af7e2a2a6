package fe

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/dfem/geometry"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

type basisKey struct {
	t     mesh.CellType
	order int
}

// Bases are immutable once built and shared by every rank.
var bases sync.Map

func cachedBasis(t mesh.CellType, order int) (*Basis, error) {
	key := basisKey{t, order}
	if b, ok := bases.Load(key); ok {
		return b.(*Basis), nil
	}
	b, err := NewBasis(t, order)
	if err != nil {
		return nil, err
	}
	actual, _ := bases.LoadOrStore(key, b)
	return actual.(*Basis), nil
}

// FiniteElement maps a reference cell onto one mesh cell. ComputeTransform
// fills N, DNdX, J and X for a reference point, the kernels read them back.
type FiniteElement struct {
	cell    mesh.Cell
	nVars   int
	meshDim int
	xpts    []float64
	basis   *Basis
	shape   geometry.Shape

	N     []float64
	DNdxi [][3]float64
	DNdX  [][3]float64
	J     float64
	X     [3]float64
}

func NewFiniteElement(c mesh.Cell, meshDim, nVars int, xpts []float64) (fe *FiniteElement, err error) {
	if len(xpts) != 3*c.NumNodes {
		return nil, utils.InvalidSizeError(3*c.NumNodes, len(xpts))
	}
	if c.Type.Dim() > meshDim {
		return nil, utils.InvalidCellError(c.ID, int(c.Type), c.Order)
	}
	fe = &FiniteElement{
		cell:    c,
		nVars:   nVars,
		meshDim: meshDim,
		xpts:    xpts,
	}
	if fe.basis, err = cachedBasis(c.Type, c.Order); err != nil {
		return nil, utils.InvalidCellError(c.ID, int(c.Type), c.Order)
	}
	if fe.shape, err = geometry.NewShape(c.Type); err != nil {
		return nil, err
	}
	n := fe.basis.NumNodes()
	fe.N = make([]float64, n)
	fe.DNdxi = make([][3]float64, n)
	fe.DNdX = make([][3]float64, n)
	return
}

func (fe *FiniteElement) Cell() mesh.Cell         { return fe.cell }
func (fe *FiniteElement) Basis() *Basis           { return fe.basis }
func (fe *FiniteElement) Shape() geometry.Shape   { return fe.shape }
func (fe *FiniteElement) Xpts() []float64         { return fe.xpts }
func (fe *FiniteElement) NumVars() int            { return fe.nVars }
func (fe *FiniteElement) NumNodes() int           { return fe.basis.NumNodes() }
func (fe *FiniteElement) NumDof() int             { return fe.basis.NumNodes() * fe.nVars }
func (fe *FiniteElement) Dim() int                { return fe.basis.Dim() }
func (fe *FiniteElement) MeshDim() int            { return fe.meshDim }
func (fe *FiniteElement) Rule() Rule              { return fe.basis.Rule() }
func (fe *FiniteElement) Normal() (r3.Vec, error) { return fe.shape.FaceNormal(-1, fe.xpts) }

// ComputeTransform evaluates the basis at xi and maps it to physical space.
// Cells of full mesh dimension are inverted directly and must have a
// positive Jacobian. Lower dimensional cells (boundary edges and faces) get
// J from the length or area measure and gradients from the pseudo-inverse.
func (fe *FiniteElement) ComputeTransform(xi [3]float64) (err error) {
	var (
		d = fe.basis.Dim()
		n = fe.basis.NumNodes()
	)
	fe.basis.EvalTo(xi, fe.N, fe.DNdxi)
	fe.X = [3]float64{}
	for k := 0; k < n; k++ {
		for i := 0; i < 3; i++ {
			fe.X[i] += fe.N[k] * fe.xpts[3*k+i]
		}
		fe.DNdX[k] = [3]float64{}
	}
	if d == 0 {
		fe.J = 1
		return
	}

	// dXdxi[i][j] = sum_k dN_k/dxi_j x_k[i]
	var dXdxi [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < d; j++ {
			for k := 0; k < n; k++ {
				dXdxi[i][j] += fe.DNdxi[k][j] * fe.xpts[3*k+i]
			}
		}
	}

	var (
		dxidX = mat.NewDense(d, 3, nil)
		inv   mat.Dense
	)
	if d == fe.meshDim {
		A := mat.NewDense(d, d, nil)
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				A.Set(i, j, dXdxi[i][j])
			}
		}
		if fe.J = mat.Det(A); fe.J <= 0 {
			return utils.NegativeJacobianError(fe.cell.ID, fe.J)
		}
		if err = invert(&inv, A); err != nil {
			return
		}
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				dxidX.Set(i, j, inv.At(i, j))
			}
		}
	} else {
		A := mat.NewDense(3, d, nil)
		for i := 0; i < 3; i++ {
			for j := 0; j < d; j++ {
				A.Set(i, j, dXdxi[i][j])
			}
		}
		t1 := r3.Vec{X: dXdxi[0][0], Y: dXdxi[1][0], Z: dXdxi[2][0]}
		if d == 1 {
			fe.J = r3.Norm(t1)
		} else {
			t2 := r3.Vec{X: dXdxi[0][1], Y: dXdxi[1][1], Z: dXdxi[2][1]}
			fe.J = r3.Norm(r3.Cross(t1, t2))
		}
		if fe.J <= 0 || math.IsNaN(fe.J) {
			return utils.NegativeJacobianError(fe.cell.ID, fe.J)
		}
		// (A^T A)^-1 A^T
		var AtA mat.Dense
		AtA.Mul(A.T(), A)
		if err = invert(&inv, &AtA); err != nil {
			return
		}
		dxidX.Mul(&inv, A.T())
	}

	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < d; k++ {
				sum += dxidX.At(k, j) * fe.DNdxi[i][k]
			}
			fe.DNdX[i][j] = sum
		}
	}
	return
}

// invert tolerates ill conditioning, only an exactly singular matrix fails.
func invert(dst *mat.Dense, a mat.Matrix) error {
	err := dst.Inverse(a)
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		return err
	}
	return nil
}
