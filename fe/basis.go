package fe

import (
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

// Basis holds the Lagrange shape functions of a reference cell together with
// the quadrature rule used to integrate over it. Node ordering follows Gmsh.
type Basis struct {
	cellType mesh.CellType
	order    int
	dim      int
	nNodes   int
	rule     Rule
	eval     func(xi [3]float64, N []float64, dN [][3]float64)
}

// NewBasis supports POINT1, LINE1/2, TRI1/2, QUAD1, TET1/2 and HEX1.
func NewBasis(t mesh.CellType, order int) (b *Basis, err error) {
	b = &Basis{cellType: t, order: order, dim: t.Dim()}
	switch {
	case t == mesh.Point && order == 1:
		b.rule = pointRule()
		b.eval = func(_ [3]float64, N []float64, dN [][3]float64) {
			N[0], dN[0] = 1, [3]float64{}
		}
	case t == mesh.Line && (order == 1 || order == 2):
		b.rule = tensorRule(order, 1)
		b.eval = simplexEval(1, order)
	case t == mesh.Triangle && (order == 1 || order == 2):
		b.rule = triangleRule(order)
		b.eval = simplexEval(2, order)
	case t == mesh.Tet && (order == 1 || order == 2):
		b.rule = tetRule(order)
		b.eval = simplexEval(3, order)
	case t == mesh.Quad && order == 1:
		b.rule = tensorRule(2, 2)
		b.eval = tensorEval(2)
	case t == mesh.Hex && order == 1:
		b.rule = tensorRule(2, 3)
		b.eval = tensorEval(3)
	default:
		return nil, utils.InvalidCellError(-1, int(t), order)
	}
	b.nNodes, _ = mesh.NumCellNodes(t, order)
	return
}

func (b *Basis) CellType() mesh.CellType { return b.cellType }
func (b *Basis) Order() int              { return b.order }
func (b *Basis) Dim() int                { return b.dim }
func (b *Basis) NumNodes() int           { return b.nNodes }
func (b *Basis) Rule() Rule              { return b.rule }

// Eval returns the shape functions and their reference derivatives at xi.
func (b *Basis) Eval(xi [3]float64) (N []float64, dNdxi [][3]float64) {
	N = make([]float64, b.nNodes)
	dNdxi = make([][3]float64, b.nNodes)
	b.EvalTo(xi, N, dNdxi)
	return
}

// EvalTo is Eval into caller storage of length NumNodes.
func (b *Basis) EvalTo(xi [3]float64, N []float64, dNdxi [][3]float64) {
	for i := range dNdxi {
		dNdxi[i] = [3]float64{}
	}
	b.eval(xi, N, dNdxi)
}

// Mid-side node edges for the quadratic simplices, by vertex pair.
var simplexEdges = [4][][2]int{
	1: {{0, 1}},
	2: {{0, 1}, {1, 2}, {0, 2}},
	3: {{0, 1}, {1, 2}, {2, 0}, {3, 0}, {2, 3}, {1, 3}},
}

// barycentric coordinates of the reference simplex. The reference line is
// [-1,1] to share the Gauss rule with the tensor cells, the triangle and
// tet are the unit simplices.
func barycentric(dim int, xi [3]float64) (l [4]float64, dl [4][3]float64) {
	if dim == 1 {
		l[0], l[1] = 0.5*(1-xi[0]), 0.5*(1+xi[0])
		dl[0][0], dl[1][0] = -0.5, 0.5
		return
	}
	l[0] = 1
	for k := 0; k < dim; k++ {
		l[0] -= xi[k]
		l[k+1] = xi[k]
		dl[0][k] = -1
		dl[k+1][k] = 1
	}
	return
}

func simplexEval(dim, order int) func(xi [3]float64, N []float64, dN [][3]float64) {
	return func(xi [3]float64, N []float64, dN [][3]float64) {
		l, dl := barycentric(dim, xi)
		if order == 1 {
			for i := 0; i <= dim; i++ {
				N[i], dN[i] = l[i], dl[i]
			}
			return
		}
		for i := 0; i <= dim; i++ {
			N[i] = l[i] * (2*l[i] - 1)
			for k := 0; k < 3; k++ {
				dN[i][k] = (4*l[i] - 1) * dl[i][k]
			}
		}
		for e, ed := range simplexEdges[dim] {
			a, b := ed[0], ed[1]
			n := dim + 1 + e
			N[n] = 4 * l[a] * l[b]
			for k := 0; k < 3; k++ {
				dN[n][k] = 4 * (dl[a][k]*l[b] + l[a]*dl[b][k])
			}
		}
	}
}

// Vertex signs of the reference quad and hex on [-1,1]^d.
var tensorVertices = [4][][3]float64{
	2: {{-1, -1}, {1, -1}, {1, 1}, {-1, 1}},
	3: {
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	},
}

func tensorEval(dim int) func(xi [3]float64, N []float64, dN [][3]float64) {
	verts := tensorVertices[dim]
	scale := 1. / float64(int(1)<<dim)
	return func(xi [3]float64, N []float64, dN [][3]float64) {
		for i, v := range verts {
			var f [3]float64
			for k := 0; k < dim; k++ {
				f[k] = 1 + v[k]*xi[k]
			}
			N[i] = scale
			for k := 0; k < dim; k++ {
				N[i] *= f[k]
				d := scale * v[k]
				for m := 0; m < dim; m++ {
					if m != k {
						d *= f[m]
					}
				}
				dN[i][k] = d
			}
		}
	}
}
