package fe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

func TestGaussLegendre(t *testing.T) {
	x, w := GaussLegendre(2)
	assert.InDeltaSlice(t, []float64{-0.577350269189626, 0.577350269189626}, x, 1.e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, w, 1.e-12)

	x, w = GaussLegendre(3)
	assert.InDeltaSlice(t, []float64{-math.Sqrt(.6), 0, math.Sqrt(.6)}, x, 1.e-12)
	assert.InDeltaSlice(t, []float64{5. / 9, 8. / 9, 5. / 9}, w, 1.e-12)
	assert.Panics(t, func() { GaussLegendre(0) })

	JJ := symTridiagonal([]float64{1, 2, 3}, []float64{4, 5})
	assert.Equal(t, []float64{1, 4, 0, 4, 2, 5, 0, 5, 3}, mat.DenseCopyOf(JJ).RawMatrix().Data)

	// n points integrate degree 2n-1 exactly
	for n := 1; n < 8; n++ {
		x, w = GaussLegendre(n)
		for p := 0; p <= 2*n-1; p++ {
			var sum float64
			for i := range x {
				sum += w[i] * math.Pow(x[i], float64(p))
			}
			exact := 0.
			if p%2 == 0 {
				exact = 2. / float64(p+1)
			}
			assert.InDeltaf(t, exact, sum, 1.e-12, "n=%d p=%d", n, p)
		}
	}
}

func referenceNodes(t mesh.CellType, order int) (nodes [][3]float64) {
	switch t {
	case mesh.Point:
		return [][3]float64{{}}
	case mesh.Line:
		nodes = [][3]float64{{-1}, {1}}
		if order == 2 {
			nodes = append(nodes, [3]float64{0})
		}
		return
	case mesh.Quad:
		return tensorVertices[2]
	case mesh.Hex:
		return tensorVertices[3]
	}
	dim := t.Dim()
	nodes = append(nodes, [3]float64{})
	for k := 0; k < dim; k++ {
		var v [3]float64
		v[k] = 1
		nodes = append(nodes, v)
	}
	if order == 2 {
		for _, e := range simplexEdges[dim] {
			a, b := nodes[e[0]], nodes[e[1]]
			nodes = append(nodes, [3]float64{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2, (a[2] + b[2]) / 2})
		}
	}
	return
}

func TestBasis(t *testing.T) {
	cases := []struct {
		t       mesh.CellType
		order   int
		measure float64
	}{
		{mesh.Point, 1, 1},
		{mesh.Line, 1, 2},
		{mesh.Line, 2, 2},
		{mesh.Triangle, 1, 0.5},
		{mesh.Triangle, 2, 0.5},
		{mesh.Quad, 1, 4},
		{mesh.Tet, 1, 1. / 6},
		{mesh.Tet, 2, 1. / 6},
		{mesh.Hex, 1, 8},
	}
	for _, tc := range cases {
		b, err := NewBasis(tc.t, tc.order)
		require.NoError(t, err)
		n, _ := mesh.NumCellNodes(tc.t, tc.order)
		require.Equal(t, n, b.NumNodes())

		var wsum float64
		for q, pt := range b.Rule().Points {
			wsum += b.Rule().Weights[q]
			N, dN := b.Eval(pt)
			var sum float64
			var dsum [3]float64
			for i := range N {
				sum += N[i]
				for k := 0; k < 3; k++ {
					dsum[k] += dN[i][k]
				}
			}
			assert.InDeltaf(t, 1., sum, 1.e-12, "%s%d partition of unity", tc.t, tc.order)
			assert.InDeltaSlicef(t, []float64{0, 0, 0}, dsum[:], 1.e-12, "%s%d gradient sum", tc.t, tc.order)
		}
		assert.InDeltaf(t, tc.measure, wsum, 1.e-12, "%s%d weights", tc.t, tc.order)

		// Kronecker property at the nodes
		for j, xi := range referenceNodes(tc.t, tc.order) {
			N, _ := b.Eval(xi)
			for i := range N {
				expected := 0.
				if i == j {
					expected = 1
				}
				assert.InDeltaf(t, expected, N[i], 1.e-12, "%s%d N%d at node %d", tc.t, tc.order, i, j)
			}
		}
	}
	{ // Unsupported combinations
		for _, tc := range [][2]int{{int(mesh.Prism), 1}, {int(mesh.Quad), 2}, {int(mesh.Hex), 2}, {int(mesh.Point), 2}} {
			_, err := NewBasis(mesh.CellType(tc[0]), tc[1])
			assert.ErrorIs(t, err, utils.ErrInvalidCell)
		}
	}
}

func TestQuadratureExactness(t *testing.T) {
	integrate := func(r Rule, f func(x [3]float64) float64) (sum float64) {
		for q, pt := range r.Points {
			sum += r.Weights[q] * f(pt)
		}
		return
	}
	tri := triangleRule(2)
	assert.InDelta(t, 1./6, integrate(tri, func(x [3]float64) float64 { return x[0] }), 1.e-12)
	assert.InDelta(t, 1./12, integrate(tri, func(x [3]float64) float64 { return x[0] * x[0] }), 1.e-12)
	assert.InDelta(t, 1./24, integrate(tri, func(x [3]float64) float64 { return x[0] * x[1] }), 1.e-12)
	assert.InDelta(t, 1./12, integrate(tri, func(x [3]float64) float64 { return x[1] * x[1] }), 1.e-12)

	tet := tetRule(2)
	assert.InDelta(t, 1./24, integrate(tet, func(x [3]float64) float64 { return x[2] }), 1.e-12)
	assert.InDelta(t, 1./60, integrate(tet, func(x [3]float64) float64 { return x[0] * x[0] }), 1.e-12)
	assert.InDelta(t, 1./120, integrate(tet, func(x [3]float64) float64 { return x[0] * x[1] }), 1.e-12)

	hex := tensorRule(2, 3)
	assert.InDelta(t, 8./9, integrate(hex, func(x [3]float64) float64 { return x[0] * x[0] * x[2] * x[2] }), 1.e-12)
}

func mustCell(t *testing.T, ct mesh.CellType, order int) mesh.Cell {
	c, err := mesh.NewCell(7, ct, order, 0, 0)
	require.NoError(t, err)
	return c
}

func TestFiniteElement(t *testing.T) {
	{ // Unit right triangle, the diffusion block
		fe, err := NewFiniteElement(mustCell(t, mesh.Triangle, 1), 2, 1, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0})
		require.NoError(t, err)
		K := make([]float64, 9)
		r := fe.Rule()
		for q, pt := range r.Points {
			require.NoError(t, fe.ComputeTransform(pt))
			assert.InDelta(t, 1., fe.J, 1.e-14)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					for k := 0; k < 3; k++ {
						K[i*3+j] += fe.DNdX[i][k] * fe.DNdX[j][k] * fe.J * r.Weights[q]
					}
				}
			}
		}
		assert.InDeltaSlice(t, []float64{1, -.5, -.5, -.5, .5, 0, -.5, 0, .5}, K, 1.e-14)
		assert.InDeltaSlice(t, []float64{1. / 3, 1. / 3, 0}, fe.X[:], 1.e-14)
	}
	{ // Scaled quadratic triangle, gradients of a linear function are exact
		xpts := []float64{0, 0, 0, 2, 0, 0, 0, 3, 0, 1, 0, 0, 1, 1.5, 0, 0, 1.5, 0}
		fe, err := NewFiniteElement(mustCell(t, mesh.Triangle, 2), 2, 1, xpts)
		require.NoError(t, err)
		u := make([]float64, 6)
		for i := range u {
			u[i] = 2*xpts[3*i] - xpts[3*i+1] + 1
		}
		for _, pt := range fe.Rule().Points {
			require.NoError(t, fe.ComputeTransform(pt))
			assert.InDelta(t, 6., fe.J, 1.e-12)
			var grad [3]float64
			for i := range u {
				for k := 0; k < 3; k++ {
					grad[k] += fe.DNdX[i][k] * u[i]
				}
			}
			assert.InDeltaSlice(t, []float64{2, -1, 0}, grad[:], 1.e-12)
		}
	}
	{ // Clockwise triangle
		fe, err := NewFiniteElement(mustCell(t, mesh.Triangle, 1), 2, 1, []float64{0, 0, 0, 0, 1, 0, 1, 0, 0})
		require.NoError(t, err)
		err = fe.ComputeTransform(fe.Rule().Points[0])
		assert.ErrorIs(t, err, utils.ErrNegativeJacobian)
	}
	{ // Boundary edge in a 2D mesh
		fe, err := NewFiniteElement(mustCell(t, mesh.Line, 1), 2, 2, []float64{0, 0, 0, 0, 2, 0})
		require.NoError(t, err)
		assert.Equal(t, 4, fe.NumDof())
		require.NoError(t, fe.ComputeTransform(fe.Rule().Points[0]))
		assert.InDelta(t, 1., fe.J, 1.e-14)
		assert.InDeltaSlice(t, []float64{0, -.5, 0}, fe.DNdX[0][:], 1.e-14)
		assert.InDeltaSlice(t, []float64{0, .5, 0}, fe.DNdX[1][:], 1.e-14)
		n, err := fe.Normal()
		require.NoError(t, err)
		assert.InDelta(t, -1., n.X, 1.e-14)
	}
	{ // Boundary face of a 3D mesh
		fe, err := NewFiniteElement(mustCell(t, mesh.Triangle, 1), 3, 1, []float64{0, 0, 0, 2, 0, 0, 0, 0, 2})
		require.NoError(t, err)
		require.NoError(t, fe.ComputeTransform(fe.Rule().Points[0]))
		assert.InDelta(t, 4., fe.J, 1.e-14)
		assert.InDeltaSlice(t, []float64{.5, 0, 0}, fe.DNdX[1][:], 1.e-14)
	}
	{ // Point cells and bad input
		fe, err := NewFiniteElement(mustCell(t, mesh.Point, 1), 1, 1, []float64{3, 0, 0})
		require.NoError(t, err)
		require.NoError(t, fe.ComputeTransform(fe.Rule().Points[0]))
		assert.Equal(t, 1., fe.J)
		assert.Equal(t, []float64{1}, fe.N)

		_, err = NewFiniteElement(mustCell(t, mesh.Triangle, 1), 2, 1, []float64{0, 0, 0})
		assert.ErrorIs(t, err, utils.ErrInvalidSize)
		_, err = NewFiniteElement(mustCell(t, mesh.Prism, 1), 3, 1, make([]float64, 18))
		assert.ErrorIs(t, err, utils.ErrInvalidCell)
		_, err = NewFiniteElement(mustCell(t, mesh.Tet, 1), 2, 1, make([]float64, 12))
		assert.ErrorIs(t, err, utils.ErrInvalidCell)
	}
}
