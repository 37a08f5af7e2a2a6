package fe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rule is a quadrature rule on a reference cell. Points carry three
// coordinates regardless of the reference dimension, unused ones are zero.
type Rule struct {
	Points  [][3]float64
	Weights []float64
}

func (r Rule) Len() int { return len(r.Weights) }

// GaussLegendre returns the n point Gauss-Legendre rule on [-1,1], computed
// with the Golub-Welsch eigenvalue method on the Legendre Jacobi matrix.
func GaussLegendre(n int) (x, w []float64) {
	if n < 1 {
		panic(fmt.Sprintf("gauss rule needs at least one point, got %d", n))
	}
	if n == 1 {
		return []float64{0}, []float64{2}
	}
	var (
		d0 = make([]float64, n)
		d1 = make([]float64, n-1)
	)
	for i := range d1 {
		ip1 := float64(i + 1)
		d1[i] = ip1 / math.Sqrt(4*ip1*ip1-1)
	}
	JJ := symTridiagonal(d0, d1)

	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(nil)
	VV := mat.NewDense(n, n, nil)
	eig.VectorsTo(VV)
	w = make([]float64, n)
	for i, v := range VV.RawRowView(0) {
		w[i] = 2 * v * v
	}
	return
}

// symTridiagonal has d0 on the diagonal and d1 on both off diagonals.
func symTridiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	JJ := mat.NewSymDense(n, nil)
	for i := range d0 {
		JJ.SetSym(i, i, d0[i])
		if i < n-1 {
			JJ.SetSym(i, i+1, d1[i])
		}
	}
	return JJ
}

// tensorRule is the dim-fold product of the n point Gauss rule.
func tensorRule(n, dim int) (r Rule) {
	x, w := GaussLegendre(n)
	var rec func(d int, pt [3]float64, wt float64)
	rec = func(d int, pt [3]float64, wt float64) {
		if d == dim {
			r.Points = append(r.Points, pt)
			r.Weights = append(r.Weights, wt)
			return
		}
		for i := range x {
			pt[d] = x[i]
			rec(d+1, pt, wt*w[i])
		}
	}
	rec(0, [3]float64{}, 1)
	return
}

func pointRule() Rule {
	return Rule{Points: [][3]float64{{}}, Weights: []float64{1}}
}

func triangleRule(order int) Rule {
	if order == 1 {
		return Rule{Points: [][3]float64{{1. / 3, 1. / 3}}, Weights: []float64{0.5}}
	}
	const (
		c, d   = 0.091576213509771, 0.816847572980459
		a, b   = 0.445948490915965, 0.108103018168070
		wc, wa = 0.054975871827661, 0.111690794839006
	)
	return Rule{
		Points:  [][3]float64{{c, c}, {d, c}, {c, d}, {a, a}, {b, a}, {a, b}},
		Weights: []float64{wc, wc, wc, wa, wa, wa},
	}
}

func tetRule(order int) Rule {
	if order == 1 {
		return Rule{Points: [][3]float64{{.25, .25, .25}}, Weights: []float64{1. / 6}}
	}
	const s, l = 1. / 6, 0.5
	w := 3. / 40
	return Rule{
		Points:  [][3]float64{{.25, .25, .25}, {s, s, s}, {l, s, s}, {s, l, s}, {s, s, l}},
		Weights: []float64{-2. / 15, w, w, w, w},
	}
}
