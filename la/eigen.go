package la

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dfem/parallel"
)

type EigenPair struct {
	Value  float64
	Vector *Vector
}

type eigenResult struct {
	Values  []float64
	Vectors [][]float64
	Err     string
}

// gatherEntries collects the owned rows of m with global row indices on
// the root rank.
func gatherEntries(ctx context.Context, m *Matrix) (all [][]matEntry, err error) {
	lo, _ := m.rows.Range()
	var entries []matEntry
	m.each(func(i, j int, v float64) {
		if v != 0 {
			entries = append(entries, matEntry{Row: i + lo, Col: j, Val: v})
		}
	})
	return parallel.Gather(ctx, m.rows.Comm(), parallel.Root, entries)
}

// SolveEigen finds the nModes smallest eigenpairs of A x = lambda B x, or
// of A x = lambda x when B is nil. Rows eliminated by ZeroRowsColumns on A
// are dropped from the problem and read as zero in the eigenvectors. The
// problem is gathered and solved densely on the root rank: B = L L^T,
// C = L^-1 A L^-T, C y = lambda y, x = L^-T y. Collective.
func SolveEigen(ctx context.Context, A, B *Matrix, nModes int) (pairs []EigenPair, err error) {
	aAll, err := gatherEntries(ctx, A)
	if err != nil {
		return
	}
	var bAll [][]matEntry
	if B != nil {
		if bAll, err = gatherEntries(ctx, B); err != nil {
			return
		}
	}
	var res eigenResult
	if A.rows.Comm().IsRoot() {
		A.log.Infof("dense eigen solve of %d rows, %d fixed, %s BLAS", A.rows.GlobalSize(), len(A.fixed), blasBackend)
		if res, err = denseEigen(A.rows.GlobalSize(), A.fixed, aAll, bAll, B != nil, nModes); err != nil {
			res = eigenResult{Err: err.Error()}
		}
	}
	if res, err = parallel.Bcast(ctx, A.rows.Comm(), parallel.Root, res); err != nil {
		return
	}
	if res.Err != "" {
		return nil, errors.New(res.Err)
	}

	base, err := NewVectorWithLayout(ctx, A.rows, nil)
	if err != nil {
		return
	}
	lo, hi := A.rows.Range()
	for k, val := range res.Values {
		vec := base.Duplicate()
		copy(vec.Owned(), res.Vectors[k][lo:hi])
		pairs = append(pairs, EigenPair{Value: val, Vector: vec})
	}
	return
}

func denseEigen(n int, fixed []int, aAll, bAll [][]matEntry, generalized bool, nModes int) (res eigenResult, err error) {
	var (
		isFixed = make(map[int]bool, len(fixed))
		free    = make([]int, n)
	)
	for _, d := range fixed {
		isFixed[d] = true
	}
	nf := 0
	for i := 0; i < n; i++ {
		free[i] = -1
		if !isFixed[i] {
			free[i] = nf
			nf++
		}
	}
	if nf == 0 {
		return res, fmt.Errorf("every row of the %d row system is fixed", n)
	}
	nModes = min(max(nModes, 0), nf)

	fill := func(all [][]matEntry) *mat.SymDense {
		S := mat.NewSymDense(nf, nil)
		for _, entries := range all {
			for _, e := range entries {
				i, j := free[e.Row], free[e.Col]
				// the upper triangle carries the symmetric part
				if i < 0 || j < 0 || i > j {
					continue
				}
				S.SetSym(i, j, S.At(i, j)+e.Val)
			}
		}
		return S
	}
	C := fill(aAll)

	var Linv mat.TriDense
	if generalized {
		var chol mat.Cholesky
		if ok := chol.Factorize(fill(bAll)); !ok {
			return res, fmt.Errorf("mass matrix is not positive definite")
		}
		var L mat.TriDense
		chol.LTo(&L)
		if err = Linv.InverseTri(&L); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return
			}
			err = nil
		}
		var tmp, full mat.Dense
		tmp.Mul(&Linv, C)
		full.Mul(&tmp, Linv.T())
		C = mat.NewSymDense(nf, nil)
		for i := 0; i < nf; i++ {
			for j := i; j < nf; j++ {
				C.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(C, true); !ok {
		return res, fmt.Errorf("eigen decomposition of the %d dof system failed", nf)
	}
	values := eig.Values(nil)
	var Y, X mat.Dense
	eig.VectorsTo(&Y)
	if generalized {
		X.Mul(Linv.T(), &Y)
	} else {
		X.CloneFrom(&Y)
	}
	for k := 0; k < nModes; k++ {
		vec := make([]float64, n)
		for i := 0; i < n; i++ {
			if free[i] >= 0 {
				vec[i] = X.At(free[i], k)
			}
		}
		res.Values = append(res.Values, values[k])
		res.Vectors = append(res.Vectors, vec)
	}
	return
}
