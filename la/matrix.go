package la

import (
	"context"
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/utils"
)

type matEntry struct {
	Row, Col int
	Val      float64
}

// columnPlan moves the off-rank entries of x needed by the local rows of a
// product.
type columnPlan struct {
	ghostSlot map[int]int
	nGhost    int
	send      [][]int // [dst] owned offsets of x requested by dst
	recv      [][]int // [src] ghost slots
}

// Matrix is a row distributed sparse matrix. Each rank stores its owned
// rows in CSR form with global column indices. Entries addressed to rows
// owned elsewhere are stashed until Assemble, entries outside the current
// structure collect in a DOK and are merged into the CSR on Assemble.
// Resetting keeps the structure.
type Matrix struct {
	rows     *Layout
	nCols    int
	prealloc *SparsityPattern
	log      *utils.Logger

	csr     *sparse.CSR
	pending *sparse.DOK
	stash   [][]matEntry
	plan    *columnPlan
	fixed   []int

	// zero valued entries that must become part of the structure
	structural []matEntry
}

// NewMatrix builds an empty matrix. sparsity may be nil, otherwise it is
// the per row preallocation that Assemble checks the fill against.
func NewMatrix(ctx context.Context, layout *Layout, nGlobalCols int, sparsity *SparsityPattern) (m *Matrix, err error) {
	nLocal := layout.LocalSize()
	if sparsity != nil && len(sparsity.Diag) != nLocal {
		return nil, utils.InvalidSizeError(nLocal, len(sparsity.Diag))
	}
	m = &Matrix{
		rows:     layout,
		nCols:    nGlobalCols,
		prealloc: sparsity,
		log:      layout.Comm().Logger(),
		stash:    make([][]matEntry, layout.Comm().Size()),
	}
	m.csr = sparse.NewCSR(nLocal, nGlobalCols, make([]int, nLocal+1), nil, nil)
	if err = m.buildPlan(ctx); err != nil {
		return nil, err
	}
	return
}

func (m *Matrix) Layout() *Layout { return m.rows }

// Dims is the global shape.
func (m *Matrix) Dims() (r, c int) { return m.rows.GlobalSize(), m.nCols }

// Fixed returns the global rows eliminated by the last ZeroRowsColumns.
func (m *Matrix) Fixed() []int { return m.fixed }

// NNZ is the number of stored entries in the owned rows.
func (m *Matrix) NNZ() int { return len(m.csr.RawMatrix().Ind) }

// each visits every stored entry of the owned rows by local row.
func (m *Matrix) each(fn func(i, j int, v float64)) {
	raw := m.csr.RawMatrix()
	for i := 0; i+1 < len(raw.Indptr); i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			fn(i, raw.Ind[k], raw.Data[k])
		}
	}
}

// position of global column j in local row i, -1 when not stored.
func (m *Matrix) position(i, j int) int {
	raw := m.csr.RawMatrix()
	lo, hi := raw.Indptr[i], raw.Indptr[i+1]
	k := lo + sort.SearchInts(raw.Ind[lo:hi], j)
	if k < hi && raw.Ind[k] == j {
		return k
	}
	return -1
}

func (m *Matrix) addLocal(i, j int, v float64) {
	if k := m.position(i, j); k >= 0 {
		m.csr.RawMatrix().Data[k] += v
		return
	}
	if m.pending == nil {
		m.pending = sparse.NewDOK(m.rows.LocalSize(), m.nCols)
	}
	m.pending.Set(i, j, m.pending.At(i, j)+v)
}

// AddValues accumulates the dense row major block vals at the global
// (rows, cols) pairs. Negative indices are skipped.
func (m *Matrix) AddValues(rows, cols []int, vals []float64) error {
	if len(vals) != len(rows)*len(cols) {
		return utils.InvalidSizeError(len(rows)*len(cols), len(vals))
	}
	lo, hi := m.rows.Range()
	for a, i := range rows {
		if i < 0 {
			continue
		}
		owned := i >= lo && i < hi
		owner := m.rows.Owner(i)
		if owner < 0 {
			return fmt.Errorf("row %d out of range [0,%d)", i, m.rows.GlobalSize())
		}
		for b, j := range cols {
			if j < 0 {
				continue
			}
			if j >= m.nCols {
				return fmt.Errorf("column %d out of range [0,%d)", j, m.nCols)
			}
			v := vals[a*len(cols)+b]
			if owned {
				m.addLocal(i-lo, j, v)
			} else {
				m.stash[owner] = append(m.stash[owner], matEntry{Row: i, Col: j, Val: v})
			}
		}
	}
	return nil
}

// Assemble ships stashed entries to their owners, merges new entries into
// the structure and, when the structure changed anywhere, rebuilds the
// column plan. It is collective.
func (m *Matrix) Assemble(ctx context.Context) (err error) {
	in, err := parallel.Exchange(ctx, m.rows.Comm(), m.stash)
	if err != nil {
		return
	}
	for r := range m.stash {
		m.stash[r] = nil
	}
	lo, _ := m.rows.Range()
	for _, entries := range in {
		for _, e := range entries {
			m.addLocal(e.Row-lo, e.Col, e.Val)
		}
	}
	return m.finalize(ctx)
}

func (m *Matrix) finalize(ctx context.Context) (err error) {
	changed := 0
	if (m.pending != nil && m.pending.NNZ() > 0) || len(m.structural) > 0 {
		m.merge()
		changed = 1
	}
	m.pending = nil
	if changed, err = parallel.AllReduceMax(ctx, m.rows.Comm(), changed); err != nil || changed == 0 {
		return
	}
	return m.buildPlan(ctx)
}

// merge rebuilds the CSR from the stored and pending entries, with columns
// sorted in every row.
func (m *Matrix) merge() {
	var (
		nLocal  = m.rows.LocalSize()
		entries = make([]matEntry, 0, m.NNZ())
	)
	m.each(func(i, j int, v float64) {
		entries = append(entries, matEntry{Row: i, Col: j, Val: v})
	})
	entries = append(entries, m.structural...)
	m.structural = nil
	if m.pending != nil {
		m.pending.DoNonZero(func(i, j int, v float64) {
			entries = append(entries, matEntry{Row: i, Col: j, Val: v})
		})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Row != entries[b].Row {
			return entries[a].Row < entries[b].Row
		}
		return entries[a].Col < entries[b].Col
	})
	var (
		indptr = make([]int, nLocal+1)
		ind    = make([]int, 0, len(entries))
		data   = make([]float64, 0, len(entries))
	)
	for _, e := range entries {
		if n := len(ind); n > 0 && ind[n-1] == e.Col && indptr[e.Row+1] > 0 {
			data[n-1] += e.Val
			continue
		}
		ind = append(ind, e.Col)
		data = append(data, e.Val)
		indptr[e.Row+1]++
	}
	for i := 0; i < nLocal; i++ {
		indptr[i+1] += indptr[i]
	}
	m.csr = sparse.NewCSR(nLocal, m.nCols, indptr, ind, data)
	m.checkPreallocation()
}

// checkPreallocation compares the row fill against the sparsity counts.
// Ghost row pairs are credited to the owner's diagonal count, so only the
// row total is a bound.
func (m *Matrix) checkPreallocation() {
	if m.prealloc == nil {
		return
	}
	var (
		raw  = m.csr.RawMatrix()
		over int
	)
	for i := 0; i < m.rows.LocalSize(); i++ {
		if raw.Indptr[i+1]-raw.Indptr[i] > m.prealloc.Diag[i]+m.prealloc.Offdiag[i] {
			over++
		}
	}
	if over > 0 {
		m.log.Warnf("%d rows exceed their preallocated fill", over)
	}
}

func (m *Matrix) buildPlan(ctx context.Context) (err error) {
	var (
		comm     = m.rows.Comm()
		lo, hi   = m.rows.Range()
		raw      = m.csr.RawMatrix()
		cols     = make(map[int]struct{})
		requests = make([][]int, comm.Size())
		plan     = &columnPlan{
			ghostSlot: make(map[int]int),
			send:      make([][]int, comm.Size()),
			recv:      make([][]int, comm.Size()),
		}
	)
	for _, j := range raw.Ind {
		if j < lo || j >= hi {
			cols[j] = struct{}{}
		}
	}
	ghosts := make([]int, 0, len(cols))
	for j := range cols {
		ghosts = append(ghosts, j)
	}
	sort.Ints(ghosts)
	for slot, j := range ghosts {
		owner := m.rows.Owner(j)
		if owner < 0 {
			return fmt.Errorf("column %d has no owner in a %d row layout", j, m.rows.GlobalSize())
		}
		plan.ghostSlot[j] = slot
		requests[owner] = append(requests[owner], j)
		plan.recv[owner] = append(plan.recv[owner], slot)
	}
	plan.nGhost = len(ghosts)
	in, err := parallel.Exchange(ctx, comm, requests)
	if err != nil {
		return
	}
	for src, idx := range in {
		for _, j := range idx {
			plan.send[src] = append(plan.send[src], j-lo)
		}
	}
	m.plan = plan
	return
}

// ghostColumns fetches the off-rank entries of x the local rows reference.
func (m *Matrix) ghostColumns(ctx context.Context, x *Vector) (ghost []float64, err error) {
	var (
		comm = m.rows.Comm()
		out  = make([][]float64, comm.Size())
		xo   = x.Owned()
	)
	for dst, offsets := range m.plan.send {
		if len(offsets) == 0 {
			continue
		}
		buf := make([]float64, len(offsets))
		for i, o := range offsets {
			buf[i] = xo[o]
		}
		out[dst] = buf
	}
	in, err := parallel.Exchange(ctx, comm, out)
	if err != nil {
		return
	}
	ghost = make([]float64, m.plan.nGhost)
	for src, slots := range m.plan.recv {
		for i, s := range slots {
			ghost[s] = in[src][i]
		}
	}
	return
}

func (m *Matrix) mult(ctx context.Context, x, y *Vector, add bool) error {
	if m.nCols != m.rows.GlobalSize() || !x.Layout().Equal(m.rows) || !y.Layout().Equal(m.rows) {
		return fmt.Errorf("matrix of %d columns and layout %v can not multiply the given vectors",
			m.nCols, m.rows.pm.Partitions)
	}
	ghost, err := m.ghostColumns(ctx, x)
	if err != nil {
		return err
	}
	var (
		raw   = m.csr.RawMatrix()
		lo, _ = m.rows.Range()
		xo    = x.Owned()
		yo    = y.Owned()
	)
	for i := range yo {
		var sum float64
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			if slot, ok := m.plan.ghostSlot[j]; ok {
				sum += raw.Data[k] * ghost[slot]
			} else {
				sum += raw.Data[k] * xo[j-lo]
			}
		}
		if add {
			yo[i] += sum
		} else {
			yo[i] = sum
		}
	}
	return nil
}

// Mult is y = A x, collective. x and y must be distinct.
func (m *Matrix) Mult(ctx context.Context, x, y *Vector) error { return m.mult(ctx, x, y, false) }

// MultAdd is y += A x, collective.
func (m *Matrix) MultAdd(ctx context.Context, x, y *Vector) error { return m.mult(ctx, x, y, true) }

// Reset zeroes every value and drops unassembled contributions. The
// structure and column plan are kept.
func (m *Matrix) Reset() {
	data := m.csr.RawMatrix().Data
	for k := range data {
		data[k] = 0
	}
	m.pending = nil
	m.structural = nil
	for r := range m.stash {
		m.stash[r] = m.stash[r][:0]
	}
	m.fixed = nil
}

func (m *Matrix) Scale(a float64) {
	data := m.csr.RawMatrix().Data
	for k := range data {
		data[k] *= a
	}
}

// AXPY is A += a X for a matrix X with the same row layout. Collective,
// since X may carry entries outside the structure of A.
func (m *Matrix) AXPY(ctx context.Context, a float64, X *Matrix) error {
	if !X.rows.Equal(m.rows) || X.nCols != m.nCols {
		return utils.InvalidSizeError(m.nCols, X.nCols)
	}
	X.each(func(i, j int, v float64) {
		m.addLocal(i, j, a*v)
	})
	return m.finalize(ctx)
}

// Duplicate is a deep copy of values and structure.
func (m *Matrix) Duplicate() *Matrix {
	raw := m.csr.RawMatrix()
	d := &Matrix{
		rows:     m.rows,
		nCols:    m.nCols,
		prealloc: m.prealloc,
		log:      m.log,
		csr: sparse.NewCSR(m.rows.LocalSize(), m.nCols,
			append([]int(nil), raw.Indptr...),
			append([]int(nil), raw.Ind...),
			append([]float64(nil), raw.Data...)),
		stash: make([][]matEntry, len(m.stash)),
		plan:  m.plan,
		fixed: append([]int(nil), m.fixed...),
	}
	return d
}

// Diagonal returns the diagonal of the owned rows.
func (m *Matrix) Diagonal() (diag []float64) {
	lo, _ := m.rows.Range()
	diag = make([]float64, m.rows.LocalSize())
	for i := range diag {
		if k := m.position(i, i+lo); k >= 0 {
			diag[i] = m.csr.RawMatrix().Data[k]
		}
	}
	return
}

// At reads an owned row by global indices, entries of rows owned elsewhere
// read as zero.
func (m *Matrix) At(i, j int) float64 {
	lo, hi := m.rows.Range()
	if i < lo || i >= hi {
		return 0
	}
	if k := m.position(i-lo, j); k >= 0 {
		return m.csr.RawMatrix().Data[k]
	}
	return 0
}

// Dense expands the owned rows, used for small problems and tests.
func (m *Matrix) Dense() *mat.Dense {
	d := mat.NewDense(max(m.rows.LocalSize(), 1), max(m.nCols, 1), nil)
	m.each(func(i, j int, v float64) {
		d.Set(i, j, v)
	})
	return d
}

type fixedSet struct {
	Rows []int
	Vals []float64
}

// ZeroRowsColumns eliminates the given global rows and the matching
// columns. Every rank may name any row, the union is taken. For a fixed
// row d with value c: x[d] = c, row and column d are zeroed with a unit
// diagonal, b[d] = c and every other row i has b[i] -= A[i,d] c. x and b
// may be nil. Collective.
func (m *Matrix) ZeroRowsColumns(ctx context.Context, rows []int, values []float64, x, b *Vector) (err error) {
	if len(rows) != len(values) {
		return utils.InvalidSizeError(len(rows), len(values))
	}
	all, err := parallel.AllGather(ctx, m.rows.Comm(), fixedSet{
		Rows: append([]int(nil), rows...),
		Vals: append([]float64(nil), values...),
	})
	if err != nil {
		return
	}
	fixed := make(map[int]float64)
	for _, fs := range all {
		for k, d := range fs.Rows {
			fixed[d] = fs.Vals[k]
		}
	}
	lo, hi := m.rows.Range()
	// unit diagonals need a slot in the structure
	for d := range fixed {
		if d >= lo && d < hi && m.position(d-lo, d) < 0 {
			m.structural = append(m.structural, matEntry{Row: d - lo, Col: d})
		}
	}
	if err = m.finalize(ctx); err != nil {
		return
	}

	var (
		raw = m.csr.RawMatrix()
		bo  []float64
	)
	if b != nil {
		bo = b.Owned()
	}
	for i := 0; i < m.rows.LocalSize(); i++ {
		if _, isFixed := fixed[i+lo]; isFixed {
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				raw.Data[k] = 0
				if raw.Ind[k] == i+lo {
					raw.Data[k] = 1
				}
			}
			continue
		}
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			c, isFixed := fixed[raw.Ind[k]]
			if !isFixed {
				continue
			}
			if bo != nil {
				bo[i] -= raw.Data[k] * c
			}
			raw.Data[k] = 0
		}
	}
	m.fixed = m.fixed[:0]
	for d, c := range fixed {
		m.fixed = append(m.fixed, d)
		if d < lo || d >= hi {
			continue
		}
		if x != nil {
			x.Owned()[d-lo] = c
		}
		if bo != nil {
			bo[d-lo] = c
		}
	}
	sort.Ints(m.fixed)
	return
}
