package la

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/utils"
)

type stashEntry struct {
	Idx    int
	Val    float64
	Insert bool
}

// ghostPlan says which owned entries go to which rank on a ghost update
// and where the incoming values land.
type ghostPlan struct {
	send [][]int // [dst] owned offsets
	recv [][]int // [src] ghost slots
}

// Vector is a distributed vector with ghost entries. Local storage is the
// owned block followed by the ghosts in the order they were given.
// Contributions to entries owned elsewhere are stashed until Assemble.
type Vector struct {
	layout   *Layout
	ghosts   []int
	ghostIdx map[int]int
	plan     *ghostPlan
	values   []float64
	stash    [][]stashEntry
}

// NewVector is collective. ghosts are the global indices mirrored locally,
// none of them may be owned by this rank.
func NewVector(ctx context.Context, comm *parallel.Comm, nLocal int, ghosts []int) (*Vector, error) {
	layout, err := NewLayout(ctx, comm, nLocal)
	if err != nil {
		return nil, err
	}
	return NewVectorWithLayout(ctx, layout, ghosts)
}

func NewVectorWithLayout(ctx context.Context, layout *Layout, ghosts []int) (v *Vector, err error) {
	var (
		comm = layout.Comm()
		size = comm.Size()
	)
	v = &Vector{
		layout:   layout,
		ghosts:   append([]int(nil), ghosts...),
		ghostIdx: make(map[int]int, len(ghosts)),
		plan:     &ghostPlan{send: make([][]int, size), recv: make([][]int, size)},
		values:   make([]float64, layout.LocalSize()+len(ghosts)),
		stash:    make([][]stashEntry, size),
	}
	requests := make([][]int, size)
	for slot, g := range ghosts {
		owner := layout.Owner(g)
		if owner < 0 || owner == comm.Rank() {
			return nil, fmt.Errorf("ghost index %d is not owned by another rank (owner %d)", g, owner)
		}
		if _, dup := v.ghostIdx[g]; dup {
			return nil, fmt.Errorf("duplicate ghost index %d", g)
		}
		v.ghostIdx[g] = slot
		requests[owner] = append(requests[owner], g)
		v.plan.recv[owner] = append(v.plan.recv[owner], slot)
	}
	in, err := parallel.Exchange(ctx, comm, requests)
	if err != nil {
		return nil, err
	}
	lo, _ := layout.Range()
	for src, idx := range in {
		for _, g := range idx {
			v.plan.send[src] = append(v.plan.send[src], g-lo)
		}
	}
	return
}

func (v *Vector) Layout() *Layout { return v.layout }
func (v *Vector) Size() int       { return v.layout.GlobalSize() }
func (v *Vector) LocalSize() int  { return v.layout.LocalSize() }
func (v *Vector) Ghosts() []int   { return v.ghosts }

// Owned is the owned block, writes go straight to storage.
func (v *Vector) Owned() []float64 { return v.values[:v.layout.LocalSize()] }

// Local is the owned block followed by the ghosts.
func (v *Vector) Local() []float64 { return v.values }

// Duplicate has the same layout and ghosts, with zero values.
func (v *Vector) Duplicate() *Vector {
	return &Vector{
		layout:   v.layout,
		ghosts:   v.ghosts,
		ghostIdx: v.ghostIdx,
		plan:     v.plan,
		values:   make([]float64, len(v.values)),
		stash:    make([][]stashEntry, len(v.stash)),
	}
}

func (v *Vector) Copy() *Vector {
	c := v.Duplicate()
	copy(c.values, v.values)
	return c
}

// CopyFrom copies the owned and ghost values of x, the layouts must agree.
func (v *Vector) CopyFrom(x *Vector) error {
	if len(x.values) != len(v.values) {
		return utils.InvalidSizeError(len(v.values), len(x.values))
	}
	copy(v.values, x.values)
	return nil
}

// Zero clears values, ghosts and any pending stash, keeping the storage.
func (v *Vector) Zero() {
	for i := range v.values {
		v.values[i] = 0
	}
	for r := range v.stash {
		v.stash[r] = v.stash[r][:0]
	}
}

func (v *Vector) Set(a float64) {
	owned := v.Owned()
	for i := range owned {
		owned[i] = a
	}
}

func (v *Vector) put(idx []int, vals []float64, insert bool) error {
	if len(idx) != len(vals) {
		return utils.InvalidSizeError(len(idx), len(vals))
	}
	lo, hi := v.layout.Range()
	for i, g := range idx {
		if g < 0 {
			continue
		}
		if g >= lo && g < hi {
			if insert {
				v.values[g-lo] = vals[i]
			} else {
				v.values[g-lo] += vals[i]
			}
			continue
		}
		owner := v.layout.Owner(g)
		if owner < 0 {
			return fmt.Errorf("index %d out of range [0,%d)", g, v.layout.GlobalSize())
		}
		v.stash[owner] = append(v.stash[owner], stashEntry{Idx: g, Val: vals[i], Insert: insert})
	}
	return nil
}

// AddValues accumulates at global indices. Negative indices are skipped.
func (v *Vector) AddValues(idx []int, vals []float64) error { return v.put(idx, vals, false) }

// InsertValues overwrites at global indices. Negative indices are skipped.
func (v *Vector) InsertValues(idx []int, vals []float64) error { return v.put(idx, vals, true) }

// Assemble ships stashed entries to their owners and applies them in rank
// order. It is collective.
func (v *Vector) Assemble(ctx context.Context) error {
	in, err := parallel.Exchange(ctx, v.layout.Comm(), v.stash)
	if err != nil {
		return err
	}
	lo, _ := v.layout.Range()
	for _, entries := range in {
		for _, e := range entries {
			if e.Insert {
				v.values[e.Idx-lo] = e.Val
			} else {
				v.values[e.Idx-lo] += e.Val
			}
		}
	}
	// The receivers hold the old slices now
	for r := range v.stash {
		v.stash[r] = nil
	}
	return nil
}

// GhostUpdate refreshes the ghost entries from their owners. It is
// collective.
func (v *Vector) GhostUpdate(ctx context.Context) error {
	size := v.layout.Comm().Size()
	out := make([][]float64, size)
	for dst, offsets := range v.plan.send {
		if len(offsets) == 0 {
			continue
		}
		buf := make([]float64, len(offsets))
		for i, o := range offsets {
			buf[i] = v.values[o]
		}
		out[dst] = buf
	}
	in, err := parallel.Exchange(ctx, v.layout.Comm(), out)
	if err != nil {
		return err
	}
	nOwned := v.layout.LocalSize()
	for src, slots := range v.plan.recv {
		for i, s := range slots {
			v.values[nOwned+s] = in[src][i]
		}
	}
	return nil
}

// GetValues reads owned or ghost entries by global index.
func (v *Vector) GetValues(idx []int) (vals []float64, err error) {
	lo, hi := v.layout.Range()
	vals = make([]float64, len(idx))
	for i, g := range idx {
		switch slot, ok := v.ghostIdx[g]; {
		case g >= lo && g < hi:
			vals[i] = v.values[g-lo]
		case ok:
			vals[i] = v.values[v.layout.LocalSize()+slot]
		default:
			return nil, fmt.Errorf("index %d is neither owned nor a ghost on rank %d", g, v.layout.Rank())
		}
	}
	return
}

func (v *Vector) Scale(a float64) {
	for i := range v.Owned() {
		v.values[i] *= a
	}
}

// AXPY is v += a*x on the owned block.
func (v *Vector) AXPY(a float64, x *Vector) {
	xo := x.Owned()
	for i := range v.Owned() {
		v.values[i] += a * xo[i]
	}
}

// AYPX is v = x + a*v on the owned block.
func (v *Vector) AYPX(a float64, x *Vector) {
	xo := x.Owned()
	for i := range v.Owned() {
		v.values[i] = xo[i] + a*v.values[i]
	}
}

// PointwiseMult is v = x .* y on the owned block.
func (v *Vector) PointwiseMult(x, y *Vector) {
	xo, yo := x.Owned(), y.Owned()
	for i := range v.Owned() {
		v.values[i] = xo[i] * yo[i]
	}
}

func (v *Vector) Dot(ctx context.Context, x *Vector) (float64, error) {
	var (
		sum    float64
		vo, xo = v.Owned(), x.Owned()
	)
	for i := range vo {
		sum += vo[i] * xo[i]
	}
	return parallel.AllReduceSum(ctx, v.layout.Comm(), sum)
}

func (v *Vector) Norm(ctx context.Context) (float64, error) {
	dot, err := v.Dot(ctx, v)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(dot), nil
}

// Gather collects the whole vector in global order on the root rank,
// the other ranks get nil.
func (v *Vector) Gather(ctx context.Context) (global []float64, err error) {
	owned := append([]float64(nil), v.Owned()...)
	parts, err := parallel.Gather(ctx, v.layout.Comm(), parallel.Root, owned)
	if err != nil || parts == nil {
		return nil, err
	}
	global = make([]float64, 0, v.Size())
	for _, p := range parts {
		global = append(global, p...)
	}
	return
}

// Scatter is the inverse of Gather, root's global values are distributed
// to the owners. Ghosts are not refreshed.
func (v *Vector) Scatter(ctx context.Context, global []float64) error {
	comm := v.layout.Comm()
	var out [][]float64
	if comm.IsRoot() {
		if len(global) != v.Size() {
			return utils.InvalidSizeError(v.Size(), len(global))
		}
		out = make([][]float64, comm.Size())
		for r := range out {
			lo, hi := v.layout.pm.GetBucketRange(r)
			out[r] = global[lo:hi]
		}
	}
	parts, err := parallel.Bcast(ctx, comm, parallel.Root, out)
	if err != nil {
		return err
	}
	copy(v.Owned(), parts[comm.Rank()])
	return nil
}

