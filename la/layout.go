package la

import (
	"context"

	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/utils"
)

// Layout is the ownership of a distributed index range: rank r owns the
// contiguous block of global indices Partitions[r].
type Layout struct {
	comm *parallel.Comm
	pm   *utils.PartitionMap
}

// NewLayout gathers every rank's local size, so it is collective.
func NewLayout(ctx context.Context, comm *parallel.Comm, nLocal int) (*Layout, error) {
	sizes, err := parallel.AllGather(ctx, comm, nLocal)
	if err != nil {
		return nil, err
	}
	return &Layout{comm: comm, pm: utils.NewPartitionMapFromSizes(sizes)}, nil
}

func (l *Layout) Comm() *parallel.Comm { return l.comm }
func (l *Layout) Rank() int            { return l.comm.Rank() }
func (l *Layout) GlobalSize() int      { return l.pm.MaxIndex }
func (l *Layout) LocalSize() int       { return l.pm.GetBucketDimension(l.comm.Rank()) }

// Range is the half open interval of global indices owned here.
func (l *Layout) Range() (lo, hi int) { return l.pm.GetBucketRange(l.comm.Rank()) }

// Owner of a global index, -1 when out of range.
func (l *Layout) Owner(idx int) int {
	bn, _, _ := l.pm.GetBucket(idx)
	return bn
}

func (l *Layout) IsOwned(idx int) bool {
	lo, hi := l.Range()
	return idx >= lo && idx < hi
}

func (l *Layout) Equal(o *Layout) bool {
	if l == o {
		return true
	}
	if l.pm.ParallelDegree != o.pm.ParallelDegree {
		return false
	}
	for r, p := range l.pm.Partitions {
		if o.pm.Partitions[r] != p {
			return false
		}
	}
	return true
}
