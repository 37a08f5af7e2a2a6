package parallel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/dfem/utils"
)

func TestCollectives(t *testing.T) {
	for _, np := range []int{1, 2, 3, 5} {
		var (
			mu      sync.Mutex
			results = make(map[int][]int)
		)
		err := Run(context.Background(), np, DiscardLogs, func(ctx context.Context, c *Comm) error {
			all, err := AllGather(ctx, c, c.Rank()*10)
			if err != nil {
				return err
			}
			// Each rank sends its rank to every destination, tagged by destination
			out := make([][]int, c.Size())
			for dst := range out {
				out[dst] = []int{c.Rank(), dst}
			}
			in, err := Exchange(ctx, c, out)
			if err != nil {
				return err
			}
			for src, msg := range in {
				if msg[0] != src || msg[1] != c.Rank() {
					return errors.New("exchange mismatch")
				}
			}
			sum, err := AllReduceSum(ctx, c, c.Rank()+1)
			if err != nil {
				return err
			}
			max, err := AllReduceMax(ctx, c, float64(c.Rank()))
			if err != nil {
				return err
			}
			gathered, err := Gather(ctx, c, Root, c.Rank()*c.Rank())
			if err != nil {
				return err
			}
			b, err := Bcast(ctx, c, np-1, c.Rank())
			if err != nil {
				return err
			}
			if err = Barrier(ctx, c); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			results[c.Rank()] = append(all, sum, int(max), b)
			if c.IsRoot() {
				results[-1] = gathered
			} else if gathered != nil {
				return errors.New("non root received gather result")
			}
			return nil
		})
		require.NoError(t, err)
		for r := 0; r < np; r++ {
			expected := make([]int, 0, np+3)
			for k := 0; k < np; k++ {
				expected = append(expected, k*10)
			}
			expected = append(expected, np*(np+1)/2, np-1, np-1)
			assert.Equal(t, expected, results[r])
		}
		squares := make([]int, np)
		for k := range squares {
			squares[k] = k * k
		}
		assert.Equal(t, squares, results[-1])
	}
}

func TestAbortTheWorld(t *testing.T) {
	// Rank 1 fails, the others are blocked in a collective that can never
	// complete and must be released by the cancellation.
	err := Run(context.Background(), 4, DiscardLogs, func(ctx context.Context, c *Comm) error {
		if c.Rank() == 1 {
			return utils.InvalidSizeError(4, 3)
		}
		return Barrier(ctx, c)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrInvalidSize)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestRunRejectsEmptyWorld(t *testing.T) {
	err := Run(context.Background(), 0, DiscardLogs, func(ctx context.Context, c *Comm) error { return nil })
	assert.ErrorIs(t, err, utils.ErrInvalidSize)
}

func TestSelf(t *testing.T) {
	c := Self(utils.Discard(0, 1))
	assert.Equal(t, 1, c.Size())
	v, err := AllReduceSum(context.Background(), c, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}
