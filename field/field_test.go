package field

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/utils"
)

func TestField(t *testing.T) {
	m, err := mesh.Rectangle(2, 1, 2, 1)
	require.NoError(t, err)
	_, err = NewField("u", 2, nil)
	assert.Error(t, err)
	_, err = NewField("u", 0, m)
	assert.ErrorIs(t, err, utils.ErrInvalidSize)

	f, err := NewField("u", 2, m)
	require.NoError(t, err)
	assert.Equal(t, 12, f.NumDof())
	assert.Equal(t, 12, f.NumOwnedDof())
	assert.Equal(t, 0, f.NumGhostDof())
	assert.Equal(t, 12, f.NumGlobalDof())

	{ // DOF expansion is node major, variable minor
		c := m.Cells()[0]
		nodes, _, err := m.CellNodes(c, mesh.Global)
		require.NoError(t, err)
		dof, err := f.CellDof(c, mesh.Global)
		require.NoError(t, err)
		require.Len(t, dof, len(nodes)*2)
		for i, n := range nodes {
			for v := 0; v < 2; v++ {
				assert.Equal(t, n*2+v, dof[i*2+v])
			}
		}
	}
	{ // Values
		assert.ErrorIs(t, f.SetValues(make([]float64, 3)), utils.ErrInvalidSize)
		require.NoError(t, f.Fill([]float64{1, -1}))
		vals, err := f.CellValues(m.Cells()[0])
		require.NoError(t, err)
		assert.Equal(t, []float64{1, -1, 1, -1, 1, -1}, vals)
		assert.ErrorIs(t, f.Fill([]float64{1}), utils.ErrInvalidSize)
	}
	{ // Fixed DOF, later calls overwrite
		require.NoError(t, f.AddFixedDof("left", 1, 3))
		require.NoError(t, f.AddFixedDof("left", 1, 4))
		require.NoError(t, f.AddFixedDof("right", 0, 5))
		dof, vals := f.FixedDof()
		// left is nodes 0 and 3, right is nodes 2 and 5
		assert.Equal(t, []int{1, 4, 7, 10}, dof)
		assert.Equal(t, []float64{4, 5, 4, 5}, vals)
		assert.ErrorIs(t, f.AddFixedDof("left", 2, 0), utils.ErrInvalidSize)
		assert.ErrorIs(t, f.AddFixedDof("nowhere", 0, 0), utils.ErrUnknownRegion)
		f.ClearFixedDof()
		dof, _ = f.FixedDof()
		assert.Empty(t, dof)
	}
}

func TestAssembleGlobalValues(t *testing.T) {
	// Rank r owns global node 2-r of three, ghosts the rest
	bar, err := mesh.Bar(2, 1)
	require.NoError(t, err)
	f, err := NewField("T", 1, bar)
	require.NoError(t, err)
	require.NoError(t, f.SetValues([]float64{0, 10, 20}))
	global, err := AssembleGlobalValues(context.Background(), parallel.Self(utils.Discard(0, 1)), f)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20}, global)

	var (
		mu   sync.Mutex
		root []float64
	)
	err = parallel.Run(context.Background(), 3, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
		r := c.Rank()
		g := 2 - r
		l2g, l2r := []int{g}, []int{r}
		for n := 0; n < 3; n++ {
			if n != g {
				l2g, l2r = append(l2g, n), append(l2r, 2-n)
			}
		}
		im, err := mesh.NewIndexMap(l2g, l2r)
		if err != nil {
			return err
		}
		m, err := mesh.NewPartitionedMesh(0, nil, nil, 1, 2, 3, make([]float64, 9), nil, im)
		if err != nil {
			return err
		}
		f, err := NewField("T", 1, m)
		if err != nil {
			return err
		}
		if err = f.SetValues([]float64{float64(g) * 10, -1, -1}); err != nil {
			return err
		}
		vals, err := AssembleGlobalValues(ctx, c, f)
		if err != nil {
			return err
		}
		if c.IsRoot() {
			mu.Lock()
			root = vals
			mu.Unlock()
		} else if vals != nil {
			t.Errorf("rank %d received global values", r)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20}, root)
}
