package assembly

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/kernel"
	"github.com/notargets/dfem/la"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/partition"
	"github.com/notargets/dfem/utils"
)

func rectangleParts(t *testing.T, np int) ([]*mesh.Mesh, *partition.MeshPartitioner) {
	m, err := mesh.Rectangle(4, 3, 2, 1.5)
	require.NoError(t, err)
	mp, err := partition.NewMeshPartitioner(m, np, partition.BlockPartitioner{}, nil)
	require.NoError(t, err)
	require.NoError(t, mp.Partition())
	meshes := make([]*mesh.Mesh, np)
	for r := range meshes {
		meshes[r], err = mp.LocalMesh(r)
		require.NoError(t, err)
	}
	return meshes, mp
}

// heatProblem is a conduction problem with a source, a cooled top and a
// fixed left edge.
func heatProblem(ctx context.Context, c *parallel.Comm, m *mesh.Mesh, problem ProblemType) (a *Assembler, err error) {
	f, err := field.NewField("T", 1, m)
	if err != nil {
		return
	}
	if err = f.AddFixedDof("left", 0, 1); err != nil {
		return
	}
	sp, err := la.ComputeSparsity(ctx, c, f)
	if err != nil {
		return
	}
	if a, err = NewAssembler(ctx, c, f, sp, problem); err != nil {
		return
	}
	for _, rk := range []struct {
		region string
		k      kernel.Kernel
	}{
		{"domain", kernel.Diffusion{Coeff: 2}},
		{"domain", kernel.Source{Values: []float64{3}}},
		{"domain", kernel.Mass{Density: 1}},
		{"top", kernel.ConvectiveBoundary{H: 4, Ambient: .5}},
	} {
		if err = a.AddKernel(rk.region, rk.k); err != nil {
			return
		}
	}
	return
}

func TestAssembleSerial(t *testing.T) {
	ctx := context.Background()
	c := parallel.Self(utils.Discard(0, 1))
	m, err := mesh.Rectangle(4, 3, 2, 1.5)
	require.NoError(t, err)
	a, err := heatProblem(ctx, c, m, Static)
	require.NoError(t, err)
	assert.Nil(t, a.Mass())
	assert.Len(t, a.Kernels("domain"), 3)
	require.NoError(t, a.AssembleSystem(ctx))

	K1 := mat.DenseCopyOf(a.Stiffness().Dense())
	F1 := append([]float64(nil), a.Load().Owned()...)
	{ // Reassembly gives identical bits
		require.NoError(t, a.AssembleSystem(ctx))
		assert.Equal(t, K1.RawMatrix().Data, a.Stiffness().Dense().RawMatrix().Data)
		assert.Equal(t, F1, a.Load().Owned())
	}
	{ // Fixed DOF rows and columns
		left, err := m.RegionNodes("left", mesh.Renumbered)
		require.NoError(t, err)
		sort.Ints(left)
		assert.Equal(t, left, a.Stiffness().Fixed())
		for _, d := range left {
			assert.Equal(t, 1., a.Load().Owned()[d])
			assert.Equal(t, 1., a.Solution().Owned()[d])
			for j := 0; j < m.NumNodes(); j++ {
				want := 0.
				if j == d {
					want = 1
				}
				assert.Equal(t, want, K1.At(d, j))
				assert.Equal(t, want, K1.At(j, d))
			}
		}
	}
	{ // Dynamic problems carry the mass, which sums to the area
		a, err := heatProblem(ctx, c, m, Dynamic)
		require.NoError(t, err)
		require.NoError(t, a.AssembleSystem(ctx))
		assert.InDelta(t, 3., mat.Sum(a.Mass().Dense()), 1.e-12)
	}
}

func TestStaticLaplace(t *testing.T) {
	// u = x/2 on the rectangle is reproduced exactly by linear elements
	for _, np := range []int{1, 3} {
		meshes, _ := rectangleParts(t, np)
		err := parallel.Run(context.Background(), np, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
			m := meshes[c.Rank()]
			f, err := field.NewField("u", 1, m)
			if err != nil {
				return err
			}
			if err = f.AddFixedDof("left", 0, 0); err != nil {
				return err
			}
			if err = f.AddFixedDof("right", 0, 1); err != nil {
				return err
			}
			sp, err := la.ComputeSparsity(ctx, c, f)
			if err != nil {
				return err
			}
			a, err := NewAssembler(ctx, c, f, sp, Static)
			if err != nil {
				return err
			}
			if err = a.AddKernel("domain", kernel.Diffusion{Coeff: 1}); err != nil {
				return err
			}
			if err = a.AssembleSystem(ctx); err != nil {
				return err
			}
			if _, err = la.Solve(ctx, a.Stiffness(), a.Load(), a.Solution(), la.SolverOptions{Tol: 1.e-12, MaxIter: 500}); err != nil {
				return err
			}
			if err = a.UpdateFieldValues(ctx); err != nil {
				return err
			}
			xpts := m.Coordinates()
			for n, u := range f.Values() {
				assert.InDelta(t, xpts[3*n]/2, u, 1.e-9, "rank %d node %d", c.Rank(), n)
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestAssembleDistributed(t *testing.T) {
	ctx := context.Background()
	serial, err := mesh.Rectangle(4, 3, 2, 1.5)
	require.NoError(t, err)
	ref, err := heatProblem(ctx, parallel.Self(utils.Discard(0, 1)), serial, Modal)
	require.NoError(t, err)
	require.NoError(t, ref.AssembleSystem(ctx))
	var (
		K = ref.Stiffness().Dense()
		M = ref.Mass().Dense()
		F = ref.Load().Owned()
		N = serial.NumNodes()
	)

	const np = 3
	meshes, mp := rectangleParts(t, np)
	global := make([]int, N) // renumbered -> global
	for g, r := range mp.Renumbered {
		global[r] = g
	}
	err = parallel.Run(ctx, np, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
		a, err := heatProblem(ctx, c, meshes[c.Rank()], Modal)
		if err != nil {
			return err
		}
		if err = a.AssembleSystem(ctx); err != nil {
			return err
		}
		lo, hi := a.Solution().Layout().Range()
		for i := lo; i < hi; i++ {
			gi := global[i]
			assert.InDelta(t, F[gi], a.Load().Owned()[i-lo], 1.e-12)
			for j := 0; j < N; j++ {
				gj := global[j]
				assert.InDelta(t, K.At(gi, gj), a.Stiffness().At(i, j), 1.e-12, "K(%d,%d)", gi, gj)
				assert.InDelta(t, M.At(gi, gj), a.Mass().At(i, j), 1.e-12, "M(%d,%d)", gi, gj)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAssemblerErrors(t *testing.T) {
	ctx := context.Background()
	c := parallel.Self(utils.Discard(0, 1))
	_, err := NewAssembler(ctx, c, nil, nil, Static)
	assert.Error(t, err)

	// a single clockwise triangle
	cell, err := mesh.NewCell(0, mesh.Triangle, 1, 0, 0)
	require.NoError(t, err)
	m, err := mesh.NewMesh([]mesh.Cell{cell}, []int{0, 1, 2}, []float64{0, 0, 0, 0, 1, 0, 1, 0, 0},
		[]mesh.Region{{Name: "domain", Dim: 2, Tag: 0}})
	require.NoError(t, err)
	f, err := field.NewField("u", 1, m)
	require.NoError(t, err)
	a, err := NewAssembler(ctx, c, f, nil, Static)
	require.NoError(t, err)
	assert.Error(t, a.AddKernel("domain", nil))
	assert.ErrorIs(t, a.AddKernel("wall", kernel.Diffusion{}), utils.ErrUnknownRegion)
	require.NoError(t, a.AddKernel("domain", kernel.Diffusion{Coeff: 1}))
	assert.ErrorIs(t, a.AssembleSystem(ctx), utils.ErrNegativeJacobian)

	assert.Equal(t, "Modal", Modal.String())
	assert.False(t, Static.HasMass())
}
