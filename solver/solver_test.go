package solver

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/dfem/InputParameters"
	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/la"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/partition"
	"github.com/notargets/dfem/readfiles"
	"github.com/notargets/dfem/utils"
)

func parts(t *testing.T, m *mesh.Mesh, np int) []*mesh.Mesh {
	mp, err := partition.NewMeshPartitioner(m, np, partition.BlockPartitioner{}, nil)
	require.NoError(t, err)
	require.NoError(t, mp.Partition())
	meshes := make([]*mesh.Mesh, np)
	for r := range meshes {
		meshes[r], err = mp.LocalMesh(r)
		require.NoError(t, err)
	}
	return meshes
}

func parseCase(t *testing.T, text string) *InputParameters.CaseParameters {
	var cp InputParameters.CaseParameters
	require.NoError(t, cp.Parse([]byte(text)))
	return &cp
}

func TestStatic(t *testing.T) {
	out := t.TempDir()
	cp := parseCase(t, fmt.Sprintf(`
Mesh: rectangle
Field: {Name: u}
Kernels: [{Region: domain, Type: diffusion, Params: {coeff: 3}}]
FixedDof:
  - {Region: left, Var: 0, Value: 2}
  - {Region: right, Var: 0, Value: 4}
Solver: {Tol: 1.e-12}
Output: %s
`, out))
	m, err := mesh.Rectangle(4, 3, 2, 1.5)
	require.NoError(t, err)
	const np = 2
	meshes := parts(t, m, np)
	err = parallel.Run(context.Background(), np, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
		r, a, err := Setup(ctx, c, meshes[c.Rank()], cp)
		if err != nil {
			return err
		}
		if err = Execute(ctx, r); err != nil {
			return err
		}
		xpts := a.Field().Mesh().Coordinates()
		for n, u := range a.Field().Values() {
			assert.InDelta(t, 2+xpts[3*n], u, 1.e-9)
		}
		return nil
	})
	require.NoError(t, err)

	// the output is in global order
	f, err := field.NewField("u", 1, m)
	require.NoError(t, err)
	require.NoError(t, readfiles.ReadFieldValues(filepath.Join(out, "u"), f))
	for n, u := range f.Values() {
		assert.InDelta(t, 2+m.Coordinates()[3*n], u, 1.e-9)
	}
}

func TestModalBar(t *testing.T) {
	// fixed-free bar, f_k = (2k-1)/(4L) sqrt(E/rho)
	const (
		L     = 2.
		E     = 4.
		rho   = 1.
		nodes = 40
	)
	out := t.TempDir()
	cp := parseCase(t, fmt.Sprintf(`
Mesh: bar
Analysis: modal
NumModes: 3
Field: {Name: u}
Kernels:
  - {Region: domain, Type: diffusion, Params: {coeff: %g}}
  - {Region: domain, Type: mass, Params: {density: %g}}
FixedDof: [{Region: left, Var: 0, Value: 0}]
Output: %s
`, E, rho, out))
	bar, err := mesh.Bar(nodes, L)
	require.NoError(t, err)
	for _, np := range []int{1, 2} {
		meshes := parts(t, bar, np)
		err = parallel.Run(context.Background(), np, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
			r, _, err := Setup(ctx, c, meshes[c.Rank()], cp)
			if err != nil {
				return err
			}
			if err = Execute(ctx, r); err != nil {
				return err
			}
			modes := r.(*Modal).Modes
			if len(modes) != 3 {
				return fmt.Errorf("got %d modes", len(modes))
			}
			for k := 1; k <= 2; k++ {
				want := float64(2*k-1) / (4 * L) * math.Sqrt(E/rho)
				assert.InEpsilon(t, want, Frequency(modes[k-1].Value), 5.e-3, "mode %d", k)
			}
			return nil
		})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err = os.Stat(filepath.Join(out, fmt.Sprintf("u_mode_%d", i)))
			assert.NoError(t, err)
		}
	}
	assert.Zero(t, Frequency(-1.e-12))
}

func TestDynamic(t *testing.T) {
	{ // Uniform source on a free bar: u grows by dt each step
		cp := parseCase(t, `
Mesh: bar
Analysis: dynamic
Field: {Name: u}
Kernels:
  - {Region: domain, Type: diffusion}
  - {Region: domain, Type: mass}
  - {Region: domain, Type: source, Params: {value: 1}}
Time: {Start: 0, Final: 1, Step: 0.25}
Solver: {Tol: 1.e-13}
`)
		bar, err := mesh.Bar(10, 1)
		require.NoError(t, err)
		ctx := context.Background()
		r, a, err := Setup(ctx, parallel.Self(utils.Discard(0, 1)), bar, cp)
		require.NoError(t, err)
		require.Equal(t, 5, r.Steps())
		require.NoError(t, Execute(ctx, r))
		d := r.(*Dynamic)
		assert.Equal(t, 5, d.StepCount())
		assert.InDelta(t, 1.25, d.Time(), 1.e-14)
		for _, u := range a.Field().Values() {
			assert.InDelta(t, 1.25, u, 1.e-10)
		}
	}
	{ // Heat conduction settles on the linear profile
		out := t.TempDir()
		cp := parseCase(t, fmt.Sprintf(`
Mesh: bar
Analysis: dynamic
Field: {Name: T}
InitialValues: [0]
Kernels:
  - {Region: domain, Type: diffusion}
  - {Region: domain, Type: mass}
FixedDof:
  - {Region: right, Var: 0, Value: 1}
  - {Region: left, Var: 0, Value: 0}
Time: {Start: 0, Final: 20, Step: 1}
Output: %s
`, out))
		bar, err := mesh.Bar(8, 1)
		require.NoError(t, err)
		const np = 2
		meshes := parts(t, bar, np)
		err = parallel.Run(context.Background(), np, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
			r, a, err := Setup(ctx, c, meshes[c.Rank()], cp)
			if err != nil {
				return err
			}
			if err = Execute(ctx, r); err != nil {
				return err
			}
			xpts := a.Field().Mesh().Coordinates()
			for n, u := range a.Field().Values() {
				assert.InDelta(t, xpts[3*n], u, 1.e-8)
			}
			return nil
		})
		require.NoError(t, err)
		for _, step := range []int{0, 20} {
			_, err = os.Stat(filepath.Join(out, fmt.Sprintf("T_%d", step)))
			assert.NoError(t, err)
		}
	}
}

func TestThermalExpansionField(t *testing.T) {
	m, err := mesh.Rectangle(3, 2, 3, 2)
	require.NoError(t, err)
	temp, err := field.NewField("T", 1, m)
	require.NoError(t, err)
	require.NoError(t, temp.Fill([]float64{2}))
	path := filepath.Join(t.TempDir(), "T")
	require.NoError(t, readfiles.WriteFieldValues(context.Background(), parallel.Self(utils.Discard(0, 1)), path, temp, true))

	cp := parseCase(t, fmt.Sprintf(`
Mesh: rectangle
Field: {Name: u, NumVars: 2}
Kernels:
  - {Region: domain, Type: elasticity, Analysis: PlaneStress, Params: {E: 10, nu: 0.25}}
  - {Region: domain, Type: thermal_stress, Analysis: PlaneStress, Field: %s, Params: {E: 10, nu: 0.25, alpha: 0.5}}
FixedDof:
  - {Region: left, Var: 0, Value: 0}
  - {Region: bottom, Var: 1, Value: 0}
Solver: {Tol: 1.e-12}
`, path))
	const np = 2
	meshes := parts(t, m, np)
	err = parallel.Run(context.Background(), np, parallel.DiscardLogs, func(ctx context.Context, c *parallel.Comm) error {
		r, a, err := Setup(ctx, c, meshes[c.Rank()], cp)
		if err != nil {
			return err
		}
		if err = Execute(ctx, r); err != nil {
			return err
		}
		// a uniform unit thermal strain expands the free plate in place
		xpts := a.Field().Mesh().Coordinates()
		u := a.Field().Values()
		for n := 0; n < a.Field().Mesh().NumNodes(); n++ {
			assert.InDelta(t, xpts[3*n], u[2*n], 1.e-8)
			assert.InDelta(t, xpts[3*n+1], u[2*n+1], 1.e-8)
		}
		return nil
	})
	require.NoError(t, err)

	_, _, err = Setup(context.Background(), parallel.Self(utils.Discard(0, 1)), m, parseCase(t,
		"Mesh: m\nField: {Name: u, NumVars: 2}\nKernels: [{Region: domain, Type: pressure, Field: "+path+"_missing}]\n"))
	assert.Error(t, err)
}

func TestSetupErrors(t *testing.T) {
	ctx := context.Background()
	c := parallel.Self(utils.Discard(0, 1))
	bar, err := mesh.Bar(2, 1)
	require.NoError(t, err)
	for name, text := range map[string]string{
		"kernel type": "Mesh: bar\nField: {Name: u}\nKernels: [{Region: domain, Type: plasma}]\n",
		"region":      "Mesh: bar\nField: {Name: u}\nKernels: [{Region: wall, Type: diffusion}]\n",
		"fixed":       "Mesh: bar\nField: {Name: u}\nKernels: [{Region: domain, Type: diffusion}]\nFixedDof: [{Region: wall}]\n",
	} {
		_, _, err = Setup(ctx, c, bar, parseCase(t, text))
		assert.Error(t, err, name)
	}

	// a static system has no mass to integrate in time
	r, a, err := Setup(ctx, c, bar, parseCase(t, "Mesh: bar\nField: {Name: u}\nKernels: [{Region: domain, Type: diffusion}]\n"))
	require.NoError(t, err)
	assert.IsType(t, &Static{}, r)
	d := &Dynamic{Assembler: a, Final: 1, Step: .5}
	assert.Error(t, Execute(ctx, d))
	_, err = ImplicitEuler{Dt: 1}.Step(ctx, a, la.DefaultSolverOptions())
	assert.Error(t, err)
}

type countingRunner struct {
	resets, pre, run, post int
	failAt                 int
}

func (r *countingRunner) Reset(context.Context) error { r.resets++; return nil }
func (r *countingRunner) PreRun(context.Context) error {
	r.pre++
	if r.pre == r.failAt {
		return fmt.Errorf("failed")
	}
	return nil
}
func (r *countingRunner) Run(context.Context) error     { r.run++; return nil }
func (r *countingRunner) PostRun(context.Context) error { r.post++; return nil }
func (r *countingRunner) Steps() int                    { return 4 }

func TestExecute(t *testing.T) {
	ctx := context.Background()
	{ // the hooks wrap every step, the reset runs once
		r := &countingRunner{}
		require.NoError(t, Execute(ctx, r))
		assert.Equal(t, countingRunner{resets: 1, pre: 4, run: 4, post: 4}, *r)
	}
	{
		r := &countingRunner{failAt: 3}
		assert.ErrorContains(t, Execute(ctx, r), "pre run 2")
		assert.Equal(t, 2, r.run)
	}
	{
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		r := &countingRunner{}
		assert.ErrorIs(t, Execute(cctx, r), context.Canceled)
		assert.Zero(t, r.pre)
	}
	{ // a dynamic run rewinds when executed again
		cp := parseCase(t, `
Mesh: bar
Analysis: dynamic
Field: {Name: u}
Kernels:
  - {Region: domain, Type: diffusion}
  - {Region: domain, Type: mass}
Time: {Start: 1, Final: 2, Step: 0.5}
`)
		bar, err := mesh.Bar(4, 1)
		require.NoError(t, err)
		r, _, err := Setup(ctx, parallel.Self(utils.Discard(0, 1)), bar, cp)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			require.NoError(t, Execute(ctx, r))
			d := r.(*Dynamic)
			assert.Equal(t, 3, d.StepCount())
			assert.InDelta(t, 2.5, d.Time(), 1.e-14)
		}
	}
}
