/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math/rand/v2"

	"github.com/pradeep-pyro/triangle"
	"github.com/spf13/cobra"

	"github.com/notargets/dfem/mesh"
)

// GenerateCmd represents the generate command
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate simple native meshes",
	Long: `
Writes a generated mesh into a native mesh directory. Rectangles carry the
regions domain, left, right, bottom and top; bars carry domain, left and
right.

dfem generate rectangle --nx 20 --ny 10 --lx 2 --ly 1 --out plate
dfem generate delaunay --points 400 --out plate
dfem generate bar --n 100 --length 1 --out bar`,
}

var rectangleCmd = &cobra.Command{
	Use:   "rectangle",
	Short: "Structured triangle mesh of a rectangle",
	RunE: func(cmd *cobra.Command, args []string) error {
		nx, ny, lx, ly := boxFlags(cmd)
		m, err := mesh.Rectangle(nx, ny, lx, ly)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		return saveMesh(out, m)
	},
}

var delaunayCmd = &cobra.Command{
	Use:   "delaunay",
	Short: "Delaunay triangulation of random points in a rectangle",
	RunE: func(cmd *cobra.Command, args []string) error {
		nx, ny, lx, ly := boxFlags(cmd)
		nPoints, _ := cmd.Flags().GetInt("points")
		seed, _ := cmd.Flags().GetUint64("seed")
		m, err := DelaunayRectangle(nx, ny, lx, ly, nPoints, seed)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		return saveMesh(out, m)
	},
}

var barCmd = &cobra.Command{
	Use:   "bar",
	Short: "Line mesh of a bar",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("n")
		length, _ := cmd.Flags().GetFloat64("length")
		m, err := mesh.Bar(n, length)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		return saveMesh(out, m)
	},
}

func init() {
	rootCmd.AddCommand(GenerateCmd)
	GenerateCmd.AddCommand(rectangleCmd, delaunayCmd, barCmd)
	GenerateCmd.PersistentFlags().String("out", "", "native mesh directory to write")
	_ = GenerateCmd.MarkPersistentFlagRequired("out")
	for _, c := range []*cobra.Command{rectangleCmd, delaunayCmd} {
		c.Flags().Int("nx", 10, "boundary divisions along x")
		c.Flags().Int("ny", 10, "boundary divisions along y")
		c.Flags().Float64("lx", 1, "length along x")
		c.Flags().Float64("ly", 1, "length along y")
	}
	delaunayCmd.Flags().Int("points", 100, "number of random interior points")
	delaunayCmd.Flags().Uint64("seed", 1, "random seed of the interior points")
	barCmd.Flags().Int("n", 10, "number of cells")
	barCmd.Flags().Float64("length", 1, "bar length")
}

func boxFlags(cmd *cobra.Command) (nx, ny int, lx, ly float64) {
	nx, _ = cmd.Flags().GetInt("nx")
	ny, _ = cmd.Flags().GetInt("ny")
	lx, _ = cmd.Flags().GetFloat64("lx")
	ly, _ = cmd.Flags().GetFloat64("ly")
	return
}

// DelaunayRectangle triangulates [0,lx]x[0,ly] with nx by ny boundary
// divisions and nPoints random interior points.
func DelaunayRectangle(nx, ny int, lx, ly float64, nPoints int, seed uint64) (*mesh.Mesh, error) {
	if nx < 1 || ny < 1 || nPoints < 0 {
		return nil, fmt.Errorf("invalid delaunay parameters: %dx%d divisions, %d points", nx, ny, nPoints)
	}
	pts := make([][2]float64, 0, 2*(nx+ny)+nPoints)
	for i := 0; i < nx; i++ {
		x := lx * float64(i) / float64(nx)
		pts = append(pts, [2]float64{x, 0}, [2]float64{lx - x, ly})
	}
	for j := 0; j < ny; j++ {
		y := ly * float64(j) / float64(ny)
		pts = append(pts, [2]float64{lx, y}, [2]float64{0, ly - y})
	}
	// interior points stay clear of the boundary
	var (
		rng    = rand.New(rand.NewPCG(seed, seed))
		dx, dy = .5 * lx / float64(nx), .5 * ly / float64(ny)
	)
	for i := 0; i < nPoints; i++ {
		pts = append(pts, [2]float64{
			dx + (lx-2*dx)*rng.Float64(),
			dy + (ly-2*dy)*rng.Float64(),
		})
	}
	triangles := triangle.Delaunay(pts)
	tris := make([][3]int, len(triangles))
	for i, t := range triangles {
		tris[i] = [3]int{int(t[0]), int(t[1]), int(t[2])}
	}
	return mesh.Triangulated(pts, tris)
}
