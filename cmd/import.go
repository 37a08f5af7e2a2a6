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
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/readfiles"
)

// ImportCmd represents the import command
var ImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Convert a Gmsh or SU2 mesh into a native mesh directory",
	Long: `
Reads a Gmsh 2.2 ASCII or an SU2 mesh and writes its Nodes, Cells and
Regions files into the output directory.

dfem import --gmsh plate.msh --out plate
dfem import --su2 naca12.su2 --out naca12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gmsh, _ := cmd.Flags().GetString("gmsh")
		su2, _ := cmd.Flags().GetString("su2")
		out, _ := cmd.Flags().GetString("out")
		verbose, _ := cmd.Flags().GetBool("verbose")
		var (
			m   *mesh.Mesh
			err error
		)
		switch {
		case gmsh != "" && su2 != "":
			return fmt.Errorf("give one of --gmsh and --su2")
		case gmsh != "":
			m, err = readfiles.ReadGmsh(gmsh)
		case su2 != "":
			m, err = readfiles.ReadSU2(su2, verbose)
		default:
			return fmt.Errorf("no input mesh, use --gmsh or --su2")
		}
		if err != nil {
			return err
		}
		return saveMesh(out, m)
	},
}

func init() {
	rootCmd.AddCommand(ImportCmd)
	ImportCmd.Flags().String("gmsh", "", "Gmsh 2.2 ASCII mesh file")
	ImportCmd.Flags().String("su2", "", "SU2 mesh file")
	ImportCmd.Flags().String("out", "", "native mesh directory to write")
	ImportCmd.Flags().BoolP("verbose", "v", false, "report the SU2 reader's progress")
	_ = ImportCmd.MarkFlagRequired("out")
}

func saveMesh(dir string, m *mesh.Mesh) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	log, err := logFactory()(0, 1)
	if err != nil {
		return err
	}
	defer log.Close()
	m.Info(log)
	return readfiles.WriteMesh(dir, m)
}
