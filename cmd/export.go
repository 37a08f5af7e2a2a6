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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/readfiles"
)

// ExportCmd represents the export command
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a native mesh and its field files as a VTK file",
	Long: `
Writes the serial mesh of a native mesh directory as a legacy VTK
unstructured grid. Each --field is a field value file written in global
order by "dfem run"; it is named after its file.

dfem export --mesh plate --field out/T_20 --out plate.vtk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("mesh")
		files, _ := cmd.Flags().GetStringSlice("field")
		out, _ := cmd.Flags().GetString("out")
		return ExportVTK(dir, files, out)
	},
}

func init() {
	rootCmd.AddCommand(ExportCmd)
	ExportCmd.Flags().String("mesh", "", "native mesh directory")
	ExportCmd.Flags().StringSlice("field", nil, "field value files to attach")
	ExportCmd.Flags().String("out", "mesh.vtk", "VTK file to write")
	_ = ExportCmd.MarkFlagRequired("mesh")
}

func ExportVTK(dir string, files []string, out string) error {
	m, err := readfiles.ReadMesh(dir, 0, 1)
	if err != nil {
		return err
	}
	fields := make([]*field.Field, len(files))
	for i, file := range files {
		nVars, err := fieldWidth(file)
		if err != nil {
			return err
		}
		if fields[i], err = field.NewField(filepath.Base(file), nVars, m); err != nil {
			return err
		}
		if err = readfiles.ReadFieldValues(file, fields[i]); err != nil {
			return err
		}
	}
	return readfiles.WriteVTK(out, m, fields)
}

// fieldWidth reads the variable count heading a field value file.
func fieldWidth(file string) (nVars int, err error) {
	fp, err := os.Open(file)
	if err != nil {
		return
	}
	defer fp.Close()
	if _, err = fmt.Fscan(fp, &nVars); err != nil {
		return 0, fmt.Errorf("%s: reading header: %w", file, err)
	}
	return
}
