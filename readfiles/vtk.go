package readfiles

import (
	"bufio"
	"fmt"

	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/mesh"
)

type vtkKey struct {
	t     mesh.CellType
	order int
}

var vtkCellType = map[vtkKey]int{
	{mesh.Point, 1}:    1,
	{mesh.Line, 1}:     3,
	{mesh.Line, 2}:     21,
	{mesh.Triangle, 1}: 5,
	{mesh.Triangle, 2}: 22,
	{mesh.Quad, 1}:     9,
	{mesh.Quad, 2}:     23,
	{mesh.Tet, 1}:      10,
	{mesh.Tet, 2}:      24,
	{mesh.Hex, 1}:      12,
	{mesh.Hex, 2}:      25,
	{mesh.Prism, 1}:    13,
}

// vtkNodeOrder permutes native node order into VTK's, in place.
func vtkNodeOrder(c mesh.Cell, nodes []int) {
	if c.Type == mesh.Tet && c.Order == 2 {
		nodes[8], nodes[9] = nodes[9], nodes[8]
	}
}

// WriteVTK writes the local part of m and the fields defined on it as a
// legacy ASCII unstructured grid.
func WriteVTK(filename string, m *mesh.Mesh, fields []*field.Field) error {
	for _, f := range fields {
		if f.Mesh() != m {
			return fmt.Errorf("field %s is not defined on the exported mesh", f.Name())
		}
	}
	return createFile(filename, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "# vtk DataFile Version 2.0\n")
		fmt.Fprintf(w, "dfem\n")
		fmt.Fprintf(w, "ASCII\n")
		fmt.Fprintf(w, "DATASET UNSTRUCTURED_GRID\n")

		fmt.Fprintf(w, "POINTS %d double\n", m.NumNodes())
		xpts := m.Coordinates()
		for i := 0; i < m.NumNodes(); i++ {
			fmt.Fprintf(w, "%s %s %s\n",
				formatFloat(xpts[3*i]), formatFloat(xpts[3*i+1]), formatFloat(xpts[3*i+2]))
		}

		fmt.Fprintf(w, "CELLS %d %d\n", m.NumCells(), m.ConnSize()+m.NumCells())
		for _, c := range m.Cells() {
			nodes, _, err := m.CellNodes(c, mesh.Local)
			if err != nil {
				return err
			}
			vtkNodeOrder(c, nodes)
			fmt.Fprintf(w, "%d", c.NumNodes)
			for _, n := range nodes {
				fmt.Fprintf(w, " %d", n)
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "CELL_TYPES %d\n", m.NumCells())
		for _, c := range m.Cells() {
			fmt.Fprintf(w, "%d\n", vtkCellType[vtkKey{c.Type, c.Order}])
		}

		if len(fields) == 0 {
			return nil
		}
		fmt.Fprintf(w, "POINT_DATA %d\n", m.NumNodes())
		for _, f := range fields {
			nv := f.NumVars()
			if nv == 1 {
				fmt.Fprintf(w, "SCALARS %s double\n", f.Name())
				fmt.Fprintf(w, "LOOKUP_TABLE default\n")
			} else {
				fmt.Fprintf(w, "VECTORS %s double\n", f.Name())
			}
			values := f.Values()
			for i := 0; i < m.NumNodes(); i++ {
				for j := 0; j < nv; j++ {
					if j > 0 {
						fmt.Fprint(w, " ")
					}
					fmt.Fprint(w, formatFloat(values[i*nv+j]))
				}
				if nv == 2 {
					fmt.Fprint(w, " 0")
				}
				fmt.Fprintln(w)
			}
		}
		return nil
	})
}
