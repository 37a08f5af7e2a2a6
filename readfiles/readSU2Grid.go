package readfiles

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle      SU2ElementType = 5
	ELType_Quadrilateral SU2ElementType = 9
	ELType_Tetrahedral   SU2ElementType = 10
	ELType_Hexahedral    SU2ElementType = 12
	ELType_Prism         SU2ElementType = 13
	ELType_Pyramid       SU2ElementType = 14
)

var su2CellType = map[SU2ElementType]mesh.CellType{
	ELType_LINE:          mesh.Line,
	ELType_Triangle:      mesh.Triangle,
	ELType_Quadrilateral: mesh.Quad,
	ELType_Tetrahedral:   mesh.Tet,
	ELType_Hexahedral:    mesh.Hex,
	ELType_Prism:         mesh.Prism,
}

// su2Builder accumulates cells while the sections are read
type su2Builder struct {
	cells []mesh.Cell
	conn  []int
}

// readElementRow parses "type n0 n1 ... [index]" into a first order cell
func (b *su2Builder) readElementRow(line string, tag int) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("unable to read element [%s]", line)
	}
	nType, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("unable to read element type [%s]: %w", line, err)
	}
	id := len(b.cells)
	ct, ok := su2CellType[SU2ElementType(nType)]
	if !ok {
		return utils.UnsupportedExternalFormatError("SU2", id, nType)
	}
	c, err := mesh.NewCell(id, ct, 1, tag, len(b.conn))
	if err != nil {
		return err
	}
	if len(fields) < 1+c.NumNodes {
		return fmt.Errorf("unable to read vertices of element %d [%s]", id, line)
	}
	for _, f := range fields[1 : 1+c.NumNodes] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("unable to read vertices of element %d [%s]: %w", id, line, err)
		}
		b.conn = append(b.conn, v)
	}
	b.cells = append(b.cells, c)
	return nil
}

func (b *su2Builder) readElements(reader *bufio.Reader, tag int, count string) (err error) {
	K, err := readNumber(reader, count)
	if err != nil {
		return
	}
	for k := 0; k < K; k++ {
		var line string
		if line, err = getLineNoComments(reader); err != nil {
			return
		}
		if err = b.readElementRow(line, tag); err != nil {
			return
		}
	}
	return
}

func readVertices(reader *bufio.Reader, dim int) (xpts []float64, err error) {
	Nv, err := readNumber(reader, "NPOIN")
	if err != nil {
		return
	}
	xpts = make([]float64, 3*Nv)
	for i := 0; i < Nv; i++ {
		var line string
		if line, err = getLineNoComments(reader); err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) < dim {
			return nil, fmt.Errorf("unable to read coordinates of point %d [%s]", i, line)
		}
		for j := 0; j < dim; j++ {
			if xpts[3*i+j], err = strconv.ParseFloat(fields[j], 64); err != nil {
				return nil, fmt.Errorf("unable to read coordinates of point %d: %w", i, err)
			}
		}
	}
	return
}

// ReadSU2 imports an SU2 mesh. Interior elements form the region "domain"
// and every marker becomes a region of its own, tagged 1..NMARK.
func ReadSU2(filename string, verbose bool) (m *mesh.Mesh, err error) {
	if verbose {
		fmt.Printf("Reading SU2 file named: %s\n", filename)
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, utils.InvalidFileNameError(filename, err)
	}
	defer file.Close()
	return readSU2(bufio.NewReader(file), verbose)
}

func readSU2(reader *bufio.Reader, verbose bool) (m *mesh.Mesh, err error) {
	dim, err := readNumber(reader, "NDIME")
	if err != nil {
		return
	}
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("invalid dimension NDIME= %d", dim)
	}
	if verbose {
		fmt.Printf("Read file with %d dimensional data...\n", dim)
	}
	b := &su2Builder{}
	if err = b.readElements(reader, 0, "NELEM"); err != nil {
		return
	}
	xpts, err := readVertices(reader, dim)
	if err != nil {
		return
	}
	regions := []mesh.Region{{Name: "domain", Dim: dim, Tag: 0}}
	NBCs, err := readNumber(reader, "NMARK")
	if err != nil {
		return
	}
	for n := 0; n < NBCs; n++ {
		var label string
		if label, err = readLabel(reader, "MARKER_TAG"); err != nil {
			return
		}
		tag := n + 1
		regions = append(regions, mesh.Region{Name: label, Dim: dim - 1, Tag: tag})
		if err = b.readElements(reader, tag, "MARKER_ELEMS"); err != nil {
			return
		}
	}
	return mesh.NewMesh(b.cells, b.conn, xpts, regions)
}
