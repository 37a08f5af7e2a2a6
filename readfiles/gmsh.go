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

type gmshCell struct {
	t     mesh.CellType
	order int
}

// gmshElementType2_2 maps Gmsh 2.2 element types to native cells
var gmshElementType2_2 = map[int]gmshCell{
	15: {mesh.Point, 1},
	1:  {mesh.Line, 1},
	8:  {mesh.Line, 2},
	2:  {mesh.Triangle, 1},
	9:  {mesh.Triangle, 2},
	3:  {mesh.Quad, 1},
	16: {mesh.Quad, 2},
	4:  {mesh.Tet, 1},
	11: {mesh.Tet, 2},
	5:  {mesh.Hex, 1},
	17: {mesh.Hex, 2},
	6:  {mesh.Prism, 1},
}

type gmshMesh struct {
	regions []mesh.Region
	xpts    []float64
	nodeIdx map[int]int // gmsh node id -> 0 based position
	cells   []mesh.Cell
	conn    []int
}

// ReadGmsh reads a Gmsh 2.2 ASCII file. Physical names become regions and
// the first element tag is the region tag.
func ReadGmsh(filename string) (*mesh.Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, utils.InvalidFileNameError(filename, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	const maxScanTokenSize = 1024 * 1024 * 10 // 10MB
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	gm := &gmshMesh{nodeIdx: make(map[int]int)}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var err error
		switch line {
		case "":
			continue
		case "$MeshFormat":
			err = readMeshFormat(scanner)
		case "$PhysicalNames":
			err = gm.readPhysicalNames(scanner)
		case "$Nodes":
			err = gm.readNodes(scanner)
		case "$Elements":
			err = gm.readElements(scanner)
		default:
			if strings.HasPrefix(line, "$") {
				err = skipSection(scanner, "$End"+line[1:])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return mesh.NewMesh(gm.cells, gm.conn, gm.xpts, gm.regions)
}

func skipSection(scanner *bufio.Scanner, end string) error {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == end {
			return nil
		}
	}
	return fmt.Errorf("unexpected EOF looking for %s", end)
}

func scanCount(scanner *bufio.Scanner, section string) (int, error) {
	if !scanner.Scan() {
		return 0, fmt.Errorf("unexpected EOF in %s", section)
	}
	n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return 0, fmt.Errorf("invalid count in %s: %w", section, err)
	}
	return n, nil
}

func readMeshFormat(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}
	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}
	if !strings.HasPrefix(parts[0], "2") {
		return fmt.Errorf("unsupported Gmsh version: %s", parts[0])
	}
	if parts[1] != "0" {
		return fmt.Errorf("binary Gmsh files are not supported")
	}
	return skipSection(scanner, "$EndMeshFormat")
}

func (gm *gmshMesh) readPhysicalNames(scanner *bufio.Scanner) error {
	n, err := scanCount(scanner, "PhysicalNames")
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in PhysicalNames")
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			return fmt.Errorf("invalid physical name entry")
		}
		dim, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("invalid physical dimension: %w", err)
		}
		tag, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid physical tag: %w", err)
		}
		name := strings.Trim(strings.Join(fields[2:], "_"), "\"")
		gm.regions = append(gm.regions, mesh.Region{Name: name, Dim: dim, Tag: tag})
	}
	return skipSection(scanner, "$EndPhysicalNames")
}

func (gm *gmshMesh) readNodes(scanner *bufio.Scanner) error {
	n, err := scanCount(scanner, "Nodes")
	if err != nil {
		return err
	}
	gm.xpts = make([]float64, 3*n)
	for i := 0; i < n; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in Nodes at node %d", i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return fmt.Errorf("invalid node entry at line %d", i+1)
		}
		nodeID, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("invalid node ID: %w", err)
		}
		gm.nodeIdx[nodeID] = i
		for j := 0; j < 3; j++ {
			if gm.xpts[3*i+j], err = strconv.ParseFloat(fields[j+1], 64); err != nil {
				return fmt.Errorf("invalid coordinate: %w", err)
			}
		}
	}
	return skipSection(scanner, "$EndNodes")
}

func (gm *gmshMesh) readElements(scanner *bufio.Scanner) error {
	n, err := scanCount(scanner, "Elements")
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in Elements at element %d", i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			return fmt.Errorf("invalid element entry at line %d", i+1)
		}
		var hdr [3]int // id, type, number of tags
		for j := range hdr {
			if hdr[j], err = strconv.Atoi(fields[j]); err != nil {
				return fmt.Errorf("invalid element header at line %d: %w", i+1, err)
			}
		}
		gc, ok := gmshElementType2_2[hdr[1]]
		if !ok {
			return utils.UnsupportedExternalFormatError("Gmsh", hdr[0], hdr[1])
		}
		var tag int
		if hdr[2] > 0 {
			if len(fields) < 4 {
				return fmt.Errorf("missing tags of element %d", hdr[0])
			}
			if tag, err = strconv.Atoi(fields[3]); err != nil {
				return fmt.Errorf("invalid physical tag of element %d: %w", hdr[0], err)
			}
		}
		c, err := mesh.NewCell(len(gm.cells), gc.t, gc.order, tag, len(gm.conn))
		if err != nil {
			return err
		}
		if len(fields) < 3+hdr[2] {
			return fmt.Errorf("missing tags of element %d", hdr[0])
		}
		nodes := fields[3+hdr[2]:]
		if len(nodes) != c.NumNodes {
			return utils.InvalidSizeError(c.NumNodes, len(nodes))
		}
		for _, f := range nodes {
			id, err := strconv.Atoi(f)
			if err != nil {
				return fmt.Errorf("invalid node of element %d: %w", hdr[0], err)
			}
			idx, ok := gm.nodeIdx[id]
			if !ok {
				return fmt.Errorf("element %d references unknown node %d", hdr[0], id)
			}
			gm.conn = append(gm.conn, idx)
		}
		gm.cells = append(gm.cells, c)
	}
	return skipSection(scanner, "$EndElements")
}
