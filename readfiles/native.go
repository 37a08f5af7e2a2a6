package readfiles

import (
	"bufio"
	"fmt"
	"path/filepath"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/partition"
	"github.com/notargets/dfem/utils"
)

const (
	NodesFile   = "Nodes"
	CellsFile   = "Cells"
	RegionsFile = "Regions"
)

// ReadMesh loads the mesh stored in dir. With more than one rank the
// partition artifacts select the rank's owned cells and its owned and
// ghost nodes, in that order.
func ReadMesh(dir string, rank, size int) (m *mesh.Mesh, err error) {
	regions, err := readRegions(dir)
	if err != nil {
		return
	}
	if size == 1 {
		var (
			xpts  []float64
			cells []mesh.Cell
			conn  []int
		)
		if _, xpts, err = readNodes(dir, nil); err != nil {
			return
		}
		if _, cells, conn, err = readCells(dir, nil, nil); err != nil {
			return
		}
		return mesh.NewMesh(cells, conn, xpts, regions)
	}

	cs, err := partition.ReadCellPartition(dir, rank, size)
	if err != nil {
		return
	}
	ns, err := partition.ReadNodePartition(dir, rank, size)
	if err != nil {
		return
	}
	g2l := make(map[int]int, len(ns.Global))
	for local, g := range ns.Global {
		g2l[g] = local
	}
	owned := make(map[int]bool, len(cs.Cells))
	for _, id := range cs.Cells {
		owned[id] = true
	}
	nNodesGlobal, xpts, err := readNodes(dir, g2l)
	if err != nil {
		return
	}
	nCellsGlobal, cells, conn, err := readCells(dir, owned, g2l)
	if err != nil {
		return
	}
	if len(cells) != len(cs.Cells) {
		return nil, utils.InvalidSizeError(len(cs.Cells), len(cells))
	}
	if len(conn) != cs.ConnLen {
		return nil, utils.InvalidSizeError(cs.ConnLen, len(conn))
	}
	index, err := mesh.NewIndexMap(ns.Global, ns.Renumbered)
	if err != nil {
		return
	}
	return mesh.NewPartitionedMesh(nCellsGlobal, cells, conn, ns.NumOwned, ns.NumGhost, nNodesGlobal,
		xpts, regions, index)
}

// readNodes keeps every node when g2l is nil, otherwise only the listed
// global ids at their local positions.
func readNodes(dir string, g2l map[int]int) (nGlobal int, xpts []float64, err error) {
	tr, closer, err := openTokens(filepath.Join(dir, NodesFile))
	if err != nil {
		return
	}
	defer closer.Close()
	if nGlobal, err = tr.nextInt(); err != nil {
		return
	}
	if g2l == nil {
		xpts = make([]float64, 3*nGlobal)
	} else {
		xpts = make([]float64, 3*len(g2l))
	}
	var found int
	for i := 0; i < nGlobal; i++ {
		var xyz [3]float64
		for j := range xyz {
			if xyz[j], err = tr.nextFloat(); err != nil {
				return
			}
		}
		local := i
		if g2l != nil {
			var ok bool
			if local, ok = g2l[i]; !ok {
				continue
			}
			found++
		}
		copy(xpts[3*local:3*local+3], xyz[:])
	}
	if g2l != nil && found != len(g2l) {
		return 0, nil, utils.InvalidSizeError(len(g2l), found)
	}
	return
}

// readCells keeps every cell when owned is nil, connectivity is mapped
// through g2l when it is not nil.
func readCells(dir string, owned map[int]bool, g2l map[int]int) (nGlobal int, cells []mesh.Cell, conn []int, err error) {
	path := filepath.Join(dir, CellsFile)
	tr, closer, err := openTokens(path)
	if err != nil {
		return
	}
	defer closer.Close()
	if nGlobal, err = tr.nextInt(); err != nil {
		return
	}
	connSize, err := tr.nextInt()
	if err != nil {
		return
	}
	if owned == nil {
		cells = make([]mesh.Cell, 0, nGlobal)
		conn = make([]int, 0, connSize)
	}
	var total int
	for i := 0; i < nGlobal; i++ {
		var hdr [4]int // id, type, order, tag
		for j := range hdr {
			if hdr[j], err = tr.nextInt(); err != nil {
				return
			}
		}
		n, ok := mesh.NumCellNodes(mesh.CellType(hdr[1]), hdr[2])
		if !ok {
			err = utils.InvalidCellError(hdr[0], hdr[1], hdr[2])
			return
		}
		total += n
		keep := owned == nil || owned[hdr[0]]
		var c mesh.Cell
		if keep {
			if c, err = mesh.NewCell(hdr[0], mesh.CellType(hdr[1]), hdr[2], hdr[3], len(conn)); err != nil {
				return
			}
		}
		for j := 0; j < n; j++ {
			var node int
			if node, err = tr.nextInt(); err != nil {
				return
			}
			if !keep {
				continue
			}
			if g2l != nil {
				local, ok := g2l[node]
				if !ok {
					err = fmt.Errorf("%s: cell %d references node %d which is neither owned nor ghost",
						path, hdr[0], node)
					return
				}
				node = local
			}
			conn = append(conn, node)
		}
		if keep {
			cells = append(cells, c)
		}
	}
	if total != connSize {
		err = utils.InvalidSizeError(connSize, total)
	}
	return
}

func readRegions(dir string) (regions []mesh.Region, err error) {
	tr, closer, err := openTokens(filepath.Join(dir, RegionsFile))
	if err != nil {
		return
	}
	defer closer.Close()
	n, err := tr.nextInt()
	if err != nil {
		return
	}
	regions = make([]mesh.Region, n)
	for i := range regions {
		if regions[i].Name, err = tr.next(); err != nil {
			return
		}
		if regions[i].Dim, err = tr.nextInt(); err != nil {
			return
		}
		if regions[i].Tag, err = tr.nextInt(); err != nil {
			return
		}
	}
	return
}

// WriteMesh stores a serial mesh as Nodes, Cells and Regions in dir.
func WriteMesh(dir string, m *mesh.Mesh) (err error) {
	if m.NumNodesGhost() != 0 || m.NumNodes() != m.NumNodesGlobal() {
		return fmt.Errorf("only a serial mesh can be written, this one has %d ghost nodes", m.NumNodesGhost())
	}
	err = createFile(filepath.Join(dir, NodesFile), func(w *bufio.Writer) error {
		fmt.Fprintf(w, "%d\n", m.NumNodes())
		xpts := m.Coordinates()
		for i := 0; i < m.NumNodes(); i++ {
			fmt.Fprintf(w, "%s %s %s\n",
				formatFloat(xpts[3*i]), formatFloat(xpts[3*i+1]), formatFloat(xpts[3*i+2]))
		}
		return nil
	})
	if err != nil {
		return
	}
	err = createFile(filepath.Join(dir, CellsFile), func(w *bufio.Writer) error {
		fmt.Fprintf(w, "%d\n%d\n", m.NumCells(), m.ConnSize())
		for _, c := range m.Cells() {
			nodes, _, err := m.CellNodes(c, mesh.Global)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d %d %d %d", c.ID, int(c.Type), c.Order, c.RegionTag)
			for _, n := range nodes {
				fmt.Fprintf(w, " %d", n)
			}
			fmt.Fprintln(w)
		}
		return nil
	})
	if err != nil {
		return
	}
	return createFile(filepath.Join(dir, RegionsFile), func(w *bufio.Writer) error {
		fmt.Fprintf(w, "%d\n", len(m.Regions()))
		for _, r := range m.Regions() {
			fmt.Fprintf(w, "%s %d %d\n", r.Name, r.Dim, r.Tag)
		}
		return nil
	})
}
