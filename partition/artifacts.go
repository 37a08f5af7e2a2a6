package partition

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"

	"github.com/notargets/dfem/utils"
)

const (
	CellPartitionFile = "CellPartition"
	NodePartitionFile = "NodePartition"
)

// CellSlice is one rank's share of the CellPartition artifact.
type CellSlice struct {
	Cells   []int // global ids, ascending
	ConnLen int
}

// NodeSlice is one rank's share of the NodePartition artifact. Owned nodes
// come first, then ghosts.
type NodeSlice struct {
	NumOwned, NumGhost int
	Global             []int
	Renumbered         []int
}

func createArtifact(dir, name string, fill func(w *bufio.Writer)) (err error) {
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return utils.InvalidFileNameError(path, err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()
	w := bufio.NewWriter(file)
	fill(w)
	return w.Flush()
}

func writeCellPartition(dir string, parts []Part) error {
	return createArtifact(dir, CellPartitionFile, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%d\n", len(parts))
		for _, p := range parts {
			fmt.Fprintf(w, "%d %d\n", len(p.Cells), p.ConnLen)
		}
		for _, p := range parts {
			for _, c := range p.Cells {
				fmt.Fprintf(w, "%d\n", c)
			}
		}
	})
}

func writeNodePartition(dir string, parts []Part, renumbered []int) error {
	return createArtifact(dir, NodePartitionFile, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%d\n", len(parts))
		for _, p := range parts {
			fmt.Fprintf(w, "%d %d\n", len(p.Owned), len(p.Ghost))
		}
		for _, p := range parts {
			for _, list := range [][]int{p.Owned, p.Ghost} {
				for _, n := range list {
					fmt.Fprintf(w, "%d %d\n", n, renumbered[n])
				}
			}
		}
	})
}

// intReader pulls whitespace separated integers from an artifact.
type intReader struct {
	path string
	sc   *bufio.Scanner
}

func newIntReader(path string, r io.Reader) *intReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &intReader{path: path, sc: sc}
}

func (ir *intReader) next() (int, error) {
	if !ir.sc.Scan() {
		if err := ir.sc.Err(); err != nil {
			return 0, fmt.Errorf("reading %s: %w", ir.path, err)
		}
		return 0, fmt.Errorf("reading %s: unexpected end of file", ir.path)
	}
	v, err := strconv.Atoi(ir.sc.Text())
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", ir.path, err)
	}
	return v, nil
}

func (ir *intReader) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := ir.next(); err != nil {
			return err
		}
	}
	return nil
}

// readHeader reads the partition count and the P pairs of sizes.
func (ir *intReader) readHeader(size int) (sizes [][2]int, err error) {
	P, err := ir.next()
	if err != nil {
		return
	}
	if P != size {
		return nil, utils.InvalidSizeError(size, P)
	}
	sizes = make([][2]int, P)
	for p := range sizes {
		for k := 0; k < 2; k++ {
			if sizes[p][k], err = ir.next(); err != nil {
				return nil, err
			}
		}
	}
	return
}

func openArtifact(dir, name string) (*os.File, string, error) {
	path := filepath.Join(dir, name)
	file, err := os.Open(path)
	if err != nil {
		return nil, path, utils.InvalidFileNameError(path, err)
	}
	return file, path, nil
}

// ReadCellPartition reads the cells owned by rank, skipping the sections
// of earlier ranks.
func ReadCellPartition(dir string, rank, size int) (cs CellSlice, err error) {
	file, path, err := openArtifact(dir, CellPartitionFile)
	if err != nil {
		return
	}
	defer file.Close()
	ir := newIntReader(path, file)
	sizes, err := ir.readHeader(size)
	if err != nil {
		return
	}
	if rank < 0 || rank >= size {
		return cs, fmt.Errorf("rank %d outside of [0,%d)", rank, size)
	}
	var before int
	for p := 0; p < rank; p++ {
		before += sizes[p][0]
	}
	if err = ir.skip(before); err != nil {
		return
	}
	cs.ConnLen = sizes[rank][1]
	cs.Cells = make([]int, sizes[rank][0])
	for i := range cs.Cells {
		if cs.Cells[i], err = ir.next(); err != nil {
			return
		}
		if i > 0 && cs.Cells[i] <= cs.Cells[i-1] {
			return cs, fmt.Errorf("reading %s: cell ids of partition %d are not ascending", path, rank)
		}
	}
	return
}

// ReadNodePartition reads the (global, renumbered) pairs of rank.
func ReadNodePartition(dir string, rank, size int) (ns NodeSlice, err error) {
	file, path, err := openArtifact(dir, NodePartitionFile)
	if err != nil {
		return
	}
	defer file.Close()
	ir := newIntReader(path, file)
	sizes, err := ir.readHeader(size)
	if err != nil {
		return
	}
	if rank < 0 || rank >= size {
		return ns, fmt.Errorf("rank %d outside of [0,%d)", rank, size)
	}
	var before int
	for p := 0; p < rank; p++ {
		before += 2 * (sizes[p][0] + sizes[p][1])
	}
	if err = ir.skip(before); err != nil {
		return
	}
	ns.NumOwned, ns.NumGhost = sizes[rank][0], sizes[rank][1]
	n := ns.NumOwned + ns.NumGhost
	ns.Global = make([]int, n)
	ns.Renumbered = make([]int, n)
	for i := 0; i < n; i++ {
		if ns.Global[i], err = ir.next(); err != nil {
			return
		}
		if ns.Renumbered[i], err = ir.next(); err != nil {
			return
		}
	}
	return
}
