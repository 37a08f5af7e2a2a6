package partition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func partitioned(t *testing.T, nParts int, oracle GraphPartitioner) (*mesh.Mesh, *MeshPartitioner) {
	m, err := mesh.Rectangle(4, 3, 2, 1)
	require.NoError(t, err)
	mp, err := NewMeshPartitioner(m, nParts, oracle, nil)
	require.NoError(t, err)
	require.NoError(t, mp.Partition())
	return m, mp
}

func TestPartitionProperties(t *testing.T) {
	for _, nParts := range []int{1, 2, 3, 4, 7} {
		m, mp := partitioned(t, nParts, BlockPartitioner{})
		require.Len(t, mp.Parts, nParts)

		// Ownership partition
		owner := make(map[int]int)
		for p, part := range mp.Parts {
			for _, n := range part.Owned {
				_, dup := owner[n]
				assert.False(t, dup, "node %d owned twice", n)
				owner[n] = p
			}
			assert.IsIncreasing(t, append([]int{-1}, part.Owned...))
		}
		assert.Len(t, owner, m.NumNodes())

		// Cells are assigned once and ghosts are complete
		conn := m.Connectivity()
		var nCells int
		for p, part := range mp.Parts {
			nCells += len(part.Cells)
			ghosts := make(map[int]bool)
			for _, n := range part.Ghost {
				assert.NotEqual(t, p, owner[n])
				assert.False(t, ghosts[n], "ghost %d listed twice", n)
				ghosts[n] = true
			}
			var connLen int
			for _, id := range part.Cells {
				c := m.Cells()[id]
				connLen += c.NumNodes
				for _, n := range conn[c.FirstNode : c.FirstNode+c.NumNodes] {
					assert.True(t, owner[n] == p || ghosts[n], "node %d dangling in part %d", n, p)
				}
			}
			assert.Equal(t, connLen, part.ConnLen)
		}
		assert.Equal(t, m.NumCells(), nCells)

		// Renumbering bijection, contiguous by rank
		seen := make([]bool, m.NumNodes())
		var next int
		for _, part := range mp.Parts {
			for _, n := range part.Owned {
				r := mp.Renumbered[n]
				assert.Equal(t, next, r)
				seen[r] = true
				next++
			}
		}
		for r, ok := range seen {
			assert.True(t, ok, "renumbered id %d unused", r)
		}
	}
}

func TestTrivialPartition(t *testing.T) {
	m, mp := partitioned(t, 1, BlockPartitioner{})
	part := mp.Parts[0]
	assert.Empty(t, part.Ghost)
	assert.Len(t, part.Cells, m.NumCells())
	for n := 0; n < m.NumNodes(); n++ {
		assert.Equal(t, n, part.Owned[n])
		assert.Equal(t, n, mp.Renumbered[n])
	}
	dir := t.TempDir()
	require.NoError(t, mp.Write(dir))
	ns, err := ReadNodePartition(dir, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, ns.NumGhost)
	assert.Equal(t, ns.Global, ns.Renumbered)
}

func TestArtifactRoundTrip(t *testing.T) {
	_, mp := partitioned(t, 3, BlockPartitioner{})
	dir := t.TempDir()
	require.NoError(t, mp.Write(dir))
	for rank, part := range mp.Parts {
		cs, err := ReadCellPartition(dir, rank, 3)
		require.NoError(t, err)
		assert.Equal(t, part.Cells, cs.Cells)
		assert.Equal(t, part.ConnLen, cs.ConnLen)

		ns, err := ReadNodePartition(dir, rank, 3)
		require.NoError(t, err)
		assert.Equal(t, len(part.Owned), ns.NumOwned)
		assert.Equal(t, len(part.Ghost), ns.NumGhost)
		assert.Equal(t, append(append([]int{}, part.Owned...), part.Ghost...), ns.Global)
		for i, g := range ns.Global {
			assert.Equal(t, mp.Renumbered[g], ns.Renumbered[i])
		}
	}
	_, err := ReadCellPartition(dir, 0, 2)
	assert.ErrorIs(t, err, utils.ErrInvalidSize)
	_, err = ReadNodePartition(dir, 0, 4)
	assert.ErrorIs(t, err, utils.ErrInvalidSize)
	_, err = ReadNodePartition(filepath.Join(dir, "missing"), 0, 3)
	assert.ErrorIs(t, err, utils.ErrInvalidFileName)

	require.NoError(t, os.WriteFile(filepath.Join(dir, CellPartitionFile), []byte("1\n2 4\n3\n"), 0644))
	_, err = ReadCellPartition(dir, 0, 1)
	assert.Error(t, err)
}

func TestOracles(t *testing.T) {
	// Two triangles sharing an edge plus an unreferenced node
	eptr := []int{0, 3, 6}
	eind := []int{0, 1, 2, 1, 3, 2}
	cellPart, nodePart, err := BlockPartitioner{}.Partition(eptr, eind, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, cellPart)
	assert.Equal(t, []int{0, 0, 0, 1, 1}, nodePart)

	_, _, err = BlockPartitioner{}.Partition(eptr, eind, 5, 0)
	assert.ErrorIs(t, err, utils.ErrInvalidSize)
	_, _, err = BlockPartitioner{}.Partition(eptr, eind, 3, 2)
	assert.Error(t, err)

	xadj, adjncy, vwgt, adjwgt := buildNodalGraph(eptr, eind, 5)
	assert.Equal(t, []int32{0, 2, 5, 8, 10, 10}, xadj)
	assert.Equal(t, []int32{1, 2, 0, 2, 3, 0, 1, 3, 1, 2}, adjncy)
	assert.Equal(t, []int32{1, 1, 1, 2, 1, 1, 2, 1, 1, 1}, adjwgt)
	assert.Equal(t, []int32{1, 2, 2, 1, 1}, vwgt)

	// Majority of nodes, ties go to the lowest partition
	assert.Equal(t, []int{1, 1}, majorityCellPartition(eptr, eind, []int{1, 0, 1, 1, 0}, 2))
	assert.Equal(t, []int{0, 0}, majorityCellPartition([]int{0, 2, 4}, []int{0, 2, 1, 3}, []int{0, 0, 1, 1}, 2))
}

func TestMetisPartition(t *testing.T) {
	m, mp := partitioned(t, 1, NewMetisPartitioner(nil))
	assert.Len(t, mp.Parts[0].Owned, m.NumNodes())
	if !isMetisAvailable() {
		t.Skip("METIS not available")
	}
	_, mp = partitioned(t, 3, NewMetisPartitioner(DefaultPartitionConfig(3)))
	for p, part := range mp.Parts {
		assert.NotEmpty(t, part.Owned, "partition %d", p)
	}
}

// isMetisAvailable gates tests that call into the METIS library
func isMetisAvailable() bool {
	return os.Getenv("DFEM_TEST_METIS") != ""
}
