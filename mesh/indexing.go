package mesh

import (
	"fmt"

	"github.com/notargets/dfem/utils"
)

// IndexSpace names one of the node numberings a mesh carries.
//   - Local: position in this rank's node array, owned nodes first.
//   - Global: the node id of the unpartitioned mesh.
//   - Renumbered: contiguous by rank, each rank's owned nodes form one block.
type IndexSpace uint8

const (
	Local IndexSpace = iota
	Global
	Renumbered
)

func (s IndexSpace) String() string {
	switch s {
	case Local:
		return "Local"
	case Global:
		return "Global"
	case Renumbered:
		return "Renumbered"
	}
	return fmt.Sprintf("IndexSpace(%d)", uint8(s))
}

type nodeMap struct {
	toSpace   []int
	fromSpace map[int]int
}

func newNodeMap(localToSpace []int) (nm *nodeMap, err error) {
	nm = &nodeMap{
		toSpace:   localToSpace,
		fromSpace: make(map[int]int, len(localToSpace)),
	}
	for local, idx := range localToSpace {
		if prev, dup := nm.fromSpace[idx]; dup {
			return nil, fmt.Errorf("index %d mapped from local nodes %d and %d", idx, prev, local)
		}
		nm.fromSpace[idx] = local
	}
	return
}

// IndexMap converts node identities between Local and the other spaces in
// both directions.
type IndexMap struct {
	n    int
	maps map[IndexSpace]*nodeMap
}

func NewIndexMap(localToGlobal, localToRenumbered []int) (im *IndexMap, err error) {
	if len(localToGlobal) != len(localToRenumbered) {
		return nil, utils.InvalidSizeError(len(localToGlobal), len(localToRenumbered))
	}
	im = &IndexMap{
		n:    len(localToGlobal),
		maps: make(map[IndexSpace]*nodeMap, 2),
	}
	if im.maps[Global], err = newNodeMap(localToGlobal); err != nil {
		return nil, fmt.Errorf("global numbering: %w", err)
	}
	if im.maps[Renumbered], err = newNodeMap(localToRenumbered); err != nil {
		return nil, fmt.Errorf("renumbered numbering: %w", err)
	}
	return
}

// IdentityIndexMap is the single partition case, local == global == renumbered.
func IdentityIndexMap(n int) *IndexMap {
	ident := make([]int, n)
	for i := range ident {
		ident[i] = i
	}
	im, _ := NewIndexMap(ident, ident)
	return im
}

func (im *IndexMap) Len() int { return im.n }

func (im *IndexMap) space(s IndexSpace) (*nodeMap, error) {
	nm, ok := im.maps[s]
	if !ok {
		return nil, fmt.Errorf("no node mapping for index space %s", s)
	}
	return nm, nil
}

// ToSpace maps one local index.
func (im *IndexMap) ToSpace(s IndexSpace, local int) (int, error) {
	if local < 0 || local >= im.n {
		return 0, fmt.Errorf("local node %d out of range [0,%d)", local, im.n)
	}
	if s == Local {
		return local, nil
	}
	nm, err := im.space(s)
	if err != nil {
		return 0, err
	}
	return nm.toSpace[local], nil
}

// ToLocal maps an index of space s back to local, ok is false when the node
// is not present on this rank.
func (im *IndexMap) ToLocal(s IndexSpace, idx int) (local int, ok bool) {
	if s == Local {
		return idx, idx >= 0 && idx < im.n
	}
	nm, err := im.space(s)
	if err != nil {
		return 0, false
	}
	local, ok = nm.fromSpace[idx]
	return
}

// MapInPlace rewrites local indices as indices of space s.
func (im *IndexMap) MapInPlace(s IndexSpace, nodes []int) error {
	if s == Local {
		return nil
	}
	nm, err := im.space(s)
	if err != nil {
		return err
	}
	for i, local := range nodes {
		if local < 0 || local >= im.n {
			return fmt.Errorf("local node %d out of range [0,%d)", local, im.n)
		}
		nodes[i] = nm.toSpace[local]
	}
	return nil
}
