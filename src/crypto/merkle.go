package crypto

import (
	"errors"

	"github.com/mosaicnetworks/neonode/src/common"
)

// ErrEmptyMerkleTree is returned when a tree is built over no hashes.
var ErrEmptyMerkleTree = errors.New("merkle tree needs at least one hash")

const noNode = -1

type merkleNode struct {
	hash   common.Uint256
	parent int
	left   int
	right  int
}

// MerkleTree is a binary hash tree stored as an arena of nodes. Relations
// between nodes are indices into the arena. Leaves come first, in input order.
type MerkleTree struct {
	nodes  []merkleNode
	leaves int
	root   int
	depth  int
}

// NewMerkleTree builds the tree over hashes. A level with an odd number of
// nodes pairs its last node with itself.
func NewMerkleTree(hashes []common.Uint256) (*MerkleTree, error) {
	if len(hashes) == 0 {
		return nil, ErrEmptyMerkleTree
	}

	t := &MerkleTree{
		nodes:  make([]merkleNode, 0, 2*len(hashes)),
		leaves: len(hashes),
		depth:  1,
	}

	level := make([]int, len(hashes))
	for i, h := range hashes {
		level[i] = t.add(merkleNode{hash: h, parent: noNode, left: noNode, right: noNode})
	}

	for len(level) > 1 {
		next := make([]int, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			l := level[i]
			r := l
			if i+1 < len(level) {
				r = level[i+1]
			}
			p := t.add(merkleNode{
				hash:   SimpleHashFromTwoHashes(t.nodes[l].hash, t.nodes[r].hash),
				parent: noNode,
				left:   l,
				right:  r,
			})
			t.nodes[l].parent = p
			t.nodes[r].parent = p
			next = append(next, p)
		}
		level = next
		t.depth++
	}

	t.root = level[0]
	return t, nil
}

func (t *MerkleTree) add(n merkleNode) int {
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// Root returns the root hash.
func (t *MerkleTree) Root() common.Uint256 {
	return t.nodes[t.root].hash
}

// Depth returns the number of levels, leaves included.
func (t *MerkleTree) Depth() int {
	return t.depth
}

// Leaves returns the leaf hashes in input order.
func (t *MerkleTree) Leaves() []common.Uint256 {
	res := make([]common.Uint256, t.leaves)
	for i := 0; i < t.leaves; i++ {
		res[i] = t.nodes[i].hash
	}
	return res
}

// Path returns the sibling hashes from leaf i up to, but excluding, the root.
func (t *MerkleTree) Path(i int) []common.Uint256 {
	if i < 0 || i >= t.leaves {
		return nil
	}
	var path []common.Uint256
	for n := i; t.nodes[n].parent != noNode; n = t.nodes[n].parent {
		p := t.nodes[t.nodes[n].parent]
		sibling := p.left
		if sibling == n {
			sibling = p.right
		}
		path = append(path, t.nodes[sibling].hash)
	}
	return path
}

// MerkleRoot computes the root over hashes without keeping the tree.
func MerkleRoot(hashes []common.Uint256) (common.Uint256, error) {
	t, err := NewMerkleTree(hashes)
	if err != nil {
		return common.Uint256{}, err
	}
	return t.Root(), nil
}
