// Package merkle builds binary hash trees over ordered leaf digests and
// produces inclusion proofs against their roots.
//
// An odd node at the end of a layer is promoted unchanged to the next layer;
// it is never duplicated. Trees are immutable once built.
package merkle

// Tree is an immutable binary Merkle tree.
// layers[0] holds the leaves, the last layer holds the root alone.
type Tree struct {
	layers [][]Hash
}

// Build constructs a tree over the ordered leaf digests.
// An empty input yields a tree whose root is EmptyRoot.
func Build(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}

	base := make([]Hash, len(leaves))
	copy(base, leaves)

	layers := [][]Hash{base}

	for current := base; len(current) > 1; {
		current = nextLayer(current)
		layers = append(layers, current)
	}

	return &Tree{layers: layers}
}

// nextLayer pairs adjacent digests left to right and promotes a trailing odd one.
func nextLayer(layer []Hash) []Hash {
	next := make([]Hash, 0, (len(layer)+1)/2)

	for i := 0; i < len(layer); i += 2 {
		if i+1 == len(layer) {
			next = append(next, layer[i])
			break
		}

		next = append(next, HashNode(layer[i], layer[i+1]))
	}

	return next
}

// Root returns the root digest.
func (t *Tree) Root() Hash {
	if len(t.layers) == 0 {
		return EmptyRoot()
	}

	return t.layers[len(t.layers)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	if len(t.layers) == 0 {
		return 0
	}

	return len(t.layers[0])
}

// Leaf returns the digest of leaf i. Returns false if i is out of range.
func (t *Tree) Leaf(i int) (Hash, bool) {
	if i < 0 || i >= t.Len() {
		return Hash{}, false
	}

	return t.layers[0][i], true
}

// Height returns the number of combination levels above the leaves.
func (t *Tree) Height() int {
	if len(t.layers) == 0 {
		return 0
	}

	return len(t.layers) - 1
}
