package merkle

import (
	"testing"
)

// testLeaves returns n distinct deterministic leaf digests.
func testLeaves(n int) []Hash {
	leaves := make([]Hash, n)
	for i := range leaves {
		leaves[i] = HashLeaf([]byte{byte(i), byte(i >> 8), 0xAB})
	}
	return leaves
}

// TestBuild_Empty verifies the empty tree root is the sentinel and is stable.
func TestBuild_Empty(t *testing.T) {
	tree := Build(nil)

	if tree.Root() != EmptyRoot() {
		t.Errorf("empty root = %s, want %s", tree.Root(), EmptyRoot())
	}

	if Build([]Hash{}).Root() != tree.Root() {
		t.Error("empty root differs between calls")
	}

	if tree.Len() != 0 || tree.Height() != 0 {
		t.Errorf("empty tree len=%d height=%d, want 0/0", tree.Len(), tree.Height())
	}

	if HashLeaf(nil) != EmptyRoot() {
		t.Error("sentinel should be the hash of the empty byte string")
	}
}

// TestBuild_SingleLeaf verifies a single leaf is its own root.
func TestBuild_SingleLeaf(t *testing.T) {
	leaves := testLeaves(1)
	tree := Build(leaves)

	if tree.Root() != leaves[0] {
		t.Errorf("root = %s, want leaf %s", tree.Root(), leaves[0])
	}

	if tree.Height() != 0 {
		t.Errorf("height = %d, want 0", tree.Height())
	}
}

// TestBuild_PromotesOddLeaf verifies the trailing odd node is carried, not duplicated.
func TestBuild_PromotesOddLeaf(t *testing.T) {
	l := testLeaves(3)

	want := HashNode(HashNode(l[0], l[1]), l[2])
	if got := Build(l).Root(); got != want {
		t.Errorf("root = %s, want %s", got, want)
	}

	padded := append(append([]Hash{}, l...), l[2])
	if Build(padded).Root() == Build(l).Root() {
		t.Error("padding the last leaf must change the root")
	}
}

// TestBuild_FiveLeaves checks the shape of a tree with promotion on two levels.
func TestBuild_FiveLeaves(t *testing.T) {
	l := testLeaves(5)

	ab := HashNode(l[0], l[1])
	cd := HashNode(l[2], l[3])
	want := HashNode(HashNode(ab, cd), l[4])

	tree := Build(l)
	if tree.Root() != want {
		t.Errorf("root = %s, want %s", tree.Root(), want)
	}

	if tree.Height() != 3 {
		t.Errorf("height = %d, want 3", tree.Height())
	}
}

// TestBuild_Deterministic verifies the same leaves always give the same root.
func TestBuild_Deterministic(t *testing.T) {
	for n := 0; n <= 33; n++ {
		a := Build(testLeaves(n)).Root()
		b := Build(testLeaves(n)).Root()

		if a != b {
			t.Fatalf("n=%d: roots differ across builds", n)
		}
	}
}

// TestBuild_OrderSensitive verifies reversing leaves changes the root.
func TestBuild_OrderSensitive(t *testing.T) {
	for n := 2; n <= 20; n++ {
		leaves := testLeaves(n)

		reversed := make([]Hash, n)
		for i := range leaves {
			reversed[n-1-i] = leaves[i]
		}

		if Build(leaves).Root() == Build(reversed).Root() {
			t.Errorf("n=%d: reversed leaves produced the same root", n)
		}
	}
}

// TestBuild_ChildOrderMatters verifies HashNode is not commutative.
func TestBuild_ChildOrderMatters(t *testing.T) {
	l := testLeaves(2)

	if HashNode(l[0], l[1]) == HashNode(l[1], l[0]) {
		t.Error("swapping children must change the parent digest")
	}
}

// TestBuild_DoesNotAliasInput verifies mutating the input after build has no effect.
func TestBuild_DoesNotAliasInput(t *testing.T) {
	leaves := testLeaves(4)
	tree := Build(leaves)
	root := tree.Root()

	leaves[0] = Hash{}

	if tree.Root() != root {
		t.Error("tree root changed after input slice was mutated")
	}

	if got, _ := tree.Leaf(0); got == (Hash{}) {
		t.Error("tree leaf aliases caller slice")
	}
}

// TestTree_Leaf verifies leaf access bounds.
func TestTree_Leaf(t *testing.T) {
	leaves := testLeaves(3)
	tree := Build(leaves)

	for i, want := range leaves {
		got, ok := tree.Leaf(i)
		if !ok || got != want {
			t.Errorf("Leaf(%d) = %s,%v want %s,true", i, got, ok, want)
		}
	}

	if _, ok := tree.Leaf(3); ok {
		t.Error("Leaf(3) should be out of range")
	}

	if _, ok := tree.Leaf(-1); ok {
		t.Error("Leaf(-1) should be out of range")
	}
}

// TestParseHash_RoundTrip verifies hex encoding of digests.
func TestParseHash_RoundTrip(t *testing.T) {
	h := HashLeaf([]byte("room"))

	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}

	if parsed != h {
		t.Errorf("parsed %s, want %s", parsed, h)
	}

	if _, err := ParseHash("abcd"); err == nil {
		t.Error("expected error for short hash")
	}

	if _, err := ParseHash("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}
