package floor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"RoomLedger/internal/merkle"
)

// TestEncodeRoom_Layout pins the canonical v1 byte layout.
func TestEncodeRoom_Layout(t *testing.T) {
	got, err := EncodeRoom(Room{Number: "101", Capacity: 10, Description: "Lab"})
	if err != nil {
		t.Fatalf("EncodeRoom failed: %v", err)
	}

	want := []byte{
		0x01,
		0, 0, 0, 3, '1', '0', '1',
		0, 0, 0, 0, 0, 0, 0, 10,
		0, 0, 0, 3, 'L', 'a', 'b',
	}

	if !bytes.Equal(got, want) {
		t.Errorf("encoding = %x, want %x", got, want)
	}
}

// TestEncodeRoom_Unambiguous verifies shifting bytes between fields changes the encoding.
func TestEncodeRoom_Unambiguous(t *testing.T) {
	pairs := [][2]Room{
		{{Number: "10", Capacity: 1, Description: "1:x"}, {Number: "10:1", Capacity: 1, Description: "x"}},
		{{Number: "a:b", Capacity: 0, Description: ""}, {Number: "a", Capacity: 0, Description: "b"}},
		{{Number: "1", Capacity: 12, Description: ""}, {Number: "11", Capacity: 2, Description: ""}},
	}

	for _, p := range pairs {
		a, _ := LeafDigest(p[0])
		b, _ := LeafDigest(p[1])

		if a == b {
			t.Errorf("%+v and %+v share a digest", p[0], p[1])
		}
	}
}

// TestLeafDigest_FieldSensitivity verifies changing any single field changes the digest.
func TestLeafDigest_FieldSensitivity(t *testing.T) {
	base := Room{Number: "101", Capacity: 10, Description: "Lab"}
	baseDigest, _ := LeafDigest(base)

	variants := []Room{
		{Number: "102", Capacity: 10, Description: "Lab"},
		{Number: "101", Capacity: 11, Description: "Lab"},
		{Number: "101", Capacity: 10, Description: "lab"},
		{Number: "101", Capacity: 10, Description: "Lab "},
	}

	for _, v := range variants {
		d, err := LeafDigest(v)
		if err != nil {
			t.Fatalf("LeafDigest(%+v) failed: %v", v, err)
		}

		if d == baseDigest {
			t.Errorf("%+v has the same digest as the base room", v)
		}
	}

	again, _ := LeafDigest(base)
	if again != baseDigest {
		t.Error("digest is not deterministic")
	}
}

// TestEncodeRoom_Malformed verifies the malformed record taxonomy.
func TestEncodeRoom_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		room  Room
		field string
	}{
		{"negative capacity", Room{Number: "1", Capacity: -5}, "capacity"},
		{"capacity too large", Room{Number: "1", Capacity: MaxCapacity + 1}, "capacity"},
		{"nul in number", Room{Number: "1\x002", Capacity: 1}, "roomNumber"},
		{"nul in description", Room{Number: "1", Description: "a\x00"}, "description"},
		{"invalid utf8 number", Room{Number: "\xff", Capacity: 1}, "roomNumber"},
		{"invalid utf8 description", Room{Number: "1", Description: "\xc3\x28"}, "description"},
		{"long description", Room{Number: "1", Description: strings.Repeat("x", MaxFieldLength+1)}, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeRoom(tt.room)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("err = %v, want ErrMalformedRecord", err)
			}

			var re *RecordError
			if !errors.As(err, &re) || re.Field != tt.field || re.Index != -1 {
				t.Errorf("record error = %+v, want field %s", re, tt.field)
			}
		})
	}
}

// TestEncodeRoom_Bounds verifies the largest accepted values and an empty number encode.
func TestEncodeRoom_Bounds(t *testing.T) {
	rooms := []Room{
		{Number: "1", Capacity: MaxCapacity},
		{Number: "", Capacity: 0},
		{Number: strings.Repeat("9", MaxFieldLength), Description: strings.Repeat("x", MaxFieldLength)},
	}

	for _, r := range rooms {
		if _, err := EncodeRoom(r); err != nil {
			t.Errorf("EncodeRoom(capacity %d, number len %d) failed: %v", r.Capacity, len(r.Number), err)
		}
	}
}

// TestBuildTree_Properties checks determinism, order and single-change sensitivity.
func TestBuildTree_Properties(t *testing.T) {
	rooms := testRooms()

	a, _ := BuildTree(rooms)
	b, _ := BuildTree(rooms)
	if a.Root() != b.Root() {
		t.Fatal("root is not deterministic")
	}

	reversed := []Room{rooms[2], rooms[1], rooms[0]}
	r, _ := BuildTree(reversed)
	if r.Root() == a.Root() {
		t.Error("reversed rooms produced the same root")
	}

	for i := range rooms {
		changed := cloneRooms(rooms)
		changed[i].Capacity++

		c, _ := BuildTree(changed)
		if c.Root() == a.Root() {
			t.Errorf("changing room %d capacity kept the root", i)
		}
	}

	empty, err := BuildTree(nil)
	if err != nil || empty.Root() != merkle.EmptyRoot() {
		t.Errorf("empty tree root = %s, err = %v", empty.Root(), err)
	}
}

// TestBuildTree_ProofRoundTrip verifies room leaves prove against the floor root.
func TestBuildTree_ProofRoundTrip(t *testing.T) {
	rooms := testRooms()
	tree, _ := BuildTree(rooms)

	for i, r := range rooms {
		leaf, _ := LeafDigest(r)

		proof, err := tree.Prove(i)
		if err != nil {
			t.Fatalf("Prove(%d) failed: %v", i, err)
		}

		if !merkle.Verify(leaf, i, proof, tree.Root()) {
			t.Errorf("room %d proof rejected", i)
		}
	}
}
