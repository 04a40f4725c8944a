package store

import (
	"testing"

	"RoomLedger/internal/floor"
)

// TestMarshalFloor_RoundTrip verifies the FlatBuffers codec preserves every field.
func TestMarshalFloor_RoundTrip(t *testing.T) {
	rooms := []floor.Room{
		{Number: "101", Capacity: 10, Description: "Lab"},
		{Number: "1A", Capacity: 0, Description: ""},
		{Number: "B-2", Capacity: 1 << 20, Description: "Salle polyvalente"},
	}

	s, err := floor.Commit(floor.New("f-1", "Ground"), 0, rooms)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, err := UnmarshalFloor(MarshalFloor(s))
	if err != nil {
		t.Fatalf("UnmarshalFloor failed: %v", err)
	}

	if got.ID != s.ID || got.Number != s.Number || got.Version != s.Version || got.Root != s.Root {
		t.Errorf("header = %+v, want %+v", got, s)
	}

	for i := range rooms {
		if got.Rooms[i] != rooms[i] {
			t.Errorf("room %d = %+v, want %+v", i, got.Rooms[i], rooms[i])
		}
	}

	if err := got.Validate(); err != nil {
		t.Errorf("decoded state invalid: %v", err)
	}
}

// TestMarshalFloor_Empty verifies a fresh floor survives the codec.
func TestMarshalFloor_Empty(t *testing.T) {
	s := floor.New("f-2", "2")

	got, err := UnmarshalFloor(MarshalFloor(s))
	if err != nil {
		t.Fatalf("UnmarshalFloor failed: %v", err)
	}

	if len(got.Rooms) != 0 || got.Root != s.Root || got.Version != 0 {
		t.Errorf("got %+v, want %+v", got, s)
	}
}

// TestUnmarshalFloor_Corrupt verifies garbage input returns an error instead of panicking.
func TestUnmarshalFloor_Corrupt(t *testing.T) {
	inputs := [][]byte{
		nil,
		{1, 2},
		{0xFF, 0xFF, 0xFF, 0x7F, 0, 0, 0, 0},
	}

	for _, in := range inputs {
		if _, err := UnmarshalFloor(in); err == nil {
			t.Errorf("UnmarshalFloor(%x) succeeded", in)
		}
	}
}
