package floor

import (
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf8"

	"RoomLedger/internal/merkle"
)

const (
	// leafEncodingV1 tags the first canonical room encoding.
	// Changing the layout requires a new tag and a migration of stored roots.
	leafEncodingV1 = 0x01

	// MaxFieldLength is the largest accepted room number or description, in bytes.
	MaxFieldLength = 64 << 10

	// MaxCapacity is the largest accepted capacity. Every store decodes it into an int.
	MaxCapacity = math.MaxInt32
)

// Room is one room record of a floor. Its identity is its position in the floor's list.
type Room struct {
	Number      string `json:"roomNumber"`  // Number is the room label, e.g. "101"
	Capacity    int    `json:"capacity"`    // Capacity is the number of seats, never negative
	Description string `json:"description"` // Description is free text
}

// Check reports whether the room can be canonically encoded.
func (r Room) Check() error {
	return r.check(-1)
}

// check validates the room at list position index.
func (r Room) check(index int) error {
	if err := checkField(index, "roomNumber", r.Number); err != nil {
		return err
	}

	if r.Capacity < 0 {
		return &RecordError{Index: index, Field: "capacity", Reason: "is negative"}
	}

	if r.Capacity > MaxCapacity {
		return &RecordError{Index: index, Field: "capacity", Reason: "exceeds maximum"}
	}

	return checkField(index, "description", r.Description)
}

// checkField validates a length-prefixed string field.
func checkField(index int, name, value string) error {
	if len(value) > MaxFieldLength {
		return &RecordError{Index: index, Field: name, Reason: "exceeds maximum length"}
	}

	if !utf8.ValidString(value) {
		return &RecordError{Index: index, Field: name, Reason: "is not valid UTF-8"}
	}

	// Postgres text columns cannot hold NUL.
	if strings.IndexByte(value, 0) >= 0 {
		return &RecordError{Index: index, Field: name, Reason: "contains a NUL byte"}
	}

	return nil
}

// EncodeRoom returns the canonical byte encoding of a room.
// Layout: tag(1) | u32 len | roomNumber | u64 capacity | u32 len | description, big-endian.
func EncodeRoom(r Room) ([]byte, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}

	return appendRoom(nil, r), nil
}

// appendRoom appends the encoding of an already checked room to buf.
func appendRoom(buf []byte, r Room) []byte {
	buf = append(buf, leafEncodingV1)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Number)))
	buf = append(buf, r.Number...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.Capacity))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Description)))
	buf = append(buf, r.Description...)

	return buf
}

// LeafDigest returns the Merkle leaf digest of a room.
func LeafDigest(r Room) (merkle.Hash, error) {
	data, err := EncodeRoom(r)
	if err != nil {
		return merkle.Hash{}, err
	}

	return merkle.HashLeaf(data), nil
}

// LeafDigests encodes and hashes every room in order.
// The first malformed room aborts with a RecordError carrying its index.
func LeafDigests(rooms []Room) ([]merkle.Hash, error) {
	leaves := make([]merkle.Hash, len(rooms))
	var buf []byte

	for i, r := range rooms {
		if err := r.check(i); err != nil {
			return nil, err
		}

		buf = appendRoom(buf[:0], r)
		leaves[i] = merkle.HashLeaf(buf)
	}

	return leaves, nil
}

// BuildTree builds the Merkle tree over an ordered room list.
func BuildTree(rooms []Room) (*merkle.Tree, error) {
	leaves, err := LeafDigests(rooms)
	if err != nil {
		return nil, err
	}

	return merkle.Build(leaves), nil
}

// cloneRooms returns an independent copy of rooms.
func cloneRooms(rooms []Room) []Room {
	if len(rooms) == 0 {
		return []Room{}
	}

	out := make([]Room, len(rooms))
	copy(out, rooms)

	return out
}
