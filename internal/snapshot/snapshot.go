// Package snapshot exports and imports the complete set of floors.
//
// A snapshot is a FlatBuffers document listing every floor, sealed with a
// blake3 checksum over its canonical content and compressed with zstd.
// Imports verify the checksum and recompute every floor's root before
// anything reaches a store.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/store"
	"RoomLedger/internal/types"
)

const (
	// formatVersion is the current snapshot format version.
	formatVersion = 1

	// checksumSize is the size of the blake3 checksum.
	checksumSize = 32
)

// ErrCorrupt is returned when a snapshot fails decoding or verification.
var ErrCorrupt = errors.New("corrupt snapshot")

// Meta describes a decoded snapshot.
type Meta struct {
	Format    uint32
	CreatedAt time.Time
	Floors    int
}

// Build creates the uncompressed FlatBuffers snapshot of floors.
// Floors are sorted by ID so equal sets produce equal bytes.
func Build(floors []floor.State, createdAt time.Time) []byte {
	sorted := make([]floor.State, len(floors))
	copy(sorted, floors)
	sortFloors(sorted)

	checksum := computeChecksum(formatVersion, createdAt.UnixNano(), sorted)

	builder := flatbuffers.NewBuilder(1024)

	floorOffsets := make([]flatbuffers.UOffsetT, len(sorted))
	for i, f := range sorted {
		floorOffsets[i] = store.BuildFloor(builder, f)
	}

	types.SnapshotStartFloorsVector(builder, len(floorOffsets))
	for i := len(floorOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(floorOffsets[i])
	}
	floorsVector := builder.EndVector(len(floorOffsets))

	checksumOffset := builder.CreateByteVector(checksum[:])

	types.SnapshotStart(builder)
	types.SnapshotAddFormat(builder, formatVersion)
	types.SnapshotAddCreatedAt(builder, createdAt.UnixNano())
	types.SnapshotAddFloors(builder, floorsVector)
	types.SnapshotAddChecksum(builder, checksumOffset)
	builder.Finish(types.SnapshotEnd(builder))

	return builder.FinishedBytes()
}

// Parse decodes and verifies an uncompressed snapshot.
func Parse(data []byte) (floors []floor.State, meta Meta, err error) {
	if len(data) < 8 {
		return nil, Meta{}, fmt.Errorf("snapshot too short: %w", ErrCorrupt)
	}

	// FlatBuffers panics on malformed data, recover gracefully
	defer func() {
		if r := recover(); r != nil {
			floors, meta, err = nil, Meta{}, fmt.Errorf("malformed snapshot data: %v: %w", r, ErrCorrupt)
		}
	}()

	snap := types.GetRootAsSnapshot(data, 0)

	if snap.Format() != formatVersion {
		return nil, Meta{}, fmt.Errorf("unsupported snapshot format %d", snap.Format())
	}

	floors = make([]floor.State, snap.FloorsLength())
	var f types.Floor

	for i := range floors {
		if !snap.Floors(&f, i) {
			return nil, Meta{}, fmt.Errorf("read floor %d: %w", i, ErrCorrupt)
		}

		state, err := store.DecodeFloor(&f)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("decode floor %d: %v: %w", i, err, ErrCorrupt)
		}

		floors[i] = state
	}

	if err := verify(snap, floors); err != nil {
		return nil, Meta{}, err
	}

	meta = Meta{
		Format:    snap.Format(),
		CreatedAt: time.Unix(0, snap.CreatedAt()).UTC(),
		Floors:    len(floors),
	}

	return floors, meta, nil
}

// verify checks the checksum, ID uniqueness and every floor's root.
func verify(snap *types.Snapshot, floors []floor.State) error {
	stored := snap.ChecksumBytes()
	if len(stored) != checksumSize {
		return fmt.Errorf("invalid checksum length %d: %w", len(stored), ErrCorrupt)
	}

	sorted := make([]floor.State, len(floors))
	copy(sorted, floors)
	sortFloors(sorted)

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return fmt.Errorf("duplicate floor %s: %w", sorted[i].ID, ErrCorrupt)
		}
	}

	computed := computeChecksum(snap.Format(), snap.CreatedAt(), sorted)
	if !bytes.Equal(computed[:], stored) {
		return fmt.Errorf("checksum mismatch: %w", ErrCorrupt)
	}

	for _, f := range sorted {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, ErrCorrupt)
		}
	}

	return nil
}

// sortFloors sorts floors by ID for deterministic ordering.
func sortFloors(floors []floor.State) {
	sort.Slice(floors, func(i, j int) bool {
		return floors[i].ID < floors[j].ID
	})
}

// computeChecksum computes a blake3 checksum over canonical snapshot data.
// Format: format (4 bytes) + createdAt (8 bytes) + floor count (4 bytes), then per floor:
// u32 id len + id, u32 number len + number, u64 version, 32-byte root, u32 room count.
// Rooms are covered through the root, which imports recompute.
func computeChecksum(format uint32, createdAt int64, floors []floor.State) [checksumSize]byte {
	hasher := blake3.New()

	var buf [8]byte

	writeU32 := func(v uint32) {
		binary.BigEndian.PutUint32(buf[:4], v)
		_, _ = hasher.Write(buf[:4])
	}

	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		_, _ = hasher.Write(buf[:])
	}

	writeString := func(s string) {
		writeU32(uint32(len(s)))
		_, _ = hasher.Write([]byte(s))
	}

	writeU32(format)
	writeU64(uint64(createdAt))
	writeU32(uint32(len(floors)))

	for _, f := range floors {
		writeString(f.ID)
		writeString(f.Number)
		writeU64(f.Version)
		_, _ = hasher.Write(f.Root[:])
		writeU32(uint32(len(f.Rooms)))
	}

	var checksum [checksumSize]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// Compress compresses snapshot data using zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd-compressed snapshot data.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %v: %w", err, ErrCorrupt)
	}

	return out, nil
}

// Encode builds and compresses a snapshot of floors.
func Encode(floors []floor.State, createdAt time.Time) ([]byte, error) {
	return Compress(Build(floors, createdAt))
}

// Decode decompresses, parses and verifies a snapshot produced by Encode.
func Decode(data []byte) ([]floor.State, Meta, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, Meta{}, err
	}

	return Parse(raw)
}
