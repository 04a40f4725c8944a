package store

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/merkle"
	"RoomLedger/internal/types"
)

// BuildFloor writes a floor table into builder and returns its offset.
// Nested strings and vectors are created before the table, as FlatBuffers requires.
func BuildFloor(builder *flatbuffers.Builder, s floor.State) flatbuffers.UOffsetT {
	roomOffsets := make([]flatbuffers.UOffsetT, len(s.Rooms))
	for i, r := range s.Rooms {
		number := builder.CreateString(r.Number)
		desc := builder.CreateString(r.Description)

		types.RoomStart(builder)
		types.RoomAddNumber(builder, number)
		types.RoomAddCapacity(builder, uint64(r.Capacity))
		types.RoomAddDescription(builder, desc)
		roomOffsets[i] = types.RoomEnd(builder)
	}

	types.FloorStartRoomsVector(builder, len(roomOffsets))
	for i := len(roomOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(roomOffsets[i])
	}
	roomsVec := builder.EndVector(len(roomOffsets))

	id := builder.CreateString(s.ID)
	number := builder.CreateString(s.Number)
	root := builder.CreateByteVector(s.Root[:])

	types.FloorStart(builder)
	types.FloorAddId(builder, id)
	types.FloorAddNumber(builder, number)
	types.FloorAddRooms(builder, roomsVec)
	types.FloorAddRoot(builder, root)
	types.FloorAddVersion(builder, s.Version)

	return types.FloorEnd(builder)
}

// MarshalFloor encodes a floor state as a standalone FlatBuffers buffer.
func MarshalFloor(s floor.State) []byte {
	builder := flatbuffers.NewBuilder(256 + 64*len(s.Rooms))
	builder.Finish(BuildFloor(builder, s))

	return builder.FinishedBytes()
}

// UnmarshalFloor decodes a buffer produced by MarshalFloor.
func UnmarshalFloor(data []byte) (s floor.State, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return floor.State{}, fmt.Errorf("floor buffer too short: %d bytes", len(data))
	}

	// Corrupt buffers make the generated accessors index out of range.
	defer func() {
		if r := recover(); r != nil {
			s, err = floor.State{}, fmt.Errorf("corrupt floor buffer: %v", r)
		}
	}()

	return DecodeFloor(types.GetRootAsFloor(data, 0))
}

// DecodeFloor copies a FlatBuffers floor table into a floor state.
// Bytes are copied because the backing buffer may be reused by the caller.
func DecodeFloor(f *types.Floor) (floor.State, error) {
	root, ok := merkle.HashFromBytes(f.RootBytes())
	if !ok {
		return floor.State{}, fmt.Errorf("invalid root length: %d", len(f.RootBytes()))
	}

	s := floor.State{
		ID:      string(f.Id()),
		Number:  string(f.Number()),
		Rooms:   make([]floor.Room, f.RoomsLength()),
		Root:    root,
		Version: f.Version(),
	}

	var r types.Room
	for i := range s.Rooms {
		if !f.Rooms(&r, i) {
			return floor.State{}, fmt.Errorf("read room %d", i)
		}

		capacity := r.Capacity()
		if capacity > floor.MaxCapacity {
			return floor.State{}, fmt.Errorf("room %d capacity %d out of range", i, capacity)
		}

		s.Rooms[i] = floor.Room{
			Number:      string(r.Number()),
			Capacity:    int(capacity),
			Description: string(r.Description()),
		}
	}

	return s, nil
}
