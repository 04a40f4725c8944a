package floor

import "fmt"

// RoomPatch is a partial room update. Nil fields are left unchanged.
type RoomPatch struct {
	Capacity    *int    `json:"capacity,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p RoomPatch) Empty() bool {
	return p.Capacity == nil && p.Description == nil
}

// apply returns r with the patch applied.
func (p RoomPatch) apply(r Room) Room {
	if p.Capacity != nil {
		r.Capacity = *p.Capacity
	}

	if p.Description != nil {
		r.Description = *p.Description
	}

	return r
}

// AddRoom returns a new list with room appended.
func AddRoom(rooms []Room, room Room) []Room {
	out := make([]Room, len(rooms), len(rooms)+1)
	copy(out, rooms)

	return append(out, room)
}

// UpdateRoom returns a new list with the room at index patched.
func UpdateRoom(rooms []Room, index int, patch RoomPatch) ([]Room, error) {
	if err := checkIndex(rooms, index); err != nil {
		return nil, err
	}

	out := cloneRooms(rooms)
	out[index] = patch.apply(out[index])

	return out, nil
}

// RemoveRoom returns a new list without the room at index.
func RemoveRoom(rooms []Room, index int) ([]Room, error) {
	if err := checkIndex(rooms, index); err != nil {
		return nil, err
	}

	out := make([]Room, 0, len(rooms)-1)
	out = append(out, rooms[:index]...)

	return append(out, rooms[index+1:]...), nil
}

// MoveRoom returns a new list with the room at from moved to position to.
func MoveRoom(rooms []Room, from, to int) ([]Room, error) {
	if err := checkIndex(rooms, from); err != nil {
		return nil, err
	}

	if err := checkIndex(rooms, to); err != nil {
		return nil, err
	}

	out := cloneRooms(rooms)
	moved := out[from]

	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}

	out[to] = moved

	return out, nil
}

// checkIndex validates a room position.
func checkIndex(rooms []Room, index int) error {
	if index < 0 || index >= len(rooms) {
		return fmt.Errorf("room %d of %d: %w", index, len(rooms), ErrRoomIndex)
	}

	return nil
}
