package merkle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a proof is requested for a missing leaf.
	ErrIndexOutOfRange = errors.New("leaf index out of range")

	// ErrMalformedProof is returned when proof bytes cannot be decoded.
	ErrMalformedProof = errors.New("malformed proof")
)

// Side tells where a proof step's sibling sits relative to the running digest.
type Side byte

const (
	// SideLeft means the sibling is combined on the left.
	SideLeft Side = 1

	// SideRight means the sibling is combined on the right.
	SideRight Side = 2

	// SidePromoted means the node had no sibling and is carried forward unchanged.
	SidePromoted Side = 3
)

// String returns the lowercase name of the side.
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SidePromoted:
		return "promoted"
	default:
		return fmt.Sprintf("side(%d)", byte(s))
	}
}

// ParseSide is the inverse of Side.String.
func ParseSide(s string) (Side, error) {
	switch s {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	case "promoted":
		return SidePromoted, nil
	default:
		return 0, fmt.Errorf("unknown proof side %q", s)
	}
}

// Step is one level of an inclusion proof.
type Step struct {
	Side    Side // Side is where Sibling goes, or SidePromoted
	Sibling Hash // Sibling is zero when Side is SidePromoted
}

// Proof is the ordered path of steps from a leaf up to the root.
type Proof struct {
	Steps []Step
}

// Prove returns the inclusion proof for leaf i.
func (t *Tree) Prove(i int) (Proof, error) {
	if i < 0 || i >= t.Len() {
		return Proof{}, fmt.Errorf("prove leaf %d of %d: %w", i, t.Len(), ErrIndexOutOfRange)
	}

	steps := make([]Step, 0, t.Height())
	pos := i

	for _, layer := range t.layers[:len(t.layers)-1] {
		switch {
		case pos%2 == 1:
			steps = append(steps, Step{Side: SideLeft, Sibling: layer[pos-1]})
		case pos+1 < len(layer):
			steps = append(steps, Step{Side: SideRight, Sibling: layer[pos+1]})
		default:
			steps = append(steps, Step{Side: SidePromoted})
		}

		pos /= 2
	}

	return Proof{Steps: steps}, nil
}

// Verify recomputes the path from leaf at index through proof and compares
// the result with root. The step sides must agree with the bits of index.
func Verify(leaf Hash, index int, proof Proof, root Hash) bool {
	if index < 0 {
		return false
	}

	current := leaf
	pos := index

	for _, step := range proof.Steps {
		switch step.Side {
		case SideLeft:
			if pos%2 != 1 {
				return false
			}
			current = HashNode(step.Sibling, current)
		case SideRight:
			if pos%2 != 0 {
				return false
			}
			current = HashNode(current, step.Sibling)
		case SidePromoted:
			// Position 0 always has a right sibling or is already the root.
			if pos == 0 || pos%2 != 0 || step.Sibling != (Hash{}) {
				return false
			}
		default:
			return false
		}

		pos /= 2
	}

	return pos == 0 && current == root
}

// MarshalBinary encodes the proof.
// Format: u32 step count, then per step a side byte followed by the
// 32-byte sibling unless the step is promoted. Integers are big-endian.
func (p Proof) MarshalBinary() ([]byte, error) {
	size := 4
	for _, step := range p.Steps {
		size++
		if step.Side != SidePromoted {
			size += HashSize
		}
	}

	buf := make([]byte, 4, size)
	binary.BigEndian.PutUint32(buf, uint32(len(p.Steps)))

	for i, step := range p.Steps {
		switch step.Side {
		case SideLeft, SideRight:
			buf = append(buf, byte(step.Side))
			buf = append(buf, step.Sibling[:]...)
		case SidePromoted:
			buf = append(buf, byte(step.Side))
		default:
			return nil, fmt.Errorf("step %d has invalid side %d: %w", i, step.Side, ErrMalformedProof)
		}
	}

	return buf, nil
}

// UnmarshalProof decodes bytes produced by Proof.MarshalBinary.
// Trailing bytes, truncation and unknown sides are rejected.
func UnmarshalProof(data []byte) (Proof, error) {
	if len(data) < 4 {
		return Proof{}, fmt.Errorf("missing step count: %w", ErrMalformedProof)
	}

	count := binary.BigEndian.Uint32(data[:4])
	data = data[4:]

	// Each step takes at least one byte.
	if uint64(count) > uint64(len(data)) {
		return Proof{}, fmt.Errorf("step count %d exceeds payload: %w", count, ErrMalformedProof)
	}

	steps := make([]Step, 0, count)

	for i := uint32(0); i < count; i++ {
		if len(data) < 1 {
			return Proof{}, fmt.Errorf("step %d truncated: %w", i, ErrMalformedProof)
		}

		side := Side(data[0])
		data = data[1:]

		switch side {
		case SideLeft, SideRight:
			if len(data) < HashSize {
				return Proof{}, fmt.Errorf("step %d sibling truncated: %w", i, ErrMalformedProof)
			}

			var sibling Hash
			copy(sibling[:], data[:HashSize])
			data = data[HashSize:]

			steps = append(steps, Step{Side: side, Sibling: sibling})
		case SidePromoted:
			steps = append(steps, Step{Side: side})
		default:
			return Proof{}, fmt.Errorf("step %d has invalid side %d: %w", i, side, ErrMalformedProof)
		}
	}

	if len(data) != 0 {
		return Proof{}, fmt.Errorf("%d trailing bytes: %w", len(data), ErrMalformedProof)
	}

	return Proof{Steps: steps}, nil
}
