package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"RoomLedger/internal/merkle"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// decodeBody reads a size-limited JSON body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body: %w", errBadRequest)
		}

		return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
	}

	if dec.More() {
		return fmt.Errorf("trailing data after body: %w", errBadRequest)
	}

	return nil
}

// requireVersion unwraps the expected version every mutation must carry.
func requireVersion(v *uint64) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("expectedVersion is required: %w", errBadRequest)
	}

	return *v, nil
}

// pathIndex parses the {index} path segment.
func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")

	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("room index %q: %w", raw, errBadRequest)
	}

	return index, nil
}

// queryVersion parses the required ?version= parameter of body-less mutations.
func queryVersion(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 0, fmt.Errorf("version query parameter is required: %w", errBadRequest)
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("version %q: %w", raw, errBadRequest)
	}

	return v, nil
}

// stepJSON is the JSON form of one proof step.
type stepJSON struct {
	Side    string       `json:"side"`
	Sibling *merkle.Hash `json:"sibling,omitempty"`
}

// proofJSON carries a proof either as explicit steps or as the hex of its binary encoding.
type proofJSON struct {
	Steps   []stepJSON `json:"steps"`
	Encoded string     `json:"encoded,omitempty"`
}

// newProofJSON renders a proof in both forms.
func newProofJSON(p merkle.Proof) (proofJSON, error) {
	encoded, err := p.MarshalBinary()
	if err != nil {
		return proofJSON{}, err
	}

	out := proofJSON{Steps: make([]stepJSON, len(p.Steps)), Encoded: hex.EncodeToString(encoded)}

	for i, st := range p.Steps {
		out.Steps[i].Side = st.Side.String()

		if st.Side != merkle.SidePromoted {
			sibling := st.Sibling
			out.Steps[i].Sibling = &sibling
		}
	}

	return out, nil
}

// toProof converts the JSON form back. The encoded form wins when both are present.
func (p proofJSON) toProof() (merkle.Proof, error) {
	if p.Encoded != "" {
		raw, err := hex.DecodeString(p.Encoded)
		if err != nil {
			return merkle.Proof{}, fmt.Errorf("proof encoding is not hex: %w", merkle.ErrMalformedProof)
		}

		return merkle.UnmarshalProof(raw)
	}

	proof := merkle.Proof{Steps: make([]merkle.Step, len(p.Steps))}

	for i, st := range p.Steps {
		side, err := merkle.ParseSide(st.Side)
		if err != nil {
			return merkle.Proof{}, fmt.Errorf("step %d: %v: %w", i, err, merkle.ErrMalformedProof)
		}

		proof.Steps[i].Side = side

		switch {
		case side == merkle.SidePromoted && st.Sibling != nil:
			return merkle.Proof{}, fmt.Errorf("step %d: promoted step carries a sibling: %w", i, merkle.ErrMalformedProof)
		case side != merkle.SidePromoted && st.Sibling == nil:
			return merkle.Proof{}, fmt.Errorf("step %d: missing sibling: %w", i, merkle.ErrMalformedProof)
		case st.Sibling != nil:
			proof.Steps[i].Sibling = *st.Sibling
		}
	}

	return proof, nil
}
