package api

import (
	"fmt"
	"net/http"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/merkle"
)

// createFloorRequest is the body of POST /floors.
type createFloorRequest struct {
	Number string `json:"number"`
}

// replaceRoomsRequest is the body of PUT /floors/{id}/rooms.
type replaceRoomsRequest struct {
	ExpectedVersion *uint64      `json:"expectedVersion"`
	Rooms           []floor.Room `json:"rooms"`
}

// addRoomRequest is the body of POST /floors/{id}/rooms.
type addRoomRequest struct {
	ExpectedVersion *uint64    `json:"expectedVersion"`
	Room            floor.Room `json:"room"`
}

// updateRoomRequest is the body of PATCH /floors/{id}/rooms/{index}.
type updateRoomRequest struct {
	ExpectedVersion *uint64 `json:"expectedVersion"`
	Capacity        *int    `json:"capacity,omitempty"`
	Description     *string `json:"description,omitempty"`
}

// moveRoomRequest is the body of POST /floors/{id}/rooms/{index}/move.
type moveRoomRequest struct {
	ExpectedVersion *uint64 `json:"expectedVersion"`
	To              *int    `json:"to"`
}

// proofResponse is the body returned by GET /floors/{id}/rooms/{index}/proof.
type proofResponse struct {
	FloorID string      `json:"floorId"`
	Version uint64      `json:"version"`
	Index   int         `json:"index"`
	Room    floor.Room  `json:"room"`
	Leaf    merkle.Hash `json:"leaf"`
	Root    merkle.Hash `json:"rootDigest"`
	Proof   proofJSON   `json:"proof"`
}

// verifyRequest is the body of POST /proofs/verify.
type verifyRequest struct {
	Room  floor.Room   `json:"room"`
	Index *int         `json:"index"`
	Root  *merkle.Hash `json:"rootDigest"`
	Proof proofJSON    `json:"proof"`
}

// handleListFloors handles GET /floors requests.
func (s *Server) handleListFloors(w http.ResponseWriter, r *http.Request) {
	floors, err := s.ledger.Floors(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	if floors == nil {
		floors = []floor.State{}
	}

	writeJSON(w, http.StatusOK, floors)
}

// handleCreateFloor handles POST /floors requests.
func (s *Server) handleCreateFloor(w http.ResponseWriter, r *http.Request) {
	var req createFloorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	f, err := s.ledger.CreateFloor(r.Context(), req.Number)
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set("Location", "/floors/"+f.ID)
	writeJSON(w, http.StatusCreated, f)
}

// handleGetFloor handles GET /floors/{id} requests.
func (s *Server) handleGetFloor(w http.ResponseWriter, r *http.Request) {
	f, err := s.ledger.Floor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// handleRemoveFloor handles DELETE /floors/{id} requests.
func (s *Server) handleRemoveFloor(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveFloor(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReplaceRooms handles PUT /floors/{id}/rooms requests.
func (s *Server) handleReplaceRooms(w http.ResponseWriter, r *http.Request) {
	var req replaceRoomsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	expected, err := requireVersion(req.ExpectedVersion)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s.respondCommit(w)(s.ledger.ReplaceRooms(r.Context(), r.PathValue("id"), expected, req.Rooms))
}

// handleAddRoom handles POST /floors/{id}/rooms requests.
func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request) {
	var req addRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	expected, err := requireVersion(req.ExpectedVersion)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s.respondCommit(w)(s.ledger.AddRoom(r.Context(), r.PathValue("id"), expected, req.Room))
}

// handleUpdateRoom handles PATCH /floors/{id}/rooms/{index} requests.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req updateRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	expected, err := requireVersion(req.ExpectedVersion)
	if err != nil {
		writeFailure(w, err)
		return
	}

	patch := floor.RoomPatch{Capacity: req.Capacity, Description: req.Description}
	s.respondCommit(w)(s.ledger.UpdateRoom(r.Context(), r.PathValue("id"), expected, index, patch))
}

// handleRemoveRoom handles DELETE /floors/{id}/rooms/{index}?version=N requests.
func (s *Server) handleRemoveRoom(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	expected, err := queryVersion(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	s.respondCommit(w)(s.ledger.RemoveRoom(r.Context(), r.PathValue("id"), expected, index))
}

// handleMoveRoom handles POST /floors/{id}/rooms/{index}/move requests.
func (s *Server) handleMoveRoom(w http.ResponseWriter, r *http.Request) {
	from, err := pathIndex(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	var req moveRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	expected, err := requireVersion(req.ExpectedVersion)
	if err != nil {
		writeFailure(w, err)
		return
	}

	if req.To == nil {
		writeFailure(w, fmt.Errorf("to is required: %w", errBadRequest))
		return
	}

	s.respondCommit(w)(s.ledger.MoveRoom(r.Context(), r.PathValue("id"), expected, from, *req.To))
}

// respondCommit writes the committed state or the failure of a mutation.
func (s *Server) respondCommit(w http.ResponseWriter) func(floor.State, error) {
	return func(f floor.State, err error) {
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, f)
	}
}

// handleProveRoom handles GET /floors/{id}/rooms/{index}/proof requests.
func (s *Server) handleProveRoom(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	p, err := s.ledger.ProveRoom(r.Context(), r.PathValue("id"), index)
	if err != nil {
		writeFailure(w, err)
		return
	}

	encoded, err := newProofJSON(p.Proof)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proofResponse{
		FloorID: p.FloorID,
		Version: p.Version,
		Index:   p.Index,
		Room:    p.Room,
		Leaf:    p.Leaf,
		Root:    p.Root,
		Proof:   encoded,
	})
}

// handleVerifyProof handles POST /proofs/verify requests.
// A proof that does not verify is a 200 with valid=false, not an error.
func (s *Server) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	if req.Index == nil || req.Root == nil {
		writeFailure(w, fmt.Errorf("index and rootDigest are required: %w", errBadRequest))
		return
	}

	proof, err := req.Proof.toProof()
	if err != nil {
		writeFailure(w, err)
		return
	}

	ok, err := s.ledger.VerifyRoom(req.Room, *req.Index, proof, *req.Root)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"valid": ok,
	})
}
