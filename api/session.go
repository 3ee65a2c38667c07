package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/constitutional-platform/voting-registry/crypto/ethereum"
	"github.com/constitutional-platform/voting-registry/types"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"
)

// createSession opens a new voting session
// POST /sessions
func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	req := &CreateSessionRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	// Extract the caller address from the signature
	caller, err := ethereum.AddrFromSignature(req.signaturePayload(), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}

	if err := a.registry.CreateSession(caller, req.SessionID, req.BillHash,
		time.Unix(req.StartTime, 0), time.Unix(req.EndTime, 0)); err != nil {
		writeDomainError(w, err)
		return
	}
	log.Infow("new session", "sessionId", req.SessionID.String(), "caller", caller.Hex())
	httpWriteOK(w)
}

// listSessions returns the IDs of all stored sessions
// GET /sessions
func (a *API) listSessions(w http.ResponseWriter, _ *http.Request) {
	ids, err := a.storage.ListSessions()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &SessionListResponse{Sessions: ids})
}

// session returns a session record
// GET /sessions/{sessionId}
func (a *API) session(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamSessionID(w, r)
	if !ok {
		return
	}
	session, err := a.registry.Session(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpWriteJSON(w, session)
}

// sessionTally returns the tally and participation summary of a session
// GET /sessions/{sessionId}/tally
func (a *API) sessionTally(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamSessionID(w, r)
	if !ok {
		return
	}
	summary, err := a.registry.Summary(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpWriteJSON(w, summary)
}

// commitVote records a hidden vote commitment
// POST /sessions/{sessionId}/commitments
func (a *API) commitVote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamSessionID(w, r)
	if !ok {
		return
	}
	req := &CommitVoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := a.registry.CommitVote(id, req.Commitment, req.Proof); err != nil {
		writeDomainError(w, err)
		return
	}
	httpWriteOK(w)
}

// revealVote opens a commitment after the voting window
// POST /sessions/{sessionId}/reveals
func (a *API) revealVote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamSessionID(w, r)
	if !ok {
		return
	}
	req := &RevealVoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.Voter) != common.AddressLength {
		ErrMalformedParam.With("voter address").Write(w)
		return
	}
	choice, err := types.ParseChoice(req.Choice)
	if err != nil {
		ErrMalformedVoteChoice.WithErr(err).Write(w)
		return
	}
	if err := a.registry.RevealVote(id, common.BytesToAddress(req.Voter), choice, req.Secret); err != nil {
		writeDomainError(w, err)
		return
	}
	httpWriteOK(w)
}

// finalizeSession closes a session and publishes its Merkle root
// POST /sessions/{sessionId}/finalize
func (a *API) finalizeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamSessionID(w, r)
	if !ok {
		return
	}
	req := &FinalizeSessionRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	caller, err := ethereum.AddrFromSignature(req.signaturePayload(id), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	root, err := a.registry.FinalizeSession(caller, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	log.Infow("session finalized", "sessionId", id.String(), "root", root.String())
	httpWriteJSON(w, &FinalizeSessionResponse{MerkleRoot: root})
}
