package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/constitutional-platform/voting-registry/storage/eligibility"
	"github.com/constitutional-platform/voting-registry/types"
	"github.com/constitutional-platform/voting-registry/verifier"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/log"
)

// urlParamRosterID decodes the roster UUID URL parameter.
func urlParamRosterID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, RosterURLParam))
	if err != nil {
		ErrMalformedParam.Withf("roster id: %v", err).Write(w)
		return uuid.UUID{}, false
	}
	return id, true
}

// leafKey derives the roster leaf key from a participant key. Keys are
// always hashed and truncated, so reveals can recompute the same leaf key
// from the bare voter address.
func (a *API) leafKey(key []byte) ([]byte, error) {
	hashed := a.storage.RosterDB().HashAndTrunkKey(key)
	if hashed == nil {
		return nil, fmt.Errorf("failed to hash participant key")
	}
	return hashed, nil
}

// newRoster creates a new eligibility roster
// POST /rosters
func (a *API) newRoster(w http.ResponseWriter, _ *http.Request) {
	rosterID := uuid.New()
	if _, err := a.storage.RosterDB().New(rosterID); err != nil {
		if errors.Is(err, eligibility.ErrRosterAlreadyExists) {
			ErrRosterAlreadyExists.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("new roster", "rosterId", rosterID.String())
	httpWriteJSON(w, &NewRosterResponse{RosterID: rosterID.String()})
}

// addRosterParticipants adds a batch of voters to a roster
// POST /rosters/{rosterId}/participants
func (a *API) addRosterParticipants(w http.ResponseWriter, r *http.Request) {
	rosterID, ok := urlParamRosterID(w, r)
	if !ok {
		return
	}
	req := &AddParticipantsRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.Participants) == 0 {
		ErrMalformedBody.With("no participants").Write(w)
		return
	}

	ref, err := a.storage.RosterDB().Load(rosterID)
	if err != nil {
		if errors.Is(err, eligibility.ErrRosterNotFound) {
			ErrRosterNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}

	var keys, values [][]byte
	for _, p := range req.Participants {
		key, err := a.leafKey(p.Key)
		if err != nil {
			ErrGenericInternalServerError.WithErr(err).Write(w)
			return
		}
		keys = append(keys, key)
		weight := new(big.Int).SetUint64(p.Weight)
		values = append(values, arbo.BigIntToBytes(a.storage.RosterDB().HashLen(), weight))
	}

	invalid, err := ref.InsertBatch(keys, values)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if len(invalid) > 0 {
		ErrMalformedBody.WithErr(fmt.Errorf("failed to insert %d participants", len(invalid))).Write(w)
		return
	}
	log.Infow("roster participants added", "rosterId", rosterID.String(), "count", len(keys))
	httpWriteJSON(w, &RosterRootResponse{Root: ref.Root(), Size: ref.Size()})
}

// rosterRoot returns the current root and size of a roster
// GET /rosters/{rosterId}/root
func (a *API) rosterRoot(w http.ResponseWriter, r *http.Request) {
	rosterID, ok := urlParamRosterID(w, r)
	if !ok {
		return
	}
	ref, err := a.storage.RosterDB().Load(rosterID)
	if err != nil {
		if errors.Is(err, eligibility.ErrRosterNotFound) {
			ErrRosterNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RosterRootResponse{Root: ref.Root(), Size: ref.Size()})
}

// rosterSize returns the number of participants in a roster
// GET /rosters/{rosterId}/size
func (a *API) rosterSize(w http.ResponseWriter, r *http.Request) {
	rosterID, ok := urlParamRosterID(w, r)
	if !ok {
		return
	}
	ref, err := a.storage.RosterDB().Load(rosterID)
	if err != nil {
		if errors.Is(err, eligibility.ErrRosterNotFound) {
			ErrRosterNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RosterSizeResponse{Size: ref.Size()})
}

// deleteRoster removes a roster and its tree
// DELETE /rosters/{rosterId}
func (a *API) deleteRoster(w http.ResponseWriter, r *http.Request) {
	rosterID, ok := urlParamRosterID(w, r)
	if !ok {
		return
	}
	if !a.storage.RosterDB().Exists(rosterID) {
		ErrRosterNotFound.Write(w)
		return
	}
	if err := a.storage.RosterDB().Del(rosterID); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("roster deleted", "rosterId", rosterID.String())
	httpWriteOK(w)
}

// rosterProof generates an inclusion proof for a voter key
// GET /rosters/{rosterId}/proof?key=<hex>
func (a *API) rosterProof(w http.ResponseWriter, r *http.Request) {
	rosterID, ok := urlParamRosterID(w, r)
	if !ok {
		return
	}
	var key types.HexBytes
	if err := key.FromString(r.URL.Query().Get("key")); err != nil || len(key) == 0 {
		ErrMalformedParam.With("key query parameter").Write(w)
		return
	}
	ref, err := a.storage.RosterDB().Load(rosterID)
	if err != nil {
		if errors.Is(err, eligibility.ErrRosterNotFound) {
			ErrRosterNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	leaf, err := a.leafKey(key)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	proof, err := a.storage.RosterDB().ProofByRoot(ref.Root(), leaf)
	if err != nil {
		if errors.Is(err, eligibility.ErrKeyNotFound) {
			ErrKeyNotInRoster.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	blob, err := verifier.EncodeEligibilityProof(proof)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RosterProofResponse{Proof: proof, Blob: blob})
}
