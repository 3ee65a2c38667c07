package api

import (
	"encoding/json"
	"net/http"

	"github.com/constitutional-platform/voting-registry/types"
	"github.com/constitutional-platform/voting-registry/verifier"
	"github.com/ethereum/go-ethereum/common"
)

// verifyDelegation checks a delegation chain proof
// POST /verify/delegation
func (a *API) verifyDelegation(w http.ResponseWriter, r *http.Request) {
	req := &VerifyDelegationRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.Delegate) != common.AddressLength {
		ErrMalformedParam.With("delegate address").Write(w)
		return
	}
	if err := verifier.VerifyDelegationChain(req.Proof, common.BytesToAddress(req.Delegate), req.Depth); err != nil {
		writeDomainError(w, err)
		return
	}
	httpWriteOK(w)
}

// verifyBatch checks a batch of vote validity proofs, one result per pair
// POST /verify/batch
func (a *API) verifyBatch(w http.ResponseWriter, r *http.Request) {
	req := &VerifyBatchRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	proofs := make([][]byte, len(req.Proofs))
	for i, p := range req.Proofs {
		proofs[i] = p
	}
	commitments := make([]types.HexBytes, len(req.Commitments))
	copy(commitments, req.Commitments)
	results, err := verifier.BatchVerify(proofs, commitments)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpWriteJSON(w, &VerifyBatchResponse{Results: results})
}
