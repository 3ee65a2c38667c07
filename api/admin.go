package api

import (
	"encoding/json"
	"net/http"

	"github.com/constitutional-platform/voting-registry/crypto/ethereum"
	"github.com/constitutional-platform/voting-registry/registry"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"
)

// eligibilityRoot returns the currently published eligibility root
// GET /eligibility/root
func (a *API) eligibilityRoot(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, &EligibilityRootResponse{Root: a.registry.EligibilityRoot()})
}

// setEligibilityRoot replaces the published eligibility root
// POST /eligibility/root
func (a *API) setEligibilityRoot(w http.ResponseWriter, r *http.Request) {
	req := &SetEligibilityRootRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.Root) == 0 {
		ErrMalformedEligibility.Write(w)
		return
	}
	caller, err := ethereum.AddrFromSignature(req.signaturePayload(), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if err := a.registry.SetEligibilityRoot(caller, req.Root); err != nil {
		writeDomainError(w, err)
		return
	}
	log.Infow("eligibility root set", "root", req.Root.String(), "caller", caller.Hex())
	httpWriteOK(w)
}

// pause blocks all mutating registry operations
// POST /admin/pause
func (a *API) pause(w http.ResponseWriter, r *http.Request) {
	a.setPaused(w, r, "pause")
}

// unpause re-enables mutating registry operations
// POST /admin/unpause
func (a *API) unpause(w http.ResponseWriter, r *http.Request) {
	a.setPaused(w, r, "unpause")
}

func (a *API) setPaused(w http.ResponseWriter, r *http.Request, action string) {
	req := &AdminRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	caller, err := ethereum.AddrFromSignature(req.signaturePayload(action), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if action == "pause" {
		err = a.registry.Pause(caller)
	} else {
		err = a.registry.Unpause(caller)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	log.Infow("pause switch changed", "action", action, "caller", caller.Hex())
	httpWriteOK(w)
}

// paused reports the global pause switch state
// GET /admin/paused
func (a *API) paused(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, &PausedResponse{Paused: a.registry.Paused()})
}

// setRole grants or revokes a role
// POST /admin/roles
func (a *API) setRole(w http.ResponseWriter, r *http.Request) {
	req := &RoleRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.Address) != common.AddressLength {
		ErrMalformedParam.With("address").Write(w)
		return
	}
	role := registry.Role(req.Role)
	if role != registry.RoleAdmin && role != registry.RoleRegistrar {
		ErrMalformedParam.Withf("unknown role %q", req.Role).Write(w)
		return
	}
	caller, err := ethereum.AddrFromSignature(req.signaturePayload(), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	addr := common.BytesToAddress(req.Address)
	if req.Grant {
		err = a.registry.Access().Grant(caller, addr, role)
	} else {
		err = a.registry.Access().Revoke(caller, addr, role)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	log.Infow("role changed", "address", addr.Hex(), "role", req.Role, "grant", req.Grant)
	httpWriteOK(w)
}
