package api

import (
	"fmt"

	"github.com/constitutional-platform/voting-registry/types"
)

// Privileged requests are authenticated by an Ethereum personal-message
// signature over a canonical string of the request fields plus a nonce.
// The recovered address is the caller checked against the role set.

// CreateSessionRequest opens a new voting session. Registrar only.
type CreateSessionRequest struct {
	SessionID types.HexBytes `json:"sessionId"`
	BillHash  types.HexBytes `json:"billHash"`
	StartTime int64          `json:"startTime"`
	EndTime   int64          `json:"endTime"`
	Nonce     uint64         `json:"nonce"`
	Signature types.HexBytes `json:"signature"`
}

func (r *CreateSessionRequest) signaturePayload() []byte {
	return []byte(fmt.Sprintf("createSession%s%s%d%d%d",
		r.SessionID, r.BillHash, r.StartTime, r.EndTime, r.Nonce))
}

// CommitVoteRequest submits a hidden vote commitment with its eligibility
// proof. Unauthenticated: the proof itself is the credential.
type CommitVoteRequest struct {
	Commitment types.HexBytes `json:"commitment"`
	Proof      types.HexBytes `json:"proof"`
}

// RevealVoteRequest opens a commitment after the voting window.
type RevealVoteRequest struct {
	Voter  types.HexBytes `json:"voter"`
	Choice string         `json:"choice"`
	Secret types.HexBytes `json:"secret"`
}

// FinalizeSessionRequest closes a session. Registrar only.
type FinalizeSessionRequest struct {
	Nonce     uint64         `json:"nonce"`
	Signature types.HexBytes `json:"signature"`
}

func (r *FinalizeSessionRequest) signaturePayload(sessionID types.HexBytes) []byte {
	return []byte(fmt.Sprintf("finalizeSession%s%d", sessionID, r.Nonce))
}

// FinalizeSessionResponse carries the Merkle root published at finalize time.
type FinalizeSessionResponse struct {
	MerkleRoot types.HexBytes `json:"merkleRoot"`
}

// SessionListResponse lists the IDs of all stored sessions.
type SessionListResponse struct {
	Sessions []types.HexBytes `json:"sessions"`
}

// SetEligibilityRootRequest replaces the published eligibility root. Admin only.
type SetEligibilityRootRequest struct {
	Root      types.HexBytes `json:"root"`
	Nonce     uint64         `json:"nonce"`
	Signature types.HexBytes `json:"signature"`
}

func (r *SetEligibilityRootRequest) signaturePayload() []byte {
	return []byte(fmt.Sprintf("setEligibilityRoot%s%d", r.Root, r.Nonce))
}

// EligibilityRootResponse carries the currently published eligibility root.
type EligibilityRootResponse struct {
	Root types.HexBytes `json:"root"`
}

// AdminRequest authenticates a pause or unpause call. Admin only.
type AdminRequest struct {
	Nonce     uint64         `json:"nonce"`
	Signature types.HexBytes `json:"signature"`
}

func (r *AdminRequest) signaturePayload(action string) []byte {
	return []byte(fmt.Sprintf("%s%d", action, r.Nonce))
}

// PausedResponse reports the global pause switch state.
type PausedResponse struct {
	Paused bool `json:"paused"`
}

// RoleRequest grants or revokes a role. Admin only.
type RoleRequest struct {
	Address   types.HexBytes `json:"address"`
	Role      string         `json:"role"`
	Grant     bool           `json:"grant"`
	Nonce     uint64         `json:"nonce"`
	Signature types.HexBytes `json:"signature"`
}

func (r *RoleRequest) signaturePayload() []byte {
	return []byte(fmt.Sprintf("role%s%s%t%d", r.Address, r.Role, r.Grant, r.Nonce))
}

// NewRosterResponse returns the identifier of a freshly created roster.
type NewRosterResponse struct {
	RosterID string `json:"rosterId"`
}

// RosterParticipant is a single voter key and its weight.
type RosterParticipant struct {
	Key    types.HexBytes `json:"key"`
	Weight uint64         `json:"weight"`
}

// AddParticipantsRequest adds a batch of voters to a roster.
type AddParticipantsRequest struct {
	Participants []RosterParticipant `json:"participants"`
}

// RosterSizeResponse carries the number of participants in a roster.
type RosterSizeResponse struct {
	Size int `json:"size"`
}

// RosterRootResponse carries the current root and size of a roster tree.
type RosterRootResponse struct {
	Root types.HexBytes `json:"root"`
	Size int            `json:"size"`
}

// RosterProofResponse carries a structured inclusion proof and the padded
// wire blob ready to attach to a vote commitment.
type RosterProofResponse struct {
	Proof *types.EligibilityProof `json:"proof"`
	Blob  types.HexBytes          `json:"blob"`
}

// VerifyDelegationRequest checks a delegation chain proof.
type VerifyDelegationRequest struct {
	Proof    types.HexBytes `json:"proof"`
	Delegate types.HexBytes `json:"delegate"`
	Depth    int            `json:"depth"`
}

// VerifyBatchRequest checks a batch of vote validity proofs.
type VerifyBatchRequest struct {
	Proofs      []types.HexBytes `json:"proofs"`
	Commitments []types.HexBytes `json:"commitments"`
}

// VerifyBatchResponse carries one result per proof/commitment pair.
type VerifyBatchResponse struct {
	Results []bool `json:"results"`
}
