//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap, DON'T fill it in, that code was used in the past and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound      = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody         = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedSessionID    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed session ID")}
	ErrSessionNotFound       = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("session not found")}
	ErrSessionAlreadyExists  = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("session already exists")}
	ErrInvalidDuration       = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting window below minimum duration")}
	ErrVotingNotStarted      = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting not started")}
	ErrVotingEnded           = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting ended")}
	ErrSessionNotEnded       = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting window still open")}
	ErrSessionFinalized      = Error{Code: 40013, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("session already finalized")}
	ErrDuplicateCommitment   = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already committed")}
	ErrCommitmentNotFound    = Error{Code: 40015, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("no commitment found for voter")}
	ErrAlreadyRevealed       = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("vote already revealed")}
	ErrInvalidReveal         = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("reveal does not match commitment")}
	ErrInvalidProofLength    = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proof length")}
	ErrInvalidMerkleRoot     = Error{Code: 40019, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid merkle root")}
	ErrInvalidProof          = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proof")}
	ErrUnauthorized          = Error{Code: 40021, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("caller lacks the required role")}
	ErrRegistryPaused        = Error{Code: 40022, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("registry is paused")}
	ErrMalformedParam        = Error{Code: 40023, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed URL parameter")}
	ErrRosterNotFound        = Error{Code: 40024, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("roster not found")}
	ErrRosterAlreadyExists   = Error{Code: 40025, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("roster already exists")}
	ErrKeyNotInRoster        = Error{Code: 40026, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("key not found in roster")}
	ErrBatchLengthMismatch   = Error{Code: 40027, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("proofs and commitments length mismatch")}
	ErrMalformedVoteChoice   = Error{Code: 40028, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed vote choice")}
	ErrMalformedEligibility  = Error{Code: 40029, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed eligibility root")}
	ErrMalformedVoteCommit   = Error{Code: 40030, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed vote commitment")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
