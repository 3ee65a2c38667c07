package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/constitutional-platform/voting-registry/registry"
	"github.com/constitutional-platform/voting-registry/verifier"
	"go.vocdoni.io/dvote/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"session not found","code":40007}
func (e Error) MarshalJSON() ([]byte, error) {
	// This anon struct is needed to actually include the error string,
	// since it wouldn't be marshaled otherwise. (json.Marshal doesn't call Err.Error())
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.Err.Error(),
			Code: e.Code,
		})
}

// Error returns the message contained inside the API error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Write serializes the error as JSON and sends it with its HTTP status.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// Withf returns a copy of Error with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of Error with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// writeDomainError maps registry and verifier sentinel errors to their API
// error codes, falling back to a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		ErrSessionNotFound.Write(w)
	case errors.Is(err, registry.ErrSessionAlreadyExists):
		ErrSessionAlreadyExists.Write(w)
	case errors.Is(err, registry.ErrInvalidDuration):
		ErrInvalidDuration.Write(w)
	case errors.Is(err, registry.ErrVotingNotStarted):
		ErrVotingNotStarted.Write(w)
	case errors.Is(err, registry.ErrVotingEnded):
		ErrVotingEnded.Write(w)
	case errors.Is(err, registry.ErrSessionNotEnded):
		ErrSessionNotEnded.Write(w)
	case errors.Is(err, registry.ErrSessionFinalized):
		ErrSessionFinalized.Write(w)
	case errors.Is(err, registry.ErrDuplicateCommitment):
		ErrDuplicateCommitment.Write(w)
	case errors.Is(err, registry.ErrCommitmentNotFound):
		ErrCommitmentNotFound.Write(w)
	case errors.Is(err, registry.ErrAlreadyRevealed):
		ErrAlreadyRevealed.Write(w)
	case errors.Is(err, registry.ErrInvalidReveal):
		ErrInvalidReveal.Write(w)
	case errors.Is(err, registry.ErrInvalidSessionID):
		ErrMalformedSessionID.Write(w)
	case errors.Is(err, registry.ErrInvalidBillHash):
		ErrMalformedParam.With("bill hash").Write(w)
	case errors.Is(err, registry.ErrInvalidCommitment):
		ErrMalformedVoteCommit.Write(w)
	case errors.Is(err, registry.ErrNotAuthorized):
		ErrUnauthorized.Write(w)
	case errors.Is(err, registry.ErrRegistryPaused):
		ErrRegistryPaused.Write(w)
	case errors.Is(err, verifier.ErrInvalidProofLength):
		ErrInvalidProofLength.Write(w)
	case errors.Is(err, verifier.ErrInvalidMerkleRoot):
		ErrInvalidMerkleRoot.Write(w)
	case errors.Is(err, verifier.ErrInvalidProof):
		ErrInvalidProof.WithErr(err).Write(w)
	case errors.Is(err, verifier.ErrBatchLengthMismatch):
		ErrBatchLengthMismatch.Write(w)
	default:
		ErrGenericInternalServerError.WithErr(err).Write(w)
	}
}
