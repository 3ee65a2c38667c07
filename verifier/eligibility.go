// Package verifier implements the proof checks gating vote commitments:
// Merkle-based eligibility against a published roster root, bounded-depth
// delegation chains, and commitment validity bindings.
//
// Proofs travel as opaque byte blobs. A structural minimum length is
// enforced before any cryptographic work, so malformed submissions are
// rejected cheaply. Blobs are deterministic CBOR, zero-padded up to the
// minimum length; the padding is ignored when decoding.
package verifier

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/constitutional-platform/voting-registry/storage/eligibility"
	"github.com/constitutional-platform/voting-registry/types"
	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrInvalidProofLength is returned when a proof blob is shorter than
	// the protocol minimum. Checked before anything else.
	ErrInvalidProofLength = fmt.Errorf("invalid proof length")
	// ErrInvalidMerkleRoot is returned when a proof claims a root other
	// than the currently published eligibility root.
	ErrInvalidMerkleRoot = fmt.Errorf("invalid merkle root")
	// ErrInvalidProof is returned on cryptographic or semantic proof
	// failures (bad inclusion path, broken delegation chain, zero values).
	ErrInvalidProof = fmt.Errorf("invalid proof")
	// ErrBatchLengthMismatch is returned by BatchVerify when the proofs and
	// commitments slices differ in length.
	ErrBatchLengthMismatch = fmt.Errorf("proofs and commitments length mismatch")
)

var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// padProof zero-extends an encoded proof up to the protocol minimum length.
func padProof(data []byte) []byte {
	if len(data) >= types.MinProofLen {
		return data
	}
	padded := make([]byte, types.MinProofLen)
	copy(padded, data)
	return padded
}

// EncodeEligibilityProof serializes a proof into the wire blob accepted by
// Verify.
func EncodeEligibilityProof(proof *types.EligibilityProof) ([]byte, error) {
	data, err := cborEnc.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("encode eligibility proof: %w", err)
	}
	return padProof(data), nil
}

// DecodeEligibilityProof parses a wire blob back into a structured proof,
// ignoring any trailing padding.
func DecodeEligibilityProof(data []byte) (*types.EligibilityProof, error) {
	proof := &types.EligibilityProof{}
	if _, err := cbor.UnmarshalFirst(data, proof); err != nil {
		return nil, fmt.Errorf("decode eligibility proof: %w", err)
	}
	return proof, nil
}

// Eligibility checks voter inclusion proofs against the single published
// eligibility root. The root is process-wide state, mutable only through
// SetRoot (admin-gated by the caller).
type Eligibility struct {
	mu   sync.RWMutex
	root types.HexBytes
}

// NewEligibility creates an eligibility verifier with the given initial root.
func NewEligibility(root types.HexBytes) *Eligibility {
	return &Eligibility{root: append(types.HexBytes{}, root...)}
}

// Root returns the currently published eligibility root.
func (e *Eligibility) Root() types.HexBytes {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append(types.HexBytes{}, e.root...)
}

// SetRoot replaces the published root and returns the previous one, so the
// caller can emit the old/new pair.
func (e *Eligibility) SetRoot(newRoot types.HexBytes) types.HexBytes {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.root
	e.root = append(types.HexBytes{}, newRoot...)
	return old
}

// Verify checks a raw eligibility proof blob. The order of checks is fixed:
// structural length first, then root comparison, then Merkle inclusion.
func (e *Eligibility) Verify(rawProof []byte) error {
	if len(rawProof) < types.MinProofLen {
		return ErrInvalidProofLength
	}
	proof, err := DecodeEligibilityProof(rawProof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	e.mu.RLock()
	published := e.root
	e.mu.RUnlock()
	if !bytes.Equal(proof.Root, published) {
		return ErrInvalidMerkleRoot
	}
	if !eligibility.VerifyProof(proof.Key, proof.Value, proof.Root, proof.Siblings) {
		return ErrInvalidProof
	}
	return nil
}
