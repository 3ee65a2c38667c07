package verifier

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/constitutional-platform/voting-registry/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
)

// voteValidityDomain separates commitment-validity bindings from any other
// keccak preimage in the protocol.
const voteValidityDomain = "votevalidity"

// DelegationHop is a single transfer of vote-casting authority. The
// attestation binds the pair of addresses to its position in the chain.
type DelegationHop struct {
	Delegator   common.Address `json:"delegator"   cbor:"0,keyasint"`
	Delegate    common.Address `json:"delegate"    cbor:"1,keyasint"`
	Attestation types.HexBytes `json:"attestation" cbor:"2,keyasint"`
}

// DelegationChain is an ordered sequence of hops from the original voter to
// the final delegate.
type DelegationChain struct {
	Hops []DelegationHop `json:"hops" cbor:"0,keyasint"`
}

// HopAttestation computes the attestation expected at a given chain position.
func HopAttestation(delegator, delegate common.Address, hopIndex int) types.HexBytes {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(hopIndex))
	return crypto.Keccak256(delegator.Bytes(), delegate.Bytes(), idx[:])
}

// NewDelegationChain builds an attested chain through the given addresses,
// from the original voter to the final delegate. At least two addresses are
// required (one hop).
func NewDelegationChain(addrs []common.Address) (*DelegationChain, error) {
	if len(addrs) < 2 {
		return nil, fmt.Errorf("delegation chain needs at least two addresses")
	}
	chain := &DelegationChain{}
	for i := 0; i < len(addrs)-1; i++ {
		chain.Hops = append(chain.Hops, DelegationHop{
			Delegator:   addrs[i],
			Delegate:    addrs[i+1],
			Attestation: HopAttestation(addrs[i], addrs[i+1], i),
		})
	}
	return chain, nil
}

// EncodeDelegationChain serializes a chain into the wire blob accepted by
// VerifyDelegationChain.
func EncodeDelegationChain(chain *DelegationChain) ([]byte, error) {
	data, err := cborEnc.Marshal(chain)
	if err != nil {
		return nil, fmt.Errorf("encode delegation chain: %w", err)
	}
	return padProof(data), nil
}

// DecodeDelegationChain parses a wire blob back into a structured chain,
// ignoring any trailing padding.
func DecodeDelegationChain(data []byte) (*DelegationChain, error) {
	chain := &DelegationChain{}
	if _, err := cbor.UnmarshalFirst(data, chain); err != nil {
		return nil, fmt.Errorf("decode delegation chain: %w", err)
	}
	return chain, nil
}

// VerifyDelegationChain checks that rawProof encodes a valid chain of exactly
// depth hops terminating at delegate. Zero addresses, zero depth and depth
// beyond MaxDelegationDepth are rejected before decoding.
func VerifyDelegationChain(rawProof []byte, delegate common.Address, depth int) error {
	if delegate == (common.Address{}) {
		return fmt.Errorf("%w: zero delegate address", ErrInvalidProof)
	}
	if depth == 0 {
		return fmt.Errorf("%w: zero delegation depth", ErrInvalidProof)
	}
	if depth > types.MaxDelegationDepth {
		return fmt.Errorf("%w: delegation depth %d exceeds maximum %d",
			ErrInvalidProof, depth, types.MaxDelegationDepth)
	}
	if len(rawProof) < types.MinProofLen {
		return ErrInvalidProofLength
	}
	chain, err := DecodeDelegationChain(rawProof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if len(chain.Hops) != depth {
		return fmt.Errorf("%w: chain has %d hops, expected %d",
			ErrInvalidProof, len(chain.Hops), depth)
	}
	for i, hop := range chain.Hops {
		if hop.Delegator == (common.Address{}) || hop.Delegate == (common.Address{}) {
			return fmt.Errorf("%w: zero address at hop %d", ErrInvalidProof, i)
		}
		if i > 0 && hop.Delegator != chain.Hops[i-1].Delegate {
			return fmt.Errorf("%w: broken chain at hop %d", ErrInvalidProof, i)
		}
		if !bytes.Equal(hop.Attestation, HopAttestation(hop.Delegator, hop.Delegate, i)) {
			return fmt.Errorf("%w: bad attestation at hop %d", ErrInvalidProof, i)
		}
	}
	if chain.Hops[len(chain.Hops)-1].Delegate != delegate {
		return fmt.Errorf("%w: chain does not terminate at delegate", ErrInvalidProof)
	}
	return nil
}

// VoteValidityProof attests that a commitment was honestly constructed. The
// binding is a keccak hash over a domain tag and the commitment itself.
type VoteValidityProof struct {
	Commitment types.HexBytes `json:"commitment" cbor:"0,keyasint"`
	Binding    types.HexBytes `json:"binding"    cbor:"1,keyasint"`
}

// VoteValidityBinding computes the binding expected for a commitment.
func VoteValidityBinding(commitment types.HexBytes) types.HexBytes {
	return crypto.Keccak256([]byte(voteValidityDomain), commitment)
}

// EncodeVoteValidityProof builds the wire blob accepted by VerifyVoteValidity.
func EncodeVoteValidityProof(commitment types.HexBytes) ([]byte, error) {
	data, err := cborEnc.Marshal(&VoteValidityProof{
		Commitment: commitment,
		Binding:    VoteValidityBinding(commitment),
	})
	if err != nil {
		return nil, fmt.Errorf("encode vote validity proof: %w", err)
	}
	return padProof(data), nil
}

// VerifyVoteValidity checks that rawProof attests the given commitment.
// A zero or empty commitment is rejected before anything else.
func VerifyVoteValidity(rawProof []byte, commitment types.HexBytes) error {
	if commitment.IsZero() {
		return fmt.Errorf("%w: zero commitment", ErrInvalidProof)
	}
	if len(rawProof) < types.MinProofLen {
		return ErrInvalidProofLength
	}
	proof := &VoteValidityProof{}
	if _, err := cbor.UnmarshalFirst(rawProof, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if !bytes.Equal(proof.Commitment, commitment) {
		return fmt.Errorf("%w: proof bound to a different commitment", ErrInvalidProof)
	}
	if !bytes.Equal(proof.Binding, VoteValidityBinding(commitment)) {
		return fmt.Errorf("%w: bad commitment binding", ErrInvalidProof)
	}
	return nil
}

// BatchVerify checks each proof against its commitment independently and
// returns one result per pair. It fails only when the slices differ in
// length; individual failures do not short-circuit the batch.
func BatchVerify(proofs [][]byte, commitments []types.HexBytes) ([]bool, error) {
	if len(proofs) != len(commitments) {
		return nil, ErrBatchLengthMismatch
	}
	results := make([]bool, len(proofs))
	for i := range proofs {
		results[i] = VerifyVoteValidity(proofs[i], commitments[i]) == nil
	}
	return results, nil
}
