package types

// EligibilityProof is a Merkle proof of inclusion in an eligibility roster.
// Voters attach it (padded to MinProofLen) to every vote commitment to show
// they are allowed to participate.
type EligibilityProof struct {
	Root     HexBytes `json:"root"     cbor:"0,keyasint"`
	Key      HexBytes `json:"key"      cbor:"1,keyasint"`
	Value    HexBytes `json:"value"    cbor:"2,keyasint"`
	Siblings HexBytes `json:"siblings" cbor:"3,keyasint"`
	Weight   *BigInt  `json:"weight,omitempty" cbor:"4,keyasint,omitempty"`
}
