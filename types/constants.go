package types

import "time"

const (
	// SessionIDLen is the length of a voting session identifier in bytes.
	SessionIDLen = 32
	// BillHashLen is the length of a bill content hash in bytes.
	BillHashLen = 32
	// CommitmentLen is the length of a vote commitment hash in bytes.
	CommitmentLen = 32
	// MinSessionDuration is the minimum allowed voting window.
	MinSessionDuration = time.Hour
	// MinProofLen is the minimum length in bytes of an eligibility or vote
	// validity proof blob. Shorter proofs are rejected before any
	// cryptographic check.
	MinProofLen = 256
	// MaxDelegationDepth is the maximum number of hops allowed in a
	// delegation chain.
	MaxDelegationDepth = 10
	// EligibilityTreeMaxLevels is the maximum number of levels in the
	// eligibility roster merkle tree.
	EligibilityTreeMaxLevels = 160
	// RosterKeyMaxLen is the maximum length of a roster leaf key in bytes.
	RosterKeyMaxLen = EligibilityTreeMaxLevels / 8
)
