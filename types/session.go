package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus is the derived lifecycle state of a voting session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionEnded     SessionStatus = "ended"
	SessionFinalized SessionStatus = "finalized"
)

// VoteChoice is the disclosed choice of a revealed vote.
type VoteChoice uint8

const (
	ChoiceYes VoteChoice = iota + 1
	ChoiceNo
	ChoiceAbstain
)

// String returns the canonical name of the choice.
func (c VoteChoice) String() string {
	switch c {
	case ChoiceYes:
		return "yes"
	case ChoiceNo:
		return "no"
	case ChoiceAbstain:
		return "abstain"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// Valid reports whether c is one of the three accepted choices.
func (c VoteChoice) Valid() bool {
	return c == ChoiceYes || c == ChoiceNo || c == ChoiceAbstain
}

// ParseChoice converts a choice name into a VoteChoice.
func ParseChoice(s string) (VoteChoice, error) {
	switch s {
	case "yes":
		return ChoiceYes, nil
	case "no":
		return ChoiceNo, nil
	case "abstain":
		return ChoiceAbstain, nil
	}
	return 0, fmt.Errorf("unknown vote choice: %q", s)
}

// Tally holds the per-choice vote counts of a session.
type Tally struct {
	Yes     uint64 `json:"yes"     cbor:"0,keyasint"`
	No      uint64 `json:"no"      cbor:"1,keyasint"`
	Abstain uint64 `json:"abstain" cbor:"2,keyasint"`
}

// Total returns the number of revealed votes counted so far.
func (t Tally) Total() uint64 {
	return t.Yes + t.No + t.Abstain
}

// Add counts one revealed vote for the given choice.
func (t *Tally) Add(c VoteChoice) {
	switch c {
	case ChoiceYes:
		t.Yes++
	case ChoiceNo:
		t.No++
	case ChoiceAbstain:
		t.Abstain++
	}
}

// VotingSession is the persistent record of a commit/reveal voting session
// bound to a bill. Tallies are zero until reveals are applied after the
// voting window closes; Finalized is set exactly once and is terminal.
type VotingSession struct {
	ID         HexBytes  `json:"id"                   cbor:"0,keyasint"`
	BillHash   HexBytes  `json:"billHash"             cbor:"1,keyasint"`
	StartTime  time.Time `json:"startTime"            cbor:"2,keyasint"`
	EndTime    time.Time `json:"endTime"              cbor:"3,keyasint"`
	Tally      Tally     `json:"tally"                cbor:"4,keyasint"`
	Finalized  bool      `json:"finalized"            cbor:"5,keyasint"`
	MerkleRoot HexBytes  `json:"merkleRoot,omitempty" cbor:"6,keyasint,omitempty"`
}

// Status derives the lifecycle state of the session at the given time.
func (s *VotingSession) Status(now time.Time) SessionStatus {
	switch {
	case s.Finalized:
		return SessionFinalized
	case now.Before(s.StartTime):
		return SessionScheduled
	case now.Before(s.EndTime):
		return SessionActive
	}
	return SessionEnded
}

func (s *VotingSession) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// VoteCommitment is a hidden vote recorded during the voting window. The
// voter key is the eligibility roster leaf key the commitment was admitted
// under; at most one commitment is accepted per voter per session.
type VoteCommitment struct {
	SessionID  HexBytes  `json:"sessionId"  cbor:"0,keyasint"`
	VoterKey   HexBytes  `json:"voterKey"   cbor:"1,keyasint"`
	Commitment HexBytes  `json:"commitment" cbor:"2,keyasint"`
	CreatedAt  time.Time `json:"createdAt"  cbor:"3,keyasint"`
}

// VoteReveal is the disclosure that converts a commitment into a counted
// tally entry.
type VoteReveal struct {
	SessionID  HexBytes   `json:"sessionId"  cbor:"0,keyasint"`
	VoterKey   HexBytes   `json:"voterKey"   cbor:"1,keyasint"`
	Choice     VoteChoice `json:"choice"     cbor:"2,keyasint"`
	RevealedAt time.Time  `json:"revealedAt" cbor:"3,keyasint"`
}
