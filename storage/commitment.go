package storage

import (
	"fmt"

	"github.com/constitutional-platform/voting-registry/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Commitments and reveals are keyed by sessionID||voterKey. The session ID
// has a fixed length so the concatenation is unambiguous.
func ledgerKey(sessionID, voterKey types.HexBytes) []byte {
	return append(append([]byte{}, sessionID...), voterKey...)
}

// SetCommitment records a vote commitment. It returns ErrAlreadyExists if
// the voter already committed in the session; commitments are immutable once
// recorded.
func (s *Storage) SetCommitment(cm *types.VoteCommitment) error {
	if cm == nil {
		return fmt.Errorf("nil commitment")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := ledgerKey(cm.SessionID, cm.VoterKey)
	if s.hasArtifact(commitmentPrefix, key) {
		return ErrAlreadyExists
	}
	return s.setArtifact(commitmentPrefix, key, cm)
}

// Commitment retrieves the commitment of a voter in a session. It returns
// ErrNotFound if the voter never committed.
func (s *Storage) Commitment(sessionID, voterKey types.HexBytes) (*types.VoteCommitment, error) {
	cm := &types.VoteCommitment{}
	if err := s.getArtifact(commitmentPrefix, ledgerKey(sessionID, voterKey), cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// CountCommitments returns the number of commitments recorded for a session.
func (s *Storage) CountCommitments(sessionID types.HexBytes) int {
	return s.countPrefix(commitmentPrefix, sessionID)
}

// SetReveal records a vote reveal. It returns ErrAlreadyExists if the voter
// already revealed in the session.
func (s *Storage) SetReveal(rv *types.VoteReveal) error {
	if rv == nil {
		return fmt.Errorf("nil reveal")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := ledgerKey(rv.SessionID, rv.VoterKey)
	if s.hasArtifact(revealPrefix, key) {
		return ErrAlreadyExists
	}
	return s.setArtifact(revealPrefix, key, rv)
}

// ApplyReveal records a reveal and updates its session record through fn in
// one write transaction, so the stored tally can never drift from the reveal
// ledger. It returns ErrAlreadyExists if the voter already revealed and
// ErrNotFound if the session does not exist; in both cases nothing is
// written.
func (s *Storage) ApplyReveal(rv *types.VoteReveal, fn func(*types.VotingSession) error) error {
	if rv == nil {
		return fmt.Errorf("nil reveal")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := ledgerKey(rv.SessionID, rv.VoterKey)
	if s.hasArtifact(revealPrefix, key) {
		return ErrAlreadyExists
	}
	session := &types.VotingSession{}
	if err := s.getArtifact(sessionPrefix, rv.SessionID, session); err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setArtifactTx(wTx, revealPrefix, key, rv); err != nil {
		return err
	}
	if err := setArtifactTx(wTx, sessionPrefix, rv.SessionID, session); err != nil {
		return err
	}
	return wTx.Commit()
}

// Reveal retrieves the reveal of a voter in a session. It returns
// ErrNotFound if the voter never revealed.
func (s *Storage) Reveal(sessionID, voterKey types.HexBytes) (*types.VoteReveal, error) {
	rv := &types.VoteReveal{}
	if err := s.getArtifact(revealPrefix, ledgerKey(sessionID, voterKey), rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// CountReveals returns the number of reveals applied for a session.
func (s *Storage) CountReveals(sessionID types.HexBytes) int {
	return s.countPrefix(revealPrefix, sessionID)
}

// PendingReveals returns the number of commitments that have not been
// revealed yet.
func (s *Storage) PendingReveals(sessionID types.HexBytes) int {
	pending := s.CountCommitments(sessionID) - s.CountReveals(sessionID)
	if pending < 0 {
		return 0
	}
	return pending
}

// ListReveals returns every reveal applied in a session.
func (s *Storage) ListReveals(sessionID types.HexBytes) ([]*types.VoteReveal, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, revealPrefix)
	var reveals []*types.VoteReveal
	if err := rd.Iterate(sessionID, func(_, v []byte) bool {
		rv := &types.VoteReveal{}
		if err := decodeArtifact(v, rv); err != nil {
			return true
		}
		reveals = append(reveals, rv)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate reveals: %w", err)
	}
	return reveals, nil
}

func (s *Storage) countPrefix(prefix []byte, sessionID types.HexBytes) int {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	count := 0
	if err := rd.Iterate(sessionID, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0
	}
	return count
}
