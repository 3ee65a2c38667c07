package storage

import (
	"fmt"

	"github.com/constitutional-platform/voting-registry/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// CreateSession stores a new voting session. It returns ErrAlreadyExists if
// a session with the same ID is already present; the existing record is left
// untouched in that case. A non-nil event is written to the outbox in the
// same transaction, so indexers never see a session without its event.
func (s *Storage) CreateSession(session *types.VotingSession, ev *Event) error {
	if session == nil {
		return fmt.Errorf("nil session")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if s.hasArtifact(sessionPrefix, session.ID) {
		return ErrAlreadyExists
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setArtifactTx(wTx, sessionPrefix, session.ID, session); err != nil {
		return err
	}
	if ev != nil {
		if err := pushEventTx(wTx, ev); err != nil {
			return err
		}
	}
	return wTx.Commit()
}

// Session retrieves a voting session by its ID. It returns ErrNotFound if
// the session does not exist.
func (s *Storage) Session(id types.HexBytes) (*types.VotingSession, error) {
	session := &types.VotingSession{}
	if err := s.getArtifact(sessionPrefix, id, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession applies fn to the stored session and writes the result back
// as a single read-modify-write under the storage lock. If fn returns an
// error, nothing is written. A non-nil event is written to the outbox in the
// same transaction; it is encoded after fn runs, so fn may fill event fields
// from the updated record.
func (s *Storage) UpdateSession(id types.HexBytes, fn func(*types.VotingSession) error, ev *Event) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	session := &types.VotingSession{}
	if err := s.getArtifact(sessionPrefix, id, session); err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setArtifactTx(wTx, sessionPrefix, id, session); err != nil {
		return err
	}
	if ev != nil {
		if err := pushEventTx(wTx, ev); err != nil {
			return err
		}
	}
	return wTx.Commit()
}

// ListSessions returns the IDs of all stored sessions.
func (s *Storage) ListSessions() ([]types.HexBytes, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, sessionPrefix)
	var ids []types.HexBytes
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		id := make(types.HexBytes, len(k))
		copy(id, k)
		ids = append(ids, id)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return ids, nil
}
