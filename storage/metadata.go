package storage

import (
	"github.com/constitutional-platform/voting-registry/types"
)

// Registry metadata artifacts. The published eligibility root and the role
// membership set are durable like sessions and ledgers, so a daemon restart
// does not leave open sessions with an empty root or forget granted roles.

var (
	eligibilityRootKey = []byte("eligibilityRoot")
	rolesKey           = []byte("roles")
)

// SetEligibilityRoot persists the published eligibility root. A non-nil
// event is written to the outbox in the same transaction.
func (s *Storage) SetEligibilityRoot(root types.HexBytes, ev *Event) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setArtifactTx(wTx, metadataPrefix, eligibilityRootKey, root); err != nil {
		return err
	}
	if ev != nil {
		if err := pushEventTx(wTx, ev); err != nil {
			return err
		}
	}
	return wTx.Commit()
}

// EligibilityRoot returns the persisted eligibility root. It returns
// ErrNotFound if no root has been published yet.
func (s *Storage) EligibilityRoot() (types.HexBytes, error) {
	var root types.HexBytes
	if err := s.getArtifact(metadataPrefix, eligibilityRootKey, &root); err != nil {
		return nil, err
	}
	return root, nil
}

// SetRoles persists the full role membership set, keyed by hex address.
func (s *Storage) SetRoles(roles map[string][]string) error {
	return s.setArtifact(metadataPrefix, rolesKey, roles)
}

// Roles returns the persisted role membership set. It returns ErrNotFound
// if no roles have been stored yet.
func (s *Storage) Roles() (map[string][]string, error) {
	roles := map[string][]string{}
	if err := s.getArtifact(metadataPrefix, rolesKey, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
