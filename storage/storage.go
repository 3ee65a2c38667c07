// Package storage persists all the artifacts of the voting registry in a
// prefixed key-value store, and exposes a reservation-based queue for the
// event outbox consumed by off-chain indexers. The following prefixes are
// used:
//   - 's/' for voting sessions
//   - 'c/' for vote commitments
//   - 'r/' for vote reveals
//   - 'e/' for outbox events (queued)
//   - 'er/' for outbox event reservations
//   - 'm/' for registry metadata (published eligibility root, role set)
//
// Eligibility rosters live under their own prefixes, managed by the
// eligibility subpackage.
package storage

import (
	"fmt"
	"sync"

	"github.com/constitutional-platform/voting-registry/storage/eligibility"
	"go.vocdoni.io/dvote/db"
)

var (
	// Prefixes for the keys in the database.
	sessionPrefix     = []byte("s/")
	commitmentPrefix  = []byte("c/")
	revealPrefix      = []byte("r/")
	eventPrefix       = []byte("e/")
	eventReservPrefix = []byte("er/")
	metadataPrefix    = []byte("m/")
)

const (
	// maxKeySize is the maximum size of a content-addressed key in bytes.
	// Keys are generated by truncating the hash of the artifact itself.
	maxKeySize = 12
)

var (
	// ErrNotFound is returned when an artifact is not found in the storage.
	ErrNotFound = fmt.Errorf("not found")
	// ErrAlreadyExists is returned when creating an artifact whose key is
	// already present.
	ErrAlreadyExists = fmt.Errorf("already exists")
	// ErrNoMoreElements is returned by queue getters when every element is
	// consumed or reserved.
	ErrNoMoreElements = fmt.Errorf("no more elements")
)

// Storage wraps the key-value database with typed accessors for sessions,
// commitments, reveals and outbox events.
type Storage struct {
	db         db.Database
	rosters    *eligibility.RosterDB
	globalLock sync.Mutex
}

// New creates a new Storage instance backed by the given database.
func New(database db.Database) *Storage {
	return &Storage{
		db:      database,
		rosters: eligibility.NewRosterDB(database),
	}
}

// RosterDB returns the eligibility roster database.
func (s *Storage) RosterDB() *eligibility.RosterDB {
	return s.rosters
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}
