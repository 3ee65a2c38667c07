// Package eligibility maintains the voter rosters of the registry as
// persistent Merkle trees, and generates the inclusion proofs voters attach
// to their commitments.
package eligibility

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/constitutional-platform/voting-registry/types"
	"github.com/google/uuid"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"
)

const (
	rosterDBprefix          = "rt_"
	rosterDBreferencePrefix = "rr_"
)

var (
	// ErrRosterNotFound is returned when a roster is not found in the database.
	ErrRosterNotFound = fmt.Errorf("roster not found in the local database")
	// ErrRosterAlreadyExists is returned by New() if the roster already exists.
	ErrRosterAlreadyExists = fmt.Errorf("roster already exists in the local database")
	// ErrKeyNotFound is returned when a voter key is not found in the Merkle tree.
	ErrKeyNotFound = fmt.Errorf("key not found")

	// HashFunction is the hash used in roster trees. Proof verification
	// elsewhere must use the same function.
	HashFunction = arbo.HashFunctionBlake2b
)

// updateRootRequest is used to update the root index of a roster tree.
type updateRootRequest struct {
	rosterID uuid.UUID
	newRoot  []byte
	done     chan struct{}
}

// rootKey converts a root (a byte slice) to its canonical hexadecimal string.
func rootKey(root []byte) string {
	return hex.EncodeToString(root)
}

// RosterDB is a safe and persistent database of voter roster trees. It
// maintains an in-memory index mapping Merkle tree roots (in hexadecimal
// form) to roster IDs, so proofs can be generated knowing only the published
// eligibility root.
type RosterDB struct {
	mu           sync.RWMutex
	db           db.Database
	loadedRoster map[uuid.UUID]*RosterRef
	rootIndex    map[string]uuid.UUID // maps hex(root) to rosterID

	updateRootChan chan *updateRootRequest
}

// NewRosterDB creates a new RosterDB object and starts the root update
// worker.
func NewRosterDB(database db.Database) *RosterDB {
	r := &RosterDB{
		db:             database,
		loadedRoster:   make(map[uuid.UUID]*RosterRef),
		rootIndex:      make(map[string]uuid.UUID),
		updateRootChan: make(chan *updateRootRequest, 100),
	}

	go func() {
		for req := range r.updateRootChan {
			if err := r.updateRoot(req.rosterID, req.newRoot); err != nil {
				log.Warnw("error updating roster root",
					"id", hex.EncodeToString(req.rosterID[:]),
					"err", err)
			}
			if req.done != nil {
				close(req.done)
			}
		}
	}()

	return r
}

// New creates a new roster and adds it to the database.
// It returns ErrRosterAlreadyExists if a roster with the given ID is present.
func (r *RosterDB) New(rosterID uuid.UUID) (*RosterRef, error) {
	key := append([]byte(rosterDBreferencePrefix), rosterID[:]...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loadedRoster[rosterID]; exists {
		return nil, ErrRosterAlreadyExists
	}
	if _, err := r.db.Get(key); err == nil {
		return nil, ErrRosterAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}

	ref := &RosterRef{
		ID:        rosterID,
		MaxLevels: types.EligibilityTreeMaxLevels,
		HashType:  string(HashFunction.Type()),
		LastUsed:  time.Now(),
	}

	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(r.db, rosterPrefix(rosterID)),
		MaxLevels:    types.EligibilityTreeMaxLevels,
		HashFunction: HashFunction,
	})
	if err != nil {
		return nil, err
	}
	ref.SetTree(tree)
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	ref.currentRoot = root
	ref.updateRootRequest = r.updateRootChan

	if err := r.writeReference(ref); err != nil {
		return nil, err
	}

	r.loadedRoster[rosterID] = ref
	rk := rootKey(root)
	if _, exists := r.rootIndex[rk]; !exists {
		r.rootIndex[rk] = rosterID
	}

	return ref, nil
}

// writeReference writes a roster reference to the database.
func (r *RosterDB) writeReference(ref *RosterRef) error {
	key := append([]byte(rosterDBreferencePrefix), ref.ID[:]...)
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ref); err != nil {
		return err
	}
	wtx := r.db.WriteTx()
	defer wtx.Discard()
	if err := wtx.Set(key, buf.Bytes()); err != nil {
		return err
	}
	return wtx.Commit()
}

// HashAndTrunkKey computes the hash of a voter key and truncates it to the
// length imposed by the tree levels. Returns nil if the hash function fails.
func (r *RosterDB) HashAndTrunkKey(key []byte) []byte {
	length := HashFunction.Len()
	if length > types.RosterKeyMaxLen {
		length = types.RosterKeyMaxLen
	}
	hash, err := HashFunction.Hash(key)
	if err != nil {
		return nil
	}
	if len(hash) < length {
		panic("hash function output is too short, maxlevels is too high")
	}
	return hash[:length]
}

// HashLen returns the length of the hash function output in bytes.
func (r *RosterDB) HashLen() int {
	return HashFunction.Len()
}

// Exists returns true if the rosterID exists in the local database.
func (r *RosterDB) Exists(rosterID uuid.UUID) bool {
	r.mu.RLock()
	_, exists := r.loadedRoster[rosterID]
	r.mu.RUnlock()
	if exists {
		return true
	}
	key := append([]byte(rosterDBreferencePrefix), rosterID[:]...)
	_, err := r.db.Get(key)
	return err == nil
}

// Load returns a roster from memory or from the persistent KV database.
func (r *RosterDB) Load(rosterID uuid.UUID) (*RosterRef, error) {
	r.mu.RLock()
	if ref, exists := r.loadedRoster[rosterID]; exists {
		r.mu.RUnlock()
		return ref, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if ref, exists := r.loadedRoster[rosterID]; exists {
		return ref, nil
	}

	key := append([]byte(rosterDBreferencePrefix), rosterID[:]...)
	b, err := r.db.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %x", ErrRosterNotFound, rosterID)
		}
		return nil, err
	}

	var ref RosterRef
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&ref); err != nil {
		return nil, err
	}

	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(r.db, rosterPrefix(rosterID)),
		MaxLevels:    ref.MaxLevels,
		HashFunction: HashFunction,
	})
	if err != nil {
		return nil, err
	}
	ref.tree = tree
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	ref.currentRoot = root
	ref.updateRootRequest = r.updateRootChan

	ref.LastUsed = time.Now()
	if err := r.writeReference(&ref); err != nil {
		return nil, err
	}

	r.loadedRoster[rosterID] = &ref
	rk := rootKey(root)
	if _, exists := r.rootIndex[rk]; !exists {
		r.rootIndex[rk] = rosterID
	}
	return &ref, nil
}

// Del removes a roster from the database and memory. The underlying tree is
// deleted asynchronously.
func (r *RosterDB) Del(rosterID uuid.UUID) error {
	key := append([]byte(rosterDBreferencePrefix), rosterID[:]...)
	wtx := r.db.WriteTx()
	if err := wtx.Delete(key); err != nil {
		wtx.Discard()
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}

	r.mu.Lock()
	if ref, exists := r.loadedRoster[rosterID]; exists {
		delete(r.rootIndex, rootKey(ref.currentRoot))
		delete(r.loadedRoster, rosterID)
	}
	r.mu.Unlock()

	go func(id uuid.UUID) {
		if _, err := deleteRosterTreeFromDatabase(r.db, rosterPrefix(id)); err != nil {
			log.Warnw("error deleting roster tree", "id", hex.EncodeToString(id[:]), "err", err)
		}
	}(rosterID)

	return nil
}

// deleteRosterTreeFromDatabase removes all keys belonging to a roster tree.
func deleteRosterTreeFromDatabase(kv db.Database, prefix []byte) (int, error) {
	database := prefixeddb.NewPrefixedDatabase(kv, prefix)
	wtx := database.WriteTx()
	count := 0
	err := database.Iterate(nil, func(k, _ []byte) bool {
		if err := wtx.Delete(k); err != nil {
			log.Warnw("could not remove key from database", "key", hex.EncodeToString(k))
		} else {
			count++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, wtx.Commit()
}

// ProofByRoot finds a roster by its Merkle tree root and generates an
// inclusion proof for the given leaf key.
func (r *RosterDB) ProofByRoot(root, leafKey []byte) (*types.EligibilityProof, error) {
	rk := rootKey(root)
	r.mu.RLock()
	rosterID, exists := r.rootIndex[rk]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no roster found with the provided root")
	}
	ref, err := r.Load(rosterID)
	if err != nil {
		return nil, err
	}
	key, value, siblings, inclusion, err := ref.GenProof(leafKey)
	if err != nil {
		return nil, err
	}
	if !inclusion {
		return nil, ErrKeyNotFound
	}

	return &types.EligibilityProof{
		Root:     root,
		Key:      key,
		Value:    value,
		Siblings: siblings,
		Weight:   (*types.BigInt)(arbo.BytesToBigInt(value)),
	}, nil
}

// SizeByRoot returns the number of voters in the roster with the given root.
func (r *RosterDB) SizeByRoot(root []byte) (int, error) {
	rk := rootKey(root)
	r.mu.RLock()
	rosterID, exists := r.rootIndex[rk]
	r.mu.RUnlock()
	if !exists {
		return 0, fmt.Errorf("no roster found with the provided root")
	}
	ref, err := r.Load(rosterID)
	if err != nil {
		return 0, err
	}
	return ref.Size(), nil
}

// VerifyProof checks an eligibility proof against its own root.
func (r *RosterDB) VerifyProof(proof *types.EligibilityProof) bool {
	return VerifyProof(proof.Key, proof.Value, proof.Root, proof.Siblings)
}

// updateRoot moves the in-memory root index entry of a roster to a new root.
// It acquires the RosterRef's treeMu before reading or writing currentRoot.
func (r *RosterDB) updateRoot(rosterID uuid.UUID, newRoot []byte) error {
	newKey := rootKey(newRoot)
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, exists := r.loadedRoster[rosterID]
	if !exists {
		return ErrRosterNotFound
	}

	ref.treeMu.Lock()
	oldKey := rootKey(ref.currentRoot)
	if oldKey == newKey {
		ref.treeMu.Unlock()
		return nil
	}
	ref.currentRoot = append([]byte(nil), newRoot...)
	ref.treeMu.Unlock()

	delete(r.rootIndex, oldKey)
	r.rootIndex[newKey] = rosterID
	return nil
}

// rosterPrefix returns the prefix used for the roster tree in the database.
func rosterPrefix(rosterID uuid.UUID) []byte {
	return append([]byte(rosterDBprefix), rosterID[:]...)
}
