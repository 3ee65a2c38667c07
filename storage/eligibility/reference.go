package eligibility

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/arbo"
)

// RosterRef is a reference to a voter roster. It holds the Merkle tree.
// All accesses to the underlying tree (and its currentRoot) are protected by
// treeMu.
type RosterRef struct {
	ID          uuid.UUID
	MaxLevels   int
	HashType    string
	LastUsed    time.Time
	currentRoot []byte
	tree        *arbo.Tree `gob:"-"`
	// treeMu protects all access to the underlying Merkle tree.
	treeMu sync.Mutex `gob:"-"`
	// updateRootRequest is the channel to send asynchronous root update requests.
	updateRootRequest chan *updateRootRequest `gob:"-"`
}

// Tree returns the underlying arbo.Tree pointer.
// (Not concurrency-safe; use Insert, Root, or GenProof.)
func (rr *RosterRef) Tree() *arbo.Tree {
	return rr.tree
}

// SetTree sets the arbo.Tree pointer.
func (rr *RosterRef) SetTree(tree *arbo.Tree) {
	rr.tree = tree
}

// sendUpdateRoot sends an update request over the channel and waits until
// the root index has been moved.
func (rr *RosterRef) sendUpdateRoot(newRoot []byte) error {
	done := make(chan struct{})
	req := &updateRootRequest{
		rosterID: rr.ID,
		newRoot:  newRoot,
		done:     done,
	}
	rr.updateRootRequest <- req
	<-done
	return nil
}

// Insert safely adds a voter key/weight pair to the Merkle tree.
// It holds treeMu during the Add and Root calls.
func (rr *RosterRef) Insert(key, value []byte) error {
	rr.treeMu.Lock()
	err := rr.tree.Add(key, value)
	if err != nil {
		rr.treeMu.Unlock()
		return err
	}
	newRoot, err := rr.tree.Root()
	rr.treeMu.Unlock()
	if err != nil {
		return err
	}
	return rr.sendUpdateRoot(newRoot)
}

// InsertBatch safely adds a batch of voter key/weight pairs to the Merkle tree.
func (rr *RosterRef) InsertBatch(keys, values [][]byte) ([]arbo.Invalid, error) {
	rr.treeMu.Lock()
	invalid, err := rr.tree.AddBatch(keys, values)
	if err != nil {
		rr.treeMu.Unlock()
		return invalid, err
	}
	newRoot, err := rr.tree.Root()
	rr.treeMu.Unlock()
	if err != nil {
		return invalid, err
	}
	return invalid, rr.sendUpdateRoot(newRoot)
}

// Root safely returns the current Merkle tree root.
func (rr *RosterRef) Root() []byte {
	rr.treeMu.Lock()
	defer rr.treeMu.Unlock()
	root, err := rr.tree.Root()
	if err != nil {
		return nil
	}
	return root
}

// Size safely returns the number of voters in the Merkle tree.
func (rr *RosterRef) Size() int {
	rr.treeMu.Lock()
	defer rr.treeMu.Unlock()
	size, err := rr.tree.GetNLeafs()
	if err != nil {
		return 0
	}
	return size
}

// GenProof safely generates a Merkle proof for the given leaf key.
// It returns the proof components and an inclusion boolean.
func (rr *RosterRef) GenProof(key []byte) ([]byte, []byte, []byte, bool, error) {
	rr.treeMu.Lock()
	defer rr.treeMu.Unlock()
	return rr.tree.GenProof(key)
}

// VerifyProof verifies a Merkle proof for the given leaf key.
func VerifyProof(key, value, root, siblings []byte) bool {
	valid, err := arbo.CheckProof(HashFunction, key, value, root, siblings)
	if err != nil {
		return false
	}
	return valid
}
