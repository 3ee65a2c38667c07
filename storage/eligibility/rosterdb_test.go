package eligibility

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

// newDatabase returns a new in-memory test database.
func newDatabase(t *testing.T) db.Database {
	return metadb.NewTest(t)
}

func TestNewRosterDB(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	qt.Assert(t, rosterDB, qt.IsNotNil)
	qt.Assert(t, rosterDB.db, qt.IsNotNil)
}

func TestRosterDBNew(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	rosterID := uuid.New()

	ref, err := rosterDB.New(rosterID)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ref, qt.IsNotNil)
	qt.Assert(t, ref.Tree(), qt.IsNotNil)

	// Creating it again must fail.
	_, err = rosterDB.New(rosterID)
	qt.Assert(t, err, qt.Equals, ErrRosterAlreadyExists)
}

func TestRosterDBExists(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	rosterID := uuid.New()

	qt.Assert(t, rosterDB.Exists(rosterID), qt.IsFalse)

	_, err := rosterDB.New(rosterID)
	qt.Assert(t, err, qt.IsNil)

	qt.Assert(t, rosterDB.Exists(rosterID), qt.IsTrue)
}

func TestRosterDBDel(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	rosterID := uuid.New()

	_, err := rosterDB.New(rosterID)
	qt.Assert(t, err, qt.IsNil)

	err = rosterDB.Del(rosterID)
	qt.Assert(t, err, qt.IsNil)

	// The underlying tree deletion is asynchronous.
	time.Sleep(100 * time.Millisecond)

	qt.Assert(t, rosterDB.Exists(rosterID), qt.IsFalse)

	ref, err := rosterDB.Load(rosterID)
	qt.Assert(t, ref, qt.IsNil)
	qt.Assert(t, err, qt.ErrorIs, ErrRosterNotFound)
}

func TestSequentialLoadReturnsSamePointer(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	rosterID := uuid.New()

	ref1, err := rosterDB.New(rosterID)
	qt.Assert(t, err, qt.IsNil)

	ref2, err := rosterDB.Load(rosterID)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ref1, qt.Equals, ref2)
}

func TestPersistenceAcrossRosterDBInstances(t *testing.T) {
	t.Parallel()
	database := newDatabase(t)
	rosterID := uuid.New()

	rosterDB1 := NewRosterDB(database)
	ref1, err := rosterDB1.New(rosterID)
	qt.Assert(t, err, qt.IsNil)

	err = ref1.Insert([]byte("voter-1"), []byte{1})
	qt.Assert(t, err, qt.IsNil)

	// A fresh RosterDB over the same database must find the roster and the
	// inserted leaf.
	rosterDB2 := NewRosterDB(database)
	ref2, err := rosterDB2.Load(rosterID)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ref2.Tree(), qt.IsNotNil)
	qt.Assert(t, ref2.Size(), qt.Equals, 1)
	qt.Assert(t, ref2.Root(), qt.DeepEquals, ref1.Root())
}

func TestRosterDBConcurrentNew(t *testing.T) {
	rosterDB := NewRosterDB(newDatabase(t))
	rosterID := uuid.New()
	const numGoroutines = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	var successCount int32
	var failureCount int32

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			ref, err := rosterDB.New(rosterID)
			if err == nil && ref != nil {
				atomic.AddInt32(&successCount, 1)
			} else if err != nil {
				// Only ErrRosterAlreadyExists is expected after one success.
				if err == ErrRosterAlreadyExists {
					atomic.AddInt32(&failureCount, 1)
				} else {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	qt.Assert(t, successCount, qt.Equals, int32(1))
	qt.Assert(t, failureCount, qt.Equals, int32(numGoroutines-1))
}

func TestProofByRootNonExistentRoot(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	proof, err := rosterDB.ProofByRoot([]byte("bogus-root"), []byte("somekey"))
	qt.Assert(t, proof, qt.IsNil)
	qt.Assert(t, err, qt.Not(qt.IsNil))
	qt.Assert(t, err.Error(), qt.Contains, "no roster found")
}

func TestProofByRootNonExistentLeaf(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	ref, err := rosterDB.New(uuid.New())
	qt.Assert(t, err, qt.IsNil)

	err = ref.Insert([]byte("existing-voter"), []byte{1})
	qt.Assert(t, err, qt.IsNil)

	proof, err := rosterDB.ProofByRoot(ref.Root(), []byte("missing-voter"))
	qt.Assert(t, proof, qt.IsNil)
	qt.Assert(t, err, qt.ErrorIs, ErrKeyNotFound)
}

func TestProofByRootValid(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	ref, err := rosterDB.New(uuid.New())
	qt.Assert(t, err, qt.IsNil)

	leafKey := []byte("voter-key")
	value := []byte{42}
	err = ref.Insert(leafKey, value)
	qt.Assert(t, err, qt.IsNil)

	proof, err := rosterDB.ProofByRoot(ref.Root(), leafKey)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, proof, qt.Not(qt.IsNil))
	qt.Assert(t, []byte(proof.Key), qt.DeepEquals, leafKey)
	qt.Assert(t, []byte(proof.Value), qt.DeepEquals, value)
}

func TestVerifyRosterProof(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	ref, err := rosterDB.New(uuid.New())
	qt.Assert(t, err, qt.IsNil)

	err = ref.Insert([]byte("voter-key"), []byte{1})
	qt.Assert(t, err, qt.IsNil)

	proof, err := rosterDB.ProofByRoot(ref.Root(), []byte("voter-key"))
	qt.Assert(t, err, qt.IsNil)

	qt.Assert(t, rosterDB.VerifyProof(proof), qt.IsTrue)

	// A tampered value must not verify.
	proof.Value = []byte{2}
	qt.Assert(t, rosterDB.VerifyProof(proof), qt.IsFalse)
}

func TestRootIndexFollowsInsertions(t *testing.T) {
	t.Parallel()
	rosterDB := NewRosterDB(newDatabase(t))
	ref, err := rosterDB.New(uuid.New())
	qt.Assert(t, err, qt.IsNil)

	for i := 0; i < 10; i++ {
		err := ref.Insert([]byte(fmt.Sprintf("voter-%d", i)), []byte{byte(i)})
		qt.Assert(t, err, qt.IsNil)
	}

	// The index must answer for the latest root.
	size, err := rosterDB.SizeByRoot(ref.Root())
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, size, qt.Equals, 10)

	proof, err := rosterDB.ProofByRoot(ref.Root(), []byte("voter-7"))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, proof, qt.Not(qt.IsNil))
}
