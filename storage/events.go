package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/constitutional-platform/voting-registry/types"
	"github.com/constitutional-platform/voting-registry/util"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// EventType identifies the kind of registry event stored in the outbox.
type EventType string

const (
	EventSessionCreated         EventType = "sessionCreated"
	EventSessionFinalized       EventType = "sessionFinalized"
	EventEligibilityRootUpdated EventType = "eligibilityRootUpdated"
)

// Event is an outbox entry carrying the full before/after context of a
// registry mutation, so off-chain indexers never need to query back.
type Event struct {
	Type       EventType      `json:"type"                 cbor:"0,keyasint"`
	SessionID  types.HexBytes `json:"sessionId,omitempty"  cbor:"1,keyasint,omitempty"`
	BillHash   types.HexBytes `json:"billHash,omitempty"   cbor:"2,keyasint,omitempty"`
	StartTime  time.Time      `json:"startTime,omitempty"  cbor:"3,keyasint,omitempty"`
	EndTime    time.Time      `json:"endTime,omitempty"    cbor:"4,keyasint,omitempty"`
	OldRoot    types.HexBytes `json:"oldRoot,omitempty"    cbor:"5,keyasint,omitempty"`
	NewRoot    types.HexBytes `json:"newRoot,omitempty"    cbor:"6,keyasint,omitempty"`
	MerkleRoot types.HexBytes `json:"merkleRoot,omitempty" cbor:"7,keyasint,omitempty"`
	Tally      *types.Tally   `json:"tally,omitempty"      cbor:"8,keyasint,omitempty"`
	Timestamp  time.Time      `json:"timestamp"            cbor:"9,keyasint"`
}

// pushEventTx writes an event into the outbox inside an open write
// transaction, so the event lands (or not) together with the mutation that
// produced it.
func pushEventTx(wTx db.WriteTx, ev *Event) error {
	val, err := encodeArtifact(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	// random suffix so identical payloads never collide
	key := append(hashKey(val), util.RandomBytes(4)...)
	return prefixeddb.NewPrefixedWriteTx(wTx, eventPrefix).Set(key, val)
}

// PushEvent stores a new event into the outbox queue.
func (s *Storage) PushEvent(ev *Event) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := pushEventTx(wTx, ev); err != nil {
		return err
	}
	return wTx.Commit()
}

// NextEvent returns the next non-reserved event, creates a reservation, and
// returns it along with the key used to mark it done or release it. If no
// events are available, returns ErrNoMoreElements.
func (s *Storage) NextEvent() (*Event, []byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	pr := prefixeddb.NewPrefixedReader(s.db, eventPrefix)
	var chosenKey, chosenVal []byte
	if err := pr.Iterate(nil, func(k, v []byte) bool {
		if s.isReserved(eventReservPrefix, k) {
			return true
		}
		chosenKey = append([]byte{}, k...)
		chosenVal = append([]byte{}, v...)
		return false
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate events: %w", err)
	}
	if chosenVal == nil {
		return nil, nil, ErrNoMoreElements
	}

	var ev Event
	if err := decodeArtifact(chosenVal, &ev); err != nil {
		return nil, nil, fmt.Errorf("decode event: %w", err)
	}

	if err := s.setReservation(eventReservPrefix, chosenKey); err != nil {
		return nil, nil, ErrNoMoreElements
	}
	return &ev, chosenKey, nil
}

// MarkEventDone removes the reservation and the event from the outbox.
func (s *Storage) MarkEventDone(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(eventReservPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete event reservation: %w", err)
	}
	if err := s.deleteArtifact(eventPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ReleaseEvent removes only the reservation, so a failed dispatch is
// retried later.
func (s *Storage) ReleaseEvent(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(eventReservPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete event reservation: %w", err)
	}
	return nil
}

// CountEvents returns the number of events waiting in the outbox, reserved
// ones included.
func (s *Storage) CountEvents() int {
	rd := prefixeddb.NewPrefixedReader(s.db, eventPrefix)
	count := 0
	if err := rd.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0
	}
	return count
}
