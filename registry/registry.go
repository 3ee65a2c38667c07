// Package registry implements the commit/reveal voting session lifecycle:
// role-gated session creation, time-windowed vote commitments gated by
// eligibility proofs, post-window reveals that populate the tallies, and a
// one-shot finalization that publishes a Merkle root over the revealed
// votes. All mutations are blockable via a global pause switch and leave
// state unchanged on failure.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/constitutional-platform/voting-registry/storage"
	"github.com/constitutional-platform/voting-registry/types"
	"github.com/constitutional-platform/voting-registry/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/log"
)

var (
	ErrSessionAlreadyExists = fmt.Errorf("session already exists")
	ErrInvalidDuration      = fmt.Errorf("voting window below minimum duration")
	ErrSessionNotFound      = fmt.Errorf("session not found")
	ErrVotingNotStarted     = fmt.Errorf("voting not started")
	ErrVotingEnded          = fmt.Errorf("voting ended")
	ErrSessionNotEnded      = fmt.Errorf("voting window still open")
	ErrSessionFinalized     = fmt.Errorf("session already finalized")
	ErrDuplicateCommitment  = fmt.Errorf("voter already committed in this session")
	ErrCommitmentNotFound   = fmt.Errorf("no commitment found for voter")
	ErrAlreadyRevealed      = fmt.Errorf("vote already revealed")
	ErrInvalidReveal        = fmt.Errorf("reveal does not match stored commitment")
	ErrInvalidSessionID     = fmt.Errorf("invalid session id")
	ErrInvalidBillHash      = fmt.Errorf("invalid bill hash")
	ErrInvalidCommitment    = fmt.Errorf("invalid commitment")
	ErrNotAuthorized        = fmt.Errorf("caller lacks the required role")
	ErrRegistryPaused       = fmt.Errorf("registry is paused")
)

// TimeSource returns the current time. Injected so tests can drive the
// voting window deterministically.
type TimeSource func() time.Time

// Options tunes a Registry beyond its required collaborators.
type Options struct {
	// Quorum is the participation rate (revealed votes over roster size)
	// required for QuorumMet in session summaries. Zero disables the check.
	Quorum float64
	// Now overrides the time source. Defaults to time.Now.
	Now TimeSource
}

// Registry owns the voting session lifecycle. All mutating operations check
// the pause switch first and serialize through the storage layer, so a
// failed call never leaves a partial write behind.
type Registry struct {
	stg         *storage.Storage
	access      *AccessControl
	eligibility *verifier.Eligibility
	quorum      float64
	now         TimeSource
}

// New creates a Registry over the given storage, access control state and
// eligibility verifier.
func New(stg *storage.Storage, access *AccessControl, elig *verifier.Eligibility, opts Options) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		stg:         stg,
		access:      access,
		eligibility: elig,
		quorum:      opts.Quorum,
		now:         now,
	}
}

// Access returns the registry's access control state.
func (r *Registry) Access() *AccessControl {
	return r.access
}

// CommitmentDigest computes the commitment hash a voter submits during the
// voting window and later opens with RevealVote.
func CommitmentDigest(sessionID types.HexBytes, voter common.Address, choice types.VoteChoice, secret []byte) types.HexBytes {
	return crypto.Keccak256(sessionID, voter.Bytes(), []byte{byte(choice)}, secret)
}

// CreateSession registers a new voting session. The caller must hold the
// registrar role, the session ID must be unused and the window must span at
// least the protocol minimum duration.
func (r *Registry) CreateSession(caller common.Address, id, billHash types.HexBytes, start, end time.Time) error {
	if r.access.Paused() {
		return ErrRegistryPaused
	}
	if !r.access.HasRole(caller, RoleRegistrar) {
		return ErrNotAuthorized
	}
	if len(id) != types.SessionIDLen {
		return ErrInvalidSessionID
	}
	if len(billHash) != types.BillHashLen {
		return ErrInvalidBillHash
	}
	if end.Sub(start) < types.MinSessionDuration {
		return ErrInvalidDuration
	}

	session := &types.VotingSession{
		ID:        id,
		BillHash:  billHash,
		StartTime: start,
		EndTime:   end,
	}
	// The session record and its outbox event commit together.
	if err := r.stg.CreateSession(session, &storage.Event{
		Type:      storage.EventSessionCreated,
		SessionID: id,
		BillHash:  billHash,
		StartTime: start,
		EndTime:   end,
		Timestamp: r.now(),
	}); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrSessionAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	log.Infow("session created", "sessionId", id.String(), "billHash", billHash.String(),
		"start", start.Unix(), "end", end.Unix())
	return nil
}

// Session returns the stored session record. Reads work while paused.
func (r *Registry) Session(id types.HexBytes) (*types.VotingSession, error) {
	session, err := r.stg.Session(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// CommitVote records a hidden vote commitment. The voter must present an
// eligibility proof against the published root; the proof's leaf key is the
// dedup key, so each eligible voter commits at most once per session.
func (r *Registry) CommitVote(sessionID, commitment types.HexBytes, rawProof []byte) error {
	if r.access.Paused() {
		return ErrRegistryPaused
	}
	if len(commitment) != types.CommitmentLen {
		return ErrInvalidCommitment
	}
	session, err := r.Session(sessionID)
	if err != nil {
		return err
	}
	if session.Finalized {
		return ErrSessionFinalized
	}
	now := r.now()
	if now.Before(session.StartTime) {
		return ErrVotingNotStarted
	}
	if !now.Before(session.EndTime) {
		return ErrVotingEnded
	}
	if err := r.eligibility.Verify(rawProof); err != nil {
		return err
	}
	proof, err := verifier.DecodeEligibilityProof(rawProof)
	if err != nil {
		return fmt.Errorf("%w: %v", verifier.ErrInvalidProof, err)
	}

	if err := r.stg.SetCommitment(&types.VoteCommitment{
		SessionID:  sessionID,
		VoterKey:   proof.Key,
		Commitment: commitment,
		CreatedAt:  now,
	}); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrDuplicateCommitment
		}
		return fmt.Errorf("store commitment: %w", err)
	}
	log.Debugw("vote committed", "sessionId", sessionID.String(), "voterKey", proof.Key.String())
	return nil
}

// RevealVote opens a commitment after the voting window closes and adds the
// choice to the session tally. The (choice, secret) pair must reproduce the
// stored commitment hash.
func (r *Registry) RevealVote(sessionID types.HexBytes, voter common.Address, choice types.VoteChoice, secret []byte) error {
	if r.access.Paused() {
		return ErrRegistryPaused
	}
	if !choice.Valid() {
		return ErrInvalidReveal
	}
	session, err := r.Session(sessionID)
	if err != nil {
		return err
	}
	if session.Finalized {
		return ErrSessionFinalized
	}
	now := r.now()
	if now.Before(session.EndTime) {
		return ErrSessionNotEnded
	}

	voterKey := r.stg.RosterDB().HashAndTrunkKey(voter.Bytes())
	cm, err := r.stg.Commitment(sessionID, voterKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCommitmentNotFound
		}
		return err
	}
	expected := CommitmentDigest(sessionID, voter, choice, secret)
	if !bytes.Equal(cm.Commitment, expected) {
		return ErrInvalidReveal
	}

	// The reveal record and the tally increment commit in one transaction,
	// so the stored tally always matches the reveal ledger.
	if err := r.stg.ApplyReveal(&types.VoteReveal{
		SessionID:  sessionID,
		VoterKey:   voterKey,
		Choice:     choice,
		RevealedAt: now,
	}, func(s *types.VotingSession) error {
		s.Tally.Add(choice)
		return nil
	}); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrAlreadyRevealed
		}
		return fmt.Errorf("store reveal: %w", err)
	}
	log.Debugw("vote revealed", "sessionId", sessionID.String(), "choice", choice.String())
	return nil
}

// FinalizeSession closes a session for good. It builds a Merkle root over
// every revealed vote, stores it on the session record and marks the session
// finalized. A session can only be finalized once, after its voting window.
func (r *Registry) FinalizeSession(caller common.Address, sessionID types.HexBytes) (types.HexBytes, error) {
	if r.access.Paused() {
		return nil, ErrRegistryPaused
	}
	if !r.access.HasRole(caller, RoleRegistrar) {
		return nil, ErrNotAuthorized
	}
	session, err := r.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finalized {
		return nil, ErrSessionFinalized
	}
	if r.now().Before(session.EndTime) {
		return nil, ErrSessionNotEnded
	}

	reveals, err := r.stg.ListReveals(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list reveals: %w", err)
	}
	root, err := revealTreeRoot(reveals)
	if err != nil {
		return nil, fmt.Errorf("build reveal tree: %w", err)
	}

	// The finalized record and its outbox event commit together; the event
	// tally is filled inside the update so it reflects the stored state.
	var tally types.Tally
	ev := &storage.Event{
		Type:       storage.EventSessionFinalized,
		SessionID:  sessionID,
		MerkleRoot: root,
		Timestamp:  r.now(),
	}
	if err := r.stg.UpdateSession(sessionID, func(s *types.VotingSession) error {
		if s.Finalized {
			return ErrSessionFinalized
		}
		s.Finalized = true
		s.MerkleRoot = root
		tally = s.Tally
		ev.Tally = &tally
		return nil
	}, ev); err != nil {
		return nil, err
	}
	log.Infow("session finalized", "sessionId", sessionID.String(), "root", root.String(),
		"yes", tally.Yes, "no", tally.No, "abstain", tally.Abstain)
	return root, nil
}

// revealTreeRoot builds an in-memory Merkle tree over the revealed votes,
// one leaf per voter key, and returns its root. An empty reveal set yields
// the empty tree root.
func revealTreeRoot(reveals []*types.VoteReveal) (types.HexBytes, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     memdb.New(),
		MaxLevels:    types.EligibilityTreeMaxLevels,
		HashFunction: arbo.HashFunctionBlake2b,
	})
	if err != nil {
		return nil, err
	}
	for _, rv := range reveals {
		if err := tree.Add(rv.VoterKey, []byte{byte(rv.Choice)}); err != nil {
			return nil, fmt.Errorf("add reveal leaf: %w", err)
		}
	}
	return tree.Root()
}

// SetEligibilityRoot replaces the published eligibility root. Admin only.
// The old and new roots are emitted together for off-chain indexers.
func (r *Registry) SetEligibilityRoot(caller common.Address, newRoot types.HexBytes) error {
	if r.access.Paused() {
		return ErrRegistryPaused
	}
	if !r.access.HasRole(caller, RoleAdmin) {
		return ErrNotAuthorized
	}
	// Persist first; the in-memory root only moves once the new root and
	// its event are durable.
	oldRoot := r.eligibility.Root()
	if err := r.stg.SetEligibilityRoot(newRoot, &storage.Event{
		Type:      storage.EventEligibilityRootUpdated,
		OldRoot:   oldRoot,
		NewRoot:   newRoot,
		Timestamp: r.now(),
	}); err != nil {
		return fmt.Errorf("persist eligibility root: %w", err)
	}
	r.eligibility.SetRoot(newRoot)
	log.Infow("eligibility root updated", "old", oldRoot.String(), "new", newRoot.String())
	return nil
}

// EligibilityRoot returns the currently published eligibility root.
func (r *Registry) EligibilityRoot() types.HexBytes {
	return r.eligibility.Root()
}

// Pause blocks all mutating operations. Admin only.
func (r *Registry) Pause(caller common.Address) error {
	return r.access.Pause(caller)
}

// Unpause re-enables mutating operations. Admin only.
func (r *Registry) Unpause(caller common.Address) error {
	return r.access.Unpause(caller)
}

// Paused reports the pause switch state.
func (r *Registry) Paused() bool {
	return r.access.Paused()
}

// SessionSummary is the read model of a session: the stored record plus the
// ledger counters and participation figures derived from it.
type SessionSummary struct {
	Session       *types.VotingSession `json:"session"`
	Status        types.SessionStatus  `json:"status"`
	Commitments   int                  `json:"commitments"`
	Reveals       int                  `json:"reveals"`
	Pending       int                  `json:"pendingReveals"`
	RosterSize    int                  `json:"rosterSize,omitempty"`
	Participation float64              `json:"participationRate"`
	QuorumMet     bool                 `json:"quorumMet"`
}

// Summary returns the full read model of a session.
func (r *Registry) Summary(sessionID types.HexBytes) (*SessionSummary, error) {
	session, err := r.Session(sessionID)
	if err != nil {
		return nil, err
	}
	sum := &SessionSummary{
		Session:     session,
		Status:      session.Status(r.now()),
		Commitments: r.stg.CountCommitments(sessionID),
		Reveals:     r.stg.CountReveals(sessionID),
		Pending:     r.stg.PendingReveals(sessionID),
	}
	if size, err := r.stg.RosterDB().SizeByRoot(r.eligibility.Root()); err == nil && size > 0 {
		sum.RosterSize = size
		sum.Participation = float64(sum.Reveals) / float64(size)
		sum.QuorumMet = r.quorum > 0 && sum.Participation >= r.quorum
	}
	return sum, nil
}
