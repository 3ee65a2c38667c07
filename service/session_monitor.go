package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/constitutional-platform/voting-registry/storage"
	"github.com/constitutional-platform/voting-registry/types"
	"go.vocdoni.io/dvote/log"
)

// SessionMonitor periodically scans the stored sessions and logs lifecycle
// transitions: voting windows opening, windows closing with pending reveals,
// and ended sessions awaiting finalization.
type SessionMonitor struct {
	storage  *storage.Storage
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc

	// lastStatus remembers the status seen per session so transitions are
	// only reported once.
	lastStatus map[string]types.SessionStatus
}

// NewSessionMonitor creates a new SessionMonitor service.
func NewSessionMonitor(stg *storage.Storage, interval time.Duration) *SessionMonitor {
	return &SessionMonitor{
		storage:    stg,
		interval:   interval,
		lastStatus: make(map[string]types.SessionStatus),
	}
}

// Start begins monitoring session lifecycle transitions. It returns an error
// if the service is already running.
func (sm *SessionMonitor) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	sm.cancel = cancel

	go sm.monitorSessions(ctx)
	return nil
}

// Stop halts the monitoring service.
func (sm *SessionMonitor) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.cancel != nil {
		sm.cancel()
		sm.cancel = nil
	}
}

func (sm *SessionMonitor) monitorSessions(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.scan()
		}
	}
}

func (sm *SessionMonitor) scan() {
	ids, err := sm.storage.ListSessions()
	if err != nil {
		log.Warnw("failed to list sessions", "error", err.Error())
		return
	}
	now := time.Now()
	for _, id := range ids {
		session, err := sm.storage.Session(id)
		if err != nil {
			log.Warnw("failed to load session", "sessionId", id.String(), "error", err.Error())
			continue
		}
		status := session.Status(now)
		key := id.String()
		if sm.lastStatus[key] == status {
			continue
		}
		sm.lastStatus[key] = status
		switch status {
		case types.SessionActive:
			log.Infow("voting window open", "sessionId", key, "end", session.EndTime.Unix())
		case types.SessionEnded:
			log.Infow("voting window closed",
				"sessionId", key,
				"commitments", sm.storage.CountCommitments(id),
				"pendingReveals", sm.storage.PendingReveals(id))
		case types.SessionFinalized:
			log.Infow("session finalized", "sessionId", key, "root", session.MerkleRoot.String())
		}
	}
}
