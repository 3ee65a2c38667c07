package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/constitutional-platform/voting-registry/storage"
	"github.com/constitutional-platform/voting-registry/types"
	"github.com/constitutional-platform/voting-registry/util"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
)

// captureSink records delivered events and can be told to fail the first n
// deliveries to exercise the retry path.
type captureSink struct {
	mu       sync.Mutex
	events   []*storage.Event
	failures int
}

func (s *captureSink) Deliver(_ context.Context, ev *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("sink unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEventDispatcher(t *testing.T) {
	c := qt.New(t)

	stg := storage.New(memdb.New())
	defer stg.Close()

	sessionID := types.HexBytes(util.RandomBytes(types.SessionIDLen))
	for i := 0; i < 3; i++ {
		err := stg.PushEvent(&storage.Event{
			Type:      storage.EventSessionCreated,
			SessionID: sessionID,
			Timestamp: time.Now(),
		})
		c.Assert(err, qt.IsNil)
	}
	c.Assert(stg.CountEvents(), qt.Equals, 3)

	sink := &captureSink{}
	dispatcher := NewEventDispatcher(stg, 50*time.Millisecond, sink)

	ctx := context.Background()
	c.Assert(dispatcher.Start(ctx), qt.IsNil)
	defer dispatcher.Stop()
	c.Assert(dispatcher.Start(ctx), qt.ErrorMatches, "service already running")

	// Wait for the outbox to drain.
	deadline := time.Now().Add(5 * time.Second)
	for stg.CountEvents() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	c.Assert(stg.CountEvents(), qt.Equals, 0)
	c.Assert(sink.delivered(), qt.Equals, 3)
}

func TestEventDispatcherRetries(t *testing.T) {
	c := qt.New(t)

	stg := storage.New(memdb.New())
	defer stg.Close()

	err := stg.PushEvent(&storage.Event{
		Type:      storage.EventSessionFinalized,
		SessionID: util.RandomBytes(types.SessionIDLen),
		Timestamp: time.Now(),
	})
	c.Assert(err, qt.IsNil)

	// The first delivery fails; the event must be released and retried.
	sink := &captureSink{failures: 1}
	dispatcher := NewEventDispatcher(stg, 50*time.Millisecond, sink)
	c.Assert(dispatcher.Start(context.Background()), qt.IsNil)
	defer dispatcher.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for sink.delivered() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	c.Assert(sink.delivered(), qt.Equals, 1)
	c.Assert(stg.CountEvents(), qt.Equals, 0)
}
