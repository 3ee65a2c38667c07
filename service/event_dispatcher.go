package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/constitutional-platform/voting-registry/storage"
	"go.vocdoni.io/dvote/log"
)

// EventSink receives registry events drained from the storage outbox.
// Deliver must be idempotent: a crash between delivery and acknowledgement
// means the same event may be delivered again.
type EventSink interface {
	Deliver(ctx context.Context, ev *storage.Event) error
}

// EventDispatcher drains the storage event outbox and fans events out to the
// configured sinks. Events are reserved while in flight; a failed delivery
// releases the reservation so the event is retried on a later pass.
type EventDispatcher struct {
	storage  *storage.Storage
	sinks    []EventSink
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewEventDispatcher creates a new EventDispatcher service.
func NewEventDispatcher(stg *storage.Storage, interval time.Duration, sinks ...EventSink) *EventDispatcher {
	return &EventDispatcher{
		storage:  stg,
		sinks:    sinks,
		interval: interval,
	}
}

// Start begins draining the event outbox. It returns an error if the service
// is already running.
func (ed *EventDispatcher) Start(ctx context.Context) error {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	ed.cancel = cancel

	go ed.dispatchLoop(ctx)
	return nil
}

// Stop halts the dispatcher.
func (ed *EventDispatcher) Stop() {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.cancel != nil {
		ed.cancel()
		ed.cancel = nil
	}
}

func (ed *EventDispatcher) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(ed.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ed.drain(ctx)
		}
	}
}

// drain dispatches every pending event until the outbox is empty.
func (ed *EventDispatcher) drain(ctx context.Context) {
	for {
		ev, key, err := ed.storage.NextEvent()
		if err != nil {
			if err != storage.ErrNoMoreElements {
				log.Warnw("failed to fetch next event", "error", err.Error())
			}
			return
		}
		if err := ed.deliver(ctx, ev); err != nil {
			log.Warnw("event delivery failed, will retry", "type", string(ev.Type), "error", err.Error())
			if err := ed.storage.ReleaseEvent(key); err != nil {
				log.Warnw("failed to release event", "error", err.Error())
			}
			return
		}
		if err := ed.storage.MarkEventDone(key); err != nil {
			log.Warnw("failed to mark event done", "error", err.Error())
			return
		}
	}
}

func (ed *EventDispatcher) deliver(ctx context.Context, ev *storage.Event) error {
	for _, sink := range ed.sinks {
		if err := sink.Deliver(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// LogSink is an EventSink that writes events to the structured log. It is
// the default sink when no external indexer is configured.
type LogSink struct{}

// Deliver implements the EventSink interface.
func (LogSink) Deliver(_ context.Context, ev *storage.Event) error {
	log.Infow("registry event",
		"type", string(ev.Type),
		"sessionId", ev.SessionID.String(),
		"timestamp", ev.Timestamp.Unix())
	return nil
}
