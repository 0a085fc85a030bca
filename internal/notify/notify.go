//go:generate go run go.uber.org/mock/mockgen -source=notify.go -destination=../mocks/mock_notify.go -package=mocks
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skillswap/exchange-api/internal/models"
)

// EventSink consumes session-end events. Rating, analytics and the realtime
// gateway each register one.
type EventSink interface {
	Consume(ctx context.Context, evt models.SessionEndedEvent) error
}

// INotifier publishes session-end events.
type INotifier interface {
	SessionEnded(evt models.SessionEndedEvent)
}

// DefaultEnqueueTimeout bounds how long SessionEnded waits for room in a
// full queue.
const DefaultEnqueueTimeout = 5 * time.Second

// Dispatcher fans session-end events out to every sink from a single worker.
//
// Every accepted event is delivered: SessionEnded blocks while the queue is
// full and Run keeps draining until Close. A slow sink is cut off after the
// sink timeout and sink errors are only logged.
type Dispatcher struct {
	log            *slog.Logger
	sinks          []EventSink
	events         chan models.SessionEndedEvent
	sinkTimeout    time.Duration
	enqueueTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(log *slog.Logger, bufferSize int, sinkTimeout time.Duration, sinks ...EventSink) *Dispatcher {
	return &Dispatcher{
		log:            log,
		sinks:          sinks,
		events:         make(chan models.SessionEndedEvent, bufferSize),
		sinkTimeout:    sinkTimeout,
		enqueueTimeout: DefaultEnqueueTimeout,
		done:           make(chan struct{}),
	}
}

// Add registers more sinks. It must be called before Run.
func (d *Dispatcher) Add(sinks ...EventSink) *Dispatcher {
	d.sinks = append(d.sinks, sinks...)
	return d
}

// WithEnqueueTimeout overrides DefaultEnqueueTimeout. It must be called before Run.
func (d *Dispatcher) WithEnqueueTimeout(timeout time.Duration) *Dispatcher {
	d.enqueueTimeout = timeout
	return d
}

// SessionEnded queues evt, waiting up to the enqueue timeout for room.
func (d *Dispatcher) SessionEnded(evt models.SessionEndedEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Error("notifier closed, session end event lost", "session_id", evt.SessionID)
		return
	}

	select {
	case d.events <- evt:
		return
	default:
	}

	timer := time.NewTimer(d.enqueueTimeout)
	defer timer.Stop()
	select {
	case d.events <- evt:
	case <-timer.C:
		d.log.Error("notifier queue stayed full, session end event lost",
			"session_id", evt.SessionID, "timeout", d.enqueueTimeout)
	}
}

// Run delivers queued events until Close closes the queue. Cancelling ctx
// does not stop it; ctx only parents the per-sink contexts.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	ctx = context.WithoutCancel(ctx)
	for evt := range d.events {
		d.Fanout(ctx, evt)
	}
	d.log.Debug("notifier queue drained")
}

// Fanout delivers evt to every sink in turn.
func (d *Dispatcher) Fanout(ctx context.Context, evt models.SessionEndedEvent) {
	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			d.log.Error("session end sink failed", "session_id", evt.SessionID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until Run has drained the queue.
// Run must have been started.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}
