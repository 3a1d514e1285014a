package tokenward

import (
	"context"
	"sync"
)

// auditDispatcher decouples keeper operations from sink latency. Events
// are handed to a buffered channel and delivered by a single goroutine;
// when the buffer is full, drops are accounted per event type so a host
// can tell whether it is losing validate noise or refresh failures.
type auditDispatcher struct {
	cfg  AuditConfig
	sink AuditSink
	ch   chan AuditEvent
	done chan struct{}
	wg   sync.WaitGroup

	mu               sync.Mutex
	closed           bool
	dropped          uint64
	droppedByType    map[string]uint64
	lastDroppedState string
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:           cfg,
		sink:          sink,
		ch:            make(chan AuditEvent, cfg.BufferSize),
		done:          make(chan struct{}),
		droppedByType: make(map[string]uint64),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

// drain flushes whatever Close raced into the buffer. Emitters observe
// the closed flag before writing, so the channel quiesces here.
func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit enqueues event for asynchronous delivery. With DropIfFull set the
// call never blocks; the drop is charged against the event's type and
// the lifecycle state it carried is remembered for diagnostics.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.noteDrop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

func (d *auditDispatcher) noteDrop(event AuditEvent) {
	d.mu.Lock()
	d.dropped++
	d.droppedByType[event.EventType]++
	d.lastDroppedState = event.State
	d.mu.Unlock()
}

// Close stops the delivery goroutine after flushing buffered events.
// Safe to call more than once; Emit after Close is a no-op.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}

// Dropped reports the total number of events lost to backpressure.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// DroppedEvents returns per-event-type drop counts.
func (d *auditDispatcher) DroppedEvents() map[string]uint64 {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.droppedByType) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(d.droppedByType))
	for eventType, count := range d.droppedByType {
		out[eventType] = count
	}
	return out
}

// LastDroppedState reports the lifecycle state carried by the most
// recently dropped event, or "" when nothing has been dropped.
func (d *auditDispatcher) LastDroppedState() string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastDroppedState
}
