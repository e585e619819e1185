package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples audit emission from the hot path. Events are
// pushed onto a buffered channel and drained by a single goroutine; when the
// buffer is full the event is either dropped (counted) or pushed with
// back-pressure, per configuration.
type auditDispatcher struct {
	sink    AuditSink
	events  chan AuditEvent
	dropped atomic.Uint64

	dropIfFull bool

	closeOnce sync.Once
	done      chan struct{}
	drained   chan struct{}
}

func newAuditDispatcher(sink AuditSink, bufferSize int, dropIfFull bool) *auditDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, bufferSize),
		dropIfFull: dropIfFull,
		done:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.drained)
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// emit queues an event. It never blocks when dropIfFull is set; otherwise it
// applies back-pressure until the consumer catches up or the dispatcher
// shuts down.
func (d *auditDispatcher) emit(event AuditEvent) {
	if d == nil {
		return
	}
	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.events <- event:
	case <-d.done:
		d.dropped.Add(1)
	}
}

// droppedCount returns how many events were discarded because the buffer
// was full.
func (d *auditDispatcher) droppedCount() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// close stops the dispatcher and waits for the queue to drain.
func (d *auditDispatcher) close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
	})
	<-d.drained
}
