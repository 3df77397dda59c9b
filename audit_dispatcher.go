package crestauth

import (
	"context"
	"sync/atomic"
)

// auditDispatcher decouples engine flows from the sink: Emit enqueues,
// a single goroutine delivers in order. Close stops intake, flushes
// whatever is queued, and returns once the last event reached the sink.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	quit       chan struct{}
	drained    chan struct{}
	dropIfFull bool
	dropped    atomic.Uint64
	stopping   atomic.Bool
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, buffer),
		quit:       make(chan struct{}),
		drained:    make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.drained)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			for len(d.queue) > 0 {
				d.sink.Emit(context.Background(), <-d.queue)
			}
			return
		}
	}
}

// Emit enqueues an event. With DropIfFull set, a full buffer sheds the
// event and bumps the drop counter instead of blocking the caller.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.stopping.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	if !d.stopping.Swap(true) {
		close(d.quit)
	}
	<-d.drained
}

// Dropped reports how many events were shed since startup.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
