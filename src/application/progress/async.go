package progress

import "sync"

var _ Sink = &AsyncSink{}

// AsyncSink decouples the emitter from a slow sink. Accept only queues the
// event; a single goroutine delivers queued events to the inner sink in the
// order they were accepted. The queue is unbounded so Accept never blocks.
type AsyncSink struct {
	inner Sink

	mutex   sync.Mutex
	queue   []Event
	closed  bool
	wake    chan struct{}
	drained chan struct{}
}

func NewAsyncSink(inner Sink) *AsyncSink {
	a := &AsyncSink{
		inner:   inner,
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}

	go a.deliver()

	return a
}

func (a *AsyncSink) Accept(event Event) {
	a.mutex.Lock()
	if a.closed {
		a.mutex.Unlock()
		return
	}
	a.queue = append(a.queue, event)
	a.mutex.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting events and waits until everything already accepted
// has been delivered.
func (a *AsyncSink) Close() {
	a.mutex.Lock()
	alreadyClosed := a.closed
	a.closed = true
	a.mutex.Unlock()

	if !alreadyClosed {
		select {
		case a.wake <- struct{}{}:
		default:
		}
	}

	<-a.drained
}

func (a *AsyncSink) deliver() {
	defer close(a.drained)

	for {
		a.mutex.Lock()
		pending := a.queue
		a.queue = nil
		closed := a.closed
		a.mutex.Unlock()

		for _, event := range pending {
			a.inner.Accept(event)
		}

		if len(pending) > 0 {
			continue
		}

		if closed {
			return
		}

		<-a.wake
	}
}
