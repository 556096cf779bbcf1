package server

import (
	"sync"

	"manualpilot/drawsrv/internal/protocol"
)

// outbox is the unbounded queue between the session and a connection's writer.
type outbox struct {
	mu      sync.Mutex
	queue   []protocol.Message
	wake    chan struct{}
	closing bool
	closed  bool
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// push queues msg. Messages pushed after close or closeWhenReady are dropped.
func (o *outbox) push(msg protocol.Message) {
	o.mu.Lock()
	if o.closing || o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, msg)
	o.mu.Unlock()
	o.signal()
}

// closeWhenReady lets the writer flush what is queued and then hang up.
func (o *outbox) closeWhenReady() {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()
	o.signal()
}

// close discards everything queued.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.queue = nil
	o.mu.Unlock()
	o.signal()
}

// next blocks until there is work for the writer. done reports that the
// connection should be closed once msgs are written.
func (o *outbox) next() (msgs []protocol.Message, done bool) {
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, true
		}
		if len(o.queue) > 0 || o.closing {
			msgs, o.queue = o.queue, nil
			done = o.closing
			o.mu.Unlock()
			return msgs, done
		}
		o.mu.Unlock()
		<-o.wake
	}
}

