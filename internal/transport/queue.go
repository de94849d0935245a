package transport

import (
	"sync"

	"github.com/danmuck/wirelink/internal/wire"
)

// queueItem is one entry in the send queue: an application message, an
// internal control packet, or the close marker.
type queueItem struct {
	msg          wire.Message
	controlType  wire.PacketType // PacketPong replies queued by the read pump
	isClose      bool
	closePayload any
}

// sendQueue is the one shared mutable resource between the public API
// and the write pump. Producers run on arbitrary goroutines; the pump is
// the only consumer. FIFO order is preserved; items pushed after the
// close marker are never written.
type sendQueue struct {
	mu     sync.Mutex
	items  []queueItem
	closed bool

	// notify wakes the write pump; capacity 1 so pushes never block.
	notify chan struct{}
}

func newSendQueue() *sendQueue {
	return &sendQueue{notify: make(chan struct{}, 1)}
}

func (q *sendQueue) push(it queueItem) {
	q.mu.Lock()
	if q.closed {
		// nothing enqueued after the close marker is ever written
		q.mu.Unlock()
		return
	}
	if it.isClose {
		q.closed = true
	}
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *sendQueue) pop() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
