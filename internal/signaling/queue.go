package signaling

import (
	"sync"
	"sync/atomic"
)

// sendQueue is a byte-bounded FIFO of outbound WebSocket frames.
//
// Relay handlers enqueue and never block; a slow reader overflows its own
// queue and loses frames. There is no backpressure toward the sender.
type sendQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool

	limit  int
	size   int
	head   int
	frames [][]byte

	drops atomic.Uint64
}

func newSendQueue(limit int) *sendQueue {
	q := &sendQueue{limit: limit}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *sendQueue) DropCount() uint64 {
	return q.drops.Load()
}

// Enqueue appends frame if it fits within the byte budget; otherwise the
// frame is dropped and counted. Never blocks.
func (q *sendQueue) Enqueue(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.size+len(frame) > q.limit {
		q.drops.Add(1)
		return false
	}

	q.frames = append(q.frames, frame)
	q.size += len(frame)
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks until a frame is available or the queue is closed and
// drained.
func (q *sendQueue) Dequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.frames) && !q.closed {
		q.notEmpty.Wait()
	}
	if q.head == len(q.frames) {
		return nil, false
	}

	frame := q.frames[q.head]
	q.frames[q.head] = nil
	q.head++
	q.size -= len(frame)

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 32 && q.head*2 >= len(q.frames) {
		n := copy(q.frames, q.frames[q.head:])
		for i := n; i < len(q.frames); i++ {
			q.frames[i] = nil
		}
		q.frames = q.frames[:n]
		q.head = 0
	}
	return frame, true
}

func (q *sendQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.frames = nil
	q.head = 0
	q.size = 0
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}
