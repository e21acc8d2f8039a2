package hub

import "sync"

// Queue is a buffered Member. Transports drain C() and write to the wire.
type Queue struct {
	id     string
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewQueue creates a queue holding at most size pending messages.
func NewQueue(id string, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{id: id, ch: make(chan Message, size)}
}

func (q *Queue) ID() string { return q.id }

// Send enqueues msg without blocking.
func (q *Queue) Send(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrMemberClosed
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// C is the receive side of the queue. It is closed by Close.
func (q *Queue) C() <-chan Message { return q.ch }

// Close stops accepting messages. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
