// Package transmit provides the ordered outbound path to the serial
// transport.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrQueueClosed is returned by Submit after Close. Nothing may reach
// the transport once the session is finalized.
var ErrQueueClosed = errors.New("transmit queue closed")

// Transport is the duplex byte channel collaborator. The core treats it
// as ordered and reliable; it never reopens, reconfigures, or retries
// at this layer.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Queue serializes outbound writes. Byte sequences reach the transport
// in submission order; callers treat Submit as fallible, never as a
// silent drop.
type Queue struct {
	mu        sync.Mutex
	transport Transport
	closed    bool
	submitted int64
}

// NewQueue creates a Queue over a transport.
func NewQueue(t Transport) *Queue {
	return &Queue{transport: t}
}

// Submit writes data to the transport. Blocks while an earlier
// submission is in flight; the transport sees whole messages in order.
func (q *Queue) Submit(ctx context.Context, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for off := 0; off < len(data); {
		n, err := q.transport.Write(data[off:])
		if err != nil {
			return fmt.Errorf("transport write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("transport write stalled at offset %d", off)
		}
		off += n
	}
	q.submitted++
	return nil
}

// Submitted returns the number of completed submissions.
func (q *Queue) Submitted() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// Close rejects further submissions. The transport itself is closed by
// its owner, not here.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
