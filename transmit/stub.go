package transmit

import (
	"bytes"
	"io"
	"sync"
)

// StubTransport is an in-memory Transport for tests. Reads are served
// from scripted input; writes are recorded in order.
type StubTransport struct {
	mu     sync.Mutex
	input  bytes.Buffer
	Writes [][]byte
	// WriteErr, when set, fails the next write.
	WriteErr error
	Closed   bool
}

// NewStubTransport creates a StubTransport.
func NewStubTransport() *StubTransport {
	return &StubTransport{}
}

// Script appends bytes to be returned by subsequent reads.
func (t *StubTransport) Script(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input.Write(data)
}

// Read implements Transport.
func (t *StubTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.input.Len() == 0 {
		return 0, io.EOF
	}
	return t.input.Read(p)
}

// Write implements Transport, recording each write as an owned copy.
func (t *StubTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.WriteErr != nil {
		err := t.WriteErr
		return 0, err
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	t.Writes = append(t.Writes, buf)
	return len(p), nil
}

// Close implements Transport.
func (t *StubTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}

// Written returns the concatenation of all recorded writes.
func (t *StubTransport) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []byte
	for _, w := range t.Writes {
		out = append(out, w...)
	}
	return out
}

// Verify StubTransport implements Transport.
var _ Transport = (*StubTransport)(nil)
