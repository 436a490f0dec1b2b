// Package session provides session-scoped persistence for the link:
// the on-disk archive, the replayable journal, and optional S3 mirroring.
package session

import (
	"context"
	"sync"

	"github.com/stratocore/obcsim/types"
)

// Sink receives every classified message for durable recording.
// Record must complete (or fail) before the message's acknowledgment is
// submitted; implementations must preserve call order.
type Sink interface {
	// Record persists one inbound classified message.
	Record(ctx context.Context, msg *types.Message) error

	// RecordSent persists one outbound message (ack, IM, GPS, TC).
	RecordSent(ctx context.Context, kind types.MessageKind, raw []byte) error

	// Close finalizes the archive. No Record calls after Close.
	Close() error
}

// StubSink records Sink calls for testing without persisting.
type StubSink struct {
	mu       sync.Mutex
	Records  []*types.Message
	Sent     []StubSentRecord
	Closed   bool
	FailWith error
}

// StubSentRecord is a recorded outbound write for testing.
type StubSentRecord struct {
	Kind types.MessageKind
	Raw  []byte
}

// NewStubSink creates a new stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// Record implements Sink by recording the call.
func (s *StubSink) Record(_ context.Context, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.Records = append(s.Records, msg)
	return nil
}

// RecordSent implements Sink by recording the call.
func (s *StubSink) RecordSent(_ context.Context, kind types.MessageKind, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.Sent = append(s.Sent, StubSentRecord{Kind: kind, Raw: append([]byte(nil), raw...)})
	return nil
}

// Close implements Sink.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Verify StubSink implements Sink.
var _ Sink = (*StubSink)(nil)
