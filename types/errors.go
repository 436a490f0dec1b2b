package types

import "fmt"

// SinkError wraps a SessionSink failure. Sink failures are surfaced to
// the caller and logged; they never halt the pipeline.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink write failed: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// TransmitError wraps a TransmitQueue failure. The originating command's
// classification and recording are unaffected by a transmit failure.
type TransmitError struct {
	Err error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("transmit failed: %v", e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// IncompleteAck describes an acknowledgment still awaiting transmission
// when the session closed. Reported as a close-time warning, never fatal.
type IncompleteAck struct {
	// InstanceID is the per-command-occurrence identifier.
	InstanceID string
	// CommandKind is the command kind awaiting acknowledgment.
	CommandKind MessageKind
	// Seq is the sequence number of the originating command frame.
	Seq int64
}

func (a IncompleteAck) String() string {
	return fmt.Sprintf("incomplete ack for %s (seq %d, instance %s)",
		a.CommandKind, a.Seq, a.InstanceID)
}
