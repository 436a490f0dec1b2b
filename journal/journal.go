// Package journal implements the session journal: a replayable record
// of every classified message as length-prefixed msgpack envelopes.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/stratocore/obcsim/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum journal frame size, including the
	// length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Envelope is the journal record for one classified message.
type Envelope struct {
	// Version is the journal format version (types.Version).
	Version string `msgpack:"version"`
	// SessionID is the owning session.
	SessionID string `msgpack:"session_id"`
	// Seq is the frame sequence number.
	Seq int64 `msgpack:"seq"`
	// Kind is the message kind discriminator.
	Kind string `msgpack:"kind"`
	// Ts is the arrival timestamp in RFC 3339 UTC with nanoseconds.
	Ts string `msgpack:"ts"`
	// Raw is the full frame byte span.
	Raw []byte `msgpack:"raw"`
	// Text is the debug line content, when Kind is debug.
	Text string `msgpack:"text,omitempty"`
	// Payload is the telemetry payload, when Kind is telemetry.
	Payload []byte `msgpack:"payload,omitempty"`
	// Header is the paired TM message text, when Kind is telemetry.
	Header []byte `msgpack:"header,omitempty"`
	// Reason carries the malformed reason or a non-fatal note.
	Reason string `msgpack:"reason,omitempty"`
	// Fields holds the flattened XML child elements.
	Fields map[string]string `msgpack:"fields,omitempty"`
	// Outbound marks messages the simulator transmitted.
	Outbound bool `msgpack:"outbound,omitempty"`
}

// NewEnvelope converts a classified message into its journal record.
func NewEnvelope(session types.SessionContext, msg *types.Message) *Envelope {
	return &Envelope{
		Version:   types.Version,
		SessionID: session.SessionID,
		Seq:       msg.Seq,
		Kind:      string(msg.Kind),
		Ts:        msg.ReceivedAt.UTC().Format(time.RFC3339Nano),
		Raw:       msg.Raw,
		Text:      msg.Text,
		Payload:   msg.Payload,
		Header:    msg.Header,
		Reason:    msg.Reason,
		Fields:    msg.Fields,
	}
}

// FrameErrorKind classifies journal frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a journal frame error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err is a *FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == kind
	}
	return false
}

// Writer appends length-prefixed msgpack envelopes to a stream.
// Safe for concurrent use; envelopes are written whole, in call order.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a journal writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Append encodes and writes one envelope.
func (jw *Writer) Append(envelope *Envelope) error {
	payload, err := msgpack.Marshal(envelope)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode envelope", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if _, err := jw.w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	if _, err := jw.w.Write(payload); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	return nil
}

// Reader decodes envelopes from a journal stream.
type Reader struct {
	r io.Reader
}

// NewReader creates a journal reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next reads a single envelope.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more envelopes)
//   - *FrameError with Kind=FrameErrorPartial: truncated journal
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
//   - *FrameError with Kind=FrameErrorDecode: msgpack decoding error
func (jr *Reader) Next() (*Envelope, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(jr.r, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(jr.r, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}

	var envelope Envelope
	if err := msgpack.Unmarshal(payload, &envelope); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode envelope", Err: err}
	}
	return &envelope, nil
}
