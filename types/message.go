// Package types defines core domain types for the obcsim pipeline.
package types

import "time"

// FrameKind classifies a scanned frame before message classification.
type FrameKind int

const (
	// FrameUnknown marks a frame the scanner could not bound properly
	// (overflow or unrecoverable buffer state). Always classified Malformed.
	FrameUnknown FrameKind = iota
	// FrameXMLCandidate is a byte run bounded by a top-level XML element.
	FrameXMLCandidate
	// FrameTextLine is a newline-terminated run of printable text.
	FrameTextLine
	// FrameBinaryBlock is a telemetry binary block (length-prefixed or
	// START/END delimited).
	FrameBinaryBlock
)

// String returns the frame kind label.
func (k FrameKind) String() string {
	switch k {
	case FrameXMLCandidate:
		return "xml_candidate"
	case FrameTextLine:
		return "text_line"
	case FrameBinaryBlock:
		return "binary_block"
	default:
		return "unknown"
	}
}

// Frame is one complete protocol unit extracted from the byte stream.
// Seq is assigned at scan time and is strictly monotonic per stream.
// The byte span is owned by the frame; the scanner never reuses it.
type Frame struct {
	Seq  int64
	Kind FrameKind
	// Bytes is the raw frame content, including any framing bytes
	// (START/END markers, length prefix, line terminator).
	Bytes []byte
	// Reason is set for FrameUnknown frames to describe the framing fault.
	Reason string
}

// MessageKind is the classified message type discriminator.
type MessageKind string

// Message kind constants. Command and ack kinds mirror the Zephyr
// top-level XML tags.
const (
	KindCommandS   MessageKind = "command_s"
	KindCommandRA  MessageKind = "command_ra"
	KindCommandTM  MessageKind = "command_tm"
	KindAckS       MessageKind = "ack_s"
	KindAckRA      MessageKind = "ack_ra"
	KindAckTM      MessageKind = "ack_tm"
	KindCRCTrailer MessageKind = "crc_trailer"
	KindDebug      MessageKind = "debug"
	KindTelemetry  MessageKind = "telemetry"
	KindMalformed  MessageKind = "malformed"
)

// Outbound message kinds. These never arrive on the inbound stream;
// they label simulator-built messages in the session record.
const (
	KindIM  MessageKind = "im"
	KindGPS MessageKind = "gps"
	KindSW  MessageKind = "sw"
	KindTC  MessageKind = "tc"
)

// IsCommand returns true for the instrument command kinds (S, RA, TM).
func (k MessageKind) IsCommand() bool {
	return k == KindCommandS || k == KindCommandRA || k == KindCommandTM
}

// IsAck returns true for the acknowledgment kinds.
func (k MessageKind) IsAck() bool {
	return k == KindAckS || k == KindAckRA || k == KindAckTM
}

// AckFor returns the acknowledgment kind matching a command kind.
// The second return is false when k is not a command kind.
func (k MessageKind) AckFor() (MessageKind, bool) {
	switch k {
	case KindCommandS:
		return KindAckS, true
	case KindCommandRA:
		return KindAckRA, true
	case KindCommandTM:
		return KindAckTM, true
	default:
		return "", false
	}
}

// Tag returns the Zephyr XML top-level tag for a command or ack kind.
func (k MessageKind) Tag() string {
	switch k {
	case KindCommandS:
		return "S"
	case KindCommandRA:
		return "RA"
	case KindCommandTM:
		return "TM"
	case KindAckS:
		return "SAck"
	case KindAckRA:
		return "RAAck"
	case KindAckTM:
		return "TMAck"
	default:
		return ""
	}
}

// KindForTag maps a Zephyr XML top-level tag to its message kind.
// The second return is false for unrecognized tags.
func KindForTag(tag string) (MessageKind, bool) {
	switch tag {
	case "S":
		return KindCommandS, true
	case "RA":
		return KindCommandRA, true
	case "TM":
		return KindCommandTM, true
	case "SAck":
		return KindAckS, true
	case "RAAck":
		return KindAckRA, true
	case "TMAck":
		return KindAckTM, true
	case "CRC":
		return KindCRCTrailer, true
	default:
		return "", false
	}
}

// Message is the classified result of exactly one Frame.
// Classification is total: every frame maps to one Message, with
// KindMalformed as the catch-all.
type Message struct {
	// Kind is the message type discriminator.
	Kind MessageKind
	// Seq is carried over from the source frame.
	Seq int64
	// ReceivedAt is the arrival timestamp, stamped at classification.
	ReceivedAt time.Time
	// Raw is the full frame byte span.
	Raw []byte

	// Tag is the XML top-level tag for command/ack/trailer messages.
	Tag string
	// Fields holds the flattened depth-1 child elements of an XML
	// message (Msg, Inst, Mode, Ack, Length, ...).
	Fields map[string]string

	// Text is the debug line content, terminators stripped.
	Text string

	// Payload is the telemetry binary payload with block framing removed.
	Payload []byte

	// Header is the paired TM message text (element and CRC trailer,
	// line terminators included) carried on telemetry messages so the
	// archive file reproduces the received byte sequence.
	Header []byte

	// Reason describes why a message is Malformed, or carries a
	// non-fatal note (e.g. a telemetry CRC mismatch) for other kinds.
	Reason string
}

// Field returns a child element value, or "" when absent.
func (m *Message) Field(name string) string {
	if m.Fields == nil {
		return ""
	}
	return m.Fields[name]
}
