// Package scanner implements incremental frame extraction from the raw
// serial byte stream.
//
// The scanner is fed arbitrarily chunked bytes and emits complete frames
// in stream order: XML candidates (tag-nesting aware), newline-terminated
// text lines, and telemetry binary blocks. Trailing partial data is
// carried over to the next feed; no byte is ever emitted twice.
//
// Frame boundaries depend only on stream content, never on how the
// stream was chunked across Feed calls, so the emitted frame sequence is
// concatenation-invariant.
package scanner

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/stratocore/obcsim/types"
	"github.com/stratocore/obcsim/zephyr"
)

// DefaultMaxFrameLength bounds buffering for a frame with no terminator.
const DefaultMaxFrameLength = 16 * 1024

// Scanner extracts frames from a byte stream. Not safe for concurrent
// use; one scanner serves exactly one stream.
type Scanner struct {
	maxLen int
	buf    []byte
	seq    int64

	// expectDelimited arms one-shot START/END binary framing for the
	// next block. Set via ExpectBinary after a TM element is classified;
	// binary and text share no discriminant byte, so the scanner must be
	// told when the stream switches to delimited binary.
	expectDelimited bool

	// resync discards bytes through the next newline after a framing
	// fault, so a stuck or corrupt peer cannot wedge the stream.
	resync bool
}

// New creates a Scanner. maxLen <= 0 selects DefaultMaxFrameLength.
func New(maxLen int) *Scanner {
	if maxLen <= 0 {
		maxLen = DefaultMaxFrameLength
	}
	return &Scanner{maxLen: maxLen}
}

// ExpectBinary arms delimited (START ... END) framing for the next
// block. One-shot: cleared when the block is emitted or when the stream
// turns out not to carry one.
func (s *Scanner) ExpectBinary() {
	s.expectDelimited = true
}

// Buffered returns the number of carried-over bytes awaiting a boundary.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

// Feed appends stream data to the carry-over buffer. Never blocks.
// Call Next repeatedly to drain complete frames; extraction is pull-based
// so the caller can arm ExpectBinary between frames (classification
// feedback resolves the binary/text framing ambiguity).
func (s *Scanner) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// Next extracts the next complete frame, if one is available.
func (s *Scanner) Next() (types.Frame, bool) {
	frame, ok := s.next()
	if !ok {
		return types.Frame{}, false
	}
	frame.Seq = s.nextSeq()
	return frame, true
}

func (s *Scanner) nextSeq() int64 {
	s.seq++
	return s.seq
}

// next attempts to extract one frame from the buffer front.
func (s *Scanner) next() (types.Frame, bool) {
	if s.resync {
		nl := bytes.IndexByte(s.buf, '\n')
		if nl < 0 {
			// Still pre-boundary junk; drop it to bound memory.
			s.buf = nil
			return types.Frame{}, false
		}
		s.buf = s.buf[nl+1:]
		s.resync = false
	}

	s.skipSeparators()
	if len(s.buf) == 0 {
		return types.Frame{}, false
	}

	if s.expectDelimited {
		if frame, ok, decided := s.scanDelimited(); decided {
			return frame, ok
		}
		// The expected binary section never came; fall back to
		// structural sniffing.
		s.expectDelimited = false
	}

	switch c := s.buf[0]; {
	case c == '<':
		return s.scanXML()
	case printable(c):
		return s.scanText()
	default:
		return s.scanLengthPrefixed()
	}
}

// skipSeparators drops line terminators between frames. Blank lines
// carry no message and the XML pretty-printer emits one after every
// element.
func (s *Scanner) skipSeparators() {
	i := 0
	for i < len(s.buf) && (s.buf[i] == '\n' || s.buf[i] == '\r') {
		i++
	}
	if i > 0 {
		s.buf = s.buf[i:]
	}
}

// take consumes n bytes off the buffer front and returns them as an
// owned copy.
func (s *Scanner) take(n int) []byte {
	out := make([]byte, n)
	copy(out, s.buf[:n])
	s.buf = s.buf[n:]
	return out
}

// overflow emits a bounded Unknown frame and enters resync.
func (s *Scanner) overflow(reason string) (types.Frame, bool) {
	n := len(s.buf)
	if n > s.maxLen {
		n = s.maxLen
	}
	frame := types.Frame{
		Kind:   types.FrameUnknown,
		Bytes:  s.take(n),
		Reason: reason,
	}
	s.resync = true
	return frame, true
}

// scanText extracts a newline-terminated line from the buffer front.
func (s *Scanner) scanText() (types.Frame, bool) {
	nl := bytes.IndexByte(s.buf, '\n')
	if nl < 0 {
		if len(s.buf) >= s.maxLen {
			return s.overflow("text line exceeds max frame length")
		}
		return types.Frame{}, false
	}
	if nl+1 > s.maxLen {
		return s.overflow("text line exceeds max frame length")
	}
	return types.Frame{Kind: types.FrameTextLine, Bytes: s.take(nl + 1)}, true
}

// scanLengthPrefixed extracts a 2-byte big-endian length-prefixed binary
// block. Entered when the front byte is neither '<' nor printable ASCII.
func (s *Scanner) scanLengthPrefixed() (types.Frame, bool) {
	if len(s.buf) < 2 {
		return types.Frame{}, false
	}
	n := int(binary.BigEndian.Uint16(s.buf[:2]))
	frameLen := 2 + n
	if frameLen > s.maxLen {
		frame := types.Frame{
			Kind:   types.FrameUnknown,
			Bytes:  s.take(2),
			Reason: fmt.Sprintf("binary block length %d exceeds max frame length %d", n, s.maxLen),
		}
		s.resync = true
		return frame, true
	}
	if len(s.buf) < frameLen {
		return types.Frame{}, false
	}
	return types.Frame{Kind: types.FrameBinaryBlock, Bytes: s.take(frameLen)}, true
}

// scanDelimited extracts a START ... crc16 END telemetry section.
// decided=false means the buffer front is not a delimited section and
// normal sniffing should take over.
func (s *Scanner) scanDelimited() (frame types.Frame, ok, decided bool) {
	start := zephyr.SectionStart
	if len(s.buf) < len(start) {
		if bytes.HasPrefix(start, s.buf) {
			// Could still become START; wait.
			return types.Frame{}, false, true
		}
		return types.Frame{}, false, false
	}
	if !bytes.HasPrefix(s.buf, start) {
		return types.Frame{}, false, false
	}

	// Payload plus 2 CRC bytes sit between the markers. Search for END
	// past the minimum offset.
	searchFrom := len(start)
	idx := bytes.Index(s.buf[searchFrom:], zephyr.SectionEnd)
	if idx < 0 {
		if len(s.buf) >= s.maxLen {
			frame, ok = s.overflow("telemetry section exceeds max frame length")
			return frame, ok, true
		}
		return types.Frame{}, false, true
	}
	end := searchFrom + idx + len(zephyr.SectionEnd)
	if end > s.maxLen {
		frame, ok = s.overflow("telemetry section exceeds max frame length")
		return frame, ok, true
	}
	s.expectDelimited = false
	return types.Frame{Kind: types.FrameBinaryBlock, Bytes: s.take(end)}, true, true
}

// scanXML extracts a top-level XML element by tracking tag nesting
// depth. Telemetry and debug text must never be mistaken for XML, so a
// line terminator inside a tag demotes the run to a text line.
func (s *Scanner) scanXML() (types.Frame, bool) {
	depth := 0
	i := 0
	for {
		lt := bytes.IndexByte(s.buf[i:], '<')
		if lt < 0 {
			// Content with no further tag yet.
			if len(s.buf) >= s.maxLen {
				return s.overflow("xml element exceeds max frame length")
			}
			return types.Frame{}, false
		}
		lt += i

		gt := bytes.IndexByte(s.buf[lt:], '>')
		nl := indexLineBreak(s.buf[lt:])
		if nl >= 0 && (gt < 0 || nl < gt) {
			// Line break inside a tag: not XML. Emit the run through
			// the newline as a text line.
			return s.scanText()
		}
		if gt < 0 {
			if len(s.buf) >= s.maxLen {
				return s.overflow("xml element exceeds max frame length")
			}
			return types.Frame{}, false
		}
		gt += lt

		tag := s.buf[lt+1 : gt]
		switch {
		case len(tag) == 0:
			// "<>" is content, not a tag.
		case tag[0] == '!' || tag[0] == '?':
			// Comment, declaration or PI: no depth change.
		case tag[0] == '/':
			depth--
			if depth <= 0 {
				// Top-level close (or unbalanced close; the classifier
				// rejects those).
				return s.emitXML(gt + 1)
			}
		case tag[len(tag)-1] == '/':
			if depth == 0 {
				// Self-closing top-level element.
				return s.emitXML(gt + 1)
			}
		default:
			depth++
		}
		i = gt + 1
	}
}

func (s *Scanner) emitXML(end int) (types.Frame, bool) {
	if end > s.maxLen {
		return s.overflow("xml element exceeds max frame length")
	}
	return types.Frame{Kind: types.FrameXMLCandidate, Bytes: s.take(end)}, true
}

func indexLineBreak(b []byte) int {
	for i, c := range b {
		if c == '\n' || c == '\r' {
			return i
		}
	}
	return -1
}

func printable(c byte) bool {
	return c == '\t' || (c >= 0x20 && c < 0x7F)
}
