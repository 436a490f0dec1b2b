// Package classify maps scanned frames to typed messages.
//
// Classification is total: every frame yields exactly one Message, with
// Malformed as the catch-all. The classifier performs no I/O and holds
// no state; ambiguous frames are resolved by a fixed tie-break policy:
// a printable frame that fails strict XML well-formedness is instrument
// chatter (Debug), not an error — the instrument is the unverified side
// of the link and its output must be tolerated, never crashed on.
package classify

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stratocore/obcsim/types"
	"github.com/stratocore/obcsim/zephyr"
)

// Classifier classifies frames for one session. It is stateless apart
// from the clock, which is injectable for tests.
type Classifier struct {
	now func() time.Time
}

// New creates a Classifier using the wall clock.
func New() *Classifier {
	return &Classifier{now: time.Now}
}

// NewWithClock creates a Classifier with an injected clock.
func NewWithClock(now func() time.Time) *Classifier {
	return &Classifier{now: now}
}

// Classify maps one frame to exactly one Message.
func (c *Classifier) Classify(frame types.Frame) *types.Message {
	msg := &types.Message{
		Seq:        frame.Seq,
		ReceivedAt: c.now(),
		Raw:        frame.Bytes,
	}

	switch frame.Kind {
	case types.FrameXMLCandidate:
		c.classifyXML(msg)
	case types.FrameTextLine:
		msg.Kind = types.KindDebug
		msg.Text = strings.TrimRight(string(frame.Bytes), "\r\n")
	case types.FrameBinaryBlock:
		c.classifyBinary(msg)
	default:
		msg.Kind = types.KindMalformed
		msg.Reason = frame.Reason
		if msg.Reason == "" {
			msg.Reason = "unrecoverable framing"
		}
	}
	return msg
}

// classifyXML parses the top-level element and maps its tag.
// Malformed XML never crashes classification; printable non-XML falls
// back to Debug per the tie-break policy.
func (c *Classifier) classifyXML(msg *types.Message) {
	tag, fields, err := parseElement(msg.Raw)
	if err != nil {
		if printableRun(msg.Raw) {
			msg.Kind = types.KindDebug
			msg.Text = strings.TrimRight(string(msg.Raw), "\r\n")
			return
		}
		msg.Kind = types.KindMalformed
		msg.Reason = "malformed xml: " + err.Error()
		return
	}

	kind, ok := types.KindForTag(tag)
	if !ok {
		msg.Kind = types.KindMalformed
		msg.Tag = tag
		msg.Fields = fields
		msg.Reason = "unrecognized tag"
		return
	}
	msg.Kind = kind
	msg.Tag = tag
	msg.Fields = fields
}

// classifyBinary strips block framing and stamps the telemetry payload.
// Both wire forms are handled: START/payload/crc16/END sections and
// 2-byte big-endian length-prefixed blocks.
func (c *Classifier) classifyBinary(msg *types.Message) {
	msg.Kind = types.KindTelemetry
	raw := msg.Raw

	if bytes.HasPrefix(raw, zephyr.SectionStart) && bytes.HasSuffix(raw, zephyr.SectionEnd) {
		inner := raw[len(zephyr.SectionStart) : len(raw)-len(zephyr.SectionEnd)]
		if len(inner) < 2 {
			msg.Kind = types.KindMalformed
			msg.Reason = "telemetry section too short for crc"
			return
		}
		payload := inner[:len(inner)-2]
		crc := binary.BigEndian.Uint16(inner[len(inner)-2:])
		msg.Payload = payload
		if crc != zephyr.CRC16(payload) {
			// Recorded anyway; the note is surfaced by the pipeline.
			msg.Reason = "telemetry crc mismatch"
		}
		return
	}

	if len(raw) >= 2 {
		n := int(binary.BigEndian.Uint16(raw[:2]))
		if len(raw) == 2+n {
			msg.Payload = raw[2:]
			return
		}
	}

	msg.Kind = types.KindMalformed
	msg.Reason = "binary block framing mismatch"
}

// parseElement strictly parses a single top-level element, returning its
// tag and flattened depth-1 children.
func parseElement(raw []byte) (string, map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var tag string
	fields := make(map[string]string)
	depth := 0
	var childName string
	var childText strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if tag != "" {
					return "", nil, errSecondTopLevel
				}
				tag = t.Name.Local
			case 2:
				childName = t.Name.Local
				childText.Reset()
			}
		case xml.EndElement:
			if depth == 2 && childName != "" {
				fields[childName] = strings.TrimSpace(childText.String())
				childName = ""
			}
			depth--
		case xml.CharData:
			if depth == 2 {
				childText.Write(t)
			} else if depth == 1 && tag != "" && len(fields) == 0 {
				// Simple element body, e.g. <S>ARM</S> or <CRC>123</CRC>.
				text := strings.TrimSpace(string(t))
				if text != "" {
					fields["_text"] = fields["_text"] + text
				}
			}
		}
	}

	if tag == "" {
		return "", nil, errNoElement
	}
	return tag, fields, nil
}

var (
	errNoElement      = xml.UnmarshalError("no element found")
	errSecondTopLevel = xml.UnmarshalError("multiple top-level elements")
)

// printableRun reports whether the frame is entirely printable ASCII
// (plus line terminators), i.e. plausible instrument chatter.
func printableRun(b []byte) bool {
	for _, c := range b {
		if c == '\t' || c == '\r' || c == '\n' {
			continue
		}
		if c < 0x20 || c >= 0x7F {
			return false
		}
	}
	return true
}

// TrailerValue extracts the CRC value from a crc_trailer message.
func TrailerValue(msg *types.Message) (uint16, bool) {
	if msg.Kind != types.KindCRCTrailer {
		return 0, false
	}
	v, err := strconv.ParseUint(msg.Field("_text"), 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// CommandPayload returns the simple body of a command element, e.g.
// "ARM" for <S>ARM</S>.
func CommandPayload(msg *types.Message) string {
	return msg.Field("_text")
}
