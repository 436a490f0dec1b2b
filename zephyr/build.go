package zephyr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/stratocore/obcsim/types"
)

// Builder constructs outbound Zephyr messages for one session.
// The message id counter is process-monotonic across all message kinds,
// matching the OBC numbering scheme. Safe for concurrent use.
type Builder struct {
	instrument string
	msgID      atomic.Int64
}

// NewBuilder creates a Builder for the given instrument.
func NewBuilder(instrument string) *Builder {
	return &Builder{instrument: instrument}
}

// NextMsgID returns the next message id without building a message.
// Exposed for tests.
func (b *Builder) NextMsgID() int64 {
	return b.msgID.Add(1)
}

// child is one depth-1 element of an outbound message.
type child struct {
	name  string
	value string
}

// render produces the pretty-printed element followed by its CRC trailer.
// Layout is bit-exact with the OBC output: tab-indented children, one
// per line, then "<CRC>n</CRC>\n" where n is the decimal CRC16 of the
// element text.
func (b *Builder) render(tag string, children []child) []byte {
	var buf bytes.Buffer
	buf.WriteByte('<')
	buf.WriteString(tag)
	buf.WriteString(">\n")
	for _, c := range children {
		fmt.Fprintf(&buf, "\t<%s>%s</%s>\n", c.name, c.value, c.name)
	}
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")

	crc := CRC16(buf.Bytes())
	fmt.Fprintf(&buf, "<CRC>%d</CRC>\n", crc)
	return buf.Bytes()
}

// header returns the Msg/Inst children common to every outbound message.
func (b *Builder) header() []child {
	return []child{
		{"Msg", strconv.FormatInt(b.msgID.Add(1), 10)},
		{"Inst", b.instrument},
	}
}

// BuildIM builds an instrument mode message.
func (b *Builder) BuildIM(mode string) []byte {
	return b.render("IM", append(b.header(), child{"Mode", mode}))
}

// GPSFix is the positional fix carried by a GPS message.
type GPSFix struct {
	Date    time.Time
	Lon     float64
	Lat     float64
	Alt     float64
	SZA     float64
	VBat    float64
	Diff    float64
	Quality int
}

// DefaultFix returns the fixed ground-test position used by the
// simulator, stamped with the current time.
func DefaultFix(sza float64) GPSFix {
	return GPSFix{
		Date:    time.Now(),
		Lon:     -105.0,
		Lat:     40.0,
		Alt:     1620.3,
		SZA:     sza,
		VBat:    16.2,
		Diff:    0.00453,
		Quality: 3,
	}
}

// BuildGPS builds a GPS position message from a fix.
func (b *Builder) BuildGPS(fix GPSFix) []byte {
	children := append(b.header(),
		child{"Date", fix.Date.Format("2006/01/02")},
		child{"Time", fix.Date.Format("15:04:05")},
		child{"Lon", strconv.FormatFloat(fix.Lon, 'f', 6, 64)},
		child{"Lat", strconv.FormatFloat(fix.Lat, 'f', 6, 64)},
		child{"Alt", strconv.FormatFloat(fix.Alt, 'f', 1, 64)},
		child{"SZA", strconv.FormatFloat(fix.SZA, 'f', -1, 64)},
		child{"VBAT", strconv.FormatFloat(fix.VBat, 'f', 1, 64)},
		child{"Diff", strconv.FormatFloat(fix.Diff, 'f', -1, 64)},
		child{"Quality", strconv.Itoa(fix.Quality)},
	)
	return b.render("GPS", children)
}

// BuildSW builds a shutdown warning message.
func (b *Builder) BuildSW() []byte {
	return b.render("SW", b.header())
}

// BuildTC builds a telecommand message: the TC element plus the
// START/payload/CRC/END binary section carrying the command string.
func (b *Builder) BuildTC(command string) []byte {
	children := append(b.header(),
		child{"Length", strconv.Itoa(len(command))},
	)
	out := b.render("TC", children)

	crc := CRC16([]byte(command))
	out = append(out, SectionStart...)
	out = append(out, command...)
	out = binary.BigEndian.AppendUint16(out, crc)
	out = append(out, SectionEnd...)
	return out
}

// BuildAck builds an acknowledgment message of the given ack kind.
// value is the acknowledgment verdict, normally "ACK".
func (b *Builder) BuildAck(kind types.MessageKind, value string) ([]byte, error) {
	if !kind.IsAck() {
		return nil, fmt.Errorf("kind %s is not an ack kind", kind)
	}
	return b.render(kind.Tag(), append(b.header(), child{"Ack", value})), nil
}
