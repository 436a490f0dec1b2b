package zephyr

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stratocore/obcsim/types"
)

func TestBuildIMShape(t *testing.T) {
	b := NewBuilder("LPC")
	out := string(b.BuildIM("FL"))

	want := "<IM>\n\t<Msg>1</Msg>\n\t<Inst>LPC</Inst>\n\t<Mode>FL</Mode>\n</IM>\n"
	if !strings.HasPrefix(out, want) {
		t.Fatalf("IM element mismatch:\n got %q\nwant prefix %q", out, want)
	}
	if !strings.Contains(out, "<CRC>") || !strings.HasSuffix(out, "</CRC>\n") {
		t.Errorf("missing CRC trailer: %q", out)
	}
}

func TestBuildCRCTrailerMatchesElement(t *testing.T) {
	b := NewBuilder("RACHUTS")
	out := b.BuildSW()

	idx := bytes.Index(out, []byte("<CRC>"))
	if idx < 0 {
		t.Fatal("no CRC trailer")
	}
	element := out[:idx]
	trailer := string(out[idx:])

	s := strings.TrimPrefix(trailer, "<CRC>")
	s = strings.TrimSuffix(s, "</CRC>\n")
	got, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("unparsable trailer %q: %v", trailer, err)
	}
	if uint16(got) != CRC16(element) {
		t.Errorf("trailer CRC %d != computed %d", got, CRC16(element))
	}
}

func TestMsgIDMonotonicAcrossKinds(t *testing.T) {
	b := NewBuilder("LPC")
	first := string(b.BuildIM("SB"))
	second := string(b.BuildSW())
	third, err := b.BuildAck(types.KindAckTM, "ACK")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(first, "<Msg>1</Msg>") {
		t.Errorf("first message id: %q", first)
	}
	if !strings.Contains(second, "<Msg>2</Msg>") {
		t.Errorf("second message id: %q", second)
	}
	if !strings.Contains(string(third), "<Msg>3</Msg>") {
		t.Errorf("third message id: %q", third)
	}
}

func TestBuildTCBinarySection(t *testing.T) {
	b := NewBuilder("RACHUTS")
	cmd := "142,12,0.1;"
	out := b.BuildTC(cmd)

	start := bytes.Index(out, SectionStart)
	if start < 0 {
		t.Fatal("no START marker")
	}
	if !bytes.HasSuffix(out, SectionEnd) {
		t.Fatal("no END marker")
	}

	section := out[start+len(SectionStart) : len(out)-len(SectionEnd)]
	if len(section) != len(cmd)+2 {
		t.Fatalf("section length %d, want %d", len(section), len(cmd)+2)
	}
	if string(section[:len(cmd)]) != cmd {
		t.Errorf("command payload %q", section[:len(cmd)])
	}
	crc := binary.BigEndian.Uint16(section[len(cmd):])
	if crc != CRC16([]byte(cmd)) {
		t.Errorf("section CRC %#04x, want %#04x", crc, CRC16([]byte(cmd)))
	}
	if !strings.Contains(string(out[:start]), "<Length>11</Length>") {
		t.Errorf("TC element missing Length: %q", out[:start])
	}
}

func TestBuildAckRejectsNonAckKind(t *testing.T) {
	b := NewBuilder("LPC")
	if _, err := b.BuildAck(types.KindCommandS, "ACK"); err == nil {
		t.Error("expected error for non-ack kind")
	}
}

func TestBuildGPSFields(t *testing.T) {
	b := NewBuilder("FLOATS")
	fix := GPSFix{
		Date:    time.Date(2026, 3, 9, 14, 30, 5, 0, time.UTC),
		Lon:     -105.0,
		Lat:     40.0,
		Alt:     1620.3,
		SZA:     118.2,
		VBat:    16.2,
		Diff:    0.00453,
		Quality: 3,
	}
	out := string(b.BuildGPS(fix))

	for _, want := range []string{
		"<GPS>", "<Date>2026/03/09</Date>", "<Time>14:30:05</Time>",
		"<Lon>-105.000000</Lon>", "<Lat>40.000000</Lat>",
		"<Alt>1620.3</Alt>", "<SZA>118.2</SZA>", "<VBAT>16.2</VBAT>",
		"<Quality>3</Quality>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GPS message missing %q:\n%s", want, out)
		}
	}
}
