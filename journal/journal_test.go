package journal

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stratocore/obcsim/types"
)

func testSession() types.SessionContext {
	return types.SessionContext{
		Instrument: "RATS",
		SessionID:  "sess-1",
		StartTime:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		AutoAck:    true,
	}
}

func TestAppendNextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	msg := &types.Message{
		Kind:       types.KindCommandS,
		Seq:        3,
		ReceivedAt: time.Date(2026, 3, 14, 9, 27, 0, 123456789, time.UTC),
		Raw:        []byte("<S>ARM</S>"),
		Tag:        "S",
		Fields:     map[string]string{"_text": "ARM"},
	}
	if err := w.Append(NewEnvelope(testSession(), msg)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	r := NewReader(&buf)
	env, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if env.SessionID != "sess-1" {
		t.Errorf("expected session sess-1, got %q", env.SessionID)
	}
	if env.Seq != 3 {
		t.Errorf("expected seq 3, got %d", env.Seq)
	}
	if env.Kind != string(types.KindCommandS) {
		t.Errorf("expected kind %q, got %q", types.KindCommandS, env.Kind)
	}
	if !bytes.Equal(env.Raw, msg.Raw) {
		t.Errorf("raw bytes mismatch: %q", env.Raw)
	}
	if env.Fields["_text"] != "ARM" {
		t.Errorf("expected body ARM, got %q", env.Fields["_text"])
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF after last envelope, got %v", err)
	}
}

func TestMultipleEnvelopesInOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	session := testSession()

	for i := int64(0); i < 5; i++ {
		msg := &types.Message{
			Kind:       types.KindDebug,
			Seq:        i,
			ReceivedAt: time.Now(),
			Raw:        []byte("line"),
			Text:       "line",
		}
		if err := w.Append(NewEnvelope(session, msg)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	r := NewReader(&buf)
	for i := int64(0); i < 5; i++ {
		env, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if env.Seq != i {
			t.Errorf("expected seq %d, got %d", i, env.Seq)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestTruncatedJournal(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	msg := &types.Message{Kind: types.KindDebug, Raw: []byte("x"), Text: "x"}
	if err := w.Append(NewEnvelope(testSession(), msg)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Cut the stream mid-payload.
	truncated := buf.Bytes()[:buf.Len()-2]
	r := NewReader(bytes.NewReader(truncated))
	_, err := r.Next()
	if !IsFrameError(err, FrameErrorPartial) {
		t.Errorf("expected partial frame error, got %v", err)
	}
}

func TestTruncatedLengthPrefix(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := r.Next()
	if !IsFrameError(err, FrameErrorPartial) {
		t.Errorf("expected partial frame error, got %v", err)
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	prefix := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	r := NewReader(bytes.NewReader(prefix))
	_, err := r.Next()
	if !IsFrameError(err, FrameErrorTooLarge) {
		t.Errorf("expected too-large frame error, got %v", err)
	}
}

func TestDecodeErrorSurfaced(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x03})
	buf.Write([]byte{0xC1, 0xC1, 0xC1}) // 0xC1 is never used in msgpack
	r := NewReader(&buf)
	_, err := r.Next()
	if !IsFrameError(err, FrameErrorDecode) {
		t.Errorf("expected decode frame error, got %v", err)
	}
}

func TestOutboundFlagPersists(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	env := NewEnvelope(testSession(), &types.Message{Kind: types.KindTelemetry, Payload: []byte{1, 2}})
	env.Outbound = true
	if err := w.Append(env); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	got, err := NewReader(&buf).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !got.Outbound {
		t.Error("expected outbound flag to persist")
	}
}
