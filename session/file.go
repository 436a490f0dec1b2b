package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stratocore/obcsim/journal"
	"github.com/stratocore/obcsim/types"
)

// Archive file names within a session directory.
const (
	// JournalFile is the replayable journal within a session directory.
	JournalFile = "session.journal"
	// TelemetryDir holds the per-message telemetry files.
	TelemetryDir = "TM"
)

const stampLayout = "20060102_150405"

// FileSink writes the session archive: instrument-prefixed debug, XML
// and command logs, per-message telemetry files under TM/, and the
// msgpack journal. The layout matches the ground-station convention:
//
//	<data_dir>/<INST>_<date>_<time>/
//	    <INST>_DBG_<date>_<time>.txt
//	    <INST>_XML_<date>_<time>.txt
//	    <INST>_CMD_<date>_<time>.txt
//	    TM/TM_<date>_<time>_<seq>.<INST>.dat
//	    session.journal
type FileSink struct {
	session types.SessionContext
	dir     string

	mu      sync.Mutex
	dbg     *os.File
	xml     *os.File
	cmd     *os.File
	jfile   *os.File
	journal *journal.Writer
	closed  bool
}

// NewFileSink creates the session directory under dataDir and opens the
// archive files. The directory name is derived from the instrument and
// the session start time.
func NewFileSink(dataDir string, session types.SessionContext) (*FileSink, error) {
	stamp := session.StartTime.Format(stampLayout)
	dir := filepath.Join(dataDir, fmt.Sprintf("%s_%s", session.Instrument, stamp))
	if err := os.MkdirAll(filepath.Join(dir, TelemetryDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	s := &FileSink{session: session, dir: dir}
	var err error
	if s.dbg, err = s.openLog("DBG", stamp, "debug log"); err != nil {
		return nil, err
	}
	if s.xml, err = s.openLog("XML", stamp, "XML message log"); err != nil {
		s.Close()
		return nil, err
	}
	if s.cmd, err = s.openLog("CMD", stamp, "command log"); err != nil {
		s.Close()
		return nil, err
	}
	if s.jfile, err = os.Create(filepath.Join(dir, JournalFile)); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	s.journal = journal.NewWriter(s.jfile)
	return s, nil
}

// Dir returns the session directory path.
func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) openLog(category, stamp, title string) (*os.File, error) {
	name := fmt.Sprintf("%s_%s_%s.txt", s.session.Instrument, category, stamp)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	header := fmt.Sprintf("%s %s, session %s started %s\n",
		s.session.Instrument, title, s.session.SessionID,
		s.session.StartTime.UTC().Format(time.RFC3339))
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s header: %w", name, err)
	}
	return f, nil
}

// Record implements Sink. Messages route by kind: debug lines and
// malformed frames to the debug log, XML messages to the XML log (and
// commands additionally to the command log), telemetry to a dedicated
// TM/ file holding the TM message text and raw section bytes.
func (s *FileSink) Record(ctx context.Context, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &types.SinkError{Err: fmt.Errorf("sink closed")}
	}
	if err := ctx.Err(); err != nil {
		return &types.SinkError{Err: err}
	}

	if err := s.route(msg); err != nil {
		return &types.SinkError{Err: err}
	}
	if err := s.journal.Append(journal.NewEnvelope(s.session, msg)); err != nil {
		return &types.SinkError{Err: err}
	}
	return nil
}

func (s *FileSink) route(msg *types.Message) error {
	switch {
	case msg.Kind == types.KindDebug:
		return s.writeLine(s.dbg, msg.ReceivedAt, msg.Text)
	case msg.Kind == types.KindMalformed:
		return s.writeLine(s.dbg, msg.ReceivedAt,
			fmt.Sprintf("MALFORMED (%s): %s", msg.Reason, sanitize(msg.Raw)))
	case msg.Kind == types.KindTelemetry:
		return s.writeTelemetry(msg)
	case msg.Kind.IsCommand():
		if err := s.writeLine(s.xml, msg.ReceivedAt, string(msg.Raw)); err != nil {
			return err
		}
		return s.writeLine(s.cmd, msg.ReceivedAt, commandSummary(msg))
	default:
		// Acks, CRC trailers and any other XML traffic.
		return s.writeLine(s.xml, msg.ReceivedAt, string(msg.Raw))
	}
}

// RecordSent implements Sink. Outbound messages land in the XML log
// with a TX marker and in the journal with the outbound flag set.
func (s *FileSink) RecordSent(ctx context.Context, kind types.MessageKind, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &types.SinkError{Err: fmt.Errorf("sink closed")}
	}
	if err := ctx.Err(); err != nil {
		return &types.SinkError{Err: err}
	}

	now := time.Now()
	if err := s.writeLine(s.xml, now, "TX "+string(kind)+"\n"+string(raw)); err != nil {
		return &types.SinkError{Err: err}
	}
	env := journal.NewEnvelope(s.session, &types.Message{
		Kind:       kind,
		ReceivedAt: now,
		Raw:        raw,
	})
	env.Outbound = true
	if err := s.journal.Append(env); err != nil {
		return &types.SinkError{Err: err}
	}
	return nil
}

// writeLine writes a timestamped entry. Multi-line content keeps the
// prefix on the first line only, matching the ground-station logs.
func (s *FileSink) writeLine(f *os.File, at time.Time, content string) error {
	line := fmt.Sprintf("[%s] %s\n", at.Format("15:04:05.000"), strings.TrimRight(content, "\n"))
	_, err := f.WriteString(line)
	return err
}

// writeTelemetry stores a telemetry file in the flight CCMZ layout:
// the paired TM message text followed by the binary section bytes
// unmodified.
func (s *FileSink) writeTelemetry(msg *types.Message) error {
	name := fmt.Sprintf("TM_%s_%d.%s.dat",
		msg.ReceivedAt.Format(stampLayout), msg.Seq, s.session.Instrument)
	path := filepath.Join(s.dir, TelemetryDir, name)
	data := make([]byte, 0, len(msg.Header)+len(msg.Raw))
	data = append(data, msg.Header...)
	data = append(data, msg.Raw...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return s.writeLine(s.cmd, msg.ReceivedAt,
		fmt.Sprintf("TM %d bytes -> %s/%s", len(msg.Payload), TelemetryDir, name))
}

// Close flushes and closes the archive files. Safe to call more than
// once; Record calls after Close fail.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, f := range []*os.File{s.dbg, s.xml, s.cmd, s.jfile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Verify FileSink implements Sink.
var _ Sink = (*FileSink)(nil)

func commandSummary(msg *types.Message) string {
	var b strings.Builder
	b.WriteString(string(msg.Kind))
	for _, key := range []string{"Msg", "Mode", "Length", "_text"} {
		if v, ok := msg.Fields[key]; ok && v != "" {
			fmt.Fprintf(&b, " %s=%s", key, v)
		}
	}
	return b.String()
}

// sanitize makes raw bytes printable for the debug log.
func sanitize(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if c >= 0x20 && c < 0x7F {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "\\x%02X", c)
		}
	}
	return b.String()
}
