package pipeline

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/stratocore/obcsim/log"
	"github.com/stratocore/obcsim/metrics"
	"github.com/stratocore/obcsim/scanner"
	"github.com/stratocore/obcsim/session"
	"github.com/stratocore/obcsim/types"
)

// DebugTap records free-form text from a dedicated instrument log port.
// The port carries debug output only, one line at a time; lines share
// the session sink and counters with the main pipeline but are never
// acknowledged. Seq numbering is per stream: the log port counts
// independently of the Zephyr stream.
type DebugTap struct {
	sink      session.Sink
	collector *metrics.Collector
	logger    *log.Logger
	seq       int64
}

// NewDebugTap creates a tap recording into the given sink and counters.
func NewDebugTap(sink session.Sink, collector *metrics.Collector, logger *log.Logger) *DebugTap {
	return &DebugTap{
		sink:      sink,
		collector: collector,
		logger:    logger,
	}
}

// Run reads the log port until EOF or context cancellation, recording
// each line as a debug message. Record failures are counted and
// logged, never stop the tap.
func (t *DebugTap) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, readChunkSize), scanner.DefaultMaxFrameLength)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		t.seq++
		t.collector.AddBytes(len(line) + 1)
		t.collector.IncFrame()
		t.collector.IncMessage(string(types.KindDebug))

		msg := &types.Message{
			Kind:       types.KindDebug,
			Seq:        t.seq,
			ReceivedAt: time.Now(),
			Raw:        []byte(line),
			Text:       line,
		}
		if err := t.sink.Record(ctx, msg); err != nil {
			t.collector.IncSinkFailure()
			t.logger.Error("log port record failed", map[string]any{
				"seq":   msg.Seq,
				"error": err.Error(),
			})
		}
	}
	if err := sc.Err(); err != nil {
		// Shutdown closes the port to unblock the read; report the
		// cancellation, not the port error it provoked.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
