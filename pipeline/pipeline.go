// Package pipeline wires the serial stream through scanning,
// classification, recording and acknowledgment as one ordered flow.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/stratocore/obcsim/ack"
	"github.com/stratocore/obcsim/classify"
	"github.com/stratocore/obcsim/log"
	"github.com/stratocore/obcsim/metrics"
	"github.com/stratocore/obcsim/scanner"
	"github.com/stratocore/obcsim/session"
	"github.com/stratocore/obcsim/types"
	"github.com/stratocore/obcsim/zephyr"
)

const readChunkSize = 4096

// Pipeline is the ordered demultiplexing engine. Per frame:
//   - the scanner extracts one frame
//   - the classifier produces a Message
//   - the message is recorded to the sink
//   - only then is its acknowledgment synthesized and submitted
//
// An XML element is held for one frame: its CRC trailer, if any,
// arrives next and must annotate the element before the element
// reaches the durable record. The following frame (or Close) releases
// it. Sink and transmit failures are counted and logged, never halt
// the stream. A single goroutine drives Ingest; collaborators
// serialize their own state.
type Pipeline struct {
	session    types.SessionContext
	scanner    *scanner.Scanner
	classifier *classify.Classifier
	sink       session.Sink
	responder  *ack.Responder
	collector  *metrics.Collector
	logger     *log.Logger

	mu       sync.Mutex
	held     *types.Message // XML message awaiting its CRC trailer
	tmHeader []byte         // TM message text for the next telemetry section
	closed   bool
}

// Summary reports the session outcome at close.
type Summary struct {
	// Incomplete lists acknowledgments still awaiting transmission.
	Incomplete []types.IncompleteAck
	// Metrics is the final counter snapshot.
	Metrics metrics.Snapshot
}

// New creates a pipeline over the given collaborators.
func New(
	sess types.SessionContext,
	maxFrameLength int,
	sink session.Sink,
	responder *ack.Responder,
	collector *metrics.Collector,
	logger *log.Logger,
) *Pipeline {
	return &Pipeline{
		session:    sess,
		scanner:    scanner.New(maxFrameLength),
		classifier: classify.New(),
		sink:       sink,
		responder:  responder,
		collector:  collector,
		logger:     logger,
	}
}

// Ingest feeds a chunk of stream bytes and processes every frame that
// completes. Frame boundaries depend only on stream content, so any
// chunking of the same byte sequence yields the same messages.
func (p *Pipeline) Ingest(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("pipeline closed")
	}

	p.collector.AddBytes(len(data))
	p.scanner.Feed(data)
	for {
		frame, ok := p.scanner.Next()
		if !ok {
			return nil
		}
		p.collector.IncFrame()
		p.processFrame(ctx, frame)
	}
}

// processFrame classifies one frame, releases the previously held XML
// message, and delivers. Recording strictly precedes ack submission.
func (p *Pipeline) processFrame(ctx context.Context, frame types.Frame) {
	msg := p.classifier.Classify(frame)

	if msg.Kind == types.KindCRCTrailer {
		// Annotate the held element before it is recorded, then record
		// element and trailer in arrival order.
		p.verifyTrailer(msg)
		p.releaseHeld(ctx, msg.Raw)
		p.deliver(ctx, msg)
		return
	}

	// Any other frame ends the trailer window for the held element.
	p.releaseHeld(ctx, nil)

	if msg.Kind == types.KindTelemetry {
		msg.Header = p.tmHeader
		p.tmHeader = nil
	}

	if msg.Tag != "" {
		p.held = msg
		// A TM command announces a delimited binary section; arm the
		// scanner before it consumes the following bytes.
		if msg.Kind == types.KindCommandTM {
			p.scanner.ExpectBinary()
		}
		return
	}

	p.deliver(ctx, msg)
}

// releaseHeld records and acknowledges the held XML message.
// trailerRaw, when the releasing frame is a CRC trailer, completes the
// TM message text carried to the telemetry file.
func (p *Pipeline) releaseHeld(ctx context.Context, trailerRaw []byte) {
	if p.held == nil {
		return
	}
	msg := p.held
	p.held = nil

	if msg.Kind == types.KindCommandTM {
		header := append(append([]byte(nil), msg.Raw...), '\n')
		if trailerRaw != nil {
			header = append(header, trailerRaw...)
			header = append(header, '\n')
		}
		p.tmHeader = header
	}

	p.deliver(ctx, msg)
}

// deliver counts, records and (for commands) acknowledges one message.
func (p *Pipeline) deliver(ctx context.Context, msg *types.Message) {
	p.collector.IncMessage(string(msg.Kind))
	if msg.Kind == types.KindTelemetry {
		p.collector.AddTelemetryBytes(len(msg.Payload))
	}

	if err := p.sink.Record(ctx, msg); err != nil {
		p.collector.IncSinkFailure()
		p.logger.Error("sink record failed", map[string]any{
			"seq":   msg.Seq,
			"kind":  string(msg.Kind),
			"error": err.Error(),
		})
	}

	p.acknowledge(ctx, msg)
}

// verifyTrailer checks a CRC trailer against the held XML message.
// Mismatches are noted and counted, never fatal.
func (p *Pipeline) verifyTrailer(msg *types.Message) {
	if p.held == nil {
		msg.Reason = "orphan crc trailer"
		p.logger.Warn("crc trailer without preceding message", map[string]any{
			"seq": msg.Seq,
		})
		return
	}

	want, ok := classify.TrailerValue(msg)
	if !ok {
		msg.Reason = "unparseable crc trailer"
		p.collector.IncCRCMismatch()
		return
	}
	covered := append(append([]byte(nil), p.held.Raw...), '\n')
	if got := zephyr.CRC16(covered); got != want {
		msg.Reason = "crc mismatch"
		p.held.Reason = "crc mismatch"
		p.collector.IncCRCMismatch()
		p.logger.Warn("crc mismatch", map[string]any{
			"seq":      msg.Seq,
			"expected": want,
			"computed": got,
			"kind":     string(p.held.Kind),
		})
	}
}

// acknowledge runs the auto-ack path for command messages.
func (p *Pipeline) acknowledge(ctx context.Context, msg *types.Message) {
	id, err := p.responder.CommandReceived(msg)
	if err != nil {
		p.logger.Error("ack synthesis failed", map[string]any{
			"seq":   msg.Seq,
			"kind":  string(msg.Kind),
			"error": err.Error(),
		})
		return
	}
	if id == "" {
		return
	}

	payload, err := p.responder.Send(ctx, id)
	if err != nil {
		p.collector.IncAckFailure()
		p.collector.IncTransmitFailure()
		p.logger.Error("ack transmit failed", map[string]any{
			"seq":      msg.Seq,
			"kind":     string(msg.Kind),
			"instance": id,
			"error":    err.Error(),
		})
		return
	}
	p.collector.IncAckSent()

	ackKind, _ := msg.Kind.AckFor()
	if err := p.sink.RecordSent(ctx, ackKind, payload); err != nil {
		p.collector.IncSinkFailure()
		p.logger.Error("sink record of sent ack failed", map[string]any{
			"seq":   msg.Seq,
			"kind":  string(ackKind),
			"error": err.Error(),
		})
	}
}

// Run reads the transport until EOF, context cancellation or Close,
// ingesting as bytes arrive.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if ingestErr := p.Ingest(ctx, buf[:n]); ingestErr != nil {
				return ingestErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Shutdown closes the transport to unblock this read; report
			// the cancellation, not the port error it provoked.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// Buffered reports bytes held by the scanner awaiting a frame boundary.
func (p *Pipeline) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scanner.Buffered()
}

// Close stops intake, releases any held XML message, abandons pending
// acknowledgments, finalizes the sink and returns the session summary.
// Incomplete acks are warnings, not errors.
func (p *Pipeline) Close() (Summary, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Summary{Metrics: p.collector.Snapshot()}, nil
	}
	p.releaseHeld(context.Background(), nil)
	p.closed = true
	p.mu.Unlock()

	incomplete := p.responder.Close()
	for _, inc := range incomplete {
		p.logger.Warn("incomplete acknowledgment", map[string]any{
			"instance": inc.InstanceID,
			"kind":     string(inc.CommandKind),
			"seq":      inc.Seq,
		})
	}

	err := p.sink.Close()
	return Summary{
		Incomplete: incomplete,
		Metrics:    p.collector.Snapshot(),
	}, err
}
