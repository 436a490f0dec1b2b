// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single session. It is a
// leaf package with no internal dependencies; the pipeline absorbs the
// final snapshot into the session summary at close.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the session counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Stream
	BytesIngested int64
	FramesScanned int64

	// Classification
	MessagesByKind map[string]int64
	Malformed      int64
	CRCMismatches  int64
	TelemetryBytes int64

	// Acknowledgment
	AcksSent    int64
	AckFailures int64

	// Collaborators
	SinkFailures     int64
	TransmitFailures int64

	// Dimensions (informational, set at construction)
	Instrument string
	SessionID  string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	bytesIngested  int64
	framesScanned  int64
	messagesByKind map[string]int64
	malformed      int64
	crcMismatches  int64
	telemetryBytes int64
	acksSent       int64
	ackFailures    int64
	sinkFailures   int64
	transmitFails  int64

	instrument string
	sessionID  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(instrument, sessionID string) *Collector {
	return &Collector{
		messagesByKind: make(map[string]int64),
		instrument:     instrument,
		sessionID:      sessionID,
	}
}

// AddBytes records ingested stream bytes.
func (c *Collector) AddBytes(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesIngested += int64(n)
	c.mu.Unlock()
}

// IncFrame records a scanned frame.
func (c *Collector) IncFrame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesScanned++
	c.mu.Unlock()
}

// IncMessage records a classified message by kind.
func (c *Collector) IncMessage(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.messagesByKind[kind]++
	if kind == "malformed" {
		c.malformed++
	}
	c.mu.Unlock()
}

// AddTelemetryBytes records archived telemetry payload bytes.
func (c *Collector) AddTelemetryBytes(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.telemetryBytes += int64(n)
	c.mu.Unlock()
}

// IncCRCMismatch records a failed CRC verification.
func (c *Collector) IncCRCMismatch() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.crcMismatches++
	c.mu.Unlock()
}

// IncAckSent records a successfully submitted acknowledgment.
func (c *Collector) IncAckSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.acksSent++
	c.mu.Unlock()
}

// IncAckFailure records a failed acknowledgment submission.
func (c *Collector) IncAckFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ackFailures++
	c.mu.Unlock()
}

// IncSinkFailure records a failed sink write.
func (c *Collector) IncSinkFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkFailures++
	c.mu.Unlock()
}

// IncTransmitFailure records a failed transport write.
func (c *Collector) IncTransmitFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transmitFails++
	c.mu.Unlock()
}

// Snapshot returns an atomic copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{MessagesByKind: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.messagesByKind))
	for k, v := range c.messagesByKind {
		byKind[k] = v
	}
	return Snapshot{
		BytesIngested:    c.bytesIngested,
		FramesScanned:    c.framesScanned,
		MessagesByKind:   byKind,
		Malformed:        c.malformed,
		CRCMismatches:    c.crcMismatches,
		TelemetryBytes:   c.telemetryBytes,
		AcksSent:         c.acksSent,
		AckFailures:      c.ackFailures,
		SinkFailures:     c.sinkFailures,
		TransmitFailures: c.transmitFails,
		Instrument:       c.instrument,
		SessionID:        c.sessionID,
	}
}
