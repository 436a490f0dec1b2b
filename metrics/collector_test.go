package metrics

import (
	"sync"
	"testing"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("LPC", "sess-1")

	c.AddBytes(100)
	c.IncFrame()
	c.IncFrame()
	c.IncMessage("command_s")
	c.IncMessage("debug")
	c.IncMessage("malformed")
	c.AddTelemetryBytes(64)
	c.IncAckSent()
	c.IncSinkFailure()
	c.IncCRCMismatch()

	snap := c.Snapshot()
	if snap.BytesIngested != 100 {
		t.Errorf("bytes = %d", snap.BytesIngested)
	}
	if snap.FramesScanned != 2 {
		t.Errorf("frames = %d", snap.FramesScanned)
	}
	if snap.MessagesByKind["command_s"] != 1 || snap.MessagesByKind["debug"] != 1 {
		t.Errorf("by kind = %v", snap.MessagesByKind)
	}
	if snap.Malformed != 1 {
		t.Errorf("malformed = %d", snap.Malformed)
	}
	if snap.TelemetryBytes != 64 {
		t.Errorf("telemetry bytes = %d", snap.TelemetryBytes)
	}
	if snap.AcksSent != 1 || snap.SinkFailures != 1 || snap.CRCMismatches != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Instrument != "LPC" || snap.SessionID != "sess-1" {
		t.Errorf("dimensions = %q %q", snap.Instrument, snap.SessionID)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	c := NewCollector("LPC", "sess-1")
	c.IncMessage("debug")

	snap := c.Snapshot()
	snap.MessagesByKind["debug"] = 99

	if c.Snapshot().MessagesByKind["debug"] != 1 {
		t.Error("snapshot map is not a copy")
	}
}

func TestNilCollectorSafe(t *testing.T) {
	var c *Collector
	c.AddBytes(1)
	c.IncFrame()
	c.IncMessage("debug")
	c.IncAckSent()
	c.IncAckFailure()
	c.IncSinkFailure()
	c.IncTransmitFailure()
	c.IncCRCMismatch()
	c.AddTelemetryBytes(1)

	snap := c.Snapshot()
	if snap.FramesScanned != 0 {
		t.Errorf("nil collector snapshot = %+v", snap)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	c := NewCollector("LPC", "sess-1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncFrame()
				c.IncMessage("debug")
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.FramesScanned != 800 || snap.MessagesByKind["debug"] != 800 {
		t.Errorf("frames = %d, debug = %d", snap.FramesScanned, snap.MessagesByKind["debug"])
	}
}
