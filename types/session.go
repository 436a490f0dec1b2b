package types

import "time"

// Known instrument identifiers for the Strateole-2 payloads.
var Instruments = []string{"RATS", "LPC", "RACHUTS", "FLOATS"}

// InstrumentModes are the flight modes accepted by the IM message.
var InstrumentModes = []string{"SB", "FL", "LP", "SA", "EF"}

// SessionContext is the immutable per-session state shared read-only by
// every pipeline component. Created once at session start; never mutated
// during the session, so it may be read concurrently without
// synchronization.
type SessionContext struct {
	// Instrument is the instrument under test (e.g. "LPC").
	Instrument string
	// SessionID uniquely identifies this session.
	SessionID string
	// StartTime is the session start timestamp.
	StartTime time.Time
	// AutoAck enables synthesized acknowledgment of incoming commands.
	AutoAck bool
}

// ValidInstrument reports whether name is a known instrument identifier.
func ValidInstrument(name string) bool {
	for _, i := range Instruments {
		if i == name {
			return true
		}
	}
	return false
}

// ValidMode reports whether mode is a known instrument mode.
func ValidMode(mode string) bool {
	for _, m := range InstrumentModes {
		if m == mode {
			return true
		}
	}
	return false
}
