// Package ack implements the acknowledgment state machine.
//
// Each incoming command occurrence cycles an independent instance
// through Idle -> AwaitingSend -> Sent -> Idle. Instances are keyed by
// generated identifiers rather than per-kind flags, so concurrent
// in-flight commands of the same kind never interfere.
package ack

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stratocore/obcsim/types"
	"github.com/stratocore/obcsim/zephyr"
)

// State is the per-instance acknowledgment state.
type State int

const (
	// Idle: no acknowledgment pending for this instance.
	Idle State = iota
	// AwaitingSend: command received, ack synthesized but not yet
	// accepted by the transmit queue.
	AwaitingSend
	// Sent: ack accepted by the transmit queue. Terminal; the instance
	// is removed from pending and StateOf reports Idle.
	Sent
)

func (s State) String() string {
	switch s {
	case AwaitingSend:
		return "awaiting_send"
	case Sent:
		return "sent"
	default:
		return "idle"
	}
}

// Submitter accepts outbound byte sequences for ordered transmission.
// Satisfied by transmit.Queue.
type Submitter interface {
	Submit(ctx context.Context, data []byte) error
}

// instance is one in-flight command acknowledgment.
type instance struct {
	id      string
	command types.MessageKind
	seq     int64
	state   State
	payload []byte
}

// Responder synthesizes acknowledgments for classified commands.
// AckState is owned exclusively by the Responder; no other component
// mutates it.
type Responder struct {
	session types.SessionContext
	builder *zephyr.Builder
	queue   Submitter

	mu      sync.Mutex
	pending map[string]*instance
	closed  bool
	sent    int64
}

// NewResponder creates a Responder for one session. The builder supplies
// protocol-correct ack messages; the queue receives them in order.
func NewResponder(session types.SessionContext, builder *zephyr.Builder, queue Submitter) *Responder {
	return &Responder{
		session: session,
		builder: builder,
		queue:   queue,
		pending: make(map[string]*instance),
	}
}

// CommandReceived registers an incoming command and synthesizes its
// acknowledgment, transitioning a fresh instance to AwaitingSend.
// Returns ("", nil) when auto-ack is disabled or the message is not a
// command: the responder performs no transitions in those cases.
func (r *Responder) CommandReceived(msg *types.Message) (string, error) {
	if !r.session.AutoAck || !msg.Kind.IsCommand() {
		return "", nil
	}

	ackKind, ok := msg.Kind.AckFor()
	if !ok {
		return "", fmt.Errorf("no ack kind for %s", msg.Kind)
	}
	payload, err := r.builder.BuildAck(ackKind, "ACK")
	if err != nil {
		return "", err
	}

	inst := &instance{
		id:      uuid.New().String(),
		command: msg.Kind,
		seq:     msg.Seq,
		state:   AwaitingSend,
		payload: payload,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", fmt.Errorf("responder closed")
	}
	r.pending[inst.id] = inst
	return inst.id, nil
}

// Send submits the synthesized ack for an instance to the transmit
// queue. On success the instance is complete and removed from pending;
// StateOf reports it Idle. On failure the instance remains
// AwaitingSend and the error is surfaced; retry policy belongs to the
// transport collaborator, not here.
func (r *Responder) Send(ctx context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	inst, ok := r.pending[id]
	if !ok || r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("no pending ack instance %q", id)
	}
	payload := inst.payload
	r.mu.Unlock()

	// Submission happens outside the lock; the queue serializes writes.
	if err := r.queue.Submit(ctx, payload); err != nil {
		return nil, &types.TransmitError{Err: err}
	}

	r.mu.Lock()
	delete(r.pending, id)
	r.sent++
	r.mu.Unlock()
	return payload, nil
}

// StateOf reports the state of an instance. Completed or unknown
// instances are Idle.
func (r *Responder) StateOf(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.pending[id]; ok {
		return inst.state
	}
	return Idle
}

// Sent returns the number of acknowledgments accepted by the queue.
func (r *Responder) Sent() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Close abandons all instances still AwaitingSend and reports them as
// incomplete-ack conditions. After Close no instance can be sent: an
// ack must never be transmitted after the session log has been closed.
func (r *Responder) Close() []types.IncompleteAck {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	var incomplete []types.IncompleteAck
	for id, inst := range r.pending {
		incomplete = append(incomplete, types.IncompleteAck{
			InstanceID:  id,
			CommandKind: inst.command,
			Seq:         inst.seq,
		})
		delete(r.pending, id)
	}
	return incomplete
}
