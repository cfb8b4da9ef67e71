package mqtt

import (
	"sync"

	"github.com/nimblemq/mqtt/internal/packets"
)

// ackKind identifies which acknowledgement packet type a waiter is
// registered for.
type ackKind uint8

const (
	ackPuback ackKind = iota
	ackPubrec
	ackPubrel
	ackPubcomp
)

// waiterSlot is a single-shot rendezvous: the flow that registers it
// suspends on recv, and the reader loop fulfills it with the packet that
// arrived. Buffered to size 1 so fulfill never blocks on a cancelled or
// abandoned waiter.
type waiterSlot chan packets.Packet

// waiterRegistry maps pending packet id -> one-shot notification slot, one
// map per acknowledgement kind so a lookup for one kind never contends
// with another. At most one waiter exists per (packet id, kind) at a time.
type waiterRegistry struct {
	mu      [4]sync.Mutex
	waiters [4]map[uint16]waiterSlot
}

func newWaiterRegistry() *waiterRegistry {
	r := &waiterRegistry{}
	for i := range r.waiters {
		r.waiters[i] = make(map[uint16]waiterSlot)
	}
	return r
}

// register creates a waiter for (id, kind). It returns ErrFlowDuplicate if
// one already exists, which the spec treats as a fatal protocol misuse for
// the flow attempting registration.
func (r *waiterRegistry) register(kind ackKind, id uint16) (waiterSlot, error) {
	r.mu[kind].Lock()
	defer r.mu[kind].Unlock()

	if _, exists := r.waiters[kind][id]; exists {
		return nil, ErrFlowDuplicate
	}
	slot := make(waiterSlot, 1)
	r.waiters[kind][id] = slot
	return slot, nil
}

// fulfill delivers pkt to the waiter registered for (id, kind), if any.
// A missing waiter yields ErrUnknownAck (a late ack after flow timeout, or
// a duplicate ack: fulfill removes the waiter, so a second ack for the same
// id finds none; logged and discarded by the caller). A slot that already
// holds a value yields ErrStaleAck.
func (r *waiterRegistry) fulfill(kind ackKind, id uint16, pkt packets.Packet) error {
	r.mu[kind].Lock()
	slot, exists := r.waiters[kind][id]
	if exists {
		delete(r.waiters[kind], id)
	}
	r.mu[kind].Unlock()

	if !exists {
		return ErrUnknownAck
	}

	select {
	case slot <- pkt:
		return nil
	default:
		// Slot already holds a value (should not happen under the
		// invariant above, since fulfill removes the entry). A closed slot
		// is never reached here: cancel removes the entry before closing it.
		return ErrStaleAck
	}
}

// cancel removes the waiter for (id, kind), closing its slot so a goroutine
// suspended on a bare receive wakes with ok=false rather than hanging
// forever. Used for abandonment on ack timeout, on stop-for-resume, and on
// session reset. It is a no-op if no waiter is registered. Safe to call
// concurrently with fulfill for the same (kind, id): both hold the same
// per-kind mutex while removing the map entry, so a slot is never closed
// after fulfill has already sent a value into it.
func (r *waiterRegistry) cancel(kind ackKind, id uint16) {
	r.mu[kind].Lock()
	if slot, exists := r.waiters[kind][id]; exists {
		delete(r.waiters[kind], id)
		close(slot)
	}
	r.mu[kind].Unlock()
}

// cancelAll drops and closes every waiter of the given kind, used when
// resetting session state for a clean session.
func (r *waiterRegistry) cancelAll(kind ackKind) {
	r.mu[kind].Lock()
	for id, slot := range r.waiters[kind] {
		delete(r.waiters[kind], id)
		close(slot)
	}
	r.mu[kind].Unlock()
}
