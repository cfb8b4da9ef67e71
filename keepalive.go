package mqtt

import "time"

// armWriteTimer starts the write-side keep-alive timer if keep-alive is
// enabled. Call with writeMu held is not required here since this only
// runs once, before any sendPacket can race it, but resetWriteTimerLocked
// below must be called with writeMu held.
func (h *Handler) armWriteTimer() {
	if h.keepAlive <= 0 {
		return
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.writeTimer = time.AfterFunc(h.keepAlive, h.onWriteTimeout)
}

// resetWriteTimerLocked cancels and reschedules the write-side keep-alive
// timer. Every successful sendPacket calls this, per the spec: the timer
// tracks silence on the write side regardless of which flow produced the
// last packet. Caller must hold writeMu.
func (h *Handler) resetWriteTimerLocked() {
	if h.writeTimer == nil {
		return
	}
	h.writeTimer.Reset(h.keepAlive)
}

// onWriteTimeout runs when no packet has been written for keepAlive
// seconds. Per the spec, this core does not itself send PINGREQ on the
// write side — that is unique to client-role callers, via Hooks.
func (h *Handler) onWriteTimeout() {
	h.hooks.OnWriteTimeout()
}
