package mqtt

import (
	"context"

	"github.com/nimblemq/mqtt/internal/packets"
)

// handlePuback completes the waiter an outbound QoS-1 publish is
// suspended on. A missing or already-fulfilled waiter is logged and
// discarded — either a late ack after the publish call timed out, or a
// duplicate PUBACK from a misbehaving or retrying peer.
func (h *Handler) handlePuback(p *packets.PubackPacket) {
	if err := h.session.waiters.fulfill(ackPuback, p.PacketID, p); err != nil {
		h.logger.Debug("unknown pending message for puback", "packet_id", p.PacketID, "error", err)
	}
}

// handlePubrec completes phase A of an outbound QoS-2 publish.
func (h *Handler) handlePubrec(ctx context.Context, p *packets.PubrecPacket) {
	if err := h.session.waiters.fulfill(ackPubrec, p.PacketID, p); err != nil {
		h.logger.Debug("unknown pending message for pubrec", "packet_id", p.PacketID, "error", err)
	}
}

// handlePubrelAck completes the waiter the inbound QoS-2 receive flow is
// suspended on after sending PUBREC.
func (h *Handler) handlePubrelAck(p *packets.PubrelPacket) {
	if err := h.session.waiters.fulfill(ackPubrel, p.PacketID, p); err != nil {
		h.logger.Debug("unknown pending message for pubrel", "packet_id", p.PacketID, "error", err)
	}
}

// handlePubcomp completes phase B of an outbound QoS-2 publish.
func (h *Handler) handlePubcomp(p *packets.PubcompPacket) {
	if err := h.session.waiters.fulfill(ackPubcomp, p.PacketID, p); err != nil {
		h.logger.Debug("unknown pending message for pubcomp", "packet_id", p.PacketID, "error", err)
	}
}

// handleInboundPublish runs the receive side of the QoS 0/1/2 flows for a
// PUBLISH arriving from the peer. It always runs in a spawned goroutine
// (never the reader loop itself) because the QoS-2 path suspends awaiting
// a PUBREL that only the reader can deliver.
func (h *Handler) handleInboundPublish(ctx context.Context, p *packets.PublishPacket) {
	msg := Message{Topic: p.Topic, Payload: p.Payload, QoS: QoS(p.QoS), Retain: p.Retain}

	switch QoS(p.QoS) {
	case AtMostOnce:
		if p.Dup {
			h.logger.Warn("dup flag set on QoS 0 publish, dropping", "topic", p.Topic)
			return
		}
		h.session.deliver(msg)

	case AtLeastOnce:
		h.session.deliver(msg)
		if err := h.sendPacket(ctx, &packets.PubackPacket{PacketID: p.PacketID}); err != nil {
			h.logger.Debug("failed to send puback", "packet_id", p.PacketID, "error", err)
		}

	case ExactlyOnce:
		h.handleInboundQoS2Publish(ctx, p, msg)

	default:
		h.logger.Warn("invalid QoS on inbound publish", "qos", p.QoS)
	}
}

func (h *Handler) handleInboundQoS2Publish(ctx context.Context, p *packets.PublishPacket, msg Message) {
	if _, exists := h.session.getIncoming(p.PacketID); exists {
		// Duplicate PUBLISH for a flow already open: the PUBREC was already
		// sent and a PUBREL waiter already registered. Re-send PUBREC in
		// case the peer's retry means its first one was lost, then return
		// without re-registering (which would be a duplicate waiter).
		if err := h.sendPacket(ctx, &packets.PubrecPacket{PacketID: p.PacketID}); err != nil {
			h.logger.Debug("failed to resend pubrec", "packet_id", p.PacketID, "error", err)
		}
		return
	}

	incoming := &ApplicationMessage{
		PacketID:  p.PacketID,
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       ExactlyOnce,
		Retain:    p.Retain,
		Direction: Incoming,
	}
	h.session.putIncoming(incoming)

	slot, err := h.session.waiters.register(ackPubrel, p.PacketID)
	if err != nil {
		h.logger.Warn("duplicate pubrel waiter, aborting inbound QoS2 flow", "packet_id", p.PacketID, "error", err)
		h.session.deleteIncoming(p.PacketID)
		return
	}

	if err := h.sendPacket(ctx, &packets.PubrecPacket{PacketID: p.PacketID}); err != nil {
		h.logger.Debug("failed to send pubrec", "packet_id", p.PacketID, "error", err)
		h.session.waiters.cancel(ackPubrel, p.PacketID)
		h.session.deleteIncoming(p.PacketID)
		return
	}

	if _, ok := <-slot; !ok {
		// Waiter was cancelled (stop-for-resume or session reset), not
		// fulfilled by a PUBREL. inflightIn is left as-is: a subsequent
		// Start on this session re-registers and resumes the wait.
		return
	}

	h.session.deliver(msg)
	h.session.deleteIncoming(p.PacketID)

	if err := h.sendPacket(ctx, &packets.PubcompPacket{PacketID: p.PacketID}); err != nil {
		h.logger.Debug("failed to send pubcomp", "packet_id", p.PacketID, "error", err)
	}
}

// resumeInboundFlows re-arms a PUBREL waiter for every QoS-2 receive flow
// left in inflightIn from a prior connection on this session (left there by
// a Stop that abandoned, but did not forget, the flow) and waits for each in
// its own goroutine so a PUBREL that arrives on this connection can still
// complete the delivery and PUBCOMP.
func (h *Handler) resumeInboundFlows(ctx context.Context) {
	for _, app := range h.session.incomingSnapshot() {
		app := app
		slot, err := h.session.waiters.register(ackPubrel, app.PacketID)
		if err != nil {
			h.logger.Warn("failed to re-arm pubrel waiter on resume", "packet_id", app.PacketID, "error", err)
			continue
		}
		msg := app.toMessage()
		h.group.Go(func() error {
			if _, ok := <-slot; !ok {
				return nil
			}
			h.session.deliver(msg)
			h.session.deleteIncoming(app.PacketID)
			if err := h.sendPacket(ctx, &packets.PubcompPacket{PacketID: app.PacketID}); err != nil {
				h.logger.Debug("failed to send pubcomp on resume", "packet_id", app.PacketID, "error", err)
			}
			return nil
		})
	}
}
