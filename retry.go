package mqtt

import (
	"context"

	"github.com/nimblemq/mqtt/internal/packets"
)

// retryDeliveries resumes every unacknowledged outgoing message left in
// the session from a prior connection, walking inflight_out in ascending
// packet-id order to keep behavior deterministic. Already-acknowledged
// entries (possible if a terminal ack raced session teardown) are simply
// dropped. Every other entry gets its retransmission (PUBLISH with
// DUP=true, or PUBREL for a QoS-2 flow whose PUBREC is already recorded)
// sent synchronously, in id order, before Start returns — only the remainder of
// each flow (awaiting the next ack) is handed to a background goroutine,
// so resuming many messages does not serialize their round-trip latency.
func (h *Handler) retryDeliveries(ctx context.Context) error {
	for _, app := range h.session.outgoingSnapshot() {
		if app.acknowledged() {
			h.forgetOutgoing(app.PacketID)
			continue
		}

		switch app.QoS {
		case AtLeastOnce:
			if err := h.resumeQoS1(ctx, app); err != nil {
				return err
			}
		case ExactlyOnce:
			if app.PubrecPacket == nil {
				if err := h.resumeQoS2PhaseA(ctx, app); err != nil {
					return err
				}
			} else {
				if err := h.resumeQoS2PhaseB(ctx, app); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (h *Handler) resumeQoS1(ctx context.Context, app *ApplicationMessage) error {
	slot, err := h.session.waiters.register(ackPuback, app.PacketID)
	if err != nil {
		return err
	}

	app.PublishPacket.Dup = true
	app.Dup = true
	if err := h.sendPacket(ctx, app.PublishPacket); err != nil {
		h.session.waiters.cancel(ackPuback, app.PacketID)
		return err
	}

	h.group.Go(func() error {
		ackCtx, cancel := context.WithTimeout(ctx, h.ackTimeout)
		defer cancel()
		if err := h.awaitAck(ackCtx, ackPuback, app.PacketID, slot, func(pkt packets.Packet) {
			app.PubackPacket = pkt.(*packets.PubackPacket)
		}); err != nil {
			h.logger.Debug("resumed QoS1 publish did not complete", "packet_id", app.PacketID, "error", err)
			return nil
		}
		h.forgetOutgoing(app.PacketID)
		return nil
	})
	return nil
}

func (h *Handler) resumeQoS2PhaseA(ctx context.Context, app *ApplicationMessage) error {
	slot, err := h.session.waiters.register(ackPubrec, app.PacketID)
	if err != nil {
		return err
	}

	app.PublishPacket.Dup = true
	app.Dup = true
	if err := h.sendPacket(ctx, app.PublishPacket); err != nil {
		h.session.waiters.cancel(ackPubrec, app.PacketID)
		return err
	}

	h.group.Go(func() error {
		ackCtx, cancel := context.WithTimeout(ctx, h.ackTimeout)
		defer cancel()
		if err := h.awaitAck(ackCtx, ackPubrec, app.PacketID, slot, func(pkt packets.Packet) {
			app.PubrecPacket = pkt.(*packets.PubrecPacket)
		}); err != nil {
			h.logger.Debug("resumed QoS2 publish did not reach pubrec", "packet_id", app.PacketID, "error", err)
			return nil
		}
		h.persistOutgoing(app)
		if err := h.runQoS2PhaseB(ctx, app); err != nil {
			h.logger.Debug("resumed QoS2 publish did not complete", "packet_id", app.PacketID, "error", err)
			return nil
		}
		h.forgetOutgoing(app.PacketID)
		return nil
	})
	return nil
}

func (h *Handler) resumeQoS2PhaseB(ctx context.Context, app *ApplicationMessage) error {
	slot, err := h.session.waiters.register(ackPubcomp, app.PacketID)
	if err != nil {
		return err
	}

	pubrel := &packets.PubrelPacket{PacketID: app.PacketID}
	app.PubrelPacket = pubrel
	if err := h.sendPacket(ctx, pubrel); err != nil {
		h.session.waiters.cancel(ackPubcomp, app.PacketID)
		return err
	}

	h.group.Go(func() error {
		ackCtx, cancel := context.WithTimeout(ctx, h.ackTimeout)
		defer cancel()
		if err := h.awaitAck(ackCtx, ackPubcomp, app.PacketID, slot, func(pkt packets.Packet) {
			app.PubcompPacket = pkt.(*packets.PubcompPacket)
		}); err != nil {
			h.logger.Debug("resumed QoS2 publish did not complete", "packet_id", app.PacketID, "error", err)
			return nil
		}
		h.forgetOutgoing(app.PacketID)
		return nil
	})
	return nil
}
