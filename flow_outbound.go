package mqtt

import (
	"context"
	"errors"

	"github.com/nimblemq/mqtt/internal/packets"
)

// Publish sends topic/payload at the given QoS and, for QoS 1 and 2,
// suspends until the flow's terminal acknowledgement arrives or ctx /
// the handler's configured ack timeout elapses. On timeout the inflight
// entry is left in place so retryDeliveries can resume it after Start.
func (h *Handler) Publish(ctx context.Context, topic string, payload []byte, qos QoS, retain bool) (Message, error) {
	msg := Message{Topic: topic, Payload: payload, QoS: qos, Retain: retain}

	switch qos {
	case AtMostOnce:
		return msg, h.publishQoS0(ctx, msg)
	case AtLeastOnce:
		return msg, h.publishQoS1(ctx, msg)
	case ExactlyOnce:
		return msg, h.publishQoS2(ctx, msg)
	default:
		return msg, &ProtocolError{Reason: "invalid QoS for outbound publish"}
	}
}

func (h *Handler) publishQoS0(ctx context.Context, msg Message) error {
	pkt := &packets.PublishPacket{Topic: msg.Topic, Payload: msg.Payload, QoS: packets.QoS0, Retain: msg.Retain}
	return h.sendPacket(ctx, pkt)
}

func (h *Handler) publishQoS1(ctx context.Context, msg Message) error {
	id, err := h.session.nextPacketID()
	if err != nil {
		return err
	}

	ackCtx, cancel := context.WithTimeout(ctx, h.ackTimeout)
	defer cancel()

	slot, err := h.session.waiters.register(ackPuback, id)
	if err != nil {
		return err
	}

	app := &ApplicationMessage{
		PacketID:  id,
		Topic:     msg.Topic,
		Payload:   msg.Payload,
		QoS:       AtLeastOnce,
		Retain:    msg.Retain,
		Direction: Outgoing,
	}
	app.PublishPacket = &packets.PublishPacket{Topic: msg.Topic, Payload: msg.Payload, QoS: packets.QoS1, Retain: msg.Retain, PacketID: id}
	h.persistOutgoing(app)

	if err := h.sendPacket(ctx, app.PublishPacket); err != nil {
		h.session.waiters.cancel(ackPuback, id)
		return err
	}

	if err := h.awaitAck(ackCtx, ackPuback, id, slot, func(pkt packets.Packet) {
		app.PubackPacket = pkt.(*packets.PubackPacket)
	}); err != nil {
		return err
	}

	h.forgetOutgoing(id)
	return nil
}

func (h *Handler) publishQoS2(ctx context.Context, msg Message) error {
	id, err := h.session.nextPacketID()
	if err != nil {
		return err
	}

	app := &ApplicationMessage{
		PacketID:  id,
		Topic:     msg.Topic,
		Payload:   msg.Payload,
		QoS:       ExactlyOnce,
		Retain:    msg.Retain,
		Direction: Outgoing,
	}
	app.PublishPacket = &packets.PublishPacket{Topic: msg.Topic, Payload: msg.Payload, QoS: packets.QoS2, Retain: msg.Retain, PacketID: id}
	h.persistOutgoing(app)

	// One ack timeout bounds both phases together, not each phase.
	ctx, cancel := context.WithTimeout(ctx, h.ackTimeout)
	defer cancel()

	if err := h.runQoS2PhaseA(ctx, app); err != nil {
		return err
	}
	if err := h.runQoS2PhaseB(ctx, app); err != nil {
		return err
	}

	h.forgetOutgoing(id)
	return nil
}

// runQoS2PhaseA sends PUBLISH and awaits PUBREC, unless PUBREC has
// already been recorded (resume case, entered directly at phase B).
func (h *Handler) runQoS2PhaseA(ctx context.Context, app *ApplicationMessage) error {
	if app.PubrecPacket != nil {
		return nil
	}

	ackCtx, cancel := context.WithTimeout(ctx, h.ackTimeout)
	defer cancel()

	slot, err := h.session.waiters.register(ackPubrec, app.PacketID)
	if err != nil {
		return err
	}
	if err := h.sendPacket(ctx, app.PublishPacket); err != nil {
		h.session.waiters.cancel(ackPubrec, app.PacketID)
		return err
	}
	if err := h.awaitAck(ackCtx, ackPubrec, app.PacketID, slot, func(pkt packets.Packet) {
		app.PubrecPacket = pkt.(*packets.PubrecPacket)
	}); err != nil {
		return err
	}
	// Re-persist now that PubrecReceived is true, so a crash between here
	// and PUBCOMP resumes directly at phase B instead of re-sending PUBLISH.
	h.persistOutgoing(app)
	return nil
}

// runQoS2PhaseB sends PUBREL and awaits PUBCOMP, unless PUBCOMP has
// already been recorded.
func (h *Handler) runQoS2PhaseB(ctx context.Context, app *ApplicationMessage) error {
	if app.PubcompPacket != nil {
		return nil
	}

	ackCtx, cancel := context.WithTimeout(ctx, h.ackTimeout)
	defer cancel()

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
	return h.awaitAck(ackCtx, ackPubcomp, app.PacketID, slot, func(pkt packets.Packet) {
		app.PubcompPacket = pkt.(*packets.PubcompPacket)
	})
}

// awaitAck suspends on slot until it is fulfilled or ctx is done. On
// timeout/cancellation the waiter is removed (so a late ack becomes
// ErrUnknownAck rather than silently satisfying a future duplicate
// registration) but the inflight entry is left for the caller to retain.
func (h *Handler) awaitAck(ctx context.Context, kind ackKind, id uint16, slot waiterSlot, record func(packets.Packet)) error {
	select {
	case pkt, ok := <-slot:
		if !ok {
			return ErrFlowAborted
		}
		record(pkt)
		return nil
	case <-ctx.Done():
		h.session.waiters.cancel(kind, id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrFlowTimeout
		}
		return ctx.Err()
	}
}
