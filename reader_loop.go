package mqtt

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/nimblemq/mqtt/internal/packets"
)

// timeoutError is implemented by net.Error (and similar deadline-aware
// errors); a non-nil match means the read simply timed out, which the
// spec treats as a soft event for the keep-alive policy rather than a
// transport failure.
type timeoutError interface {
	Timeout() bool
}

// readerLoop runs for the life of the connection: it reads one packet at a
// time, dispatches it, and enforces the read-side keep-alive. Ack packets
// are handled synchronously, in this goroutine, so they can never suspend
// on further I/O; flow-initiating packets are spawned onto group so that a
// blocking QoS-2 receive flow cannot starve the reader.
func (h *Handler) readerLoop(ctx context.Context) {
	defer close(h.stopped)

	deadlineConn, hasDeadline := h.reader.(deadlineSetter)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if hasDeadline && h.keepAlive > 0 {
			_ = deadlineConn.SetReadDeadline(time.Now().Add(h.keepAlive))
		}

		pkt, err := packets.ReadPacket(h.reader, h.maxIncomingPacket)
		if err != nil {
			var te timeoutError
			if errors.As(err, &te) && te.Timeout() {
				h.hooks.OnReadTimeout()
				continue
			}
			if errors.Is(err, io.EOF) {
				h.hooks.OnConnectionClosed(nil)
				return
			}
			var reserved *packets.ReservedPacketTypeError
			if errors.As(err, &reserved) {
				h.logger.Warn("reserved packet type received, closing connection", "type", reserved.PacketType)
				if cerr := h.writer.Close(); cerr != nil {
					h.logger.Debug("failed to close writer", "error", cerr)
				}
				h.hooks.OnConnectionClosed(&ProtocolError{PacketType: reserved.PacketType, Reason: "reserved packet type"})
				return
			}
			h.logger.Debug("reader loop stopped", "error", err)
			h.hooks.OnConnectionClosed(err)
			return
		}

		if hasDeadline && h.keepAlive > 0 {
			_ = deadlineConn.SetReadDeadline(time.Time{})
		}

		h.eventBus.FireReceived(ctx, pkt, h.session)

		if h.dispatchAck(ctx, pkt) {
			continue
		}

		h.group.Go(func() error {
			h.dispatchFlow(ctx, pkt)
			return nil
		})
	}
}

// dispatchAck handles acknowledgement and other non-suspending packet
// types synchronously. It reports whether pkt was one of those types; a
// false result means the caller must spawn a flow goroutine instead.
func (h *Handler) dispatchAck(ctx context.Context, pkt packets.Packet) bool {
	switch p := pkt.(type) {
	case *packets.PubackPacket:
		h.handlePuback(p)
	case *packets.PubrecPacket:
		h.handlePubrec(ctx, p)
	case *packets.PubrelPacket:
		h.handlePubrelAck(p)
	case *packets.PubcompPacket:
		h.handlePubcomp(p)
	case *packets.SubackPacket:
		h.hooks.OnSuback(ctx, p)
	case *packets.UnsubackPacket:
		h.hooks.OnUnsuback(ctx, p)
	case *packets.ConnackPacket:
		h.hooks.OnConnack(ctx, p)
	case *packets.PingrespPacket:
		h.hooks.OnPingresp(ctx, p)
	default:
		return false
	}
	return true
}

// dispatchFlow runs a flow-initiating packet's handler. It is always
// invoked from a spawned goroutine, so it may suspend (e.g. the inbound
// QoS-2 flow awaiting a PUBREL from this very reader) without blocking
// readerLoop.
func (h *Handler) dispatchFlow(ctx context.Context, pkt packets.Packet) {
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		h.handleInboundPublish(ctx, p)
	case *packets.SubscribePacket:
		h.handleSubscribe(ctx, p)
	case *packets.UnsubscribePacket:
		h.handleUnsubscribe(ctx, p)
	case *packets.PingreqPacket:
		h.handlePingreq(ctx, p)
	case *packets.ConnectPacket:
		h.hooks.OnConnect(ctx, p)
	case *packets.DisconnectPacket:
		h.hooks.OnDisconnect(ctx, p)
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, p *packets.SubscribePacket) {
	suback := h.hooks.OnSubscribe(ctx, p)
	if suback == nil {
		return
	}
	if err := h.sendPacket(ctx, suback); err != nil {
		h.logger.Debug("failed to send suback", "error", err)
	}
}

func (h *Handler) handleUnsubscribe(ctx context.Context, p *packets.UnsubscribePacket) {
	unsuback := h.hooks.OnUnsubscribe(ctx, p)
	if unsuback == nil {
		return
	}
	if err := h.sendPacket(ctx, unsuback); err != nil {
		h.logger.Debug("failed to send unsuback", "error", err)
	}
}

func (h *Handler) handlePingreq(ctx context.Context, p *packets.PingreqPacket) {
	h.hooks.OnPingreq(ctx, p)
	if err := h.sendPacket(ctx, &packets.PingrespPacket{}); err != nil {
		h.logger.Debug("failed to send pingresp", "error", err)
	}
}
