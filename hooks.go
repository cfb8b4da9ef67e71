package mqtt

import (
	"context"
	"io"
	"log/slog"

	"github.com/nimblemq/mqtt/internal/packets"
)

// Hooks lets a client-side or server-side endpoint observe protocol events
// without touching Handler internals. Every field defaults to a log-only
// callback, except OnUnsubscribe, whose default also returns an UNSUBACK
// for the handler to send; set the ones relevant to your role (subscription matching,
// retained-message storage, and authentication all live here, outside the
// core).
type Hooks struct {
	OnConnect          func(ctx context.Context, pkt *packets.ConnectPacket)
	OnConnack          func(ctx context.Context, pkt *packets.ConnackPacket)
	OnSubscribe        func(ctx context.Context, pkt *packets.SubscribePacket) *packets.SubackPacket
	OnUnsubscribe      func(ctx context.Context, pkt *packets.UnsubscribePacket) *packets.UnsubackPacket
	OnSuback           func(ctx context.Context, pkt *packets.SubackPacket)
	OnUnsuback         func(ctx context.Context, pkt *packets.UnsubackPacket)
	OnPingreq          func(ctx context.Context, pkt *packets.PingreqPacket)
	OnPingresp         func(ctx context.Context, pkt *packets.PingrespPacket)
	OnDisconnect       func(ctx context.Context, pkt *packets.DisconnectPacket)
	OnConnectionClosed func(err error)
	OnReadTimeout      func()
	OnWriteTimeout     func()
}

// DefaultHooks returns a Hooks whose every callback logs at debug level and
// takes no other action, except OnUnsubscribe, which also returns an
// UNSUBACK carrying the UNSUBSCRIBE's packet id. logger must not be nil; use slog.New(slog.NewTextHandler(io.Discard, nil))
// to silence it entirely.
func DefaultHooks(logger *slog.Logger) *Hooks {
	return &Hooks{
		OnConnect: func(_ context.Context, pkt *packets.ConnectPacket) {
			logger.Debug("handle_connect", "client_id", pkt.ClientID)
		},
		OnConnack: func(_ context.Context, pkt *packets.ConnackPacket) {
			logger.Debug("handle_connack", "return_code", pkt.ReturnCode)
		},
		OnSubscribe: func(_ context.Context, pkt *packets.SubscribePacket) *packets.SubackPacket {
			logger.Debug("handle_subscribe", "topics", pkt.Topics)
			return nil
		},
		OnUnsubscribe: func(_ context.Context, pkt *packets.UnsubscribePacket) *packets.UnsubackPacket {
			logger.Debug("handle_unsubscribe", "topics", pkt.Topics)
			return &packets.UnsubackPacket{PacketID: pkt.PacketID}
		},
		OnSuback: func(_ context.Context, pkt *packets.SubackPacket) {
			logger.Debug("handle_suback", "packet_id", pkt.PacketID)
		},
		OnUnsuback: func(_ context.Context, pkt *packets.UnsubackPacket) {
			logger.Debug("handle_unsuback", "packet_id", pkt.PacketID)
		},
		OnPingreq: func(_ context.Context, _ *packets.PingreqPacket) {
			logger.Debug("handle_pingreq")
		},
		OnPingresp: func(_ context.Context, _ *packets.PingrespPacket) {
			logger.Debug("handle_pingresp")
		},
		OnDisconnect: func(_ context.Context, _ *packets.DisconnectPacket) {
			logger.Debug("handle_disconnect")
		},
		OnConnectionClosed: func(err error) {
			logger.Debug("handle_connection_closed", "error", err)
		},
		OnReadTimeout: func() {
			logger.Debug("handle_read_timeout")
		},
		OnWriteTimeout: func() {
			logger.Debug("handle_write_timeout")
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
