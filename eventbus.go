package mqtt

import (
	"context"
	"time"

	"github.com/nimblemq/mqtt/internal/packets"
)

// pluginDispatchTimeout is the deadline on the context handed to the
// awaited EventBus listeners of one dispatch. The dispatch still waits for
// every listener to return; a listener that ignores its context is not
// abandoned. Plugin misbehavior is not the protocol's responsibility.
const pluginDispatchTimeout = 2 * time.Second

// Observer receives a fire-and-forget notification of a packet crossing
// the wire. It runs in its own goroutine and can never delay protocol
// progress, unlike the awaited EventBus dispatch.
type Observer func(pkt packets.Packet, session *SessionState)

// EventBus fires awaited plugin events around packet traffic. Both methods
// must be safe to call from multiple goroutines (the reader loop calls
// FireReceived, and any flow goroutine may call FireSent).
type EventBus interface {
	// FireSent runs after a packet has been successfully written.
	FireSent(ctx context.Context, pkt packets.Packet, session *SessionState)
	// FireReceived runs after a packet has been decoded, before dispatch.
	FireReceived(ctx context.Context, pkt packets.Packet, session *SessionState)
}

// observerBus is the reference EventBus: a list of awaited plugin
// listeners dispatched with a bounded timeout, plus a list of fire-and-
// forget observers notified on both events without gating the caller.
type observerBus struct {
	listeners []func(ctx context.Context, event string, pkt packets.Packet, session *SessionState) error
	observers []Observer
	onFailure func(err error)
}

// NewEventBus builds an EventBus with no listeners or observers attached;
// use AddListener and AddObserver to wire plugins in.
func NewEventBus(onFailure func(err error)) *observerBus {
	if onFailure == nil {
		onFailure = func(error) {}
	}
	return &observerBus{onFailure: onFailure}
}

// AddListener registers an awaited plugin callback for both "sent" and
// "received" events; its context carries the pluginDispatchTimeout
// deadline shared by all listeners of that dispatch.
func (b *observerBus) AddListener(fn func(ctx context.Context, event string, pkt packets.Packet, session *SessionState) error) {
	b.listeners = append(b.listeners, fn)
}

// AddObserver registers a fire-and-forget observer, notified of both
// events without ever blocking the protocol loop.
func (b *observerBus) AddObserver(obs Observer) {
	b.observers = append(b.observers, obs)
}

func (b *observerBus) fire(ctx context.Context, event string, pkt packets.Packet, session *SessionState) {
	if len(b.listeners) > 0 {
		dctx, cancel := context.WithTimeout(ctx, pluginDispatchTimeout)
		for _, fn := range b.listeners {
			if err := fn(dctx, event, pkt, session); err != nil {
				b.onFailure(err)
			}
		}
		cancel()
	}

	for _, obs := range b.observers {
		obs := obs
		go obs(pkt, session)
	}
}

func (b *observerBus) FireSent(ctx context.Context, pkt packets.Packet, session *SessionState) {
	b.fire(ctx, "mqtt_packet_sent", pkt, session)
}

func (b *observerBus) FireReceived(ctx context.Context, pkt packets.Packet, session *SessionState) {
	b.fire(ctx, "mqtt_packet_received", pkt, session)
}

// noopEventBus is the default EventBus when none is configured.
type noopEventBus struct{}

func (noopEventBus) FireSent(context.Context, packets.Packet, *SessionState)     {}
func (noopEventBus) FireReceived(context.Context, packets.Packet, *SessionState) {}
