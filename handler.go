package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nimblemq/mqtt/internal/packets"
)

// Handler drives a single connected MQTT 3.1.1 endpoint: framing packets on
// and off the wire, running the QoS 0/1/2 flows, retrying unacknowledged
// deliveries on resume, and answering keep-alive. It is shared, unchanged,
// by both client-side and server-side callers; role-specific behavior
// (subscription routing, retained messages, authentication) lives in Hooks.
type Handler struct {
	session *SessionState
	reader  ReaderAdapter
	writer  WriterAdapter

	hooks    *Hooks
	eventBus EventBus
	store    SessionStore
	logger   *slog.Logger

	ackTimeout        time.Duration
	maxIncomingPacket int
	keepAlive         time.Duration

	writeMu    sync.Mutex
	writeTimer *time.Timer

	runCancel context.CancelFunc
	group     *errgroup.Group
	groupCtx  context.Context
	stopped   chan struct{}
	running   bool
}

// NewHandler builds a Handler over an already-established byte stream. The
// session is expected to have been created by the caller (fresh, or loaded
// from persistence for a resumed, clean-session=false connection).
func NewHandler(session *SessionState, reader ReaderAdapter, writer WriterAdapter, opts ...HandlerOption) *Handler {
	o := defaultHandlerOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Hooks == nil {
		o.Hooks = DefaultHooks(o.Logger)
	}
	if o.EventBus == nil {
		o.EventBus = noopEventBus{}
	}

	return &Handler{
		session:           session,
		reader:            reader,
		writer:            writer,
		hooks:             o.Hooks,
		eventBus:          o.EventBus,
		store:             o.SessionStore,
		logger:            o.Logger,
		ackTimeout:        o.AckTimeout,
		maxIncomingPacket: o.MaxIncomingPacket,
		keepAlive:         time.Duration(session.KeepAlive) * time.Second,
	}
}

// Start launches the reader loop, arms the keep-alive timer, and resumes
// any unacknowledged deliveries left over in the session from a prior
// connection. It returns once the reader loop is running; it does not
// block for the lifetime of the connection.
func (h *Handler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	h.runCancel = cancel
	h.group = group
	h.groupCtx = groupCtx
	h.stopped = make(chan struct{})
	h.running = true

	go h.readerLoop(groupCtx)
	h.armWriteTimer()

	h.loadPendingPublishes()

	if err := h.retryDeliveries(groupCtx); err != nil {
		h.logger.Warn("retry_deliveries failed", "error", err)
	}
	h.resumeInboundFlows(groupCtx)

	return nil
}

// Stop cancels the reader loop and any in-flight flow goroutines, waits
// (until ctx is done) for the flow goroutines to unwind, stops the
// keep-alive timer, and closes the writer. It does not wait for the reader
// goroutine itself: that goroutine exits once its current read returns,
// for example when closing the writer also closes the connection it reads.
// In-flight entries in the session are intentionally left untouched so a
// subsequent Start on the same SessionState can resume them.
func (h *Handler) Stop(ctx context.Context) error {
	if !h.running {
		return nil
	}
	h.running = false

	h.runCancel()

	// Release any goroutine suspended awaiting a PUBREL for an inbound
	// QoS-2 flow so group.Wait below can return promptly. inflightIn
	// itself is left untouched: resumeInboundFlows re-arms these waiters
	// on the next Start over the same session.
	for _, app := range h.session.incomingSnapshot() {
		h.session.waiters.cancel(ackPubrel, app.PacketID)
	}

	done := make(chan error, 1)
	go func() { done <- h.group.Wait() }()

	select {
	case <-done:
	case <-ctx.Done():
	}

	h.writeMu.Lock()
	if h.writeTimer != nil {
		h.writeTimer.Stop()
	}
	h.writeMu.Unlock()

	return h.writer.Close()
}

// loadPendingPublishes seeds inflightOut from the configured SessionStore,
// if any, before retryDeliveries walks it. This is how an outgoing QoS-1/2
// publish survives not just a reconnect (inflightOut already does that on
// its own) but a full process restart.
func (h *Handler) loadPendingPublishes() {
	if h.store == nil {
		return
	}
	pending, err := h.store.LoadPendingPublishes()
	if err != nil {
		h.logger.Warn("failed to load pending publishes", "error", err)
		return
	}
	for id, p := range pending {
		h.session.putOutgoing(fromPersisted(id, p))
	}
}

// persistOutgoing records app in the session's inflightOut map and, if a
// SessionStore is configured, in durable storage, so an unacknowledged
// QoS-1/2 publish survives a process restart and not just a reconnect.
func (h *Handler) persistOutgoing(app *ApplicationMessage) {
	h.session.putOutgoing(app)
	if h.store == nil {
		return
	}
	if err := h.store.SavePendingPublish(app.PacketID, toPersisted(app)); err != nil {
		h.logger.Warn("failed to save pending publish", "packet_id", app.PacketID, "error", err)
	}
}

// forgetOutgoing removes app's entry from inflightOut and, if configured,
// from durable storage, once its flow has reached a terminal
// acknowledgement (or is abandoned as already-acknowledged on resume).
func (h *Handler) forgetOutgoing(id uint16) {
	h.session.deleteOutgoing(id)
	if h.store == nil {
		return
	}
	if err := h.store.DeletePendingPublish(id); err != nil {
		h.logger.Warn("failed to delete pending publish", "packet_id", id, "error", err)
	}
}

// sendPacket serializes pkt onto the writer. The Handler never invokes the
// writer from two goroutines at once: every caller, whether the publish
// path, an inbound ack responder, or retryDeliveries, funnels through here.
func (h *Handler) sendPacket(ctx context.Context, pkt packets.Packet) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if _, err := pkt.WriteTo(h.writer); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	h.resetWriteTimerLocked()
	h.eventBus.FireSent(ctx, pkt, h.session)
	return nil
}

// DeliverNextMessage blocks until the next fully-settled incoming message
// is available or ctx is done.
func (h *Handler) DeliverNextMessage(ctx context.Context) (Message, error) {
	select {
	case msg := <-h.session.delivered:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// AcknowledgeDelivery informs the session that the application has
// consumed an incoming QoS-2 message. The broker-side PUBCOMP is sent right
// after the message is enqueued, without waiting for this call; it is pure housekeeping and
// exists so callers have a named point to hang application-level
// bookkeeping (e.g. committing an at-least-once side effect) off of.
func (h *Handler) AcknowledgeDelivery(packetID uint16) {
	h.logger.Debug("acknowledge_delivery", "packet_id", packetID)
}
