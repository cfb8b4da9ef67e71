package mqtt

import (
	"log/slog"
	"time"
)

// handlerOptions holds configuration for a Handler.
type handlerOptions struct {
	Logger             *slog.Logger
	Hooks              *Hooks
	EventBus           EventBus
	SessionStore       SessionStore
	AckTimeout         time.Duration
	MaxIncomingPacket  int
	DeliveredQueueSize int
}

// HandlerOption is a functional option for configuring a Handler.
type HandlerOption func(*handlerOptions)

// WithLogger sets the logger used by the default Hooks and internal
// diagnostics. If WithHooks is also given, the default Hooks are not built
// and the logger serves internal diagnostics only. Defaults to a logger
// that discards all output.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(o *handlerOptions) {
		o.Logger = logger
	}
}

// WithHooks overrides the default log-only Hooks with a caller-supplied
// set, letting a client or server endpoint plug in its own subscription
// matching, retained-message handling, and authentication.
func WithHooks(hooks *Hooks) HandlerOption {
	return func(o *handlerOptions) {
		o.Hooks = hooks
	}
}

// WithEventBus attaches a plugin EventBus. If not set, events are fired
// into a no-op bus.
func WithEventBus(bus EventBus) HandlerOption {
	return func(o *handlerOptions) {
		o.EventBus = bus
	}
}

// WithSessionStore attaches a SessionStore for resuming inflight_out
// across process restarts on sessions with clean-session=false.
func WithSessionStore(store SessionStore) HandlerOption {
	return func(o *handlerOptions) {
		o.SessionStore = store
	}
}

// WithAckTimeout bounds how long Publish waits for its terminal
// acknowledgement before failing with ErrFlowTimeout (default 10s). The
// inflight entry survives a timeout so retryDeliveries can resume it.
func WithAckTimeout(d time.Duration) HandlerOption {
	return func(o *handlerOptions) {
		o.AckTimeout = d
	}
}

// WithMaxIncomingPacket bounds the remaining-length field accepted from
// the peer. 0 (the default) uses the MQTT spec maximum.
func WithMaxIncomingPacket(max int) HandlerOption {
	return func(o *handlerOptions) {
		o.MaxIncomingPacket = max
	}
}

// WithDeliveredQueueSize records a size for the delivered-message queue.
// NewHandler does not read it: the queue belongs to the SessionState and
// is sized by NewSessionState's queueSize argument (default 65536).
func WithDeliveredQueueSize(size int) HandlerOption {
	return func(o *handlerOptions) {
		o.DeliveredQueueSize = size
	}
}

func defaultHandlerOptions() *handlerOptions {
	return &handlerOptions{
		Logger:     discardLogger(),
		AckTimeout: 10 * time.Second,
	}
}
