// Package bridge relays notification tap payloads back to the embedding
// application. Each tap is delivered on a designated execution context to
// both the active stream subscriber and the attached callback invoker.
package bridge

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// TapMethod is the callback method invoked on the attached invoker.
const TapMethod = "onNotificationTapped"

// Sink receives tap payloads as a stream. A nil payload means the tapped
// target carried none.
type Sink interface {
	Emit(payload *string) error
}

// Invoker calls a named method on the embedding application.
type Invoker interface {
	InvokeMethod(method string, payload *string) error
}

// Executor runs functions on the designated execution context.
type Executor interface {
	Post(fn func()) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(payload *string) error

// Emit calls f(payload).
func (f SinkFunc) Emit(payload *string) error { return f(payload) }

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(method string, payload *string) error

// InvokeMethod calls f(method, payload).
func (f InvokerFunc) InvokeMethod(method string, payload *string) error { return f(method, payload) }

// Bridge holds at most one subscriber and at most one invoker.
type Bridge struct {
	exec   Executor
	logger *slog.Logger

	mu      sync.Mutex
	sink    Sink
	invoker Invoker
	closed  bool
}

// New creates a bridge delivering on exec. A nil exec delivers inline on
// the calling goroutine.
func New(exec Executor, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{exec: exec, logger: logger}
}

// Subscribe sets the active subscriber, replacing any previous one.
func (b *Bridge) Subscribe(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sink != nil {
		b.logger.Debug("replacing active subscriber")
	}
	b.sink = sink
}

// Unsubscribe clears the active subscriber.
func (b *Bridge) Unsubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = nil
}

// Attach sets the callback invoker, replacing any previous one.
func (b *Bridge) Attach(invoker Invoker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invoker = invoker
}

// Detach clears the callback invoker.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invoker = nil
}

// Subscribed reports whether a subscriber is registered.
func (b *Bridge) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sink != nil
}

// Attached reports whether an invoker is attached.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invoker != nil
}

// Deliver hands payload to the subscriber and the invoker. It may be called
// from any goroutine and does not wait for delivery. The subscriber and
// invoker are read on the execution context at delivery time.
func (b *Bridge) Deliver(payload *string) {
	if payload != nil {
		p := *payload
		payload = &p
	}

	if b.exec == nil {
		b.deliver(payload)
		return
	}
	if !b.exec.Post(func() { b.deliver(payload) }) {
		b.logger.Warn("dropping tap payload, execution context closed")
	}
}

// Close clears the subscriber and the invoker and drops later deliveries.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = nil
	b.invoker = nil
	b.closed = true
}

func (b *Bridge) deliver(payload *string) {
	b.mu.Lock()
	sink, invoker, closed := b.sink, b.invoker, b.closed
	b.mu.Unlock()

	if closed {
		return
	}
	if sink == nil && invoker == nil {
		b.logger.Debug("tap payload has no receiver", "has_payload", payload != nil)
		return
	}

	// The two paths are independent; neither outcome affects the other.
	if sink != nil {
		if err := b.safely(func() error { return sink.Emit(payload) }); err != nil {
			b.logger.Warn("failed to emit tap payload to subscriber", "error", err)
		}
	}
	if invoker != nil {
		if err := b.safely(func() error { return invoker.InvokeMethod(TapMethod, payload) }); err != nil {
			b.logger.Warn("failed to invoke tap callback", "method", TapMethod, "error", err)
		}
	}
}

func (b *Bridge) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Debug("recovered delivery panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
