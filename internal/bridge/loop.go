package bridge

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Loop is a single-goroutine execution context. Functions posted from any
// goroutine run one at a time, in post order, on the goroutine calling Run.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	running bool
	wake    chan struct{}
	done    chan struct{}
}

// NewLoop creates a loop. Call Run to start draining it.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn. It never blocks. Post reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is cancelled or Close is called. Work
// already queued when the loop stops is still run.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		l.drain()

		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case <-l.wake:
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed {
				l.drain()
				return nil
			}
		}
	}
}

// Close stops the loop after the queued work has run and, if Run was
// started, waits for it to return. Close must not be called from a posted
// function.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	running := l.running
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if running {
		<-l.done
	}
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.drain()
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in loop task", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
