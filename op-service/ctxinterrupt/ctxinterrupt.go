// Package ctxinterrupt carries interrupt signals through a context, so nested commands share
// the signal handling of the main function.
package ctxinterrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// DefaultInterruptSignals is the set of signals handled as interrupt.
var DefaultInterruptSignals = []os.Signal{
	os.Interrupt,
	os.Kill,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

type waiterKey struct{}

// waiter holds at most one pending interrupt until a Wait consumes it.
type waiter struct {
	ch chan struct{}
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan struct{}, 1)}
}

func (w *waiter) interrupt() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// WithSignalWaiterMain returns a context that is interrupted by the default interrupt signals.
// It is meant to be called once, by main.
func WithSignalWaiterMain(ctx context.Context) context.Context {
	w := newWaiter()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, DefaultInterruptSignals...)
	go func() {
		for range sigs {
			w.interrupt()
		}
	}()
	return withWaiter(ctx, w)
}

func withWaiter(ctx context.Context, w *waiter) context.Context {
	return context.WithValue(ctx, waiterKey{}, w)
}

// WithInterrupter returns a context with a manually triggered interrupt, for tests.
func WithInterrupter(ctx context.Context) (context.Context, func()) {
	w := newWaiter()
	return withWaiter(ctx, w), w.interrupt
}

// Wait blocks until an interrupt is pending or until ctx is done. It returns nil on interrupt,
// and consumes it.
func Wait(ctx context.Context) error {
	w, ok := ctx.Value(waiterKey{}).(*waiter)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithCancelOnInterrupt returns a context that is canceled on the next interrupt.
func WithCancelOnInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	inner, cancel := context.WithCancel(ctx)
	go func() {
		if err := Wait(inner); err == nil {
			cancel()
		}
	}()
	return inner, cancel
}
