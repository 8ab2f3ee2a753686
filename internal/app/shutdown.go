package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager closes registered resources once, in reverse order of
// registration, and turns SIGINT/SIGTERM into context cancellation.
type ShutdownManager struct {
	timeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	err          error

	closers   []io.Closer
	closersMu sync.Mutex
}

// NewShutdownManager creates a manager that gives closers at most timeout
// to finish. Zero means 30 seconds.
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		timeout:    timeout,
		shutdownCh: make(chan struct{}),
	}
}

// RegisterCloser adds a closer to be called during shutdown.
// Closers are called in reverse order of registration (LIFO).
func (sm *ShutdownManager) RegisterCloser(closer io.Closer) {
	sm.closersMu.Lock()
	defer sm.closersMu.Unlock()
	sm.closers = append(sm.closers, closer)
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM, or when
// parent is done.
func (sm *ShutdownManager) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown closes all registered closers. Only the first call does any
// work; later calls return the same error.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.shutdownOnce.Do(func() {
		close(sm.shutdownCh)

		sm.closersMu.Lock()
		closers := sm.closers
		sm.closers = nil
		sm.closersMu.Unlock()

		done := make(chan error, 1)
		go func() {
			var firstErr error
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i].Close(); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("close failed: %w", err)
				}
			}
			done <- firstErr
		}()

		shutdownCtx, cancel := context.WithTimeout(ctx, sm.timeout)
		defer cancel()
		select {
		case sm.err = <-done:
		case <-shutdownCtx.Done():
			sm.err = fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	})
	return sm.err
}

// ShutdownCh returns a channel that is closed when shutdown begins.
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.shutdownCh
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
