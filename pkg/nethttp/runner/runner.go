// Package runner serves an HTTP server until its context ends and then drains
// in-flight requests.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const defaultShutdownTimeout = 10 * time.Second

type Server interface {
	Serve(listener net.Listener) error
	Shutdown(ctx context.Context) error
}

type Options struct {
	// Addr is host:port. An empty host listens on every interface.
	Addr string
	// ShutdownTimeout bounds the drain once ctx is done. Zero means 10s;
	// a negative value waits for every connection to finish.
	ShutdownTimeout time.Duration
	Logger          *slog.Logger

	listen func(network, addr string) (net.Listener, error)
}

// Run binds opts.Addr synchronously so a busy port fails startup, then
// serves in the background. Both goroutines are tracked by wg and report
// failures on errChan.
func Run(ctx context.Context, server Server, opts Options, errChan chan<- error, wg *sync.WaitGroup) error {
	if _, _, err := net.SplitHostPort(opts.Addr); err != nil {
		return fmt.Errorf("invalid http addr %q: %w", opts.Addr, err)
	}
	listen := opts.listen
	if listen == nil {
		listen = net.Listen
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.Addr, err)
	}
	logger.Info("http server listening", "addr", listener.Addr().String())

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http serve: %w", err)
		}
	}()

	go func() {
		defer wg.Done()
		<-ctx.Done()

		sdCtx, cancel := shutdownContext(opts.ShutdownTimeout)
		defer cancel()

		started := time.Now()
		if err := server.Shutdown(sdCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("http drain timed out, connections dropped", "timeout", opts.ShutdownTimeout)
			}
			errChan <- fmt.Errorf("http shutdown: %w", err)
			return
		}
		logger.Info("http server drained", "took", time.Since(started).Round(time.Millisecond))
	}()

	return nil
}

// ctx is already done when shutdown starts, so the drain gets a fresh one.
func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	switch {
	case timeout == 0:
		return context.WithTimeout(context.Background(), defaultShutdownTimeout)
	case timeout < 0:
		return context.WithCancel(context.Background())
	default:
		return context.WithTimeout(context.Background(), timeout)
	}
}
