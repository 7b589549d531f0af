package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeServer struct {
	mu          sync.Mutex
	serveErr    error
	shutdownErr error
	shutdownCh  chan struct{}
	shutdowns   int
	deadline    time.Time
	hasDeadline bool
}

func newFakeServer(serveErr error) *fakeServer {
	return &fakeServer{serveErr: serveErr, shutdownCh: make(chan struct{})}
}

func (s *fakeServer) Serve(net.Listener) error {
	if s.serveErr != nil {
		return s.serveErr
	}
	<-s.shutdownCh
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
	s.deadline, s.hasDeadline = ctx.Deadline()
	if s.shutdowns == 1 {
		close(s.shutdownCh)
	}
	return s.shutdownErr
}

type fakeListener struct{ net.Listener }

func (fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

func testOptions(timeout time.Duration) Options {
	return Options{
		Addr:            ":8080",
		ShutdownTimeout: timeout,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		listen:          func(_, _ string) (net.Listener, error) { return fakeListener{}, nil },
	}
}

func TestRun_ShutdownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeServer(nil)
	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	if err := Run(ctx, srv, testOptions(time.Second), errChan, &wg); err != nil {
		t.Fatalf("run: %v", err)
	}
	cancel()
	wg.Wait()

	if srv.shutdowns != 1 {
		t.Fatalf("shutdowns=%d want=1", srv.shutdowns)
	}
	if !srv.hasDeadline || time.Until(srv.deadline) > time.Second {
		t.Fatalf("drain must be bounded by the shutdown timeout")
	}
	select {
	case err := <-errChan:
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}

func TestRun_ShutdownTimeoutSemantics(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{name: "zero uses default", timeout: 0, wantDeadline: true},
		{name: "negative waits", timeout: -1, wantDeadline: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			srv := newFakeServer(nil)
			var wg sync.WaitGroup
			if err := Run(ctx, srv, testOptions(tt.timeout), make(chan error, 2), &wg); err != nil {
				t.Fatalf("run: %v", err)
			}
			cancel()
			wg.Wait()

			if srv.hasDeadline != tt.wantDeadline {
				t.Fatalf("deadline=%v want=%v", srv.hasDeadline, tt.wantDeadline)
			}
			if tt.wantDeadline && time.Until(srv.deadline) <= defaultShutdownTimeout-time.Second {
				t.Fatalf("default drain window not applied")
			}
		})
	}
}

func TestRun_ShutdownErrorReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeServer(nil)
	srv.shutdownErr = context.DeadlineExceeded
	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	if err := Run(ctx, srv, testOptions(time.Millisecond), errChan, &wg); err != nil {
		t.Fatalf("run: %v", err)
	}
	cancel()
	wg.Wait()

	select {
	case err := <-errChan:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err=%v", err)
		}
	default:
		t.Fatalf("shutdown error not reported")
	}
}

func TestRun_ServeErrorReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeServer(errors.New("boom"))
	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	if err := Run(ctx, srv, testOptions(time.Second), errChan, &wg); err != nil {
		t.Fatalf("run: %v", err)
	}

	select {
	case err := <-errChan:
		if err == nil {
			t.Fatalf("expected serve error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve error not reported")
	}
	cancel()
	wg.Wait()
}

func TestRun_StartupErrors(t *testing.T) {
	var wg sync.WaitGroup

	opts := testOptions(time.Second)
	opts.Addr = "localhost"
	if err := Run(context.Background(), newFakeServer(nil), opts, make(chan error, 1), &wg); err == nil {
		t.Fatalf("expected error for addr without port")
	}

	opts = testOptions(time.Second)
	opts.listen = func(_, _ string) (net.Listener, error) { return nil, errors.New("in use") }
	if err := Run(context.Background(), newFakeServer(nil), opts, make(chan error, 1), &wg); err == nil {
		t.Fatalf("expected listen error")
	}
}
