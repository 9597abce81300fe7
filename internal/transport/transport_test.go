package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeListener blocks in Start until ctx is cancelled or Stop is
// called.
type fakeListener struct {
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
	stop     chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{stop: make(chan struct{})}
}

func (l *fakeListener) Start(ctx context.Context) error {
	l.started.Store(true)
	if l.startErr != nil {
		return l.startErr
	}
	select {
	case <-ctx.Done():
	case <-l.stop:
	}
	return nil
}

func (l *fakeListener) Stop(context.Context) error {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.stop)
	}
	return nil
}

func TestRun_StopsListenersWhenJobEnds(t *testing.T) {
	lis := newFakeListener()
	ran := false

	err := Run(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}, lis)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Error("job did not run")
	}
	if !lis.stopped.Load() {
		t.Error("listener was not stopped")
	}
}

func TestRun_ReturnsJobError(t *testing.T) {
	boom := errors.New("apply failed")
	lis := newFakeListener()

	err := Run(context.Background(), func(context.Context) error {
		return boom
	}, lis)
	if !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
	if !lis.stopped.Load() {
		t.Error("listener was not stopped")
	}
}

func TestRun_ListenerFailureCancelsJob(t *testing.T) {
	lis := newFakeListener()
	lis.startErr = errors.New("address in use")

	err := Run(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("job was not cancelled")
		}
	}, lis)
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() == "job was not cancelled" {
		t.Fatal(err)
	}
}

func TestRun_WithoutListeners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	a, b := newFakeListener(), newFakeListener()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, a, b) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !a.stopped.Load() || !b.stopped.Load() {
		t.Error("listeners were not stopped")
	}
}
