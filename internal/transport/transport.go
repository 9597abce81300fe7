// Package transport coordinates the lifecycle of long-running
// listeners (the metrics HTTP server) alongside a finite job using an
// errgroup.
package transport

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// shutdownTimeout is the maximum time allowed for graceful shutdown
// of each listener after the context is cancelled.
const shutdownTimeout = 15 * time.Second

// Listener defines a component that can be started and stopped as
// part of the process lifecycle. Start should block until the
// component finishes or ctx is cancelled. Stop performs graceful
// shutdown within the provided context deadline.
type Listener interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// Serve runs all listeners concurrently and coordinates graceful
// shutdown. When ctx is cancelled or any listener returns an error,
// a single goroutine calls Stop on every listener.
func Serve(ctx context.Context, lis ...Listener) error {
	eg, egCtx := errgroup.WithContext(ctx)

	for _, li := range lis {
		eg.Go(func() error {
			return li.Start(egCtx)
		})
	}

	// Each listener gets its own timeout so that a slow listener
	// cannot starve subsequent ones.
	eg.Go(func() error {
		<-egCtx.Done()

		var errs []error
		for _, li := range lis {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := li.Stop(stopCtx); err != nil {
				errs = append(errs, err)
			}
			cancel()
		}
		return errors.Join(errs...)
	})

	return eg.Wait()
}

// Run executes job while serving lis. The listeners are stopped as
// soon as job returns, and job is cancelled if a listener fails. The
// job's error wins over shutdown errors.
func Run(ctx context.Context, job func(context.Context) error, lis ...Listener) error {
	if len(lis) == 0 {
		return job(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(runCtx)

	eg.Go(func() error {
		defer cancel()
		return job(egCtx)
	})

	eg.Go(func() error {
		return Serve(egCtx, lis...)
	})

	return eg.Wait()
}
