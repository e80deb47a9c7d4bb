// Package task provides helpers for coordinating the half-duplex
// goroutines a proxy connection runs: one driving the upload direction,
// one driving the download direction.
package task

import (
	"context"

	"github.com/netbot-proxy/netbot/common/signal/semaphore"
)

// OnSuccess returns a func that runs g() only after f() returns nil.
func OnSuccess(f func() error, g func() error) func() error {
	return func() error {
		if err := f(); err != nil {
			return err
		}
		return g()
	}
}

// Run executes tasks concurrently, returning the first error encountered,
// or nil once every task has completed successfully. Cancelling ctx aborts
// the wait; it does not stop in-flight tasks, which are expected to observe
// ctx themselves.
func Run(ctx context.Context, tasks ...func() error) error {
	n := len(tasks)
	sem := semaphore.New(n)
	done := make(chan error, 1)

	for _, t := range tasks {
		<-sem.Wait()
		go func(f func() error) {
			if err := f(); err != nil {
				select {
				case done <- err:
				default:
				}
				return
			}
			sem.Signal()
		}(t)
	}

	for i := 0; i < n; i++ {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-sem.Wait():
		}
	}
	return nil
}
