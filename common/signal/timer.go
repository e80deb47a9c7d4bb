// Package signal provides small concurrency primitives: an idle-activity
// timer used to tear down connections after a period of inactivity, and a
// counting semaphore used by common/task to bound parallel work.
package signal

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netbot-proxy/netbot/common/task"
)

// ActivityUpdater is notified whenever an ActivityTimer should be reset.
type ActivityUpdater interface {
	Update()
}

// ActivityTimer fires onTimeout once no Update() call has arrived within the
// configured interval. SetTimeout may be called repeatedly to switch to a
// different interval (e.g. a connection moving from handshake timeouts to
// idle timeouts once tunneling begins).
type ActivityTimer struct {
	mu        sync.RWMutex
	updated   chan struct{}
	checkTask *task.Periodic
	onTimeout func()
	consumed  atomic.Bool
	once      sync.Once
}

// Update resets the timer's inactivity clock.
func (t *ActivityTimer) Update() {
	select {
	case t.updated <- struct{}{}:
	default:
	}
}

func (t *ActivityTimer) check() error {
	select {
	case <-t.updated:
	default:
		t.finish()
	}
	return nil
}

func closeIfExists(v interface{}) {
	if v == nil {
		return
	}
	if closer, ok := v.(io.Closer); ok {
		closer.Close()
	}
}

func (t *ActivityTimer) finish() {
	t.once.Do(func() {
		t.consumed.Store(true)
		t.mu.Lock()
		defer t.mu.Unlock()

		closeIfExists(t.checkTask)
		t.onTimeout()
	})
}

// SetTimeout rearms the timer with a new interval. A zero timeout fires
// onTimeout immediately.
func (t *ActivityTimer) SetTimeout(timeout time.Duration) {
	if t.consumed.Load() {
		return
	}
	if timeout == 0 {
		t.finish()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumed.Load() {
		return
	}
	newCheckTask := &task.Periodic{
		Interval: timeout,
		Execute:  t.check,
	}
	closeIfExists(t.checkTask)
	t.checkTask = newCheckTask
	t.Update()
	if err := newCheckTask.Start(); err != nil {
		panic(err)
	}
}

// CancelAfterInactivity returns a timer that calls cancel once timeout
// elapses without an Update() call.
func CancelAfterInactivity(ctx context.Context, cancel context.CancelFunc, timeout time.Duration) *ActivityTimer {
	timer := &ActivityTimer{
		updated:   make(chan struct{}, 1),
		onTimeout: cancel,
	}
	timer.SetTimeout(timeout)
	return timer
}
