package upstream

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/trezcool/virtualtutor/core"
)

type idleTimeoutError struct{}

func (idleTimeoutError) Error() string   { return "stream idle timeout" }
func (idleTimeoutError) Timeout() bool   { return true }
func (idleTimeoutError) Temporary() bool { return true }

// ErrIdleTimeout cancels a stream that stayed silent for longer than its timeout.
var ErrIdleTimeout error = idleTimeoutError{}

// IdleTimer cancels its context unless it is kicked at least once per timeout.
type IdleTimer struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
	expired atomic.Bool
}

func NewIdleTimer(ctx context.Context, timeout time.Duration) *IdleTimer {
	it := &IdleTimer{timeout: timeout}
	it.ctx, it.cancel = context.WithCancelCause(ctx)
	it.timer = time.AfterFunc(timeout, func() {
		it.expired.Store(true)
		it.cancel(ErrIdleTimeout)
	})
	return it
}

func (it *IdleTimer) Context() context.Context { return it.ctx }

// Kick restarts the countdown.
func (it *IdleTimer) Kick() {
	if !it.expired.Load() {
		it.timer.Reset(it.timeout)
	}
}

// Expired reports whether the context was cancelled by the timer.
func (it *IdleTimer) Expired() bool { return it.expired.Load() }

func (it *IdleTimer) Stop() {
	it.timer.Stop()
	it.cancel(context.Canceled)
}

// idleBody kicks its timer on every read that returns data.
type idleBody struct {
	io.ReadCloser
	service string
	timer   *IdleTimer
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.timer.Kick()
	}
	if err != nil && err != io.EOF {
		if b.timer.Expired() {
			err = ErrIdleTimeout
		}
		err = core.NewUpstreamTransportError(b.service, err)
	}
	return n, err
}
