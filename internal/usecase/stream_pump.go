package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

// idleWatchdog fires onIdle when no byte has been read for timeout. The clock
// starts before the stream is opened, so a silent handshake counts too.
type idleWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	stopped bool
}

func newIdleWatchdog(timeout time.Duration, onIdle func()) *idleWatchdog {
	w := &idleWatchdog{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, onIdle)
	}
	return w
}

func (w *idleWatchdog) Touch() {
	if w.timer == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.timer.Reset(w.timeout)
	}
}

func (w *idleWatchdog) Stop() {
	if w.timer == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}

// Wrap returns a reader that resets the watchdog whenever bytes arrive.
func (w *idleWatchdog) Wrap(r io.Reader) io.Reader {
	return &watchedReader{r: r, watchdog: w}
}

type watchedReader struct {
	r        io.Reader
	watchdog *idleWatchdog
}

func (r *watchedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.watchdog.Touch()
	}
	return n, err
}

// openStream opens the transport, retrying once after a connection failure.
// Failures that carry a response (auth, server status) are never retried.
func openStream(ctx context.Context, transport ports.StreamTransport, req ports.StreamRequest, backoff time.Duration) (io.ReadCloser, int, error) {
	body, err := transport.OpenStream(ctx, req)
	if err == nil {
		return body, 1, nil
	}
	if ctx.Err() != nil || domain.KindOf(err) != domain.ErrorKindConnection {
		return nil, 1, err
	}

	if backoff > 0 {
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, 1, err
		case <-timer.C:
		}
	}

	body, retryErr := transport.OpenStream(ctx, req)
	if retryErr != nil {
		return nil, 2, retryErr
	}
	return body, 2, nil
}

// classifyFailure turns a stream error into the error reported to the UI,
// taking the request context's cancellation cause into account.
func classifyFailure(ctx context.Context, err error) *domain.Error {
	cause := context.Cause(ctx)
	if errors.Is(cause, domain.ErrIdleTimeout) {
		return domain.NewError(domain.ErrorKindTimeout, "translation stream timed out", cause)
	}
	if cause != nil {
		return domain.NewError(domain.ErrorKindCancelled, "translation cancelled", cause)
	}
	if err == nil {
		return domain.NewError(domain.ErrorKindConnection, "translation stream failed", nil)
	}
	return domain.AsError(err)
}

func describeTimeout(timeout time.Duration) string {
	return fmt.Sprintf("no data for %s", timeout)
}
