package usecase

import (
	"context"
	"sync"
	"time"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

type requestState int

const (
	requestStreaming requestState = iota
	requestFinished
	requestCancelled
)

// activeRequest serializes everything a request emits so that cancellation and
// natural completion can race without producing two terminal events.
type activeRequest struct {
	handle    domain.Handle
	key       domain.TranslationKey
	cacheable bool
	cancel    context.CancelCauseFunc
	startedAt time.Time

	mu    sync.Mutex
	state requestState
}

func newActiveRequest(handle domain.Handle, key domain.TranslationKey, cacheable bool, cancel context.CancelCauseFunc) *activeRequest {
	return &activeRequest{
		handle:    handle,
		key:       key,
		cacheable: cacheable,
		cancel:    cancel,
		startedAt: time.Now(),
	}
}

// emit dispatches a non-terminal event. It returns false once the request has
// finished or been cancelled.
func (r *activeRequest) emit(dispatcher ports.Dispatcher, event domain.UiEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != requestStreaming {
		return false
	}
	dispatcher.Dispatch(r.handle, event)
	return true
}

// finish runs before and then dispatches the terminal event, unless the
// request was already cancelled or finished.
func (r *activeRequest) finish(dispatcher ports.Dispatcher, event domain.UiEvent, before func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != requestStreaming {
		return false
	}
	if before != nil {
		before()
	}
	dispatcher.Dispatch(r.handle, event)
	r.state = requestFinished
	return true
}

// markCancelled retires the request silently. It returns false if a terminal
// event was already emitted.
func (r *activeRequest) markCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != requestStreaming {
		return false
	}
	r.state = requestCancelled
	return true
}

func (r *activeRequest) cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == requestCancelled
}
