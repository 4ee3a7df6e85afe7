// SPDX-License-Identifier: MIT

package playback

import (
	"sync"
	"time"
)

// RetryHandler schedules retries with exponential backoff. The controller
// itself places no ceiling on manual retries; callers that want one wrap
// their retry action in a RetryHandler.
type RetryHandler struct {
	mu         sync.Mutex
	maxRetries int
	baseDelay  time.Duration
	count      int
	timer      *time.Timer
}

// NewRetryHandler returns a handler allowing maxRetries attempts with delays
// of baseDelay doubling per attempt.
func NewRetryHandler(maxRetries int, baseDelay time.Duration) *RetryHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryHandler{maxRetries: maxRetries, baseDelay: baseDelay}
}

// Retry schedules fn after the current backoff delay. It returns false, and
// resets the attempt counter, once the retry budget is exhausted. Any
// previously scheduled retry is canceled first.
func (h *RetryHandler) Retry(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clearLocked()
	if h.count >= h.maxRetries {
		h.count = 0
		return false
	}

	delay := h.baseDelay * (1 << h.count)
	h.timer = time.AfterFunc(delay, func() {
		h.mu.Lock()
		h.count++
		h.mu.Unlock()
		fn()
	})
	return true
}

// Clear cancels any pending retry without touching the attempt counter.
func (h *RetryHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
}

// Reset cancels any pending retry and zeroes the attempt counter.
func (h *RetryHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
	h.count = 0
}

// Count reports the number of retries performed so far.
func (h *RetryHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *RetryHandler) clearLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
