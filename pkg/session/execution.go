package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight exchange.
//
// It is cancelable and waitable. Interrupting keeps the partial reply, while
// cancelling discards it.
type ExecutionHandle struct {
	SessionID   string
	InferenceID uuid.UUID
	Prompt      string

	done chan struct{}

	mu          sync.Mutex
	cancel      context.CancelFunc
	interrupted bool
	partial     string
	reply       *Reply
	err         error
}

func newExecutionHandle(sessionID string, inferenceID uuid.UUID, prompt string, cancel context.CancelFunc) *ExecutionHandle {
	return &ExecutionHandle{
		SessionID:   sessionID,
		InferenceID: inferenceID,
		Prompt:      prompt,
		done:        make(chan struct{}),
		cancel:      cancel,
	}
}

func (h *ExecutionHandle) setResult(reply *Reply, err error) {
	h.mu.Lock()
	h.reply = reply
	h.err = err
	close(h.done)
	h.cancel = nil
	h.mu.Unlock()
}

// appendPartial records streamed text so an interruption can keep it.
func (h *ExecutionHandle) appendPartial(delta string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partial += delta
	return h.partial
}

func (h *ExecutionHandle) partialText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.partial
}

func (h *ExecutionHandle) markInterrupted() {
	h.mu.Lock()
	h.interrupted = true
	h.mu.Unlock()
}

func (h *ExecutionHandle) wasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Cancel cancels the in-flight exchange. It is safe to call multiple times.
func (h *ExecutionHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the exchange completes and returns its reply.
func (h *ExecutionHandle) Wait() (*Reply, error) {
	if h == nil {
		return nil, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reply, h.err
}

// Done is closed when the exchange completes.
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether the exchange appears to still be running.
func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
