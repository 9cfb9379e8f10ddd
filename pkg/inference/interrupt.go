package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrInterrupted matches any *InterruptedError with errors.Is.
var ErrInterrupted = errors.New("inference interrupted")

// InterruptedError is returned by an engine call stopped through Interrupt.
type InterruptedError struct {
	// Partial is the text generated before the interruption.
	Partial string
}

func (e *InterruptedError) Error() string {
	return ErrInterrupted.Error()
}

func (e *InterruptedError) Is(target error) bool {
	return target == ErrInterrupted
}

// PartialText extracts the partial reply from an interruption error.
func PartialText(err error) (string, bool) {
	var ie *InterruptedError
	if errors.As(err, &ie) {
		return ie.Partial, true
	}
	return "", false
}

// Interrupter tracks the cancel function of the call in flight so it can be
// stopped out of band. Engines embed it and wrap each call with Start.
type Interrupter struct {
	mu          sync.Mutex
	cancel      context.CancelFunc
	interrupted bool
}

// Start derives a cancellable context for one call. finish must be called
// with the call's error and partial text; it turns a cancellation caused by
// Interrupt into an *InterruptedError.
func (i *Interrupter) Start(ctx context.Context) (context.Context, func(err error, partial string) error) {
	ctx, cancel := context.WithCancel(ctx)

	i.mu.Lock()
	i.cancel = cancel
	i.interrupted = false
	i.mu.Unlock()

	finish := func(err error, partial string) error {
		i.mu.Lock()
		interrupted := i.interrupted
		i.cancel = nil
		i.interrupted = false
		i.mu.Unlock()
		cancel()

		if interrupted {
			return &InterruptedError{Partial: partial}
		}
		return err
	}
	return ctx, finish
}

// Interrupt cancels the call in flight. It reports whether there was one.
func (i *Interrupter) Interrupt() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel == nil {
		return false
	}
	i.interrupted = true
	i.cancel()
	return true
}
