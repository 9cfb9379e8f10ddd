package inference

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsBuildersDoNotMutate(t *testing.T) {
	base := Options{}
	withStop := base.WithStop("Observation:").WithTemperature(0.2).WithMaxTokens(128)

	assert.Nil(t, base.Stop)
	assert.Nil(t, base.Temperature)
	assert.Equal(t, []string{"Observation:"}, withStop.Stop)
	require.NotNil(t, withStop.Temperature)
	assert.Equal(t, 0.2, *withStop.Temperature)
	assert.Equal(t, 128, *withStop.MaxTokens)
}

func TestInterrupterReturnsPartial(t *testing.T) {
	var i Interrupter
	assert.False(t, i.Interrupt())

	ctx, finish := i.Start(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		i.Interrupt()
	}()
	<-ctx.Done()

	err := finish(ctx.Err(), "half an ans")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))

	partial, ok := PartialText(errors.Wrap(err, "chat"))
	require.True(t, ok)
	assert.Equal(t, "half an ans", partial)

	assert.False(t, i.Interrupt())
}

func TestInterrupterPassesThroughOtherErrors(t *testing.T) {
	var i Interrupter

	parent, cancel := context.WithCancel(context.Background())
	ctx, finish := i.Start(parent)
	cancel()
	<-ctx.Done()

	err := finish(ctx.Err(), "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrInterrupted))

	_, finish = i.Start(context.Background())
	assert.NoError(t, finish(nil, "done"))
}
