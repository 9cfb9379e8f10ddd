package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/localmind/pkg/events"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func isOutputTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// renderAnswer writes text to w, rendered as markdown when stdout is a
// terminal.
func renderAnswer(w io.Writer, text string) error {
	if isOutputTerminal() {
		styled, err := glamour.Render(text, "dark")
		if err == nil {
			_, err = fmt.Fprint(w, styled)
			return err
		}
		log.Debug().Err(err).Msg("could not render markdown")
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// printerSink prints the events of the given types as they are published.
type printerSink struct {
	mu    sync.Mutex
	w     io.Writer
	types map[events.EventType]bool
}

func newPrinterSink(w io.Writer, types ...events.EventType) *printerSink {
	ret := &printerSink{w: w, types: map[events.EventType]bool{}}
	for _, t := range types {
		ret.types[t] = true
	}
	return ret
}

func (p *printerSink) PublishEvent(e events.Event) error {
	if !p.types[e.Type] {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return events.PrintEvent(p.w, e)
}

var _ events.Sink = (*printerSink)(nil)

// withEventRouter runs fn with a sink publishing to an in-process watermill
// router whose handler prints every event to w. The router is stopped once
// fn returns.
func withEventRouter(ctx context.Context, w io.Writer, verbose bool, fn func(ctx context.Context, sink events.Sink) error) error {
	router, err := events.NewEventRouter(events.WithVerbose(verbose))
	if err != nil {
		return err
	}
	router.AddHandler("printer", events.TopicRuns, events.StepPrinterFunc(w))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		defer func() {
			_ = router.Close()
		}()
		select {
		case <-router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		return fn(ctx, router.Sink(events.TopicRuns))
	})
	return eg.Wait()
}
