package session

import (
	"context"

	"github.com/go-go-golems/localmind/pkg/helpers"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Contender is one side of a comparison.
type Contender struct {
	Name    string
	Session *Session
}

// Comparison is the reply of one contender.
type Comparison struct {
	Name   string
	Result helpers.Result[*Reply]
}

// Compare asks every contender the same question side by side. A failing
// contender does not stop the others. parallelism bounds the number of
// exchanges in flight, zero or less means no bound. Results are in
// contender order.
func Compare(ctx context.Context, question string, parallelism int, contenders ...Contender) []Comparison {
	results := make([]Comparison, len(contenders))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, c := range contenders {
		results[i].Name = c.Name
		g.Go(func() error {
			if c.Session == nil {
				results[i].Result = helpers.NewErrorResult[*Reply](ErrSessionNil)
				return nil
			}
			reply, err := c.Session.Ask(ctx, question)
			if err != nil {
				log.Warn().Err(err).Str("contender", c.Name).Msg("session: comparison failed")
			}
			results[i].Result = helpers.NewResult(reply, err)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
