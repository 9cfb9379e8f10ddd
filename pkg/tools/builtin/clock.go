package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/localmind/pkg/tools"
)

const (
	ClockName        = "Time"
	ClockDescription = "Get the current time and date. No input parameters needed."

	// DefaultClockLayout mimics an en-US locale string, e.g. "3/14/2024, 1:05:09 PM".
	DefaultClockLayout = "1/2/2006, 3:04:05 PM"
)

// ClockInput is optional; any other input gives the local time.
type ClockInput struct {
	TimeZone string `json:"timezone,omitempty" jsonschema:"description=IANA time zone such as Europe/Berlin. Local time when empty"`
}

// Clock tells the current date and time.
type Clock struct {
	*tools.FuncTool[ClockInput]
	now    func() time.Time
	layout string
}

var _ tools.Tool = (*Clock)(nil)

type ClockOption func(*Clock)

func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) {
		c.now = now
	}
}

func WithLayout(layout string) ClockOption {
	return func(c *Clock) {
		c.layout = layout
	}
}

func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{
		now:    time.Now,
		layout: DefaultClockLayout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.FuncTool = tools.MustNewFuncTool(ClockName, ClockDescription, c.tell, tools.WithOptionalInput())
	return c
}

func (c *Clock) tell(ctx context.Context, in ClockInput) (string, error) {
	now := c.now().Local()
	if in.TimeZone != "" {
		loc, err := time.LoadLocation(in.TimeZone)
		if err != nil {
			return fmt.Sprintf("Error: unknown time zone %q.", in.TimeZone), nil
		}
		now = now.In(loc)
	}
	return now.Format(c.layout), nil
}

// Defaults returns the built-in tools in their canonical order.
func Defaults() []tools.Tool {
	return []tools.Tool{NewCalculator(), NewClock()}
}
