package builtin

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/dop251/goja"
	"github.com/go-go-golems/localmind/pkg/tools"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog/log"
)

const (
	CalculatorName        = "Calculator"
	CalculatorDescription = "Perform basic arithmetic calculations. Input should be a JSON object with 'expression' string, e.g. { \"expression\": \"2 + 2\" }"
)

var allowedExpression = regexp.MustCompile(`^[0-9+\-*/().\s]*$`)

type CalculatorInput struct {
	Expression string `json:"expression" jsonschema:"description=Arithmetic expression using digits and + - * / ( )"`
}

// Calculator evaluates arithmetic expressions. Only digits, the four
// operators, parentheses, dots and whitespace are accepted, and the
// expression is evaluated by a fresh JavaScript runtime so that results
// format the way a browser would print them (1/0 is Infinity).
type Calculator struct {
	schema *jsonschema.Schema
}

var _ tools.Tool = (*Calculator)(nil)

func NewCalculator() *Calculator {
	return &Calculator{schema: tools.SchemaFor[CalculatorInput]()}
}

func (c *Calculator) Name() string                   { return CalculatorName }
func (c *Calculator) Description() string            { return CalculatorDescription }
func (c *Calculator) Parameters() *jsonschema.Schema { return c.schema }

func (c *Calculator) Execute(ctx context.Context, in tools.Input) (string, error) {
	expr := expressionFrom(in)
	log.Debug().Str("expression", expr).Msg("calculator: executing")

	if !allowedExpression.MatchString(expr) {
		return "Error: Invalid characters in expression.", nil
	}
	return Evaluate(ctx, expr), nil
}

// expressionFrom accepts {"expression": "..."}, a JSON string or raw text.
// An empty expression field falls back to the whole input, which an object
// never passes the character check with.
func expressionFrom(in tools.Input) string {
	if v, ok := in.Field("expression"); ok && present(v) {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return in.String()
}

// present treats the values JavaScript considers falsy as absent.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}

// Evaluate runs expr and formats the value. Failures are returned as
// "Error: <message>".
func Evaluate(ctx context.Context, expr string) string {
	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	v, err := vm.RunString(expr)
	if err != nil {
		return fmt.Sprintf("Error: %s", errorMessage(err))
	}
	return v.String()
}

func errorMessage(err error) string {
	switch e := err.(type) {
	case *goja.Exception:
		if obj, ok := e.Value().(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				return msg.String()
			}
		}
		return e.Value().String()
	case *goja.InterruptedError:
		return fmt.Sprint(e.Value())
	default:
		return err.Error()
	}
}
