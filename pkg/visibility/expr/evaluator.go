package expr

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/visibility"
)

// Evaluator runs visibility rules written in the expr language.
//
// Payload values are available by field name (`urgent == true`) and under
// `payload` (`payload["cost center"] != nil`); caller extras live under
// `extras`. Those two names take precedence over fields of the same name.
// Undefined names evaluate to nil. The helper `blank(x)` reports whether a
// value counts as not provided.
//
// Compiled programs are cached by rule text.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New returns an Evaluator with an empty program cache.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

var _ visibility.Evaluator = (*Evaluator)(nil)

// Eval implements visibility.Evaluator.
func (e *Evaluator) Eval(fieldName, rule string, ctx visibility.Context) (bool, error) {
	program, err := e.program(rule)
	if err != nil {
		return false, fmt.Errorf("visibility/expr: compile rule for %s: %w", fieldName, err)
	}
	out, err := expr.Run(program, environment(ctx))
	if err != nil {
		return false, fmt.Errorf("visibility/expr: run rule for %s: %w", fieldName, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("visibility/expr: rule for %s returned %T, want bool", fieldName, out)
	}
	return ok, nil
}

// Check compiles rule without running it.
func (e *Evaluator) Check(rule string) error {
	_, err := e.program(rule)
	return err
}

func (e *Evaluator) program(rule string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programs[rule]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programs[rule]; ok {
		return prog, nil
	}
	prog, err := expr.Compile(rule,
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
		expr.Function("blank", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("blank requires 1 argument")
			}
			return model.IsEmpty(params[0]), nil
		}),
	)
	if err != nil {
		return nil, err
	}
	e.programs[rule] = prog
	return prog, nil
}

func environment(ctx visibility.Context) map[string]any {
	env := make(map[string]any, len(ctx.Values)+2)
	for k, v := range ctx.Values {
		env[k] = v
	}
	payload := ctx.Values
	if payload == nil {
		payload = map[string]any{}
	}
	extras := ctx.Extras
	if extras == nil {
		extras = map[string]any{}
	}
	env["payload"] = payload
	env["extras"] = extras
	return env
}
