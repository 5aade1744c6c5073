package visibility

import (
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

// RuleAttribute is the field attribute holding a visibility rule.
const RuleAttribute = "visible_when"

// Evaluator determines whether a field should be visible based on a rule
// string and the current payload.
type Evaluator interface {
	Eval(fieldName, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values is the current data payload;
// Extras carries caller data such as the acting user.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldName, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldName, rule string, ctx Context) (bool, error) {
	return fn(fieldName, rule, ctx)
}

// Rule returns the visibility rule declared on field, or "".
func Rule(field model.FieldDefinition) string {
	return strings.TrimSpace(field.Attribute(RuleAttribute))
}

// Visible reports whether field is visible. Fields without a rule, and all
// fields when eval is nil, are visible. Evaluation errors keep the field
// visible and are returned so callers can log them.
func Visible(eval Evaluator, field model.FieldDefinition, ctx Context) (bool, error) {
	rule := Rule(field)
	if rule == "" || eval == nil {
		return true, nil
	}
	ok, err := eval.Eval(field.Name, rule, ctx)
	if err != nil {
		return true, err
	}
	return ok, nil
}
