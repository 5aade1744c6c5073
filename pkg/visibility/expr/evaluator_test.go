package expr

import (
	"testing"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/visibility"
)

func TestEvaluatorComparisons(t *testing.T) {
	t.Parallel()

	eval := New()
	tests := []struct {
		rule   string
		values map[string]any
		want   bool
	}{
		{"urgent == true", map[string]any{"urgent": true}, true},
		{"urgent", map[string]any{"urgent": false}, false},
		{"!urgent", map[string]any{"urgent": false}, true},
		{"category == 'hardware' && cost > 100", map[string]any{"category": "hardware", "cost": 250.0}, true},
		{"payload['cost center'] != nil", map[string]any{"cost center": "CC-1"}, true},
		{"payload['cost center'] == nil", map[string]any{}, true},
		{"missing == nil", map[string]any{}, true},
		{"!blank(reason)", map[string]any{"reason": "  "}, false},
		{"'b' in tags", map[string]any{"tags": []any{"a", "b"}}, true},
	}
	for _, tt := range tests {
		got, err := eval.Eval("field", tt.rule, visibility.Context{Values: tt.values})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.rule, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %v, want %v", tt.rule, got, tt.want)
		}
	}
}

func TestEvaluatorExtras(t *testing.T) {
	t.Parallel()

	ok, err := New().Eval("budget", "extras.is_staff", visibility.Context{
		Extras: map[string]any{"is_staff": true},
	})
	if err != nil || !ok {
		t.Fatalf("expected extras lookup to pass, got %v (%v)", ok, err)
	}
}

func TestEvaluatorErrors(t *testing.T) {
	t.Parallel()

	eval := New()
	if err := eval.Check("urgent =="); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := eval.Eval("x", "name", visibility.Context{Values: map[string]any{"name": "n"}}); err == nil {
		t.Fatal("expected error for non-bool result")
	}
}

func TestVisibleKeepsFieldOnError(t *testing.T) {
	t.Parallel()

	field := model.FieldDefinition{
		Name:       "cost",
		Type:       model.FieldNumber,
		Attributes: map[string]any{visibility.RuleAttribute: "category =="},
	}
	ok, err := visibility.Visible(New(), field, visibility.Context{})
	if err == nil || !ok {
		t.Fatalf("broken rule should keep field visible and report error, got %v (%v)", ok, err)
	}

	field.Attributes[visibility.RuleAttribute] = "category == 'hardware'"
	ok, err = visibility.Visible(New(), field, visibility.Context{Values: map[string]any{"category": "software"}})
	if err != nil || ok {
		t.Fatalf("expected hidden, got %v (%v)", ok, err)
	}

	if ok, _ := visibility.Visible(nil, field, visibility.Context{}); !ok {
		t.Fatal("nil evaluator shows every field")
	}
}
