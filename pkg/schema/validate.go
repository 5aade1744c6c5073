package schema

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a template.
type Issue struct {
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// Result captures the outcome of Validate.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Validate checks the template invariants: unique non-empty field names,
// known field types, non-empty options for choice fields, and a coherent
// approval configuration. Unknown types are reported but kept so renderers
// can flag them.
func Validate(tpl model.Template) Result {
	result := Result{Valid: true}
	add := func(field string, severity Severity, format string, args ...any) {
		result.Issues = append(result.Issues, Issue{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
		if severity == SeverityError {
			result.Valid = false
		}
	}

	seen := make(map[string]struct{}, len(tpl.Fields))
	for idx, field := range tpl.Fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			add(fmt.Sprintf("#%d", idx), SeverityError, "field name is required")
			continue
		}
		if _, dup := seen[name]; dup {
			add(name, SeverityError, "duplicate field name")
		}
		seen[name] = struct{}{}

		if !field.Type.Known() {
			add(name, SeverityError, "unsupported field type %q", field.Type)
			continue
		}
		if field.Type.IsChoice() && len(field.Options) == 0 {
			add(name, SeverityError, "choice fields need at least one option")
		}
		if field.APISource != nil {
			if strings.TrimSpace(field.APISource.Endpoint) == "" {
				add(name, SeverityError, "api_source requires an endpoint")
			}
			if !field.Type.IsSelector() {
				add(name, SeverityWarning, "api_source is only used by selector fields")
			}
		}
		if field.DefaultValue != nil && field.Type.IsChoice() {
			checkChoiceDefault(field, add)
		}
	}

	switch tpl.EffectiveApproval() {
	case model.ApprovalNone, model.ApprovalAdvanced:
	case model.ApprovalSimple:
		if tpl.SimpleApproverUser == nil && tpl.SimpleApproverGroup == nil {
			add("", SeverityWarning, "simple approval has no approver user or group")
		}
		if tpl.SimpleApproverUser != nil && tpl.SimpleApproverGroup != nil {
			add("", SeverityWarning, "simple approval sets both an approver user and group")
		}
	default:
		add("", SeverityError, "unsupported approval type %q", tpl.ApprovalType)
	}

	return result
}

func checkChoiceDefault(field model.FieldDefinition, add func(string, Severity, string, ...any)) {
	values := []any{field.DefaultValue}
	if list, ok := field.DefaultValue.([]any); ok {
		values = list
	}
	for _, value := range values {
		if _, ok := field.Lookup(value); !ok {
			add(field.Name, SeverityWarning, "default value %v is not one of the options", value)
		}
	}
}
