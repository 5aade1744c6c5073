package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

// NotProvided is shown for absent values in read-only views.
const NotProvided = "Not provided"

// LabelResolver maps a selector identifier to a human label.
type LabelResolver func(field model.FieldDefinition, id any) (string, bool)

// Display formats a stored value for read-only views.
func Display(field model.FieldDefinition, value any) string {
	return DisplayWith(field, value, nil)
}

// DisplayWith formats a stored value, resolving selector identifiers through
// resolve when it is non-nil.
func DisplayWith(field model.FieldDefinition, value any, resolve LabelResolver) string {
	if field.Type == model.FieldBoolean {
		switch t := value.(type) {
		case bool:
			if t {
				return "Yes"
			}
			return "No"
		case nil:
			return NotProvided
		}
	}
	if model.IsEmpty(value) {
		return NotProvided
	}

	switch {
	case field.Type == model.FieldNumber:
		if f, ok := value.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case field.Type == model.FieldDate || field.Type == model.FieldDateTime:
		ts, err := ParseTime(value, field.Type == model.FieldDateTime)
		if err != nil {
			return fmt.Sprintf("%v (invalid date)", value)
		}
		if field.Type == model.FieldDate {
			return ts.Format(DateLayout)
		}
		return ts.Format("2006-01-02 15:04")
	case field.Type.IsChoice():
		labels := make([]string, 0)
		for _, item := range listOf(value) {
			if opt, ok := field.Lookup(item); ok {
				labels = append(labels, opt.Label)
				continue
			}
			labels = append(labels, model.IDString(item))
		}
		return strings.Join(labels, ", ")
	case field.Type.IsSelector():
		labels := make([]string, 0)
		for _, item := range listOf(value) {
			if resolve != nil {
				if label, ok := resolve(field, item); ok {
					labels = append(labels, label)
					continue
				}
			}
			labels = append(labels, model.IDString(item))
		}
		return strings.Join(labels, ", ")
	}

	switch t := value.(type) {
	case string:
		return t
	default:
		return model.IDString(t)
	}
}

// Row is one line of a read-only document view.
type Row struct {
	Name    string
	Label   string
	Type    model.FieldType
	Value   any
	Text    string
	Missing bool
	Extra   bool
}

// Rows projects a payload onto the template field order. Template fields with
// no payload entry display as NotProvided; payload keys the template does not
// declare are appended in name order and flagged Extra.
func Rows(tpl model.Template, payload map[string]any, resolve LabelResolver) []Row {
	rows := make([]Row, 0, len(tpl.Fields))
	declared := make(map[string]struct{}, len(tpl.Fields))
	for _, field := range tpl.Fields {
		declared[field.Name] = struct{}{}
		value, ok := payload[field.Name]
		rows = append(rows, Row{
			Name:    field.Name,
			Label:   field.DisplayLabel(),
			Type:    field.Type,
			Value:   value,
			Text:    DisplayWith(field, value, resolve),
			Missing: !ok || (field.Type != model.FieldBoolean && model.IsEmpty(value)),
		})
	}

	var extras []string
	for key := range payload {
		if _, ok := declared[key]; !ok {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		value := payload[key]
		rows = append(rows, Row{
			Name:    key,
			Label:   key,
			Value:   value,
			Text:    Display(model.FieldDefinition{Name: key, Type: model.FieldTextShort}, value),
			Missing: model.IsEmpty(value),
			Extra:   true,
		})
	}
	return rows
}
