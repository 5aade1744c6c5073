package render

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/options"
)

// Widget identifies the kind of input a control needs.
type Widget string

const (
	WidgetText                 Widget = "text"
	WidgetTextArea             Widget = "textarea"
	WidgetNumber               Widget = "number"
	WidgetDate                 Widget = "date"
	WidgetDateTime             Widget = "datetime"
	WidgetCheckbox             Widget = "checkbox"
	WidgetSelect               Widget = "select"
	WidgetMultiSelect          Widget = "multiselect"
	WidgetAutocomplete         Widget = "autocomplete"
	WidgetAutocompleteMultiple Widget = "autocomplete_multiple"
	WidgetFile                 Widget = "file"
	WidgetUnsupported          Widget = "unsupported"
)

// NoneValue is the option key of the "no selection" entry offered by single
// choice controls. Selecting it stores nil.
const NoneValue = "none"

// NoneLabel is the label shown for NoneValue.
const NoneLabel = "None"

var (
	// ErrDisabled is returned by Control.Set on disabled or readonly controls.
	ErrDisabled = errors.New("render: control is disabled")
	// ErrUnsupportedType is returned when a field type has no widget.
	ErrUnsupportedType = errors.New("render: unsupported field type")
)

// ChangeFunc receives normalized values for a named field.
type ChangeFunc func(name string, value any)

// Control is the rendered contract of one field.
type Control struct {
	Field    model.FieldDefinition
	Widget   Widget
	Value    any
	Selected []string
	Options  []model.Option
	Multiple bool
	Required bool
	Disabled bool
	Invalid  bool
	Errors   []string
	Source   *options.Source

	onChange ChangeFunc
}

// Render builds the control for field. The displayed value is current, then
// the field default, then the empty value of the type. errs are shown inline.
func Render(field model.FieldDefinition, current any, onChange ChangeFunc, disabled bool, errs []string) Control {
	ctrl := Control{
		Field:    field,
		Widget:   widgetFor(field.Type),
		Multiple: field.Type.IsMultiple(),
		Required: field.Required,
		Disabled: disabled || field.Readonly,
		Errors:   normalizeMessages(errs),
		onChange: onChange,
	}

	value := current
	if value == nil {
		value = model.CloneValue(field.DefaultValue)
	}
	if value == nil {
		value = EmptyValue(field.Type)
	}
	ctrl.Value = value

	switch {
	case ctrl.Widget == WidgetUnsupported:
		ctrl.Invalid = true
		ctrl.Errors = append(ctrl.Errors, fmt.Sprintf("Unsupported field type %q", string(field.Type)))
	case field.Type == model.FieldDate || field.Type == model.FieldDateTime:
		if _, err := Normalize(field, value); err != nil {
			ctrl.Invalid = true
			ctrl.Errors = append(ctrl.Errors, "Invalid date value")
		}
	case field.Type.IsChoice():
		ctrl.Options = choiceOptions(field)
		ctrl.Selected = selectedKeys(field, value)
	case field.Type.IsSelector():
		if src, ok := options.ForField(field); ok {
			ctrl.Source = &src
		}
		ctrl.Selected = identifierKeys(value)
	}
	if len(ctrl.Errors) > 0 {
		ctrl.Invalid = true
	}
	return ctrl
}

// Set normalizes raw input and reports it through the change callback.
func (c Control) Set(raw any) error {
	if c.Disabled {
		return ErrDisabled
	}
	value, err := Normalize(c.Field, raw)
	if err != nil {
		return err
	}
	if c.onChange != nil {
		c.onChange(c.Field.Name, value)
	}
	return nil
}

// Text returns the current value as it appears inside the input.
func (c Control) Text() string {
	switch c.Widget {
	case WidgetSelect:
		if len(c.Selected) == 1 && c.Selected[0] == NoneValue {
			return NoneLabel
		}
	case WidgetCheckbox:
		if b, ok := c.Value.(bool); ok && b {
			return "true"
		}
		return "false"
	}
	return Display(c.Field, c.Value)
}

// EmptyValue returns the value a type holds when nothing has been entered.
func EmptyValue(t model.FieldType) any {
	switch t {
	case model.FieldTextShort, model.FieldTextArea, model.FieldFileUpload:
		return ""
	case model.FieldBoolean:
		return false
	default:
		return nil
	}
}

func widgetFor(t model.FieldType) Widget {
	switch t {
	case model.FieldTextShort:
		return WidgetText
	case model.FieldTextArea:
		return WidgetTextArea
	case model.FieldNumber:
		return WidgetNumber
	case model.FieldDate:
		return WidgetDate
	case model.FieldDateTime:
		return WidgetDateTime
	case model.FieldBoolean:
		return WidgetCheckbox
	case model.FieldChoiceSingle:
		return WidgetSelect
	case model.FieldChoiceMultiple:
		return WidgetMultiSelect
	case model.FieldUserSelectorSingle, model.FieldAssetSelectorSingle, model.FieldGroupSelectorSingle,
		model.FieldDepartmentSelector, model.FieldProjectSelector:
		return WidgetAutocomplete
	case model.FieldUserSelectorMultiple, model.FieldAssetSelectorMultiple, model.FieldGroupSelectorMultiple:
		return WidgetAutocompleteMultiple
	case model.FieldFileUpload:
		return WidgetFile
	default:
		return WidgetUnsupported
	}
}

func choiceOptions(field model.FieldDefinition) []model.Option {
	out := make([]model.Option, 0, len(field.Options)+1)
	if field.Type == model.FieldChoiceSingle {
		out = append(out, model.Option{Value: NoneValue, Label: NoneLabel})
	}
	out = append(out, field.Options...)
	return out
}

func selectedKeys(field model.FieldDefinition, value any) []string {
	keys := identifierKeys(value)
	if field.Type == model.FieldChoiceSingle && len(keys) == 0 {
		return []string{NoneValue}
	}
	return keys
}

func identifierKeys(value any) []string {
	switch t := value.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if id := model.IDString(v); id != "" {
				out = append(out, id)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if id := model.IDString(v); id != "" {
				out = append(out, id)
			}
		}
		return out
	default:
		if id := model.IDString(t); id != "" {
			return []string{id}
		}
		return nil
	}
}
