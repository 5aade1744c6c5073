package model

import "strings"

// FieldType is the closed set of field kinds a template may declare.
type FieldType string

const (
	FieldTextShort             FieldType = "text_short"
	FieldTextArea              FieldType = "text_area"
	FieldNumber                FieldType = "number"
	FieldDate                  FieldType = "date"
	FieldDateTime              FieldType = "datetime"
	FieldBoolean               FieldType = "boolean"
	FieldChoiceSingle          FieldType = "choice_single"
	FieldChoiceMultiple        FieldType = "choice_multiple"
	FieldUserSelectorSingle    FieldType = "user_selector_single"
	FieldUserSelectorMultiple  FieldType = "user_selector_multiple"
	FieldAssetSelectorSingle   FieldType = "asset_selector_single"
	FieldAssetSelectorMultiple FieldType = "asset_selector_multiple"
	FieldGroupSelectorSingle   FieldType = "group_selector_single"
	FieldGroupSelectorMultiple FieldType = "group_selector_multiple"
	FieldDepartmentSelector    FieldType = "department_selector"
	FieldProjectSelector       FieldType = "project_selector"
	FieldFileUpload            FieldType = "file_upload"
)

// SelectorKind names the remote collection a selector field resolves against.
type SelectorKind string

const (
	SelectorNone        SelectorKind = ""
	SelectorUsers       SelectorKind = "users"
	SelectorAssets      SelectorKind = "assets"
	SelectorGroups      SelectorKind = "groups"
	SelectorDepartments SelectorKind = "departments"
	SelectorProjects    SelectorKind = "projects"
)

// FieldTypes lists every supported type in declaration order.
var FieldTypes = []FieldType{
	FieldTextShort,
	FieldTextArea,
	FieldNumber,
	FieldDate,
	FieldDateTime,
	FieldBoolean,
	FieldChoiceSingle,
	FieldChoiceMultiple,
	FieldUserSelectorSingle,
	FieldUserSelectorMultiple,
	FieldAssetSelectorSingle,
	FieldAssetSelectorMultiple,
	FieldGroupSelectorSingle,
	FieldGroupSelectorMultiple,
	FieldDepartmentSelector,
	FieldProjectSelector,
	FieldFileUpload,
}

// Known reports whether t belongs to the supported vocabulary.
func (t FieldType) Known() bool {
	switch t {
	case FieldTextShort, FieldTextArea, FieldNumber, FieldDate, FieldDateTime,
		FieldBoolean, FieldChoiceSingle, FieldChoiceMultiple,
		FieldUserSelectorSingle, FieldUserSelectorMultiple,
		FieldAssetSelectorSingle, FieldAssetSelectorMultiple,
		FieldGroupSelectorSingle, FieldGroupSelectorMultiple,
		FieldDepartmentSelector, FieldProjectSelector, FieldFileUpload:
		return true
	default:
		return false
	}
}

// IsChoice reports whether the field draws its values from inline options.
func (t FieldType) IsChoice() bool {
	return t == FieldChoiceSingle || t == FieldChoiceMultiple
}

// IsSelector reports whether the field is resolved against a remote list.
func (t FieldType) IsSelector() bool {
	return t.Selector() != SelectorNone
}

// IsMultiple reports whether the stored value is a list.
func (t FieldType) IsMultiple() bool {
	switch t {
	case FieldChoiceMultiple, FieldUserSelectorMultiple, FieldAssetSelectorMultiple, FieldGroupSelectorMultiple:
		return true
	default:
		return false
	}
}

// Selector returns the remote collection backing a selector type.
func (t FieldType) Selector() SelectorKind {
	switch t {
	case FieldUserSelectorSingle, FieldUserSelectorMultiple:
		return SelectorUsers
	case FieldAssetSelectorSingle, FieldAssetSelectorMultiple:
		return SelectorAssets
	case FieldGroupSelectorSingle, FieldGroupSelectorMultiple:
		return SelectorGroups
	case FieldDepartmentSelector:
		return SelectorDepartments
	case FieldProjectSelector:
		return SelectorProjects
	default:
		return SelectorNone
	}
}

// Option is one entry of a choice field.
type Option struct {
	Value any    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// APISource points a field at a server-backed option list and names the
// response keys holding each option's value and label.
type APISource struct {
	Endpoint   string            `json:"endpoint" yaml:"endpoint"`
	ValueField string            `json:"value_field,omitempty" yaml:"value_field,omitempty"`
	LabelField string            `json:"label_field,omitempty" yaml:"label_field,omitempty"`
	Params     map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// FieldDefinition describes one named, typed slot within a template.
type FieldDefinition struct {
	Name         string         `json:"name" yaml:"name"`
	Label        string         `json:"label,omitempty" yaml:"label,omitempty"`
	Type         FieldType      `json:"type" yaml:"type"`
	Required     bool           `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue any            `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Placeholder  string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText     string         `json:"helpText,omitempty" yaml:"helpText,omitempty"`
	Options      []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	Readonly     bool           `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	APISource    *APISource     `json:"api_source,omitempty" yaml:"api_source,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f FieldDefinition) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// Attribute returns a string rendering hint from Attributes.
func (f FieldDefinition) Attribute(key string) string {
	if len(f.Attributes) == 0 {
		return ""
	}
	if raw, ok := f.Attributes[key]; ok {
		if s, ok := raw.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Lookup returns the option whose value matches v by identifier equality.
func (f FieldDefinition) Lookup(v any) (Option, bool) {
	key := IDString(v)
	if key == "" {
		return Option{}, false
	}
	for _, opt := range f.Options {
		if IDString(opt.Value) == key {
			return opt, true
		}
	}
	return Option{}, false
}
