package model

// ApprovalType selects how a document gets from draft to publishable.
type ApprovalType string

const (
	ApprovalNone     ApprovalType = "none"
	ApprovalSimple   ApprovalType = "simple"
	ApprovalAdvanced ApprovalType = "advanced"
)

// Template is an IOM template: the ordered field list plus approval settings.
// It is read-only input for the form engine.
type Template struct {
	ID                  int64             `json:"id" yaml:"id"`
	Name                string            `json:"name" yaml:"name"`
	Description         string            `json:"description,omitempty" yaml:"description,omitempty"`
	Category            string            `json:"category_name,omitempty" yaml:"category,omitempty"`
	Fields              []FieldDefinition `json:"fields_definition" yaml:"fields_definition"`
	ApprovalType        ApprovalType      `json:"approval_type" yaml:"approval_type"`
	SimpleApproverUser  *int64            `json:"simple_approval_user,omitempty" yaml:"simple_approval_user,omitempty"`
	SimpleApproverGroup *int64            `json:"simple_approval_group,omitempty" yaml:"simple_approval_group,omitempty"`
	IsActive            bool              `json:"is_active" yaml:"is_active"`
}

// Field returns the definition named name.
func (t Template) Field(name string) (FieldDefinition, bool) {
	for _, field := range t.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

// HasField reports whether the template declares a field called name.
func (t Template) HasField(name string) bool {
	_, ok := t.Field(name)
	return ok
}

// EffectiveApproval treats an empty approval type as none.
func (t Template) EffectiveApproval() ApprovalType {
	if t.ApprovalType == "" {
		return ApprovalNone
	}
	return t.ApprovalType
}

// Clone returns a copy whose slices and maps can be mutated independently.
func (t Template) Clone() Template {
	out := t
	if t.Fields != nil {
		out.Fields = make([]FieldDefinition, len(t.Fields))
		for i, field := range t.Fields {
			out.Fields[i] = field.Clone()
		}
	}
	out.SimpleApproverUser = cloneID(t.SimpleApproverUser)
	out.SimpleApproverGroup = cloneID(t.SimpleApproverGroup)
	return out
}

// Clone returns a deep copy of the field definition.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	out.DefaultValue = CloneValue(f.DefaultValue)
	if f.Options != nil {
		out.Options = make([]Option, len(f.Options))
		for i, opt := range f.Options {
			out.Options[i] = Option{Value: CloneValue(opt.Value), Label: opt.Label}
		}
	}
	if f.Attributes != nil {
		out.Attributes = ClonePayload(f.Attributes)
	}
	if f.APISource != nil {
		src := *f.APISource
		if f.APISource.Params != nil {
			src.Params = make(map[string]string, len(f.APISource.Params))
			for k, v := range f.APISource.Params {
				src.Params[k] = v
			}
		}
		out.APISource = &src
	}
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
