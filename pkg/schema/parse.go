package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-iom/pkg/model"
)

// Parse decodes a template document. YAML documents are re-encoded as JSON
// before decoding so that default values and option values carry the same
// Go types regardless of the input format (numbers become float64).
func Parse(doc Document, decorators ...model.Decorator) (model.Template, error) {
	raw := doc.Raw()
	if doc.Format() == FormatYAML {
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return model.Template{}, fmt.Errorf("schema: parse yaml %s: %w", doc.Location(), err)
		}
		converted, err := json.Marshal(generic)
		if err != nil {
			return model.Template{}, fmt.Errorf("schema: convert yaml %s: %w", doc.Location(), err)
		}
		raw = converted
	}

	var tpl model.Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return model.Template{}, fmt.Errorf("schema: parse json %s: %w", doc.Location(), err)
	}

	for _, decorator := range decorators {
		if decorator == nil {
			continue
		}
		if err := decorator.Decorate(&tpl); err != nil {
			return model.Template{}, fmt.Errorf("schema: decorate %s: %w", doc.Location(), err)
		}
	}
	return tpl, nil
}

// ParseFields decodes a bare fields_definition array, as edited in the
// template admin screen.
func ParseFields(raw []byte) ([]model.FieldDefinition, error) {
	var fields []model.FieldDefinition
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("schema: fields definition is not valid JSON: %w", err)
	}
	return fields, nil
}
