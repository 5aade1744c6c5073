package schema_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/schema"
)

const yamlTemplate = `
id: 7
name: "<b>Purchase</b> memo"
approval_type: simple
simple_approval_user: 4
fields_definition:
  - name: title
    label: Title
    type: text_short
    required: true
  - name: quantity
    type: number
    defaultValue: 3
  - name: priority
    type: choice_single
    options:
      - {value: low, label: Low}
      - {value: high, label: "<i>High</i>"}
`

func TestParse_YAMLNormalisesNumbersAndSanitises(t *testing.T) {
	doc := schema.MustNewDocument(schema.SourceFromFS("memo.yaml"), []byte(yamlTemplate))

	tpl, err := schema.Parse(doc, schema.Sanitizer())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if tpl.Name != "Purchase memo" {
		t.Fatalf("expected sanitized name, got %q", tpl.Name)
	}
	if tpl.ApprovalType != model.ApprovalSimple || tpl.SimpleApproverUser == nil || *tpl.SimpleApproverUser != 4 {
		t.Fatalf("unexpected approval config: %#v", tpl)
	}

	quantity, ok := tpl.Field("quantity")
	if !ok {
		t.Fatalf("quantity field missing")
	}
	if _, isFloat := quantity.DefaultValue.(float64); !isFloat {
		t.Fatalf("expected float64 default, got %T", quantity.DefaultValue)
	}

	priority, _ := tpl.Field("priority")
	want := []model.Option{{Value: "low", Label: "Low"}, {Value: "high", Label: "High"}}
	if diff := cmp.Diff(want, priority.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	doc := schema.MustNewDocument(schema.SourceFromFS("broken.json"), []byte(`{"fields_definition": [`))
	if _, err := schema.Parse(doc); err == nil {
		t.Fatalf("expected parse error")
	}

	if _, err := schema.ParseFields([]byte(`[{"name": "a", "type": "text_short"}`)); err == nil {
		t.Fatalf("expected fields parse error")
	}
}

func TestLoader_FS(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/memo.yaml": {Data: []byte(yamlTemplate)},
	}
	loader := schema.NewLoader(schema.WithFS(fsys))

	tpl, err := loader.Load(context.Background(), schema.SourceFromFS("templates/memo.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tpl.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(tpl.Fields))
	}
	if tpl.Name != "Purchase memo" {
		t.Fatalf("expected default sanitizer to run, got %q", tpl.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		tpl      model.Template
		valid    bool
		contains string
	}{
		{
			name: "valid",
			tpl: model.Template{
				ApprovalType: model.ApprovalNone,
				Fields: []model.FieldDefinition{
					{Name: "title", Type: model.FieldTextShort},
					{Name: "kind", Type: model.FieldChoiceSingle, Options: []model.Option{{Value: "a", Label: "A"}}},
				},
			},
			valid: true,
		},
		{
			name: "duplicate names",
			tpl: model.Template{Fields: []model.FieldDefinition{
				{Name: "title", Type: model.FieldTextShort},
				{Name: "title", Type: model.FieldTextArea},
			}},
			contains: "duplicate field name",
		},
		{
			name: "choice without options",
			tpl: model.Template{Fields: []model.FieldDefinition{
				{Name: "kind", Type: model.FieldChoiceMultiple},
			}},
			contains: "at least one option",
		},
		{
			name: "choice backed only by api_source",
			tpl: model.Template{Fields: []model.FieldDefinition{
				{Name: "priority", Type: model.FieldChoiceSingle, APISource: &model.APISource{Endpoint: "priorities"}},
			}},
			contains: "at least one option",
		},
		{
			name: "api_source on a choice field with options",
			tpl: model.Template{Fields: []model.FieldDefinition{
				{
					Name:      "priority",
					Type:      model.FieldChoiceSingle,
					Options:   []model.Option{{Value: "low", Label: "Low"}},
					APISource: &model.APISource{Endpoint: "priorities"},
				},
			}},
			valid:    true,
			contains: "only used by selector fields",
		},
		{
			name: "unknown type",
			tpl: model.Template{Fields: []model.FieldDefinition{
				{Name: "sig", Type: "signature_pad"},
			}},
			contains: "unsupported field type",
		},
		{
			name:     "bad approval type",
			tpl:      model.Template{ApprovalType: "quorum"},
			contains: "unsupported approval type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.Validate(tt.tpl)
			if result.Valid != tt.valid {
				t.Fatalf("valid = %v, want %v (issues %v)", result.Valid, tt.valid, result.Issues)
			}
			if tt.contains == "" {
				return
			}
			for _, issue := range result.Issues {
				if strings.Contains(issue.Message, tt.contains) {
					return
				}
			}
			t.Fatalf("expected an issue containing %q, got %v", tt.contains, result.Issues)
		})
	}
}

func TestValidate_SimpleApprovalWarnings(t *testing.T) {
	user, group := int64(1), int64(2)
	result := schema.Validate(model.Template{
		ApprovalType:        model.ApprovalSimple,
		SimpleApproverUser:  &user,
		SimpleApproverGroup: &group,
	})
	if !result.Valid {
		t.Fatalf("warnings must not invalidate the template: %v", result.Issues)
	}
	if len(result.Issues) != 1 || result.Issues[0].Severity != schema.SeverityWarning {
		t.Fatalf("expected one warning, got %v", result.Issues)
	}
}
