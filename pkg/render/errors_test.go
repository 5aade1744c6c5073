package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/render"
)

func TestMapErrorPayload(t *testing.T) {
	tpl := model.Template{
		Fields: []model.FieldDefinition{
			{Name: "title", Type: model.FieldTextShort},
			{Name: "tags", Type: model.FieldChoiceMultiple},
		},
	}

	payload := map[string][]string{
		"subject":              {"This field may not be blank."},
		"data_payload.title":   {"Title is required"},
		"/data_payload/tags/0": {"Unknown tag"},
		"non_field_errors":     {"Form level error"},
		"data_payload/unknown": {"Should fall back to form errors"},
		"detail":               {"Bad request"},
	}

	mapped := render.MapErrorPayload(tpl, payload)

	wantFields := map[string][]string{
		"subject": {"This field may not be blank."},
		"title":   {"Title is required"},
		"tags":    {"Unknown tag"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	wantForm := []string{"Bad request", "Form level error", "Should fall back to form errors"}
	if diff := cmp.Diff(wantForm, mapped.Form, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrorPayloadAndFlatten(t *testing.T) {
	raw := []byte(`{"subject":["This field may not be blank."],"data_payload":{"title":"Too short"},"non_field_errors":["Template inactive"]}`)

	payload, ok := render.DecodeErrorPayload(raw)
	if !ok {
		t.Fatal("expected payload to decode")
	}
	want := map[string][]string{
		"subject":            {"This field may not be blank."},
		"data_payload.title": {"Too short"},
		"non_field_errors":   {"Template inactive"},
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("decoded payload mismatch (-want +got):\n%s", diff)
	}

	got := render.Flatten(payload)
	wantLine := "Template inactive; data_payload.title: Too short; subject: This field may not be blank."
	if got != wantLine {
		t.Fatalf("Flatten = %q, want %q", got, wantLine)
	}

	if _, ok := render.DecodeErrorPayload([]byte("<html>")); ok {
		t.Fatal("non-JSON body should not decode")
	}
}

func TestErrorMappingSummary(t *testing.T) {
	mapping := render.ErrorMapping{
		Fields: map[string][]string{"title": {"Required"}, "subject": {"Blank"}},
		Form:   []string{"Check the form"},
	}
	if got, want := mapping.Summary(), "Check the form; subject: Blank; title: Required"; got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
}

func TestMergeFormErrors(t *testing.T) {
	merged := render.MergeFormErrors([]string{" First ", "Second"}, "Second", "third", "  ")
	want := []string{"First", "Second", "third"}

	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorPayloadMergesFormLevelMessages(t *testing.T) {
	tpl := model.Template{Fields: []model.FieldDefinition{{Name: "title", Type: model.FieldTextShort}}}
	mapping := render.MapErrorPayload(tpl, map[string][]string{
		"non_field_errors":   {"Template inactive", " Try later "},
		"__all__":            {"Try later"},
		"data_payload.title": {"Required"},
	})
	want := render.ErrorMapping{
		Fields: map[string][]string{"title": {"Required"}},
		Form:   []string{"Template inactive", "Try later"},
	}
	if diff := cmp.Diff(want, mapping); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
}
