package preview

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/render"
	"github.com/goliatone/go-iom/pkg/testsupport"
)

func sampleView() render.View {
	tpl := model.Template{
		ID:   4,
		Name: "Printer Issue",
		Fields: []model.FieldDefinition{
			{Name: "location", Label: "Location", Type: model.FieldTextShort},
			{Name: "urgent", Label: "Urgent", Type: model.FieldBoolean},
			{Name: "notes", Label: "Notes <b>", Type: model.FieldTextArea},
		},
	}
	doc := model.Document{
		ID:                12,
		TemplateID:        4,
		Subject:           "Printer down",
		Status:            model.StatusPendingApproval,
		CreatedByUsername: "alice",
		DataPayload: map[string]any{
			"location": "Floor 2",
			"urgent":   true,
			"legacy":   "x",
		},
	}
	return render.NewView(tpl, doc, nil)
}

func TestTextRendersDefaultTemplate(t *testing.T) {
	r, err := NewText()
	if err != nil {
		t.Fatalf("new text: %v", err)
	}
	out, err := r.Render(context.Background(), sampleView())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := string(out)
	for _, want := range []string{
		"Printer Issue #12",
		"Subject: Printer down",
		"Status:  Pending approval",
		"Author:  alice",
		"Location: Floor 2",
		"Urgent: Yes",
		"Notes <b>: Not provided",
		"legacy: x (not in template)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestTextCustomTemplateFromFS(t *testing.T) {
	files := fstest.MapFS{
		"short.txt": {Data: []byte(`{{ prefix }}{{ document.subject }}|{% for row in rows %}{{ row.name }}={{ row.text }};{% endfor %}`)},
	}
	r, err := NewText(WithTemplateFS(files, "short.txt"), WithGlobals(map[string]any{"prefix": "> "}))
	if err != nil {
		t.Fatalf("new text: %v", err)
	}
	out, err := r.Render(context.Background(), sampleView())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "> Printer down|location=Floor 2;urgent=Yes;notes=Not provided;legacy=x;"
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestTextRejectsBrokenTemplate(t *testing.T) {
	if _, err := NewText(WithTemplateString("{% for %}")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := NewText(WithTemplateFS(fstest.MapFS{}, "")); err == nil {
		t.Fatalf("expected error for missing template name")
	}
}

func TestJSONRenderer(t *testing.T) {
	out, err := JSON{}.Render(context.Background(), sampleView())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var decoded struct {
		Subject string `json:"subject"`
		Status  string `json:"status"`
		Rows    []struct {
			Name  string `json:"name"`
			Text  string `json:"text"`
			Extra bool   `json:"extra"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Subject != "Printer down" || decoded.Status != "pending_approval" {
		t.Fatalf("unexpected header %+v", decoded)
	}
	if len(decoded.Rows) != 4 || !decoded.Rows[3].Extra || decoded.Rows[3].Name != "legacy" {
		t.Fatalf("unexpected rows %+v", decoded.Rows)
	}
	testsupport.AssertGolden(t, "testdata/printer_issue.json.golden", out)
}

func TestRegisterSetsTextDefault(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if diff := cmp.Diff([]string{JSONName, TextName}, reg.List()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	def, err := reg.Default()
	if err != nil || def.Name() != TextName {
		t.Fatalf("default = %v, %v", def, err)
	}
	if err := Register(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"":                 "Unknown",
		"draft":            "Draft",
		"pending_approval": "Pending approval",
	}
	for in, want := range cases {
		if got := StatusLabel(in); got != want {
			t.Errorf("StatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTextResolvesSelectorLabelsFromFixtures(t *testing.T) {
	tpl := testsupport.LoadTemplate(t, "testdata/capital_expense.yaml")
	doc := testsupport.MustLoadDocument(t, "testdata/capital_expense_document.json")
	projects := map[string]string{"2": "ERP Rollout"}
	resolve := func(field model.FieldDefinition, id any) (string, bool) {
		label, ok := projects[model.IDString(id)]
		return label, ok
	}

	r, err := NewText()
	if err != nil {
		t.Fatalf("new text: %v", err)
	}
	out, err := r.Render(testsupport.Context(), render.NewView(tpl, doc, resolve))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := string(out)
	for _, want := range []string{
		"Capital Expense #30",
		"Status:  Approved",
		"Project: ERP Rollout",
		"Description: Not provided",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}
