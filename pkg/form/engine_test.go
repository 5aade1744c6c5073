package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/client"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
	"github.com/goliatone/go-iom/pkg/render"
	exprvis "github.com/goliatone/go-iom/pkg/visibility/expr"
)

type stubAPI struct {
	mu      sync.Mutex
	creates []model.Write
	updates []model.Write
	err     error
	gate    chan struct{}
	nextID  int64
}

func (s *stubAPI) CreateIOM(ctx context.Context, in model.Write) (model.Document, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, in)
	if s.err != nil {
		return model.Document{}, s.err
	}
	s.nextID++
	return model.Document{ID: s.nextID, Subject: in.Subject, DataPayload: in.DataPayload, Status: model.StatusDraft}, nil
}

func (s *stubAPI) UpdateIOM(ctx context.Context, id int64, in model.Write) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, in)
	if s.err != nil {
		return model.Document{}, s.err
	}
	return model.Document{ID: id, Subject: in.Subject, DataPayload: in.DataPayload}, nil
}

type memDrafts struct {
	saved   map[string]Draft
	deleted []string
}

func (m *memDrafts) Save(ctx context.Context, d Draft) error {
	if m.saved == nil {
		m.saved = map[string]Draft{}
	}
	m.saved[d.Key] = d
	return nil
}

func (m *memDrafts) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

func printerTemplate() model.Template {
	return model.Template{
		ID:   1,
		Name: "Incident memo",
		Fields: []model.FieldDefinition{
			{Name: "title", Label: "Title", Type: model.FieldTextShort, Required: true},
			{Name: "urgent", Label: "Urgent", Type: model.FieldBoolean, DefaultValue: false},
		},
	}
}

func TestCreateSubmitsPrinterDownPayload(t *testing.T) {
	api := &stubAPI{}
	e := NewCreate(printerTemplate(), api, WithLogger(logging.Discard()))
	e.SetSubject("Printer down on 3rd floor")
	if err := e.SetField("title", "Printer down"); err != nil {
		t.Fatal(err)
	}

	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Redirect != "/ioms/1" {
		t.Fatalf("redirect = %q", res.Redirect)
	}
	if len(api.creates) != 1 {
		t.Fatalf("expected one create call, got %d", len(api.creates))
	}
	want := map[string]any{"title": "Printer down", "urgent": false}
	if diff := cmp.Diff(want, api.creates[0].DataPayload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if api.creates[0].TemplateID != 1 {
		t.Fatalf("template id = %d", api.creates[0].TemplateID)
	}
}

func TestBooleanWithoutDefaultSeedsFalse(t *testing.T) {
	tpl := model.Template{Fields: []model.FieldDefinition{
		{Name: "confirmed", Type: model.FieldBoolean},
		{Name: "notes", Type: model.FieldTextArea},
		{Name: "count", Type: model.FieldNumber, DefaultValue: float64(2)},
	}}
	e := NewCreate(tpl, &stubAPI{})
	if diff := cmp.Diff(map[string]any{"confirmed": false, "count": float64(2)}, e.Payload()); diff != "" {
		t.Fatalf("seed mismatch (-want +got):\n%s", diff)
	}
}

func TestBlankSubjectNeverCallsAPI(t *testing.T) {
	for _, subject := range []string{"", "   ", "\t\n"} {
		api := &stubAPI{}
		rec := &notify.Recorder{}
		e := NewCreate(printerTemplate(), api, WithNotifier(rec), WithLogger(logging.Discard()))
		e.SetSubject(subject)
		_ = e.SetField("title", "Printer down")

		_, err := e.Submit(context.Background())
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("subject %q: expected ErrInvalid, got %v", subject, err)
		}
		if len(api.creates) != 0 {
			t.Fatalf("subject %q: create must not be called", subject)
		}
		if _, ok := e.Errors()["subject"]; !ok {
			t.Fatalf("subject %q: expected inline subject error", subject)
		}
		if rec.Count(notify.LevelError) != 1 {
			t.Fatalf("expected an error notification")
		}
	}
}

func TestRequiredFieldRejectedLocally(t *testing.T) {
	api := &stubAPI{}
	e := NewCreate(printerTemplate(), api, WithLogger(logging.Discard()))
	e.SetSubject("Something")

	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if diff := cmp.Diff(map[string][]string{"title": {msgRequired}}, e.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if len(api.creates) != 0 {
		t.Fatal("create must not be called")
	}
}

func TestEditRoundTripKeepsPayload(t *testing.T) {
	tpl := printerTemplate()
	tpl.Fields = append(tpl.Fields, model.FieldDefinition{Name: "assets", Type: model.FieldAssetSelectorMultiple})
	stored := map[string]any{
		"title":  "Printer down",
		"urgent": true,
		"assets": []any{float64(4), float64(9)},
		"legacy": map[string]any{"kept": "as is"},
	}
	doc := model.Document{
		ID:          42,
		Template:    &tpl,
		Subject:     "Printer",
		DataPayload: stored,
		Status:      model.StatusDraft,
	}
	api := &stubAPI{}
	e, err := NewEdit(doc, api, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Redirect != "/ioms/42" || len(api.updates) != 1 {
		t.Fatalf("unexpected result %+v updates=%d", res, len(api.updates))
	}
	if diff := cmp.Diff(stored, api.updates[0].DataPayload); diff != "" {
		t.Fatalf("round trip changed payload (-want +got):\n%s", diff)
	}
	if api.updates[0].TemplateID != 0 {
		t.Fatal("updates must not resend the template")
	}
}

func TestEditIgnoresTemplateDefaults(t *testing.T) {
	tpl := printerTemplate()
	tpl.Fields[1].DefaultValue = true
	e, err := NewEdit(model.Document{ID: 1, Template: &tpl, DataPayload: map[string]any{"title": "x"}}, &stubAPI{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Value("urgent"); ok {
		t.Fatal("edit must not seed defaults")
	}

	if _, err := NewEdit(model.Document{ID: 1}, &stubAPI{}); !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
}

func TestSetFieldReplacesOneKey(t *testing.T) {
	e := NewCreate(printerTemplate(), &stubAPI{})
	_ = e.SetField("title", "A")
	_ = e.SetField("urgent", true)
	_ = e.SetField("title", "B")

	if diff := cmp.Diff(map[string]any{"title": "B", "urgent": true}, e.Payload()); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if err := e.SetField("nope", 1); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestRemoteValidationFailureKeepsValues(t *testing.T) {
	api := &stubAPI{err: &client.APIError{
		StatusCode: http.StatusBadRequest,
		Fields: map[string][]string{
			"data_payload.title": {"Title too short"},
			"subject":            {"Subject already used"},
		},
	}}
	rec := &notify.Recorder{}
	drafts := &memDrafts{}
	e := NewCreate(printerTemplate(), api, WithNotifier(rec), WithDraftStore(drafts), WithLogger(logging.Discard()))
	e.SetSubject("Dup")
	_ = e.SetField("title", "P")

	if _, err := e.Submit(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	want := "subject: Subject already used; title: Title too short"
	if e.FormError() != want {
		t.Fatalf("form error = %q, want %q", e.FormError(), want)
	}
	if msg, _ := rec.Last(); msg.Level != notify.LevelError || msg.Text != want {
		t.Fatalf("notification = %+v", msg)
	}
	if diff := cmp.Diff(map[string][]string{"title": {"Title too short"}, "subject": {"Subject already used"}}, e.Errors()); diff != "" {
		t.Fatalf("field errors (-want +got):\n%s", diff)
	}
	if v, _ := e.Value("title"); v != "P" || e.Subject() != "Dup" {
		t.Fatal("entered values must survive a failed submit")
	}
	draft, ok := drafts.saved[CreateDraftKey(1)]
	if !ok || draft.Payload["title"] != "P" || draft.Error != want {
		t.Fatalf("draft not saved: %+v", draft)
	}

	api.err = nil
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e.FormError() != "" || len(drafts.deleted) != 1 {
		t.Fatalf("success should clear the banner and the draft, got %q %v", e.FormError(), drafts.deleted)
	}
}

func TestTransportFailureShowsGenericMessage(t *testing.T) {
	api := &stubAPI{err: fmt.Errorf("%w: dial tcp", client.ErrTransport)}
	rec := &notify.Recorder{}
	e := NewCreate(printerTemplate(), api, WithNotifier(rec), WithLogger(logging.Discard()))
	e.SetSubject("S")
	_ = e.SetField("title", "T")

	if _, err := e.Submit(context.Background()); !errors.Is(err, client.ErrTransport) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if e.FormError() != msgTransport {
		t.Fatalf("form error = %q", e.FormError())
	}
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	api := &stubAPI{gate: make(chan struct{})}
	e := NewCreate(printerTemplate(), api, WithLogger(logging.Discard()))
	e.SetSubject("S")
	_ = e.SetField("title", "T")

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		done <- err
	}()
	for !e.Submitting() {
		// wait for the first submission to take the guard
	}
	for _, ctrl := range e.Controls() {
		if !ctrl.Disabled {
			t.Fatalf("control %s should be disabled while submitting", ctrl.Field.Name)
		}
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(api.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(api.creates) != 1 {
		t.Fatalf("expected exactly one create, got %d", len(api.creates))
	}
}

func TestOverlaysFillConventionalFields(t *testing.T) {
	dept := int64(7)
	tpl := model.Template{ID: 3, Fields: []model.FieldDefinition{
		{Name: "related_record", Type: model.FieldTextShort, DefaultValue: "placeholder"},
		{Name: "requester", Type: model.FieldUserSelectorSingle},
		{Name: "requester_name", Type: model.FieldTextShort},
		{Name: "department", Type: model.FieldDepartmentSelector},
		{Name: "department_name", Type: model.FieldTextShort},
		{Name: "summary", Type: model.FieldTextArea},
	}}
	user := model.User{ID: 11, Username: "ann", FirstName: "Ann", LastName: "Lee", Department: &dept, DepartmentName: "IT"}
	e := NewCreate(tpl, &stubAPI{}, WithUser(user), WithParent(Parent{AppLabel: "incidents", Model: "incident", ObjectID: 5, Display: "INC-0005"}))

	want := map[string]any{
		"related_record":  "INC-0005",
		"requester":       int64(11),
		"requester_name":  "Ann Lee",
		"department":      int64(7),
		"department_name": "IT",
	}
	if diff := cmp.Diff(want, e.Payload()); diff != "" {
		t.Fatalf("overlay mismatch (-want +got):\n%s", diff)
	}
	if w := e.Write(); w.ParentObjectID == nil || *w.ParentObjectID != 5 {
		t.Fatalf("parent object id not sent: %+v", w)
	}
}

type resolverFunc func(ctx context.Context, appLabel, modelName string) (int64, error)

func (fn resolverFunc) ContentTypeID(ctx context.Context, appLabel, modelName string) (int64, error) {
	return fn(ctx, appLabel, modelName)
}

func TestLinkParentNotFoundIsSoft(t *testing.T) {
	rec := &notify.Recorder{}
	e := NewCreate(printerTemplate(), &stubAPI{}, WithNotifier(rec), WithLogger(logging.Discard()))
	e.LinkParent(context.Background(), resolverFunc(func(context.Context, string, string) (int64, error) {
		return 0, fmt.Errorf("%w: content type", client.ErrNotFound)
	}), Parent{AppLabel: "cmdb", Model: "asset", ObjectID: 3})

	parent, ok := e.Parent()
	if !ok || parent.ContentTypeID != nil || parent.ObjectID != 3 {
		t.Fatalf("unexpected parent %+v", parent)
	}
	if rec.Count(notify.LevelWarning) != 1 {
		t.Fatal("expected a warning notification")
	}

	e.LinkParent(context.Background(), resolverFunc(func(context.Context, string, string) (int64, error) {
		return 21, nil
	}), Parent{AppLabel: "cmdb", Model: "asset", ObjectID: 3})
	if w := e.Write(); w.ParentContentTypeID == nil || *w.ParentContentTypeID != 21 {
		t.Fatalf("content type not linked: %+v", w)
	}
}

func TestHiddenRequiredFieldIsSkipped(t *testing.T) {
	tpl := model.Template{ID: 2, Fields: []model.FieldDefinition{
		{Name: "category", Type: model.FieldChoiceSingle, Options: []model.Option{{Value: "hw", Label: "Hardware"}, {Value: "sw", Label: "Software"}}},
		{Name: "serial", Type: model.FieldTextShort, Required: true, Attributes: map[string]any{"visible_when": "category == 'hw'"}},
	}}
	api := &stubAPI{}
	e := NewCreate(tpl, api, WithVisibility(exprvis.New()), WithLogger(logging.Discard()))
	e.SetSubject("License")
	_ = e.SetField("category", "sw")

	if n := len(e.Controls()); n != 1 {
		t.Fatalf("expected serial hidden, got %d controls", n)
	}
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("hidden required field should not block submit: %v", err)
	}

	_ = e.SetField("category", "hw")
	if errs := e.Validate(); len(errs["serial"]) == 0 {
		t.Fatal("visible required field should be validated")
	}
}

func TestDefaultLoggerIsSilent(t *testing.T) {
	var buf bytes.Buffer
	std := logrus.StandardLogger()
	prev := std.Out
	std.SetOutput(&buf)
	t.Cleanup(func() { std.SetOutput(prev) })

	tpl := model.Template{ID: 2, Fields: []model.FieldDefinition{
		{Name: "serial", Type: model.FieldTextShort, Attributes: map[string]any{"visible_when": "category =="}},
	}}
	e := NewCreate(tpl, &stubAPI{}, WithVisibility(exprvis.New()))
	if n := len(e.Controls()); n != 1 {
		t.Fatalf("broken rule should keep the field visible, got %d controls", n)
	}
	if buf.Len() != 0 {
		t.Fatalf("engine without WithLogger wrote to the standard logger: %s", buf.String())
	}
}

func TestPreviewIsLocal(t *testing.T) {
	api := &stubAPI{}
	e := NewCreate(printerTemplate(), api)
	e.SetSubject("S")
	_ = e.SetField("title", "Printer down")

	if !e.TogglePreview() {
		t.Fatal("expected preview on")
	}
	view := e.Preview(nil)
	if view.Rows[0].Text != "Printer down" || view.Rows[1].Text != "No" {
		t.Fatalf("unexpected rows %+v", view.Rows)
	}
	for _, ctrl := range e.Controls() {
		if !ctrl.Disabled {
			t.Fatal("controls are read-only while previewing")
		}
	}
	if e.TogglePreview() {
		t.Fatal("expected preview off")
	}
	if len(api.creates)+len(api.updates) != 0 {
		t.Fatal("preview must not call the API")
	}
}

func TestControlsRouteChangesToPayload(t *testing.T) {
	e := NewCreate(printerTemplate(), &stubAPI{})
	ctrls := e.Controls()
	if err := ctrls[1].Set("yes"); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Value("urgent"); v != true {
		t.Fatalf("urgent = %v", v)
	}
	if ctrls[0].Widget != render.WidgetText {
		t.Fatalf("title widget = %s", ctrls[0].Widget)
	}
}
