package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/client"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
	"github.com/goliatone/go-iom/pkg/render"
	"github.com/goliatone/go-iom/pkg/visibility"
)

const (
	msgRequired    = "This field is required."
	msgSubject     = "Subject is required."
	msgInvalidDate = "Enter a valid date."
	msgTransport   = "Unable to save the document. Please try again."
)

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("form: submission already in progress")
	// ErrInvalid is returned when local validation rejects a submission.
	ErrInvalid = errors.New("form: validation failed")
	// ErrUnknownField is returned by SetField for names the template lacks.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrNoTemplate is returned by NewEdit when no template is available.
	ErrNoTemplate = errors.New("form: document has no template")
)

// Result describes a successful submission.
type Result struct {
	Document model.Document
	Redirect string
}

// Engine owns the editable state of one document.
type Engine struct {
	mu sync.Mutex

	tpl      *model.Template
	docID    int64
	status   model.Status
	subject  string
	payload  map[string]any
	toUsers  []int64
	toGroups []int64

	fieldErrors map[string][]string
	formError   string
	submitting  bool
	preview     bool

	api        API
	user       *model.User
	parent     *Parent
	notify     notify.Sink
	logger     *logrus.Entry
	visibility visibility.Evaluator
	drafts     DraftStore
}

func newEngine(api API, opts []Option) *Engine {
	e := &Engine{
		api:    api,
		notify: notify.Discard,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// NewCreate starts a create session. The payload is seeded from field
// defaults (booleans without a default start false), then overlaid with the
// parent record and acting user context on conventionally named fields.
func NewCreate(tpl model.Template, api API, opts ...Option) *Engine {
	e := newEngine(api, opts)
	if e.tpl == nil {
		t := tpl.Clone()
		e.tpl = &t
	}
	e.payload = make(map[string]any, len(e.tpl.Fields))
	for _, field := range e.tpl.Fields {
		switch {
		case field.DefaultValue != nil:
			e.payload[field.Name] = model.CloneValue(field.DefaultValue)
		case field.Type == model.FieldBoolean:
			e.payload[field.Name] = false
		}
	}
	e.applyOverlays()
	e.logger = e.logger.WithFields(logrus.Fields{"template_id": e.tpl.ID, "mode": "create"})
	return e
}

// NewEdit starts an edit session seeded only from the stored payload.
func NewEdit(doc model.Document, api API, opts ...Option) (*Engine, error) {
	e := newEngine(api, opts)
	if e.tpl == nil {
		if doc.Template == nil {
			return nil, ErrNoTemplate
		}
		t := doc.Template.Clone()
		e.tpl = &t
	}
	e.docID = doc.ID
	e.status = doc.Status
	e.subject = doc.Subject
	e.payload = model.ClonePayload(doc.DataPayload)
	if e.payload == nil {
		e.payload = map[string]any{}
	}
	e.toUsers = append([]int64(nil), doc.ToUsers...)
	e.toGroups = append([]int64(nil), doc.ToGroups...)
	if doc.ParentObjectID != nil && e.parent == nil {
		e.parent = &Parent{
			ObjectID:      *doc.ParentObjectID,
			Display:       doc.ParentDisplay,
			ContentTypeID: doc.ParentContentType,
		}
	}
	e.logger = e.logger.WithFields(logrus.Fields{"template_id": e.tpl.ID, "iom_id": doc.ID, "mode": "edit"})
	return e, nil
}

// Template returns the template the session renders.
func (e *Engine) Template() model.Template {
	return e.tpl.Clone()
}

// DocumentID returns the document id, 0 until a create succeeds.
func (e *Engine) DocumentID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docID
}

// Subject returns the current subject.
func (e *Engine) Subject() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subject
}

// SetSubject replaces the subject.
func (e *Engine) SetSubject(subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subject = subject
	delete(e.fieldErrors, "subject")
}

// Recipients returns the user and group recipients.
func (e *Engine) Recipients() (users, groups []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.toUsers...), append([]int64(nil), e.toGroups...)
}

// SetRecipients replaces the recipient sets. Duplicates are dropped.
func (e *Engine) SetRecipients(users, groups []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toUsers = uniqueIDs(users)
	e.toGroups = uniqueIDs(groups)
}

// Payload returns a copy of the data payload.
func (e *Engine) Payload() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.ClonePayload(e.payload)
}

// Value returns the stored value of one field.
func (e *Engine) Value(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.payload[name]
	return model.CloneValue(v), ok
}

// SetField replaces exactly one payload key.
func (e *Engine) SetField(name string, value any) error {
	if !e.tpl.HasField(name) {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payload[name] = value
	delete(e.fieldErrors, name)
	return nil
}

// Parent returns the parent link, if any.
func (e *Engine) Parent() (Parent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parent == nil {
		return Parent{}, false
	}
	return *e.parent, true
}

// LinkParent resolves the parent's content type. Lookup failures are soft:
// the link keeps a nil content type, the failure is logged and a warning is
// sent to the notifier.
func (e *Engine) LinkParent(ctx context.Context, resolver ContentTypeResolver, parent Parent) {
	p := parent
	if resolver != nil && p.ContentTypeID == nil && p.AppLabel != "" && p.Model != "" {
		id, err := resolver.ContentTypeID(ctx, p.AppLabel, p.Model)
		if err != nil {
			log := e.logger.WithError(err).WithFields(logrus.Fields{"app_label": p.AppLabel, "model": p.Model})
			if client.IsNotFound(err) {
				log.Warn("parent content type not found")
			} else {
				log.Warn("parent content type lookup failed")
			}
			e.notify.Notify(notify.LevelWarning, fmt.Sprintf("Could not link the related %s record.", p.Model))
		} else {
			p.ContentTypeID = &id
		}
	}

	e.mu.Lock()
	e.parent = &p
	e.mu.Unlock()
}

// Visible reports whether field is shown given the current payload.
func (e *Engine) Visible(field model.FieldDefinition) bool {
	e.mu.Lock()
	values := model.ClonePayload(e.payload)
	e.mu.Unlock()
	return e.visible(field, values)
}

func (e *Engine) visible(field model.FieldDefinition, values map[string]any) bool {
	ok, err := visibility.Visible(e.visibility, field, visibility.Context{Values: values, Extras: e.extras()})
	if err != nil {
		e.logger.WithError(err).WithField("field", field.Name).Warn("visibility rule failed")
	}
	return ok
}

func (e *Engine) extras() map[string]any {
	if e.user == nil {
		return nil
	}
	return map[string]any{
		"user_id":  e.user.ID,
		"username": e.user.Username,
		"is_staff": e.user.IsStaff,
	}
}

// Controls renders the visible fields in template order. Edits made through
// the returned controls flow into SetField. Controls are disabled while a
// submission is in flight or the preview is shown.
func (e *Engine) Controls() []render.Control {
	e.mu.Lock()
	values := model.ClonePayload(e.payload)
	errs := cloneErrors(e.fieldErrors)
	disabled := e.submitting || e.preview
	e.mu.Unlock()

	onChange := func(name string, value any) {
		if err := e.SetField(name, value); err != nil {
			e.logger.WithError(err).Debug("ignored change")
		}
	}

	out := make([]render.Control, 0, len(e.tpl.Fields))
	for _, field := range e.tpl.Fields {
		if !e.visible(field, values) {
			continue
		}
		out = append(out, render.Render(field, values[field.Name], onChange, disabled, errs[field.Name]))
	}
	return out
}

// Validate runs the local checks and returns field-keyed messages.
func (e *Engine) Validate() map[string][]string {
	e.mu.Lock()
	subject := e.subject
	values := model.ClonePayload(e.payload)
	e.mu.Unlock()

	errs := make(map[string][]string)
	if strings.TrimSpace(subject) == "" {
		errs["subject"] = []string{msgSubject}
	}
	for _, field := range e.tpl.Fields {
		if !e.visible(field, values) {
			continue
		}
		value := values[field.Name]
		if field.Required && field.Type != model.FieldBoolean && model.IsEmpty(value) {
			errs[field.Name] = append(errs[field.Name], msgRequired)
			continue
		}
		if (field.Type == model.FieldDate || field.Type == model.FieldDateTime) && !model.IsEmpty(value) {
			if _, err := render.ParseTime(value, field.Type == model.FieldDateTime); err != nil {
				errs[field.Name] = append(errs[field.Name], msgInvalidDate)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Errors returns the current field errors.
func (e *Engine) Errors() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneErrors(e.fieldErrors)
}

// FormError returns the banner message of the last failed submission.
func (e *Engine) FormError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.formError
}

// Submitting reports whether a submission is in flight.
func (e *Engine) Submitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitting
}

// Submit validates locally and sends the document. Local failures return
// ErrInvalid without any API call. Remote failures are flattened into
// FormError and notified; entered values are kept and, when a draft store is
// configured, saved as a draft.
func (e *Engine) Submit(ctx context.Context) (Result, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return Result{}, ErrBusy
	}
	e.submitting = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
	}()

	if errs := e.Validate(); len(errs) > 0 {
		summary := render.Flatten(errs)
		e.mu.Lock()
		e.fieldErrors = errs
		e.formError = summary
		e.mu.Unlock()
		e.notify.Notify(notify.LevelError, summary)
		return Result{}, fmt.Errorf("%w: %s", ErrInvalid, summary)
	}

	in := e.Write()
	e.mu.Lock()
	docID := e.docID
	e.mu.Unlock()

	var (
		doc model.Document
		err error
	)
	if docID == 0 {
		doc, err = e.api.CreateIOM(ctx, in)
	} else {
		doc, err = e.api.UpdateIOM(ctx, docID, in)
	}
	if err != nil {
		e.fail(ctx, err)
		return Result{}, fmt.Errorf("form: submit: %w", err)
	}

	e.mu.Lock()
	created := e.docID == 0
	e.docID = doc.ID
	e.fieldErrors = nil
	e.formError = ""
	e.mu.Unlock()

	if e.drafts != nil {
		if err := e.drafts.Delete(ctx, e.draftKey(docID)); err != nil {
			e.logger.WithError(err).Warn("draft cleanup failed")
		}
	}
	if created {
		e.notify.Notify(notify.LevelSuccess, "IOM created.")
	} else {
		e.notify.Notify(notify.LevelSuccess, "IOM updated.")
	}
	e.logger.WithField("iom_id", doc.ID).Info("document saved")
	return Result{Document: doc, Redirect: DetailPath(doc.ID)}, nil
}

func (e *Engine) fail(ctx context.Context, err error) {
	var (
		fields  map[string][]string
		summary string
	)
	if apiErr, ok := client.AsAPIError(err); ok && apiErr.Validation() {
		mapping := render.MapErrorPayload(*e.tpl, apiErr.Fields)
		fields = mapping.Fields
		summary = mapping.Summary()
		e.logger.WithField("errors", summary).Info("submission rejected")
	} else if ok && apiErr.StatusCode < 500 && apiErr.Detail != "" {
		summary = apiErr.Detail
		e.logger.WithError(err).Warn("submission rejected")
	} else {
		summary = msgTransport
		e.logger.WithError(err).Error("submission failed")
	}

	e.mu.Lock()
	e.fieldErrors = fields
	e.formError = summary
	e.mu.Unlock()
	e.notify.Notify(notify.LevelError, summary)

	if e.drafts == nil {
		return
	}
	draft := e.Draft()
	draft.Error = summary
	if saveErr := e.drafts.Save(ctx, draft); saveErr != nil {
		e.logger.WithError(saveErr).Warn("draft save failed")
	}
}

// Write builds the create/update request body from the current state.
func (e *Engine) Write() model.Write {
	e.mu.Lock()
	defer e.mu.Unlock()
	in := model.Write{
		Subject:     strings.TrimSpace(e.subject),
		DataPayload: model.ClonePayload(e.payload),
		ToUsers:     nonNil(e.toUsers),
		ToGroups:    nonNil(e.toGroups),
	}
	if e.docID == 0 {
		in.TemplateID = e.tpl.ID
	}
	if e.parent != nil {
		in.ParentContentTypeID = e.parent.ContentTypeID
		if e.parent.ObjectID != 0 {
			id := e.parent.ObjectID
			in.ParentObjectID = &id
		}
	}
	return in
}

// Draft snapshots the current state.
func (e *Engine) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Draft{
		Key:        e.draftKey(e.docID),
		TemplateID: e.tpl.ID,
		DocumentID: e.docID,
		Subject:    e.subject,
		Payload:    model.ClonePayload(e.payload),
		ToUsers:    append([]int64(nil), e.toUsers...),
		ToGroups:   append([]int64(nil), e.toGroups...),
		SavedAt:    time.Now().UTC(),
	}
}

// Restore applies a saved draft over the current state.
func (e *Engine) Restore(d Draft) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subject = d.Subject
	if d.Payload != nil {
		e.payload = model.ClonePayload(d.Payload)
	}
	e.toUsers = uniqueIDs(d.ToUsers)
	e.toGroups = uniqueIDs(d.ToGroups)
}

// DraftKey identifies the session in a draft store.
func (e *Engine) DraftKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draftKey(e.docID)
}

func (e *Engine) draftKey(docID int64) string {
	if docID != 0 {
		return EditDraftKey(docID)
	}
	return CreateDraftKey(e.tpl.ID)
}

// CreateDraftKey is the draft key of a create session for a template.
func CreateDraftKey(templateID int64) string {
	return "create:" + strconv.FormatInt(templateID, 10)
}

// EditDraftKey is the draft key of an edit session for a document.
func EditDraftKey(docID int64) string {
	return "edit:" + strconv.FormatInt(docID, 10)
}

// DetailPath is the detail view a successful submission redirects to.
func DetailPath(id int64) string {
	return "/ioms/" + strconv.FormatInt(id, 10)
}

func cloneErrors(src map[string][]string) map[string][]string {
	if len(src) == 0 {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(src))
	for k, v := range src {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNil(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{}
	}
	return append([]int64(nil), ids...)
}
