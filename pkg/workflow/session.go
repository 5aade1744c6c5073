package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/client"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
)

var (
	// ErrBusy is returned while another action is in flight.
	ErrBusy = errors.New("workflow: action already in progress")
	// ErrNotAllowed is returned for actions the actor may not take.
	ErrNotAllowed = errors.New("workflow: action not allowed")
	// ErrCommentRequired is returned by rejects without a comment.
	ErrCommentRequired = errors.New("workflow: comment required")
	// ErrNotLoaded is returned before Load succeeds.
	ErrNotLoaded = errors.New("workflow: no document loaded")
	// ErrUnknownStep is returned for step ids not in the loaded steps.
	ErrUnknownStep = errors.New("workflow: unknown approval step")
)

// Default content type of IOM documents for approval step lookups.
const (
	DefaultStepAppLabel = "iom"
	DefaultStepModel    = "genericiom"
)

// API is the slice of the ITSM client a Session needs.
type API interface {
	GetIOM(ctx context.Context, id int64) (model.Document, error)
	Act(ctx context.Context, id int64, action, comments string) (model.Document, error)
	ApprovalSteps(ctx context.Context, ref model.StepRef) ([]model.ApprovalStep, error)
	ApproveStep(ctx context.Context, stepID int64, comments string) error
	RejectStep(ctx context.Context, stepID int64, comments string) error
}

// TemplateGetter fetches a template when the document does not inline it.
type TemplateGetter interface {
	GetTemplate(ctx context.Context, id int64) (model.Template, error)
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets the notification sink.
func WithNotifier(sink notify.Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.notify = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTemplates sets the template source for documents without an inlined
// template.
func WithTemplates(getter TemplateGetter) Option {
	return func(s *Session) {
		s.templates = getter
	}
}

// WithStepContentType overrides the content type used to look up steps.
func WithStepContentType(appLabel, modelName string) Option {
	return func(s *Session) {
		if appLabel != "" {
			s.appLabel = appLabel
		}
		if modelName != "" {
			s.modelName = modelName
		}
	}
}

// Session tracks one document and dispatches workflow actions on it.
type Session struct {
	api       API
	actor     Actor
	templates TemplateGetter
	notify    notify.Sink
	logger    *logrus.Entry
	appLabel  string
	modelName string

	mu     sync.Mutex
	doc    model.Document
	tpl    model.Template
	steps  []model.ApprovalStep
	loaded bool
	busy   bool
}

// NewSession builds a session for actor.
func NewSession(api API, actor Actor, opts ...Option) *Session {
	s := &Session{
		api:       api,
		actor:     actor,
		notify:    notify.Discard,
		logger:    logging.Discard(),
		appLabel:  DefaultStepAppLabel,
		modelName: DefaultStepModel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load fetches the document and, for advanced approval, its steps.
func (s *Session) Load(ctx context.Context, id int64) error {
	if err := s.reload(ctx, id); err != nil {
		s.notifyFailure("Unable to load the document.", err)
		return err
	}
	return nil
}

func (s *Session) reload(ctx context.Context, id int64) error {
	doc, err := s.api.GetIOM(ctx, id)
	if err != nil {
		return fmt.Errorf("workflow: load iom %d: %w", id, err)
	}

	var tpl model.Template
	switch {
	case doc.Template != nil:
		tpl = doc.Template.Clone()
	case s.templates != nil:
		tpl, err = s.templates.GetTemplate(ctx, doc.TemplateID)
		if err != nil {
			return fmt.Errorf("workflow: load template %d: %w", doc.TemplateID, err)
		}
	default:
		tpl = model.Template{ID: doc.TemplateID}
	}

	var steps []model.ApprovalStep
	if tpl.EffectiveApproval() == model.ApprovalAdvanced {
		steps, err = s.api.ApprovalSteps(ctx, s.stepRef(doc.ID))
		if err != nil {
			s.logger.WithError(err).WithField("iom_id", doc.ID).Warn("approval steps unavailable")
			s.notify.Notify(notify.LevelWarning, "Approval steps could not be loaded.")
			steps = nil
		}
		sortSteps(steps)
	}

	s.mu.Lock()
	s.doc = doc
	s.tpl = tpl
	s.steps = steps
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Session) stepRef(id int64) model.StepRef {
	return model.StepRef{AppLabel: s.appLabel, Model: s.modelName, ObjectID: id}
}

// Document returns the last fetched document.
func (s *Session) Document() model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Template returns the document's template.
func (s *Session) Template() model.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tpl
}

// Steps returns the approval steps ordered by step order.
func (s *Session) Steps() []model.ApprovalStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ApprovalStep(nil), s.steps...)
}

// Busy reports whether an action is in flight. Controls should be disabled
// while it is true.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Available returns the actions offered to the actor. Nothing is offered
// while an action is in flight.
func (s *Session) Available() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.busy {
		return nil
	}
	return Available(s.doc, s.tpl, s.actor)
}

// StepActionable reports whether the actor may act on step.
func (s *Session) StepActionable(step model.ApprovalStep) bool {
	return CanActOnStep(step, s.actor)
}

func (s *Session) begin() (model.Document, model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return model.Document{}, model.Template{}, ErrNotLoaded
	}
	if s.busy {
		return model.Document{}, model.Template{}, ErrBusy
	}
	s.busy = true
	return s.doc, s.tpl, nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Do dispatches a document action. Rejects need a non-empty comment. On
// success the document is refetched; the local copy is never edited.
func (s *Session) Do(ctx context.Context, action Action, comments string) error {
	doc, tpl, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end()

	if !Allowed(doc, tpl, s.actor, action) {
		return fmt.Errorf("%w: %s from %s", ErrNotAllowed, action, doc.Status)
	}
	if RequiresComment(action) && strings.TrimSpace(comments) == "" {
		return ErrCommentRequired
	}

	log := s.logger.WithFields(logrus.Fields{"iom_id": doc.ID, "action": string(action)})
	if _, err := s.api.Act(ctx, doc.ID, action.Endpoint(), strings.TrimSpace(comments)); err != nil {
		log.WithError(err).Warn("workflow action failed")
		s.notifyFailure("Action failed.", err)
		return fmt.Errorf("workflow: %s: %w", action, err)
	}
	log.Info("workflow action applied")
	s.notify.Notify(notify.LevelSuccess, successText(action))
	return s.refresh(ctx, doc.ID)
}

// ApproveStep approves one advanced approval step.
func (s *Session) ApproveStep(ctx context.Context, stepID int64, comments string) error {
	return s.stepAction(ctx, stepID, ActionApprove, comments)
}

// RejectStep rejects one advanced approval step. A comment is required.
func (s *Session) RejectStep(ctx context.Context, stepID int64, comments string) error {
	return s.stepAction(ctx, stepID, ActionReject, comments)
}

func (s *Session) stepAction(ctx context.Context, stepID int64, action Action, comments string) error {
	doc, _, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end()

	step, ok := s.findStep(stepID)
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownStep, stepID)
	}
	if !CanActOnStep(step, s.actor) {
		return fmt.Errorf("%w: step %d is %s", ErrNotAllowed, stepID, step.Status)
	}
	if RequiresComment(action) && strings.TrimSpace(comments) == "" {
		return ErrCommentRequired
	}

	comments = strings.TrimSpace(comments)
	if action == ActionReject {
		err = s.api.RejectStep(ctx, stepID, comments)
	} else {
		err = s.api.ApproveStep(ctx, stepID, comments)
	}
	log := s.logger.WithFields(logrus.Fields{"iom_id": doc.ID, "step_id": stepID, "action": string(action)})
	if err != nil {
		log.WithError(err).Warn("step action failed")
		s.notifyFailure("Step action failed.", err)
		return fmt.Errorf("workflow: step %s: %w", action, err)
	}
	log.Info("step action applied")
	if action == ActionReject {
		s.notify.Notify(notify.LevelSuccess, "Step rejected.")
	} else {
		s.notify.Notify(notify.LevelSuccess, "Step approved.")
	}
	return s.refresh(ctx, doc.ID)
}

func (s *Session) findStep(id int64) (model.ApprovalStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, step := range s.steps {
		if step.ID == id {
			return step, true
		}
	}
	return model.ApprovalStep{}, false
}

func (s *Session) refresh(ctx context.Context, id int64) error {
	if err := s.reload(ctx, id); err != nil {
		s.logger.WithError(err).WithField("iom_id", id).Warn("refetch after action failed")
		s.notifyFailure("The document could not be refreshed.", err)
		return err
	}
	return nil
}

func (s *Session) notifyFailure(generic string, err error) {
	if apiErr, ok := client.AsAPIError(err); ok && apiErr.StatusCode < 500 && apiErr.Detail != "" {
		s.notify.Notify(notify.LevelError, apiErr.Detail)
		return
	}
	s.notify.Notify(notify.LevelError, generic)
}

func successText(action Action) string {
	switch action {
	case ActionSubmit:
		return "Submitted for approval."
	case ActionApprove:
		return "Document approved."
	case ActionReject:
		return "Document rejected."
	case ActionPublish:
		return "Document published."
	case ActionArchive:
		return "Document archived."
	case ActionUnarchive:
		return "Document unarchived."
	default:
		return "Done."
	}
}

func sortSteps(steps []model.ApprovalStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})
}
