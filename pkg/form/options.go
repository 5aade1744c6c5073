package form

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
	"github.com/goliatone/go-iom/pkg/visibility"
)

// API is the slice of the ITSM client the engine needs.
type API interface {
	CreateIOM(ctx context.Context, in model.Write) (model.Document, error)
	UpdateIOM(ctx context.Context, id int64, in model.Write) (model.Document, error)
}

// ContentTypeResolver resolves the content type of a parent record model.
type ContentTypeResolver interface {
	ContentTypeID(ctx context.Context, appLabel, modelName string) (int64, error)
}

// Draft is an unsubmitted form state kept across sessions.
type Draft struct {
	Key        string         `json:"key"`
	TemplateID int64          `json:"template_id"`
	DocumentID int64          `json:"document_id,omitempty"`
	Subject    string         `json:"subject"`
	Payload    map[string]any `json:"payload"`
	ToUsers    []int64        `json:"to_users,omitempty"`
	ToGroups   []int64        `json:"to_groups,omitempty"`
	Error      string         `json:"error,omitempty"`
	SavedAt    time.Time      `json:"saved_at"`
}

// DraftStore persists drafts of failed submissions.
type DraftStore interface {
	Save(ctx context.Context, draft Draft) error
	Delete(ctx context.Context, key string) error
}

// Parent links the document to the record it was created from.
type Parent struct {
	AppLabel      string
	Model         string
	ObjectID      int64
	Display       string
	ContentTypeID *int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithUser sets the acting user, used for profile overlays on create.
func WithUser(user model.User) Option {
	return func(e *Engine) {
		u := user
		e.user = &u
	}
}

// WithParent sets the parent record context.
func WithParent(parent Parent) Option {
	return func(e *Engine) {
		p := parent
		e.parent = &p
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(sink notify.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.notify = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithVisibility enables visible_when rules.
func WithVisibility(eval visibility.Evaluator) Option {
	return func(e *Engine) {
		e.visibility = eval
	}
}

// WithDraftStore keeps failed submissions as drafts.
func WithDraftStore(store DraftStore) Option {
	return func(e *Engine) {
		e.drafts = store
	}
}

// WithTemplate supplies the template for edit sessions whose document does
// not inline it.
func WithTemplate(tpl model.Template) Option {
	return func(e *Engine) {
		t := tpl.Clone()
		e.tpl = &t
	}
}
