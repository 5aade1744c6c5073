package render

import (
	"context"

	"github.com/goliatone/go-iom/pkg/model"
)

// View is the read-only projection handed to preview renderers.
type View struct {
	Template model.Template
	Document model.Document
	Rows     []Row
}

// NewView projects a document payload onto its template.
func NewView(tpl model.Template, doc model.Document, resolve LabelResolver) View {
	return View{
		Template: tpl,
		Document: doc,
		Rows:     Rows(tpl, doc.DataPayload, resolve),
	}
}

// Renderer converts a View into a byte representation (text, JSON, ...).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, view View) ([]byte, error)
}
