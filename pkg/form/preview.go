package form

import (
	"time"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/render"
)

// TogglePreview switches between editing and the read-only preview and
// returns the new state. It has no network effect.
func (e *Engine) TogglePreview() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preview = !e.preview
	return e.preview
}

// Previewing reports whether the preview is shown.
func (e *Engine) Previewing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preview
}

// Preview projects the unsaved state onto the template as a read-only view.
// Hidden fields are left out.
func (e *Engine) Preview(resolve render.LabelResolver) render.View {
	e.mu.Lock()
	doc := model.Document{
		ID:          e.docID,
		TemplateID:  e.tpl.ID,
		Subject:     e.subject,
		DataPayload: model.ClonePayload(e.payload),
		Status:      e.status,
		ToUsers:     append([]int64(nil), e.toUsers...),
		ToGroups:    append([]int64(nil), e.toGroups...),
		UpdatedAt:   time.Now().UTC(),
	}
	if e.parent != nil {
		doc.ParentDisplay = e.parent.Display
	}
	e.mu.Unlock()
	if doc.Status == "" {
		doc.Status = model.StatusDraft
	}

	tpl := e.tpl.Clone()
	values := model.ClonePayload(doc.DataPayload)
	fields := tpl.Fields[:0]
	for _, field := range tpl.Fields {
		if e.visible(field, values) {
			fields = append(fields, field)
			continue
		}
		delete(doc.DataPayload, field.Name)
	}
	tpl.Fields = fields
	doc.Template = &tpl
	return render.NewView(tpl, doc, resolve)
}
