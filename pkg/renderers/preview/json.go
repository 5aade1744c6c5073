package preview

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/render"
)

// JSONName is the registry name of the JSON renderer.
const JSONName = "json"

// JSON renders views as indented JSON documents.
type JSON struct {
	Indent string
}

var _ render.Renderer = JSON{}

type jsonRow struct {
	Name    string          `json:"name"`
	Label   string          `json:"label"`
	Type    model.FieldType `json:"type,omitempty"`
	Value   any             `json:"value"`
	Text    string          `json:"text"`
	Missing bool            `json:"missing,omitempty"`
	Extra   bool            `json:"extra,omitempty"`
}

type jsonView struct {
	TemplateID   int64     `json:"template_id"`
	TemplateName string    `json:"template_name"`
	DocumentID   int64     `json:"id,omitempty"`
	Subject      string    `json:"subject"`
	Status       string    `json:"status"`
	Parent       string    `json:"parent,omitempty"`
	ToUsers      []int64   `json:"to_users,omitempty"`
	ToGroups     []int64   `json:"to_groups,omitempty"`
	Rows         []jsonRow `json:"rows"`
}

// Name reports the renderer identifier.
func (JSON) Name() string { return JSONName }

// ContentType reports the output media type.
func (JSON) ContentType() string { return "application/json" }

// Render marshals view.
func (j JSON) Render(ctx context.Context, view render.View) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := jsonView{
		TemplateID:   view.Template.ID,
		TemplateName: view.Template.Name,
		DocumentID:   view.Document.ID,
		Subject:      view.Document.Subject,
		Status:       string(view.Document.Status),
		Parent:       view.Document.ParentDisplay,
		ToUsers:      view.Document.ToUsers,
		ToGroups:     view.Document.ToGroups,
		Rows:         make([]jsonRow, 0, len(view.Rows)),
	}
	for _, row := range view.Rows {
		out.Rows = append(out.Rows, jsonRow(row))
	}
	indent := j.Indent
	if indent == "" {
		indent = "  "
	}
	data, err := json.MarshalIndent(out, "", indent)
	if err != nil {
		return nil, fmt.Errorf("preview: encode json: %w", err)
	}
	return append(data, '\n'), nil
}
