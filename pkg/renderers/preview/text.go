package preview

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/render"
)

// TextName is the registry name of the text renderer.
const TextName = "text"

//go:embed templates/document.txt
var defaultTemplate string

var registerFilters sync.Once

// TextOption configures the text renderer.
type TextOption func(*textConfig)

type textConfig struct {
	source  string
	files   fs.FS
	name    string
	globals map[string]any
}

// WithTemplateString replaces the built-in template.
func WithTemplateString(src string) TextOption {
	return func(cfg *textConfig) {
		if strings.TrimSpace(src) != "" {
			cfg.source = src
		}
	}
}

// WithTemplateFS loads the template named name from files.
func WithTemplateFS(files fs.FS, name string) TextOption {
	return func(cfg *textConfig) {
		cfg.files = files
		cfg.name = strings.TrimSpace(name)
	}
}

// WithGlobals seeds values available to every render.
func WithGlobals(data map[string]any) TextOption {
	return func(cfg *textConfig) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globals[strings.TrimSpace(key)] = value
		}
	}
}

// Text renders views through a pongo2 template. Output is not HTML escaped.
type Text struct {
	mu   sync.RWMutex
	tmpl *pongo2.Template
}

var _ render.Renderer = (*Text)(nil)

// NewText parses the configured template.
func NewText(opts ...TextOption) (*Text, error) {
	cfg := &textConfig{source: defaultTemplate}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	registerFilters.Do(registerDefaultFilters)

	src := cfg.source
	if cfg.files != nil {
		if cfg.name == "" {
			return nil, errors.New("preview: template name is required with a template FS")
		}
		raw, err := fs.ReadFile(cfg.files, cfg.name)
		if err != nil {
			return nil, fmt.Errorf("preview: read template %q: %w", cfg.name, err)
		}
		src = string(raw)
	}

	set := pongo2.NewSet("iom-preview", pongo2.DefaultLoader)
	if len(cfg.globals) > 0 {
		if set.Globals == nil {
			set.Globals = make(pongo2.Context)
		}
		set.Globals.Update(pongo2.Context(cfg.globals))
	}
	tmpl, err := set.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("preview: parse template: %w", err)
	}
	return &Text{tmpl: tmpl}, nil
}

// Name reports the renderer identifier.
func (t *Text) Name() string { return TextName }

// ContentType reports the output media type.
func (t *Text) ContentType() string { return "text/plain; charset=utf-8" }

// Render executes the template against view.
func (t *Text) Render(ctx context.Context, view render.View) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	t.mu.RLock()
	err := t.tmpl.ExecuteWriter(viewContext(view), &buf)
	t.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("preview: execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func viewContext(view render.View) pongo2.Context {
	doc := view.Document
	rows := make([]map[string]any, 0, len(view.Rows))
	for _, row := range view.Rows {
		rows = append(rows, map[string]any{
			"name":    row.Name,
			"label":   row.Label,
			"type":    string(row.Type),
			"value":   row.Value,
			"text":    row.Text,
			"missing": row.Missing,
			"extra":   row.Extra,
		})
	}
	return pongo2.Context{
		"template": map[string]any{
			"id":       view.Template.ID,
			"name":     view.Template.Name,
			"category": view.Template.Category,
			"approval": string(view.Template.EffectiveApproval()),
		},
		"document": map[string]any{
			"id":         doc.ID,
			"subject":    doc.Subject,
			"status":     string(doc.Status),
			"parent":     doc.ParentDisplay,
			"created_by": doc.CreatedByUsername,
			"to_users":   doc.ToUsers,
			"to_groups":  doc.ToGroups,
		},
		"rows": rows,
	}
}

func registerDefaultFilters() {
	if pongo2.FilterExists("status_label") {
		return
	}
	_ = pongo2.RegisterFilter("status_label", func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		return pongo2.AsValue(StatusLabel(in.String())), nil
	})
}

// StatusLabel turns a status identifier into a sentence-case label.
func StatusLabel(status string) string {
	return model.Status(status).Label()
}
