package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/goliatone/go-iom/pkg/model"
)

// Loader reads template documents from files, an fs.FS or HTTP.
type Loader struct {
	fsys       fs.FS
	http       *http.Client
	decorators []model.Decorator
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS enables fs.FS sources.
func WithFS(fsys fs.FS) LoaderOption {
	return func(l *Loader) {
		l.fsys = fsys
	}
}

// WithHTTPClient enables URL sources.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.http = client
	}
}

// WithDecorators appends decorators applied after decoding.
func WithDecorators(decorators ...model.Decorator) LoaderOption {
	return func(l *Loader) {
		l.decorators = append(l.decorators, decorators...)
	}
}

// NewLoader builds a loader. Without explicit decorators the loader applies
// Sanitizer.
func NewLoader(options ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(l)
	}
	if len(l.decorators) == 0 {
		l.decorators = []model.Decorator{Sanitizer()}
	}
	return l
}

// Load fetches and decodes a template.
func (l *Loader) Load(ctx context.Context, src Source) (model.Template, error) {
	doc, err := l.Document(ctx, src)
	if err != nil {
		return model.Template{}, err
	}
	return Parse(doc, l.decorators...)
}

// Document fetches the raw template document.
func (l *Loader) Document(ctx context.Context, src Source) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		data, err = os.ReadFile(src.Location())
	case SourceKindFS:
		if l.fsys == nil {
			return Document{}, errors.New("schema: fs source without filesystem")
		}
		data, err = fs.ReadFile(l.fsys, src.Location())
	case SourceKindURL:
		data, err = l.loadHTTP(ctx, src.Location())
	default:
		err = fmt.Errorf("schema: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return Document{}, fmt.Errorf("schema: read %s: %w", src.Location(), err)
	}
	return NewDocument(src, data)
}

func (l *Loader) loadHTTP(ctx context.Context, url string) ([]byte, error) {
	if l.http == nil {
		return nil, errors.New("schema: http support disabled")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("unexpected status " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
