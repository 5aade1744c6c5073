package tui

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/pkg/options"
	"github.com/goliatone/go-iom/pkg/render"
)

// Theme holds prefixes for prompts, informational lines and error lines.
type Theme struct {
	PromptPrefix string
	InfoPrefix   string
	ErrorPrefix  string
}

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithFetcher opts into remote selector searches. When omitted, selector
// fields fall back to typed identifiers.
func WithFetcher(fetcher options.Fetcher) Option {
	return func(r *Renderer) {
		r.fetcher = fetcher
	}
}

// WithLogger sets the logger handed to option adapters.
func WithLogger(logger *logrus.Entry) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebounce sets the search debounce of option adapters.
func WithDebounce(d time.Duration) Option {
	return func(r *Renderer) {
		r.adapterOpts = append(r.adapterOpts, options.WithDebounce(d))
	}
}

// WithPageSize sets the page size requested from option sources.
func WithPageSize(size int) Option {
	return func(r *Renderer) {
		r.adapterOpts = append(r.adapterOpts, options.WithPageSize(size))
	}
}

// WithLabelResolver resolves selector identifiers in the review screen.
func WithLabelResolver(resolve render.LabelResolver) Option {
	return func(r *Renderer) {
		r.resolve = resolve
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme
	}
}
