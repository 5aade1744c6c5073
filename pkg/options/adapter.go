package options

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/model"
)

// DefaultDebounce is the quiet period after the last keystroke before a
// search request is issued.
const DefaultDebounce = 300 * time.Millisecond

// ErrNoSource is returned by NewForField when a field has no remote source.
var ErrNoSource = errors.New("options: field has no remote source")

// Fetcher issues GET requests against the API. Endpoints are relative to the
// configured base address.
type Fetcher interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, endpoint string, query url.Values) ([]byte, error)

// GetJSON implements Fetcher.
func (fn FetcherFunc) GetJSON(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return fn(ctx, endpoint, query)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used to report fetch failures.
func WithLogger(logger *logrus.Entry) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDebounce overrides the search debounce interval. Non-positive values
// disable debouncing.
func WithDebounce(d time.Duration) Option {
	return func(a *Adapter) {
		a.debounce = d
	}
}

// WithPageSize requests a page size from paginated endpoints. Endpoints that
// return a bare list ignore it.
func WithPageSize(size int) Option {
	return func(a *Adapter) {
		if size > 0 {
			a.pageSize = size
		}
	}
}

// Adapter loads and searches the candidates of one selector control.
type Adapter struct {
	source   Source
	fetcher  Fetcher
	logger   *logrus.Entry
	debounce time.Duration
	pageSize int

	mu     sync.Mutex
	items  []Item
	loaded bool
	gen    uint64
	timer  *time.Timer
	closed bool
}

// New builds an adapter for the given source.
func New(fetcher Fetcher, source Source, opts ...Option) *Adapter {
	a := &Adapter{
		source:   source.withDefaults(),
		fetcher:  fetcher,
		logger:   logging.Discard(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.logger = a.logger.WithField("endpoint", a.source.Endpoint)
	return a
}

// NewForField resolves the field's source and builds an adapter for it.
func NewForField(fetcher Fetcher, field model.FieldDefinition, opts ...Option) (*Adapter, error) {
	src, ok := ForField(field)
	if !ok {
		return nil, ErrNoSource
	}
	return New(fetcher, src, opts...), nil
}

// Source returns the resolved source.
func (a *Adapter) Source() Source {
	return a.source
}

// Fetch loads candidates immediately, optionally filtered by search. It
// supersedes any pending or in-flight search. Failures are logged and yield
// an empty list.
func (a *Adapter) Fetch(ctx context.Context, search string) []Item {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	items, _ := a.load(ctx, search, gen)
	return items
}

// Search schedules a debounced search. Only the latest search delivers its
// result; deliver is not called for superseded searches or after Close.
func (a *Adapter) Search(ctx context.Context, text string, deliver func([]Item)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	gen := a.gen

	run := func() {
		items, current := a.load(ctx, text, gen)
		if current && deliver != nil {
			deliver(items)
		}
	}
	if a.debounce <= 0 {
		go run()
		return
	}
	a.timer = time.AfterFunc(a.debounce, run)
}

// Close stops pending searches. Results arriving afterwards are dropped.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Items returns the last loaded candidates.
func (a *Adapter) Items() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Item(nil), a.items...)
}

// Loaded reports whether a fetch has completed successfully.
func (a *Adapter) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

// Options projects the loaded candidates into value/label pairs.
func (a *Adapter) Options() []model.Option {
	items := a.Items()
	out := make([]model.Option, 0, len(items))
	for _, item := range items {
		out = append(out, model.Option{
			Value: item.Value(a.source.ValueField),
			Label: item.Label(a.source.LabelField, a.source.ValueField),
		})
	}
	return out
}

// Selected maps a stored value (one identifier or a list of identifiers) to
// the loaded candidates it refers to. Identifiers are compared in canonical
// form; unknown identifiers are skipped.
func (a *Adapter) Selected(value any) []Item {
	wanted := identifiers(value)
	if len(wanted) == 0 {
		return nil
	}
	index := make(map[string]Item)
	for _, item := range a.Items() {
		index[model.IDString(item.Value(a.source.ValueField))] = item
	}
	var out []Item
	for _, id := range wanted {
		if item, ok := index[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Emit converts a selection back into the value stored in the payload: a
// list of identifiers for multi-selects, a single identifier otherwise. An
// empty selection emits nil in both modes.
func (a *Adapter) Emit(selected []Item, multiple bool) any {
	if len(selected) == 0 {
		return nil
	}
	if !multiple {
		return selected[0].Value(a.source.ValueField)
	}
	out := make([]any, 0, len(selected))
	for _, item := range selected {
		out = append(out, item.Value(a.source.ValueField))
	}
	return out
}

// Label returns the display label of a candidate.
func (a *Adapter) Label(item Item) string {
	return item.Label(a.source.LabelField, a.source.ValueField)
}

func (a *Adapter) load(ctx context.Context, search string, gen uint64) ([]Item, bool) {
	items, err := a.fetch(ctx, search)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || gen != a.gen {
		return nil, false
	}
	if err != nil {
		a.logger.WithError(err).WithField("search", search).Warn("option fetch failed")
		a.items = nil
		a.loaded = false
		return []Item{}, true
	}
	a.items = items
	a.loaded = true
	return append([]Item(nil), items...), true
}

func (a *Adapter) fetch(ctx context.Context, search string) ([]Item, error) {
	if a.fetcher == nil {
		return nil, errors.New("options: no fetcher configured")
	}
	query := url.Values{}
	for k, v := range a.source.Params {
		query.Set(k, v)
	}
	if s := strings.TrimSpace(search); s != "" {
		query.Set(a.source.SearchParam, s)
	}
	if a.pageSize > 0 {
		query.Set("page_size", strconv.Itoa(a.pageSize))
	}
	raw, err := a.fetcher.GetJSON(ctx, a.source.Endpoint, query)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

func identifiers(value any) []string {
	switch t := value.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if id := model.IDString(v); id != "" {
				out = append(out, id)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if id := model.IDString(v); id != "" {
				out = append(out, id)
			}
		}
		return out
	case []int64:
		out := make([]string, 0, len(t))
		for _, v := range t {
			out = append(out, model.IDString(v))
		}
		return out
	default:
		if id := model.IDString(t); id != "" {
			return []string{id}
		}
		return nil
	}
}
