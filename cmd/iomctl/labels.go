package main

import (
	"context"
	"sync"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/options"
)

// labelCache resolves selector identifiers to labels from the first page of
// each field's option source.
type labelCache struct {
	ctx     context.Context
	fetcher options.Fetcher
	opts    []options.Option

	mu       sync.Mutex
	adapters map[string]*options.Adapter
}

func newLabelCache(ctx context.Context, fetcher options.Fetcher, opts ...options.Option) *labelCache {
	return &labelCache{
		ctx:      ctx,
		fetcher:  fetcher,
		opts:     opts,
		adapters: make(map[string]*options.Adapter),
	}
}

func (l *labelCache) Resolve(field model.FieldDefinition, id any) (string, bool) {
	adapter := l.adapter(field)
	if adapter == nil {
		return "", false
	}
	if !adapter.Loaded() {
		adapter.Fetch(l.ctx, "")
	}
	selected := adapter.Selected(id)
	if len(selected) == 0 {
		return "", false
	}
	return adapter.Label(selected[0]), true
}

func (l *labelCache) adapter(field model.FieldDefinition) *options.Adapter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if adapter, ok := l.adapters[field.Name]; ok {
		return adapter
	}
	adapter, err := options.NewForField(l.fetcher, field, l.opts...)
	if err != nil {
		l.adapters[field.Name] = nil
		return nil
	}
	l.adapters[field.Name] = adapter
	return adapter
}

func (l *labelCache) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, adapter := range l.adapters {
		if adapter != nil {
			adapter.Close()
		}
	}
}
