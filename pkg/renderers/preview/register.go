package preview

import (
	"github.com/goliatone/go-iom/pkg/render"
)

// Register adds the text and JSON renderers to reg, with text as default.
func Register(reg *render.Registry, opts ...TextOption) error {
	text, err := NewText(opts...)
	if err != nil {
		return err
	}
	if err := reg.Register(text); err != nil {
		return err
	}
	if err := reg.Register(JSON{}); err != nil {
		return err
	}
	return reg.SetDefault(TextName)
}

// NewRegistry returns a registry holding both preview renderers.
func NewRegistry(opts ...TextOption) (*render.Registry, error) {
	reg := render.NewRegistry()
	if err := Register(reg, opts...); err != nil {
		return nil, err
	}
	return reg, nil
}
