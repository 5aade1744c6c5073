package model

// Decorator enriches a template after it has been decoded, for example to
// sanitize admin-authored labels before they reach a renderer.
type Decorator interface {
	Decorate(*Template) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*Template) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(tpl *Template) error {
	return fn(tpl)
}
