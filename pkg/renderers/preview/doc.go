// Package preview renders read-only document views as plain text (through a
// pongo2 template) or JSON. Both renderers satisfy render.Renderer and can be
// registered together with Register.
package preview
