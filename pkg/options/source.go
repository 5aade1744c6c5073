package options

import (
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

const (
	DefaultValueField  = "id"
	DefaultLabelField  = "name"
	DefaultSearchParam = "search"
)

// Source describes where a selector's candidates come from and which keys of
// each candidate hold its identifier and display label.
type Source struct {
	Endpoint    string
	ValueField  string
	LabelField  string
	SearchParam string
	Params      map[string]string
}

var catalog = map[model.SelectorKind]Source{
	model.SelectorUsers:       {Endpoint: "users", LabelField: "username"},
	model.SelectorAssets:      {Endpoint: "assets", LabelField: "name"},
	model.SelectorDepartments: {Endpoint: "departments", LabelField: "name"},
	model.SelectorProjects:    {Endpoint: "projects", LabelField: "name"},
	model.SelectorGroups:      {Endpoint: "groups", LabelField: "name"},
}

// Catalog returns the built-in source for a selector kind.
func Catalog(kind model.SelectorKind) (Source, bool) {
	src, ok := catalog[kind]
	if !ok {
		return Source{}, false
	}
	return src.withDefaults(), true
}

// ForField resolves the source of a selector field: an explicit api_source
// wins, then the catalog entry for its kind. Other field types have no remote
// source, even when they declare api_source.
func ForField(field model.FieldDefinition) (Source, bool) {
	if !field.Type.IsSelector() {
		return Source{}, false
	}
	if api := field.APISource; api != nil && strings.TrimSpace(api.Endpoint) != "" {
		src := Source{
			Endpoint:   strings.TrimSpace(api.Endpoint),
			ValueField: strings.TrimSpace(api.ValueField),
			LabelField: strings.TrimSpace(api.LabelField),
		}
		if len(api.Params) > 0 {
			src.Params = make(map[string]string, len(api.Params))
			for k, v := range api.Params {
				src.Params[k] = v
			}
		}
		return src.withDefaults(), true
	}
	return Catalog(field.Type.Selector())
}

func (s Source) withDefaults() Source {
	if s.ValueField == "" {
		s.ValueField = DefaultValueField
	}
	if s.LabelField == "" {
		s.LabelField = DefaultLabelField
	}
	if s.SearchParam == "" {
		s.SearchParam = DefaultSearchParam
	}
	return s
}
