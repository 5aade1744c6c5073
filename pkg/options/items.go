package options

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

// Item is one candidate object as returned by a list endpoint.
type Item map[string]any

// envelope is the paged list shape used by every list endpoint.
type envelope struct {
	Count    *int              `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

var labelFallbacks = []string{"name", "username", "full_name", "title", "asset_tag", "email"}

// Normalize decodes a list response. Both a bare array and the paged
// envelope are accepted; anything else is an error.
func Normalize(raw []byte) ([]Item, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []Item{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []Item
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("options: decode list: %w", err)
		}
		return compact(items), nil
	case '{':
		var env envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return nil, fmt.Errorf("options: decode envelope: %w", err)
		}
		if env.Results == nil {
			return nil, errors.New("options: response object has no results")
		}
		items := make([]Item, 0, len(env.Results))
		for _, rawItem := range env.Results {
			var item Item
			if err := json.Unmarshal(rawItem, &item); err != nil {
				return nil, fmt.Errorf("options: decode result: %w", err)
			}
			items = append(items, item)
		}
		return compact(items), nil
	default:
		return nil, errors.New("options: unexpected response shape")
	}
}

func compact(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

// Value returns the identifier stored under field (dotted paths allowed).
func (i Item) Value(field string) any {
	return lookup(i, field)
}

// Label returns the display label under field, trying common label keys and
// finally the identifier when field is absent.
func (i Item) Label(field, valueField string) string {
	if v := lookup(i, field); v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	for _, key := range labelFallbacks {
		if v, ok := i[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return model.IDString(lookup(i, valueField))
}

func lookup(item map[string]any, path string) any {
	if item == nil || path == "" {
		return nil
	}
	var cur any = item
	for _, segment := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[segment]
	}
	return cur
}
