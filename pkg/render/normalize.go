package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/options"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

var (
	// ErrInvalidValue marks input that cannot be coerced to the field type.
	ErrInvalidValue = errors.New("render: invalid value")
	// ErrUnknownOption marks a choice that is not among the field options.
	ErrUnknownOption = errors.New("render: unknown option")
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalize coerces raw input into the typed value stored in the payload.
// Empty input becomes the type's unset value: nil for numbers, dates, choices
// and selectors, "" for text and false for booleans.
func Normalize(field model.FieldDefinition, raw any) (any, error) {
	switch field.Type {
	case model.FieldTextShort, model.FieldTextArea, model.FieldFileUpload:
		if raw == nil {
			return "", nil
		}
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	case model.FieldNumber:
		return normalizeNumber(raw)
	case model.FieldDate:
		return normalizeTime(raw, false)
	case model.FieldDateTime:
		return normalizeTime(raw, true)
	case model.FieldBoolean:
		return normalizeBool(raw)
	case model.FieldChoiceSingle:
		return normalizeChoice(field, raw)
	case model.FieldChoiceMultiple:
		return normalizeChoices(field, raw)
	default:
		if field.Type.IsSelector() {
			src, _ := options.ForField(field)
			if field.Type.IsMultiple() {
				return normalizeIdentifiers(raw, src.ValueField)
			}
			return normalizeIdentifier(raw, src.ValueField)
		}
		return nil, fmt.Errorf("%w %q", ErrUnsupportedType, string(field.Type))
	}
}

func blank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func normalizeNumber(raw any) (any, error) {
	if blank(raw) {
		return nil, nil
	}
	switch t := raw.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return normalizeNumber(string(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, t)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a number", ErrInvalidValue, raw)
	}
}

// ParseTime parses a stored date or datetime value.
func ParseTime(raw any, withTime bool) (time.Time, error) {
	switch t := raw.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if !withTime {
			if ts, err := time.Parse(DateLayout, s); err == nil {
				return ts, nil
			}
		}
		for _, layout := range dateTimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		if withTime {
			if ts, err := time.Parse(DateLayout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a valid date", ErrInvalidValue, s)
	default:
		return time.Time{}, fmt.Errorf("%w: %T is not a date", ErrInvalidValue, raw)
	}
}

func normalizeTime(raw any, withTime bool) (any, error) {
	if blank(raw) {
		return nil, nil
	}
	ts, err := ParseTime(raw, withTime)
	if err != nil {
		return nil, err
	}
	if withTime {
		return ts.Format(DateTimeLayout), nil
	}
	return ts.Format(DateLayout), nil
}

func normalizeBool(raw any) (any, error) {
	switch t := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "no", "n", "0", "off":
			return false, nil
		case "true", "yes", "y", "1", "on":
			return true, nil
		}
		return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, t)
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a boolean", ErrInvalidValue, raw)
	}
}

func normalizeChoice(field model.FieldDefinition, raw any) (any, error) {
	if blank(raw) || model.IDString(raw) == NoneValue {
		return nil, nil
	}
	opt, ok := field.Lookup(raw)
	if !ok {
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownOption, model.IDString(raw), field.Name)
	}
	return opt.Value, nil
}

func normalizeChoices(field model.FieldDefinition, raw any) (any, error) {
	var out []any
	for _, item := range listOf(raw) {
		if blank(item) || model.IDString(item) == NoneValue {
			continue
		}
		opt, ok := field.Lookup(item)
		if !ok {
			return nil, fmt.Errorf("%w %q for %s", ErrUnknownOption, model.IDString(item), field.Name)
		}
		out = append(out, opt.Value)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func normalizeIdentifier(raw any, valueField string) (any, error) {
	switch t := raw.(type) {
	case options.Item:
		return normalizeIdentifier(t.Value(valueField), valueField)
	case map[string]any:
		return normalizeIdentifier(options.Item(t).Value(valueField), valueField)
	case []any:
		if len(t) == 0 {
			return nil, nil
		}
		return normalizeIdentifier(t[0], valueField)
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == NoneValue {
			return nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		return s, nil
	case float64, int, int64, json.Number:
		return t, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T is not an identifier", ErrInvalidValue, raw)
	}
}

func normalizeIdentifiers(raw any, valueField string) (any, error) {
	var out []any
	for _, item := range listOf(raw) {
		id, err := normalizeIdentifier(item, valueField)
		if err != nil {
			return nil, err
		}
		if id != nil {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func listOf(raw any) []any {
	switch t := raw.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case []options.Item:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	default:
		return []any{t}
	}
}
