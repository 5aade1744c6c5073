package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

// ErrorMapping splits a validation error body into field-level and
// form-level messages. Field keys are template field names or top-level
// document keys such as "subject".
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// documentKeys are the top-level document attributes that can carry field
// errors alongside the template fields.
var documentKeys = []string{"subject", "to_users", "to_groups", "parent_content_type_id", "parent_object_id", "iom_template"}

// MergeFormErrors concatenates and normalises multiple form-level error
// slices, trimming whitespace and removing duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// DecodeErrorPayload reads a field-keyed error body. Values may be a string,
// a list of strings, or a nested object (for example data_payload errors),
// which is flattened into dotted keys.
func DecodeErrorPayload(raw []byte) (map[string][]string, bool) {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	out := make(map[string][]string)
	switch t := body.(type) {
	case map[string]any:
		collectErrorValues("", t, out)
	case []any:
		collectErrorValue("", t, out)
	case string:
		collectErrorValue("", t, out)
	default:
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func collectErrorValues(prefix string, node map[string]any, dest map[string][]string) {
	for key, value := range node {
		collectErrorValue(joinPath(prefix, key), value, dest)
	}
}

func collectErrorValue(path string, value any, dest map[string][]string) {
	switch t := value.(type) {
	case string:
		dest[path] = append(dest[path], t)
	case []any:
		for _, item := range t {
			collectErrorValue(path, item, dest)
		}
	case map[string]any:
		collectErrorValues(path, t, dest)
	case nil:
	default:
		dest[path] = append(dest[path], fmt.Sprint(t))
	}
}

// MapErrorPayload normalises error payload keys (dotted, JSON pointer or
// wrapped in data_payload) onto template field names and document keys.
// Unknown paths are treated as form-level errors so messages are not lost.
func MapErrorPayload(tpl model.Template, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{
		Fields: make(map[string][]string),
	}
	if len(payload) == 0 {
		return mapping
	}

	fieldPaths := make(map[string]struct{}, len(tpl.Fields)+len(documentKeys))
	for _, field := range tpl.Fields {
		if name := strings.TrimSpace(field.Name); name != "" {
			fieldPaths[name] = struct{}{}
		}
	}
	for _, key := range documentKeys {
		fieldPaths[key] = struct{}{}
	}

	for rawPath, messages := range payload {
		normalizedMessages := normalizeMessages(messages)
		if len(normalizedMessages) == 0 {
			continue
		}

		mapped, formLevel := mapErrorPath(rawPath, fieldPaths)
		if formLevel || mapped == "" {
			mapping.Form = MergeFormErrors(mapping.Form, normalizedMessages...)
			continue
		}
		mapping.Fields[mapped] = append(mapping.Fields[mapped], normalizedMessages...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	sort.Strings(mapping.Form)
	return mapping
}

// Flatten renders a field-keyed error body as one readable line of the form
// "field: message; field: message". Form-level messages come first without a
// field prefix; fields follow in name order.
func Flatten(payload map[string][]string) string {
	var parts []string
	var keys []string
	for key := range payload {
		if isFormLevelKey(key) {
			parts = append(parts, normalizeMessages(payload[key])...)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(parts)
	sort.Strings(keys)
	for _, key := range keys {
		for _, message := range normalizeMessages(payload[key]) {
			parts = append(parts, key+": "+message)
		}
	}
	return strings.Join(parts, "; ")
}

// Summary flattens the mapping like Flatten.
func (m ErrorMapping) Summary() string {
	payload := make(map[string][]string, len(m.Fields)+1)
	for key, messages := range m.Fields {
		payload[key] = messages
	}
	if len(m.Form) > 0 {
		payload["non_field_errors"] = m.Form
	}
	return Flatten(payload)
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func mapErrorPath(raw string, fieldPaths map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", true
	}

	segments := parsePathSegments(trimmed)
	if len(segments) == 0 {
		return "", true
	}

	best := ""
	for _, variant := range buildSegmentVariants(segments) {
		if path := longestMatchingPath(variant, fieldPaths); path != "" {
			if len(pathSegments(path)) > len(pathSegments(best)) {
				best = path
			}
		}
	}

	if best != "" {
		return best, false
	}

	return "", true
}

func parsePathSegments(path string) []string {
	if path == "" {
		return nil
	}

	clean := strings.TrimSpace(path)
	clean = strings.TrimPrefix(clean, "#/")
	clean = strings.TrimPrefix(clean, "$/")
	clean = strings.TrimPrefix(clean, "$.")
	for strings.HasPrefix(clean, "#") || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, ".") || strings.HasPrefix(clean, "$") {
		clean = strings.TrimPrefix(clean, "#")
		clean = strings.TrimPrefix(clean, "/")
		clean = strings.TrimPrefix(clean, ".")
		clean = strings.TrimPrefix(clean, "$")
	}

	replacer := strings.NewReplacer("[", ".", "]", "", "//", "/")
	clean = replacer.Replace(clean)
	clean = strings.Trim(clean, "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func buildSegmentVariants(segments []string) [][]string {
	var variants [][]string
	seen := make(map[string]struct{}, 4)

	appendVariant := func(candidate []string) {
		if len(candidate) == 0 {
			return
		}
		key := strings.Join(candidate, ".")
		if _, exists := seen[key]; exists {
			return
		}
		seen[key] = struct{}{}
		var copyCandidate []string
		copyCandidate = append(copyCandidate, candidate...)
		variants = append(variants, copyCandidate)
	}

	appendVariant(segments)

	noWrappers := dropWrapperSegments(segments)
	appendVariant(noWrappers)
	appendVariant(stripNumericSegments(segments))
	appendVariant(stripNumericSegments(noWrappers))

	return variants
}

func dropWrapperSegments(segments []string) []string {
	if len(segments) == 0 {
		return segments
	}

	wrappers := map[string]struct{}{
		"body":         {},
		"request":      {},
		"payload":      {},
		"data":         {},
		"data_payload": {},
	}

	out := segments
	for len(out) > 0 {
		if _, ok := wrappers[strings.ToLower(out[0])]; ok {
			out = out[1:]
			continue
		}
		break
	}
	return out
}

func stripNumericSegments(segments []string) []string {
	if len(segments) == 0 {
		return segments
	}

	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func longestMatchingPath(segments []string, fieldPaths map[string]struct{}) string {
	if len(segments) == 0 || len(fieldPaths) == 0 {
		return ""
	}

	for end := len(segments); end > 0; end-- {
		candidate := strings.Join(segments[:end], ".")
		if _, ok := fieldPaths[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func pathSegments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func joinPath(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "detail", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
