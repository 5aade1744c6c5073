package schema

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-iom/pkg/model"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// SanitizeText strips markup from admin-authored labels and help text. The
// result is plain text (entities decoded) because it is printed to terminals
// and fed to templates that escape on their own.
func SanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(textSanitizer().Sanitize(trimmed)))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// Sanitizer returns a decorator that strips markup from the template name,
// description and every user-visible field string.
func Sanitizer() model.Decorator {
	return model.DecoratorFunc(func(tpl *model.Template) error {
		if tpl == nil {
			return nil
		}
		tpl.Name = SanitizeText(tpl.Name)
		tpl.Description = SanitizeText(tpl.Description)
		for i := range tpl.Fields {
			field := &tpl.Fields[i]
			field.Label = SanitizeText(field.Label)
			field.HelpText = SanitizeText(field.HelpText)
			field.Placeholder = SanitizeText(field.Placeholder)
			for j := range field.Options {
				field.Options[j].Label = SanitizeText(field.Options[j].Label)
			}
		}
		return nil
	})
}
