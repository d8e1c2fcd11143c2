// Package template renders per-trigger message templates with {variable}
// substitution.
package template

import (
	"fmt"
	"regexp"

	"github.com/nkarimi/automsg-engine/internal/model"
)

// ErrNoTemplate means no template is configured for the trigger. Callers must
// not send or schedule anything in that case.
var ErrNoTemplate = fmt.Errorf("no template configured")

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Render fills the trigger's template with the supplied variables. Unresolved
// placeholders are left verbatim so gaps stay visible to operators.
func Render(tpls model.Templates, tr model.TriggerType, vars map[string]string) (string, error) {
	tpl, ok := tpls.ByTrigger(tr)
	if !ok {
		return "", fmt.Errorf("unknown trigger type %q", tr)
	}
	if tpl == "" {
		return "", fmt.Errorf("trigger %s: %w", tr, ErrNoTemplate)
	}

	out := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
	return out, nil
}
