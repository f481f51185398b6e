package timerange

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// MissingVariableError reports template placeholders with no supplied value.
type MissingVariableError struct {
	Keys []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template references undefined variables: %s", strings.Join(e.Keys, ", "))
}

// Substitute replaces every {{key}} placeholder in template with its value.
//
// Substitution is purely textual: no escaping or validation of injected
// values is performed, so callers must supply trusted, pre-formatted scalars
// only. If any referenced key is absent the whole substitution fails and the
// template is returned untouched - a partially substituted query is worse
// than no query.
func Substitute(template string, variables map[string]string) (string, error) {
	var missing []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		key := m[1]
		if _, ok := variables[key]; !ok && !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return template, &MissingVariableError{Keys: missing}
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		return variables[key]
	}), nil
}
