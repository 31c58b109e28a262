package util

import "strings"

// RenderTemplate does simple {var} replacement. Variables a template does
// not declare are ignored; declared variables without a value stay as-is
// so the gap is visible in the delivered text.
func RenderTemplate(body string, vars map[string]string) string {
	out := body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
