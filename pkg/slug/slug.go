// Package slug derives deterministic identifiers from entity fields.
package slug

import "strings"

// Make lowercases s and replaces every non-alphanumeric run with a single
// underscore. The result is stable for any whitespace or punctuation variant
// of the same text.
func Make(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Composite joins the slugs of two or more parts with underscores. It returns
// "" unless at least two parts slug to something non-empty, since a composite
// key derived from a single field is not deterministic enough to dedup on.
func Composite(parts ...string) string {
	slugs := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := Make(p); s != "" {
			slugs = append(slugs, s)
		}
	}
	if len(slugs) < 2 {
		return ""
	}
	return strings.Join(slugs, "_")
}
