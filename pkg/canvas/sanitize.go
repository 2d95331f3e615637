package canvas

import "strings"

// unsafeChars are replaced with underscores: path separators plus the
// punctuation Windows filesystems reject.
const unsafeChars = `<>:"/\|?*`

// Sanitize maps an arbitrary remote display name to a safe local path
// segment. Total function: each unsafe character becomes an underscore,
// leading and trailing spaces and periods are trimmed, and an input with no
// usable characters at all maps to a fixed placeholder rather than a name
// made of nothing but replacements. No uniqueness guarantee; collision
// handling is the caller's job.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	usable := false
	for _, r := range name {
		if strings.ContainsRune(unsafeChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
		if r != '.' && r != ' ' {
			usable = true
		}
	}

	if !usable {
		return "unnamed"
	}
	return strings.Trim(b.String(), ". ")
}
