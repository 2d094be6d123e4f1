// Package language normalizes language tags used across store keys and
// replication requests.
package language

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeTag normalizes a language tag to lowercase and "-" separators.
// Returns an empty string when the value is blank or contains invalid characters.
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	parts := strings.Split(trimmed, "-")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isAlphaLower(part) {
			return ""
		}
		normalized = append(normalized, part)
	}

	if len(normalized) == 0 {
		return ""
	}
	return strings.Join(normalized, "-")
}

// NormalizeCode returns the primary language subtag (for example, "en" from
// "en-US"). Longer subtags such as ISO 639-2 codes resolve to their canonical
// two-letter form when one exists ("por" becomes "pt").
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	code := tag
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		code = tag[:dash]
	}
	if len(code) > 2 {
		if canonical := Canonical(code); canonical != "" {
			return canonical
		}
	}
	return code
}

// Canonical parses raw as a BCP 47 tag and returns its canonical base language
// code in lowercase. Unparseable or blank input returns an empty string.
func Canonical(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	tag, err := language.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return strings.ToLower(base.String())
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
