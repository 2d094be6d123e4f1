package translation

import (
	"sort"
	"strings"

	"courseware.fit/polyglot/internal/language"
)

var translationLanguageLabels = map[string]string{
	"ar": "Arabic",
	"cs": "Czech",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// SupportedTranslationLanguageCodes lists the codes the bundled providers
// advertise, sorted.
func SupportedTranslationLanguageCodes() []string {
	codes := make([]string, 0, len(translationLanguageLabels))
	for code := range translationLanguageLabels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// languageLabel returns a human-readable name for prompts. Unknown codes fall
// back to the raw tag.
func languageLabel(lang string) string {
	normalized := language.NormalizeCode(lang)
	if label, ok := translationLanguageLabels[normalized]; ok {
		return label
	}
	fallback := strings.TrimSpace(lang)
	if fallback == "" {
		fallback = "English"
	}
	return fallback
}
