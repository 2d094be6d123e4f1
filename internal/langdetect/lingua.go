// Package langdetect guesses the source language of training content when the
// resource metadata does not declare one.
package langdetect

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the two-letter code of the detected language, or an
// empty string when the sample is too short or ambiguous.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// DetectFromDocument samples string values from a content document and detects
// the dominant language of the combined text.
func DetectFromDocument(doc map[string]any, maxSampleBytes int) string {
	if len(doc) == 0 {
		return ""
	}
	if maxSampleBytes <= 0 {
		maxSampleBytes = 4096
	}

	var sample strings.Builder
	collectStrings(doc, &sample, maxSampleBytes)
	return DetectISO6391(sample.String())
}

func collectStrings(doc map[string]any, sample *strings.Builder, limit int) {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if sample.Len() >= limit {
			return
		}
		switch value := doc[key].(type) {
		case string:
			if strings.TrimSpace(value) == "" {
				continue
			}
			sample.WriteString(value)
			sample.WriteByte('\n')
		case map[string]any:
			collectStrings(value, sample, limit)
		case []any:
			for _, item := range value {
				if sample.Len() >= limit {
					return
				}
				if nested, ok := item.(map[string]any); ok {
					collectStrings(nested, sample, limit)
				} else if text, ok := item.(string); ok {
					sample.WriteString(text)
					sample.WriteByte('\n')
				}
			}
		}
	}
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
