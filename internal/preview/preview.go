package preview

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	// DefaultMaxChars bounds the extracted text of a single message.
	DefaultMaxChars = 1200
)

// MessagePreview is the readable-text rendering of one mailbox message.
type MessagePreview struct {
	From      string `json:"from,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// FromMailbox renders readable text previews for every message in a
// stored mailbox simulation document. HTML bodies are stripped down to
// plain text; bodies that are already plain text are kept as-is.
func FromMailbox(doc map[string]any, maxChars int) ([]MessagePreview, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("mailbox document is empty")
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	rawMessages, _ := doc["messages"].([]any)
	if len(rawMessages) == 0 {
		return nil, fmt.Errorf("mailbox document has no messages")
	}

	previews := make([]MessagePreview, 0, len(rawMessages))
	for i, rawMessage := range rawMessages {
		message, ok := rawMessage.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("message %d is not an object", i)
		}

		text, err := ExtractBody(stringField(message, "body"))
		if err != nil {
			return nil, fmt.Errorf("extract message %d: %w", i, err)
		}

		clipped, truncated := TruncateText(text, maxChars)
		previews = append(previews, MessagePreview{
			From:      stringField(message, "from"),
			Subject:   stringField(message, "subject"),
			Text:      clipped,
			Truncated: truncated,
		})
	}

	return previews, nil
}

// ExtractBody converts one message body into clean plain text.
func ExtractBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", fmt.Errorf("message body is empty")
	}
	if !strings.Contains(trimmed, "<") {
		return CleanText(trimmed), nil
	}

	baseURL, err := url.Parse("https://mailbox.invalid/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(trimmed), baseURL)
	if err != nil {
		// Short HTML fragments can fall below readability's content
		// heuristics. Strip tags crudely rather than failing the preview.
		return CleanText(stripTags(trimmed)), nil
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(renderedText.String())
	if text == "" {
		text = CleanText(stripTags(trimmed))
	}
	if text == "" {
		return "", fmt.Errorf("extracted empty content")
	}

	return text, nil
}

func stringField(doc map[string]any, key string) string {
	value, _ := doc[key].(string)
	return strings.TrimSpace(value)
}

func stripTags(raw string) string {
	var b strings.Builder
	inTag := false
	for _, r := range raw {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// TruncateText clips text to maxChars runes and appends a single ellipsis rune when truncated.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	if clipped == "" {
		return "…", true
	}

	return clipped + "…", true
}
