package translation

import "context"

// Provider translates structured content documents between languages.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
	Name() string
	SupportedLanguages() []string
}

// TranslateRequest describes one document translation request.
type TranslateRequest struct {
	Document   map[string]any
	SourceLang string // ISO 639-1 (for example: "de", "en")
	TargetLang string
	// ProtectedKeys name fields whose values must be carried over verbatim.
	ProtectedKeys []string
	// Hints describe structural expectations of the document (field roles,
	// message ordering) and are passed to the model alongside the content.
	Hints []string
	// Model overrides the provider's configured model when non-empty.
	Model string
}

// TranslateResponse contains the translated document and provider metadata.
type TranslateResponse struct {
	Document     map[string]any
	SourceLang   string
	TargetLang   string
	ProviderName string
	Model        string
	LatencyMs    int64
}
