package replicate

// ValidateStructure reports whether candidate has the same key and shape
// structure as source. It detects truncated or malformed translator output;
// it says nothing about translation quality.
func ValidateStructure(source, candidate map[string]any) bool {
	if candidate == nil {
		return false
	}
	if len(source) != len(candidate) {
		return false
	}

	for key, sourceValue := range source {
		candidateValue, exists := candidate[key]
		if !exists {
			return false
		}
		if !sameShape(sourceValue, candidateValue) {
			return false
		}
	}
	return true
}

func sameShape(source, candidate any) bool {
	switch typedSource := source.(type) {
	case map[string]any:
		typedCandidate, ok := candidate.(map[string]any)
		if !ok {
			return false
		}
		return ValidateStructure(typedSource, typedCandidate)
	case []any:
		typedCandidate, ok := candidate.([]any)
		if !ok {
			return false
		}
		if len(typedSource) != len(typedCandidate) {
			return false
		}
		for i := range typedSource {
			if !sameShape(typedSource[i], typedCandidate[i]) {
				return false
			}
		}
		return true
	case nil:
		return true
	default:
		switch candidate.(type) {
		case map[string]any, []any:
			return false
		}
		return true
	}
}

// CorrectStructure rebuilds a document with exactly source's structure, taking
// candidate's value wherever it is structurally present and falling back to
// source's value otherwise. Untranslated fields silently revert to the source
// language; the result always validates against source.
func CorrectStructure(source, candidate map[string]any) map[string]any {
	corrected := make(map[string]any, len(source))
	for key, sourceValue := range source {
		candidateValue, exists := candidate[key]
		if !exists {
			corrected[key] = sourceValue
			continue
		}
		corrected[key] = correctValue(sourceValue, candidateValue)
	}
	return corrected
}

func correctValue(source, candidate any) any {
	switch typedSource := source.(type) {
	case map[string]any:
		typedCandidate, ok := candidate.(map[string]any)
		if !ok {
			return typedSource
		}
		return CorrectStructure(typedSource, typedCandidate)
	case []any:
		typedCandidate, ok := candidate.([]any)
		if !ok || len(typedCandidate) != len(typedSource) {
			return typedSource
		}
		corrected := make([]any, len(typedSource))
		for i := range typedSource {
			corrected[i] = correctValue(typedSource[i], typedCandidate[i])
		}
		return corrected
	default:
		if !sameShape(source, candidate) {
			return source
		}
		return candidate
	}
}
