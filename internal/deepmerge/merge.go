// Package deepmerge applies partial updates to stored JSON documents.
package deepmerge

import (
	"errors"
	"fmt"
)

// ErrCannotMergeIntoPrimitive is returned when a nested object in the patch
// targets a key whose existing value is a non-object.
var ErrCannotMergeIntoPrimitive = errors.New("cannot merge object into primitive value")

// Merge combines patch into target and returns a new document. target is never
// mutated. Nested objects merge recursively; primitives and arrays from patch
// replace the target value wholesale. A nil patch returns a copy of target.
func Merge(target, patch map[string]any) (map[string]any, error) {
	result := copyMap(target)
	if patch == nil {
		return result, nil
	}

	for key, patchValue := range patch {
		patchMap, patchIsMap := asMap(patchValue)
		if !patchIsMap {
			result[key] = copyValue(patchValue)
			continue
		}

		existing, exists := result[key]
		if !exists || existing == nil {
			merged, err := Merge(nil, patchMap)
			if err != nil {
				return nil, err
			}
			result[key] = merged
			continue
		}

		existingMap, existingIsMap := asMap(existing)
		if !existingIsMap {
			return nil, fmt.Errorf("key %q: %w", key, ErrCannotMergeIntoPrimitive)
		}

		merged, err := Merge(existingMap, patchMap)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		result[key] = merged
	}

	return result, nil
}

func asMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}

func copyMap(source map[string]any) map[string]any {
	result := make(map[string]any, len(source))
	for key, value := range source {
		result[key] = copyValue(value)
	}
	return result
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return copyMap(typed)
	case []any:
		copied := make([]any, len(typed))
		for i, item := range typed {
			copied[i] = copyValue(item)
		}
		return copied
	default:
		return typed
	}
}
