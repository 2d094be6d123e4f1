package replicate

import (
	"reflect"
	"sort"
	"testing"
)

func TestValidateStructure(t *testing.T) {
	t.Parallel()

	source := map[string]any{
		"subject": "Quarterly reminder",
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Hello</p>"},
			map[string]any{"from": "hr@example.com", "body": "<p>Bye</p>"},
		},
	}

	valid := map[string]any{
		"subject": "Vierteljährliche Erinnerung",
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Hallo</p>"},
			map[string]any{"from": "hr@example.com", "body": "<p>Tschüss</p>"},
		},
	}
	if !ValidateStructure(source, valid) {
		t.Fatalf("expected structurally identical candidate to validate")
	}

	truncated := map[string]any{
		"subject": "Vierteljährliche Erinnerung",
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Hallo</p>"},
		},
	}
	if ValidateStructure(source, truncated) {
		t.Fatalf("expected truncated messages array to fail validation")
	}

	missingKey := map[string]any{
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Hallo</p>"},
			map[string]any{"from": "hr@example.com", "body": "<p>Tschüss</p>"},
		},
	}
	if ValidateStructure(source, missingKey) {
		t.Fatalf("expected missing key to fail validation")
	}

	wrongShape := map[string]any{
		"subject":  map[string]any{"text": "Erinnerung"},
		"messages": source["messages"],
	}
	if ValidateStructure(source, wrongShape) {
		t.Fatalf("expected shape mismatch to fail validation")
	}

	if ValidateStructure(source, nil) {
		t.Fatalf("expected nil candidate to fail validation")
	}
}

func TestCorrectStructureRestoresSourceKeySet(t *testing.T) {
	t.Parallel()

	source := map[string]any{
		"subject": "Security update",
		"intro":   "Please read carefully",
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Patch now</p>"},
		},
	}
	candidate := map[string]any{
		"subject": "Sicherheitsupdate",
		// intro dropped by the translator, messages malformed
		"messages": "kaputt",
		"extra":    "should be discarded",
	}

	corrected := CorrectStructure(source, candidate)

	sourceKeys := sortedKeys(source)
	correctedKeys := sortedKeys(corrected)
	if !reflect.DeepEqual(sourceKeys, correctedKeys) {
		t.Fatalf("corrected keys = %v, want %v", correctedKeys, sourceKeys)
	}

	if corrected["subject"] != "Sicherheitsupdate" {
		t.Fatalf("expected translated subject to be kept, got %v", corrected["subject"])
	}
	if corrected["intro"] != "Please read carefully" {
		t.Fatalf("expected dropped field to revert to source, got %v", corrected["intro"])
	}
	if !reflect.DeepEqual(corrected["messages"], source["messages"]) {
		t.Fatalf("expected malformed messages to revert to source")
	}
	if !ValidateStructure(source, corrected) {
		t.Fatalf("corrected document must validate against source")
	}
}

func TestCorrectStructureKeepsValidNestedValues(t *testing.T) {
	t.Parallel()

	source := map[string]any{
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Hello</p>"},
			map[string]any{"from": "hr@example.com", "body": "<p>Bye</p>"},
		},
	}
	candidate := map[string]any{
		"messages": []any{
			map[string]any{"from": "it@example.com", "body": "<p>Hallo</p>"},
			map[string]any{"from": "hr@example.com"},
		},
	}

	corrected := CorrectStructure(source, candidate)

	messages := corrected["messages"].([]any)
	first := messages[0].(map[string]any)
	if first["body"] != "<p>Hallo</p>" {
		t.Fatalf("expected translated body to be kept, got %v", first["body"])
	}
	second := messages[1].(map[string]any)
	if second["body"] != "<p>Bye</p>" {
		t.Fatalf("expected missing body to revert to source, got %v", second["body"])
	}
}

func sortedKeys(doc map[string]any) []string {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
