// Package resource models multilingual training content stored in the kv layer.
package resource

import (
	"errors"
	"strings"
)

// Resource kinds. KindPolicy documents carry no mailbox simulation.
const (
	KindCourse      = "course"
	KindPhishingSim = "phishing-sim"
	KindPolicy      = "policy"
)

// DefaultGroupKey is the last mailbox group searched when neither the request
// nor the resource names one.
const DefaultGroupKey = "default"

var ErrNotFound = errors.New("resource not found")

// Resource is the metadata document of one training resource. The set of
// available languages only ever grows.
type Resource struct {
	ID                 string   `json:"id"`
	Kind               string   `json:"kind"`
	Title              string   `json:"title"`
	Language           string   `json:"language,omitempty"`
	AvailableLanguages []string `json:"available_languages,omitempty"`
	DefaultGroup       string   `json:"default_group,omitempty"`
	Version            int      `json:"version"`
}

// MailboxEnabled reports whether this resource kind carries a per-department
// mailbox simulation.
func (r *Resource) MailboxEnabled() bool {
	if r == nil {
		return false
	}
	return strings.TrimSpace(r.Kind) != KindPolicy
}

// HasLanguage reports whether lang is already marked available.
func (r *Resource) HasLanguage(lang string) bool {
	if r == nil {
		return false
	}
	for _, available := range r.AvailableLanguages {
		if available == lang {
			return true
		}
	}
	return false
}

// GroupCandidates returns the mailbox group keys to search, highest priority
// first and deduplicated.
func (r *Resource) GroupCandidates(requested string) []string {
	candidates := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	appendGroup := func(group string) {
		group = strings.ToLower(strings.TrimSpace(group))
		if group == "" {
			return
		}
		if _, exists := seen[group]; exists {
			return
		}
		seen[group] = struct{}{}
		candidates = append(candidates, group)
	}

	appendGroup(requested)
	if r != nil {
		appendGroup(r.DefaultGroup)
	}
	appendGroup(DefaultGroupKey)
	return candidates
}
