package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"courseware.fit/polyglot/internal/deepmerge"
	"courseware.fit/polyglot/internal/kvstore"
)

// Repository reads and writes resources, content documents, and mailbox
// simulations through the kv store.
type Repository struct {
	store  kvstore.Store
	logger zerolog.Logger
}

func NewRepository(store kvstore.Store, logger zerolog.Logger) *Repository {
	return &Repository{store: store, logger: logger}
}

// GetResource loads and validates a resource's metadata document.
func (r *Repository) GetResource(ctx context.Context, resourceID string) (*Resource, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("repository is not initialized")
	}

	raw, err := r.store.Get(ctx, kvstore.ResourceKey(resourceID))
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", resourceID, err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}

	res, err := ValidateMetadata(raw)
	if err != nil {
		return nil, fmt.Errorf("resource %s metadata: %w", resourceID, err)
	}
	return res, nil
}

// PutResource stores a resource's metadata document.
func (r *Repository) PutResource(ctx context.Context, res *Resource) error {
	if res == nil {
		return fmt.Errorf("resource is nil")
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resource %s: %w", res.ID, err)
	}
	if err := r.store.Put(ctx, kvstore.ResourceKey(res.ID), raw); err != nil {
		return fmt.Errorf("write resource %s: %w", res.ID, err)
	}
	return nil
}

// GetContent loads the content document for one language. A missing document
// returns (nil, nil).
func (r *Repository) GetContent(ctx context.Context, resourceID, lang string) (map[string]any, error) {
	return r.getDocument(ctx, kvstore.ContentKey(resourceID, lang))
}

// PutContent stores the content document for one language.
func (r *Repository) PutContent(ctx context.Context, resourceID, lang string, doc map[string]any) error {
	return r.putDocument(ctx, kvstore.ContentKey(resourceID, lang), doc)
}

// GetMailbox loads the mailbox simulation for one group and language. A
// missing document returns (nil, nil).
func (r *Repository) GetMailbox(ctx context.Context, resourceID, group, lang string) (map[string]any, error) {
	return r.getDocument(ctx, kvstore.MailboxKey(resourceID, group, lang))
}

// PutMailbox stores the mailbox simulation for one group and language.
func (r *Repository) PutMailbox(ctx context.Context, resourceID, group, lang string, doc map[string]any) error {
	return r.putDocument(ctx, kvstore.MailboxKey(resourceID, group, lang), doc)
}

// MarkLanguagesAvailable appends langs to the resource's availability set and
// bumps its version. The update is a read-merge-write of the metadata document
// and is idempotent: already-present languages change nothing in the set.
func (r *Repository) MarkLanguagesAvailable(ctx context.Context, resourceID string, langs []string) error {
	if len(langs) == 0 {
		return nil
	}

	res, err := r.GetResource(ctx, resourceID)
	if err != nil {
		return err
	}

	merged := make(map[string]struct{}, len(res.AvailableLanguages)+len(langs))
	for _, lang := range res.AvailableLanguages {
		merged[lang] = struct{}{}
	}
	for _, lang := range langs {
		merged[lang] = struct{}{}
	}

	union := make([]string, 0, len(merged))
	for lang := range merged {
		union = append(union, lang)
	}
	sort.Strings(union)

	raw, err := r.store.Get(ctx, kvstore.ResourceKey(resourceID))
	if err != nil {
		return fmt.Errorf("read resource %s: %w", resourceID, err)
	}
	var current map[string]any
	if err := json.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("decode resource %s: %w", resourceID, err)
	}

	availableValues := make([]any, len(union))
	for i, lang := range union {
		availableValues[i] = lang
	}
	patch := map[string]any{
		"available_languages": availableValues,
		"version":             res.Version + 1,
	}

	updated, err := deepmerge.Merge(current, patch)
	if err != nil {
		return fmt.Errorf("merge availability update for %s: %w", resourceID, err)
	}

	encoded, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal resource %s: %w", resourceID, err)
	}
	if err := r.store.Put(ctx, kvstore.ResourceKey(resourceID), encoded); err != nil {
		return fmt.Errorf("write resource %s: %w", resourceID, err)
	}

	r.logger.Info().
		Str("resource_id", resourceID).
		Strs("languages", union).
		Msg("marked languages available")
	return nil
}

func (r *Repository) getDocument(ctx context.Context, key string) (map[string]any, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("repository is not initialized")
	}

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if raw == nil {
		return nil, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func (r *Repository) putDocument(ctx context.Context, key string, doc map[string]any) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("repository is not initialized")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
