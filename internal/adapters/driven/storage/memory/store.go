// Package memory provides an in-memory store implementation,
// useful for tests and throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

var (
	_ driven.VectorStore   = (*Store)(nil)
	_ driven.QuotaStore    = (*Store)(nil)
	_ driven.MetadataStore = (*Store)(nil)
)

// Store keeps all rows in maps guarded by a single mutex.
type Store struct {
	mu         sync.RWMutex
	items      map[string]domain.Item
	chunks     map[string][]domain.TextChunk
	tags       map[string][]domain.Tag
	embeddings map[string]domain.Embedding
	metadata   map[string]string
}

// NewStore creates an empty in-memory store with default caps.
func NewStore() *Store {
	return &Store{
		items:      make(map[string]domain.Item),
		chunks:     make(map[string][]domain.TextChunk),
		tags:       make(map[string][]domain.Tag),
		embeddings: make(map[string]domain.Embedding),
		metadata: map[string]string{
			"schema_version": "1",
			"user_tier":      "free",
			"photo_cap":      "10",
			"file_cap":       "10",
		},
	}
}

// CommitItem writes the bundle atomically under the store lock.
func (s *Store) CommitItem(_ context.Context, bundle *domain.ItemBundle) error {
	if !bundle.Item.Kind.IsValid() {
		return fmt.Errorf("%w: source kind %q", domain.ErrInvalidInput, bundle.Item.Kind)
	}
	if bundle.Item.Origin.Ref() == "" {
		return fmt.Errorf("%w: missing origin reference", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := bundle.Item.ID
	s.items[id] = bundle.Item
	s.chunks[id] = append([]domain.TextChunk(nil), bundle.Chunks...)
	s.tags[id] = append([]domain.Tag(nil), bundle.Tags...)
	s.embeddings[id] = bundle.Embedding
	return nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (s *Store) ListItems(_ context.Context, kind domain.SourceKind) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.Item
	for _, item := range s.items {
		if kind != "" && item.Kind != kind {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].IndexedAt.Before(items[j].IndexedAt)
	})
	return items, nil
}

func (s *Store) GetChunks(_ context.Context, itemID string) ([]domain.TextChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TextChunk(nil), s.chunks[itemID]...), nil
}

func (s *Store) GetTags(_ context.Context, itemID string) ([]domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Tag(nil), s.tags[itemID]...), nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	delete(s.chunks, id)
	delete(s.tags, id)
	delete(s.embeddings, id)
	return nil
}

func (s *Store) MarkUserDeleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.UserDeleted = true
	s.items[id] = item
	return nil
}

func (s *Store) FetchCandidates(
	_ context.Context,
	filter domain.CandidateFilter,
	limit int,
) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []domain.Candidate
	for id, item := range s.items {
		if len(candidates) >= limit {
			break
		}
		if item.Status != domain.ItemStatusIndexed || item.UserDeleted {
			continue
		}
		if filter.Kind != "" && item.Kind != filter.Kind {
			continue
		}
		if !matchesDate(item, filter) {
			continue
		}
		emb, ok := s.embeddings[id]
		if !ok {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ItemID: id,
			Kind:   item.Kind,
			Origin: item.Origin,
			Vector: emb.Vector,
		})
	}
	return candidates, nil
}

// matchesDate applies the date predicate over modified_at falling back
// to created_at, mirroring the SQLite COALESCE.
func matchesDate(item domain.Item, filter domain.CandidateFilter) bool {
	var effective *time.Time
	if item.ModifiedAt != nil {
		effective = item.ModifiedAt
	} else {
		effective = item.CreatedAt
	}

	switch filter.DateOp {
	case domain.DateOpOnDay:
		if filter.From == nil {
			return true
		}
		if effective == nil {
			return false
		}
		start, end := domain.DayBounds(*filter.From)
		return !effective.Before(start) && effective.Before(end)
	case domain.DateOpAfter:
		if filter.From == nil {
			return true
		}
		return effective != nil && !effective.Before(*filter.From)
	case domain.DateOpBefore:
		if filter.From == nil {
			return true
		}
		return effective != nil && !effective.After(*filter.From)
	case domain.DateOpRange:
		if filter.From == nil || filter.To == nil {
			return true
		}
		return effective != nil && !effective.Before(*filter.From) && !effective.After(*filter.To)
	default:
		return true
	}
}

func (s *Store) HydrateItems(_ context.Context, ids []string) (map[string]driven.HydratedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]driven.HydratedItem, len(ids))
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		h := driven.HydratedItem{Item: item}
		if chunks := s.chunks[id]; len(chunks) > 0 {
			h.FirstChunk = chunks[0].Content
		}
		out[id] = h
	}
	return out, nil
}

func (s *Store) ClearLastSeen(_ context.Context, kind domain.SourceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.items {
		if item.Kind == kind {
			item.LastSeenAt = nil
			s.items[id] = item
		}
	}
	return nil
}

func (s *Store) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.LastSeenAt = &at
	s.items[id] = item
	return nil
}

func (s *Store) PurgeUnseen(_ context.Context, kind domain.SourceKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, item := range s.items {
		if item.Kind == kind && item.LastSeenAt == nil {
			delete(s.items, id)
			delete(s.chunks, id)
			delete(s.tags, id)
			delete(s.embeddings, id)
			purged++
		}
	}
	return purged, nil
}

func (s *Store) Usage(_ context.Context) (domain.QuotaUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usage := domain.QuotaUsage{
		PhotoCap: s.metadataIntLocked("photo_cap", 10),
		FileCap:  s.metadataIntLocked("file_cap", 10),
	}
	for _, item := range s.items {
		if item.Status != domain.ItemStatusIndexed || item.UserDeleted {
			continue
		}
		switch item.Kind {
		case domain.SourceKindPhoto:
			usage.PhotoCount++
		case domain.SourceKindFile:
			usage.FileCount++
		}
	}
	return usage, nil
}

func (s *Store) SetCaps(_ context.Context, photoCap, fileCap int) error {
	if photoCap < 0 || fileCap < 0 {
		return fmt.Errorf("%w: caps must be non-negative", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata["photo_cap"] = strconv.Itoa(photoCap)
	s.metadata["file_cap"] = strconv.Itoa(fileCap)
	return nil
}

func (s *Store) GetMetadata(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.metadata[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return value, nil
}

func (s *Store) SetMetadata(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) metadataIntLocked(key string, def int) int {
	value, ok := s.metadata[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}
