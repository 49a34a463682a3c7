package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

// mockGateway is a scriptable test double for driven.ModelGateway.
// Unset hooks fall back to cheap deterministic behavior.
type mockGateway struct {
	mu         sync.Mutex
	dims       int
	extractFn  func(kind domain.SourceKind, ref string) (string, error)
	tagsFn     func(text string) ([]domain.Tag, error)
	embedFn    func(text string) ([]float32, error)
	parseFn    func(query string) (domain.SearchFilters, error)
	embedCalls int
	tagCalls   int
}

var _ driven.ModelGateway = (*mockGateway)(nil)

func newMockGateway(dims int) *mockGateway {
	return &mockGateway{dims: dims}
}

func (g *mockGateway) ExtractText(_ context.Context, kind domain.SourceKind, ref string) (string, error) {
	if g.extractFn != nil {
		return g.extractFn(kind, ref)
	}
	return "text from " + ref, nil
}

func (g *mockGateway) GenerateTags(_ context.Context, text string) ([]domain.Tag, error) {
	g.mu.Lock()
	g.tagCalls++
	g.mu.Unlock()
	if g.tagsFn != nil {
		return g.tagsFn(text)
	}
	return []domain.Tag{{Label: "mock", Confidence: 0.9}}, nil
}

func (g *mockGateway) EmbedText(_ context.Context, text string) ([]float32, error) {
	g.mu.Lock()
	g.embedCalls++
	g.mu.Unlock()
	if g.embedFn != nil {
		return g.embedFn(text)
	}
	vec := make([]float32, g.dims)
	if g.dims > 0 {
		vec[0] = 1
	}
	return vec, nil
}

func (g *mockGateway) ParseQuery(_ context.Context, query string) (domain.SearchFilters, error) {
	if g.parseFn != nil {
		return g.parseFn(query)
	}
	return domain.SearchFilters{Query: query, Level: 1}, nil
}

func (g *mockGateway) Dimensions() int { return g.dims }
func (g *mockGateway) Close() error    { return nil }

func (g *mockGateway) embedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.embedCalls
}

func (g *mockGateway) tagCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tagCalls
}

// mockCatalog is a test double for driven.PhotoCatalog.
type mockCatalog struct {
	accessErr error
	assets    []domain.PhotoAsset
	present   map[string]bool
}

var _ driven.PhotoCatalog = (*mockCatalog)(nil)

func (c *mockCatalog) RequestAccess(context.Context) error {
	return c.accessErr
}

func (c *mockCatalog) Enumerate(_ context.Context, max int) ([]domain.PhotoAsset, error) {
	assets := c.assets
	if max > 0 && len(assets) > max {
		assets = assets[:max]
	}
	return assets, nil
}

func (c *mockCatalog) Contains(_ context.Context, assetID string) (bool, error) {
	return c.present[assetID], nil
}

// mockFileSource is a test double for driven.FileSource.
type mockFileSource struct {
	paths []string
}

var _ driven.FileSource = (*mockFileSource)(nil)

func (s *mockFileSource) Enumerate(_ context.Context, max int) ([]string, error) {
	paths := s.paths
	if max > 0 && len(paths) > max {
		paths = paths[:max]
	}
	return paths, nil
}

// mockLibrary is a test double for driven.FileLibrary that tracks
// copies without touching the filesystem.
type mockLibrary struct {
	mu      sync.Mutex
	copies  map[string]bool
	removed []string
}

var _ driven.FileLibrary = (*mockLibrary)(nil)

func newMockLibrary() *mockLibrary {
	return &mockLibrary{copies: make(map[string]bool)}
}

func (l *mockLibrary) Import(_ context.Context, srcPath, itemID string) (domain.CopiedFile, error) {
	path := fmt.Sprintf("/library/%s_%s", itemID, baseName(srcPath))
	now := time.Now().UTC()
	l.mu.Lock()
	l.copies[path] = true
	l.mu.Unlock()
	return domain.CopiedFile{
		LocalPath:        path,
		OriginalFilename: baseName(srcPath),
		SizeBytes:        int64(len(srcPath)),
		ModifiedAt:       &now,
	}, nil
}

func (l *mockLibrary) Exists(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copies[path]
}

func (l *mockLibrary) Remove(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.copies, path)
	l.removed = append(l.removed, path)
	return nil
}

func (l *mockLibrary) forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.copies, path)
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
