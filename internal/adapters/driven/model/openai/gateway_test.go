package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// newTestGateway points a gateway at a fake API server with the rate
// limiter opened wide.
func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := NewGateway(Config{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		RequestRate: 1000,
	})
	require.NoError(t, err)
	return gw
}

func chatHandler(t *testing.T, reply string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}
}

func TestNewGatewayRequiresAPIKey(t *testing.T) {
	_, err := NewGateway(Config{})
	assert.Error(t, err)
}

func TestEmbedText(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "beach sunset", req.Input)

		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	})

	vec, err := gw.EmbedText(context.Background(), "beach sunset")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedTextServerErrorIsGatewayUnavailable(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gw.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestGenerateTags(t *testing.T) {
	gw := newTestGateway(t, chatHandler(t, `Invoice, "Taxes", finance , , receipt`))

	tags, err := gw.GenerateTags(context.Background(), "invoice from 2024 tax filing")
	require.NoError(t, err)
	require.Len(t, tags, 4)

	labels := make([]string, len(tags))
	for i, tag := range tags {
		labels[i] = tag.Label
		assert.NotEmpty(t, tag.ID)
		assert.InDelta(t, defaultTagConfidence, tag.Confidence, 1e-9)
	}
	assert.Equal(t, []string{"invoice", "taxes", "finance", "receipt"}, labels)
}

func TestGenerateTagsCapsCount(t *testing.T) {
	gw := newTestGateway(t, chatHandler(t, "a,b,c,d,e,f,g,h,i,j"))

	tags, err := gw.GenerateTags(context.Background(), "lots of content")
	require.NoError(t, err)
	assert.Len(t, tags, maxTagCount)
}

func TestGenerateTagsEmptyTextSkipsCall(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway should not be called for empty text")
	})

	tags, err := gw.GenerateTags(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, tags)
}

func TestExtractTextReadsTextFile(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("text formats are read locally")
	})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("  meeting notes\n"), 0600))

	text, err := gw.ExtractText(context.Background(), domain.SourceKindFile, path)
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", text)
}

func TestExtractTextUnknownFormatYieldsEmpty(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no extractor should be invoked")
	})

	text, err := gw.ExtractText(context.Background(), domain.SourceKindFile, "/tmp/archive.zip")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestParseQueryStructured(t *testing.T) {
	reply := `{"query": "beach photos", "kind": "photo", "date_op": "after", "from": "2024-06-01", "to": ""}`
	gw := newTestGateway(t, chatHandler(t, reply))

	filters, err := gw.ParseQuery(context.Background(), "beach photos after june 2024")
	require.NoError(t, err)
	assert.Equal(t, "beach photos", filters.Query)
	assert.Equal(t, domain.SourceKindPhoto, filters.Kind)
	assert.Equal(t, domain.DateOpAfter, filters.DateOp)
	require.NotNil(t, filters.From)
	assert.Equal(t, "2024-06-01", filters.From.Format("2006-01-02"))
	assert.Nil(t, filters.To)
}

func TestParseQueryCarriesAssociationLevel(t *testing.T) {
	reply := `{"query": "beach sunset", "kind": "photo", "date_op": "", "from": "", "to": "", "level": 3}`
	gw := newTestGateway(t, chatHandler(t, reply))

	filters, err := gw.ParseQuery(context.Background(), "anything beach-ish")
	require.NoError(t, err)
	assert.Equal(t, domain.AssociationLevel(3), filters.Level)
}

func TestParseQueryLevelDefaultsAndClamps(t *testing.T) {
	t.Run("absent level defaults to 1", func(t *testing.T) {
		reply := `{"query": "receipts", "kind": "file", "date_op": "", "from": "", "to": ""}`
		gw := newTestGateway(t, chatHandler(t, reply))

		filters, err := gw.ParseQuery(context.Background(), "receipts")
		require.NoError(t, err)
		assert.Equal(t, domain.AssociationLevel(1), filters.Level)
	})

	t.Run("out of range level ignored", func(t *testing.T) {
		reply := `{"query": "receipts", "kind": "file", "date_op": "", "from": "", "to": "", "level": 9}`
		gw := newTestGateway(t, chatHandler(t, reply))

		filters, err := gw.ParseQuery(context.Background(), "receipts")
		require.NoError(t, err)
		assert.Equal(t, domain.AssociationLevel(1), filters.Level)
	})
}

func TestParseQueryNonJSONFallsBack(t *testing.T) {
	gw := newTestGateway(t, chatHandler(t, "sorry, I cannot help with that"))

	filters, err := gw.ParseQuery(context.Background(), "tax documents")
	require.NoError(t, err)
	assert.Equal(t, "tax documents", filters.Query)
	assert.Equal(t, domain.DateOpNone, filters.DateOp)
	assert.Empty(t, filters.Kind)
}

func TestParseQueryDropsDateOpWithoutBound(t *testing.T) {
	reply := `{"query": "receipts", "kind": "", "date_op": "before", "from": "not-a-date", "to": ""}`
	gw := newTestGateway(t, chatHandler(t, reply))

	filters, err := gw.ParseQuery(context.Background(), "receipts before whenever")
	require.NoError(t, err)
	assert.Equal(t, "receipts", filters.Query)
	assert.Equal(t, domain.DateOpNone, filters.DateOp)
	assert.Nil(t, filters.From)
}
