package domain

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "chunk-" + strconv.Itoa(n)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	assert.Nil(t, SplitText("item-1", "", sequentialIDs()))
}

func TestSplitTextSingleChunk(t *testing.T) {
	chunks := SplitText("item-1", "hello world", sequentialIDs())
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunk-1", chunks[0].ID)
	assert.Equal(t, "item-1", chunks[0].ItemID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "hello world", chunks[0].Content)
}

func TestSplitTextExactBoundary(t *testing.T) {
	text := strings.Repeat("a", ChunkWidth)
	chunks := SplitText("item-1", text, sequentialIDs())
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Content, ChunkWidth)
}

func TestSplitTextOrdersChunks(t *testing.T) {
	text := strings.Repeat("a", ChunkWidth*2+5)
	chunks := SplitText("item-1", text, sequentialIDs())
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, "aaaaa", chunks[2].Content)
}

func TestSplitTextRuneAware(t *testing.T) {
	// Multi-byte runes must never be cut mid-sequence.
	text := strings.Repeat("é", ChunkWidth+10)
	chunks := SplitText("item-1", text, sequentialIDs())
	require.Len(t, chunks, 2)
	assert.Equal(t, ChunkWidth, len([]rune(chunks[0].Content)))
	assert.Equal(t, 10, len([]rune(chunks[1].Content)))
	assert.Equal(t, text, chunks[0].Content+chunks[1].Content)
}

func TestEmbeddingInputJoinsParts(t *testing.T) {
	tags := []Tag{{Label: "receipt"}, {Label: ""}, {Label: "invoice"}}
	got := EmbeddingInput("Q3 Report", "total due 42", tags)
	assert.Equal(t, "Q3 Report total due 42 receipt invoice", got)
}

func TestEmbeddingInputDropsBlanks(t *testing.T) {
	assert.Equal(t, "photo.jpg", EmbeddingInput("photo.jpg", "", nil))
	assert.Equal(t, "", EmbeddingInput("", "", nil))
}

func TestOriginRef(t *testing.T) {
	assert.Equal(t, "asset-1", Origin{AssetID: "asset-1"}.Ref())
	assert.Equal(t, "/library/doc.pdf", Origin{LocalPath: "/library/doc.pdf"}.Ref())
	assert.Equal(t, "", Origin{}.Ref())
}

func TestItemTitleFallbacks(t *testing.T) {
	item := &Item{DisplayName: "Holiday", OriginalFilename: "img_001.jpg"}
	assert.Equal(t, "Holiday", item.Title())

	item.DisplayName = ""
	assert.Equal(t, "img_001.jpg", item.Title())

	item.OriginalFilename = ""
	assert.Equal(t, "Untitled", item.Title())
}

func TestSourceKindIsValid(t *testing.T) {
	assert.True(t, SourceKindPhoto.IsValid())
	assert.True(t, SourceKindFile.IsValid())
	assert.False(t, SourceKind("video").IsValid())
	assert.False(t, SourceKind("").IsValid())
}
