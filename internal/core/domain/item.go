package domain

import (
	"strings"
	"time"
)

// SourceKind identifies where an item came from.
type SourceKind string

// Available source kinds.
const (
	// SourceKindPhoto is an item enumerated from the device photo catalog.
	SourceKindPhoto SourceKind = "photo"

	// SourceKindFile is an item copied into the private file library.
	SourceKindFile SourceKind = "file"
)

// IsValid returns true if the source kind is recognised.
func (k SourceKind) IsValid() bool {
	return k == SourceKindPhoto || k == SourceKindFile
}

// String returns the string representation.
func (k SourceKind) String() string {
	return string(k)
}

// ItemStatus is the lifecycle status of an item.
type ItemStatus string

// Item lifecycle states. An item moves processing -> indexed exactly once on
// a successful commit, or processing -> error on an unrecoverable failure.
const (
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusIndexed    ItemStatus = "indexed"
	ItemStatusError      ItemStatus = "error"
)

// Origin is the reference back to the raw source of an item.
// Exactly one of AssetID or LocalPath is populated, matching the source kind:
// photos carry an asset handle, files carry the sandboxed copy's path.
type Origin struct {
	// AssetID is the photo catalog handle (photos only).
	AssetID string

	// LocalPath is the path of the library copy (files only).
	LocalPath string
}

// Ref returns whichever reference is populated.
func (o Origin) Ref() string {
	if o.AssetID != "" {
		return o.AssetID
	}
	return o.LocalPath
}

// Item is one indexed unit - a photo or a file.
type Item struct {
	// ID is the unique identifier, generated at ingestion time.
	ID string

	// Kind is the source kind. Immutable once set.
	Kind SourceKind

	// Origin references the raw source.
	Origin Origin

	// DisplayName is the human-readable title.
	DisplayName string

	// OriginalFilename is the name the file had before import (files only).
	OriginalFilename string

	// CreatedAt is the source creation time, if known.
	CreatedAt *time.Time

	// ModifiedAt is the source modification time, if known.
	ModifiedAt *time.Time

	// SizeBytes is the source size, if known.
	SizeBytes *int64

	// Status is the lifecycle status.
	Status ItemStatus

	// LastSeenAt is stamped by the refresh sweep when the source is
	// still reachable. Nil means not yet checked or gone missing.
	LastSeenAt *time.Time

	// UserDeleted soft-deletes the item without removing its rows.
	UserDeleted bool

	// IndexedAt is when the item was committed.
	IndexedAt time.Time
}

// Title returns the best available display title.
func (i *Item) Title() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.OriginalFilename != "" {
		return i.OriginalFilename
	}
	return "Untitled"
}

// TextChunk is an ordered fragment of text extracted from one item.
// Items with no extractable text own zero chunks.
type TextChunk struct {
	// ID is the unique identifier for the chunk row.
	ID string

	// ItemID links to the owning Item.
	ItemID string

	// Index is the ordinal position within the item's text.
	Index int

	// Content is the chunk text.
	Content string
}

// Tag is a short label generated from an item's aggregated text.
type Tag struct {
	// ID is the unique identifier for the tag row.
	ID string

	// ItemID links to the owning Item.
	ItemID string

	// Label is the lowercase tag text.
	Label string

	// Confidence is the model's confidence in the label.
	Confidence float64
}

// Embedding is the fixed-dimension vector derived from an item's
// name, extracted text and tags. Exactly one per indexed item.
type Embedding struct {
	// ID is the unique identifier for the embedding row.
	ID string

	// ItemID links to the owning Item.
	ItemID string

	// Vector is the embedding itself.
	Vector []float32
}

// Dimension returns the vector length.
func (e *Embedding) Dimension() int {
	return len(e.Vector)
}

// ItemBundle is everything committed for one item in a single transaction.
// The commit is all-or-nothing: item, chunks, tags and embedding succeed
// together or not at all.
type ItemBundle struct {
	Item      Item
	Chunks    []TextChunk
	Tags      []Tag
	Embedding Embedding
}

// ChunkWidth is the fixed character width used when splitting extracted text.
const ChunkWidth = 1000

// SplitText splits text into ordered fixed-width chunks for storage.
// Splitting is rune-aware so chunk boundaries never cut a UTF-8 sequence.
// Empty text yields no chunks.
func SplitText(itemID, text string, newID func() string) []TextChunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]TextChunk, 0, len(runes)/ChunkWidth+1)
	for start, idx := 0, 0; start < len(runes); start, idx = start+ChunkWidth, idx+1 {
		end := start + ChunkWidth
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, TextChunk{
			ID:      newID(),
			ItemID:  itemID,
			Index:   idx,
			Content: string(runes[start:end]),
		})
	}
	return chunks
}

// EmbeddingInput builds the text an item's embedding is derived from:
// display name, extracted text and tag labels, space-joined, blanks dropped.
func EmbeddingInput(name, text string, tags []Tag) string {
	parts := make([]string, 0, len(tags)+2)
	if name != "" {
		parts = append(parts, name)
	}
	if text != "" {
		parts = append(parts, text)
	}
	for _, t := range tags {
		if t.Label != "" {
			parts = append(parts, t.Label)
		}
	}
	return strings.Join(parts, " ")
}
