package domain

import (
	"strings"
	"time"
)

// Retrieval bounds. Scoring is brute-force over a bounded candidate set;
// memory stays O(TopK) regardless of candidate volume.
const (
	// CandidateLimit caps how many candidates are fetched per search.
	CandidateLimit = 2000

	// TopK caps how many results a search returns.
	TopK = 200

	// SnippetLength caps the hydrated snippet, in runes.
	SnippetLength = 140
)

// DateOp selects how the date filter applies to
// COALESCE(modified_at, created_at).
type DateOp string

// Available date operators. The zero value means no date predicate.
const (
	DateOpNone   DateOp = ""
	DateOpOnDay  DateOp = "on"
	DateOpAfter  DateOp = "after"
	DateOpBefore DateOp = "before"
	DateOpRange  DateOp = "range"
)

// IsValid returns true if the operator is recognised.
func (op DateOp) IsValid() bool {
	switch op {
	case DateOpNone, DateOpOnDay, DateOpAfter, DateOpBefore, DateOpRange:
		return true
	default:
		return false
	}
}

// AssociationLevel is the user-facing knob mapping to a cosine similarity
// acceptance threshold. Level 0 is narrowest, level 3 broadest.
type AssociationLevel int

// associationThresholds maps level to minimum accepted similarity.
var associationThresholds = [4]float64{0.85, 0.75, 0.65, 0.55}

// IsValid returns true if the level is within range.
func (l AssociationLevel) IsValid() bool {
	return l >= 0 && l < AssociationLevel(len(associationThresholds))
}

// Threshold returns the minimum cosine similarity accepted at this level.
// Out-of-range levels clamp to the nearest valid level.
func (l AssociationLevel) Threshold() float64 {
	if l < 0 {
		l = 0
	}
	if int(l) >= len(associationThresholds) {
		l = AssociationLevel(len(associationThresholds) - 1)
	}
	return associationThresholds[l]
}

// SearchFilters configure one search invocation.
type SearchFilters struct {
	// Query is the free-text query. Whitespace-only queries yield an
	// empty result set without touching the model gateway.
	Query string

	// Kind restricts results to one source kind. Empty means both.
	Kind SourceKind

	// DateOp selects the date predicate. Zero value means none.
	DateOp DateOp

	// From is the lower bound (or the day, for DateOpOnDay).
	From *time.Time

	// To is the upper bound, used by DateOpRange only.
	To *time.Time

	// Level is the association level controlling the score threshold.
	Level AssociationLevel
}

// TrimmedQuery returns the query with surrounding whitespace removed.
func (f SearchFilters) TrimmedQuery() string {
	return strings.TrimSpace(f.Query)
}

// CandidateFilter is the structured predicate pushed down to the store
// when fetching candidates: status = indexed, not user-deleted, plus the
// optional kind and date restrictions.
type CandidateFilter struct {
	Kind   SourceKind
	DateOp DateOp
	From   *time.Time
	To     *time.Time
}

// CandidateFilterFrom derives the store predicate from search filters.
func CandidateFilterFrom(f SearchFilters) CandidateFilter {
	return CandidateFilter{
		Kind:   f.Kind,
		DateOp: f.DateOp,
		From:   f.From,
		To:     f.To,
	}
}

// Candidate is one item eligible for scoring, as fetched from the store.
type Candidate struct {
	ItemID string
	Kind   SourceKind
	Origin Origin
	Vector []float32
}

// SearchResult is one ranked hit with hydrated display data.
type SearchResult struct {
	// ItemID identifies the matched item.
	ItemID string

	// Kind is the item's source kind.
	Kind SourceKind

	// Title is the display title.
	Title string

	// Snippet is a single truncated text fragment, if the item has text.
	Snippet string

	// CreatedAt and ModifiedAt are the item's source timestamps.
	CreatedAt  *time.Time
	ModifiedAt *time.Time

	// Origin lets the caller open the underlying photo or file.
	Origin Origin

	// Score is the cosine similarity against the query vector.
	Score float64
}

// SearchCounts tallies result kinds over the final result set.
type SearchCounts struct {
	Photos int
	Files  int
}

// SearchResults is the complete outcome of one search.
type SearchResults struct {
	Results []SearchResult
	Counts  SearchCounts
}

// DayBounds returns the [start, end) bounds of the calendar day containing t,
// in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// Snippet normalizes whitespace runs to single spaces and truncates to
// SnippetLength runes, appending an ellipsis when cut.
func Snippet(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	runes := []rune(t)
	if len(runes) <= SnippetLength {
		return t
	}
	return string(runes[:SnippetLength]) + "…"
}
