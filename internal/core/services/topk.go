package services

import "container/heap"

// scoredItem is a candidate that survived thresholding.
type scoredItem struct {
	itemID string
	score  float64
}

// scoredMinHeap orders scored items by ascending score, so the current
// minimum sits at the root and can be replaced in O(log K).
type scoredMinHeap []scoredItem

func (h scoredMinHeap) Len() int           { return len(h) }
func (h scoredMinHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h scoredMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoredMinHeap) Push(x any)        { *h = append(*h, x.(scoredItem)) }
func (h *scoredMinHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK keeps the K highest-scoring items seen so far in a bounded
// min-heap. Memory stays O(K) regardless of how many items are offered.
type topK struct {
	k int
	h scoredMinHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(scoredMinHeap, 0, k)}
}

// Offer considers one item. Once K items are held, a new item replaces
// the current minimum only if it scores higher.
func (t *topK) Offer(itemID string, score float64) {
	if t.k <= 0 {
		return
	}
	if t.h.Len() < t.k {
		heap.Push(&t.h, scoredItem{itemID: itemID, score: score})
		return
	}
	if score > t.h[0].score {
		t.h[0] = scoredItem{itemID: itemID, score: score}
		heap.Fix(&t.h, 0)
	}
}

// Items returns the surviving items in no particular order.
func (t *topK) Items() []scoredItem {
	out := make([]scoredItem, len(t.h))
	copy(out, t.h)
	return out
}
