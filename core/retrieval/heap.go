package retrieval

import (
	"container/heap"

	"github.com/siherrmann/docflow/model"
)

// candidate is one scored chunk inside the merge heap.
type candidate struct {
	chunk *model.Chunk
	score float64
}

// worseThan orders candidates for eviction: lower score first, later
// insertion (higher Seq) first on equal score. The heap root is always the
// next candidate to drop.
func (c candidate) worseThan(other candidate) bool {
	if c.score != other.score {
		return c.score < other.score
	}
	return c.chunk.Seq > other.chunk.Seq
}

// boundedHeap keeps the best k candidates seen so far.
type boundedHeap struct {
	limit int
	items candidateHeap
}

func newBoundedHeap(limit int) *boundedHeap {
	return &boundedHeap{limit: limit}
}

// Offer adds a candidate, evicting the worst kept one when over the limit.
// Duplicate chunk ids are ignored so a chunk retrieved from several candidate
// lists only counts once.
func (b *boundedHeap) Offer(c candidate) {
	for _, kept := range b.items {
		if kept.chunk.ID == c.chunk.ID {
			return
		}
	}

	if len(b.items) < b.limit {
		heap.Push(&b.items, c)
		return
	}
	if b.items[0].worseThan(c) {
		b.items[0] = c
		heap.Fix(&b.items, 0)
	}
}

// Drain returns the kept candidates in arbitrary order.
func (b *boundedHeap) Drain() []candidate {
	items := b.items
	b.items = nil
	return items
}

// candidateHeap implements heap.Interface as a min-heap by worseThan.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].worseThan(h[j]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
