// Package merger combines per-terminology annotation results. Each
// terminology pass yields an entity list that is already sorted by
// position, so combining them is a k-way merge.
package merger

import (
	"container/heap"

	doc "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
)

// Merge flattens the per-terminology entity lists of one sentence into a
// single (Start, End)-ordered list. Inputs must each be position-sorted;
// offset ties resolve in list order, so the output is deterministic for
// a fixed terminology order.
func Merge(lists [][]doc.Entity) []doc.Entity {
	nonEmpty := lists[:0:0]
	total := 0
	for _, l := range lists {
		if len(l) > 0 {
			nonEmpty = append(nonEmpty, l)
			total += len(l)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return nil
	case 1:
		out := make([]doc.Entity, len(nonEmpty[0]))
		copy(out, nonEmpty[0])
		return out
	}

	h := &cursorHeap{lists: nonEmpty}
	for i := range nonEmpty {
		h.cursors = append(h.cursors, cursor{list: i})
	}
	heap.Init(h)

	out := make([]doc.Entity, 0, total)
	for h.Len() > 0 {
		c := h.cursors[0]
		out = append(out, nonEmpty[c.list][c.pos])
		if c.pos+1 < len(nonEmpty[c.list]) {
			h.cursors[0].pos++
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return out
}

// cursor points at the next unconsumed entity of one input list.
type cursor struct {
	list int
	pos  int
}

type cursorHeap struct {
	lists   [][]doc.Entity
	cursors []cursor
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a := h.lists[h.cursors[i].list][h.cursors[i].pos]
	b := h.lists[h.cursors[j].list][h.cursors[j].pos]
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	return h.cursors[i].list < h.cursors[j].list
}

func (h *cursorHeap) Swap(i, j int) {
	h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i]
}

func (h *cursorHeap) Push(x interface{}) {
	h.cursors = append(h.cursors, x.(cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := h.cursors
	n := len(old)
	item := old[n-1]
	h.cursors = old[:n-1]
	return item
}
