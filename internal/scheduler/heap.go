package scheduler

import (
	"container/heap"
	"time"
)

// fireItem is one entry in the timer-wheel priority queue.
type fireItem struct {
	taskID string
	fireAt time.Time
	index  int
}

// fireHeap is a container/heap.Interface ordering tasks by their next fire
// instant (spec section 4.7: "a bounded priority queue ordered by
// nextFireInstant").
type fireHeap []*fireItem

func (h fireHeap) Len() int { return len(h) }

func (h fireHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }

func (h fireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fireHeap) Push(x any) {
	item := x.(*fireItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *fireHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]

	return item
}

var _ heap.Interface = (*fireHeap)(nil)
