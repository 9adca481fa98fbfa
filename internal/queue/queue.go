// Package queue provides a bounded top-k selection queue used by the flat
// index and the hybrid ranking stage.
package queue

// Item is a scored corpus row.
type Item struct {
	Index int32   // Row position in the corpus ordering.
	Score float32 // Higher is better.
}

// TopK keeps the k best items by score. Ties are broken by corpus order:
// the lower index wins. Internally a min-heap so the current worst candidate
// sits at the root.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a selection queue for the k best items.
func NewTopK(k int) *TopK {
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// worse reports whether a ranks below b.
func worse(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index > b.Index
}

// Push offers an item; it is kept only if it beats the current worst.
func (q *TopK) Push(item Item) {
	if q.k <= 0 {
		return
	}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return
	}
	if worse(item, q.items[0]) {
		return
	}
	q.items[0] = item
	q.siftDown(0)
}

// Len returns the number of items currently held.
func (q *TopK) Len() int { return len(q.items) }

// Sorted drains the queue and returns items ordered best-first.
// The queue is empty afterwards.
func (q *TopK) Sorted() []Item {
	out := make([]Item, len(q.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	last := q.items[n-1]
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		if r := l + 1; r < n && worse(q.items[r], q.items[l]) {
			worst = r
		}
		if !worse(q.items[worst], q.items[i]) {
			return
		}
		q.items[i], q.items[worst] = q.items[worst], q.items[i]
		i = worst
	}
}
