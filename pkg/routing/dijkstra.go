package routing

import (
	"context"
	"math"

	"github.com/azybler/roadnet/pkg/graph"
)

const noEdge = math.MaxUint32

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap. Entries with equal
// distance pop in push order.
type MinHeap struct {
	items []PQItem
	seq   uint64
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
	seq  uint64
}

func (a PQItem) less(b PQItem) bool {
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.seq < b.seq
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{Node: node, Dist: dist, seq: h.seq})
	h.seq++
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
	h.seq = 0
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.items[i].less(h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].less(h.items[smallest]) {
			smallest = left
		}
		if right < n && h.items[right].less(h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// seed is a search start: a node reached from the query point at a cost.
type seed struct {
	node uint32
	cost float64
}

// searchState holds per-search state for single-source Dijkstra. It is
// sized for one graph and reused between searches.
type searchState struct {
	dist    []float64
	pred    []uint32 // CSR edge slot used to reach the node, noEdge for seeds
	blocked []bool   // CSR edge slots excluded from the search
	touched []uint32
	pq      MinHeap
}

func newSearchState(g *graph.Graph) *searchState {
	dist := make([]float64, g.NumNodes)
	pred := make([]uint32, g.NumNodes)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noEdge
	}
	return &searchState{
		dist:    dist,
		pred:    pred,
		blocked: make([]bool, g.NumEdges),
		touched: make([]uint32, 0, 1024),
		pq:      MinHeap{items: make([]PQItem, 0, 256)},
	}
}

// reset clears only the touched entries for fast reuse. Blocked edges are
// cleared by the caller that set them.
func (s *searchState) reset() {
	for _, node := range s.touched {
		s.dist[node] = math.Inf(1)
		s.pred[node] = noEdge
	}
	s.touched = s.touched[:0]
	s.pq.Reset()
}

func (s *searchState) touch(node uint32, dist float64, pred uint32) {
	if math.IsInf(s.dist[node], 1) {
		s.touched = append(s.touched, node)
	}
	s.dist[node] = dist
	s.pred[node] = pred
}

// run performs Dijkstra from seeds, settling nodes up to cutoff. Seeds are
// applied in order and a later seed only replaces an earlier one when it
// is strictly cheaper. Predecessors likewise change only on strict
// improvement, so equal-cost paths resolve to the one found first.
func (s *searchState) run(ctx context.Context, g *graph.Graph, seeds []seed, cutoff float64) error {
	for _, sd := range seeds {
		if sd.cost < s.dist[sd.node] && sd.cost <= cutoff {
			s.touch(sd.node, sd.cost, noEdge)
			s.pq.Push(sd.node, sd.cost)
		}
	}

	iterations := 0
	for s.pq.Len() > 0 {
		// Check context cancellation periodically.
		iterations++
		if iterations%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		item := s.pq.Pop()
		u, d := item.Node, item.Dist
		if d > s.dist[u] {
			continue // stale entry
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			if s.blocked[e] {
				continue
			}
			v := g.Head[e]
			nd := d + g.Weight[e]
			if nd < s.dist[v] && nd <= cutoff {
				s.touch(v, nd, e)
				s.pq.Push(v, nd)
			}
		}
	}
	return nil
}

// path returns the CSR edge slots leading to node, in travel order.
func (s *searchState) path(g *graph.Graph, node uint32) []uint32 {
	var rev []uint32
	for s.pred[node] != noEdge {
		e := s.pred[node]
		rev = append(rev, e)
		node = g.Tail(e)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
