package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient, max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// Components labels every node with its weakly connected component
// (treating the directed graph as undirected). It returns the
// representative of each node and the representative of the largest
// component. Ties between equally large components go to the one whose
// representative is found first in node order.
func Components(g *Graph) (labels []uint32, largest uint32) {
	if g.NumNodes == 0 {
		return nil, 0
	}

	uf := NewUnionFind(g.NumNodes)

	// Union all edges (both directions treated as undirected).
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}

	labels = make([]uint32, g.NumNodes)
	var bestSize uint32
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		labels[i] = root
		if uf.size[root] > bestSize {
			largest = root
			bestSize = uf.size[root]
		}
	}
	return labels, largest
}

// ComponentSizes returns, for every node, the number of nodes in its
// weakly connected component.
func ComponentSizes(g *Graph) []uint32 {
	labels, _ := Components(g)
	counts := make(map[uint32]uint32)
	for _, l := range labels {
		counts[l]++
	}
	sizes := make([]uint32, len(labels))
	for i, l := range labels {
		sizes[i] = counts[l]
	}
	return sizes
}
