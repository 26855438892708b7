// Package graph holds the weighted directed graph used by the routing
// engine, stored in CSR (Compressed Sparse Row) form.
package graph

// Graph represents a directed graph in CSR format.
//
// Edges leaving the same node keep the order they were added in, which is
// what makes path tie-breaking reproducible.
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	FirstOut []uint32  // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32  // len: NumEdges; target node for each edge
	Weight   []float64 // len: NumEdges; cost in the metric the graph was built with
	EdgeID   []uint32  // len: NumEdges; id of the network edge each CSR slot came from
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Tail returns the source node of CSR edge e.
func (g *Graph) Tail(e uint32) uint32 {
	lo, hi := uint32(0), g.NumNodes
	for lo < hi {
		mid := (lo + hi) / 2
		if g.FirstOut[mid+1] <= e {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
