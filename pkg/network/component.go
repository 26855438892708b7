package network

import "github.com/azybler/roadnet/pkg/graph"

func (n *Network) unionFind() *graph.UnionFind {
	uf := graph.NewUnionFind(uint32(len(n.Nodes)))
	for _, e := range n.Edges {
		uf.Union(uint32(e.Source), uint32(e.Target))
	}
	return uf
}

// ComponentSizes returns, per edge, the number of nodes in the weakly
// connected component the edge belongs to.
func (n *Network) ComponentSizes() []int {
	uf := n.unionFind()
	sizes := make([]int, len(n.Edges))
	for i, e := range n.Edges {
		sizes[i] = int(uf.Size(uint32(e.Source)))
	}
	return sizes
}

// LargestComponent flags the edges of the largest weakly connected
// component. Ties go to the component containing the lowest node id.
func (n *Network) LargestComponent() []bool {
	uf := n.unionFind()
	var (
		best     uint32
		bestSize uint32
	)
	for i := range n.Nodes {
		root := uf.Find(uint32(i))
		if s := uf.Size(root); s > bestSize {
			best, bestSize = root, s
		}
	}
	flags := make([]bool, len(n.Edges))
	for i, e := range n.Edges {
		flags[i] = uf.Find(uint32(e.Source)) == best
	}
	return flags
}

// RemoveIsolated returns a network holding only the largest component,
// with node ids rebuilt.
func (n *Network) RemoveIsolated() *Network {
	keep := n.LargestComponent()
	edges := make([]Edge, 0, len(n.Edges))
	for i, e := range n.Edges {
		if keep[i] {
			edges = append(edges, e)
		}
	}
	return FromEdges(n.Space, n.Directed, cloneEdges(edges))
}
