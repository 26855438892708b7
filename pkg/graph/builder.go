package graph

import "sort"

// Arc is one directed, weighted edge handed to Build.
type Arc struct {
	From   uint32
	To     uint32
	Weight float64
	ID     uint32 // caller's edge id, carried into Graph.EdgeID
}

// Build creates a CSR Graph with numNodes nodes from arcs. Arcs leaving the
// same node keep their relative input order.
func Build(numNodes uint32, arcs []Arc) *Graph {
	if numNodes == 0 {
		return &Graph{FirstOut: []uint32{0}}
	}

	sorted := make([]Arc, len(arcs))
	copy(sorted, arcs)

	// Sort edges by source node only; stability preserves insertion order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].From < sorted[j].From
	})

	numEdges := uint32(len(sorted))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	weight := make([]float64, numEdges)
	edgeID := make([]uint32, numEdges)

	for i, a := range sorted {
		head[i] = a.To
		weight[i] = a.Weight
		edgeID[i] = a.ID
	}

	// Build FirstOut via counting.
	for _, a := range sorted {
		firstOut[a.From+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	return &Graph{
		NumNodes: numNodes,
		NumEdges: numEdges,
		FirstOut: firstOut,
		Head:     head,
		Weight:   weight,
		EdgeID:   edgeID,
	}
}
