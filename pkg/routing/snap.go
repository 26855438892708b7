package routing

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/rules"
)

// Candidate is a node a query point snaps to.
type Candidate struct {
	Node int
	Dist float64 // meters from the query point
	Cost float64 // Dist converted to the rules' metric
}

// Snapper finds the nodes near an arbitrary point using an R-tree over
// projected node coordinates.
type Snapper struct {
	tr    rtree.RTreeG[int]
	proj  geo.Projector
	space geo.Space
	nodes []network.Node
}

// NewSnapper indexes every node of net.
func NewSnapper(net *network.Network) *Snapper {
	var meanLat float64
	if net.Space == geo.Spherical && len(net.Nodes) > 0 {
		for _, n := range net.Nodes {
			meanLat += n.Point.Lat()
		}
		meanLat /= float64(len(net.Nodes))
	}

	s := &Snapper{
		proj:  geo.NewProjector(net.Space, meanLat),
		space: net.Space,
		nodes: net.Nodes,
	}
	for _, n := range net.Nodes {
		p := s.proj.Project(n.Point)
		s.tr.Insert(p, p, n.ID)
	}
	return s
}

// Snap returns the candidate nodes for p under r, sorted by distance and
// then node id. Only the r.NeighborCap() nearest nodes are considered,
// which bounds the work per point at the price of possibly missing a
// qualifying node on very dense networks. An empty result means p is
// farther than the search tolerance from every node. The projected search
// radius is widened by the projection's stretch at p so no node within
// the tolerance is cut off.
func (s *Snapper) Snap(p orb.Point, r rules.Rules) []Candidate {
	target := s.proj.Project(p)
	limit := r.SearchTolerance() * s.proj.Stretch(p.Lat())

	var cands []Candidate
	seen := 0
	s.tr.Nearby(
		rtree.BoxDist[float64, int](target, target, nil),
		func(min, _ [2]float64, id int, _ float64) bool {
			if math.Hypot(min[0]-target[0], min[1]-target[1]) > limit {
				return false
			}
			seen++
			if d := s.space.Distance(p, s.nodes[id].Point); d <= r.SearchTolerance() {
				cands = append(cands, Candidate{Node: id, Dist: d})
			}
			return seen < r.NeighborCap()
		},
	)
	if len(cands) == 0 {
		return nil
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Dist != cands[j].Dist {
			return cands[i].Dist < cands[j].Dist
		}
		return cands[i].Node < cands[j].Node
	})

	nearest := cands[0].Dist
	kept := cands[:0]
	for _, c := range cands {
		if !r.Keep(c.Dist, nearest) {
			break
		}
		c.Cost = r.SnapCost(c.Dist)
		kept = append(kept, c)
	}
	return kept
}
