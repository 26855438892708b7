// Package repair fixes common defects in road data before it is routed:
// small gaps between roads that should meet, multi-part lines and overly
// long segments.
package repair

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
)

// HoleAttr marks edges added by CloseHoles.
const HoleAttr = "hole"

// neighbors considered per dead end when connecting to any node.
const holeNeighbors = 10

// HoleOptions configure CloseHoles.
type HoleOptions struct {
	MaxDist float64 // gaps must be shorter than this, in meters
	MinDist float64 // and longer than this

	// DeadendsOnly connects dead ends to other dead ends only. Otherwise a
	// dead end may connect to any node that lies ahead of it.
	DeadendsOnly bool

	// FillMinutes is the travel time given to new edges.
	FillMinutes float64
}

// pointIndex is an R-tree of node ids over projected coordinates.
type pointIndex struct {
	tr    rtree.RTreeG[int]
	proj  geo.Projector
	space geo.Space
	nodes []network.Node
}

func newPointIndex(net *network.Network, keep func(network.Node) bool) *pointIndex {
	var meanLat float64
	for _, n := range net.Nodes {
		meanLat += n.Point.Lat()
	}
	if len(net.Nodes) > 0 {
		meanLat /= float64(len(net.Nodes))
	}
	idx := &pointIndex{
		proj:  geo.NewProjector(net.Space, meanLat),
		space: net.Space,
		nodes: net.Nodes,
	}
	for _, n := range net.Nodes {
		if keep(n) {
			p := idx.proj.Project(n.Point)
			idx.tr.Insert(p, p, n.ID)
		}
	}
	return idx
}

type neighbor struct {
	node int
	dist float64
}

// nearest returns up to k nodes other than self closest to node self,
// ordered by true distance then node id. The index walks projected
// distances, so it keeps going until the projected distance, shrunk by
// the projection's stretch, passes the k-th best true distance.
func (idx *pointIndex) nearest(self, k int) []neighbor {
	p := idx.nodes[self].Point
	target := idx.proj.Project(p)
	stretch := idx.proj.Stretch(p.Lat())
	var out []neighbor
	idx.tr.Nearby(
		rtree.BoxDist[float64, int](target, target, nil),
		func(min, _ [2]float64, id int, _ float64) bool {
			if len(out) == k && math.Hypot(min[0]-target[0], min[1]-target[1]) > out[k-1].dist*stretch {
				return false
			}
			if id == self {
				return true
			}
			nb := neighbor{node: id, dist: idx.space.Distance(p, idx.nodes[id].Point)}
			i := sort.Search(len(out), func(i int) bool {
				if out[i].dist != nb.dist {
					return out[i].dist > nb.dist
				}
				return out[i].node > nb.node
			})
			out = slices.Insert(out, i, nb)
			if len(out) > k {
				out = out[:k]
			}
			return true
		},
	)
	return out
}

// Validate checks the gap bounds and fill time.
func (opts HoleOptions) Validate() error {
	if !(opts.MaxDist > 0) || math.IsInf(opts.MaxDist, 0) {
		return &network.ConfigError{Field: "max_dist", Reason: fmt.Sprintf("must be a positive finite distance, got %v", opts.MaxDist)}
	}
	if !(opts.MinDist >= 0) || opts.MinDist >= opts.MaxDist {
		return &network.ConfigError{Field: "min_dist", Reason: fmt.Sprintf("must be in [0, max_dist), got %v", opts.MinDist)}
	}
	if opts.FillMinutes < 0 || math.IsNaN(opts.FillMinutes) || math.IsInf(opts.FillMinutes, 0) {
		return &network.ConfigError{Field: "fill_minutes", Reason: fmt.Sprintf("must be a finite non-negative time, got %v", opts.FillMinutes)}
	}
	return nil
}

// CloseHoles connects dead ends (nodes with a single edge end) to nearby
// nodes with straight edges when the gap is between MinDist and MaxDist.
// When connecting to any node, the target must also be closer to the dead
// end than to the far end of the dead end's own edge by a quarter of that
// edge's length, so roads are only extended forwards. New edges carry the
// attribute hole=1; on directed networks both directions are added. It
// returns a new network and the number of gaps closed.
func CloseHoles(net *network.Network, opts HoleOptions) (*network.Network, int, error) {
	if err := opts.Validate(); err != nil {
		return nil, 0, err
	}

	var pairs [][2]int
	if opts.DeadendsOnly {
		pairs = deadendPairs(net, opts)
	} else {
		pairs = forwardPairs(net, opts)
	}
	if len(pairs) == 0 {
		return net, 0, nil
	}

	edges := make([]network.Edge, 0, 2*len(pairs))
	add := func(from, to int) {
		a, b := net.Nodes[from].Point, net.Nodes[to].Point
		edges = append(edges, network.Edge{
			Geometry: orb.LineString{a, b},
			Length:   net.Space.Distance(a, b),
			Minutes:  opts.FillMinutes,
			Attrs:    network.Attrs{HoleAttr: 1},
		})
	}
	for _, p := range pairs {
		add(p[0], p[1])
		if net.Directed {
			add(p[1], p[0])
		}
	}
	return net.WithEdges(edges), len(pairs), nil
}

func inGap(d float64, opts HoleOptions) bool {
	return d > opts.MinDist && d < opts.MaxDist
}

// deadendPairs links every dead end to its nearest other dead end. A pair
// found from both sides is only added once.
func deadendPairs(net *network.Network, opts HoleOptions) [][2]int {
	isDeadend := func(n network.Node) bool { return n.Degree == 1 }
	idx := newPointIndex(net, isDeadend)

	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for _, n := range net.Nodes {
		if !isDeadend(n) {
			continue
		}
		nb := idx.nearest(n.ID, 1)
		if len(nb) == 0 || !inGap(nb[0].dist, opts) {
			continue
		}
		key := [2]int{min(n.ID, nb[0].node), max(n.ID, nb[0].node)}
		if seen[key] {
			continue
		}
		seen[key] = true
		pairs = append(pairs, [2]int{n.ID, nb[0].node})
	}
	return pairs
}

// forwardPairs links every dead end to the nearest node ahead of it.
func forwardPairs(net *network.Network, opts HoleOptions) [][2]int {
	idx := newPointIndex(net, func(network.Node) bool { return true })

	type deadend struct {
		node, other int
		length      float64
	}
	var ends []deadend
	for _, e := range net.Edges {
		if net.Nodes[e.Source].Degree == 1 {
			ends = append(ends, deadend{node: e.Source, other: e.Target, length: e.Length})
		}
		if net.Nodes[e.Target].Degree == 1 {
			ends = append(ends, deadend{node: e.Target, other: e.Source, length: e.Length})
		}
	}

	done := make(map[int]bool)
	var pairs [][2]int
	for _, d := range ends {
		if done[d.node] {
			continue
		}
		other := net.Nodes[d.other].Point
		for _, nb := range idx.nearest(d.node, holeNeighbors) {
			if nb.dist >= opts.MaxDist {
				break
			}
			if !inGap(nb.dist, opts) {
				continue
			}
			if nb.dist < net.Space.Distance(other, net.Nodes[nb.node].Point)-0.25*d.length {
				pairs = append(pairs, [2]int{d.node, nb.node})
				done[d.node] = true
				break
			}
		}
	}
	return pairs
}
