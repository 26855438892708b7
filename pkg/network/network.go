// Package network turns flat line geometries into a node/edge network:
// endpoint extraction, node deduplication and id assignment,
// directionalization and component labelling.
//
// A Network is a pair of arena tables. Edges reference nodes by integer id
// and nothing holds pointers back, so a built Network can be shared
// read-only between goroutines. Structural changes always produce a new
// Network with freshly assigned node ids.
package network

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
)

// Node is a deduplicated graph vertex at a unique coordinate.
type Node struct {
	ID     int
	Point  orb.Point
	Degree int // number of edge endpoints landing on this node
}

// Edge is a directed, costed line between two nodes.
type Edge struct {
	ID       int // position in Network.Edges
	Source   int
	Target   int
	Geometry orb.LineString // runs from Source to Target
	Length   float64        // meters
	Minutes  float64        // NaN when no cost source has been applied
	Attrs    Attrs
}

// HasMinutes reports whether a travel time has been assigned.
func (e *Edge) HasMinutes() bool {
	return !math.IsNaN(e.Minutes)
}

// Network owns the node and edge tables of one build.
type Network struct {
	Nodes    []Node
	Edges    []Edge
	Space    geo.Space
	Directed bool
}

type buildOptions struct {
	space       geo.Space
	dropClosed  bool
	minutesAttr string
}

// Option configures New.
type Option func(*buildOptions)

// WithSpace sets how coordinates are interpreted. Default is geo.Planar.
func WithSpace(s geo.Space) Option {
	return func(o *buildOptions) { o.space = s }
}

// WithDropClosed drops closed lines (loops) with a diagnostic instead of
// rejecting the whole input.
func WithDropClosed() Option {
	return func(o *buildOptions) { o.dropClosed = true }
}

// WithMinutesAttr reads an existing travel time column into Edge.Minutes.
func WithMinutesAttr(name string) Option {
	return func(o *buildOptions) { o.minutesAttr = name }
}

// New builds an undirected-as-given network from lines. Each line becomes
// one edge from its first to its last coordinate.
func New(lines []Line, opts ...Option) (*Network, []Diagnostic, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	var diags []Diagnostic
	edges := make([]Edge, 0, len(lines))
	closed := 0

	for i, l := range lines {
		if _, _, err := Endpoints(i, l.Geometry); err != nil {
			if ge, ok := err.(*GeometryError); ok && ge.Kind == KindRing && o.dropClosed {
				closed++
				continue
			}
			return nil, nil, err
		}

		ls := l.Geometry.(orb.LineString).Clone()
		minutes := math.NaN()
		if o.minutesAttr != "" {
			if m, ok := l.Attrs.Float(o.minutesAttr); ok && m >= 0 {
				minutes = m
			}
		}
		edges = append(edges, Edge{
			Geometry: ls,
			Length:   o.space.Length(ls),
			Minutes:  minutes,
			Attrs:    l.Attrs.Clone(),
		})
	}

	if closed > 0 {
		diags = append(diags, Diagnostic{
			Code:    CodeClosedLinesDropped,
			Message: pluralize(closed, "closed line was", "closed lines were") + " dropped",
		})
	}

	return FromEdges(o.space, false, edges), diags, nil
}

// FromEdges assembles a network from edges whose geometry is already
// oriented, assigning edge ids by position and rebuilding node ids.
func FromEdges(space geo.Space, directed bool, edges []Edge) *Network {
	n := &Network{Edges: edges, Space: space, Directed: directed}
	n.rebuild()
	return n
}

// rebuild deduplicates endpoints into nodes. Every source endpoint is
// visited in edge order, then every target endpoint, and ids are handed
// out in first-seen order over that sequence.
func (n *Network) rebuild() {
	ids := make(map[orb.Point]int, len(n.Edges))
	nodes := make([]Node, 0, len(n.Edges))

	visit := func(p orb.Point) int {
		if id, ok := ids[p]; ok {
			nodes[id].Degree++
			return id
		}
		id := len(nodes)
		ids[p] = id
		nodes = append(nodes, Node{ID: id, Point: p, Degree: 1})
		return id
	}

	for i := range n.Edges {
		e := &n.Edges[i]
		e.ID = i
		e.Source = visit(e.Geometry[0])
	}
	for i := range n.Edges {
		e := &n.Edges[i]
		e.Target = visit(e.Geometry[len(e.Geometry)-1])
	}

	n.Nodes = nodes
}

// Lines returns the edges as input lines, with travel time written to the
// "minutes" attribute when present.
func (n *Network) Lines() []Line {
	lines := make([]Line, len(n.Edges))
	for i, e := range n.Edges {
		attrs := e.Attrs.Clone()
		if e.HasMinutes() {
			if attrs == nil {
				attrs = Attrs{}
			}
			attrs["minutes"] = e.Minutes
		}
		lines[i] = Line{Geometry: e.Geometry.Clone(), Attrs: attrs}
	}
	return lines
}

// cloneEdges deep-copies edges so a derived network never aliases the
// geometry of its parent.
func cloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		e.Geometry = e.Geometry.Clone()
		e.Attrs = e.Attrs.Clone()
		out[i] = e
	}
	return out
}

// WithEdges returns a new network with the same space and direction flag
// and the given edges appended, node ids rebuilt.
func (n *Network) WithEdges(extra []Edge) *Network {
	edges := cloneEdges(n.Edges)
	for _, e := range extra {
		if e.Length == 0 && len(e.Geometry) > 1 {
			e.Length = n.Space.Length(e.Geometry)
		}
		edges = append(edges, e)
	}
	return FromEdges(n.Space, n.Directed, edges)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
