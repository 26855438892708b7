// Package routing answers shortest-path queries over a network: cost
// matrices, service areas, routes, k alternative routes and edge
// frequencies. Query points are snapped to nearby nodes per query and never
// become part of the graph.
package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/azybler/roadnet/pkg/graph"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/rules"
)

// ErrNegativeCost is returned when an edge has a negative cost in the
// selected metric.
var ErrNegativeCost = errors.New("negative edge cost")

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWorkers sets how many origins are searched in parallel. Values below
// one mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		e.workers = n
	}
}

// Engine runs queries against one network. Queries may run concurrently
// with each other but not with SetRules.
type Engine struct {
	net     *network.Network
	rules   rules.Rules
	g       *graph.Graph
	snapper *Snapper
	diags   []network.Diagnostic
	logger  *slog.Logger
	workers int

	states *sync.Pool

	mu    sync.Mutex
	snaps map[orb.Point][]Candidate
}

// NewEngine builds the weighted graph of net for the rules' metric.
func NewEngine(net *network.Network, r rules.Rules, opts ...Option) (*Engine, error) {
	e := &Engine{
		net:     net,
		rules:   r,
		logger:  slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		workers: 1,
		snaps:   make(map[orb.Point][]Candidate),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.buildGraph(); err != nil {
		return nil, err
	}
	e.snapper = NewSnapper(net)

	if !net.LooksDirected() {
		e.diags = append(e.diags, network.Diagnostic{
			Code:    network.CodeNotDirected,
			Message: "network does not look directed; edges are only traversed in their digitized direction",
		})
	}
	network.LogDiagnostics(context.Background(), e.logger, e.diags)

	e.logger.Info("engine ready",
		"nodes", len(net.Nodes),
		"edges", len(net.Edges),
		"arcs", e.g.NumEdges,
		"metric", r.Weight(),
	)
	return e, nil
}

// edgeCost returns the cost of e in metric and whether it is usable.
func edgeCost(e *network.Edge, metric string) (float64, bool) {
	var c float64
	switch metric {
	case rules.Meters:
		c = e.Length
	case rules.Minutes:
		c = e.Minutes
	default:
		v, ok := e.Attrs.Float(metric)
		if !ok {
			return 0, false
		}
		c = v
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}

// buildGraph (re)creates the CSR graph and search-state pool.
func (e *Engine) buildGraph() error {
	metric := e.rules.Weight()
	arcs := make([]graph.Arc, 0, len(e.net.Edges))
	skipped := 0
	for i := range e.net.Edges {
		edge := &e.net.Edges[i]
		c, ok := edgeCost(edge, metric)
		if !ok {
			skipped++
			continue
		}
		if c < 0 {
			return fmt.Errorf("edge %d: %w: %s = %v", edge.ID, ErrNegativeCost, metric, c)
		}
		arcs = append(arcs, graph.Arc{
			From:   uint32(edge.Source),
			To:     uint32(edge.Target),
			Weight: c,
			ID:     uint32(edge.ID),
		})
	}

	var diags []network.Diagnostic
	for _, d := range e.diags {
		if d.Code != network.CodeUncostableEdges {
			diags = append(diags, d)
		}
	}
	if skipped > 0 {
		diags = append(diags, network.Diagnostic{
			Code:    network.CodeUncostableEdges,
			Message: fmt.Sprintf("%d edges have no finite %s cost and were left out of the graph", skipped, metric),
		})
	}
	e.diags = diags

	g := graph.Build(uint32(len(e.net.Nodes)), arcs)
	e.g = g
	e.states = &sync.Pool{New: func() any { return newSearchState(g) }}
	return nil
}

// Network returns the network the engine was built from.
func (e *Engine) Network() *network.Network { return e.net }

// Rules returns the current rules.
func (e *Engine) Rules() rules.Rules { return e.rules }

// Diagnostics returns the findings from building the graph.
func (e *Engine) Diagnostics() []network.Diagnostic {
	out := make([]network.Diagnostic, len(e.diags))
	copy(out, e.diags)
	return out
}

// SetRules replaces the rules. Cached snaps are dropped, and the graph is
// rebuilt when the metric changed. Must not be called while queries run.
func (e *Engine) SetRules(r rules.Rules) error {
	old := e.rules
	e.rules = r
	if r.Weight() != old.Weight() {
		if err := e.buildGraph(); err != nil {
			e.rules = old
			if rerr := e.buildGraph(); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
		network.LogDiagnostics(context.Background(), e.logger, e.diags)
	}

	e.mu.Lock()
	clear(e.snaps)
	e.mu.Unlock()
	return nil
}

// Stats describes the engine's graph.
type Stats struct {
	Nodes            int    `json:"nodes"`
	Edges            int    `json:"edges"`
	Arcs             int    `json:"arcs"`
	Metric           string `json:"metric"`
	Directed         bool   `json:"directed"`
	Components       int    `json:"components"`
	LargestComponent int    `json:"largest_component"` // nodes
}

// Stats returns graph statistics. Components are counted over costed arcs
// only.
func (e *Engine) Stats() Stats {
	st := Stats{
		Nodes:    len(e.net.Nodes),
		Edges:    len(e.net.Edges),
		Arcs:     int(e.g.NumEdges),
		Metric:   e.rules.Weight(),
		Directed: e.net.Directed,
	}
	labels, largest := graph.Components(e.g)
	sizes := graph.ComponentSizes(e.g)
	for i, l := range labels {
		if uint32(i) == l {
			st.Components++
		}
		if l == largest {
			st.LargestComponent = int(sizes[i])
		}
	}
	return st
}

// snap returns the candidates of every point in q, using the per-coordinate
// cache.
func (e *Engine) snap(q *QueryPoints) [][]Candidate {
	out := make([][]Candidate, q.Len())
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range q.Points {
		c, ok := e.snaps[p.Point]
		if !ok {
			c = e.snapper.Snap(p.Point, e.rules)
			e.snaps[p.Point] = c
		}
		out[i] = c
	}
	return out
}

func seedsOf(cands []Candidate) []seed {
	seeds := make([]seed, len(cands))
	for i, c := range cands {
		seeds[i] = seed{node: uint32(c.Node), cost: c.Cost}
	}
	return seeds
}

// reach returns the cheapest way into a destination's candidates: the total
// cost including the destination snap cost and the node the path ends at.
// Ties go to the earlier candidate.
func reach(s *searchState, cands []Candidate) (float64, uint32, bool) {
	best := math.Inf(1)
	var node uint32
	for _, c := range cands {
		if d := s.dist[c.Node] + c.Cost; d < best {
			best, node = d, uint32(c.Node)
		}
	}
	return best, node, !math.IsInf(best, 1)
}

// forEachOrigin runs fn for every origin on the worker pool with a pooled
// search state. fn must write its results to slots owned by origin i.
func (e *Engine) forEachOrigin(ctx context.Context, n int, fn func(ctx context.Context, i int, s *searchState) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			s := e.states.Get().(*searchState)
			defer func() {
				s.reset()
				e.states.Put(s)
			}()
			return fn(ctx, i, s)
		})
	}
	return g.Wait()
}

// edgeIDs maps CSR slots to network edge ids.
func (e *Engine) edgeIDs(slots []uint32) []int {
	ids := make([]int, len(slots))
	for i, slot := range slots {
		ids[i] = int(e.g.EdgeID[slot])
	}
	return ids
}

func (e *Engine) geometry(ids []int) orb.MultiLineString {
	mls := make(orb.MultiLineString, len(ids))
	for i, id := range ids {
		mls[i] = e.net.Edges[id].Geometry.Clone()
	}
	return mls
}
