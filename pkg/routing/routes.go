package routing

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/network"
)

// Route is one path between an origin and a destination.
type Route struct {
	Origin           string
	Destination      string
	OriginIndex      int
	DestinationIndex int
	Rank             int // 1 for the shortest, counting up for k-routes
	Cost             float64
	EdgeIDs          []int
	Geometry         orb.MultiLineString
	Missing          bool
}

// pathTo reads the best path into a destination from a finished search.
func (e *Engine) pathTo(s *searchState, cands []Candidate) (float64, []uint32, bool) {
	cost, node, ok := reach(s, cands)
	if !ok {
		return math.NaN(), nil, false
	}
	return cost, s.path(e.g, node), true
}

func (e *Engine) route(orig, dest *QueryPoints, i, j int) Route {
	return Route{
		Origin:           orig.UserID(i),
		Destination:      dest.UserID(j),
		OriginIndex:      orig.TempIndex(i),
		DestinationIndex: dest.TempIndex(j),
		Rank:             1,
		Cost:             math.NaN(),
		Missing:          true,
	}
}

// Routes returns the shortest route for every origin/destination pair, in
// origin-major order. Pairs without a route are flagged Missing.
func (e *Engine) Routes(ctx context.Context, origins, destinations []QueryPoint) ([]Route, error) {
	orig, dest := pair(len(e.net.Nodes), origins, destinations)
	origSnaps := e.snap(orig)
	destSnaps := e.snap(dest)

	nd := dest.Len()
	routes := make([]Route, orig.Len()*nd)

	err := e.forEachOrigin(ctx, orig.Len(), func(ctx context.Context, i int, s *searchState) error {
		if len(origSnaps[i]) > 0 {
			if err := s.run(ctx, e.g, seedsOf(origSnaps[i]), math.Inf(1)); err != nil {
				return err
			}
		}
		for j := 0; j < nd; j++ {
			r := e.route(orig, dest, i, j)
			switch {
			case len(origSnaps[i]) == 0:
			case origins[i].Point.Equal(destinations[j].Point):
				r.Cost, r.Missing = 0, false
			default:
				if cost, slots, ok := e.pathTo(s, destSnaps[j]); ok {
					r.Cost, r.Missing = cost, false
					r.EdgeIDs = e.edgeIDs(slots)
					r.Geometry = e.geometry(r.EdgeIDs)
				}
			}
			routes[i*nd+j] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routes, nil
}

// middle returns the range of a path of n edges to block after it has
// been found: round(n*p/100) edges centred on the path, at least one when
// p > 0, and never the first or last edge of paths with three or more
// edges.
func middle(n int, p float64) (int, int) {
	if n == 0 || p == 0 {
		return 0, 0
	}
	if n < 3 {
		return 0, n
	}
	m := int(math.Round(float64(n) * p / 100))
	m = max(m, 1)
	m = min(m, n-2)
	start := (n - m) / 2
	return start, start + m
}

// KRoutes returns up to k routes per origin/destination pair. After each
// route, the middle dropMiddlePercent of its edges is blocked for the
// following searches of that pair, pushing them onto different roads.
// Searching stops early when no route is left or a route repeats. Pairs
// without any route get a single Missing entry.
func (e *Engine) KRoutes(ctx context.Context, origins, destinations []QueryPoint, k int, dropMiddlePercent float64) ([]Route, error) {
	if k < 1 {
		return nil, &network.ConfigError{Field: "k", Reason: fmt.Sprintf("must be at least 1, got %d", k)}
	}
	if !(dropMiddlePercent >= 0 && dropMiddlePercent < 100) {
		return nil, &network.ConfigError{Field: "drop_middle_percent", Reason: fmt.Sprintf("must be in [0, 100), got %v", dropMiddlePercent)}
	}

	orig, dest := pair(len(e.net.Nodes), origins, destinations)
	origSnaps := e.snap(orig)
	destSnaps := e.snap(dest)

	nd := dest.Len()
	perPair := make([][]Route, orig.Len()*nd)

	err := e.forEachOrigin(ctx, orig.Len(), func(ctx context.Context, i int, s *searchState) error {
		var blocked []uint32
		defer func() {
			for _, slot := range blocked {
				s.blocked[slot] = false
			}
		}()

		for j := 0; j < nd; j++ {
			base := e.route(orig, dest, i, j)
			if len(origSnaps[i]) > 0 && origins[i].Point.Equal(destinations[j].Point) {
				base.Cost, base.Missing = 0, false
				perPair[i*nd+j] = []Route{base}
				continue
			}

			var found []Route
			for rank := 1; rank <= k && len(origSnaps[i]) > 0; rank++ {
				s.reset()
				if err := s.run(ctx, e.g, seedsOf(origSnaps[i]), math.Inf(1)); err != nil {
					return err
				}
				cost, slots, ok := e.pathTo(s, destSnaps[j])
				if !ok {
					break
				}
				ids := e.edgeIDs(slots)
				if slices.ContainsFunc(found, func(r Route) bool { return slices.Equal(r.EdgeIDs, ids) }) {
					break
				}
				r := base
				r.Rank, r.Cost, r.Missing = rank, cost, false
				r.EdgeIDs = ids
				r.Geometry = e.geometry(ids)
				found = append(found, r)

				lo, hi := middle(len(slots), dropMiddlePercent)
				for _, slot := range slots[lo:hi] {
					if !s.blocked[slot] {
						s.blocked[slot] = true
						blocked = append(blocked, slot)
					}
				}
			}

			for _, slot := range blocked {
				s.blocked[slot] = false
			}
			blocked = blocked[:0]

			if len(found) == 0 {
				found = []Route{base}
			}
			perPair[i*nd+j] = found
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var routes []Route
	for _, rs := range perPair {
		routes = append(routes, rs...)
	}
	return routes, nil
}

// EdgeFrequency counts how many routes use an edge.
type EdgeFrequency struct {
	EdgeID   int
	N        int
	Geometry orb.LineString
}

// FrequencyResult holds the used edges ordered by edge id.
type FrequencyResult struct {
	Metric  string
	Edges   []EdgeFrequency
	Pairs   int // origin/destination pairs considered
	Missing int // pairs without a route
}

// RouteFrequencies routes every origin/destination pair and counts how
// often each edge is used. The counts sum to the total number of route
// edges over all pairs.
func (e *Engine) RouteFrequencies(ctx context.Context, origins, destinations []QueryPoint) (*FrequencyResult, error) {
	orig, dest := pair(len(e.net.Nodes), origins, destinations)
	origSnaps := e.snap(orig)
	destSnaps := e.snap(dest)

	nd := dest.Len()
	counts := make([]map[int]int, orig.Len())
	missing := make([]int, orig.Len())

	err := e.forEachOrigin(ctx, orig.Len(), func(ctx context.Context, i int, s *searchState) error {
		local := make(map[int]int)
		counts[i] = local
		if len(origSnaps[i]) == 0 {
			missing[i] = nd
			return nil
		}
		if err := s.run(ctx, e.g, seedsOf(origSnaps[i]), math.Inf(1)); err != nil {
			return err
		}
		for j := 0; j < nd; j++ {
			if origins[i].Point.Equal(destinations[j].Point) {
				continue
			}
			_, slots, ok := e.pathTo(s, destSnaps[j])
			if !ok {
				missing[i]++
				continue
			}
			for _, slot := range slots {
				local[int(e.g.EdgeID[slot])]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := make(map[int]int)
	res := &FrequencyResult{Metric: e.rules.Weight(), Pairs: orig.Len() * nd}
	for i, local := range counts {
		for id, n := range local {
			total[id] += n
		}
		res.Missing += missing[i]
	}

	ids := make([]int, 0, len(total))
	for id := range total {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	res.Edges = make([]EdgeFrequency, len(ids))
	for k, id := range ids {
		res.Edges[k] = EdgeFrequency{
			EdgeID:   id,
			N:        total[id],
			Geometry: e.net.Edges[id].Geometry.Clone(),
		}
	}
	return res, nil
}
