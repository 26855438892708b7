package routing

import (
	"context"
	"math"

	"github.com/paulmach/orb"
)

// ODRow is the cost of one origin/destination pair.
type ODRow struct {
	Origin           string
	Destination      string
	OriginIndex      int // temporary index of the origin
	DestinationIndex int // temporary index of the destination
	Cost             float64
	Line             orb.LineString // straight origin-destination line, with WithLines
}

// Missing reports whether the pair could not be connected.
func (r ODRow) Missing() bool { return math.IsNaN(r.Cost) }

// ODResult is a full origin/destination cost matrix in origin-major order.
type ODResult struct {
	Metric string
	Rows   []ODRow

	// Unreached counterparts per point, indexed by position in the input.
	OriginMissing      []int
	DestinationMissing []int

	// The same counts summed per user id.
	MissingByOrigin      map[string]int
	MissingByDestination map[string]int
}

// MissingRows returns the number of pairs without a cost.
func (r *ODResult) MissingRows() int {
	n := 0
	for _, row := range r.Rows {
		if row.Missing() {
			n++
		}
	}
	return n
}

type odOptions struct {
	lines bool
}

// ODOption configures ODCostMatrix.
type ODOption func(*odOptions)

// WithLines adds a straight line from origin to destination to every row.
func WithLines() ODOption {
	return func(o *odOptions) { o.lines = true }
}

// ODCostMatrix computes the cost from every origin to every destination.
// Pairs that cannot be connected, including points that fail to snap, get
// a NaN cost. An origin and destination at the same coordinate cost zero
// when the point snaps to the network.
func (e *Engine) ODCostMatrix(ctx context.Context, origins, destinations []QueryPoint, opts ...ODOption) (*ODResult, error) {
	var o odOptions
	for _, opt := range opts {
		opt(&o)
	}

	orig, dest := pair(len(e.net.Nodes), origins, destinations)
	origSnaps := e.snap(orig)
	destSnaps := e.snap(dest)

	nd := dest.Len()
	rows := make([]ODRow, orig.Len()*nd)

	err := e.forEachOrigin(ctx, orig.Len(), func(ctx context.Context, i int, s *searchState) error {
		if len(origSnaps[i]) > 0 {
			if err := s.run(ctx, e.g, seedsOf(origSnaps[i]), math.Inf(1)); err != nil {
				return err
			}
		}
		for j := 0; j < nd; j++ {
			cost := math.NaN()
			switch {
			case len(origSnaps[i]) == 0:
			case origins[i].Point.Equal(destinations[j].Point):
				cost = 0
			default:
				if c, _, ok := reach(s, destSnaps[j]); ok {
					cost = c
				}
			}
			row := ODRow{
				Origin:           orig.UserID(i),
				Destination:      dest.UserID(j),
				OriginIndex:      orig.TempIndex(i),
				DestinationIndex: dest.TempIndex(j),
				Cost:             cost,
			}
			if o.lines {
				row.Line = orb.LineString{origins[i].Point, destinations[j].Point}
			}
			rows[i*nd+j] = row
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &ODResult{
		Metric:               e.rules.Weight(),
		Rows:                 rows,
		OriginMissing:        make([]int, orig.Len()),
		DestinationMissing:   make([]int, nd),
		MissingByOrigin:      make(map[string]int),
		MissingByDestination: make(map[string]int),
	}
	for i := 0; i < orig.Len(); i++ {
		res.MissingByOrigin[orig.UserID(i)] = 0
	}
	for j := 0; j < nd; j++ {
		res.MissingByDestination[dest.UserID(j)] = 0
	}
	missing := 0
	for k, row := range rows {
		if !row.Missing() {
			continue
		}
		missing++
		i, j := k/nd, k%nd
		res.OriginMissing[i]++
		res.DestinationMissing[j]++
		res.MissingByOrigin[row.Origin]++
		res.MissingByDestination[row.Destination]++
	}

	if missing > 0 {
		e.logger.InfoContext(ctx, "od cost matrix has missing pairs",
			"missing", missing,
			"pairs", len(rows),
		)
	}
	return res, nil
}
