package routing

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/network"
)

// ServiceArea is the part of the network reachable from one origin within
// one break.
type ServiceArea struct {
	Origin      string
	OriginIndex int
	Break       float64
	Missing     bool  // the origin did not snap to the network
	EdgeIDs     []int // ascending
	Geometry    orb.MultiLineString
}

// ServiceAreaResult holds one area per origin and break, origin-major with
// breaks ascending. An area includes every edge of the smaller breaks of
// the same origin.
type ServiceAreaResult struct {
	Metric string
	Breaks []float64
	Areas  []ServiceArea
}

// normalizeBreaks validates, sorts and deduplicates breaks.
func normalizeBreaks(breaks []float64) ([]float64, error) {
	if len(breaks) == 0 {
		return nil, &network.ConfigError{Field: "breaks", Reason: "at least one break is required"}
	}
	out := slices.Clone(breaks)
	for _, b := range out {
		if b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, &network.ConfigError{Field: "breaks", Reason: fmt.Sprintf("break %v is not a finite non-negative cost", b)}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ServiceArea finds, for every origin and break, the edges that can be
// traversed completely within the break. An edge u->v with cost w is in
// the area of break b when dist(u)+w <= b.
func (e *Engine) ServiceArea(ctx context.Context, origins []QueryPoint, breaks []float64) (*ServiceAreaResult, error) {
	breaks, err := normalizeBreaks(breaks)
	if err != nil {
		return nil, err
	}
	cutoff := breaks[len(breaks)-1]

	orig, _ := pair(len(e.net.Nodes), origins, nil)
	snaps := e.snap(orig)

	nb := len(breaks)
	areas := make([]ServiceArea, orig.Len()*nb)

	err = e.forEachOrigin(ctx, orig.Len(), func(ctx context.Context, i int, s *searchState) error {
		for k, b := range breaks {
			areas[i*nb+k] = ServiceArea{
				Origin:      orig.UserID(i),
				OriginIndex: orig.TempIndex(i),
				Break:       b,
				Missing:     len(snaps[i]) == 0,
			}
		}
		if len(snaps[i]) == 0 {
			return nil
		}
		if err := s.run(ctx, e.g, seedsOf(snaps[i]), cutoff); err != nil {
			return err
		}

		// first[k] collects the edges whose first break is breaks[k].
		first := make([][]int, nb)
		for _, u := range s.touched {
			du := s.dist[u]
			start, end := e.g.EdgesFrom(u)
			for slot := start; slot < end; slot++ {
				reached := du + e.g.Weight[slot]
				k, _ := slices.BinarySearch(breaks, reached)
				if k == nb {
					continue
				}
				first[k] = append(first[k], int(e.g.EdgeID[slot]))
			}
		}

		var ids []int
		for k := range breaks {
			ids = append(ids, first[k]...)
			slices.Sort(ids)
			area := &areas[i*nb+k]
			area.EdgeIDs = slices.Clone(ids)
			area.Geometry = e.geometry(area.EdgeIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ServiceAreaResult{Metric: e.rules.Weight(), Breaks: breaks, Areas: areas}, nil
}
