// Package rules holds the parameters that control how queries are snapped
// to and costed on a network.
package rules

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is wrapped by every validation error from New and With.
var ErrInvalid = errors.New("invalid rules")

// Metric names with built-in meaning. Any other name is read from a
// numeric edge attribute of the same name.
const (
	Meters  = "meters"
	Minutes = "minutes"
)

// Defaults.
const (
	DefaultSearchTolerance = 250.0
	DefaultSearchFactor    = 10.0
	DefaultCostToNodes     = 5.0
	DefaultNeighborCap     = 50
)

// metersPerMinutePerKmh matches the conversion used when directionalizing.
const metersPerMinutePerKmh = 1000.0 / 60.0

// Rules is an immutable set of analysis parameters. Two Rules with the same
// settings compare equal with ==.
type Rules struct {
	weight          string
	searchTolerance float64
	searchFactor    float64
	costToNodes     float64
	neighborCap     int
}

// Option modifies a Rules value under construction.
type Option func(*Rules)

// WithSearchTolerance sets the largest distance, in meters, a query point
// may be from the node it snaps to.
func WithSearchTolerance(meters float64) Option {
	return func(r *Rules) { r.searchTolerance = meters }
}

// WithSearchFactor widens the set of snap candidates beyond the nearest:
// a node at distance d is kept when d <= nearest*(1+f/100)+f.
func WithSearchFactor(f float64) Option {
	return func(r *Rules) { r.searchFactor = f }
}

// WithCostToNodes sets the speed in km/h used to cost the straight walk
// from a query point to its snap node. Zero makes snapping free.
func WithCostToNodes(kmh float64) Option {
	return func(r *Rules) { r.costToNodes = kmh }
}

// WithNeighborCap bounds how many nearest nodes are considered per point.
func WithNeighborCap(k int) Option {
	return func(r *Rules) { r.neighborCap = k }
}

// New returns rules for the given weight metric with defaults applied.
func New(weight string, opts ...Option) (Rules, error) {
	r := Rules{
		weight:          weight,
		searchTolerance: DefaultSearchTolerance,
		searchFactor:    DefaultSearchFactor,
		costToNodes:     DefaultCostToNodes,
		neighborCap:     DefaultNeighborCap,
	}
	return r.With(opts...)
}

// MustNew is like New but panics on invalid input.
func MustNew(weight string, opts ...Option) Rules {
	r, err := New(weight, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// With returns a copy of r with opts applied.
func (r Rules) With(opts ...Option) (Rules, error) {
	for _, opt := range opts {
		opt(&r)
	}
	if err := r.validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r Rules) validate() error {
	if r.weight == "" {
		return fmt.Errorf("%w: weight is required", ErrInvalid)
	}
	if !finiteNonNeg(r.searchTolerance) {
		return fmt.Errorf("%w: search tolerance must be a finite non-negative number, got %v", ErrInvalid, r.searchTolerance)
	}
	if !finiteNonNeg(r.searchFactor) {
		return fmt.Errorf("%w: search factor must be a finite non-negative number, got %v", ErrInvalid, r.searchFactor)
	}
	if !finiteNonNeg(r.costToNodes) {
		return fmt.Errorf("%w: cost to nodes must be a finite non-negative speed, got %v", ErrInvalid, r.costToNodes)
	}
	if r.neighborCap < 1 {
		return fmt.Errorf("%w: neighbor cap must be at least 1, got %d", ErrInvalid, r.neighborCap)
	}
	return nil
}

func finiteNonNeg(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (r Rules) Weight() string           { return r.weight }
func (r Rules) SearchTolerance() float64 { return r.searchTolerance }
func (r Rules) SearchFactor() float64    { return r.searchFactor }
func (r Rules) CostToNodes() float64     { return r.costToNodes }
func (r Rules) NeighborCap() int         { return r.neighborCap }

// SnapCost converts a snap distance in meters to the rules' metric.
// For minutes it is the walk time at CostToNodes km/h; for every other
// metric the distance passes through unchanged.
func (r Rules) SnapCost(meters float64) float64 {
	if r.costToNodes == 0 {
		return 0
	}
	if r.weight == Minutes {
		return meters / (metersPerMinutePerKmh * r.costToNodes)
	}
	return meters
}

// Keep reports whether a candidate at dist survives the search factor,
// given the nearest candidate at nearest.
func (r Rules) Keep(dist, nearest float64) bool {
	return dist <= nearest*(1+r.searchFactor/100)+r.searchFactor
}

func (r Rules) String() string {
	return fmt.Sprintf("weight=%s tolerance=%g factor=%g cost_to_nodes=%g neighbors=%d",
		r.weight, r.searchTolerance, r.searchFactor, r.costToNodes, r.neighborCap)
}
