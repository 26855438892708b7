package network

import (
	"fmt"
	"math"
	"strings"
)

// metersPerMinutePerKmh converts a km/h speed to meters per minute.
const metersPerMinutePerKmh = 1000.0 / 60.0

// DirectionOptions describe how to turn an undirected line table into a
// directed network.
type DirectionOptions struct {
	// Column holds the direction value of each line.
	Column string
	// Values are the three direction values in the order
	// both ways, forward (digitized direction), backward.
	Values []string

	// At most one cost source may be set.
	SpeedColumn   string   // km/h
	MinuteColumns []string // forward[, backward]
	FlatSpeed     float64  // km/h applied to every edge
}

// OSMDirection returns options for lines produced by the osm package.
func OSMDirection() DirectionOptions {
	return DirectionOptions{
		Column:      "oneway",
		Values:      []string{"B", "F", "T"},
		SpeedColumn: "maxspeed",
	}
}

// NVDBDirection returns options for the Norwegian road database export,
// which carries precomputed drive times per direction.
func NVDBDirection() DirectionOptions {
	return DirectionOptions{
		Column:        "oneway",
		Values:        []string{"B", "FT", "TF"},
		MinuteColumns: []string{"drivetime_fw", "drivetime_bw"},
	}
}

func (o DirectionOptions) validate() error {
	if o.Column == "" {
		return &ConfigError{Field: "column", Reason: "direction column is required"}
	}
	if len(o.Values) != 3 {
		return &ConfigError{Field: "values", Reason: fmt.Sprintf("need exactly 3 direction values (both, forward, backward), got %d", len(o.Values))}
	}
	sources := 0
	if o.SpeedColumn != "" {
		sources++
	}
	if len(o.MinuteColumns) > 0 {
		sources++
	}
	if o.FlatSpeed != 0 {
		sources++
	}
	if sources > 1 {
		return &ConfigError{Field: "cost", Reason: "only one of speed column, minute columns or flat speed may be set"}
	}
	if len(o.MinuteColumns) > 2 {
		return &ConfigError{Field: "minute_columns", Reason: fmt.Sprintf("need 1 or 2 minute columns (forward, backward), got %d", len(o.MinuteColumns))}
	}
	if o.FlatSpeed < 0 || math.IsNaN(o.FlatSpeed) || math.IsInf(o.FlatSpeed, 0) {
		return &ConfigError{Field: "flat_speed", Reason: "must be a positive finite speed"}
	}
	return nil
}

// CheckDirectionValues looks for a both/forward/backward triple that was
// probably passed in the wrong order. It is a text heuristic and only ever
// produces a warning.
func CheckDirectionValues(values []string) *Diagnostic {
	if len(values) != 3 {
		return nil
	}
	b, f, t := strings.ToLower(values[0]), strings.ToLower(values[1]), strings.ToLower(values[2])
	if strings.Contains(t, "b") && strings.Contains(b, "t") && strings.Contains(f, "f") {
		return &Diagnostic{
			Code:    CodeDirectionOrder,
			Message: fmt.Sprintf("direction values should be ordered both ways, forward, backward; got %q, is this correct?", values),
		}
	}
	return nil
}

// MakeDirected returns a directed copy of the network. Lines open in both
// directions become two edges, backward lines are reversed, and lines with
// an unrecognised direction value are dropped. Output edge order is: both
// ways as digitized, both ways reversed, forward, backward reversed.
// The receiver is not modified.
func (n *Network) MakeDirected(opts DirectionOptions) (*Network, []Diagnostic, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	var diags []Diagnostic
	if d := CheckDirectionValues(opts.Values); d != nil {
		diags = append(diags, *d)
	}
	if opts.SpeedColumn == "" && len(opts.MinuteColumns) == 0 && opts.FlatSpeed == 0 {
		diags = append(diags, Diagnostic{
			Code:    CodeNoCostSource,
			Message: "no speed column, minute columns or flat speed given; minutes will not be computed",
		})
	}

	both, fwd, bwd := opts.Values[0], opts.Values[1], opts.Values[2]
	var bothWays, forward, backward []Edge
	unknown := 0
	for _, e := range n.Edges {
		switch e.Attrs.String(opts.Column) {
		case both:
			bothWays = append(bothWays, e)
		case fwd:
			forward = append(forward, e)
		case bwd:
			backward = append(backward, e)
		default:
			unknown++
		}
	}
	if unknown > 0 {
		diags = append(diags, Diagnostic{
			Code:    CodeUnknownDirection,
			Message: fmt.Sprintf("%d edges had a %s value outside %q and were dropped", unknown, opts.Column, opts.Values),
		})
	}

	minFwd, minBwd := "", ""
	switch len(opts.MinuteColumns) {
	case 1:
		minFwd, minBwd = opts.MinuteColumns[0], opts.MinuteColumns[0]
	case 2:
		minFwd, minBwd = opts.MinuteColumns[0], opts.MinuteColumns[1]
	}

	out := make([]Edge, 0, 2*len(bothWays)+len(forward)+len(backward))
	uncostable := 0
	add := func(src []Edge, reverse bool, minuteCol string) {
		for _, e := range cloneEdges(src) {
			if reverse {
				e.Geometry.Reverse()
			}
			if !opts.cost(&e, minuteCol) {
				uncostable++
			}
			out = append(out, e)
		}
	}
	add(bothWays, false, minFwd)
	add(bothWays, true, minBwd)
	add(forward, false, minFwd)
	add(backward, true, minBwd)

	if uncostable > 0 {
		diags = append(diags, Diagnostic{
			Code:    CodeUncostableEdges,
			Message: fmt.Sprintf("%d edges have no usable speed or minutes and cannot be routed by minutes", uncostable),
		})
	}

	return FromEdges(n.Space, true, out), diags, nil
}

// cost sets e.Minutes from the configured cost source. It reports false
// when a cost source is configured but yields nothing usable for e.
func (o DirectionOptions) cost(e *Edge, minuteCol string) bool {
	switch {
	case minuteCol != "":
		e.Minutes = math.NaN()
		m, ok := e.Attrs.Float(minuteCol)
		if !ok || m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return false
		}
		e.Minutes = m
	case o.SpeedColumn != "":
		e.Minutes = math.NaN()
		speed, ok := e.Attrs.Float(o.SpeedColumn)
		if !ok || speed <= 0 || math.IsInf(speed, 0) {
			return false
		}
		e.Minutes = e.Length / (speed * metersPerMinutePerKmh)
	case o.FlatSpeed > 0:
		e.Minutes = e.Length / (o.FlatSpeed * metersPerMinutePerKmh)
	}
	return true
}

// LooksDirected reports whether the edge table appears to already carry
// both directions of two-way roads: at least 10% of edges must share their
// undirected node pair with another edge.
func (n *Network) LooksDirected() bool {
	if len(n.Edges) == 0 {
		return true
	}
	type pair struct{ a, b int }
	seen := make(map[pair]struct{}, len(n.Edges))
	for _, e := range n.Edges {
		a, b := e.Source, e.Target
		if a > b {
			a, b = b, a
		}
		seen[pair{a, b}] = struct{}{}
	}
	return float64(len(n.Edges))*0.9 >= float64(len(seen))
}
