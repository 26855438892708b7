// Package osm reads car-accessible roads from OpenStreetMap PBF extracts
// and turns them into network lines in lon/lat coordinates.
package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/azybler/roadnet/pkg/network"
)

// Line attributes written by Parse.
const (
	AttrOneway   = "oneway"   // "B", "F" or "T"
	AttrMaxSpeed = "maxspeed" // km/h
	AttrHighway  = "highway"
	AttrWayID    = "osm_way_id"
	AttrName     = "name"
)

// carHighways lists highway tag values accessible by car, with the speed
// in km/h assumed when a way has no usable maxspeed tag.
var carHighways = map[string]float64{
	"motorway":       110,
	"motorway_link":  60,
	"trunk":          90,
	"trunk_link":     50,
	"primary":        70,
	"primary_link":   50,
	"secondary":      60,
	"secondary_link": 40,
	"tertiary":       50,
	"tertiary_link":  40,
	"unclassified":   40,
	"residential":    30,
	"living_street":  10,
	"service":        20,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if _, ok := carHighways[hw]; !ok {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	// Skip restricted access.
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	return true
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	// Default: bidirectional.
	forward = true
	backward = true

	hw := tags.Find("highway")

	// Implied oneway for motorways and roundabouts.
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	// Explicit oneway tag overrides.
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		// Time-dependent, skip entirely.
		forward = false
		backward = false
	}

	return forward, backward
}

// onewayValue encodes direction flags the way network.OSMDirection expects.
func onewayValue(forward, backward bool) string {
	switch {
	case forward && backward:
		return "B"
	case forward:
		return "F"
	default:
		return "T"
	}
}

// maxSpeed returns the way's speed limit in km/h, falling back to the
// highway default when the tag is missing or not numeric.
func maxSpeed(tags osm.Tags) float64 {
	raw := strings.TrimSpace(tags.Find("maxspeed"))
	factor := 1.0
	if v, ok := strings.CutSuffix(raw, "mph"); ok {
		raw, factor = strings.TrimSpace(v), 1.609344
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
		return v * factor
	}
	return carHighways[tags.Find("highway")]
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	ID      osm.WayID
	NodeIDs []osm.NodeID
	Attrs   network.Attrs
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only segments with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox   BBox         // if non-zero, filter segments to this bounding box
	Logger *slog.Logger // progress logging; nil discards
}

// ParseResult holds the lines read from an extract.
type ParseResult struct {
	Lines          []network.Line
	Ways           int // car-accessible ways kept
	SkippedMissing int // segments dropped for missing node coordinates
	SkippedBBox    int // segments dropped by the bounding box
}

// Parse reads an OSM PBF file and returns one line per way section between
// junctions. The reader is consumed twice (seeks back to start for the
// second pass), so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opt ParseOptions) (*ParseResult, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}

	// Pass 1: Scan ways to collect referenced node IDs and way info.
	refs := make(map[osm.NodeID]int)
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		ids := w.Nodes.NodeIDs()
		for i, id := range ids {
			refs[id]++
			// Way ends always split.
			if i == 0 || i == len(ids)-1 {
				refs[id]++
			}
		}

		attrs := network.Attrs{
			AttrOneway:   onewayValue(fwd, bwd),
			AttrMaxSpeed: maxSpeed(w.Tags),
			AttrHighway:  w.Tags.Find("highway"),
			AttrWayID:    int64(w.ID),
		}
		if name := w.Tags.Find("name"); name != "" {
			attrs[AttrName] = name
		}
		ways = append(ways, wayInfo{ID: w.ID, NodeIDs: ids, Attrs: attrs})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	logger.InfoContext(ctx, "pass 1 complete", "ways", len(ways), "referenced_nodes", len(refs))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	coords := make(map[osm.NodeID]orb.Point, len(refs))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := refs[n.ID]; !needed {
			continue
		}
		coords[n.ID] = n.Point()
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	logger.InfoContext(ctx, "pass 2 complete", "node_coordinates", len(coords))

	res := &ParseResult{Ways: len(ways)}
	b := builder{refs: refs, coords: coords, bbox: opt.BBox}
	for _, w := range ways {
		res.Lines = append(res.Lines, b.lines(w)...)
	}
	res.SkippedMissing, res.SkippedBBox = b.missing, b.outside

	if res.SkippedMissing > 0 {
		logger.WarnContext(ctx, "skipped segments with missing node coordinates", "segments", res.SkippedMissing)
	}
	if res.SkippedBBox > 0 {
		logger.InfoContext(ctx, "filtered segments outside bounding box", "segments", res.SkippedBBox)
	}
	logger.InfoContext(ctx, "built lines", "lines", len(res.Lines))

	return res, nil
}

// builder cuts ways into lines.
type builder struct {
	refs   map[osm.NodeID]int // >1 means the node is a junction or a way end
	coords map[osm.NodeID]orb.Point
	bbox   BBox

	missing int
	outside int
}

// lines splits a way at junctions and at segments that cannot be used.
// Pieces that would start and end on the same node are split in two.
func (b *builder) lines(w wayInfo) []network.Line {
	var (
		out []network.Line
		cur []osm.NodeID
	)
	flush := func() {
		for _, piece := range splitClosed(cur) {
			ls := make(orb.LineString, len(piece))
			for i, id := range piece {
				ls[i] = b.coords[id]
			}
			out = append(out, network.Line{Geometry: ls, Attrs: w.Attrs.Clone()})
		}
		cur = nil
	}

	for i := 0; i+1 < len(w.NodeIDs); i++ {
		from, to := w.NodeIDs[i], w.NodeIDs[i+1]
		if from == to {
			continue
		}
		pf, okf := b.coords[from]
		pt, okt := b.coords[to]
		if !okf || !okt {
			b.missing++
			flush()
			continue
		}
		if !b.bbox.IsZero() && (!b.bbox.Contains(pf.Lat(), pf.Lon()) || !b.bbox.Contains(pt.Lat(), pt.Lon())) {
			b.outside++
			flush()
			continue
		}
		if len(cur) == 0 {
			cur = append(cur, from)
		}
		cur = append(cur, to)
		if b.refs[to] > 1 {
			flush()
		}
	}
	flush()
	return out
}

// splitClosed returns the piece as is, or split in two halves when it is a
// loop. Pieces with fewer than two nodes are dropped.
func splitClosed(ids []osm.NodeID) [][]osm.NodeID {
	if len(ids) < 2 {
		return nil
	}
	if ids[0] != ids[len(ids)-1] {
		return [][]osm.NodeID{ids}
	}
	if len(ids) < 3 {
		return nil // degenerate A-A
	}
	mid := len(ids) / 2
	return [][]osm.NodeID{ids[:mid+1], ids[mid:]}
}
