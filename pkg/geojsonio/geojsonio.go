// Package geojsonio reads network lines and query points from GeoJSON and
// writes analysis results as GeoJSON feature collections.
package geojsonio

import (
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/routing"
)

func readCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}

// ReadLines reads every feature of a FeatureCollection as a line with its
// properties as attributes. Geometry types are not checked here; building
// a network rejects anything that is not a single LineString.
func ReadLines(r io.Reader) ([]network.Line, error) {
	fc, err := readCollection(r)
	if err != nil {
		return nil, err
	}
	lines := make([]network.Line, len(fc.Features))
	for i, f := range fc.Features {
		lines[i] = network.Line{Geometry: f.Geometry, Attrs: network.Attrs(f.Properties.Clone())}
	}
	return lines, nil
}

// ReadPoints reads Point features as query points. The point id is taken
// from idProperty when set, else from the feature id, else left empty so
// results use the point's position.
func ReadPoints(r io.Reader, idProperty string) ([]routing.QueryPoint, error) {
	fc, err := readCollection(r)
	if err != nil {
		return nil, err
	}
	points := make([]routing.QueryPoint, len(fc.Features))
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: want Point geometry, got %s", i, typeName(f.Geometry))
		}
		var id string
		switch {
		case idProperty != "":
			v, ok := f.Properties[idProperty]
			if !ok || v == nil {
				return nil, fmt.Errorf("feature %d: missing id property %q", i, idProperty)
			}
			id = network.Attrs(f.Properties).String(idProperty)
		case f.ID != nil:
			id = network.Attrs{"id": f.ID}.String("id")
		}
		points[i] = routing.QueryPoint{ID: id, Point: p}
	}
	return points, nil
}

func typeName(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}

// Write encodes fc to w.
func Write(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

// number converts NaN and infinities to null, which JSON cannot carry.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// feature wraps g, leaving the geometry null when g is empty.
func feature(g orb.Geometry) *geojson.Feature {
	switch v := g.(type) {
	case orb.LineString:
		if len(v) == 0 {
			g = nil
		}
	case orb.MultiLineString:
		if len(v) == 0 {
			g = nil
		}
	}
	return geojson.NewFeature(g)
}

// LinesCollection writes network lines with their attributes.
func LinesCollection(lines []network.Line) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range lines {
		f := feature(l.Geometry)
		for k, v := range l.Attrs {
			if fv, ok := v.(float64); ok {
				v = number(fv)
			}
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

// EdgesCollection writes the edges of a network with their node ids,
// length, travel time and the node count of their connected component.
func EdgesCollection(net *network.Network) *geojson.FeatureCollection {
	fc := LinesCollection(net.Lines())
	sizes := net.ComponentSizes()
	for i, e := range net.Edges {
		p := fc.Features[i].Properties
		p["edge_id"] = e.ID
		p["source"] = e.Source
		p["target"] = e.Target
		p["meters"] = e.Length
		p["component_size"] = sizes[i]
	}
	return fc
}

// ODCollection writes one feature per origin/destination pair. The cost is
// stored under the metric name and is null for missing pairs.
func ODCollection(res *routing.ODResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, row := range res.Rows {
		f := feature(row.Line)
		f.Properties["origin"] = row.Origin
		f.Properties["destination"] = row.Destination
		f.Properties[res.Metric] = number(row.Cost)
		fc.Append(f)
	}
	return fc
}

// ServiceAreaCollection writes one feature per origin and break.
func ServiceAreaCollection(res *routing.ServiceAreaResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range res.Areas {
		f := feature(a.Geometry)
		f.Properties["origin"] = a.Origin
		f.Properties[res.Metric] = a.Break
		f.Properties["edges"] = len(a.EdgeIDs)
		f.Properties["missing"] = a.Missing
		fc.Append(f)
	}
	return fc
}

// RouteCollection writes one feature per route.
func RouteCollection(metric string, routes []routing.Route) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range routes {
		f := feature(r.Geometry)
		f.Properties["origin"] = r.Origin
		f.Properties["destination"] = r.Destination
		f.Properties["k"] = r.Rank
		f.Properties[metric] = number(r.Cost)
		f.Properties["missing"] = r.Missing
		fc.Append(f)
	}
	return fc
}

// FrequencyCollection writes one feature per used edge with its count n.
func FrequencyCollection(res *routing.FrequencyResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range res.Edges {
		f := feature(e.Geometry)
		f.Properties["edge_id"] = e.EdgeID
		f.Properties["n"] = e.N
		fc.Append(f)
	}
	return fc
}
