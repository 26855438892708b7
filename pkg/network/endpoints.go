package network

import "github.com/paulmach/orb"

// Endpoints returns the first and last coordinate of a single-part line.
// Anything else is rejected with a *GeometryError naming the case.
func Endpoints(index int, g orb.Geometry) (orb.Point, orb.Point, error) {
	switch geom := g.(type) {
	case orb.LineString:
		if len(geom) < 2 {
			return orb.Point{}, orb.Point{}, &GeometryError{Index: index, Kind: KindEndpointCount, Type: geom.GeoJSONType()}
		}
		first, last := geom[0], geom[len(geom)-1]
		if first.Equal(last) {
			return orb.Point{}, orb.Point{}, &GeometryError{Index: index, Kind: KindRing, Type: geom.GeoJSONType()}
		}
		return first, last, nil
	case orb.Ring:
		return orb.Point{}, orb.Point{}, &GeometryError{Index: index, Kind: KindRing, Type: "LinearRing"}
	case orb.MultiLineString:
		return orb.Point{}, orb.Point{}, &GeometryError{Index: index, Kind: KindMultiPart, Type: geom.GeoJSONType()}
	case nil:
		return orb.Point{}, orb.Point{}, &GeometryError{Index: index, Kind: KindMixed, Type: "null"}
	default:
		return orb.Point{}, orb.Point{}, &GeometryError{Index: index, Kind: KindMixed, Type: g.GeoJSONType()}
	}
}
