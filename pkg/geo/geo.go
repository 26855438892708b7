// Package geo provides distance and length calculations for network
// coordinates, in either a projected (planar) or a lon/lat (spherical) space.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const earthRadiusMeters = 6_371_000.0

// degToMeters converts degree-scaled equirectangular distances to meters.
const degToMeters = math.Pi / 180 * earthRadiusMeters

// Space says how coordinates are interpreted.
type Space uint8

const (
	// Planar coordinates are projected and expressed in meters.
	Planar Space = iota
	// Spherical coordinates are WGS84 lon/lat in degrees.
	Spherical
)

// ParseSpace parses "planar" or "spherical".
func ParseSpace(s string) (Space, error) {
	switch s {
	case "", "planar":
		return Planar, nil
	case "spherical", "lonlat":
		return Spherical, nil
	}
	return Planar, fmt.Errorf("unknown coordinate space %q", s)
}

func (s Space) String() string {
	if s == Spherical {
		return "spherical"
	}
	return "planar"
}

// Distance returns the distance in meters between two points.
func (s Space) Distance(a, b orb.Point) float64 {
	if s == Spherical {
		return Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
	}
	return planar.Distance(a, b)
}

// Length returns the length in meters of a line.
func (s Space) Length(ls orb.LineString) float64 {
	if s == Planar {
		return planar.Length(ls)
	}
	var total float64
	for i := 1; i < len(ls); i++ {
		total += s.Distance(ls[i-1], ls[i])
	}
	return total
}

// Projector maps points into a flat meter-scaled plane suitable for
// spatial indexing.
type Projector struct {
	space  Space
	cosLat float64
}

// NewProjector creates a projector. For spherical spaces refLat is the
// latitude the equirectangular projection is centred on.
func NewProjector(space Space, refLat float64) Projector {
	return Projector{space: space, cosLat: math.Cos(refLat * math.Pi / 180)}
}

// Stretch bounds how much the projection can lengthen a short distance
// measured near latitude lat, plus 5% for the curvature the projection
// ignores. Dividing a projected distance by it gives a lower bound on the
// true distance. Planar projections return 1.
func (pr Projector) Stretch(lat float64) float64 {
	if pr.space == Planar {
		return 1
	}
	c := math.Cos(lat * math.Pi / 180)
	if c < 1e-9 {
		return math.Inf(1)
	}
	return max(1, pr.cosLat/c) * 1.05
}

// Project returns index coordinates for p.
func (pr Projector) Project(p orb.Point) [2]float64 {
	if pr.space == Planar {
		return [2]float64{p[0], p[1]}
	}
	return [2]float64{p.Lon() * pr.cosLat * degToMeters, p.Lat() * degToMeters}
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
