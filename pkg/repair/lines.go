package repair

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
)

// ExplodeLines splits multi-part lines into one line per part. Every part
// keeps a copy of the attributes. Other geometries pass through untouched.
func ExplodeLines(lines []network.Line) []network.Line {
	out := make([]network.Line, 0, len(lines))
	for _, l := range lines {
		mls, ok := l.Geometry.(orb.MultiLineString)
		if !ok {
			out = append(out, l)
			continue
		}
		for _, part := range mls {
			out = append(out, network.Line{Geometry: part.Clone(), Attrs: l.Attrs.Clone()})
		}
	}
	return out
}

// CutLines splits every LineString longer than maxLength meters into
// pieces no longer than maxLength. Cut points are interpolated along the
// segment they fall on.
func CutLines(lines []network.Line, maxLength float64, space geo.Space) ([]network.Line, error) {
	if !(maxLength > 0) || math.IsInf(maxLength, 0) {
		return nil, &network.ConfigError{Field: "max_length", Reason: fmt.Sprintf("must be a positive finite length, got %v", maxLength)}
	}
	out := make([]network.Line, 0, len(lines))
	for _, l := range lines {
		ls, ok := l.Geometry.(orb.LineString)
		if !ok || space.Length(ls) <= maxLength {
			out = append(out, l)
			continue
		}
		for _, piece := range cut(ls, maxLength, space) {
			out = append(out, network.Line{Geometry: piece, Attrs: l.Attrs.Clone()})
		}
	}
	return out, nil
}

func cut(ls orb.LineString, maxLength float64, space geo.Space) []orb.LineString {
	var pieces []orb.LineString
	cur := orb.LineString{ls[0]}
	used := 0.0 // length of cur

	for i := 1; i < len(ls); i++ {
		a, b := cur[len(cur)-1], ls[i]
		seg := space.Distance(a, b)
		for seg > 0 && used+seg > maxLength {
			f := (maxLength - used) / seg
			cp := orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
			cur = append(cur, cp)
			pieces = append(pieces, cur)

			cur = orb.LineString{cp}
			used = 0
			a = cp
			seg = space.Distance(a, b)
		}
		if !b.Equal(cur[len(cur)-1]) {
			cur = append(cur, b)
			used += seg
		}
	}
	if len(cur) > 1 {
		pieces = append(pieces, cur)
	}
	return pieces
}
