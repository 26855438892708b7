package routing

import (
	"strconv"

	"github.com/paulmach/orb"
)

// QueryPoint is a location to route from or to. It does not need to lie on
// the network.
type QueryPoint struct {
	ID    string // user identifier; empty means the point's position in its set
	Point orb.Point
}

// Role tells origins and destinations apart.
type Role uint8

const (
	Origin Role = iota
	Destination
)

func (r Role) String() string {
	if r == Destination {
		return "destination"
	}
	return "origin"
}

// QueryPoints is one side of a query with its temporary indices. Temporary
// indices start past the last node id, so they never collide with nodes,
// and destinations start past the last origin.
type QueryPoints struct {
	Role   Role
	Points []QueryPoint
	start  int
}

// newQueryPoints assigns temporary indices starting at start.
func newQueryPoints(role Role, points []QueryPoint, start int) *QueryPoints {
	return &QueryPoints{Role: role, Points: points, start: start}
}

// pair builds the origin and destination sets of one query over a network
// with numNodes nodes.
func pair(numNodes int, origins, destinations []QueryPoint) (*QueryPoints, *QueryPoints) {
	o := newQueryPoints(Origin, origins, numNodes)
	d := newQueryPoints(Destination, destinations, numNodes+len(origins))
	return o, d
}

// Len returns the number of points.
func (q *QueryPoints) Len() int { return len(q.Points) }

// TempIndex returns the temporary index of point i.
func (q *QueryPoints) TempIndex(i int) int { return q.start + i }

// UserID returns the identifier results report for point i.
func (q *QueryPoints) UserID(i int) string {
	if id := q.Points[i].ID; id != "" {
		return id
	}
	return strconv.Itoa(i)
}

// Points builds query points from bare coordinates, identified by position.
func Points(pts ...orb.Point) []QueryPoint {
	out := make([]QueryPoint, len(pts))
	for i, p := range pts {
		out[i] = QueryPoint{Point: p}
	}
	return out
}
