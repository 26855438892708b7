package network

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/roadnet/pkg/geo"
)

func line(attrs Attrs, pts ...orb.Point) Line {
	return Line{Geometry: orb.LineString(pts), Attrs: attrs}
}

// fourNodes is A(0,0) B(10,0) C(20,0) D(10,10):
// A-B both ways, B-C forward, A-D both ways, D-C forward.
func fourNodes() []Line {
	a, b, c, d := orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{20, 0}, orb.Point{10, 10}
	return []Line{
		line(Attrs{"oneway": "B"}, a, b),
		line(Attrs{"oneway": "F"}, b, c),
		line(Attrs{"oneway": "B"}, a, d),
		line(Attrs{"oneway": "F"}, d, c),
	}
}

func TestEndpoints(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
		kind GeometryKind
	}{
		{"ok", orb.LineString{{0, 0}, {1, 1}}, 0},
		{"ring", orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, KindRing},
		{"orb ring", orb.Ring{{0, 0}, {1, 0}, {0, 0}}, KindRing},
		{"multi", orb.MultiLineString{{{0, 0}, {1, 0}}, {{2, 0}, {3, 0}}}, KindMultiPart},
		{"point", orb.Point{1, 1}, KindMixed},
		{"nil", nil, KindMixed},
		{"single coord", orb.LineString{{0, 0}}, KindEndpointCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := Endpoints(3, tt.geom)
			if tt.kind == 0 {
				require.NoError(t, err)
				assert.Equal(t, orb.Point{0, 0}, start)
				assert.Equal(t, orb.Point{1, 1}, end)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrGeometry))
			var ge *GeometryError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.kind, ge.Kind)
			assert.Equal(t, 3, ge.Index)
		})
	}
}

func TestNewAssignsNodeIDs(t *testing.T) {
	lines := []Line{
		line(nil, orb.Point{0, 0}, orb.Point{10, 0}),
		line(nil, orb.Point{10, 0}, orb.Point{20, 0}),
		line(nil, orb.Point{5, 5}, orb.Point{10, 0}),
	}
	n, diags, err := New(lines)
	require.NoError(t, err)
	assert.Empty(t, diags)

	// Sources first: (0,0)=0 (10,0)=1 (5,5)=2, then the unseen target (20,0)=3.
	require.Len(t, n.Nodes, 4)
	assert.Equal(t, orb.Point{0, 0}, n.Nodes[0].Point)
	assert.Equal(t, orb.Point{10, 0}, n.Nodes[1].Point)
	assert.Equal(t, orb.Point{5, 5}, n.Nodes[2].Point)
	assert.Equal(t, orb.Point{20, 0}, n.Nodes[3].Point)

	assert.Equal(t, 3, n.Nodes[1].Degree)
	assert.Equal(t, 1, n.Nodes[0].Degree)

	assert.Equal(t, []int{0, 1, 2}, []int{n.Edges[0].Source, n.Edges[1].Source, n.Edges[2].Source})
	assert.Equal(t, []int{1, 3, 1}, []int{n.Edges[0].Target, n.Edges[1].Target, n.Edges[2].Target})
	assert.InDelta(t, 10, n.Edges[0].Length, 1e-9)
	assert.True(t, math.IsNaN(n.Edges[0].Minutes))

	for _, e := range n.Edges {
		assert.Less(t, e.Source, len(n.Nodes))
		assert.Less(t, e.Target, len(n.Nodes))
	}
}

func TestNodeIDsIdempotent(t *testing.T) {
	first, _, err := New(fourNodes())
	require.NoError(t, err)
	second := FromEdges(first.Space, first.Directed, cloneEdges(first.Edges))

	assert.Equal(t, first.Nodes, second.Nodes)
	for i := range first.Edges {
		assert.Equal(t, first.Edges[i].Source, second.Edges[i].Source)
		assert.Equal(t, first.Edges[i].Target, second.Edges[i].Target)
	}
}

func TestNewRejectsRings(t *testing.T) {
	lines := []Line{
		line(nil, orb.Point{0, 0}, orb.Point{1, 0}),
		line(nil, orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 0}),
	}

	_, _, err := New(lines)
	require.ErrorIs(t, err, ErrGeometry)

	n, diags, err := New(lines, WithDropClosed())
	require.NoError(t, err)
	assert.Len(t, n.Edges, 1)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeClosedLinesDropped, diags[0].Code)
}

func TestNewDoesNotAliasInput(t *testing.T) {
	lines := []Line{line(Attrs{"k": "v"}, orb.Point{0, 0}, orb.Point{1, 0})}
	n, _, err := New(lines)
	require.NoError(t, err)

	n.Edges[0].Geometry[0] = orb.Point{9, 9}
	n.Edges[0].Attrs["k"] = "changed"
	assert.Equal(t, orb.Point{0, 0}, lines[0].Geometry.(orb.LineString)[0])
	assert.Equal(t, "v", lines[0].Attrs["k"])
}

func TestNewSpherical(t *testing.T) {
	lines := []Line{line(nil, orb.Point{10, 59}, orb.Point{10, 60})}
	n, _, err := New(lines, WithSpace(geo.Spherical))
	require.NoError(t, err)
	assert.InDelta(t, 111_195, n.Edges[0].Length, 100)
}

func TestMinutesAttr(t *testing.T) {
	lines := []Line{
		line(Attrs{"minutes": 2.5}, orb.Point{0, 0}, orb.Point{1, 0}),
		line(Attrs{"minutes": "bad"}, orb.Point{1, 0}, orb.Point{2, 0}),
	}
	n, _, err := New(lines, WithMinutesAttr("minutes"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, n.Edges[0].Minutes)
	assert.False(t, n.Edges[1].HasMinutes())
}

func TestWithEdges(t *testing.T) {
	n, _, err := New(fourNodes())
	require.NoError(t, err)

	extra := Edge{Geometry: orb.LineString{{20, 0}, {30, 0}}, Attrs: Attrs{"hole": 1}}
	m := n.WithEdges([]Edge{extra})

	assert.Len(t, n.Edges, 4)
	require.Len(t, m.Edges, 5)
	assert.Len(t, m.Nodes, 5)
	assert.InDelta(t, 10, m.Edges[4].Length, 1e-9)
	assert.Equal(t, 4, m.Edges[4].ID)
}

func TestLines(t *testing.T) {
	n, _, err := New([]Line{line(nil, orb.Point{0, 0}, orb.Point{1, 0})})
	require.NoError(t, err)
	n.Edges[0].Minutes = 3

	lines := n.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3.0, lines[0].Attrs["minutes"])
}

func TestAttrs(t *testing.T) {
	a := Attrs{"f": 1.5, "i": 3, "s": " 40 ", "bad": "x", "str": "B"}

	v, ok := a.Float("f")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = a.Float("i")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = a.Float("s")
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)

	_, ok = a.Float("bad")
	assert.False(t, ok)
	_, ok = a.Float("missing")
	assert.False(t, ok)

	assert.Equal(t, "B", a.String("str"))
	assert.Equal(t, "1.5", a.String("f"))
	assert.Equal(t, "", a.String("missing"))
}
