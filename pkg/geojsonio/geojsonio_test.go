package geojsonio

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/routing"
)

const roads = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 0]]},
     "properties": {"oneway": "B", "maxspeed": 50}},
    {"type": "Feature", "geometry": {"type": "MultiLineString", "coordinates": [[[1, 0], [2, 0]], [[2, 0], [2, 1]]]},
     "properties": {"oneway": "F"}}
  ]
}`

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader(roads))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}}, lines[0].Geometry)
	assert.Equal(t, "B", lines[0].Attrs.String("oneway"))
	v, ok := lines[0].Attrs.Float("maxspeed")
	assert.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok = lines[1].Geometry.(orb.MultiLineString)
	assert.True(t, ok)
}

func TestReadLinesInvalid(t *testing.T) {
	_, err := ReadLines(strings.NewReader(`{"type": "Feature"`))
	assert.Error(t, err)
}

const stops = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 17, "geometry": {"type": "Point", "coordinates": [1, 2]},
     "properties": {"name": "depot"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [3, 4]},
     "properties": {"name": "shop"}}
  ]
}`

func TestReadPoints(t *testing.T) {
	tests := []struct {
		name       string
		idProperty string
		want       []routing.QueryPoint
	}{
		{
			name:       "property",
			idProperty: "name",
			want: []routing.QueryPoint{
				{ID: "depot", Point: orb.Point{1, 2}},
				{ID: "shop", Point: orb.Point{3, 4}},
			},
		},
		{
			name: "feature id",
			want: []routing.QueryPoint{
				{ID: "17", Point: orb.Point{1, 2}},
				{ID: "", Point: orb.Point{3, 4}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPoints(strings.NewReader(stops), tt.idProperty)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPointsErrors(t *testing.T) {
	_, err := ReadPoints(strings.NewReader(stops), "code")
	assert.ErrorContains(t, err, `missing id property "code"`)

	_, err = ReadPoints(strings.NewReader(roads), "")
	assert.ErrorContains(t, err, "want Point geometry, got LineString")
}

func TestODCollection(t *testing.T) {
	res := &routing.ODResult{
		Metric: "minutes",
		Rows: []routing.ODRow{
			{Origin: "a", Destination: "x", Cost: 4.5, Line: orb.LineString{{0, 0}, {1, 1}}},
			{Origin: "a", Destination: "y", Cost: math.NaN()},
		},
	}
	fc := ODCollection(res)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 4.5, fc.Features[0].Properties["minutes"])
	assert.Nil(t, fc.Features[1].Properties["minutes"])
	assert.Nil(t, fc.Features[1].Geometry)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fc))

	var doc struct {
		Features []struct {
			Geometry   json.RawMessage `json:"geometry"`
			Properties map[string]any  `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "x", doc.Features[0].Properties["destination"])
	assert.Equal(t, "null", string(doc.Features[1].Geometry))
	assert.Contains(t, doc.Features[1].Properties, "minutes")
	assert.Nil(t, doc.Features[1].Properties["minutes"])
}

func TestServiceAreaCollection(t *testing.T) {
	res := &routing.ServiceAreaResult{
		Metric: "meters",
		Breaks: []float64{100, 200},
		Areas: []routing.ServiceArea{
			{Origin: "a", Break: 100, EdgeIDs: []int{0}, Geometry: orb.MultiLineString{{{0, 0}, {1, 0}}}},
			{Origin: "a", Break: 200, EdgeIDs: []int{0, 1}, Geometry: orb.MultiLineString{{{0, 0}, {1, 0}}, {{1, 0}, {2, 0}}}},
			{Origin: "b", Break: 100, Missing: true},
		},
	}
	fc := ServiceAreaCollection(res)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, 200.0, fc.Features[1].Properties["meters"])
	assert.Equal(t, 2, fc.Features[1].Properties["edges"])
	assert.Equal(t, true, fc.Features[2].Properties["missing"])
	assert.Nil(t, fc.Features[2].Geometry)
}

func TestRouteAndFrequencyCollections(t *testing.T) {
	routes := []routing.Route{
		{Origin: "a", Destination: "b", Rank: 1, Cost: 3, Geometry: orb.MultiLineString{{{0, 0}, {3, 0}}}},
		{Origin: "a", Destination: "c", Rank: 1, Cost: math.NaN(), Missing: true},
	}
	fc := RouteCollection("meters", routes)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 1, fc.Features[0].Properties["k"])
	assert.Equal(t, 3.0, fc.Features[0].Properties["meters"])
	assert.Nil(t, fc.Features[1].Properties["meters"])

	freq := &routing.FrequencyResult{
		Metric: "meters",
		Edges: []routing.EdgeFrequency{
			{EdgeID: 4, N: 2, Geometry: orb.LineString{{0, 0}, {1, 0}}},
		},
	}
	fc = FrequencyCollection(freq)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, 4, fc.Features[0].Properties["edge_id"])
	assert.Equal(t, 2, fc.Features[0].Properties["n"])
}

func TestLinesRoundTrip(t *testing.T) {
	lines := []network.Line{
		{Geometry: orb.LineString{{0, 0}, {1, 0}}, Attrs: network.Attrs{"oneway": "F", "speed": math.NaN()}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, LinesCollection(lines)))

	back, err := ReadLines(&buf)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, lines[0].Geometry, back[0].Geometry)
	assert.Equal(t, "F", back[0].Attrs["oneway"])
	assert.Contains(t, back[0].Attrs, "speed")
	assert.Nil(t, back[0].Attrs["speed"])
}

func TestEdgesCollection(t *testing.T) {
	net, _, err := network.New([]network.Line{
		{Geometry: orb.LineString{{0, 0}, {3, 4}}, Attrs: network.Attrs{"name": "main"}},
	})
	require.NoError(t, err)

	fc := EdgesCollection(net)
	require.Len(t, fc.Features, 1)
	p := fc.Features[0].Properties
	assert.Equal(t, "main", p["name"])
	assert.Equal(t, 0, p["edge_id"])
	assert.InDelta(t, 5, p["meters"], 1e-9)
	assert.NotContains(t, p, "minutes")
	assert.Equal(t, 2, p["component_size"])
}
