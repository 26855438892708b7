package api

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/routing"
)

// PointJSON is a query point. Coordinates are [x, y], or [lon, lat] on a
// spherical network.
type PointJSON struct {
	ID          string     `json:"id,omitempty"`
	Coordinates [2]float64 `json:"coordinates"`
}

// ODRequest is the JSON body for POST /api/v1/od.
type ODRequest struct {
	Origins      []PointJSON `json:"origins"`
	Destinations []PointJSON `json:"destinations"`
	Lines        bool        `json:"lines,omitempty"`
}

// ODRowJSON is one cell of the cost matrix. Cost is null when the pair
// could not be connected.
type ODRowJSON struct {
	Origin      string            `json:"origin"`
	Destination string            `json:"destination"`
	Cost        *float64          `json:"cost"`
	Line        *geojson.Geometry `json:"line,omitempty"`
}

// ODResponse is the JSON response for POST /api/v1/od.
type ODResponse struct {
	Metric               string         `json:"metric"`
	Rows                 []ODRowJSON    `json:"rows"`
	MissingRows          int            `json:"missing_rows"`
	MissingByOrigin      map[string]int `json:"missing_by_origin"`
	MissingByDestination map[string]int `json:"missing_by_destination"`
}

// ServiceAreaRequest is the JSON body for POST /api/v1/service-area.
type ServiceAreaRequest struct {
	Origins []PointJSON `json:"origins"`
	Breaks  []float64   `json:"breaks"`
}

// AreaJSON is the reachable network of one origin within one break.
type AreaJSON struct {
	Origin   string            `json:"origin"`
	Break    float64           `json:"break"`
	Missing  bool              `json:"missing"`
	EdgeIDs  []int             `json:"edge_ids"`
	Geometry *geojson.Geometry `json:"geometry"`
}

// ServiceAreaResponse is the JSON response for POST /api/v1/service-area.
type ServiceAreaResponse struct {
	Metric string     `json:"metric"`
	Breaks []float64  `json:"breaks"`
	Areas  []AreaJSON `json:"areas"`
}

// RoutesRequest is the JSON body for POST /api/v1/routes. K above one asks
// for alternative routes.
type RoutesRequest struct {
	Origins           []PointJSON `json:"origins"`
	Destinations      []PointJSON `json:"destinations"`
	K                 int         `json:"k,omitempty"`
	DropMiddlePercent float64     `json:"drop_middle_percent,omitempty"`
}

// RouteJSON is one route in the response.
type RouteJSON struct {
	Origin      string            `json:"origin"`
	Destination string            `json:"destination"`
	Rank        int               `json:"k"`
	Cost        *float64          `json:"cost"`
	Missing     bool              `json:"missing"`
	EdgeIDs     []int             `json:"edge_ids"`
	Geometry    *geojson.Geometry `json:"geometry"`
}

// RoutesResponse is the JSON response for POST /api/v1/routes.
type RoutesResponse struct {
	Metric string      `json:"metric"`
	Routes []RouteJSON `json:"routes"`
}

// FrequencyRequest is the JSON body for POST /api/v1/frequencies.
type FrequencyRequest struct {
	Origins      []PointJSON `json:"origins"`
	Destinations []PointJSON `json:"destinations"`
}

// EdgeCountJSON is the number of routes using one edge.
type EdgeCountJSON struct {
	EdgeID   int               `json:"edge_id"`
	N        int               `json:"n"`
	Geometry *geojson.Geometry `json:"geometry"`
}

// FrequencyResponse is the JSON response for POST /api/v1/frequencies.
type FrequencyResponse struct {
	Metric  string          `json:"metric"`
	Pairs   int             `json:"pairs"`
	Missing int             `json:"missing"`
	Edges   []EdgeCountJSON `json:"edges"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// DiagnosticJSON is a non-fatal finding about the loaded network.
type DiagnosticJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	routing.Stats
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

func queryPoints(pts []PointJSON) []routing.QueryPoint {
	out := make([]routing.QueryPoint, len(pts))
	for i, p := range pts {
		out[i] = routing.QueryPoint{ID: p.ID, Point: orb.Point(p.Coordinates)}
	}
	return out
}

func cost(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// geometry encodes g, or returns nil for an empty geometry.
func geometry(g orb.Geometry) *geojson.Geometry {
	switch v := g.(type) {
	case orb.LineString:
		if len(v) == 0 {
			return nil
		}
	case orb.MultiLineString:
		if len(v) == 0 {
			return nil
		}
	}
	return geojson.NewGeometry(g)
}

func odResponse(res *routing.ODResult) ODResponse {
	resp := ODResponse{
		Metric:               res.Metric,
		Rows:                 make([]ODRowJSON, len(res.Rows)),
		MissingRows:          res.MissingRows(),
		MissingByOrigin:      res.MissingByOrigin,
		MissingByDestination: res.MissingByDestination,
	}
	for i, row := range res.Rows {
		resp.Rows[i] = ODRowJSON{
			Origin:      row.Origin,
			Destination: row.Destination,
			Cost:        cost(row.Cost),
			Line:        geometry(row.Line),
		}
	}
	return resp
}

func serviceAreaResponse(res *routing.ServiceAreaResult) ServiceAreaResponse {
	resp := ServiceAreaResponse{
		Metric: res.Metric,
		Breaks: res.Breaks,
		Areas:  make([]AreaJSON, len(res.Areas)),
	}
	for i, a := range res.Areas {
		ids := a.EdgeIDs
		if ids == nil {
			ids = []int{}
		}
		resp.Areas[i] = AreaJSON{
			Origin:   a.Origin,
			Break:    a.Break,
			Missing:  a.Missing,
			EdgeIDs:  ids,
			Geometry: geometry(a.Geometry),
		}
	}
	return resp
}

func routesResponse(metric string, routes []routing.Route) RoutesResponse {
	resp := RoutesResponse{Metric: metric, Routes: make([]RouteJSON, len(routes))}
	for i, r := range routes {
		ids := r.EdgeIDs
		if ids == nil {
			ids = []int{}
		}
		resp.Routes[i] = RouteJSON{
			Origin:      r.Origin,
			Destination: r.Destination,
			Rank:        r.Rank,
			Cost:        cost(r.Cost),
			Missing:     r.Missing,
			EdgeIDs:     ids,
			Geometry:    geometry(r.Geometry),
		}
	}
	return resp
}

func frequencyResponse(res *routing.FrequencyResult) FrequencyResponse {
	resp := FrequencyResponse{
		Metric:  res.Metric,
		Pairs:   res.Pairs,
		Missing: res.Missing,
		Edges:   make([]EdgeCountJSON, len(res.Edges)),
	}
	for i, e := range res.Edges {
		resp.Edges[i] = EdgeCountJSON{EdgeID: e.EdgeID, N: e.N, Geometry: geometry(e.Geometry)}
	}
	return resp
}

func statsResponse(stats routing.Stats, diags []network.Diagnostic) StatsResponse {
	resp := StatsResponse{Stats: stats, Diagnostics: make([]DiagnosticJSON, len(diags))}
	for i, d := range diags {
		resp.Diagnostics[i] = DiagnosticJSON{Code: d.Code, Message: d.Message}
	}
	return resp
}
