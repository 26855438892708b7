package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/routing"
	"github.com/azybler/roadnet/pkg/rules"
)

// Analyzer answers network queries. *routing.Engine implements it.
type Analyzer interface {
	ODCostMatrix(ctx context.Context, origins, destinations []routing.QueryPoint, opts ...routing.ODOption) (*routing.ODResult, error)
	ServiceArea(ctx context.Context, origins []routing.QueryPoint, breaks []float64) (*routing.ServiceAreaResult, error)
	Routes(ctx context.Context, origins, destinations []routing.QueryPoint) ([]routing.Route, error)
	KRoutes(ctx context.Context, origins, destinations []routing.QueryPoint, k int, dropMiddlePercent float64) ([]routing.Route, error)
	RouteFrequencies(ctx context.Context, origins, destinations []routing.QueryPoint) (*routing.FrequencyResult, error)
	Rules() rules.Rules
	Stats() routing.Stats
	Diagnostics() []network.Diagnostic
}

var _ Analyzer = (*routing.Engine)(nil)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	analyzer  Analyzer
	space     geo.Space
	maxBody   int64
	maxPoints int
	logger    *slog.Logger
}

// HandlerOptions configure request limits.
type HandlerOptions struct {
	Space     geo.Space // range-checks lon/lat when Spherical
	MaxBody   int64     // bytes; 0 means 1 MiB
	MaxPoints int       // per side of a query; 0 means 10000
	Logger    *slog.Logger
}

// NewHandlers creates handlers around an analyzer.
func NewHandlers(a Analyzer, opts HandlerOptions) *Handlers {
	h := &Handlers{
		analyzer:  a,
		space:     opts.Space,
		maxBody:   opts.MaxBody,
		maxPoints: opts.MaxPoints,
		logger:    opts.Logger,
	}
	if h.maxBody <= 0 {
		h.maxBody = 1 << 20
	}
	if h.maxPoints <= 0 {
		h.maxPoints = 10_000
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return h
}

// HandleOD handles POST /api/v1/od.
func (h *Handlers) HandleOD(w http.ResponseWriter, r *http.Request) {
	var req ODRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validatePoints(w, "origins", req.Origins) || !h.validatePoints(w, "destinations", req.Destinations) {
		return
	}

	var opts []routing.ODOption
	if req.Lines {
		opts = append(opts, routing.WithLines())
	}
	res, err := h.analyzer.ODCostMatrix(r.Context(), queryPoints(req.Origins), queryPoints(req.Destinations), opts...)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, odResponse(res))
}

// HandleServiceArea handles POST /api/v1/service-area.
func (h *Handlers) HandleServiceArea(w http.ResponseWriter, r *http.Request) {
	var req ServiceAreaRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validatePoints(w, "origins", req.Origins) {
		return
	}

	res, err := h.analyzer.ServiceArea(r.Context(), queryPoints(req.Origins), req.Breaks)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, serviceAreaResponse(res))
}

// HandleRoutes handles POST /api/v1/routes.
func (h *Handlers) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	var req RoutesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validatePoints(w, "origins", req.Origins) || !h.validatePoints(w, "destinations", req.Destinations) {
		return
	}

	var (
		routes []routing.Route
		err    error
	)
	o, d := queryPoints(req.Origins), queryPoints(req.Destinations)
	if req.K > 1 || req.DropMiddlePercent != 0 {
		routes, err = h.analyzer.KRoutes(r.Context(), o, d, max(req.K, 1), req.DropMiddlePercent)
	} else {
		routes, err = h.analyzer.Routes(r.Context(), o, d)
	}
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routesResponse(h.analyzer.Rules().Weight(), routes))
}

// HandleFrequencies handles POST /api/v1/frequencies.
func (h *Handlers) HandleFrequencies(w http.ResponseWriter, r *http.Request) {
	var req FrequencyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validatePoints(w, "origins", req.Origins) || !h.validatePoints(w, "destinations", req.Destinations) {
		return
	}

	res, err := h.analyzer.RouteFrequencies(r.Context(), queryPoints(req.Origins), queryPoints(req.Destinations))
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frequencyResponse(res))
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse(h.analyzer.Stats(), h.analyzer.Diagnostics()))
}

// decode enforces the content type and size limit and decodes the body
// into v. It writes the error response and returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "invalid_request", "", "content type must be application/json")
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "", "")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
		return false
	}
	return true
}

func (h *Handlers) validatePoints(w http.ResponseWriter, field string, pts []PointJSON) bool {
	if len(pts) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", field, "at least one point is required")
		return false
	}
	if len(pts) > h.maxPoints {
		writeError(w, http.StatusBadRequest, "too_many_points", field, fmt.Sprintf("at most %d points are allowed", h.maxPoints))
		return false
	}
	for i, p := range pts {
		if err := validateCoord(p.Coordinates, h.space); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", fmt.Sprintf("%s[%d]", field, i), err.Error())
			return false
		}
	}
	return true
}

// writeQueryError maps analyzer errors to status codes.
func (h *Handlers) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *network.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, "invalid_parameters", cfgErr.Field, cfgErr.Reason)
	case errors.Is(err, network.ErrConfig), errors.Is(err, rules.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid_parameters", "", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "", "")
	default:
		h.logger.ErrorContext(r.Context(), "query failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "", "")
	}
}

func validateCoord(c [2]float64, space geo.Space) error {
	x, y := c[0], c[1]
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if space == geo.Spherical && (y < -90 || y > 90 || x < -180 || x > 180) {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field, Message: msg})
}
