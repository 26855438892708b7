package network

import (
	"context"
	"log/slog"
)

// Diagnostic is a non-fatal finding produced while building or querying a
// network. Callers can assert on it instead of scraping logs.
type Diagnostic struct {
	Code    string
	Message string
}

// Diagnostic codes.
const (
	CodeClosedLinesDropped = "closed_lines_dropped"
	CodeUnknownDirection   = "unknown_direction"
	CodeNoCostSource       = "no_cost_source"
	CodeUncostableEdges    = "uncostable_edges"
	CodeDirectionOrder     = "direction_values_order"
	CodeNotDirected        = "network_not_directed"
)

// LogDiagnostics writes diagnostics to logger at WARN level.
func LogDiagnostics(ctx context.Context, logger *slog.Logger, diags []Diagnostic) {
	for _, d := range diags {
		logger.WarnContext(ctx, d.Message, "code", d.Code)
	}
}
