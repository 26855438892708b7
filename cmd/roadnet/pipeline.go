package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/azybler/roadnet/pkg/config"
	"github.com/azybler/roadnet/pkg/geojsonio"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/osm"
	"github.com/azybler/roadnet/pkg/repair"
	"github.com/azybler/roadnet/pkg/routing"
)

func isPBF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pbf")
}

// readLines reads road lines from a GeoJSON file or an OSM PBF extract.
func readLines(ctx context.Context, path string, bbox osm.BBox, logger *slog.Logger) ([]network.Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if isPBF(path) {
		res, err := osm.Parse(ctx, f, osm.ParseOptions{BBox: bbox, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return res.Lines, nil
	}
	lines, err := geojsonio.ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

func readPoints(path, idField string) ([]routing.QueryPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pts, err := geojsonio.ReadPoints(f, idField)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return pts, nil
}

// buildNetwork runs the configured cleanup and build steps over lines:
// explode, cut, build, directionalize, close holes, keep the largest
// component.
func buildNetwork(ctx context.Context, cfg *config.Config, lines []network.Line, logger *slog.Logger) (*network.Network, []network.Diagnostic, error) {
	space, err := cfg.Space()
	if err != nil {
		return nil, nil, err
	}

	lines = repair.ExplodeLines(lines)
	if cfg.Repair.CutLength > 0 {
		if lines, err = repair.CutLines(lines, cfg.Repair.CutLength, space); err != nil {
			return nil, nil, err
		}
	}

	net, diags, err := network.New(lines, cfg.NetworkOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build network: %w", err)
	}
	logger.InfoContext(ctx, "built network", "nodes", len(net.Nodes), "edges", len(net.Edges))

	dirOpts, directed, err := cfg.DirectionOptions()
	if err != nil {
		return nil, nil, err
	}
	if directed {
		var more []network.Diagnostic
		net, more, err = net.MakeDirected(dirOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to directionalize network: %w", err)
		}
		diags = append(diags, more...)
		logger.InfoContext(ctx, "directionalized network", "edges", len(net.Edges))
	}

	if cfg.Repair.CloseHoles {
		var closed int
		net, closed, err = repair.CloseHoles(net, cfg.HoleOptions())
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "closed network holes", "holes", closed)
	}

	if cfg.Network.RemoveIsolated {
		before := len(net.Edges)
		net = net.RemoveIsolated()
		logger.InfoContext(ctx, "removed isolated edges", "removed", before-len(net.Edges), "kept", len(net.Edges))
	}

	network.LogDiagnostics(ctx, logger, diags)
	return net, diags, nil
}

// loadEngine reads, builds and indexes the network at path.
func loadEngine(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (*routing.Engine, []network.Diagnostic, error) {
	start := time.Now()

	if isPBF(path) && cfg.Network.Space != "spherical" {
		logger.InfoContext(ctx, "OSM input is lon/lat, using spherical distances")
		cfg.Network.Space = "spherical"
	}
	lines, err := readLines(ctx, path, osm.BBox{}, logger)
	if err != nil {
		return nil, nil, err
	}
	net, diags, err := buildNetwork(ctx, cfg, lines, logger)
	if err != nil {
		return nil, nil, err
	}

	r, err := cfg.BuildRules()
	if err != nil {
		return nil, nil, err
	}
	e, err := routing.NewEngine(net, r, routing.WithLogger(logger), routing.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "ready", "elapsed", time.Since(start).Round(time.Millisecond))
	return e, append(diags, e.Diagnostics()...), nil
}

// writeCollection writes fc to path, or to stdout when path is "" or "-".
func writeCollection(stdout io.Writer, path string, fc *geojson.FeatureCollection) error {
	if path == "" || path == "-" {
		return geojsonio.Write(stdout, fc)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := geojsonio.Write(f, fc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
