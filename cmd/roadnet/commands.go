package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/azybler/roadnet/pkg/api"
	"github.com/azybler/roadnet/pkg/geojsonio"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/osm"
	"github.com/azybler/roadnet/pkg/routing"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderDiagnostics(w io.Writer, diags []network.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"code", "message"})
	for _, d := range diags {
		t.AppendRow(table.Row{d.Code, d.Message})
	}
	t.Render()
}

func newBuildCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build <network>",
		Short: "Build the network and report its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, diags, err := loadEngine(cmd.Context(), a.cfg, args[0], a.logger)
			if err != nil {
				return err
			}

			stats := e.Stats()

			w := cmd.ErrOrStderr()
			t := newTable(w)
			t.AppendHeader(table.Row{"stat", "value"})
			t.AppendRows([]table.Row{
				{"nodes", stats.Nodes},
				{"edges", stats.Edges},
				{"arcs", stats.Arcs},
				{"metric", stats.Metric},
				{"directed", stats.Directed},
				{"space", e.Network().Space},
				{"components", stats.Components},
				{"largest component (nodes)", stats.LargestComponent},
			})
			t.Render()
			renderDiagnostics(w, diags)

			if out != "" {
				return writeCollection(cmd.OutOrStdout(), out, geojsonio.EdgesCollection(e.Network()))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the built edges as GeoJSON to this file (- for stdout)")
	return cmd
}

// queryFlags are the point inputs shared by the analysis commands.
type queryFlags struct {
	origins      string
	destinations string
	idField      string
	out          string
}

func (q *queryFlags) register(cmd *cobra.Command, withDestinations bool) {
	cmd.Flags().StringVar(&q.origins, "origins", "", "GeoJSON file of origin points")
	_ = cmd.MarkFlagRequired("origins")
	if withDestinations {
		cmd.Flags().StringVar(&q.destinations, "destinations", "", "GeoJSON file of destination points (default: the origins)")
	}
	cmd.Flags().StringVar(&q.idField, "id-field", "", "point property used as identifier (default: feature id, then position)")
	cmd.Flags().StringVarP(&q.out, "out", "o", "-", "output GeoJSON file (- for stdout)")
}

func (q *queryFlags) points() (origins, destinations []routing.QueryPoint, err error) {
	origins, err = readPoints(q.origins, q.idField)
	if err != nil {
		return nil, nil, err
	}
	if q.destinations == "" {
		return origins, origins, nil
	}
	destinations, err = readPoints(q.destinations, q.idField)
	if err != nil {
		return nil, nil, err
	}
	return origins, destinations, nil
}

func newODCmd(a *app) *cobra.Command {
	var (
		q     queryFlags
		lines bool
	)
	cmd := &cobra.Command{
		Use:   "od <network>",
		Short: "Compute the cost from every origin to every destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origins, destinations, err := q.points()
			if err != nil {
				return err
			}
			e, _, err := loadEngine(cmd.Context(), a.cfg, args[0], a.logger)
			if err != nil {
				return err
			}
			var opts []routing.ODOption
			if lines {
				opts = append(opts, routing.WithLines())
			}
			res, err := e.ODCostMatrix(cmd.Context(), origins, destinations, opts...)
			if err != nil {
				return err
			}

			t := newTable(cmd.ErrOrStderr())
			t.AppendHeader(table.Row{"metric", "pairs", "missing"})
			t.AppendRow(table.Row{res.Metric, len(res.Rows), res.MissingRows()})
			t.Render()
			return writeCollection(cmd.OutOrStdout(), q.out, geojsonio.ODCollection(res))
		},
	}
	q.register(cmd, true)
	cmd.Flags().BoolVar(&lines, "lines", false, "add a straight origin-destination line to every row")
	return cmd
}

func newServiceAreaCmd(a *app) *cobra.Command {
	var (
		q      queryFlags
		breaks []float64
	)
	cmd := &cobra.Command{
		Use:   "service-area <network>",
		Short: "Find the network reachable from every origin within each break",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origins, _, err := q.points()
			if err != nil {
				return err
			}
			e, _, err := loadEngine(cmd.Context(), a.cfg, args[0], a.logger)
			if err != nil {
				return err
			}
			res, err := e.ServiceArea(cmd.Context(), origins, breaks)
			if err != nil {
				return err
			}

			t := newTable(cmd.ErrOrStderr())
			t.AppendHeader(table.Row{"origin", res.Metric, "edges", "missing"})
			for _, area := range res.Areas {
				t.AppendRow(table.Row{area.Origin, area.Break, len(area.EdgeIDs), area.Missing})
			}
			t.Render()
			return writeCollection(cmd.OutOrStdout(), q.out, geojsonio.ServiceAreaCollection(res))
		},
	}
	q.register(cmd, false)
	cmd.Flags().Float64SliceVar(&breaks, "breaks", nil, "cost limits, e.g. 5,10,15")
	_ = cmd.MarkFlagRequired("breaks")
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	var (
		q    queryFlags
		k    int
		drop float64
	)
	cmd := &cobra.Command{
		Use:   "route <network>",
		Short: "Find the shortest route, or k alternatives, for every pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origins, destinations, err := q.points()
			if err != nil {
				return err
			}
			e, _, err := loadEngine(cmd.Context(), a.cfg, args[0], a.logger)
			if err != nil {
				return err
			}

			var routes []routing.Route
			if k > 1 || cmd.Flags().Changed("drop-middle") {
				routes, err = e.KRoutes(cmd.Context(), origins, destinations, k, drop)
			} else {
				routes, err = e.Routes(cmd.Context(), origins, destinations)
			}
			if err != nil {
				return err
			}

			missing := 0
			for _, r := range routes {
				if r.Missing {
					missing++
				}
			}
			t := newTable(cmd.ErrOrStderr())
			t.AppendHeader(table.Row{"metric", "routes", "missing"})
			t.AppendRow(table.Row{e.Rules().Weight(), len(routes) - missing, missing})
			t.Render()
			return writeCollection(cmd.OutOrStdout(), q.out, geojsonio.RouteCollection(e.Rules().Weight(), routes))
		},
	}
	q.register(cmd, true)
	cmd.Flags().IntVar(&k, "k", 1, "number of alternative routes per pair")
	cmd.Flags().Float64Var(&drop, "drop-middle", 50, "percent of the middle of each route blocked when searching alternatives")
	return cmd
}

func newFrequenciesCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "frequencies <network>",
		Short: "Count how many shortest routes use each edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origins, destinations, err := q.points()
			if err != nil {
				return err
			}
			e, _, err := loadEngine(cmd.Context(), a.cfg, args[0], a.logger)
			if err != nil {
				return err
			}
			res, err := e.RouteFrequencies(cmd.Context(), origins, destinations)
			if err != nil {
				return err
			}

			top := make([]routing.EdgeFrequency, len(res.Edges))
			copy(top, res.Edges)
			sort.SliceStable(top, func(i, j int) bool { return top[i].N > top[j].N })
			t := newTable(cmd.ErrOrStderr())
			t.AppendHeader(table.Row{"edge", "n"})
			for _, f := range top[:min(len(top), 10)] {
				t.AppendRow(table.Row{f.EdgeID, f.N})
			}
			t.AppendFooter(table.Row{"pairs", res.Pairs})
			t.Render()
			return writeCollection(cmd.OutOrStdout(), q.out, geojsonio.FrequencyCollection(res))
		},
	}
	q.register(cmd, true)
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <network>",
		Short: "Serve analyses over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, _, err := loadEngine(ctx, a.cfg, args[0], a.logger)
			if err != nil {
				return err
			}

			s := a.cfg.Server
			h := api.NewHandlers(e, api.HandlerOptions{
				Space:   e.Network().Space,
				MaxBody: s.MaxBodyBytes,
				Logger:  a.logger,
			})
			srv := api.NewServer(api.ServerConfig{
				Addr:           s.Addr,
				ReadTimeout:    s.ReadTimeout,
				WriteTimeout:   s.WriteTimeout,
				RequestTimeout: s.RequestTimeout,
				MaxConcurrent:  s.MaxConcurrent,
				CORSOrigin:     s.CORSOrigin,
			}, h, a.logger)
			return api.Serve(ctx, srv, a.logger)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Int("max-concurrent", 0, "requests served at once before answering 503")
	cmd.Flags().String("cors-origin", "", "allowed CORS origin (empty = same-origin)")
	return cmd
}

func newOSMExtractCmd(a *app) *cobra.Command {
	var (
		out  string
		bbox []float64
	)
	cmd := &cobra.Command{
		Use:   "osm-extract <file.osm.pbf>",
		Short: "Extract car-accessible roads from an OSM extract as GeoJSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var box osm.BBox
			switch len(bbox) {
			case 0:
			case 4:
				box = osm.BBox{MinLat: bbox[0], MinLng: bbox[1], MaxLat: bbox[2], MaxLng: bbox[3]}
			default:
				return fmt.Errorf("--bbox needs 4 values minLat,minLng,maxLat,maxLng, got %d", len(bbox))
			}

			lines, err := readLines(cmd.Context(), args[0], box, a.logger)
			if err != nil {
				return err
			}
			a.logger.InfoContext(cmd.Context(), "extracted lines", "lines", len(lines))
			return writeCollection(cmd.OutOrStdout(), out, geojsonio.LinesCollection(lines))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output GeoJSON file (- for stdout)")
	cmd.Flags().Float64SliceVar(&bbox, "bbox", nil, "bounding box: minLat,minLng,maxLat,maxLng")
	return cmd
}
