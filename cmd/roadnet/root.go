package main

import (
	"io"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/azybler/roadnet/pkg/config"
)

// app is the state shared by all subcommands once config is loaded.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}

	root := &cobra.Command{
		Use:   "roadnet",
		Short: "Network analysis on road lines",
		Long: `roadnet turns road lines (GeoJSON or OSM PBF) into a routable network and
computes origin/destination cost matrices, service areas, routes and edge
frequencies over it.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger(cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+")")

	pf.String("space", "", "coordinate space: planar or spherical")
	pf.Bool("drop-closed", false, "drop closed lines instead of failing")
	pf.String("minutes-attr", "", "attribute holding an existing travel time in minutes")
	pf.Bool("remove-isolated", false, "keep only the largest connected component")

	pf.String("direction", "", "direction preset: osm, nvdb or custom")
	pf.String("direction-column", "", "attribute holding the direction value")
	pf.StringSlice("direction-values", nil, "direction values: both,forward,backward")
	pf.String("speed-column", "", "attribute holding the speed in km/h")
	pf.StringSlice("minute-columns", nil, "attributes holding minutes: forward[,backward]")
	pf.Float64("flat-speed", 0, "speed in km/h applied to every edge")

	pf.String("weight", "", "cost metric: meters, minutes or a numeric attribute")
	pf.Float64("search-tolerance", 0, "largest snap distance in meters")
	pf.Float64("search-factor", 0, "snap candidate widening factor")
	pf.Float64("cost-to-nodes", 0, "speed in km/h used to cost the snap distance")
	pf.Int("neighbor-cap", 0, "nearest nodes considered per query point")

	pf.Bool("close-holes", false, "connect dead ends to nearby nodes")
	pf.Float64("hole-max-dist", 0, "largest gap to close in meters")
	pf.Float64("hole-min-dist", 0, "smallest gap to close in meters")
	pf.Float64("cut-length", 0, "cut lines longer than this many meters")

	pf.Int("workers", 0, "origins searched in parallel (0 = one per CPU)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		newBuildCmd(a),
		newODCmd(a),
		newServiceAreaCmd(a),
		newRouteCmd(a),
		newFrequenciesCmd(a),
		newServeCmd(a),
		newOSMExtractCmd(a),
	)
	return root
}
