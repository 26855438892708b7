// Package config loads roadnet settings from defaults, a YAML file,
// ROADNET_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/repair"
	"github.com/azybler/roadnet/pkg/rules"
)

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "roadnet.yaml"

// EnvPrefix marks environment variables read by Load. Nested keys are
// separated by a double underscore: ROADNET_RULES__WEIGHT.
const EnvPrefix = "ROADNET_"

// Config holds all settings.
type Config struct {
	Network   NetworkConfig   `koanf:"network"`
	Direction DirectionConfig `koanf:"direction"`
	Rules     RulesConfig     `koanf:"rules"`
	Repair    RepairConfig    `koanf:"repair"`
	Server    ServerConfig    `koanf:"server"`
	Workers   int             `koanf:"workers"`    // parallel origins; 0 means one per CPU
	LogLevel  string          `koanf:"log_level"`  // debug, info, warn, error
	LogFormat string          `koanf:"log_format"` // text or json
}

// NetworkConfig controls how lines become a network.
type NetworkConfig struct {
	Space          string `koanf:"space"` // planar or spherical
	DropClosed     bool   `koanf:"drop_closed"`
	MinutesAttr    string `koanf:"minutes_attr"`
	RemoveIsolated bool   `koanf:"remove_isolated"`
}

// DirectionConfig selects how lines are directionalized. An empty preset
// with no column leaves the network undirected.
type DirectionConfig struct {
	Preset        string   `koanf:"preset"` // osm, nvdb or custom
	Column        string   `koanf:"column"`
	Values        []string `koanf:"values"`
	SpeedColumn   string   `koanf:"speed_column"`
	MinuteColumns []string `koanf:"minute_columns"`
	FlatSpeed     float64  `koanf:"flat_speed"`
}

// RulesConfig mirrors rules.Rules.
type RulesConfig struct {
	Weight          string  `koanf:"weight"`
	SearchTolerance float64 `koanf:"search_tolerance"`
	SearchFactor    float64 `koanf:"search_factor"`
	CostToNodes     float64 `koanf:"cost_to_nodes"`
	NeighborCap     int     `koanf:"neighbor_cap"`
}

// RepairConfig controls the cleanup applied before routing.
type RepairConfig struct {
	CloseHoles   bool    `koanf:"close_holes"`
	MaxDist      float64 `koanf:"max_dist"`
	MinDist      float64 `koanf:"min_dist"`
	DeadendsOnly bool    `koanf:"deadends_only"`
	FillMinutes  float64 `koanf:"fill_minutes"`
	CutLength    float64 `koanf:"cut_length"` // 0 disables cutting
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxConcurrent  int           `koanf:"max_concurrent"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	CORSOrigin     string        `koanf:"cors_origin"`
}

func defaults() map[string]any {
	return map[string]any{
		"network.space":          "planar",
		"rules.weight":           rules.Meters,
		"rules.search_tolerance": rules.DefaultSearchTolerance,
		"rules.search_factor":    rules.DefaultSearchFactor,
		"rules.cost_to_nodes":    rules.DefaultCostToNodes,
		"rules.neighbor_cap":     rules.DefaultNeighborCap,
		"repair.max_dist":        5.0,
		"repair.deadends_only":   true,
		"server.addr":            ":8080",
		"server.read_timeout":    "10s",
		"server.write_timeout":   "60s",
		"server.request_timeout": "30s",
		"server.max_concurrent":  8,
		"server.max_body_bytes":  10 << 20,
		"workers":                1,
		"log_level":              "info",
		"log_format":             "text",
	}
}

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"space":            "network.space",
	"drop-closed":      "network.drop_closed",
	"minutes-attr":     "network.minutes_attr",
	"remove-isolated":  "network.remove_isolated",
	"direction":        "direction.preset",
	"direction-column": "direction.column",
	"direction-values": "direction.values",
	"speed-column":     "direction.speed_column",
	"minute-columns":   "direction.minute_columns",
	"flat-speed":       "direction.flat_speed",
	"weight":           "rules.weight",
	"search-tolerance": "rules.search_tolerance",
	"search-factor":    "rules.search_factor",
	"cost-to-nodes":    "rules.cost_to_nodes",
	"neighbor-cap":     "rules.neighbor_cap",
	"close-holes":      "repair.close_holes",
	"hole-max-dist":    "repair.max_dist",
	"hole-min-dist":    "repair.min_dist",
	"cut-length":       "repair.cut_length",
	"addr":             "server.addr",
	"max-concurrent":   "server.max_concurrent",
	"cors-origin":      "server.cors_origin",
	"workers":          "workers",
	"log-level":        "log_level",
	"log-format":       "log_format",
}

// Load reads the configuration. path may be empty, in which case
// DefaultFile is used if it exists. flags may be nil; only flags that were
// set explicitly override other sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// ROADNET_SERVER__ADDR -> server.addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and returns all problems found.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Space(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BuildRules(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.DirectionOptions(); err != nil {
		errs = append(errs, err)
	}
	if c.Repair.CloseHoles {
		if err := c.HoleOptions().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Repair.CutLength < 0 {
		errs = append(errs, fmt.Errorf("repair.cut_length must not be negative, got %v", c.Repair.CutLength))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Server.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("server.max_concurrent must be at least 1, got %d", c.Server.MaxConcurrent))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Space returns the parsed coordinate space.
func (c *Config) Space() (geo.Space, error) {
	return geo.ParseSpace(c.Network.Space)
}

// NetworkOptions returns the options for network.New.
func (c *Config) NetworkOptions() []network.Option {
	space, _ := c.Space()
	opts := []network.Option{network.WithSpace(space)}
	if c.Network.DropClosed {
		opts = append(opts, network.WithDropClosed())
	}
	if c.Network.MinutesAttr != "" {
		opts = append(opts, network.WithMinutesAttr(c.Network.MinutesAttr))
	}
	return opts
}

// BuildRules returns the configured rules.
func (c *Config) BuildRules() (rules.Rules, error) {
	r := c.Rules
	return rules.New(r.Weight,
		rules.WithSearchTolerance(r.SearchTolerance),
		rules.WithSearchFactor(r.SearchFactor),
		rules.WithCostToNodes(r.CostToNodes),
		rules.WithNeighborCap(r.NeighborCap),
	)
}

// DirectionOptions returns the direction settings and whether the network
// should be directionalized at all. Fields set alongside a preset override
// the preset's values.
func (c *Config) DirectionOptions() (network.DirectionOptions, bool, error) {
	d := c.Direction
	var opts network.DirectionOptions
	switch d.Preset {
	case "":
		if d.Column == "" {
			return opts, false, nil
		}
	case "custom":
	case "osm":
		opts = network.OSMDirection()
	case "nvdb":
		opts = network.NVDBDirection()
	default:
		return opts, false, fmt.Errorf("unknown direction preset %q (want osm, nvdb or custom)", d.Preset)
	}

	if d.Column != "" {
		opts.Column = d.Column
	}
	if len(d.Values) > 0 {
		opts.Values = d.Values
	}
	// A cost source replaces the preset's cost source entirely.
	if d.SpeedColumn != "" || len(d.MinuteColumns) > 0 || d.FlatSpeed != 0 {
		opts.SpeedColumn = d.SpeedColumn
		opts.MinuteColumns = d.MinuteColumns
		opts.FlatSpeed = d.FlatSpeed
	}
	if opts.Column == "" {
		return opts, false, errors.New("direction.column is required")
	}
	if len(opts.Values) != 3 {
		return opts, false, fmt.Errorf("direction.values needs exactly 3 values (both, forward, backward), got %d", len(opts.Values))
	}
	return opts, true, nil
}

// HoleOptions returns the settings for repair.CloseHoles.
func (c *Config) HoleOptions() repair.HoleOptions {
	return repair.HoleOptions{
		MaxDist:      c.Repair.MaxDist,
		MinDist:      c.Repair.MinDist,
		DeadendsOnly: c.Repair.DeadendsOnly,
		FillMinutes:  c.Repair.FillMinutes,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return l, nil
}

// Logger returns a logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
