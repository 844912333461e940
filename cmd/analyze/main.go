// README: Offline analysis of a logged run: distance features, range profiles, optional elevation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"rsumon/internal/infra"
	"rsumon/internal/maps"
	"rsumon/internal/modules/analysis"
)

type Config struct {
	MetricsPath  string
	EventsPath   string
	OutDir       string
	BinM         float64
	RSUs         []string
	RSUJSON      string
	AddElevation bool
	ElevCache    string
	ElevRound    int
	UnionProfile bool
	MapsAPIKey   string
	LogLevel     string
}

func main() {
	cfg := loadConfig()
	logger, closer := infra.NewLogger(cfg.LogLevel, "")
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, cfg)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		stop()
		os.Exit(1)
	}
	fmt.Printf("metrics=%d events=%d\n", rep.Metrics, rep.Events)
	for _, p := range rep.Written {
		fmt.Println("wrote", p)
	}
}

func run(ctx context.Context, cfg Config) (analysis.Report, error) {
	var rsus []analysis.RSU
	var err error
	if cfg.RSUJSON != "" {
		rsus, err = analysis.LoadRSUs(cfg.RSUJSON)
	} else {
		rsus, err = analysis.ParseRSUs(cfg.RSUs)
	}
	if err != nil {
		return analysis.Report{}, err
	}

	opts := analysis.Options{
		MetricsPath:        cfg.MetricsPath,
		EventsPath:         cfg.EventsPath,
		OutDir:             cfg.OutDir,
		BinM:               cfg.BinM,
		RSUs:               rsus,
		UnionProfile:       cfg.UnionProfile,
		ElevationCachePath: cfg.ElevCache,
		ElevationRound:     cfg.ElevRound,
	}
	if cfg.AddElevation {
		if cfg.MapsAPIKey == "" {
			return analysis.Report{}, fmt.Errorf("--add-elevation needs --maps-api-key or RSUMON_MAPS_API_KEY")
		}
		svc, err := maps.NewElevationService(cfg.MapsAPIKey)
		if err != nil {
			return analysis.Report{}, err
		}
		opts.Elevator = svc
	}
	return analysis.Run(ctx, opts)
}

func loadConfig() Config {
	var cfg Config
	pflag.StringVar(&cfg.MetricsPath, "metrics", "", "Metrics CSV of the run (required)")
	pflag.StringVar(&cfg.EventsPath, "events", "", "Events CSV of the run (default: sibling events_*.csv)")
	pflag.StringVar(&cfg.OutDir, "out-dir", "processed", "Output folder for processed files")
	pflag.Float64Var(&cfg.BinM, "bin-m", analysis.DefaultBinM, "Distance bin size in meters")
	pflag.StringArrayVar(&cfg.RSUs, "rsu", nil, `Repeatable: "RSU1:lat,lon"`)
	pflag.StringVar(&cfg.RSUJSON, "rsu-json", "", `JSON file with {"rsus":[{"id","lat","lon"}]}`)
	pflag.BoolVar(&cfg.AddElevation, "add-elevation", false, "Add elevation_m using the Google Maps Elevation API")
	pflag.StringVar(&cfg.ElevCache, "elev-cache", filepath.Join("cache", "elevation_cache.csv"), "Cache CSV to reduce API calls")
	pflag.IntVar(&cfg.ElevRound, "elev-round", 5, "Round decimals for lat/lon caching")
	pflag.BoolVar(&cfg.UnionProfile, "write-union-profile", false, "Also write a union profile (min distance across RSUs)")
	pflag.StringVar(&cfg.MapsAPIKey, "maps-api-key", os.Getenv("RSUMON_MAPS_API_KEY"), "Google Maps API key")
	pflag.StringVar(&cfg.LogLevel, "log-level", envOrDefault("RSUMON_LOG_LEVEL", "info"), "debug|info|warn|error")
	pflag.Parse()

	if cfg.MetricsPath == "" {
		fmt.Fprintln(os.Stderr, "--metrics is required")
		pflag.Usage()
		os.Exit(2)
	}
	if cfg.EventsPath == "" {
		cfg.EventsPath = siblingEvents(cfg.MetricsPath)
	}
	return cfg
}

// siblingEvents maps metrics_<stamp>.csv to events_<stamp>.csv and
// metrics.csv to events.csv in the same folder.
func siblingEvents(metricsPath string) string {
	dir, name := filepath.Split(metricsPath)
	if rest, ok := strings.CutPrefix(name, "metrics"); ok {
		return filepath.Join(dir, "events"+rest)
	}
	return filepath.Join(dir, "events.csv")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
