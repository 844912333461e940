// README: Replays a recorded metrics table through the coverage engine under a grid of settings and prints a summary.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	samples, err := LoadSamples(cfg.MetricsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runner := NewRunner(cfg, samples)
	results, err := runner.RunAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("\n== Summary (%d ticks) ==\n", len(samples))
	fmt.Printf("%-6s %-5s %-7s %-9s %-7s %-6s %-7s\n", "entry", "exit", "window", "threshold", "entries", "exits", "inside")
	for _, r := range results {
		fmt.Printf("%-6d %-5d %-7d %-9.2f %-7d %-6d %6.1f%%\n",
			r.Setting.EntryTicks, r.Setting.ExitTicks, r.Setting.WindowTicks, r.Setting.RateThreshold,
			r.Entries, r.Exits, 100*r.InsideFraction)
	}
}

type Config struct {
	MetricsPath     string
	Interval        time.Duration
	EntryTicks      []int
	ExitTicks       []int
	WindowTicks     []int
	Thresholds      []float64
	PacketSizeBytes int
	Concurrency     int
	Timeout         time.Duration
}

func loadConfig() Config {
	var cfg Config
	var thresholds string
	pflag.StringVar(&cfg.MetricsPath, "metrics", "", "Metrics CSV to replay (required)")
	pflag.DurationVar(&cfg.Interval, "interval", envOrDefaultDuration("RSUMON_INTERVAL", time.Second), "Sampling interval of the recording")
	pflag.IntSliceVar(&cfg.EntryTicks, "entry", []int{3}, "ENTRY debounce counts to try")
	pflag.IntSliceVar(&cfg.ExitTicks, "exit", []int{4}, "EXIT debounce counts to try")
	pflag.IntSliceVar(&cfg.WindowTicks, "window", []int{1, 4}, "Smoothing window lengths to try")
	pflag.StringVar(&thresholds, "threshold", "0", "Comma-separated rate thresholds to try")
	pflag.IntVar(&cfg.PacketSizeBytes, "packet-size", 98, "Nominal packet size in bytes")
	pflag.IntVar(&cfg.Concurrency, "concurrency", 4, "Settings replayed in parallel")
	pflag.DurationVar(&cfg.Timeout, "timeout", time.Minute, "Total timeout")
	pflag.Parse()

	if cfg.MetricsPath == "" {
		fmt.Fprintln(os.Stderr, "--metrics is required")
		pflag.Usage()
		os.Exit(2)
	}
	for _, s := range strings.Split(thresholds, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad --threshold %q\n", s)
			os.Exit(2)
		}
		cfg.Thresholds = append(cfg.Thresholds, v)
	}
	return cfg
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
