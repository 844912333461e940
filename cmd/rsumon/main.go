// README: Entry point; loads config, opens the remote session, wires sinks, runs the sampling loop and status API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rsumon/internal/config"
	httptransport "rsumon/internal/http"
	"rsumon/internal/infra"
	"rsumon/internal/modules/monitor"
	"rsumon/internal/remote"
	"rsumon/internal/sink"
	"rsumon/internal/types"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rsumon exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := infra.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := types.NewID()
	runStart := time.Now()
	slog.Info("starting run", "run_id", runID, "remote", cfg.Remote.Addr(), "output_dir", cfg.Output.Dir)
	if cfg.Sampling.ReadTimeout >= cfg.Sampling.Interval {
		slog.Warn("read timeout is not shorter than the sampling interval; slow reads will delay ticks",
			"read_timeout", cfg.Sampling.ReadTimeout, "interval", cfg.Sampling.Interval)
	}

	session, err := remote.Dial(ctx, cfg.Remote)
	if err != nil {
		return err
	}
	defer session.Close()

	// Clients are opened before the sinks so the deferred sink flush runs
	// while they are still usable.
	var extra sink.Multi
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := sink.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		extra = append(extra, sink.NewPostgres(pool, runID, 0))
	}
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		extra = append(extra, sink.NewRedis(rdb, runID))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		extra = append(extra, sink.NewKafka(infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), runID))
	}
	if cfg.Mail.Enabled() {
		extra = append(extra, sink.NewMail(cfg.Mail, runID))
	}

	csvSink, err := sink.NewCSV(cfg.Output.Dir, runStart)
	if err != nil {
		return err
	}
	mapSink, err := sink.NewHTMLMap(cfg.Output.Dir, runStart)
	if err != nil {
		return err
	}
	status := sink.NewStatus(runID, runStart)
	sinks := append(sink.Multi{csvSink, status}, extra...)
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Error("closing sinks", "error", err)
		}
	}()

	svc := monitor.NewService(session, sinks, mapSink, monitor.Config{
		RxFile:   cfg.Remote.RxFile,
		Sampling: cfg.Sampling,
	}, monitor.WithLogger(logger.With("run_id", string(runID))))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return svc.Run(gctx)
	})
	if cfg.HTTP.Addr != "" {
		server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.NewRouter(status, cfg.HTTP.Token))
		g.Go(func() error { return server.Run(gctx) })
	}

	err = g.Wait()
	slog.Info("run finished",
		"run_id", runID,
		"metrics", csvSink.MetricsPath,
		"events", csvSink.EventsPath,
		"map", mapSink.Path,
	)
	if errors.Is(err, monitor.ErrReconnectExhausted) {
		slog.Error("remote session could not be re-established; outputs flushed up to the last tick")
	}
	return err
}
