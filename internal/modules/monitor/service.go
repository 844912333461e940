// README: Sampling loop: one tick per interval, concurrent remote reads, engine step, sink fan-out, reconnect on session loss.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/remote"
)

type Service struct {
	reader Reader
	sink   Sink
	mapper MapRenderer
	cfg    Config
	clock  quartz.Clock
	log    *slog.Logger

	engine *coverage.Engine
	events []coverage.CoverageEvent
	// stalled counts consecutive ticks in which every read timed out.
	stalled int
}

type Option func(*Service)

func WithClock(c quartz.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(reader Reader, sink Sink, mapper MapRenderer, cfg Config, opts ...Option) *Service {
	s := &Service{
		reader: reader,
		sink:   sink,
		mapper: mapper,
		cfg:    cfg,
		clock:  quartz.NewReal(),
		log:    slog.Default(),
		engine: coverage.NewEngine(cfg.engineConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples until ctx is cancelled or the remote session cannot be
// re-established. A cancelled ctx lets the in-flight tick finish and
// returns nil.
func (s *Service) Run(ctx context.Context) error {
	s.prime(ctx)

	ticker := s.clock.NewTicker(s.cfg.Sampling.Interval, "monitor", "tick")
	defer ticker.Stop()

	s.log.Info("sampling started",
		"rx_file", s.cfg.RxFile,
		"interval", s.cfg.Sampling.Interval,
		"entry_ticks", s.cfg.Sampling.EntryTicks,
		"exit_ticks", s.cfg.Sampling.ExitTicks,
		"window_ticks", s.cfg.Sampling.WindowTicks,
	)

	for {
		select {
		case <-ctx.Done():
			st := s.engine.State()
			s.log.Info("sampling stopped", "ticks", st.Ticks, "state", st.Coverage, "events", len(s.events))
			return nil
		case <-ticker.C:
			if !s.tick(ctx) {
				continue
			}
			if err := s.reconnect(ctx); err != nil {
				return err
			}
			s.stalled = 0
		}
	}
}

func (s *Service) prime(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.Sampling.ReadTimeout)
	defer cancel()
	size, err := s.reader.FileSize(readCtx, s.cfg.RxFile)
	if err != nil {
		s.log.Warn("initial size read failed; first delta will be 0", "error", err)
		return
	}
	s.engine.Prime(&size)
}

// tick runs one sampling iteration and reports whether the remote session
// was lost during it.
func (s *Service) tick(ctx context.Context) (sessionLost bool) {
	// Reads and emits outlive a stop signal so the tick is never half-committed;
	// each is bounded by its own timeout instead.
	tickCtx := context.WithoutCancel(ctx)
	sample, sizeErr, fixErr := s.sample(tickCtx)

	if sizeErr != nil {
		s.log.Warn("size read failed", "path", s.cfg.RxFile, "error", sizeErr)
	}
	if fixErr != nil {
		s.log.Warn("position fix failed", "error", fixErr)
	}

	rec, evt := s.engine.Step(sample)
	s.log.Debug("tick",
		"size", rec.FileSize,
		"delta", rec.DeltaBytes,
		"rate", rec.Rate,
		"active", rec.Active,
		"lat", rec.Lat,
		"lon", rec.Lng,
		"speed_mph", rec.SpeedMph,
	)
	emitCtx, cancel := context.WithTimeout(tickCtx, s.cfg.Sampling.SinkTimeout)
	err := s.sink.EmitMetric(emitCtx, rec)
	cancel()
	if err != nil {
		s.log.Error("emit metric failed", "error", err)
	}
	if evt != nil {
		s.handleEvent(tickCtx, *evt)
	}

	if errors.Is(sizeErr, remote.ErrSessionLost) || errors.Is(fixErr, remote.ErrSessionLost) {
		return true
	}
	return s.stall(sizeErr, fixErr)
}

// stall tracks ticks where both reads ran into their timeout. A link that
// stops answering without resetting looks like this, so after StallTicks
// such ticks in a row it is treated as lost.
func (s *Service) stall(sizeErr, fixErr error) bool {
	if !errors.Is(sizeErr, context.DeadlineExceeded) || !errors.Is(fixErr, context.DeadlineExceeded) {
		s.stalled = 0
		return false
	}
	s.stalled++
	if s.stalled < s.cfg.Sampling.StallTicks {
		return false
	}
	s.log.Error("remote reads stalled; treating session as lost", "ticks", s.stalled)
	return true
}

// sample issues both remote reads concurrently, each under its own timeout.
func (s *Service) sample(ctx context.Context) (coverage.Sample, error, error) {
	sample := coverage.Sample{Time: s.clock.Now()}
	var sizeErr, fixErr error

	var g errgroup.Group
	g.Go(func() error {
		readCtx, cancel := context.WithTimeout(ctx, s.cfg.Sampling.ReadTimeout)
		defer cancel()
		size, err := s.reader.FileSize(readCtx, s.cfg.RxFile)
		if err != nil {
			sizeErr = err
			return nil
		}
		sample.Size = &size
		return nil
	})
	g.Go(func() error {
		readCtx, cancel := context.WithTimeout(ctx, s.cfg.Sampling.ReadTimeout)
		defer cancel()
		fix, err := s.reader.PositionFix(readCtx)
		if err != nil {
			fixErr = err
			return nil
		}
		sample.Fix = &fix
		return nil
	})
	_ = g.Wait()

	return sample, sizeErr, fixErr
}

func (s *Service) handleEvent(ctx context.Context, evt coverage.CoverageEvent) {
	s.log.Info("coverage event",
		"type", evt.Type,
		"reason", evt.Reason,
		"lat", evt.Lat,
		"lon", evt.Lng,
		"at", evt.Timestamp,
	)
	s.events = append(s.events, evt)
	emitCtx, cancel := context.WithTimeout(ctx, s.cfg.Sampling.SinkTimeout)
	err := s.sink.EmitEvent(emitCtx, evt)
	cancel()
	if err != nil {
		s.log.Error("emit event failed", "type", evt.Type, "error", err)
	}

	if _, ok := evt.Position(); !ok || s.mapper == nil {
		return
	}
	if err := s.mapper.Render(locatedEvents(s.events)); err != nil {
		s.log.Error("map render failed", "error", err)
	}
}

func locatedEvents(events []coverage.CoverageEvent) []coverage.CoverageEvent {
	out := make([]coverage.CoverageEvent, 0, len(events))
	for _, e := range events {
		if _, ok := e.Position(); ok {
			out = append(out, e)
		}
	}
	return out
}

// reconnect re-dials with exponential backoff, ReconnectAttempts times at
// most. A cancelled ctx ends the attempts without error.
func (s *Service) reconnect(ctx context.Context) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.Sampling.ReconnectBackoff
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.Sampling.ReconnectAttempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		s.log.Warn("remote session lost; reconnecting", "attempt", attempt, "max", s.cfg.Sampling.ReconnectAttempts)
		return s.reader.Reconnect(ctx)
	}
	notify := func(err error, wait time.Duration) {
		s.log.Error("reconnect failed", "attempt", attempt, "retry_in", wait, "error", err)
	}

	err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clock: s.clock})
	if err == nil {
		s.log.Info("remote session re-established", "attempts", attempt)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, attempt, err)
}

// clockTimer adapts a quartz clock to backoff.Timer.
type clockTimer struct {
	clock quartz.Clock
	timer *quartz.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d, "monitor", "reconnect")
		return
	}
	t.timer.Reset(d, "monitor", "reconnect")
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
