// README: Mail sink: one notification per boundary event via nikoksr/notify.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"

	"rsumon/internal/config"
	"rsumon/internal/modules/coverage"
	"rsumon/internal/types"
)

type Mail struct {
	cfg   config.MailConfig
	runID types.ID
	send  func(ctx context.Context, subject, body string) error
}

func NewMail(cfg config.MailConfig, runID types.ID) *Mail {
	m := &Mail{cfg: cfg, runID: runID}
	m.send = m.sendSMTP
	return m
}

func (m *Mail) EmitMetric(context.Context, coverage.MetricRecord) error { return nil }

func (m *Mail) EmitEvent(ctx context.Context, evt coverage.CoverageEvent) error {
	subject := fmt.Sprintf("[rsumon] %s at %s", evt.Type, formatTime(evt.Timestamp))
	location := "unknown"
	if p, ok := evt.Position(); ok {
		location = fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
	}
	body := fmt.Sprintf("Run: %s\nEvent: %s\nReason: %s\nLocation: %s\nTime: %s",
		m.runID, evt.Type, evt.Reason, location, formatTime(evt.Timestamp))

	if err := m.send(ctx, subject, body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	slog.Info("event notification sent", "type", evt.Type, "recipients", len(m.cfg.Recipients))
	return nil
}

func (m *Mail) sendSMTP(ctx context.Context, subject, body string) error {
	// Fresh service per send; notify accumulates receivers across AddReceivers calls.
	svc := mail.New(m.cfg.User, fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port))
	svc.AuthenticateSMTP("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	svc.AddReceivers(m.cfg.Recipients...)

	n := notify.New()
	n.UseServices(svc)
	return n.Send(ctx, subject, body)
}
