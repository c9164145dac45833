package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bbab/servicecenter/internal/services"
	"github.com/bbab/servicecenter/pkg/logger"
	"github.com/bbab/servicecenter/pkg/mail"
	"github.com/bbab/servicecenter/pkg/metrics"
)

// ForgottenTimerSource provides overdue running timers.
type ForgottenTimerSource interface {
	Forgotten(ctx context.Context, threshold time.Duration) ([]services.ForgottenTimer, error)
}

// TimerSweep periodically scans for running timers that exceeded the alert
// threshold and sends one aggregated notification per sweep. No already-alerted
// state is kept: while a timer stays overdue, every sweep re-sends the alert.
type TimerSweep struct {
	timers     ForgottenTimerSource
	mailer     mail.Mailer
	recipients []string
	baseURL    string
	threshold  time.Duration
	log        *zap.Logger
}

// TimerSweepConfig bundles the alerting sweep settings.
type TimerSweepConfig struct {
	Recipients []string
	BaseURL    string
	Threshold  time.Duration
}

// NewTimerSweep constructs the alerting sweep.
func NewTimerSweep(timers ForgottenTimerSource, mailer mail.Mailer, cfg TimerSweepConfig) (*TimerSweep, error) {
	if timers == nil {
		return nil, errors.New("timer sweep: timer source is required")
	}
	if mailer == nil {
		return nil, errors.New("timer sweep: mailer is required")
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = services.DefaultForgottenThreshold
	}

	return &TimerSweep{
		timers:     timers,
		mailer:     mailer,
		recipients: cfg.Recipients,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		threshold:  threshold,
		log:        logger.WithJob("timer-sweep"),
	}, nil
}

// RunOnce executes one alerting sweep. Shared by the cron schedule and the
// manual trigger endpoint.
func (s *TimerSweep) RunOnce(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	forgotten, err := s.timers.Forgotten(ctx, s.threshold)
	if err != nil {
		s.log.Error("cannot query forgotten timers, aborting tick", zap.Error(err))
		metrics.SweepRuns.WithLabelValues("timers", "failure").Inc()
		return Result{
			Success: false,
			Message: fmt.Sprintf("timer sweep aborted: %v", err),
		}
	}

	if len(forgotten) == 0 {
		metrics.SweepRuns.WithLabelValues("timers", "success").Inc()
		return Result{
			Success: true,
			Message: "no forgotten timers",
			Data:    map[string]any{"count": 0, "notified": false},
		}
	}

	msg := mail.Message{
		To:      s.recipients,
		Subject: fmt.Sprintf("%d timer(s) still running past %s", len(forgotten), s.threshold),
		Body:    s.composeBody(forgotten),
	}

	notified := true
	if err := s.mailer.Send(ctx, msg); err != nil {
		notified = false
		if errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Debug("notification skipped, smtp disabled")
		} else {
			s.log.Error("send forgotten timer alert failed", zap.Error(err))
			metrics.NotificationsSent.WithLabelValues("failure").Inc()
		}
	} else {
		metrics.NotificationsSent.WithLabelValues("success").Inc()
	}

	metrics.SweepRuns.WithLabelValues("timers", "success").Inc()
	s.log.Info("timer sweep finished",
		zap.Int("forgotten", len(forgotten)),
		zap.Bool("notified", notified),
	)

	return Result{
		Success: true,
		Message: fmt.Sprintf("%d forgotten timer(s) found", len(forgotten)),
		Data:    map[string]any{"count": len(forgotten), "notified": notified},
	}
}

// composeBody renders the single aggregated alert listing every overdue timer
// with its elapsed time and a direct link.
func (s *TimerSweep) composeBody(forgotten []services.ForgottenTimer) string {
	var b strings.Builder
	b.WriteString("The following timers have been running longer than ")
	b.WriteString(s.threshold.String())
	b.WriteString(":\n\n")

	for _, item := range forgotten {
		desc := item.Timer.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "- %s — running for %s\n  %s/timers/%s\n",
			desc,
			formatElapsed(item.Elapsed),
			s.baseURL,
			item.Timer.ID,
		)
	}

	b.WriteString("\nStop the timer or adjust the entry if this is intentional.\n")
	return b.String()
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Minute)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", hours, minutes)
}
