// Package scheduler runs trading cycles on a cron schedule and serves the
// Telegram command surface.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/testando12/daytrade-bot/internal/engine"
	"github.com/testando12/daytrade-bot/internal/notifier"
)

// Scheduler manages the cron loop around the cycle runner.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   *engine.Runner
	Notifier *notifier.TelegramNotifier
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner *engine.Runner, tn *notifier.TelegramNotifier) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Notifier: tn,
		Ctx:      ctx,
	}
}

// Register schedules the cycle task.
func (s *Scheduler) Register(cycleCron string) error {
	if _, err := s.Cron.AddFunc(cycleCron, s.cycleTask); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Info().Msg("scheduler stopped")
}

// RunCycleNow executes a cycle immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunCycleNow() {
	s.cycleTask()
}

func (s *Scheduler) cycleTask() {
	report, err := s.Runner.RunCycle(s.Ctx)
	if err != nil {
		log.Error().Err(err).Msg("cycle failed")
		s.trySend(fmt.Sprintf("❌ Ciclo falhou: %v", err))
		return
	}
	if report == nil {
		return
	}

	msg := notifier.FormatCycleReport(report.Record, report.Risk, report.Protection,
		report.Allocation, report.Plan, report.Metrics)
	msg += "\n" + notifier.FormatRanking(report.Momentum)
	if report.Gate.Reason != "" {
		msg += fmt.Sprintf("\n🛡 Proteção: %s (x%.2f)", report.Gate.Reason, report.Gate.Multiplier)
	}
	s.trySend(msg)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/cycle":
		go s.cycleTask()
		return "▶️ Ciclo iniciado"
	case "/status":
		state, perf := s.Runner.Status()
		return notifier.FormatStatus(&state, &perf)
	case "/pause":
		s.Runner.Pause()
		return "⏸ Auto-trading pausado"
	case "/resume":
		s.Runner.Resume()
		return "▶️ Auto-trading retomado"
	case "/unfreeze":
		s.Runner.Unfreeze()
		return "🔓 Hard stop liberado, pico de capital rebaseado"
	case "/forecast":
		return formatForecasts(s.Runner.Forecasts(5))
	case "/reset":
		s.Runner.Reset()
		return "♻️ Estado zerado, capital de volta ao inicial"
	default:
		return "Comandos:\n• /status\n• /cycle\n• /pause\n• /resume\n• /unfreeze\n• /forecast\n• /reset"
	}
}

func formatForecasts(forecasts []engine.Forecast) string {
	if len(forecasts) == 0 {
		return "Sem dados ainda, rode um ciclo primeiro"
	}
	var b strings.Builder
	b.WriteString("🔮 <b>Projeções (5 candles)</b>\n\n")
	for _, f := range forecasts {
		b.WriteString(fmt.Sprintf("%s: %.2f → reg %.2f (±%.2f) | ema %.2f\n",
			f.Asset, f.Current, f.Regression, f.ResidualStd, f.EMA))
	}
	return b.String()
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
