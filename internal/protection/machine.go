// Package protection implements the capital protection state machine: the
// hard stop on deep drawdown, the loss-streak size multipliers and the smart
// pause on daily and weekly loss budgets. It mutates a ProtectionState owned
// by the cycle orchestrator; day and week boundaries follow the São Paulo
// trading day (UTC-3).
package protection

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/testando12/daytrade-bot/internal/model"
)

// tradingZone anchors the daily and weekly budget windows.
var tradingZone = time.FixedZone("UTC-3", -3*60*60)

// Config holds the protection thresholds.
type Config struct {
	// InitialCapital anchors the daily and weekly loss budgets.
	InitialCapital float64 `yaml:"initial_capital" default:"1000"`

	// HardStopDrawdown freezes all trading when capital falls this far below
	// its peak. Only a manual Unfreeze clears it.
	HardStopDrawdown float64 `yaml:"hard_stop_drawdown" default:"0.40"`

	// DailyLossBudget and WeeklyLossBudget are fractions of initial capital.
	DailyLossBudget  float64 `yaml:"daily_loss_budget" default:"0.10"`
	WeeklyLossBudget float64 `yaml:"weekly_loss_budget" default:"0.15"`

	// ResumeMomentum lets a paused day resume at half size when the average
	// momentum of the top assets clears this bar.
	ResumeMomentum float64 `yaml:"resume_momentum" default:"0.45"`
}

func (c Config) withDefaults() Config {
	if c.InitialCapital == 0 {
		c.InitialCapital = 1000
	}
	if c.HardStopDrawdown == 0 {
		c.HardStopDrawdown = 0.40
	}
	if c.DailyLossBudget == 0 {
		c.DailyLossBudget = 0.10
	}
	if c.WeeklyLossBudget == 0 {
		c.WeeklyLossBudget = 0.15
	}
	if c.ResumeMomentum == 0 {
		c.ResumeMomentum = 0.45
	}
	return c
}

// Machine evaluates and advances the protection state.
type Machine struct {
	cfg Config
	now func() time.Time
}

// NewMachine creates a machine with the given config.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults(), now: time.Now}
}

// Gate is the pre-cycle sizing decision.
type Gate struct {
	Multiplier float64
	Reason     string
}

// Evaluate decides the size multiplier for the coming cycle. Hard stop wins
// over everything; a blown daily budget pauses the day unless momentum argues
// for a half-size resume; a blown weekly budget caps size at a quarter.
// Otherwise the loss-streak multiplier carried in the state applies.
func (m *Machine) Evaluate(state *model.ProtectionState, history []model.CycleRecord, avgTopMomentum float64) Gate {
	if state.HardStopped {
		return Gate{Multiplier: 0, Reason: "hard stop"}
	}

	now := m.now().In(tradingZone)
	dayLoss := lossSince(history, startOfDay(now))
	weekLoss := lossSince(history, startOfWeek(now))

	if dayLoss >= m.cfg.InitialCapital*m.cfg.DailyLossBudget {
		if avgTopMomentum > m.cfg.ResumeMomentum {
			state.Paused = false
			state.PauseReason = ""
			return Gate{Multiplier: 0.5 * state.SizeMultiplier, Reason: "daily budget blown, momentum resume at half size"}
		}
		state.Paused = true
		state.PauseReason = fmt.Sprintf("daily loss %.2f over budget", dayLoss)
		return Gate{Multiplier: 0, Reason: state.PauseReason}
	}

	if state.Paused {
		state.Paused = false
		state.PauseReason = ""
	}

	if weekLoss >= m.cfg.InitialCapital*m.cfg.WeeklyLossBudget {
		mult := 0.25
		if state.SizeMultiplier < mult {
			mult = state.SizeMultiplier
		}
		return Gate{Multiplier: mult, Reason: fmt.Sprintf("weekly loss %.2f over budget", weekLoss)}
	}

	return Gate{Multiplier: state.SizeMultiplier}
}

// Commit advances the state after a cycle's PnL is known. The peak only moves
// up; a drawdown past the hard-stop threshold freezes trading until Unfreeze.
// A winning cycle clears the loss streak and restores full size; a losing one
// extends the streak and ratchets the multiplier down.
func (m *Machine) Commit(state *model.ProtectionState, capital, pnl float64) {
	if capital > state.PeakCapital {
		state.PeakCapital = capital
	}

	if !state.HardStopped && state.PeakCapital > 0 {
		drawdown := (state.PeakCapital - capital) / state.PeakCapital
		if drawdown >= m.cfg.HardStopDrawdown {
			state.HardStopped = true
			state.Paused = true
			state.PauseReason = fmt.Sprintf("drawdown %.1f%% from peak %.2f", drawdown*100, state.PeakCapital)
			log.Error().
				Float64("drawdown", drawdown).
				Float64("peak", state.PeakCapital).
				Float64("capital", capital).
				Msg("hard stop triggered")
		}
	}

	// Nothing below matters while hard stopped; only Unfreeze reopens.
	if state.HardStopped {
		state.UpdatedAt = m.now()
		return
	}

	if pnl > 0 {
		state.ConsecutiveLosses = 0
		state.SizeMultiplier = 1.0
		state.Paused = false
		state.PauseReason = ""
	} else if pnl < 0 {
		state.ConsecutiveLosses++
		state.SizeMultiplier = streakMultiplier(state.ConsecutiveLosses)
	}
	state.UpdatedAt = m.now()
}

// Unfreeze clears a hard stop and rebases the peak on current capital so the
// drawdown check starts fresh.
func (m *Machine) Unfreeze(state *model.ProtectionState, capital float64) {
	if !state.HardStopped {
		return
	}
	state.HardStopped = false
	state.Paused = false
	state.PauseReason = ""
	state.ConsecutiveLosses = 0
	state.SizeMultiplier = 1.0
	state.PeakCapital = capital
	state.UpdatedAt = m.now()
	log.Info().Float64("capital", capital).Msg("hard stop cleared, peak rebased")
}

// UpdateTrailingHighs raises each held asset's watermark to its current price
// and drops watermarks for closed positions.
func UpdateTrailingHighs(state *model.ProtectionState, positions map[string]model.Position, prices map[string]float64) {
	if state.TrailingHighs == nil {
		state.TrailingHighs = make(map[string]float64)
	}
	for asset := range state.TrailingHighs {
		if _, held := positions[asset]; !held {
			delete(state.TrailingHighs, asset)
		}
	}
	for asset := range positions {
		p, ok := prices[asset]
		if !ok {
			continue
		}
		if p > state.TrailingHighs[asset] {
			state.TrailingHighs[asset] = p
		}
	}
}

// streakMultiplier steps position sizing down as losses stack up.
func streakMultiplier(losses int) float64 {
	switch {
	case losses >= 7:
		return 0.10
	case losses >= 5:
		return 0.25
	case losses >= 3:
		return 0.50
	default:
		return 1.0
	}
}

// lossSince sums the losses (positive number) of cycles at or after the cutoff.
func lossSince(history []model.CycleRecord, cutoff time.Time) float64 {
	loss := 0.0
	for _, rec := range history {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		if rec.PnL < 0 {
			loss -= rec.PnL
		}
	}
	return loss
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, tradingZone)
}

// startOfWeek returns the most recent Monday midnight in the trading zone.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
