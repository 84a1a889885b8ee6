package protection

import (
	"testing"
	"time"

	"github.com/testando12/daytrade-bot/internal/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var noon = time.Date(2025, 6, 11, 12, 0, 0, 0, tradingZone) // a Wednesday

func newTestMachine() *Machine {
	m := NewMachine(Config{InitialCapital: 1000})
	m.now = fixedClock(noon)
	return m
}

func TestCommit_LossStreakMultipliers(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	steps := []struct {
		losses int
		want   float64
	}{
		{1, 1.0}, {2, 1.0}, {3, 0.50}, {4, 0.50}, {5, 0.25}, {6, 0.25}, {7, 0.10}, {8, 0.10},
	}
	capital := 1000.0
	for _, step := range steps {
		capital -= 1
		m.Commit(state, capital, -1)
		if state.ConsecutiveLosses != step.losses {
			t.Fatalf("expected %d losses, got %d", step.losses, state.ConsecutiveLosses)
		}
		if state.SizeMultiplier != step.want {
			t.Errorf("after %d losses multiplier = %.2f, want %.2f", step.losses, state.SizeMultiplier, step.want)
		}
	}
}

func TestCommit_WinResetsStreak(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	for i := 0; i < 4; i++ {
		m.Commit(state, 1000, -1)
	}
	if state.SizeMultiplier != 0.50 {
		t.Fatalf("setup: expected 0.50 multiplier, got %.2f", state.SizeMultiplier)
	}
	m.Commit(state, 1001, 5)
	if state.ConsecutiveLosses != 0 || state.SizeMultiplier != 1.0 {
		t.Errorf("a win should reset streak and multiplier: losses=%d mult=%.2f",
			state.ConsecutiveLosses, state.SizeMultiplier)
	}
}

func TestCommit_PeakIsMonotone(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	m.Commit(state, 1200, 200)
	if state.PeakCapital != 1200 {
		t.Fatalf("peak should rise to 1200, got %.2f", state.PeakCapital)
	}
	m.Commit(state, 1100, -100)
	if state.PeakCapital != 1200 {
		t.Errorf("peak must not move down, got %.2f", state.PeakCapital)
	}
}

func TestCommit_HardStopStickyUntilUnfreeze(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	// 45% drawdown from the 1000 peak.
	m.Commit(state, 550, -450)
	if !state.HardStopped {
		t.Fatal("45%% drawdown should trigger the hard stop")
	}

	gate := m.Evaluate(state, nil, 0.9)
	if gate.Multiplier != 0 {
		t.Errorf("hard stop must zero sizing regardless of momentum, got %.2f", gate.Multiplier)
	}

	// Even a winning cycle must not clear it.
	m.Commit(state, 600, 50)
	if !state.HardStopped {
		t.Error("hard stop must survive a winning cycle")
	}

	m.Unfreeze(state, 600)
	if state.HardStopped {
		t.Error("Unfreeze should clear the hard stop")
	}
	if state.PeakCapital != 600 {
		t.Errorf("Unfreeze should rebase the peak on current capital, got %.2f", state.PeakCapital)
	}
	if gate := m.Evaluate(state, nil, 0); gate.Multiplier != 1.0 {
		t.Errorf("after unfreeze sizing should be full, got %.2f", gate.Multiplier)
	}
}

func TestCommit_HardStopPausesAndFreezesStreak(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	m.Commit(state, 900, -100)
	m.Commit(state, 800, -100)
	m.Commit(state, 700, -100)
	multiplier := state.SizeMultiplier

	// 45% drawdown trips the hard stop and pauses trading.
	m.Commit(state, 550, -150)
	if !state.HardStopped || !state.Paused {
		t.Fatalf("hard stop should pause trading: %+v", state)
	}

	// A winning cycle while stopped changes nothing.
	m.Commit(state, 600, 50)
	if !state.Paused {
		t.Error("a winning cycle must not clear the pause while hard stopped")
	}
	if state.SizeMultiplier != multiplier {
		t.Errorf("the size multiplier must not move while hard stopped: got %.2f, had %.2f",
			state.SizeMultiplier, multiplier)
	}
	if state.ConsecutiveLosses != 3 {
		t.Errorf("the loss streak must freeze while hard stopped, got %d", state.ConsecutiveLosses)
	}
}

func TestEvaluate_DailyBudgetPausesDay(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	// 120 lost today: past the 10% of 1000 budget.
	today := []model.CycleRecord{
		{Timestamp: noon.Add(-2 * time.Hour), PnL: -70},
		{Timestamp: noon.Add(-1 * time.Hour), PnL: -50},
	}
	gate := m.Evaluate(state, today, 0.1)
	if gate.Multiplier != 0 {
		t.Errorf("blown daily budget with weak momentum should pause, got %.2f", gate.Multiplier)
	}
	if !state.Paused || state.PauseReason == "" {
		t.Error("state should record the pause and its reason")
	}
}

func TestEvaluate_MomentumResumesAtHalfSize(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	today := []model.CycleRecord{{Timestamp: noon.Add(-time.Hour), PnL: -150}}
	gate := m.Evaluate(state, today, 0.60)
	if gate.Multiplier != 0.5 {
		t.Errorf("strong momentum should resume a paused day at half size, got %.2f", gate.Multiplier)
	}
	if state.Paused {
		t.Error("resume should clear the pause flag")
	}
}

func TestEvaluate_YesterdayLossesDoNotCount(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	lastWeek := []model.CycleRecord{{Timestamp: noon.AddDate(0, 0, -8), PnL: -500}}
	gate := m.Evaluate(state, lastWeek, 0)
	if gate.Multiplier != 1.0 {
		t.Errorf("losses outside the windows should not gate sizing, got %.2f (%s)", gate.Multiplier, gate.Reason)
	}
}

func TestEvaluate_WeeklyBudgetQuartersSize(t *testing.T) {
	m := newTestMachine()
	state := model.NewProtectionState(1000)

	// 160 lost on Monday of the current week: past the 15% weekly budget but
	// not today's daily budget.
	monday := []model.CycleRecord{{Timestamp: noon.AddDate(0, 0, -2), PnL: -160}}
	gate := m.Evaluate(state, monday, 0)
	if gate.Multiplier != 0.25 {
		t.Errorf("blown weekly budget should cap sizing at 0.25, got %.2f (%s)", gate.Multiplier, gate.Reason)
	}
}

func TestUpdateTrailingHighs(t *testing.T) {
	state := model.NewProtectionState(1000)
	positions := map[string]model.Position{
		"BTC-USD": {Amount: 100},
		"ETH-USD": {Amount: 50},
	}

	UpdateTrailingHighs(state, positions, map[string]float64{"BTC-USD": 50000, "ETH-USD": 3000})
	UpdateTrailingHighs(state, positions, map[string]float64{"BTC-USD": 52000, "ETH-USD": 2900})
	if state.TrailingHighs["BTC-USD"] != 52000 {
		t.Errorf("high should ratchet up to 52000, got %.0f", state.TrailingHighs["BTC-USD"])
	}
	if state.TrailingHighs["ETH-USD"] != 3000 {
		t.Errorf("high should hold at 3000 on a dip, got %.0f", state.TrailingHighs["ETH-USD"])
	}

	delete(positions, "ETH-USD")
	UpdateTrailingHighs(state, positions, map[string]float64{"BTC-USD": 51000})
	if _, ok := state.TrailingHighs["ETH-USD"]; ok {
		t.Error("closed position should drop its watermark")
	}
}
