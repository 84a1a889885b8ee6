package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testando12/daytrade-bot/internal/exits"
	"github.com/testando12/daytrade-bot/internal/horizon"
	"github.com/testando12/daytrade-bot/internal/marketdata"
	"github.com/testando12/daytrade-bot/internal/model"
	"github.com/testando12/daytrade-bot/internal/momentum"
	"github.com/testando12/daytrade-bot/internal/portfolio"
	"github.com/testando12/daytrade-bot/internal/protection"
	"github.com/testando12/daytrade-bot/internal/recorder"
	"github.com/testando12/daytrade-bot/internal/risk"
	"github.com/testando12/daytrade-bot/internal/store"
)

func trendingSeries(asset string, n int, base, stepPct float64) model.PriceSeries {
	prices := make([]float64, n)
	volumes := make([]float64, n)
	p := base
	for i := 0; i < n; i++ {
		prices[i] = p
		volumes[i] = 1_000_000
		p *= 1 + stepPct
	}
	return model.PriceSeries{Asset: asset, Prices: prices, Volumes: volumes, FetchedAt: time.Now()}
}

func newTestRunner(t *testing.T, dir string, provider marketdata.Provider) *Runner {
	t.Helper()
	fs, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	runner, err := NewRunner(
		Options{
			Assets:         []string{"BTC-USD", "ETH-USD"},
			ReferenceAsset: "BTC-USD",
			InitialCapital: 1000,
			CandleLimit:    60,
		},
		momentum.NewEngine(momentum.Config{}),
		risk.NewEngine(risk.Config{}),
		portfolio.NewAllocator(portfolio.Config{}),
		exits.NewCalculator(exits.Config{}),
		horizon.NewController(horizon.Config{}),
		protection.NewMachine(protection.Config{InitialCapital: 1000}),
		provider,
		fs,
		recorder.NewNoopRecorder(),
	)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	return runner
}

func bullMarket() *marketdata.MockProvider {
	return &marketdata.MockProvider{
		Series: map[string]model.PriceSeries{
			"BTC-USD": trendingSeries("BTC-USD", 60, 50000, 0.01),
			"ETH-USD": trendingSeries("ETH-USD", 60, 3000, 0.008),
		},
	}
}

func TestRunCycle_OpensPositionsInUptrend(t *testing.T) {
	dir := t.TempDir()
	runner := newTestRunner(t, dir, bullMarket())

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report with auto-trading on")
	}
	if report.Record.ID == "" {
		t.Error("cycle record should carry an id")
	}
	if report.Risk.IRQScore >= 0.5 {
		t.Errorf("steady uptrend should be low risk, got %.3f", report.Risk.IRQScore)
	}
	if report.Protection.Level != model.LevelNormal {
		t.Errorf("expected NORMAL protection, got %s", report.Protection.Level)
	}

	state, _ := runner.Status()
	if len(state.Positions) == 0 {
		t.Fatal("strong uptrend should open positions")
	}
	for asset, pos := range state.Positions {
		if pos.Amount <= 0 || pos.EntryPrice <= 0 {
			t.Errorf("%s: malformed position %+v", asset, pos)
		}
	}
	if len(state.Log) == 0 {
		t.Error("opening positions should log trades")
	}

	if _, err := os.Stat(filepath.Join(dir, store.KeyTradeState+".json")); err != nil {
		t.Errorf("trade state should be persisted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, store.KeyPerformance+".json")); err != nil {
		t.Errorf("performance state should be persisted: %v", err)
	}
}

func TestRunCycle_SettlesPnLAcrossCycles(t *testing.T) {
	runner := newTestRunner(t, t.TempDir(), bullMarket())

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	// Positions carried into a still-rising market must earn.
	if report.Record.PnL <= 0 {
		t.Errorf("second cycle in an uptrend should realize positive pnl, got %.4f", report.Record.PnL)
	}
	state, perf := runner.Status()
	if state.Capital <= 1000 {
		t.Errorf("capital should grow, got %.2f", state.Capital)
	}
	if perf.WinCount != 1 {
		t.Errorf("win count = %d, want 1", perf.WinCount)
	}
	if len(runner.LastCycles(10)) != 2 {
		t.Errorf("expected 2 cycle records, got %d", len(runner.LastCycles(10)))
	}
}

func TestRunCycle_PausedSkips(t *testing.T) {
	runner := newTestRunner(t, t.TempDir(), bullMarket())
	runner.Pause()

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report != nil {
		t.Error("paused runner should skip the cycle")
	}

	runner.Resume()
	report, err = runner.RunCycle(context.Background())
	if err != nil || report == nil {
		t.Errorf("resumed runner should trade again: report=%v err=%v", report, err)
	}
}

func TestRunner_RestoresStateAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	runner := newTestRunner(t, dir, bullMarket())
	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	before, _ := runner.Status()

	reborn := newTestRunner(t, dir, bullMarket())
	after, _ := reborn.Status()
	if after.Capital != before.Capital {
		t.Errorf("capital should survive restart: %.2f != %.2f", after.Capital, before.Capital)
	}
	if len(after.Positions) != len(before.Positions) {
		t.Errorf("positions should survive restart: %d != %d", len(after.Positions), len(before.Positions))
	}
	if len(reborn.LastCycles(10)) != 1 {
		t.Error("cycle history should survive restart")
	}
}

func TestForecasts(t *testing.T) {
	runner := newTestRunner(t, t.TempDir(), bullMarket())
	if got := runner.Forecasts(5); len(got) != 0 {
		t.Errorf("no forecasts before the first cycle, got %d", len(got))
	}
	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	forecasts := runner.Forecasts(5)
	if len(forecasts) != 2 {
		t.Fatalf("expected forecasts for both assets, got %d", len(forecasts))
	}
	for _, f := range forecasts {
		if f.Regression <= f.Current {
			t.Errorf("%s: regression forecast on a rising series should exceed the current price: %.2f <= %.2f",
				f.Asset, f.Regression, f.Current)
		}
	}
}

// partialProvider drops one asset from every snapshot, simulating a venue
// that failed to answer for it.
type partialProvider struct {
	inner   marketdata.Provider
	missing string
}

func (p *partialProvider) Name() string { return p.inner.Name() }

func (p *partialProvider) GetSnapshot(ctx context.Context, assets []string, timeframe string, limit int) (model.Snapshot, error) {
	snap, err := p.inner.GetSnapshot(ctx, assets, timeframe, limit)
	if err != nil {
		return nil, err
	}
	delete(snap, p.missing)
	return snap, nil
}

func TestRunCycle_ToleratesPartialSnapshot(t *testing.T) {
	dir := t.TempDir()
	provider := &partialProvider{inner: bullMarket(), missing: "ETH-USD"}
	runner := newTestRunner(t, dir, provider)

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report")
	}
	if _, ok := report.Plan["ETH-USD"]; ok {
		t.Error("missing asset should not appear in the plan")
	}
	if _, ok := runner.state.Positions["ETH-USD"]; ok {
		t.Error("missing asset should not be traded")
	}
	if pos, ok := runner.state.Positions["BTC-USD"]; !ok || pos.Amount <= 0 {
		t.Errorf("covered asset should still be traded, got %+v", runner.state.Positions)
	}
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	runner := newTestRunner(t, dir, bullMarket())

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(runner.state.Positions) == 0 {
		t.Fatal("expected positions before reset")
	}

	runner.Reset()

	state, perf := runner.Status()
	if state.Capital != 1000 || len(state.Positions) != 0 || len(state.Log) != 0 {
		t.Errorf("reset should restore the initial state, got capital %.2f, %d positions, %d log events",
			state.Capital, len(state.Positions), len(state.Log))
	}
	if !state.AutoTrading {
		t.Error("reset should leave auto-trading on")
	}
	if len(perf.Cycles) != 0 || perf.WinCount != 0 {
		t.Errorf("reset should clear performance, got %d cycles and %d wins", len(perf.Cycles), perf.WinCount)
	}
	if got := runner.LastCycles(10); len(got) != 0 {
		t.Errorf("reset should clear history, got %d records", len(got))
	}
}
