// Package engine orchestrates one trading cycle: fetch data, settle PnL,
// check exits, assess risk, split capital across horizons, size positions and
// persist everything. The Runner is the single writer of the trading state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/testando12/daytrade-bot/internal/exits"
	"github.com/testando12/daytrade-bot/internal/history"
	"github.com/testando12/daytrade-bot/internal/horizon"
	"github.com/testando12/daytrade-bot/internal/marketdata"
	"github.com/testando12/daytrade-bot/internal/model"
	"github.com/testando12/daytrade-bot/internal/momentum"
	"github.com/testando12/daytrade-bot/internal/portfolio"
	"github.com/testando12/daytrade-bot/internal/protection"
	"github.com/testando12/daytrade-bot/internal/recorder"
	"github.com/testando12/daytrade-bot/internal/risk"
	"github.com/testando12/daytrade-bot/internal/signalmath"
	"github.com/testando12/daytrade-bot/internal/store"
)

// Options configures the runner beyond its component engines.
type Options struct {
	Assets         []string
	ReferenceAsset string  // IRQ reference, usually BTC-USD
	InitialCapital float64
	CandleLimit    int // candles fetched per series
	MaxTradesHour  int
	MaxTradesDay   int
	MaxLogEvents   int
	TopAssets      int // ranking size used for the pause-resume momentum test
}

func (o Options) withDefaults() Options {
	if len(o.Assets) == 0 {
		o.Assets = []string{"BTC-USD", "ETH-USD", "SOL-USD"}
	}
	if o.ReferenceAsset == "" {
		o.ReferenceAsset = o.Assets[0]
		for _, a := range o.Assets {
			if a == "BTC-USD" {
				o.ReferenceAsset = a
				break
			}
		}
	}
	if o.InitialCapital == 0 {
		o.InitialCapital = 1000
	}
	if o.CandleLimit == 0 {
		o.CandleLimit = 100
	}
	if o.MaxTradesHour == 0 {
		o.MaxTradesHour = 20
	}
	if o.MaxTradesDay == 0 {
		o.MaxTradesDay = 100
	}
	if o.MaxLogEvents == 0 {
		o.MaxLogEvents = 200
	}
	if o.TopAssets == 0 {
		o.TopAssets = 3
	}
	return o
}

// Runner drives trading cycles. All state mutation happens under its mutex.
type Runner struct {
	mu sync.Mutex

	opts       Options
	momentum   *momentum.Engine
	risk       *risk.Engine
	allocator  *portfolio.Allocator
	exits      *exits.Calculator
	horizon    *horizon.Controller
	protection *protection.Machine
	provider   marketdata.Provider
	store      *store.FileStore
	recorder   recorder.Recorder

	state   *model.TradeState
	perf    *model.PerformanceState
	history *history.Ring

	// Per-horizon amounts from the last allocation, used to attribute the
	// next cycle's PnL to buckets. In-memory only; after a restart the first
	// cycle's bucket split falls back to the horizon weights.
	lastBuckets map[model.Horizon]map[string]float64
	lastAlloc   model.HorizonAllocation

	// Last medium-horizon snapshot, kept for the forecast command.
	lastSnapshot model.Snapshot
}

// Forecast is a per-asset price projection.
type Forecast struct {
	Asset       string
	Current     float64
	Regression  float64
	EMA         float64
	ResidualStd float64
}

// NewRunner wires the component engines and restores persisted state.
func NewRunner(opts Options, me *momentum.Engine, re *risk.Engine, al *portfolio.Allocator, ec *exits.Calculator, hc *horizon.Controller, pm *protection.Machine, provider marketdata.Provider, fs *store.FileStore, rec recorder.Recorder) (*Runner, error) {
	opts = opts.withDefaults()
	r := &Runner{
		opts:        opts,
		momentum:    me,
		risk:        re,
		allocator:   al,
		exits:       ec,
		horizon:     hc,
		protection:  pm,
		provider:    provider,
		store:       fs,
		recorder:    rec,
		history:     history.NewRing(history.DefaultCapacity),
		lastBuckets: make(map[model.Horizon]map[string]float64),
	}
	if err := r.restore(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) restore() error {
	state := &model.TradeState{}
	err := r.store.Load(store.KeyTradeState, state)
	switch {
	case err == nil:
		if state.Positions == nil {
			state.Positions = make(map[string]model.Position)
		}
		if state.Protection == nil {
			state.Protection = model.NewProtectionState(state.Capital)
		}
		r.state = state
		log.Info().Float64("capital", state.Capital).Int("positions", len(state.Positions)).Msg("trade state restored")
	case errors.Is(err, os.ErrNotExist):
		r.state = &model.TradeState{
			Capital:     r.opts.InitialCapital,
			AutoTrading: true,
			Positions:   make(map[string]model.Position),
			Protection:  model.NewProtectionState(r.opts.InitialCapital),
		}
		log.Info().Float64("capital", r.opts.InitialCapital).Msg("fresh trade state initialized")
	default:
		return fmt.Errorf("load trade state: %w", err)
	}

	perf := &model.PerformanceState{}
	err = r.store.Load(store.KeyPerformance, perf)
	switch {
	case err == nil:
		r.perf = perf
		r.history.Load(perf.Cycles)
	case errors.Is(err, os.ErrNotExist):
		r.perf = &model.PerformanceState{}
	default:
		return fmt.Errorf("load performance state: %w", err)
	}
	return nil
}

// Report carries everything a cycle produced, for formatting and inspection.
type Report struct {
	Record     model.CycleRecord
	Risk       model.RiskAssessment
	Protection model.Protection
	Allocation model.HorizonAllocation
	Plan       model.AllocationPlan
	Metrics    model.PortfolioMetrics
	Momentum   map[string]model.MomentumResult
	Gate       protection.Gate
}

// RunCycle executes one full trading cycle. A nil report with nil error means
// auto-trading is off.
func (r *Runner) RunCycle(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.AutoTrading {
		log.Info().Msg("auto-trading disabled, skipping cycle")
		return nil, nil
	}

	cycleID := uuid.NewString()
	started := time.Now()
	log.Info().Str("cycle", cycleID).Msg("cycle started")

	// 1. Market data for every horizon. Failing one horizon fails the cycle;
	// partial asset coverage within a horizon is fine.
	snaps := make(map[model.Horizon]model.Snapshot, len(model.Horizons))
	for _, h := range model.Horizons {
		snap, err := r.provider.GetSnapshot(ctx, r.opts.Assets, h.Timeframe(), r.opts.CandleLimit)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", h, err)
		}
		snaps[h] = snap
	}

	// 2. Settle the PnL of positions carried from the last cycle.
	pnlByHorizon := r.settlePnL(snaps)
	pnl := pnlByHorizon[model.HorizonFast] + pnlByHorizon[model.HorizonMedium] + pnlByHorizon[model.HorizonSlow]
	r.state.Capital += pnl
	r.state.TotalPnL += pnl

	// 3. Advance the protection state with the realized PnL.
	r.protection.Commit(r.state.Protection, r.state.Capital, pnl)

	// 4. Momentum on every horizon; the medium ranking drives the
	// pause-resume test.
	results := make(map[model.Horizon]map[string]model.MomentumResult, len(model.Horizons))
	for _, h := range model.Horizons {
		results[h] = r.momentum.ScoreAll(snaps[h])
	}
	merged := mergeResults(results)
	avgTop := r.avgTopMomentum(results[model.HorizonMedium])

	// 5. Sizing gate: hard stop, daily and weekly budgets, loss streak.
	gate := r.protection.Evaluate(r.state.Protection, r.history.All(), avgTop)
	if gate.Reason != "" {
		log.Warn().Str("reason", gate.Reason).Float64("multiplier", gate.Multiplier).Msg("protection gate active")
	}

	// 6. Risk off the reference asset's fast series.
	assessment := r.assessRisk(snaps[model.HorizonFast])
	prot := r.risk.ProtectionFor(assessment.IRQScore)

	// 7. Stop-loss and take-profit exits run before fresh allocation so the
	// freed capital is available this cycle.
	r.checkExits(cycleID, snaps)

	// 8. Capital split across horizons, then per-horizon sizing.
	alloc := r.horizon.Rebalance(r.history.All(), assessment.IRQScore, r.state.Protection.ConsecutiveLosses)
	target, buckets := r.allocateBuckets(results, alloc, assessment.IRQScore, gate.Multiplier)

	// 9. Rebalance against current holdings and apply.
	current := make(map[string]float64, len(r.state.Positions))
	for asset, pos := range r.state.Positions {
		current[asset] = pos.Amount
	}
	plan := r.allocator.Rebalance(target, current, merged, r.state.Capital, assessment.IRQScore, prot)
	r.applyPlan(cycleID, plan, snaps[model.HorizonMedium])
	r.lastBuckets = buckets
	r.lastAlloc = alloc
	r.lastSnapshot = snaps[model.HorizonMedium]

	protection.UpdateTrailingHighs(r.state.Protection, r.state.Positions, lastPrices(snaps[model.HorizonMedium]))

	// 10. Record, persist, report.
	rec := model.CycleRecord{
		ID:        cycleID,
		Timestamp: started,
		PnL:       pnl,
		PnLFast:   pnlByHorizon[model.HorizonFast],
		PnLMedium: pnlByHorizon[model.HorizonMedium],
		PnLSlow:   pnlByHorizon[model.HorizonSlow],
		Capital:   r.state.Capital,
		IRQ:       assessment.IRQScore,
	}
	r.history.Append(rec)
	r.updatePerformance(rec)
	r.state.LastCycle = started

	metrics := portfolio.Metrics(plan, r.state.Capital)
	r.persist()
	if err := r.recorder.RecordCycle(&recorder.CycleSnapshot{
		Record:     rec,
		Risk:       assessment,
		Protection: prot,
		Allocation: alloc,
		Metrics:    metrics,
		Multiplier: gate.Multiplier,
	}); err != nil {
		log.Error().Err(err).Msg("record cycle")
	}

	log.Info().
		Str("cycle", cycleID).
		Float64("pnl", pnl).
		Float64("capital", r.state.Capital).
		Float64("irq", assessment.IRQScore).
		Str("protection", string(prot.Level)).
		Dur("elapsed", time.Since(started)).
		Msg("cycle finished")

	return &Report{
		Record:     rec,
		Risk:       assessment,
		Protection: prot,
		Allocation: alloc,
		Plan:       plan,
		Metrics:    metrics,
		Momentum:   merged,
		Gate:       gate,
	}, nil
}

// settlePnL marks each carried position to the latest candle return of the
// horizon it was funded from. Unknown bucket attribution (first cycle after a
// restart) splits each position by the last horizon weights.
func (r *Runner) settlePnL(snaps map[model.Horizon]model.Snapshot) map[model.Horizon]float64 {
	pnl := map[model.Horizon]float64{}
	if len(r.state.Positions) == 0 {
		return pnl
	}

	buckets := r.lastBuckets
	if len(buckets) == 0 {
		alloc := r.lastAlloc
		if alloc.Fast+alloc.Medium+alloc.Slow == 0 {
			alloc = r.horizon.Base()
		}
		buckets = make(map[model.Horizon]map[string]float64)
		for _, h := range model.Horizons {
			buckets[h] = make(map[string]float64)
			for asset, pos := range r.state.Positions {
				buckets[h][asset] = pos.Amount * alloc.Weight(h)
			}
		}
	}

	for _, h := range model.Horizons {
		for asset, amount := range buckets[h] {
			if _, held := r.state.Positions[asset]; !held {
				continue
			}
			series, ok := snaps[h][asset]
			if !ok || len(series.Prices) < 2 {
				continue
			}
			prev := series.Prices[len(series.Prices)-2]
			last := series.Prices[len(series.Prices)-1]
			if prev == 0 {
				continue
			}
			pnl[h] += amount * (last - prev) / prev
		}
	}
	return pnl
}

// assessRisk computes the IRQ from the reference asset. A missing reference
// series yields a neutral assessment.
func (r *Runner) assessRisk(snap model.Snapshot) model.RiskAssessment {
	series, ok := snap[r.opts.ReferenceAsset]
	if !ok {
		log.Warn().Str("asset", r.opts.ReferenceAsset).Msg("reference asset missing, neutral risk assumed")
		return model.RiskAssessment{RSI: 50}
	}
	return r.risk.IRQ(series.Prices, series.Volumes)
}

// allocateBuckets runs the allocator once per horizon on its slice of capital
// and merges the per-horizon amounts into one target per asset.
func (r *Runner) allocateBuckets(results map[model.Horizon]map[string]model.MomentumResult, alloc model.HorizonAllocation, irq, multiplier float64) (map[string]float64, map[model.Horizon]map[string]float64) {
	target := make(map[string]float64)
	buckets := make(map[model.Horizon]map[string]float64, len(model.Horizons))
	for _, h := range model.Horizons {
		bucket := r.state.Capital * alloc.Weight(h) * multiplier
		amounts := r.allocator.Allocate(results[h], irq, bucket)
		buckets[h] = amounts
		for asset, amount := range amounts {
			target[asset] += amount
		}
	}
	return target, buckets
}

// checkExits closes positions whose price breached the stop-loss (from entry
// or trailing high) or hit the take-profit.
func (r *Runner) checkExits(cycleID string, snaps map[model.Horizon]model.Snapshot) {
	snap := snaps[model.HorizonMedium]
	for asset, pos := range r.state.Positions {
		series, ok := snap[asset]
		if !ok || len(series.Prices) == 0 || pos.EntryPrice == 0 {
			continue
		}
		price := series.Last()
		th := r.exits.Thresholds(series.Prices, model.HorizonMedium)

		reason := ""
		ret := (price - pos.EntryPrice) / pos.EntryPrice
		if high, ok := r.state.Protection.TrailingHighs[asset]; ok && high > 0 {
			if (high-price)/high >= th.StopLossPct {
				reason = fmt.Sprintf("trailing stop %.1f%% from high %.2f", th.StopLossPct*100, high)
			}
		}
		if reason == "" && ret <= -th.StopLossPct {
			reason = fmt.Sprintf("stop loss %.1f%%", th.StopLossPct*100)
		}
		if reason == "" && ret >= th.TakeProfitPct {
			reason = fmt.Sprintf("take profit %.1f%%", th.TakeProfitPct*100)
		}
		if reason == "" {
			continue
		}

		log.Info().Str("asset", asset).Float64("price", price).Str("reason", reason).Msg("exit triggered")
		r.recordTrade(cycleID, asset, string(model.ActionSell), pos.Amount, price, reason)
		delete(r.state.Positions, asset)
	}
}

// applyPlan executes the BUY and SELL actions of a plan, respecting the trade
// rate limits. HOLD entries just refresh bookkeeping.
func (r *Runner) applyPlan(cycleID string, plan model.AllocationPlan, snap model.Snapshot) {
	hourCount, dayCount := r.recentTrades()
	for asset, pos := range plan {
		price := 0.0
		if series, ok := snap[asset]; ok {
			price = series.Last()
		}

		switch pos.Action {
		case model.ActionBuy, model.ActionSell:
			if hourCount >= r.opts.MaxTradesHour || dayCount >= r.opts.MaxTradesDay {
				log.Warn().Str("asset", asset).Int("hour", hourCount).Int("day", dayCount).Msg("trade limit reached, holding")
				continue
			}
			hourCount++
			dayCount++
			r.recordTrade(cycleID, asset, string(pos.Action), pos.RecommendedAmount, price, fmt.Sprintf("%+.1f%%", pos.ChangePct))
		}

		if pos.RecommendedAmount <= 0 {
			delete(r.state.Positions, asset)
			continue
		}
		entry := price
		if prev, held := r.state.Positions[asset]; held && pos.Action != model.ActionBuy {
			entry = prev.EntryPrice
		}
		pct := 0.0
		if r.state.Capital > 0 {
			pct = pos.RecommendedAmount / r.state.Capital * 100
		}
		r.state.Positions[asset] = model.Position{
			Amount:     pos.RecommendedAmount,
			EntryPrice: entry,
			Pct:        pct,
		}
	}
}

// recentTrades counts executed trades in the last hour and day from the log.
func (r *Runner) recentTrades() (hour, day int) {
	now := time.Now()
	for _, ev := range r.state.Log {
		if ev.Type != string(model.ActionBuy) && ev.Type != string(model.ActionSell) {
			continue
		}
		age := now.Sub(ev.Timestamp)
		if age <= time.Hour {
			hour++
		}
		if age <= 24*time.Hour {
			day++
		}
	}
	return hour, day
}

func (r *Runner) recordTrade(cycleID, asset, action string, amount, price float64, note string) {
	r.state.Log = append(r.state.Log, model.TradeEvent{
		Timestamp: time.Now(),
		Type:      action,
		Asset:     asset,
		Amount:    amount,
		Note:      note,
	})
	if len(r.state.Log) > r.opts.MaxLogEvents {
		r.state.Log = r.state.Log[len(r.state.Log)-r.opts.MaxLogEvents:]
	}
	if err := r.recorder.RecordTrade(&recorder.TradeRecord{
		CycleID: cycleID,
		Asset:   asset,
		Action:  action,
		Amount:  amount,
		Price:   price,
		Note:    note,
	}); err != nil {
		log.Error().Err(err).Msg("record trade")
	}
}

func (r *Runner) updatePerformance(rec model.CycleRecord) {
	if rec.PnL > 0 {
		r.perf.WinCount++
	} else if rec.PnL < 0 {
		r.perf.LossCount++
	}
	if rec.PnL > r.perf.BestCyclePnL {
		r.perf.BestCyclePnL = rec.PnL
	}
	if rec.PnL < r.perf.WorstCycle {
		r.perf.WorstCycle = rec.PnL
	}
	r.perf.Cycles = r.history.All()
}

// persist saves both state files. Persistence failure never aborts the cycle.
func (r *Runner) persist() {
	if err := r.store.Save(store.KeyTradeState, r.state); err != nil {
		log.Error().Err(err).Msg("save trade state")
	}
	if err := r.store.Save(store.KeyPerformance, r.perf); err != nil {
		log.Error().Err(err).Msg("save performance state")
	}
}

// avgTopMomentum averages the scores of the top ranked assets.
func (r *Runner) avgTopMomentum(results map[string]model.MomentumResult) float64 {
	top := momentum.TopAssets(results, r.opts.TopAssets)
	if len(top) == 0 {
		return 0
	}
	sum := 0.0
	for _, asset := range top {
		sum += results[asset].Score
	}
	return sum / float64(len(top))
}

// mergeResults keeps, per asset, the highest-scored result across horizons.
func mergeResults(results map[model.Horizon]map[string]model.MomentumResult) map[string]model.MomentumResult {
	merged := make(map[string]model.MomentumResult)
	for _, h := range model.Horizons {
		for asset, r := range results[h] {
			best, ok := merged[asset]
			if !ok || r.Score > best.Score {
				merged[asset] = r
			}
		}
	}
	return merged
}

func lastPrices(snap model.Snapshot) map[string]float64 {
	prices := make(map[string]float64, len(snap))
	for asset, series := range snap {
		if len(series.Prices) > 0 {
			prices[asset] = series.Last()
		}
	}
	return prices
}

// Pause disables auto-trading.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.AutoTrading = false
	r.persist()
	log.Info().Msg("auto-trading paused")
}

// Resume enables auto-trading.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.AutoTrading = true
	r.persist()
	log.Info().Msg("auto-trading resumed")
}

// Reset discards all accumulated state and starts over at the initial capital.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = &model.TradeState{
		Capital:     r.opts.InitialCapital,
		AutoTrading: true,
		Positions:   make(map[string]model.Position),
		Protection:  model.NewProtectionState(r.opts.InitialCapital),
	}
	r.perf = &model.PerformanceState{}
	r.history = history.NewRing(history.DefaultCapacity)
	r.lastBuckets = make(map[model.Horizon]map[string]float64)
	r.persist()
	log.Warn().Float64("capital", r.opts.InitialCapital).Msg("trade state reset")
}

// Unfreeze clears a hard stop and rebases the peak.
func (r *Runner) Unfreeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protection.Unfreeze(r.state.Protection, r.state.Capital)
	r.persist()
}

// Status returns copies of the current state for reporting.
func (r *Runner) Status() (model.TradeState, model.PerformanceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := *r.state
	prot := *r.state.Protection
	state.Protection = &prot
	return state, *r.perf
}

// LastCycles returns up to n most recent cycle records.
func (r *Runner) LastCycles(n int) []model.CycleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Last(n)
}

// Forecasts projects each asset's price stepsAhead candles forward from the
// last fetched medium-horizon series, via both least-squares regression and
// EMA slope extrapolation. Empty before the first cycle.
func (r *Runner) Forecasts(stepsAhead int) []Forecast {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Forecast, 0, len(r.lastSnapshot))
	for _, asset := range r.opts.Assets {
		series, ok := r.lastSnapshot[asset]
		if !ok || len(series.Prices) == 0 {
			continue
		}
		predicted, residual := signalmath.LinearRegressionPredict(series.Prices, stepsAhead)
		out = append(out, Forecast{
			Asset:       asset,
			Current:     series.Last(),
			Regression:  predicted,
			EMA:         signalmath.EMAProject(series.Prices, 9, stepsAhead),
			ResidualStd: residual,
		})
	}
	return out
}
