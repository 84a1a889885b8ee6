package model

import "time"

// ProtectionState persists across cycles and gates position sizing. Its single
// logical owner is the cycle orchestrator; everything else sees read-only
// snapshots.
type ProtectionState struct {
	Paused            bool               `json:"paused"`
	HardStopped       bool               `json:"hard_stopped"` // sticky; cleared only by Unfreeze
	PauseReason       string             `json:"pause_reason"`
	ConsecutiveLosses int                `json:"consecutive_losses"`
	SizeMultiplier    float64            `json:"size_multiplier"`
	PeakCapital       float64            `json:"peak_capital"` // monotonically non-decreasing
	TrailingHighs     map[string]float64 `json:"trailing_highs"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewProtectionState returns the initial state for a fresh account.
func NewProtectionState(capital float64) *ProtectionState {
	return &ProtectionState{
		SizeMultiplier: 1.0,
		PeakCapital:    capital,
		TrailingHighs:  make(map[string]float64),
	}
}

// CycleRecord is appended to a bounded history after every cycle and is
// read-only once written.
type CycleRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PnL       float64   `json:"pnl"`
	PnLFast   float64   `json:"pnl_fast"`
	PnLMedium float64   `json:"pnl_medium"`
	PnLSlow   float64   `json:"pnl_slow"`
	Capital   float64   `json:"capital"`
	IRQ       float64   `json:"irq"`
}

// HorizonAllocation is the capital split across the three horizons. Weights
// are non-negative and sum to 1. It is recomputed every cycle and never
// persisted (derivable from history).
type HorizonAllocation struct {
	Fast   float64 `json:"fast"`
	Medium float64 `json:"medium"`
	Slow   float64 `json:"slow"`
}

// Weight returns the share for the given horizon.
func (a HorizonAllocation) Weight(h Horizon) float64 {
	switch h {
	case HorizonFast:
		return a.Fast
	case HorizonMedium:
		return a.Medium
	default:
		return a.Slow
	}
}

// TradeEvent is one entry of the bounded trade log.
type TradeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Asset     string    `json:"asset"`
	Amount    float64   `json:"amount"`
	Note      string    `json:"note"`
}

// Position is an open position carried between cycles.
type Position struct {
	Amount     float64 `json:"amount"`
	EntryPrice float64 `json:"entry_price"`
	Pct        float64 `json:"pct"`
}

// TradeState is the persisted trading account state (store key "trade_state").
type TradeState struct {
	Capital     float64             `json:"capital"`
	AutoTrading bool                `json:"auto_trading"`
	Positions   map[string]Position `json:"positions"`
	Log         []TradeEvent        `json:"log"`
	TotalPnL    float64             `json:"total_pnl"`
	LastCycle   time.Time           `json:"last_cycle"`
	Protection  *ProtectionState    `json:"protection"`
}

// PerformanceState is the persisted cycle-performance aggregate (store key
// "performance").
type PerformanceState struct {
	Cycles       []CycleRecord `json:"cycles"`
	WinCount     int           `json:"win_count"`
	LossCount    int           `json:"loss_count"`
	BestCyclePnL float64       `json:"best_cycle_pnl"`
	WorstCycle   float64       `json:"worst_cycle_pnl"`
}
