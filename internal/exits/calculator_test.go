package exits

import (
	"testing"

	"github.com/testando12/daytrade-bot/internal/model"
)

func choppy(n int, base, swing float64) []float64 {
	prices := make([]float64, n)
	for i := 0; i < n; i++ {
		prices[i] = base
		if i%2 == 1 {
			prices[i] = base + swing
		}
	}
	return prices
}

func TestThresholds_ClampFloor(t *testing.T) {
	c := NewCalculator(Config{})
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	th := c.Thresholds(flat, model.HorizonMedium)
	if th.StopLossPct != 0.01 {
		t.Errorf("zero-ATR stop should clamp to 1%%, got %.3f", th.StopLossPct)
	}
	if th.TakeProfitPct < 1.2*th.StopLossPct {
		t.Errorf("take profit must be at least 1.2x the stop: sl=%.3f tp=%.3f", th.StopLossPct, th.TakeProfitPct)
	}
}

func TestThresholds_ClampCeiling(t *testing.T) {
	c := NewCalculator(Config{})
	th := c.Thresholds(choppy(30, 100, 20), model.HorizonMedium)
	if th.StopLossPct != 0.10 {
		t.Errorf("extreme ATR stop should clamp to 10%%, got %.3f", th.StopLossPct)
	}
	if th.TakeProfitPct < 1.2*th.StopLossPct {
		t.Errorf("take profit must be at least 1.2x the stop at the ceiling: sl=%.3f tp=%.3f", th.StopLossPct, th.TakeProfitPct)
	}
}

func TestThresholds_HorizonScaling(t *testing.T) {
	c := NewCalculator(Config{})
	prices := choppy(30, 100, 2) // ~2% swings, inside the clamp band
	fast := c.Thresholds(prices, model.HorizonFast)
	medium := c.Thresholds(prices, model.HorizonMedium)
	slow := c.Thresholds(prices, model.HorizonSlow)

	if !(fast.StopLossPct < medium.StopLossPct && medium.StopLossPct < slow.StopLossPct) {
		t.Errorf("stops should widen with the horizon: fast=%.4f medium=%.4f slow=%.4f",
			fast.StopLossPct, medium.StopLossPct, slow.StopLossPct)
	}
	if !(fast.TakeProfitPct < slow.TakeProfitPct) {
		t.Errorf("take profits should widen with the horizon: fast=%.4f slow=%.4f",
			fast.TakeProfitPct, slow.TakeProfitPct)
	}
}

func TestThresholds_PositivePayoff(t *testing.T) {
	for _, h := range model.Horizons {
		th := NewCalculator(Config{}).Thresholds(choppy(30, 100, 3), h)
		if th.TakeProfitPct <= th.StopLossPct {
			t.Errorf("%s: take profit %.4f should exceed stop %.4f", h, th.TakeProfitPct, th.StopLossPct)
		}
	}
}
