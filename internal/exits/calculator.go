// Package exits derives ATR-adaptive stop-loss and take-profit thresholds,
// widened or tightened per trading horizon.
package exits

import (
	"math"

	"github.com/testando12/daytrade-bot/internal/model"
	"github.com/testando12/daytrade-bot/internal/signalmath"
)

// Config holds the exit threshold parameters.
type Config struct {
	StopLossMultiple   float64 `yaml:"stop_loss_multiple" default:"2.0"`
	TakeProfitMultiple float64 `yaml:"take_profit_multiple" default:"3.0"`
	MinStopLoss        float64 `yaml:"min_stop_loss" default:"0.01"`
	MaxStopLoss        float64 `yaml:"max_stop_loss" default:"0.10"`

	// Per-horizon scaling: fast trades exit tighter, slow trades get room.
	FastMultiplier   float64 `yaml:"fast_multiplier" default:"0.80"`
	MediumMultiplier float64 `yaml:"medium_multiplier" default:"1.0"`
	SlowMultiplier   float64 `yaml:"slow_multiplier" default:"1.30"`
}

func (c Config) withDefaults() Config {
	if c.StopLossMultiple == 0 {
		c.StopLossMultiple = 2.0
	}
	if c.TakeProfitMultiple == 0 {
		c.TakeProfitMultiple = 3.0
	}
	if c.MinStopLoss == 0 {
		c.MinStopLoss = 0.01
	}
	if c.MaxStopLoss == 0 {
		c.MaxStopLoss = 0.10
	}
	if c.FastMultiplier == 0 {
		c.FastMultiplier = 0.80
	}
	if c.MediumMultiplier == 0 {
		c.MediumMultiplier = 1.0
	}
	if c.SlowMultiplier == 0 {
		c.SlowMultiplier = 1.30
	}
	return c
}

// Calculator computes exit thresholds from price series.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with the given config.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg.withDefaults()}
}

func (c *Calculator) horizonMultiplier(h model.Horizon) float64 {
	switch h {
	case model.HorizonFast:
		return c.cfg.FastMultiplier
	case model.HorizonSlow:
		return c.cfg.SlowMultiplier
	default:
		return c.cfg.MediumMultiplier
	}
}

// Thresholds computes the stop-loss and take-profit fractions for one asset
// on one horizon. The stop is ATR-proportional clamped to [min, max], the
// take-profit is at least 1.2x the stop so the payoff stays positive even at
// the clamp boundaries.
func (c *Calculator) Thresholds(prices []float64, h model.Horizon) model.ExitThresholds {
	mult := c.horizonMultiplier(h)
	atrPct := 0.0
	if len(prices) >= 2 && prices[len(prices)-1] > 0 {
		atrPct = signalmath.ATR(prices, 14) / prices[len(prices)-1]
	}

	sl := signalmath.Clamp(atrPct*c.cfg.StopLossMultiple*mult, c.cfg.MinStopLoss, c.cfg.MaxStopLoss)
	tp := math.Max(1.2*sl, atrPct*c.cfg.TakeProfitMultiple*mult)
	return model.ExitThresholds{StopLossPct: sl, TakeProfitPct: tp}
}
