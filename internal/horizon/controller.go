// Package horizon splits capital across the fast (5m), medium (1h) and slow
// (1d) trading horizons. The split starts from a fixed base, tilts toward
// whichever horizon has been earning, and is overridden by a risk regime
// filter that pulls capital out of fast trading under stress.
package horizon

import (
	"github.com/testando12/daytrade-bot/internal/model"
)

// Config holds the reallocation parameters.
type Config struct {
	BaseFast   float64 `yaml:"base_fast" default:"0.20"`
	BaseMedium float64 `yaml:"base_medium" default:"0.35"`
	BaseSlow   float64 `yaml:"base_slow" default:"0.45"`

	// MinCycles gates performance tilting until enough history exists.
	MinCycles int `yaml:"min_cycles" default:"10"`
	// Lookback is how many recent cycles the dominance test considers.
	Lookback int `yaml:"lookback" default:"30"`
	// DominanceShare is the profit share one horizon must capture before the
	// split tilts toward it.
	DominanceShare float64 `yaml:"dominance_share" default:"0.75"`

	// Regime thresholds on the IRQ score and consecutive losses.
	CautiousIRQ    float64 `yaml:"cautious_irq" default:"0.70"`
	ExtremeIRQ     float64 `yaml:"extreme_irq" default:"0.80"`
	CautiousLosses int     `yaml:"cautious_losses" default:"3"`
	ExtremeLosses  int     `yaml:"extreme_losses" default:"5"`
}

func (c Config) withDefaults() Config {
	if c.BaseFast == 0 {
		c.BaseFast = 0.20
	}
	if c.BaseMedium == 0 {
		c.BaseMedium = 0.35
	}
	if c.BaseSlow == 0 {
		c.BaseSlow = 0.45
	}
	if c.MinCycles == 0 {
		c.MinCycles = 10
	}
	if c.Lookback == 0 {
		c.Lookback = 30
	}
	if c.DominanceShare == 0 {
		c.DominanceShare = 0.75
	}
	if c.CautiousIRQ == 0 {
		c.CautiousIRQ = 0.70
	}
	if c.ExtremeIRQ == 0 {
		c.ExtremeIRQ = 0.80
	}
	if c.CautiousLosses == 0 {
		c.CautiousLosses = 3
	}
	if c.ExtremeLosses == 0 {
		c.ExtremeLosses = 5
	}
	return c
}

// Controller computes horizon splits. It holds configuration only; the split
// is a pure function of the inputs.
type Controller struct {
	cfg Config
}

// NewController creates a controller with the given config.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg.withDefaults()}
}

// Base returns the configured base split.
func (c *Controller) Base() model.HorizonAllocation {
	return model.HorizonAllocation{
		Fast:   c.cfg.BaseFast,
		Medium: c.cfg.BaseMedium,
		Slow:   c.cfg.BaseSlow,
	}
}

// Rebalance produces the horizon split for the next cycle. Performance
// tilting needs MinCycles of history; the regime filter applies regardless.
// The result always sums to 1.
func (c *Controller) Rebalance(history []model.CycleRecord, irq float64, consecutiveLosses int) model.HorizonAllocation {
	alloc := c.Base()

	if len(history) >= c.cfg.MinCycles {
		window := history
		if len(window) > c.cfg.Lookback {
			window = window[len(window)-c.cfg.Lookback:]
		}
		fastMedium, slowShare := profitShares(window)
		switch {
		case slowShare > c.cfg.DominanceShare:
			alloc.Fast *= 0.80
			alloc.Medium *= 0.90
			alloc.Slow *= 1.25
		case fastMedium > slowShare:
			alloc.Fast *= 1.20
			alloc.Medium *= 1.10
			alloc.Slow *= 0.85
		}
	}

	// The regime filter runs last so stress always wins over performance.
	switch {
	case irq >= c.cfg.ExtremeIRQ || consecutiveLosses >= c.cfg.ExtremeLosses:
		alloc.Fast *= 0.10
		alloc.Slow *= 1.35
	case irq >= c.cfg.CautiousIRQ || consecutiveLosses >= c.cfg.CautiousLosses:
		alloc.Fast *= 0.50
		alloc.Slow *= 1.15
	}

	return normalize(alloc)
}

// profitShares returns the fractions of total positive cycle PnL captured by
// the combined fast+medium buckets and by the slow bucket over the window.
// Zero total means no dominance.
func profitShares(window []model.CycleRecord) (fastMedium, slow float64) {
	var fastPnL, mediumPnL, slowPnL float64
	for _, rec := range window {
		if rec.PnLFast > 0 {
			fastPnL += rec.PnLFast
		}
		if rec.PnLMedium > 0 {
			mediumPnL += rec.PnLMedium
		}
		if rec.PnLSlow > 0 {
			slowPnL += rec.PnLSlow
		}
	}
	total := fastPnL + mediumPnL + slowPnL
	if total <= 0 {
		return 0, 0
	}
	return (fastPnL + mediumPnL) / total, slowPnL / total
}

func normalize(a model.HorizonAllocation) model.HorizonAllocation {
	sum := a.Fast + a.Medium + a.Slow
	if sum <= 0 {
		return model.HorizonAllocation{Fast: 0.20, Medium: 0.35, Slow: 0.45}
	}
	a.Fast /= sum
	a.Medium /= sum
	a.Slow /= sum
	return a
}
