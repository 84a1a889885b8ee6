// Package risk computes the Index of Risk of Decline (IRQ): a [0,1] score
// estimating the near-term downside risk of the market, derived from one
// reference asset's series. Like the momentum engine it is pure and holds
// configuration only.
package risk

import (
	"math"

	"github.com/testando12/daytrade-bot/internal/model"
	"github.com/testando12/daytrade-bot/internal/signalmath"
)

// Config holds the IRQ thresholds and stop-loss parameters.
type Config struct {
	PeriodShort int `yaml:"period_short" default:"9"`
	PeriodLong  int `yaml:"period_long" default:"21"`

	// Protection-level thresholds on the logistic IRQ score.
	ThresholdHigh     float64 `yaml:"threshold_high" default:"0.70"`
	ThresholdVeryHigh float64 `yaml:"threshold_very_high" default:"0.80"`
	ThresholdCritical float64 `yaml:"threshold_critical" default:"0.90"`

	// Position reductions applied at ALTO / MUITO_ALTO. CRÍTICO always cuts
	// everything.
	ReductionModerate float64 `yaml:"reduction_moderate" default:"0.40"`
	ReductionHigh     float64 `yaml:"reduction_high" default:"0.70"`

	// ATRStopMultiple sizes the dynamic stop loss; DefaultStopLoss is the
	// fallback when the series is too short for an ATR.
	ATRStopMultiple float64 `yaml:"atr_stop_multiple" default:"2.0"`
	DefaultStopLoss float64 `yaml:"default_stop_loss" default:"0.05"`
}

func (c Config) withDefaults() Config {
	if c.PeriodShort == 0 {
		c.PeriodShort = 9
	}
	if c.PeriodLong == 0 {
		c.PeriodLong = 21
	}
	if c.ThresholdHigh == 0 {
		c.ThresholdHigh = 0.70
	}
	if c.ThresholdVeryHigh == 0 {
		c.ThresholdVeryHigh = 0.80
	}
	if c.ThresholdCritical == 0 {
		c.ThresholdCritical = 0.90
	}
	if c.ReductionModerate == 0 {
		c.ReductionModerate = 0.40
	}
	if c.ReductionHigh == 0 {
		c.ReductionHigh = 0.70
	}
	if c.ATRStopMultiple == 0 {
		c.ATRStopMultiple = 2.0
	}
	if c.DefaultStopLoss == 0 {
		c.DefaultStopLoss = 0.05
	}
	return c
}

// Engine computes risk assessments and protection levels.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine with the given config.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// IRQ computes the six weighted sub-signals and the logistic-transformed risk
// score for the reference series. A series shorter than max(period_long, 22)
// yields Valid=false with a zero score.
func (e *Engine) IRQ(prices, volumes []float64) model.RiskAssessment {
	min := e.cfg.PeriodLong
	if min < 22 {
		min = 22
	}
	if len(prices) < min || len(volumes) < min {
		return model.RiskAssessment{
			RSI:         50.0,
			StopLossPct: e.cfg.DefaultStopLoss,
		}
	}

	emaFast := signalmath.EMA(prices, e.cfg.PeriodShort)
	emaSlow := signalmath.EMA(prices, e.cfg.PeriodLong)

	// S1: slow EMA above fast EMA means the trend is rolling over. Small
	// gaps matter, so the ratio is amplified 20x before clamping.
	s1 := 0.0
	if emaSlow > 0 {
		s1 = signalmath.Clamp((emaSlow-emaFast)/emaSlow*20, 0, 1)
	}

	// S2: selling pressure, a negative last return amplified by the volume
	// ratio.
	recentReturn := 0.0
	if prices[len(prices)-2] != 0 {
		recentReturn = (prices[len(prices)-1] - prices[len(prices)-2]) / prices[len(prices)-2]
	}
	avgVolume := 0.0
	for _, v := range volumes[len(volumes)-e.cfg.PeriodLong:] {
		avgVolume += v
	}
	avgVolume /= float64(e.cfg.PeriodLong)
	volRatio := 1.0
	if avgVolume > 0 {
		volRatio = volumes[len(volumes)-1] / avgVolume
	}
	s2 := 0.0
	if recentReturn < 0 {
		s2 = signalmath.Clamp(math.Abs(recentReturn)*volRatio*10, 0, 1)
	}

	// S3: normalized volatility of recent returns.
	s3 := Volatility(prices, e.cfg.PeriodLong)

	// S4: RSI divergence, active only below 40.
	rsi := signalmath.RSI(prices, 14)
	s4 := 0.0
	if rsi < 40 {
		s4 = (40.0 - rsi) / 40.0
	}

	// S5: three consecutive negative returns.
	s5 := 0.0
	if LosingStreak(prices, 3) {
		s5 = 1.0
	}

	// S6: drawdown from the 20-period peak, informative but not dominant.
	s6 := signalmath.Clamp(Drawdown(prices, 20)*3, 0, 1)

	raw := 0.25*s1 + 0.20*s2 + 0.15*s3 + 0.15*s4 + 0.15*s5 + 0.10*s6
	irq := logistic(raw, 5.0, 0.5)

	return model.RiskAssessment{
		IRQScore:        irq,
		RawIRQScore:     raw,
		TrendLoss:       s1,
		SellingPressure: s2,
		Volatility:      s3,
		RSIDivergence:   s4,
		LosingStreak:    s5,
		Drawdown:        s6,
		RSI:             rsi,
		ATR:             signalmath.ATR(prices, 14),
		StopLossPct:     e.DynamicStopLoss(prices),
		Valid:           true,
	}
}

// DynamicStopLoss derives a stop-loss fraction from the ATR, clamped to
// [1%, 10%]. Short series fall back to the configured default.
func (e *Engine) DynamicStopLoss(prices []float64) float64 {
	if len(prices) < 2 {
		return e.cfg.DefaultStopLoss
	}
	current := prices[len(prices)-1]
	if current == 0 {
		return e.cfg.DefaultStopLoss
	}
	atr := signalmath.ATR(prices, 14)
	return signalmath.Clamp(atr*e.cfg.ATRStopMultiple/current, 0.01, 0.10)
}

// ProtectionFor maps an IRQ score to a protection policy. It is a monotone
// step function of the score.
func (e *Engine) ProtectionFor(irqScore float64) model.Protection {
	switch {
	case irqScore >= e.cfg.ThresholdCritical:
		return model.Protection{Level: model.LevelCritico, ReductionPct: 1.0}
	case irqScore >= e.cfg.ThresholdVeryHigh:
		return model.Protection{Level: model.LevelMuitoAlto, ReductionPct: e.cfg.ReductionHigh}
	case irqScore >= e.cfg.ThresholdHigh:
		return model.Protection{Level: model.LevelAlto, ReductionPct: e.cfg.ReductionModerate, AllowNewPositions: true}
	default:
		return model.Protection{Level: model.LevelNormal, AllowNewPositions: true}
	}
}

// Volatility is the standard deviation of recent simple returns normalized by
// 5%, clamped to [0, 1].
func Volatility(prices []float64, period int) float64 {
	if len(prices) < period {
		return 0
	}
	recent := prices[len(prices)-period:]
	returns := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		if recent[i-1] != 0 {
			returns = append(returns, (recent[i]-recent[i-1])/recent[i-1])
		}
	}
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Min(1.0, math.Sqrt(variance)/0.05)
}

// Drawdown returns how far the last price sits below the peak of the trailing
// lookback window, as a fraction of that peak.
func Drawdown(prices []float64, lookback int) float64 {
	if len(prices) < 2 {
		return 0
	}
	window := prices
	if len(prices) >= lookback {
		window = prices[len(prices)-lookback:]
	}
	peak := window[0]
	for _, p := range window {
		if p > peak {
			peak = p
		}
	}
	if peak == 0 {
		return 0
	}
	return math.Max(0, (peak-window[len(window)-1])/peak)
}

// LosingStreak reports whether the last minPeriods returns were all negative.
func LosingStreak(prices []float64, minPeriods int) bool {
	if len(prices) < minPeriods+1 {
		return false
	}
	for i := len(prices) - minPeriods; i < len(prices); i++ {
		if prices[i]-prices[i-1] >= 0 {
			return false
		}
	}
	return true
}

// logistic maps a raw score to (0,1) via 1/(1+e^(-k(x-theta))). Saturates
// instead of overflowing for extreme inputs.
func logistic(x, k, theta float64) float64 {
	exp := -k * (x - theta)
	if exp > 700 {
		return 0
	}
	if exp < -700 {
		return 1
	}
	return 1.0 / (1.0 + math.Exp(exp))
}
