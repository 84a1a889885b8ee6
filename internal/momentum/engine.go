// Package momentum scores the strength and direction of each asset's recent
// price action. Scoring is pure: the engine holds configuration only, so
// Score is safely callable from any goroutine given an immutable snapshot.
package momentum

import (
	"sort"

	"github.com/testando12/daytrade-bot/internal/model"
	"github.com/testando12/daytrade-bot/internal/signalmath"
)

// MinPeriods is the minimum series length required to produce a valid score.
const MinPeriods = 22

// Config holds the scoring weights and thresholds. Weights sum to 1.0.
type Config struct {
	WeightReturn float64 `yaml:"weight_return" default:"0.25"`
	WeightTrend  float64 `yaml:"weight_trend" default:"0.25"`
	WeightVolume float64 `yaml:"weight_volume" default:"0.20"`
	WeightRSI    float64 `yaml:"weight_rsi" default:"0.15"`
	WeightMACD   float64 `yaml:"weight_macd" default:"0.15"`

	// EntryThreshold is the minimum |score| for a tradable signal.
	EntryThreshold float64 `yaml:"entry_threshold" default:"0.10"`

	PeriodShort int `yaml:"period_short" default:"9"`
	PeriodLong  int `yaml:"period_long" default:"21"`
}

func (c Config) withDefaults() Config {
	if c.WeightReturn == 0 {
		c.WeightReturn = 0.25
	}
	if c.WeightTrend == 0 {
		c.WeightTrend = 0.25
	}
	if c.WeightVolume == 0 {
		c.WeightVolume = 0.20
	}
	if c.WeightRSI == 0 {
		c.WeightRSI = 0.15
	}
	if c.WeightMACD == 0 {
		c.WeightMACD = 0.15
	}
	if c.EntryThreshold == 0 {
		c.EntryThreshold = 0.10
	}
	if c.PeriodShort == 0 {
		c.PeriodShort = 9
	}
	if c.PeriodLong == 0 {
		c.PeriodLong = 21
	}
	return c
}

// Engine computes momentum results from price/volume series.
type Engine struct {
	cfg Config
}

// NewEngine creates a momentum engine with the given config.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// EntryThreshold exposes the configured minimum tradable |score|.
func (e *Engine) EntryThreshold() float64 { return e.cfg.EntryThreshold }

// Score computes the composite momentum result for one asset. It never fails:
// a series shorter than MinPeriods yields Valid=false, Score=0 and a Lateral
// classification.
func (e *Engine) Score(asset string, prices, volumes []float64) model.MomentumResult {
	if len(prices) < MinPeriods || len(volumes) < MinPeriods {
		res := model.MomentumResult{
			Asset:          asset,
			RSI:            50.0,
			Classification: model.Lateral,
		}
		if len(prices) > 0 {
			res.CurrentPrice = prices[len(prices)-1]
		}
		return res
	}

	price := prices[len(prices)-1]

	// 1. Multi-period return: 5/10/20-candle rates of change, each normalized
	// so that 5%/8%/12% maps to a full score of 1.
	ret := func(n int) float64 {
		base := prices[len(prices)-n-1]
		if base == 0 {
			return 0
		}
		return (price - base) / base
	}
	r5 := signalmath.Clamp(ret(5)/0.05, -1, 1)
	r10 := signalmath.Clamp(ret(10)/0.08, -1, 1)
	r20 := signalmath.Clamp(ret(20)/0.12, -1, 1)
	returnScore := 0.5*r5 + 0.3*r10 + 0.2*r20

	// 2. Fast vs. slow EMA gap (2% gap = full score).
	emaFast := signalmath.EMA(prices, e.cfg.PeriodShort)
	emaSlow := signalmath.EMA(prices, e.cfg.PeriodLong)
	trendScore := 0.0
	if emaSlow != 0 {
		trendScore = signalmath.Clamp((emaFast-emaSlow)/emaSlow/0.02, -1, 1)
	}

	// 3. Volume confirmation: above-average volume is bullish on up candles
	// and bearish on down candles.
	avgVol := 0.0
	for _, v := range volumes[len(volumes)-20:] {
		avgVol += v
	}
	avgVol /= 20
	volRatio := 1.0
	if avgVol > 0 {
		volRatio = volumes[len(volumes)-1] / avgVol
	}
	direction := 1.0
	if prices[len(prices)-1] < prices[len(prices)-2] {
		direction = -1.0
	}
	volumeScore := signalmath.Clamp((volRatio-1.0)*direction, -1, 1)

	// 4. RSI bias: oversold extremes reward buying, overbought reward
	// selling, the neutral zone scores proportionally to its center.
	rsi := signalmath.RSI(prices, 14)
	var rsiScore float64
	switch {
	case rsi < 30:
		rsiScore = signalmath.Clamp((30-rsi)/30, 0, 1)
	case rsi > 70:
		rsiScore = signalmath.Clamp(-(rsi-70)/30, -1, 0)
	default:
		rsiScore = signalmath.Clamp((rsi-50)/20, -1, 1)
	}

	// 5. MACD-like EMA12−EMA26 gap normalized by price level.
	ema12 := signalmath.EMA(prices, 12)
	ema26 := emaSlow
	if len(prices) >= 26 {
		ema26 = signalmath.EMA(prices, 26)
	}
	macdScore := 0.0
	if ema26 != 0 {
		macdScore = signalmath.Clamp((ema12-ema26)/ema26/0.015, -1, 1)
	}

	score := e.cfg.WeightReturn*returnScore +
		e.cfg.WeightTrend*trendScore +
		e.cfg.WeightVolume*volumeScore +
		e.cfg.WeightRSI*rsiScore +
		e.cfg.WeightMACD*macdScore

	atr := signalmath.ATR(prices, 14)
	atrPct := 0.0
	if price > 0 {
		atrPct = atr / price
	}

	// Signal quality: do the three trend-following sub-scores agree?
	positives, negatives := 0, 0
	for _, s := range []float64{returnScore, trendScore, macdScore} {
		if s > 0.1 {
			positives++
		} else if s < -0.1 {
			negatives++
		}
	}
	quality := absInt(positives-negatives) / 3.0

	// quality >= 0.33 means 2 of 3 trend indicators agree; atr_pct > 0.1%
	// rejects assets too flat to pay for the spread.
	entryValid := absFloat(score) >= e.cfg.EntryThreshold &&
		quality >= 0.33 &&
		atrPct > 0.001

	return model.MomentumResult{
		Asset:          asset,
		Score:          score,
		ReturnScore:    returnScore,
		TrendScore:     trendScore,
		VolumeScore:    volumeScore,
		RSIScore:       rsiScore,
		MACDScore:      macdScore,
		SignalQuality:  quality,
		EntryValid:     entryValid,
		Valid:          true,
		CurrentPrice:   price,
		EMAFast:        emaFast,
		EMASlow:        emaSlow,
		RSI:            rsi,
		ATR:            atr,
		ATRPct:         atrPct,
		ReturnPct:      ret(5),
		Classification: Classify(score),
	}
}

// Classify buckets a momentum score. The cut points are deliberately wide to
// filter weak signals.
func Classify(score float64) model.Classification {
	switch {
	case score > 0.45:
		return model.ForteAlta
	case score > 0.25:
		return model.AltaLeve
	case score > -0.25:
		return model.Lateral
	default:
		return model.Queda
	}
}

// ScoreAll scores every asset in the snapshot and assigns a relative rank
// (1 = strongest), tagging the top 3.
func (e *Engine) ScoreAll(snapshot model.Snapshot) map[string]model.MomentumResult {
	results := make(map[string]model.MomentumResult, len(snapshot))
	for asset, series := range snapshot {
		results[asset] = e.Score(asset, series.Prices, series.Volumes)
	}

	ranked := make([]string, 0, len(results))
	for asset := range results {
		ranked = append(ranked, asset)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := results[ranked[i]], results[ranked[j]]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return ranked[i] < ranked[j]
	})
	for i, asset := range ranked {
		res := results[asset]
		res.Rank = i + 1
		res.IsTop3 = i < 3
		results[asset] = res
	}
	return results
}

// TopAssets returns the n highest-scoring assets in rank order.
func TopAssets(results map[string]model.MomentumResult, n int) []string {
	ranked := make([]string, 0, len(results))
	for asset := range results {
		ranked = append(ranked, asset)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return results[ranked[i]].Rank < results[ranked[j]].Rank
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

func absInt(v int) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
