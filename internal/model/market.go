package model

import "time"

// Horizon identifies one of the three trading timeframes, each with its own
// capital sub-budget.
type Horizon string

const (
	HorizonFast   Horizon = "fast"   // 5-minute candles
	HorizonMedium Horizon = "medium" // 1-hour candles
	HorizonSlow   Horizon = "slow"   // 1-day candles
)

// Horizons lists the trading horizons in fast-to-slow order.
var Horizons = []Horizon{HorizonFast, HorizonMedium, HorizonSlow}

// Timeframe returns the candle interval used for this horizon.
func (h Horizon) Timeframe() string {
	switch h {
	case HorizonFast:
		return "5m"
	case HorizonMedium:
		return "1h"
	default:
		return "1d"
	}
}

// PriceSeries holds the chronological closes (and volumes) of one asset on one
// timeframe. Insertion order is chronological; minimum-length guards are the
// responsibility of each consumer.
type PriceSeries struct {
	Asset     string
	Timeframe string
	Prices    []float64
	Volumes   []float64
	FetchedAt time.Time
}

// Last returns the most recent close, or 0 for an empty series.
func (s PriceSeries) Last() float64 {
	if len(s.Prices) == 0 {
		return 0
	}
	return s.Prices[len(s.Prices)-1]
}

// Snapshot maps asset symbols to their price series for a single timeframe.
type Snapshot map[string]PriceSeries
