package model

// Classification buckets an asset by its momentum score.
type Classification string

const (
	ForteAlta Classification = "FORTE_ALTA" // strong uptrend
	AltaLeve  Classification = "ALTA_LEVE"  // mild uptrend
	Lateral   Classification = "LATERAL"    // sideways
	Queda     Classification = "QUEDA"      // downtrend
)

// MomentumResult is the per-asset output of the momentum engine. It is derived
// fresh every cycle from a PriceSeries and never mutated.
type MomentumResult struct {
	Asset          string
	Score          float64
	ReturnScore    float64
	TrendScore     float64
	VolumeScore    float64
	RSIScore       float64
	MACDScore      float64
	SignalQuality  float64 // 0 = sub-signals disagree, 1 = full agreement
	EntryValid     bool
	Valid          bool // false when the series was too short to score
	CurrentPrice   float64
	EMAFast        float64
	EMASlow        float64
	RSI            float64
	ATR            float64
	ATRPct         float64
	ReturnPct      float64
	Classification Classification
	Rank           int
	IsTop3         bool
}
