package model

// ProtectionLevel classifies the market-wide risk of decline.
type ProtectionLevel string

const (
	LevelNormal    ProtectionLevel = "NORMAL"
	LevelAlto      ProtectionLevel = "ALTO"
	LevelMuitoAlto ProtectionLevel = "MUITO_ALTO"
	LevelCritico   ProtectionLevel = "CRÍTICO"
)

// Protection pairs a level with its position-reduction policy.
type Protection struct {
	Level             ProtectionLevel
	ReductionPct      float64 // fraction of existing positions to cut (0..1)
	AllowNewPositions bool
}

// RiskAssessment is the output of the IRQ computation for the reference asset.
// It is global per cycle, not per-asset.
type RiskAssessment struct {
	IRQScore        float64 // logistic-transformed, 0..1
	RawIRQScore     float64 // weighted sum before the logistic transform
	TrendLoss       float64 // S1
	SellingPressure float64 // S2
	Volatility      float64 // S3
	RSIDivergence   float64 // S4
	LosingStreak    float64 // S5
	Drawdown        float64 // S6
	RSI             float64
	ATR             float64
	StopLossPct     float64
	Valid           bool
}
