package model

// Action is the rebalancing decision for one asset.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// PositionPlan is the per-asset entry of an AllocationPlan.
type PositionPlan struct {
	Asset             string
	Classification    Classification
	EntryValid        bool
	CurrentAmount     float64
	ProtectedAmount   float64 // current amount after the IRQ reduction
	RecommendedAmount float64
	Action            Action
	ChangePct         float64
}

// AllocationPlan maps each asset to its rebalancing target for one cycle.
type AllocationPlan map[string]PositionPlan

// TotalRecommended sums the recommended amounts across all assets.
func (p AllocationPlan) TotalRecommended() float64 {
	total := 0.0
	for _, pos := range p {
		total += pos.RecommendedAmount
	}
	return total
}

// PortfolioMetrics summarizes the risk profile of an allocation.
type PortfolioMetrics struct {
	TotalAllocated       float64
	CashAvailable        float64
	CashPct              float64
	MaxPositionPct       float64
	ActivePositions      int
	DiversificationRatio float64
}

// ExitThresholds holds the ATR-adaptive stop-loss and take-profit fractions
// for one asset on one horizon.
type ExitThresholds struct {
	StopLossPct   float64
	TakeProfitPct float64
}
