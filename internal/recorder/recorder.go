package recorder

import "github.com/testando12/daytrade-bot/internal/model"

// CycleSnapshot holds everything worth keeping from one completed cycle.
type CycleSnapshot struct {
	Record     model.CycleRecord
	Risk       model.RiskAssessment
	Protection model.Protection
	Allocation model.HorizonAllocation
	Metrics    model.PortfolioMetrics
	Multiplier float64
}

// TradeRecord is one executed (simulated) order.
type TradeRecord struct {
	CycleID string
	Asset   string
	Action  string
	Amount  float64
	Price   float64
	Note    string
}

// Recorder persists cycle history for analysis.
type Recorder interface {
	RecordCycle(snap *CycleSnapshot) error
	RecordTrade(trade *TradeRecord) error
	Close() error
}
