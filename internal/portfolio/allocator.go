// Package portfolio turns momentum scores into position sizes. Sizing starts
// from a fractional Kelly base, splits it across candidates by score weight,
// then applies the IRQ discount, per-asset caps and sector caps.
package portfolio

import (
	"math"
	"sort"

	"github.com/testando12/daytrade-bot/internal/model"
	"github.com/testando12/daytrade-bot/internal/signalmath"
)

// Config holds the sizing parameters.
type Config struct {
	// Kelly inputs: assumed win rate and payoff ratio. A quarter of the full
	// Kelly fraction is deployed.
	KellyWinRate  float64 `yaml:"kelly_win_rate" default:"0.52"`
	KellyPayoff   float64 `yaml:"kelly_payoff" default:"1.5"`
	KellyFraction float64 `yaml:"kelly_fraction" default:"0.25"`

	// MaxPositionPct caps any single asset as a fraction of capital.
	MaxPositionPct float64 `yaml:"max_position_pct" default:"0.30"`

	// MinScore is the momentum cutoff for allocation candidates.
	MinScore float64 `yaml:"min_score" default:"0.10"`

	// IRQPenalty scales how aggressively the risk score shrinks sizes:
	// size *= max(0, 1 - penalty*irq).
	IRQPenalty float64 `yaml:"irq_penalty" default:"1.5"`

	// Sector exposure caps as fractions of capital.
	SectorCapCrypto float64 `yaml:"sector_cap_crypto" default:"0.50"`
	SectorCapB3     float64 `yaml:"sector_cap_b3" default:"0.60"`

	// TradeBand is the no-trade band in currency units: deltas smaller than
	// this hold instead of trading.
	TradeBand float64 `yaml:"trade_band" default:"5.0"`

	// CryptoAssets lists the symbols counted against the crypto cap; anything
	// else counts against the B3 cap.
	CryptoAssets []string `yaml:"crypto_assets"`
}

func (c Config) withDefaults() Config {
	if c.KellyWinRate == 0 {
		c.KellyWinRate = 0.52
	}
	if c.KellyPayoff == 0 {
		c.KellyPayoff = 1.5
	}
	if c.KellyFraction == 0 {
		c.KellyFraction = 0.25
	}
	if c.MaxPositionPct == 0 {
		c.MaxPositionPct = 0.30
	}
	if c.MinScore == 0 {
		c.MinScore = 0.10
	}
	if c.IRQPenalty == 0 {
		c.IRQPenalty = 1.5
	}
	if c.SectorCapCrypto == 0 {
		c.SectorCapCrypto = 0.50
	}
	if c.SectorCapB3 == 0 {
		c.SectorCapB3 = 0.60
	}
	if c.TradeBand == 0 {
		c.TradeBand = 5.0
	}
	if c.CryptoAssets == nil {
		c.CryptoAssets = []string{
			"BTC-USD", "ETH-USD", "BNB-USD", "SOL-USD", "ADA-USD",
			"XRP-USD", "DOGE-USD", "AVAX-USD", "DOT-USD", "LINK-USD",
		}
	}
	return c
}

// Allocator sizes positions for one capital bucket.
type Allocator struct {
	cfg    Config
	crypto map[string]bool
}

// NewAllocator creates an allocator with the given config.
func NewAllocator(cfg Config) *Allocator {
	cfg = cfg.withDefaults()
	crypto := make(map[string]bool, len(cfg.CryptoAssets))
	for _, a := range cfg.CryptoAssets {
		crypto[a] = true
	}
	return &Allocator{cfg: cfg, crypto: crypto}
}

// kellyBase is the total capital fraction the Kelly criterion puts at risk,
// before per-candidate splitting. Never negative.
func (a *Allocator) kellyBase(capital float64) float64 {
	p := signalmath.Clamp(a.cfg.KellyWinRate, 0.01, 0.99)
	b := math.Max(0.1, a.cfg.KellyPayoff)
	q := 1.0 - p
	kelly := math.Max(0, (p*b-q)/b)
	return capital * kelly * a.cfg.KellyFraction
}

// Allocate distributes a capital bucket across the assets whose momentum
// clears the entry bar. Each candidate's share is proportional to its
// ATR-discounted score, then shrunk by the IRQ penalty and capped per asset
// and per sector. Returns asset -> amount.
func (a *Allocator) Allocate(results map[string]model.MomentumResult, irq, capital float64) map[string]float64 {
	allocation := make(map[string]float64)
	if capital <= 0 {
		return allocation
	}

	// Candidate weight = score discounted by volatility, so two assets with
	// equal momentum split in favor of the calmer one.
	weights := make(map[string]float64)
	totalWeight := 0.0
	for asset, r := range results {
		if !r.Valid || !r.EntryValid || r.Score <= a.cfg.MinScore {
			continue
		}
		atrFactor := 1.0 / (1.0 + 10.0*r.ATRPct)
		w := r.Score * atrFactor
		weights[asset] = w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return allocation
	}

	base := a.kellyBase(capital)
	irqFactor := math.Max(0, 1.0-a.cfg.IRQPenalty*irq)
	maxPosition := capital * a.cfg.MaxPositionPct

	for asset, w := range weights {
		amount := base * (w / totalWeight) * irqFactor
		if amount > maxPosition {
			amount = maxPosition
		}
		if amount > 0 {
			allocation[asset] = amount
		}
	}

	a.applySectorCaps(allocation, results, capital)

	minSize := MinPositionSize(capital)
	for asset, amount := range allocation {
		if amount < minSize {
			delete(allocation, asset)
		}
	}
	return allocation
}

// applySectorCaps trims allocations so neither sector exceeds its cap.
// Within a breached sector, the highest-scored assets keep their size and the
// tail is trimmed greedily.
func (a *Allocator) applySectorCaps(allocation map[string]float64, results map[string]model.MomentumResult, capital float64) {
	type sector struct {
		cap    float64
		assets []string
		total  float64
	}
	crypto := sector{cap: capital * a.cfg.SectorCapCrypto}
	b3 := sector{cap: capital * a.cfg.SectorCapB3}

	for asset, amount := range allocation {
		if a.crypto[asset] {
			crypto.assets = append(crypto.assets, asset)
			crypto.total += amount
		} else {
			b3.assets = append(b3.assets, asset)
			b3.total += amount
		}
	}

	for _, s := range []sector{crypto, b3} {
		if s.total <= s.cap {
			continue
		}
		sort.Slice(s.assets, func(i, j int) bool {
			si, sj := results[s.assets[i]].Score, results[s.assets[j]].Score
			if si != sj {
				return si > sj
			}
			return s.assets[i] < s.assets[j]
		})
		kept := 0.0
		for _, asset := range s.assets {
			room := s.cap - kept
			if room <= 0 {
				delete(allocation, asset)
				continue
			}
			if allocation[asset] > room {
				allocation[asset] = room
			}
			kept += allocation[asset]
		}
	}
}

// MinPositionSize is the smallest order worth placing: 1% of capital, floored
// at 1 and capped at 10 currency units.
func MinPositionSize(capital float64) float64 {
	return math.Max(1.0, math.Min(10.0, capital*0.01))
}

// Rebalance compares the target allocation with current holdings and emits a
// per-asset plan. Protection reductions apply to current positions first. New
// entries take the sized target as-is; held positions scale their protected
// amount by classification (grow 25%, hold, halve, exit), following the target
// down when it shrank. The no-trade band decides between BUY, SELL and HOLD.
func (a *Allocator) Rebalance(target map[string]float64, current map[string]float64, results map[string]model.MomentumResult, capital, irq float64, prot model.Protection) model.AllocationPlan {
	plan := make(model.AllocationPlan)
	maxPosition := capital * a.cfg.MaxPositionPct
	minSize := MinPositionSize(capital)

	assets := make(map[string]bool)
	for asset := range target {
		assets[asset] = true
	}
	for asset := range current {
		assets[asset] = true
	}

	for asset := range assets {
		r := results[asset]
		cur := current[asset]
		protected := cur * (1.0 - prot.ReductionPct)

		var recommended float64
		if cur == 0 {
			recommended = target[asset]
		} else {
			recommended = protected
			if t, ok := target[asset]; ok && t < recommended {
				recommended = t
			}
			switch r.Classification {
			case model.ForteAlta:
				if r.EntryValid {
					recommended *= 1.25
				}
			case model.AltaLeve:
				// keep
			case model.Lateral:
				recommended *= 0.5
			case model.Queda:
				recommended = 0
			}
		}

		if !prot.AllowNewPositions && recommended > protected {
			recommended = protected
		}
		if recommended > maxPosition {
			recommended = maxPosition
		}
		if recommended > 0 && recommended < minSize {
			recommended = 0
		}

		action := model.ActionHold
		changePct := 0.0
		switch {
		case cur == 0 && recommended > 0:
			action = model.ActionBuy
			changePct = 100.0
		case cur > 0:
			changePct = (recommended - cur) / cur * 100.0
			if recommended-cur >= a.cfg.TradeBand {
				action = model.ActionBuy
			} else if cur-recommended >= a.cfg.TradeBand {
				action = model.ActionSell
			}
		}

		if cur == 0 && recommended == 0 {
			continue
		}
		plan[asset] = model.PositionPlan{
			Asset:             asset,
			Classification:    r.Classification,
			EntryValid:        r.EntryValid,
			CurrentAmount:     cur,
			ProtectedAmount:   protected,
			RecommendedAmount: recommended,
			Action:            action,
			ChangePct:         changePct,
		}
	}
	return plan
}

// Metrics summarizes the risk profile of an allocation plan against total
// capital.
func Metrics(plan model.AllocationPlan, capital float64) model.PortfolioMetrics {
	m := model.PortfolioMetrics{}
	maxPos := 0.0
	for _, pos := range plan {
		if pos.RecommendedAmount <= 0 {
			continue
		}
		m.TotalAllocated += pos.RecommendedAmount
		m.ActivePositions++
		if pos.RecommendedAmount > maxPos {
			maxPos = pos.RecommendedAmount
		}
	}
	m.CashAvailable = capital - m.TotalAllocated
	if capital > 0 {
		m.CashPct = m.CashAvailable / capital * 100.0
		m.MaxPositionPct = maxPos / capital * 100.0
	}
	if m.ActivePositions > 0 && m.TotalAllocated > 0 {
		m.DiversificationRatio = 1.0 - (maxPos / m.TotalAllocated)
	}
	return m
}
