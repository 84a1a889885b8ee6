package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/testando12/daytrade-bot/internal/model"
)

func series(n int, base, stepPct float64) ([]float64, []float64) {
	prices := make([]float64, n)
	volumes := make([]float64, n)
	p := base
	for i := 0; i < n; i++ {
		prices[i] = p
		volumes[i] = 1_000_000
		p *= 1 + stepPct
	}
	return prices, volumes
}

func TestIRQ_ShortSeriesInvalid(t *testing.T) {
	e := NewEngine(Config{})
	res := e.IRQ([]float64{100, 101}, []float64{1, 1})
	if res.Valid {
		t.Error("short series should be invalid")
	}
	if res.IRQScore != 0 {
		t.Errorf("invalid assessment should carry zero score, got %.3f", res.IRQScore)
	}
	if res.StopLossPct != 0.05 {
		t.Errorf("invalid assessment should carry the default stop, got %.3f", res.StopLossPct)
	}
}

func TestIRQ_CalmUptrendIsLowRisk(t *testing.T) {
	e := NewEngine(Config{})
	prices, volumes := series(60, 100, 0.002)
	res := e.IRQ(prices, volumes)

	if !res.Valid {
		t.Fatal("expected valid assessment")
	}
	if res.IRQScore >= 0.5 {
		t.Errorf("calm uptrend should score below the logistic midpoint, got %.3f", res.IRQScore)
	}
	if res.TrendLoss != 0 {
		t.Errorf("uptrend should show no trend loss, got %.3f", res.TrendLoss)
	}
	if res.LosingStreak != 0 {
		t.Error("uptrend has no losing streak")
	}
	if prot := e.ProtectionFor(res.IRQScore); prot.Level != model.LevelNormal {
		t.Errorf("expected NORMAL protection, got %s", prot.Level)
	}
}

func TestIRQ_CrashIsHighRisk(t *testing.T) {
	e := NewEngine(Config{})
	prices, volumes := series(60, 100, -0.03)
	volumes[len(volumes)-1] = 5_000_000 // selling climax

	res := e.IRQ(prices, volumes)
	if res.IRQScore <= 0.5 {
		t.Errorf("steep decline should score above the logistic midpoint, got %.3f (raw %.3f)", res.IRQScore, res.RawIRQScore)
	}
	if res.TrendLoss <= 0 {
		t.Error("decline should register trend loss")
	}
	if res.SellingPressure <= 0 {
		t.Error("high-volume down candle should register selling pressure")
	}
	if res.LosingStreak != 1 {
		t.Error("three straight down candles should flag the losing streak")
	}
	if res.Drawdown <= 0 {
		t.Error("decline should register drawdown")
	}
}

func TestProtectionFor_Thresholds(t *testing.T) {
	e := NewEngine(Config{})
	tests := []struct {
		irq       float64
		level     model.ProtectionLevel
		reduction float64
		allowNew  bool
	}{
		{0.10, model.LevelNormal, 0, true},
		{0.69, model.LevelNormal, 0, true},
		{0.70, model.LevelAlto, 0.40, true},
		{0.79, model.LevelAlto, 0.40, true},
		{0.80, model.LevelMuitoAlto, 0.70, false},
		{0.89, model.LevelMuitoAlto, 0.70, false},
		{0.90, model.LevelCritico, 1.0, false},
		{0.99, model.LevelCritico, 1.0, false},
	}
	for _, tt := range tests {
		prot := e.ProtectionFor(tt.irq)
		if prot.Level != tt.level {
			t.Errorf("irq %.2f: level %s, want %s", tt.irq, prot.Level, tt.level)
		}
		if prot.ReductionPct != tt.reduction {
			t.Errorf("irq %.2f: reduction %.2f, want %.2f", tt.irq, prot.ReductionPct, tt.reduction)
		}
		if prot.AllowNewPositions != tt.allowNew {
			t.Errorf("irq %.2f: allowNew %v, want %v", tt.irq, prot.AllowNewPositions, tt.allowNew)
		}
	}
}

func TestDynamicStopLoss_Clamped(t *testing.T) {
	e := NewEngine(Config{})

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	if got := e.DynamicStopLoss(flat); got != 0.01 {
		t.Errorf("zero-ATR series should clamp to 1%%, got %.3f", got)
	}

	wild := make([]float64, 30)
	for i := range wild {
		if i%2 == 0 {
			wild[i] = 100
		} else {
			wild[i] = 120
		}
	}
	if got := e.DynamicStopLoss(wild); got != 0.10 {
		t.Errorf("extreme ATR should clamp to 10%%, got %.3f", got)
	}

	if got := e.DynamicStopLoss([]float64{100}); got != 0.05 {
		t.Errorf("too-short series should fall back to default, got %.3f", got)
	}
}

func TestLosingStreak(t *testing.T) {
	if !LosingStreak([]float64{100, 99, 98, 97}, 3) {
		t.Error("three straight losses should flag")
	}
	if LosingStreak([]float64{100, 99, 100, 97}, 3) {
		t.Error("interrupted streak should not flag")
	}
	if LosingStreak([]float64{100, 99}, 3) {
		t.Error("insufficient data should not flag")
	}
}

func TestDrawdown(t *testing.T) {
	prices := []float64{100, 110, 105, 99}
	got := Drawdown(prices, 20)
	if got < 0.09 || got > 0.11 {
		t.Errorf("expected ~10%% drawdown from the 110 peak, got %.3f", got)
	}
	if Drawdown([]float64{100, 110}, 20) != 0 {
		t.Error("series ending at its peak should have zero drawdown")
	}
}

func TestIRQ_BoundedOnRandomSeries(t *testing.T) {
	e := NewEngine(Config{})
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		n := 22 + rng.Intn(100)
		prices := make([]float64, n)
		volumes := make([]float64, n)
		p := 10 + rng.Float64()*1000
		for j := 0; j < n; j++ {
			p *= 1 + (rng.Float64()-0.5)*0.2
			if p < 0.01 {
				p = 0.01
			}
			prices[j] = p
			volumes[j] = rng.Float64() * 10_000_000
		}

		res := e.IRQ(prices, volumes)
		if !res.Valid {
			t.Fatalf("series %d of length %d should be valid", i, n)
		}
		if res.IRQScore < 0 || res.IRQScore > 1 || math.IsNaN(res.IRQScore) {
			t.Fatalf("series %d: irq out of [0,1]: %v", i, res.IRQScore)
		}
		if res.RawIRQScore < 0 || math.IsNaN(res.RawIRQScore) {
			t.Fatalf("series %d: negative or NaN raw score: %v", i, res.RawIRQScore)
		}
	}
}
