package marketdata

import (
	"context"
	"math"
	"time"

	"github.com/testando12/daytrade-bot/internal/model"
)

// Provider fetches price series for a set of assets on one timeframe.
// Implementations return partial snapshots when some assets fail; a snapshot
// with zero entries is an error.
type Provider interface {
	GetSnapshot(ctx context.Context, assets []string, timeframe string, limit int) (model.Snapshot, error)
	Name() string
}

// MockProvider returns deterministic synthetic data for development and
// testing. Each asset gets a gentle sine drift around its base price so the
// indicator pipeline always has something to chew on.
type MockProvider struct {
	BasePrices map[string]float64
	Series     map[string]model.PriceSeries // overrides generation when set
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) GetSnapshot(_ context.Context, assets []string, timeframe string, limit int) (model.Snapshot, error) {
	snap := make(model.Snapshot, len(assets))
	for _, asset := range assets {
		if s, ok := m.Series[asset]; ok {
			snap[asset] = s
			continue
		}
		base := m.BasePrices[asset]
		if base == 0 {
			base = 100.0
		}
		snap[asset] = generateSeries(asset, timeframe, base, limit)
	}
	return snap, nil
}

func generateSeries(asset, timeframe string, base float64, count int) model.PriceSeries {
	prices := make([]float64, count)
	volumes := make([]float64, count)
	for i := 0; i < count; i++ {
		drift := 1.0 + 0.002*float64(i-count/2)/float64(count)
		wobble := 1.0 + 0.01*math.Sin(float64(i)/5.0)
		prices[i] = base * drift * wobble
		volumes[i] = 1_000_000 * (1.0 + 0.1*math.Cos(float64(i)/7.0))
	}
	return model.PriceSeries{
		Asset:     asset,
		Timeframe: timeframe,
		Prices:    prices,
		Volumes:   volumes,
		FetchedAt: time.Now(),
	}
}
