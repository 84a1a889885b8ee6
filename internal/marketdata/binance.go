package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/testando12/daytrade-bot/internal/model"
)

// BinanceProvider implements Provider using the Binance public klines API.
// No API key is needed for market data.
type BinanceProvider struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Binance pair
}

// NewBinanceProvider creates a Binance market data provider. An optional
// proxy URL routes requests through the given proxy.
func NewBinanceProvider(proxyURL string) *BinanceProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &BinanceProvider{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		BaseURL: "https://api.binance.com",
		SymbolMap: map[string]string{
			"BTC-USD": "BTCUSDT",
			"ETH-USD": "ETHUSDT",
			"SOL-USD": "SOLUSDT",
		},
	}
}

func (p *BinanceProvider) Name() string { return "binance" }

func (p *BinanceProvider) binanceSymbol(asset string) string {
	if mapped, ok := p.SymbolMap[asset]; ok {
		return mapped
	}
	return strings.ReplaceAll(asset, "-", "")
}

// GetSnapshot fetches klines for each asset. Assets that fail are logged and
// skipped; an error is returned only when nothing could be fetched.
func (p *BinanceProvider) GetSnapshot(ctx context.Context, assets []string, timeframe string, limit int) (model.Snapshot, error) {
	snap := make(model.Snapshot, len(assets))
	var lastErr error
	for _, asset := range assets {
		series, err := p.fetchKlines(ctx, asset, timeframe, limit)
		if err != nil {
			log.Warn().Err(err).Str("asset", asset).Str("timeframe", timeframe).Msg("kline fetch failed, skipping asset")
			lastErr = err
			continue
		}
		snap[asset] = series
	}
	if len(snap) == 0 {
		return nil, fmt.Errorf("binance: no assets fetched: %w", lastErr)
	}
	return snap, nil
}

func (p *BinanceProvider) fetchKlines(ctx context.Context, asset, interval string, limit int) (model.PriceSeries, error) {
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		p.BaseURL, url.QueryEscape(p.binanceSymbol(asset)), interval, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("binance fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("binance read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.PriceSeries{}, fmt.Errorf("binance: status %d, body: %s", resp.StatusCode, string(body))
	}

	// Each kline is a mixed-type array:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.PriceSeries{}, fmt.Errorf("binance decode: %w", err)
	}
	if len(raw) == 0 {
		return model.PriceSeries{}, fmt.Errorf("binance: no data for %s", asset)
	}

	prices := make([]float64, 0, len(raw))
	volumes := make([]float64, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		closePrice := parseField(k[4])
		if closePrice == 0 {
			continue
		}
		prices = append(prices, closePrice)
		volumes = append(volumes, parseField(k[5]))
	}

	return model.PriceSeries{
		Asset:     asset,
		Timeframe: interval,
		Prices:    prices,
		Volumes:   volumes,
		FetchedAt: time.Now(),
	}, nil
}

// parseField handles Binance's string-encoded numbers.
func parseField(v interface{}) float64 {
	switch n := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	case float64:
		return n
	default:
		return 0
	}
}
