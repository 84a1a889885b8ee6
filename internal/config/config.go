// Package config loads the bot configuration from YAML, applies struct
// defaults and environment overrides, and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/testando12/daytrade-bot/internal/exits"
	"github.com/testando12/daytrade-bot/internal/horizon"
	"github.com/testando12/daytrade-bot/internal/momentum"
	"github.com/testando12/daytrade-bot/internal/portfolio"
	"github.com/testando12/daytrade-bot/internal/protection"
	"github.com/testando12/daytrade-bot/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Provider struct {
		// Name selects the market data source: "binance" or "mock".
		Name  string `yaml:"name" default:"binance" validate:"oneof=binance mock"`
		Proxy string `yaml:"proxy"`
	} `yaml:"provider"`

	Trading struct {
		Assets         []string `yaml:"assets" validate:"min=1"`
		ReferenceAsset string   `yaml:"reference_asset"`
		InitialCapital float64  `yaml:"initial_capital" default:"1000" validate:"gt=0"`
		CandleLimit    int      `yaml:"candle_limit" default:"100" validate:"gte=22"`
		MaxTradesHour  int      `yaml:"max_trades_hour" default:"20"`
		MaxTradesDay   int      `yaml:"max_trades_day" default:"100"`
	} `yaml:"trading"`

	Schedule struct {
		CycleCron string `yaml:"cycle_cron" default:"0 */5 * * * *"`
	} `yaml:"schedule"`

	Storage struct {
		DataDir    string `yaml:"data_dir" default:"data"`
		SQLitePath string `yaml:"sqlite_path" default:"data/daytrade.db"`
	} `yaml:"storage"`

	Momentum   momentum.Config   `yaml:"momentum"`
	Risk       risk.Config       `yaml:"risk"`
	Portfolio  portfolio.Config  `yaml:"portfolio"`
	Exits      exits.Config      `yaml:"exits"`
	Horizon    horizon.Config    `yaml:"horizon"`
	Protection protection.Config `yaml:"protection"`
}

// Load reads config from a YAML file, fills defaults and applies environment
// variable overrides. A missing file yields a default config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Provider.Proxy = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		if capital, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.InitialCapital = capital
		}
	}
	if v := os.Getenv("CRON_CYCLE"); v != "" {
		cfg.Schedule.CycleCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if len(cfg.Trading.Assets) == 0 {
		cfg.Trading.Assets = []string{"BTC-USD", "ETH-USD", "SOL-USD", "PETR4.SA", "VALE3.SA"}
	}
	if cfg.Trading.ReferenceAsset == "" {
		cfg.Trading.ReferenceAsset = cfg.Trading.Assets[0]
		for _, a := range cfg.Trading.Assets {
			if a == "BTC-USD" {
				cfg.Trading.ReferenceAsset = a
				break
			}
		}
	}
	if cfg.Protection.InitialCapital == 0 {
		cfg.Protection.InitialCapital = cfg.Trading.InitialCapital
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	found := false
	for _, a := range c.Trading.Assets {
		if a == c.Trading.ReferenceAsset {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("trading.reference_asset %q is not in trading.assets", c.Trading.ReferenceAsset)
	}
	return nil
}
