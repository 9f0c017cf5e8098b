package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string                  `yaml:"env"`
	Gateway GatewayConfig           `yaml:"gateway"`
	Risk    RiskConfig              `yaml:"risk"`
	Balance BalanceConfig           `yaml:"balance"`
	Symbols map[string]SymbolConfig `yaml:"symbols"`
}

type GatewayConfig struct {
	APIKey     string `yaml:"apiKey"`
	APISecret  string `yaml:"apiSecret"`
	RestURL    string `yaml:"restURL"`
	WSEndpoint string `yaml:"wsEndpoint"`
}

// RiskConfig 本地风控参数：单笔名义上限与止损限价的让价比例。
// 这些是可热更新的运行时参数（见 internal/config）。
type RiskConfig struct {
	MaxOrderValueUSD float64 `yaml:"maxOrderValueUSD"`
	SlippagePct      float64 `yaml:"slippagePct"`
}

type BalanceConfig struct {
	CacheTTLSeconds int `yaml:"cacheTTLSeconds"`
}

// SymbolConfig 交易对配置。数量是拖拽下单时该方向的预设手数。
type SymbolConfig struct {
	BaseAsset    string  `yaml:"baseAsset"`
	QuoteAsset   string  `yaml:"quoteAsset"`
	BuyQuantity  float64 `yaml:"buyQuantity"`
	SellQuantity float64 `yaml:"sellQuantity"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("DT_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("DT_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Risk.MaxOrderValueUSD == 0 {
		cfg.Risk.MaxOrderValueUSD = 500
	}
	if cfg.Risk.SlippagePct == 0 {
		cfg.Risk.SlippagePct = 0.001
	}
	if cfg.Balance.CacheTTLSeconds == 0 {
		cfg.Balance.CacheTTLSeconds = 20
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Risk.MaxOrderValueUSD <= 0 {
		return errors.New("risk.maxOrderValueUSD must be > 0")
	}
	if cfg.Risk.SlippagePct <= 0 || cfg.Risk.SlippagePct >= 0.1 {
		return errors.New("risk.slippagePct must be in (0, 0.1)")
	}
	if cfg.Balance.CacheTTLSeconds < 0 {
		return errors.New("balance.cacheTTLSeconds must be >= 0")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	for sym, sc := range cfg.Symbols {
		if sc.BaseAsset == "" || sc.QuoteAsset == "" {
			return fmt.Errorf("symbol %s base/quote asset is required", sym)
		}
		if sc.BuyQuantity <= 0 || sc.SellQuantity <= 0 {
			return fmt.Errorf("symbol %s buy/sell quantity must be > 0", sym)
		}
	}
	return nil
}
