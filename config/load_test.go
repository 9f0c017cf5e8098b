package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
env: test
gateway:
  apiKey: k
  apiSecret: s
  restURL: https://api.binance.com
  wsEndpoint: wss://stream.binance.com:9443
risk:
  maxOrderValueUSD: 500
  slippagePct: 0.001
balance:
  cacheTTLSeconds: 20
symbols:
  BTCUSDC:
    baseAsset: BTC
    quoteAsset: USDC
    buyQuantity: 0.009
    sellQuantity: 0.009
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.InDelta(t, 500, cfg.Risk.MaxOrderValueUSD, 1e-9)
	assert.InDelta(t, 0.001, cfg.Risk.SlippagePct, 1e-9)
	assert.Equal(t, "BTC", cfg.Symbols["BTCUSDC"].BaseAsset)
}

func TestLoadDefaults(t *testing.T) {
	yaml := `
env: test
gateway: {apiKey: k, apiSecret: s}
symbols:
  BTCUSDC: {baseAsset: BTC, quoteAsset: USDC, buyQuantity: 0.01, sellQuantity: 0.01}
`
	cfg, err := Load(writeTemp(t, yaml))
	require.NoError(t, err)
	assert.InDelta(t, 500, cfg.Risk.MaxOrderValueUSD, 1e-9)
	assert.InDelta(t, 0.001, cfg.Risk.SlippagePct, 1e-9)
	assert.Equal(t, 20, cfg.Balance.CacheTTLSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing env", func(c *AppConfig) { c.Env = "" }},
		{"missing key", func(c *AppConfig) { c.Gateway.APIKey = "" }},
		{"zero cap", func(c *AppConfig) { c.Risk.MaxOrderValueUSD = -1 }},
		{"huge slippage", func(c *AppConfig) { c.Risk.SlippagePct = 0.5 }},
		{"no symbols", func(c *AppConfig) { c.Symbols = nil }},
		{"no base asset", func(c *AppConfig) {
			sc := c.Symbols["BTCUSDC"]
			sc.BaseAsset = ""
			c.Symbols["BTCUSDC"] = sc
		}},
		{"zero quantity", func(c *AppConfig) {
			sc := c.Symbols["BTCUSDC"]
			sc.BuyQuantity = 0
			c.Symbols["BTCUSDC"] = sc
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, validYAML))
			require.NoError(t, err)
			tc.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DT_GATEWAY_API_KEY", "env-key")
	t.Setenv("DT_GATEWAY_API_SECRET", "env-secret")

	cfg, err := LoadWithEnvOverrides(writeTemp(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Gateway.APIKey)
	assert.Equal(t, "env-secret", cfg.Gateway.APISecret)
}
