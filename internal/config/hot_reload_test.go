package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "drag-trade-go/config"
)

const baseYAML = `
env: test
gateway:
  apiKey: k
  apiSecret: s
risk:
  maxOrderValueUSD: 500
  slippagePct: 0.001
symbols:
  BTCUSDC:
    baseAsset: BTC
    quoteAsset: USDC
    buyQuantity: 0.01
    sellQuantity: 0.01
`

const updatedYAML = `
env: test
gateway:
  apiKey: k
  apiSecret: s
risk:
  maxOrderValueUSD: 1000
  slippagePct: 0.002
symbols:
  BTCUSDC:
    baseAsset: BTC
    quoteAsset: USDC
    buyQuantity: 0.01
    sellQuantity: 0.01
`

type capturingApplier struct {
	mu      sync.Mutex
	applied []appcfg.RiskConfig
}

func (a *capturingApplier) ApplyRisk(risk appcfg.RiskConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, risk)
}

func (a *capturingApplier) last() (appcfg.RiskConfig, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.applied) == 0 {
		return appcfg.RiskConfig{}, false
	}
	return a.applied[len(a.applied)-1], true
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestReloadAppliesNewRisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, baseYAML)

	applier := &capturingApplier{}
	hr, err := NewHotReloader(path, HotReloadConfig{Enabled: true, CooldownTime: 0}, applier, nil)
	require.NoError(t, err)
	require.NoError(t, hr.Start(context.Background()))
	defer hr.Stop()

	writeConfig(t, path, updatedYAML)

	require.True(t, waitFor(t, func() bool { return hr.Reloads() >= 1 }), "reload never fired")
	risk, ok := applier.last()
	require.True(t, ok)
	assert.InDelta(t, 1000, risk.MaxOrderValueUSD, 1e-9)
	assert.InDelta(t, 0.002, risk.SlippagePct, 1e-9)
}

func TestBrokenConfigKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, baseYAML)

	applier := &capturingApplier{}
	hr, err := NewHotReloader(path, HotReloadConfig{Enabled: true, CooldownTime: 0}, applier, nil)
	require.NoError(t, err)
	require.NoError(t, hr.Start(context.Background()))
	defer hr.Stop()

	writeConfig(t, path, "env: [broken")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, hr.Reloads())
	_, applied := applier.last()
	assert.False(t, applied, "broken config must not be applied")
}

func TestDisabledReloaderDoesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, baseYAML)

	applier := &capturingApplier{}
	hr, err := NewHotReloader(path, HotReloadConfig{Enabled: false}, applier, nil)
	require.NoError(t, err)
	require.NoError(t, hr.Start(context.Background()))

	writeConfig(t, path, updatedYAML)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, hr.Reloads())
	require.NoError(t, hr.Stop())
}

func TestCooldownCollapsesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, baseYAML)

	applier := &capturingApplier{}
	hr, err := NewHotReloader(path, HotReloadConfig{Enabled: true, CooldownTime: time.Hour}, applier, nil)
	require.NoError(t, err)
	require.NoError(t, hr.Start(context.Background()))
	defer hr.Stop()

	// 编辑器式多次连写
	writeConfig(t, path, updatedYAML)
	writeConfig(t, path, updatedYAML)
	writeConfig(t, path, updatedYAML)

	require.True(t, waitFor(t, func() bool { return hr.Reloads() >= 1 }))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, hr.Reloads(), "cooldown window must collapse repeated writes")
}

func TestDefaultHotReloadConfig(t *testing.T) {
	cfg := DefaultHotReloadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5*time.Second, cfg.CooldownTime)
}
