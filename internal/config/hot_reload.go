// Package config 提供风控参数的热更新：监听配置文件变化，校验通过后
// 把新的 risk 参数推给正在运行的引擎，无需重启。
package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	appcfg "drag-trade-go/config"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免编辑器多次写入触发抖动
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 5 * time.Second,
	}
}

// RiskApplier 接收校验通过的新风控参数；internal/engine.Terminal 实现它。
type RiskApplier interface {
	ApplyRisk(risk appcfg.RiskConfig)
}

// HotReloader 配置热更新器
type HotReloader struct {
	config     HotReloadConfig
	configPath string
	watcher    *fsnotify.Watcher
	applier    RiskApplier
	log        *zap.Logger

	mu         sync.Mutex
	lastReload time.Time
	reloads    int
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewHotReloader 创建热更新器。log 可为 nil。
func NewHotReloader(configPath string, cfg HotReloadConfig, applier RiskApplier, log *zap.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HotReloader{
		config:     cfg,
		configPath: configPath,
		watcher:    watcher,
		applier:    applier,
		log:        log,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// Start 启动热更新监听。
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		close(h.doneChan)
		return nil
	}
	if err := h.watcher.Add(h.configPath); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go h.watchLoop(ctx)
	return nil
}

// Stop 停止监听并等待循环退出。
func (h *HotReloader) Stop() error {
	close(h.stopChan)
	<-h.doneChan
	return h.watcher.Close()
}

// Reloads 返回成功应用的次数。
func (h *HotReloader) Reloads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloads
}

func (h *HotReloader) watchLoop(ctx context.Context) {
	defer close(h.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.maybeReload()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

// maybeReload 冷却窗口内的重复写入只触发一次。
func (h *HotReloader) maybeReload() {
	h.mu.Lock()
	if time.Since(h.lastReload) < h.config.CooldownTime {
		h.mu.Unlock()
		return
	}
	h.lastReload = time.Now()
	h.mu.Unlock()

	cfg, err := appcfg.LoadWithEnvOverrides(h.configPath)
	if err != nil {
		// 配置写坏了就维持现状，只告警
		h.log.Warn("config reload rejected", zap.Error(err))
		return
	}
	h.applier.ApplyRisk(cfg.Risk)

	h.mu.Lock()
	h.reloads++
	h.mu.Unlock()
	h.log.Info("risk parameters reloaded",
		zap.Float64("maxOrderValueUSD", cfg.Risk.MaxOrderValueUSD),
		zap.Float64("slippagePct", cfg.Risk.SlippagePct))
}
