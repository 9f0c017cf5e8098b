package config

import (
	"context"
	"os"
	"time"
)

// RiskPoller is the fallback for environments where inotify is unavailable:
// it polls the config file mtime and pushes reloaded risk parameters to the
// callback. The fsnotify reloader in internal/config is the primary path.
type RiskPoller struct {
	Path     string
	Interval time.Duration
}

// Run polls until ctx is cancelled. A config that fails to load or validate
// is skipped; the previously applied parameters stay in effect.
func (p RiskPoller) Run(ctx context.Context, apply func(RiskConfig)) error {
	if p.Interval <= 0 {
		p.Interval = 2 * time.Second
	}
	var lastMod time.Time
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := statFile(p.Path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			cfg, err := LoadWithEnvOverrides(p.Path)
			if err != nil {
				continue
			}
			if apply != nil {
				apply(cfg.Risk)
			}
		}
	}
}

// statFile is extracted for testing/mocking.
var statFile = func(path string) (info interface{ ModTime() time.Time }, err error) {
	return os.Stat(path)
}
