// Package balance exposes account balances to the order pipeline as
// eventually-consistent snapshots. The exchange owns the data; this layer
// only caches and invalidates.
package balance

import (
	"context"
	"sync"
	"time"
)

// AccountMode 现货或保证金账户。
type AccountMode string

const (
	ModeSpot   AccountMode = "spot"
	ModeMargin AccountMode = "margin"
)

// Snapshot 单一资产的可用/锁定余额。
type Snapshot struct {
	Free   float64
	Locked float64
}

// Source 供 intent.Builder 消费的余额读取接口。
type Source interface {
	Available(ctx context.Context, asset string, mode AccountMode) (Snapshot, error)
	MaxBorrowable(ctx context.Context, asset string) (float64, error)
}

// Fetcher 底层 REST 拉取；gateway.BinanceRESTClient 实现它。
type Fetcher interface {
	FetchBalances(ctx context.Context, mode AccountMode) (map[string]Snapshot, error)
	FetchMaxBorrowable(ctx context.Context, asset string) (float64, error)
}

// CachedSource 带短 TTL 的余额缓存。快照只是最终一致的：
// 提交时余额已过期、被交易所以资金不足拒单是预期路径，按提交错误上抛。
type CachedSource struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	balances  map[AccountMode]map[string]Snapshot
	fetchedAt map[AccountMode]time.Time
	borrow    map[string]float64
	borrowAt  map[string]time.Time
}

// NewCachedSource 创建缓存余额源；ttl<=0 时取 20 秒。
func NewCachedSource(fetcher Fetcher, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 20 * time.Second
	}
	return &CachedSource{
		fetcher:   fetcher,
		ttl:       ttl,
		now:       time.Now,
		balances:  make(map[AccountMode]map[string]Snapshot),
		fetchedAt: make(map[AccountMode]time.Time),
		borrow:    make(map[string]float64),
		borrowAt:  make(map[string]time.Time),
	}
}

// Available 返回资产在给定账户模式下的可用/锁定余额，必要时刷新缓存。
func (c *CachedSource) Available(ctx context.Context, asset string, mode AccountMode) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Sub(c.fetchedAt[mode]) >= c.ttl || c.balances[mode] == nil {
		fresh, err := c.fetcher.FetchBalances(ctx, mode)
		if err != nil {
			return Snapshot{}, err
		}
		c.balances[mode] = fresh
		c.fetchedAt[mode] = c.now()
	}
	return c.balances[mode][asset], nil
}

// MaxBorrowable 返回保证金账户对该资产的最大可借额度。
func (c *CachedSource) MaxBorrowable(ctx context.Context, asset string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Sub(c.borrowAt[asset]) >= c.ttl {
		amt, err := c.fetcher.FetchMaxBorrowable(ctx, asset)
		if err != nil {
			return 0, err
		}
		c.borrow[asset] = amt
		c.borrowAt[asset] = c.now()
	}
	return c.borrow[asset], nil
}

// InvalidateBalances 丢弃所有缓存。成交事件之后由 order.Manager 调用。
func (c *CachedSource) InvalidateBalances() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = make(map[AccountMode]map[string]Snapshot)
	c.fetchedAt = make(map[AccountMode]time.Time)
	c.borrow = make(map[string]float64)
	c.borrowAt = make(map[string]time.Time)
}
