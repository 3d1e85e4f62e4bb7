package oipoller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"binance-oi-sentry/internal/storage"
	"binance-oi-sentry/pkg/types"
)

// OIClient 持仓量历史数据源
type OIClient interface {
	// OpenInterestHist 请求指定交易对最近的持仓量样本，返回顺序不可信
	OpenInterestHist(ctx context.Context, symbol string, period string, limit int) ([]types.OISample, error)
}

const (
	oiPeriod      = "15m"
	oiSampleCount = 2
)

// Poller 持仓量轮询器
// 每轮对全量交易对分批并发拉取最近两个持仓量样本，合并进状态表
type Poller struct {
	state        *storage.StateManager
	client       OIClient
	batchSize    int
	limiter      *rate.Limiter // 批次间限速，保护上游接口
	fetchTimeout time.Duration
	running      atomic.Bool // 单飞标志，禁止并行轮次
}

func NewPoller(state *storage.StateManager, client OIClient, cfg types.PollerConfig) *Poller {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchPause := cfg.BatchPause
	if batchPause <= 0 {
		batchPause = time.Second
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}

	return &Poller{
		state:        state,
		client:       client,
		batchSize:    batchSize,
		limiter:      rate.NewLimiter(rate.Every(batchPause), 1),
		fetchTimeout: fetchTimeout,
	}
}

// UpdateAll 执行一轮全量持仓量刷新
// 已有轮次在执行时直接跳过，不排队不并行；单个交易对失败不影响本轮其它请求
func (p *Poller) UpdateAll(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		zap.L().Info("⏳ 上一轮持仓量刷新仍在进行，本次触发跳过")
		return
	}
	defer p.running.Store(false)

	symbols := p.state.Symbols()
	if len(symbols) == 0 {
		zap.L().Warn("⚠️ 合约集合为空，跳过持仓量刷新")
		return
	}

	startTime := time.Now()
	zap.L().Info("🔄 开始刷新全量持仓量", zap.Int("symbols", len(symbols)))

	var (
		updated atomic.Int64
		failMu  sync.Mutex
		failed  []string
	)

	for start := 0; start < len(symbols); start += p.batchSize {
		if ctx.Err() != nil {
			zap.L().Info("📴 持仓量刷新中断")
			return
		}

		// 批次间限速
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		end := start + p.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		// 批次内全部并发
		var wg sync.WaitGroup
		for _, symbol := range batch {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				if p.fetchAndMerge(ctx, sym) {
					updated.Add(1)
				} else {
					failMu.Lock()
					failed = append(failed, sym)
					failMu.Unlock()
				}
			}(symbol)
		}
		wg.Wait()
	}

	duration := time.Since(startTime)
	if len(failed) > 0 {
		zap.L().Warn("⚠️ 持仓量刷新完成，部分交易对失败",
			zap.Int64("updated", updated.Load()),
			zap.Int("failed", len(failed)),
			zap.Strings("failed_symbols", failed),
			zap.Duration("duration", duration))
	} else {
		zap.L().Info("✅ 持仓量刷新完成",
			zap.Int64("updated", updated.Load()),
			zap.Duration("duration", duration))
	}

	// 一轮刷新算一次合并事件
	p.state.NotifyRefresh()
}

// fetchAndMerge 拉取单个交易对的持仓量样本并合并进记录
// 零样本或请求失败时记录保持原值
func (p *Poller) fetchAndMerge(ctx context.Context, symbol string) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	samples, err := p.client.OpenInterestHist(fetchCtx, symbol, oiPeriod, oiSampleCount)
	if err != nil {
		zap.L().Warn("❌ 拉取持仓量失败", zap.String("symbol", symbol), zap.Error(err))
		return false
	}

	update, ok := MergeSamples(samples)
	if !ok {
		// 零样本按失败计数，但不清空已有数据
		return false
	}

	return p.state.ApplyOIUpdate(symbol, update)
}

// MergeSamples 把接口返回的样本归并为一次字段组更新
// 双样本时显式比较时间戳决定latest/previous，绝不信任数组顺序；
// 单样本时只更新latest，previous保持原值；零样本返回false
func MergeSamples(samples []types.OISample) (types.OIUpdate, bool) {
	switch {
	case len(samples) == 0:
		return types.OIUpdate{}, false
	case len(samples) == 1:
		return types.OIUpdate{
			Latest:     samples[0].Value,
			LatestTime: samples[0].Time,
		}, true
	default:
		newer, older := samples[0], samples[1]
		if older.Time.After(newer.Time) {
			newer, older = older, newer
		}
		prev := older.Value
		prevTime := older.Time
		return types.OIUpdate{
			Latest:       newer.Value,
			LatestTime:   newer.Time,
			Previous:     &prev,
			PreviousTime: &prevTime,
		}, true
	}
}
