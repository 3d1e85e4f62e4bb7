package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"binance-oi-sentry/internal/analyzer"
	"binance-oi-sentry/internal/oipoller"
)

// alignPeriod 持仓量快照按刻钟对齐，与其它按相同边界调度的系统保持一致
const alignPeriod = 15 * time.Minute

// Scheduler 调度器
// 按墙钟刻钟边界驱动持仓量刷新和预警评估，进程中途启动时等到下一个边界再跑第一轮
type Scheduler struct {
	poller   *oipoller.Poller
	analyzer *analyzer.AnalysisEngine // 为nil时不做预警评估
	now      func() time.Time
}

func NewScheduler(poller *oipoller.Poller, analysisEngine *analyzer.AnalysisEngine) *Scheduler {
	return &Scheduler{
		poller:   poller,
		analyzer: analysisEngine,
		now:      time.Now,
	}
}

// Start 启动调度循环，阻塞直到ctx取消
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("🚀 调度器启动",
		zap.Duration("period", alignPeriod),
		zap.Bool("alerting", s.analyzer != nil))

	for {
		next := NextBoundary(s.now(), alignPeriod)
		wait := next.Sub(s.now())
		zap.L().Info("⏳ 等待下一个刻钟边界",
			zap.String("next", next.Format("15:04:05")),
			zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			zap.L().Info("📴 调度器已停止")
			return
		case <-time.After(wait):
		}

		s.runOnce(ctx)
	}
}

// runOnce 一个调度周期：先刷新持仓量，再做预警评估
func (s *Scheduler) runOnce(ctx context.Context) {
	s.poller.UpdateAll(ctx)

	if ctx.Err() != nil {
		return
	}
	if s.analyzer != nil {
		s.analyzer.EvaluateAll()
	}
}

// NextBoundary 计算now之后第一个满足 minute % period == 0 的整分边界
// 恰好落在边界上时返回下一个边界，避免同一边界触发两次
func NextBoundary(now time.Time, period time.Duration) time.Time {
	truncated := now.Truncate(period)
	if !truncated.After(now) {
		truncated = truncated.Add(period)
	}
	return truncated
}
