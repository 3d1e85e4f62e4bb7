package analyzer

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"binance-oi-sentry/internal/notifier"
	"binance-oi-sentry/internal/storage"
	"binance-oi-sentry/pkg/types"
)

// AnalysisEngine 持仓量预警引擎
// 每个交易对在COOLED/COOLING两态间切换：触发预警进入COOLING，冷却期满回到COOLED
type AnalysisEngine struct {
	state    *storage.StateManager
	notifier notifier.Interface
	cooldown time.Duration

	mutex      sync.RWMutex
	threshold  float64
	lastAlerts map[string]time.Time // 每个交易对的最近预警时间

	now func() time.Time // 测试注入
}

func NewAnalysisEngine(state *storage.StateManager, notifyService notifier.Interface, alertConfig types.AlertConfig) *AnalysisEngine {
	cooldown := alertConfig.Cooldown
	if cooldown <= 0 {
		cooldown = 4 * time.Hour
	}
	return &AnalysisEngine{
		state:      state,
		notifier:   notifyService,
		cooldown:   cooldown,
		threshold:  alertConfig.Threshold,
		lastAlerts: make(map[string]time.Time),
		now:        time.Now,
	}
}

// CalculateOIChange 计算持仓量变化率（百分比）
// previous为0时无定义，返回false
func CalculateOIChange(latest, previous float64) (float64, bool) {
	if previous == 0 {
		return 0, false
	}
	return (latest - previous) / previous * 100, true
}

// EvaluateAll 对当前快照做一轮预警评估
// 所有命中的交易对并发派发，发送失败不回滚冷却状态（宁可漏发不可重发）
func (ae *AnalysisEngine) EvaluateAll() {
	snapshot := ae.state.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	threshold := ae.Threshold()
	now := ae.now()

	var candidates []*types.AlertData
	for _, record := range snapshot {
		alert := ae.evaluateRecord(record, threshold, now)
		if alert != nil {
			candidates = append(candidates, alert)
		}
	}

	if len(candidates) == 0 {
		return
	}

	zap.L().Info("🔔 检测到持仓量急增",
		zap.Int("count", len(candidates)),
		zap.Float64("threshold", threshold))

	// 先记录冷却时间再派发，投递失败也不重置
	ae.mutex.Lock()
	for _, alert := range candidates {
		ae.lastAlerts[alert.Symbol] = now
	}
	ae.mutex.Unlock()

	var wg sync.WaitGroup
	for _, alert := range candidates {
		wg.Add(1)
		go func(a *types.AlertData) {
			defer wg.Done()
			if err := ae.notifier.SendAlert(a); err != nil {
				zap.L().Error("❌ 发送预警失败", zap.String("symbol", a.Symbol), zap.Error(err))
			}
		}(alert)
	}
	wg.Wait()
}

// evaluateRecord 评估单条记录，命中且不在冷却期时返回预警数据
func (ae *AnalysisEngine) evaluateRecord(record types.Instrument, threshold float64, now time.Time) *types.AlertData {
	if record.LatestOpenInterest == nil || record.PreviousOpenInterest == nil {
		return nil
	}

	oiChange, ok := CalculateOIChange(*record.LatestOpenInterest, *record.PreviousOpenInterest)
	if !ok {
		return nil
	}

	// 只有正向急增才触发，跌幅无论多大都不预警
	if oiChange < threshold {
		return nil
	}

	if !ae.isCooled(record.Symbol, now) {
		return nil
	}

	price := 0.0
	if record.Price != nil {
		price = *record.Price
	}

	return &types.AlertData{
		Symbol:        record.Symbol,
		ChangePercent: oiChange,
		LatestOI:      *record.LatestOpenInterest,
		PreviousOI:    *record.PreviousOpenInterest,
		Price:         price,
		AlertTime:     now,
	}
}

// isCooled 冷却期已过才允许再次预警
func (ae *AnalysisEngine) isCooled(symbol string, now time.Time) bool {
	ae.mutex.RLock()
	defer ae.mutex.RUnlock()

	lastAlert, exists := ae.lastAlerts[symbol]
	if !exists {
		return true
	}
	return now.Sub(lastAlert) > ae.cooldown
}

// SetThreshold 更新全局阈值，合法性校验在HTTP边界完成
func (ae *AnalysisEngine) SetThreshold(value float64) error {
	if value < 0 {
		return fmt.Errorf("阈值不能为负数: %v", value)
	}

	ae.mutex.Lock()
	ae.threshold = value
	ae.mutex.Unlock()

	zap.L().Info("🔧 预警阈值已更新", zap.Float64("threshold", value))
	return nil
}

// Threshold 读取当前阈值
func (ae *AnalysisEngine) Threshold() float64 {
	ae.mutex.RLock()
	defer ae.mutex.RUnlock()
	return ae.threshold
}
