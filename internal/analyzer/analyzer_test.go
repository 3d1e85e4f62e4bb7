package analyzer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-oi-sentry/internal/storage"
	"binance-oi-sentry/pkg/types"
)

// recordingNotifier 记录收到的预警，可选固定返回错误
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*types.AlertData
	err    error
}

func (rn *recordingNotifier) SendAlert(alert *types.AlertData) error {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.alerts = append(rn.alerts, alert)
	return rn.err
}

func (rn *recordingNotifier) count() int {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return len(rn.alerts)
}

func newEngineWithRecord(t *testing.T, latest, previous float64, notify *recordingNotifier) (*AnalysisEngine, *storage.StateManager) {
	t.Helper()
	sm := storage.NewStateManager(types.RedisConfig{})
	sm.Seed([]types.Instrument{{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"}})

	prev := previous
	prevTime := time.UnixMilli(1000)
	sm.ApplyOIUpdate("BTCUSDT", types.OIUpdate{
		Latest: latest, LatestTime: time.UnixMilli(2000),
		Previous: &prev, PreviousTime: &prevTime,
	})

	engine := NewAnalysisEngine(sm, notify, types.AlertConfig{Threshold: 50, Cooldown: 4 * time.Hour})
	return engine, sm
}

func TestCalculateOIChange(t *testing.T) {
	change, ok := CalculateOIChange(100, 50)
	require.True(t, ok)
	assert.Equal(t, 100.0, change)

	change, ok = CalculateOIChange(50, 100)
	require.True(t, ok)
	assert.Equal(t, -50.0, change)

	// previous为0无定义，不panic不报错
	_, ok = CalculateOIChange(123, 0)
	assert.False(t, ok)
}

func TestEvaluateAll_CooldownFlow(t *testing.T) {
	notify := &recordingNotifier{}
	// 60%变化，超过50%阈值
	engine, _ := newEngineWithRecord(t, 160, 100, notify)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.now = func() time.Time { return now }

	// 第一次评估：触发一次预警
	engine.EvaluateAll()
	require.Equal(t, 1, notify.count())
	assert.Equal(t, "BTCUSDT", notify.alerts[0].Symbol)
	assert.InDelta(t, 60.0, notify.alerts[0].ChangePercent, 1e-9)

	// 一分钟后同样的数据：冷却期内不重复预警
	now = base.Add(time.Minute)
	engine.EvaluateAll()
	assert.Equal(t, 1, notify.count())

	// 冷却期过后仍然命中：再次预警
	now = base.Add(4*time.Hour + time.Minute)
	engine.EvaluateAll()
	assert.Equal(t, 2, notify.count())
}

func TestEvaluateAll_DropNeverAlerts(t *testing.T) {
	notify := &recordingNotifier{}
	// -80%的跌幅，无论多大都不预警
	engine, _ := newEngineWithRecord(t, 20, 100, notify)
	engine.EvaluateAll()
	assert.Equal(t, 0, notify.count())
}

func TestEvaluateAll_BelowThresholdNoAlert(t *testing.T) {
	notify := &recordingNotifier{}
	engine, _ := newEngineWithRecord(t, 140, 100, notify) // 40% < 50%
	engine.EvaluateAll()
	assert.Equal(t, 0, notify.count())
}

func TestEvaluateAll_ZeroPreviousSkipped(t *testing.T) {
	notify := &recordingNotifier{}
	engine, _ := newEngineWithRecord(t, 100, 0, notify)
	engine.EvaluateAll()
	assert.Equal(t, 0, notify.count())
}

func TestEvaluateAll_MissingOISkipped(t *testing.T) {
	notify := &recordingNotifier{}
	sm := storage.NewStateManager(types.RedisConfig{})
	sm.Seed([]types.Instrument{{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"}})
	engine := NewAnalysisEngine(sm, notify, types.AlertConfig{Threshold: 50, Cooldown: time.Hour})

	engine.EvaluateAll()
	assert.Equal(t, 0, notify.count())
}

// 投递失败不回滚冷却状态：宁可漏发不可重发
func TestEvaluateAll_DeliveryFailureDoesNotResetCooldown(t *testing.T) {
	notify := &recordingNotifier{err: errors.New("sink down")}
	engine, _ := newEngineWithRecord(t, 160, 100, notify)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.now = func() time.Time { return now }

	engine.EvaluateAll()
	require.Equal(t, 1, notify.count())

	now = base.Add(time.Minute)
	engine.EvaluateAll()
	assert.Equal(t, 1, notify.count())
}

func TestEvaluateAll_UsesCurrentThreshold(t *testing.T) {
	notify := &recordingNotifier{}
	engine, _ := newEngineWithRecord(t, 140, 100, notify) // 40%

	engine.EvaluateAll()
	assert.Equal(t, 0, notify.count())

	// 调低阈值后同样的数据命中
	require.NoError(t, engine.SetThreshold(30))
	engine.EvaluateAll()
	assert.Equal(t, 1, notify.count())
}

func TestSetThreshold_RejectsNegative(t *testing.T) {
	notify := &recordingNotifier{}
	engine, _ := newEngineWithRecord(t, 160, 100, notify)

	assert.Error(t, engine.SetThreshold(-1))
	assert.Equal(t, 50.0, engine.Threshold())

	require.NoError(t, engine.SetThreshold(0))
	assert.Equal(t, 0.0, engine.Threshold())
}
