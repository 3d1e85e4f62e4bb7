package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"binance-oi-sentry/pkg/types"
)

// ChangeListener 状态变更回调，在每次合并事件（价格批次/持仓量刷新）后触发
type ChangeListener func()

// StateManager 状态管理器，持有唯一的合约记录表
// 所有字段组写入在表锁内完成，读方只能拿到深拷贝快照，不会观察到半写状态
type StateManager struct {
	mutex       sync.RWMutex
	instruments map[string]*types.Instrument
	order       []string // 固定的快照输出顺序

	listenerMu sync.RWMutex
	listeners  []ChangeListener

	redisClient *redis.Client
	useRedis    bool
}

func NewStateManager(redisConfig types.RedisConfig) *StateManager {
	sm := &StateManager{
		instruments: make(map[string]*types.Instrument),
	}

	// 尝试连接Redis，失败则降级为纯内存模式
	if redisConfig.URL != "" {
		sm.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := sm.redisClient.Ping(ctx).Result(); err != nil {
			zap.L().Warn("⚠️ Redis连接失败，使用纯内存模式", zap.Error(err))
			sm.useRedis = false
		} else {
			zap.L().Info("✅ Redis连接成功")
			sm.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，使用纯内存模式")
	}

	return sm
}

// Seed 写入初始合约集合，进程生命周期内只调用一次，之后不增删记录
func (sm *StateManager) Seed(instruments []types.Instrument) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for _, inst := range instruments {
		if _, exists := sm.instruments[inst.Symbol]; exists {
			continue
		}
		record := inst.Clone()
		sm.instruments[inst.Symbol] = &record
		sm.order = append(sm.order, inst.Symbol)
	}
	sort.Strings(sm.order)
}

// ApplyPriceBatch 应用一批价格更新，未知交易对直接忽略
// 整批应用完成后触发一次变更通知，返回实际生效的条数
func (sm *StateManager) ApplyPriceBatch(updates []types.PriceUpdate) int {
	sm.mutex.Lock()
	applied := 0
	for _, u := range updates {
		record, ok := sm.instruments[u.Symbol]
		if !ok {
			continue
		}
		price := u.Price
		record.Price = &price
		applied++
	}
	sm.mutex.Unlock()

	if applied > 0 {
		sm.notifyListeners()
	}
	return applied
}

// ApplyOIUpdate 原子写入一条记录的持仓量字段组
// update.Previous为nil时previous字段保持原值不动（单样本响应）
func (sm *StateManager) ApplyOIUpdate(symbol string, update types.OIUpdate) bool {
	sm.mutex.Lock()
	record, ok := sm.instruments[symbol]
	if !ok {
		sm.mutex.Unlock()
		return false
	}

	latest := update.Latest
	latestTime := update.LatestTime
	record.LatestOpenInterest = &latest
	record.LatestOpenInterestTime = &latestTime

	if update.Previous != nil && update.PreviousTime != nil {
		previous := *update.Previous
		previousTime := *update.PreviousTime
		record.PreviousOpenInterest = &previous
		record.PreviousOpenInterestTime = &previousTime
	}

	snapshot := record.Clone()
	sm.mutex.Unlock()

	// 异步镜像到Redis，失败只记录不影响主流程
	if sm.useRedis {
		go sm.mirrorToRedis(snapshot)
	}
	return true
}

// NotifyRefresh 持仓量轮询完成一轮后调用，触发一次变更通知
func (sm *StateManager) NotifyRefresh() {
	sm.notifyListeners()
}

// Snapshot 返回全部记录的深拷贝，顺序固定
func (sm *StateManager) Snapshot() []types.Instrument {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	result := make([]types.Instrument, 0, len(sm.order))
	for _, symbol := range sm.order {
		result = append(result, sm.instruments[symbol].Clone())
	}
	return result
}

// Get 返回单条记录的深拷贝
func (sm *StateManager) Get(symbol string) (types.Instrument, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	record, ok := sm.instruments[symbol]
	if !ok {
		return types.Instrument{}, false
	}
	return record.Clone(), true
}

// Symbols 返回全部交易对，顺序固定
func (sm *StateManager) Symbols() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	symbols := make([]string, len(sm.order))
	copy(symbols, sm.order)
	return symbols
}

// Size 当前记录数
func (sm *StateManager) Size() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.instruments)
}

// OnChange 注册变更监听器，广播、预警等副作用通过注册挂接
func (sm *StateManager) OnChange(listener ChangeListener) {
	sm.listenerMu.Lock()
	defer sm.listenerMu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// notifyListeners 在表锁外调用监听器，避免回调里再读快照造成死锁
func (sm *StateManager) notifyListeners() {
	sm.listenerMu.RLock()
	listeners := make([]ChangeListener, len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.listenerMu.RUnlock()

	for _, listener := range listeners {
		listener()
	}
}

// mirrorToRedis 把最新记录镜像到Redis，仅作运行状态观察，不做持久化恢复
func (sm *StateManager) mirrorToRedis(record types.Instrument) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("oi-sentry:instrument:%s", record.Symbol)
	value, err := json.Marshal(record)
	if err != nil {
		zap.L().Warn("序列化记录失败", zap.String("symbol", record.Symbol), zap.Error(err))
		return
	}

	if err := sm.redisClient.Set(ctx, key, value, time.Hour).Err(); err != nil {
		zap.L().Warn("Redis镜像写入失败", zap.String("symbol", record.Symbol), zap.Error(err))
	}
}

// RedisStats 获取Redis统计信息
func (sm *StateManager) RedisStats() map[string]interface{} {
	stats := map[string]interface{}{
		"redis_enabled":  sm.useRedis,
		"memory_symbols": sm.Size(),
	}

	if sm.useRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		keys, err := sm.redisClient.Keys(ctx, "oi-sentry:instrument:*").Result()
		if err == nil {
			stats["redis_keys"] = len(keys)
		} else {
			stats["redis_error"] = err.Error()
		}
	}

	return stats
}
