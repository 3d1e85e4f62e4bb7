package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"binance-oi-sentry/internal/storage"
	"binance-oi-sentry/pkg/types"
)

// Client 标记价格推送流客户端
// 维持一条到 !markPrice@arr@1s 组合流的长连接，断线后固定间隔无限重连
type Client struct {
	endpoint          string
	proxy             string
	reconnectInterval time.Duration
	state             *storage.StateManager

	mu   sync.Mutex
	conn *websocket.Conn
}

// markPriceEvent 标记价格流的单条事件，只取需要的三个字段
type markPriceEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

func NewClient(feedConfig types.FeedConfig, networkConfig types.NetworkConfig, state *storage.StateManager) *Client {
	reconnect := feedConfig.ReconnectInterval
	if reconnect == 0 {
		reconnect = 3 * time.Second
	}
	return &Client{
		endpoint:          feedConfig.Endpoint,
		proxy:             networkConfig.Proxy,
		reconnectInterval: reconnect,
		state:             state,
	}
}

// Start 启动推送流读取循环，阻塞直到ctx取消
// 连接失败或断开都只等待固定间隔后重连，价格流被视为最终总能恢复
func (c *Client) Start(ctx context.Context) {
	zap.L().Info("🚀 价格推送流启动", zap.String("endpoint", c.endpoint))

	for {
		if ctx.Err() != nil {
			zap.L().Info("📴 价格推送流已停止")
			return
		}

		if err := c.connect(ctx); err != nil {
			zap.L().Error("❌ 价格推送流连接失败", zap.Error(err))
			c.waitReconnect(ctx)
			continue
		}

		c.readLoop(ctx)

		// 读取循环退出说明连接已断开
		c.closeConn()
		if ctx.Err() != nil {
			zap.L().Info("📴 价格推送流已停止")
			return
		}
		zap.L().Warn("⚠️ 价格推送流断开，准备重连",
			zap.Duration("backoff", c.reconnectInterval))
		c.waitReconnect(ctx)
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	if c.proxy != "" {
		proxyURL, err := url.Parse(c.proxy)
		if err != nil {
			return fmt.Errorf("解析代理URL失败: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	zap.L().Info("✅ 价格推送流连接建立成功")
	return nil
}

// readLoop 读取并应用价格批次，读错误时返回交由外层重连
func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("价格推送流读取panic", zap.Any("error", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			zap.L().Error("价格推送流读取消息失败", zap.Error(err))
			return
		}

		updates, err := ParseBatch(message)
		if err != nil {
			// 只丢弃这一批，连接继续使用
			zap.L().Warn("解析价格批次失败，丢弃该批次", zap.Error(err))
			continue
		}
		if len(updates) == 0 {
			continue
		}

		c.state.ApplyPriceBatch(updates)
	}
}

// ParseBatch 解析一条推送消息为价格更新批次
// 单条价格无法解析时跳过该条，不影响批次内其它更新
func ParseBatch(message []byte) ([]types.PriceUpdate, error) {
	var events []markPriceEvent
	if err := json.Unmarshal(message, &events); err != nil {
		return nil, fmt.Errorf("解析推送消息失败: %w", err)
	}

	updates := make([]types.PriceUpdate, 0, len(events))
	for _, e := range events {
		if e.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(e.MarkPrice, 64)
		if err != nil || price <= 0 {
			continue
		}
		updates = append(updates, types.PriceUpdate{
			Symbol:    e.Symbol,
			Price:     price,
			EventTime: time.UnixMilli(e.EventTime),
		})
	}
	return updates, nil
}

func (c *Client) waitReconnect(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.reconnectInterval):
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
