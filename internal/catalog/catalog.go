package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"binance-oi-sentry/pkg/types"
)

// Loader 合约目录加载器，进程启动时执行一次
// 任何网络或解析错误都收敛为空集合，恢复手段是重启进程
type Loader struct {
	client       *futures.Client
	httpClient   *http.Client
	metaEndpoint string
}

// supplyMeta 流通量元数据接口的单条记录
type supplyMeta struct {
	BaseAsset         string   `json:"baseAsset"`
	CirculatingSupply *float64 `json:"circulatingSupply"`
}

type metaResponse struct {
	Data []supplyMeta `json:"data"`
}

func NewLoader(binanceConfig types.BinanceConfig, networkConfig types.NetworkConfig) *Loader {
	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// 创建自定义HTTP客户端，支持代理
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{},
	}
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 目录加载器已配置HTTP代理", zap.String("proxy", networkConfig.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient
	if binanceConfig.RestEndpoint != "" {
		client.SetApiEndpoint(binanceConfig.RestEndpoint)
	}

	return &Loader{
		client:       client,
		httpClient:   httpClient,
		metaEndpoint: binanceConfig.MetaEndpoint,
	}
}

// Load 拉取合约目录并关联流通量元数据
// 失败时返回空集合并记录日志，系统其余部分必须容忍空集合启动
func (l *Loader) Load(ctx context.Context) []types.Instrument {
	instruments, err := l.fetchTradablePairs(ctx)
	if err != nil {
		zap.L().Error("❌ 获取合约目录失败，以空集合启动", zap.Error(err))
		return nil
	}

	// 流通量元数据是尽力而为的，失败不影响目录本身
	supplies, err := l.fetchSupplyMeta(ctx)
	if err != nil {
		zap.L().Warn("⚠️ 获取流通量元数据失败，circulatingSupply留空", zap.Error(err))
	} else {
		matched := 0
		for i := range instruments {
			if supply, ok := supplies[instruments[i].BaseAsset]; ok && supply != nil {
				v := *supply
				instruments[i].CirculatingSupply = &v
				matched++
			}
		}
		zap.L().Info("📊 流通量元数据关联完成",
			zap.Int("matched", matched),
			zap.Int("total", len(instruments)))
	}

	zap.L().Info("✅ 合约目录加载完成", zap.Int("count", len(instruments)))
	return instruments
}

// fetchTradablePairs 拉取全部合约并筛选正在交易的USDT本位合约
func (l *Loader) fetchTradablePairs(ctx context.Context) ([]types.Instrument, error) {
	info, err := l.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("请求exchangeInfo失败: %w", err)
	}

	instruments := make([]types.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset != "USDT" || s.Status != "TRADING" {
			continue
		}
		instruments = append(instruments, types.Instrument{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		})
	}
	return instruments, nil
}

// fetchSupplyMeta 拉取流通量元数据，按baseAsset建立索引
func (l *Loader) fetchSupplyMeta(ctx context.Context) (map[string]*float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.metaEndpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP状态码错误: %d", resp.StatusCode)
	}

	var meta metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("解析元数据响应失败: %w", err)
	}

	supplies := make(map[string]*float64, len(meta.Data))
	for _, m := range meta.Data {
		supplies[m.BaseAsset] = m.CirculatingSupply
	}
	return supplies, nil
}
