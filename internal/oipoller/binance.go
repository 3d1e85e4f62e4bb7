package oipoller

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"binance-oi-sentry/pkg/types"
)

// BinanceClient 基于go-binance期货客户端的持仓量数据源
type BinanceClient struct {
	client *futures.Client
}

func NewBinanceClient(binanceConfig types.BinanceConfig, networkConfig types.NetworkConfig) *BinanceClient {
	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{},
	}
	if networkConfig.Proxy != "" {
		if proxyURL, err := url.Parse(networkConfig.Proxy); err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient
	if binanceConfig.RestEndpoint != "" {
		client.SetApiEndpoint(binanceConfig.RestEndpoint)
	}

	return &BinanceClient{client: client}
}

// OpenInterestHist 请求最近的持仓量历史样本
func (bc *BinanceClient) OpenInterestHist(ctx context.Context, symbol string, period string, limit int) ([]types.OISample, error) {
	rows, err := bc.client.NewOpenInterestStatisticsService().
		Symbol(symbol).
		Period(period).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	samples := make([]types.OISample, 0, len(rows))
	for _, row := range rows {
		value, err := strconv.ParseFloat(row.SumOpenInterest, 64)
		if err != nil {
			return nil, fmt.Errorf("解析持仓量数值失败 %q: %w", row.SumOpenInterest, err)
		}
		samples = append(samples, types.OISample{
			Value: value,
			Time:  time.UnixMilli(row.Timestamp),
		})
	}
	return samples, nil
}
