package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeInfoBody = `{
	"timezone": "UTC",
	"serverTime": 1700000000000,
	"symbols": [
		{"symbol": "BTCUSDT", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "USDT"},
		{"symbol": "ETHUSDT", "status": "TRADING", "baseAsset": "ETH", "quoteAsset": "USDT"},
		{"symbol": "BTCBUSD", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "BUSD"},
		{"symbol": "OLDUSDT", "status": "SETTLING", "baseAsset": "OLD", "quoteAsset": "USDT"}
	]
}`

const metaBody = `{
	"data": [
		{"baseAsset": "BTC", "circulatingSupply": 19600000},
		{"baseAsset": "DOGE", "circulatingSupply": 140000000000}
	]
}`

func newTestLoader(ts *httptest.Server) *Loader {
	client := futures.NewClient("", "")
	client.HTTPClient = ts.Client()
	client.SetApiEndpoint(ts.URL)
	return &Loader{
		client:       client,
		httpClient:   ts.Client(),
		metaEndpoint: ts.URL + "/meta",
	}
}

func TestLoad_FiltersAndJoinsSupply(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoBody))
		case "/meta":
			_, _ = w.Write([]byte(metaBody))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	instruments := newTestLoader(ts).Load(context.Background())

	// 只保留正在交易的USDT本位合约
	require.Len(t, instruments, 2)
	assert.Equal(t, "BTCUSDT", instruments[0].Symbol)
	assert.Equal(t, "ETHUSDT", instruments[1].Symbol)

	// BTC有流通量元数据，ETH没有则留空
	require.NotNil(t, instruments[0].CirculatingSupply)
	assert.Equal(t, 19600000.0, *instruments[0].CirculatingSupply)
	assert.Nil(t, instruments[1].CirculatingSupply)
}

func TestLoad_FailsClosedOnCatalogError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer ts.Close()

	instruments := newTestLoader(ts).Load(context.Background())
	assert.Empty(t, instruments)
}

func TestLoad_MetaFailureIsBestEffort(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoBody))
		default:
			http.Error(w, "meta down", http.StatusBadGateway)
		}
	}))
	defer ts.Close()

	instruments := newTestLoader(ts).Load(context.Background())

	// 元数据失败不影响目录本身
	require.Len(t, instruments, 2)
	assert.Nil(t, instruments[0].CirculatingSupply)
	assert.Nil(t, instruments[1].CirculatingSupply)
}
