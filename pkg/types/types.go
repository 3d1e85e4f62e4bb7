package types

import "time"

// Instrument 合约记录，每个交易对一条，启动时由目录加载器创建
// JSON字段名与前端约定保持一致，不可随意改动
type Instrument struct {
	Symbol                   string     `json:"symbol"`
	BaseAsset                string     `json:"baseAsset"`
	QuoteAsset               string     `json:"quoteAsset"`
	CirculatingSupply        *float64   `json:"circulatingSupply"`
	Price                    *float64   `json:"price"`
	LatestOpenInterest       *float64   `json:"latestOpenInterest"`
	PreviousOpenInterest     *float64   `json:"previousOpenInterest"`
	LatestOpenInterestTime   *time.Time `json:"latestOpenInterestTime"`
	PreviousOpenInterestTime *time.Time `json:"previousOpenInterestTime"`
}

// Clone 深拷贝一条记录，快照用
func (i Instrument) Clone() Instrument {
	c := i
	c.CirculatingSupply = clonePtr(i.CirculatingSupply)
	c.Price = clonePtr(i.Price)
	c.LatestOpenInterest = clonePtr(i.LatestOpenInterest)
	c.PreviousOpenInterest = clonePtr(i.PreviousOpenInterest)
	c.LatestOpenInterestTime = clonePtr(i.LatestOpenInterestTime)
	c.PreviousOpenInterestTime = clonePtr(i.PreviousOpenInterestTime)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// PriceUpdate 标记价格推送流中的单条更新
type PriceUpdate struct {
	Symbol    string
	Price     float64
	EventTime time.Time
}

// OISample 持仓量历史接口返回的单个样本
type OISample struct {
	Value float64
	Time  time.Time
}

// OIUpdate 持仓量四字段组，作为一个整体原子写入记录
// Previous为nil时表示本次更新不触碰previous字段（单样本响应）
type OIUpdate struct {
	Latest       float64
	LatestTime   time.Time
	Previous     *float64
	PreviousTime *time.Time
}

// AlertData 预警数据
type AlertData struct {
	Symbol        string    `json:"symbol"`
	ChangePercent float64   `json:"change_percent"`
	LatestOI      float64   `json:"latest_oi"`
	PreviousOI    float64   `json:"previous_oi"`
	Price         float64   `json:"price"`
	AlertTime     time.Time `json:"alert_time"`
}
