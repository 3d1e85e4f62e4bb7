package types

import "time"

// Config 主配置结构
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Network  NetworkConfig  `mapstructure:"network"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出路径名
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"` // 仪表盘静态文件目录，空则不提供
}

// RedisConfig Redis配置，url为空时使用纯内存模式
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelegramConfig Telegram通知配置
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// AlertConfig 预警配置
type AlertConfig struct {
	Threshold float64       `mapstructure:"threshold"` // OI变化率阈值，百分比
	Cooldown  time.Duration `mapstructure:"cooldown"`  // 同一交易对的预警冷却时间
	Console   bool          `mapstructure:"console"`   // 未配置Telegram时使用控制台通知器
}

// PollerConfig 持仓量轮询配置
type PollerConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`    // 每批并发请求的交易对数量
	BatchPause   time.Duration `mapstructure:"batch_pause"`   // 批次间隔，控制请求频率
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // 单个请求超时
}

// FeedConfig 价格推送流配置
type FeedConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// BinanceConfig Binance接口地址配置
type BinanceConfig struct {
	RestEndpoint string `mapstructure:"rest_endpoint"` // 为空时使用SDK默认地址
	MetaEndpoint string `mapstructure:"meta_endpoint"` // 流通量元数据接口
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}
