package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"binance-oi-sentry/pkg/types"
)

// Load 加载配置
func Load() (*types.Config, error) {
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	setDefaults()

	// 读取环境变量，如 TELEGRAM_BOT_TOKEN 覆盖 telegram.bot_token
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 优先尝试读取本地配置文件
	viper.SetConfigName("config.local")
	if err := viper.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	var config types.Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file_path", "logs")
	viper.SetDefault("log.max_size", 200)
	viper.SetDefault("log.max_age", 30)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.static_dir", "")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")
	viper.SetDefault("alert.threshold", 50.0)
	viper.SetDefault("alert.cooldown", 4*time.Hour)
	viper.SetDefault("alert.console", false)
	viper.SetDefault("poller.batch_size", 100)
	viper.SetDefault("poller.batch_pause", time.Second)
	viper.SetDefault("poller.fetch_timeout", 10*time.Second)
	viper.SetDefault("feed.endpoint", "wss://fstream.binance.com/ws/!markPrice@arr@1s")
	viper.SetDefault("feed.reconnect_interval", 3*time.Second)
	viper.SetDefault("binance.rest_endpoint", "")
	viper.SetDefault("binance.meta_endpoint", "https://www.binance.com/bapi/apex/v1/friendly/apex/marketing/complianceSymbolList")
	viper.SetDefault("network.proxy", "")
	viper.SetDefault("network.timeout", 30*time.Second)
}
