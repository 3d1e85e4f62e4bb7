package main

import (
	"log"

	"binance-oi-sentry/pkg/config"
	"binance-oi-sentry/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	appLogger, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatal("初始化日志失败:", err)
	}
	defer appLogger.Sync()

	// 启动应用并等待停止信号
	app := NewApp(cfg)
	app.Start()
	app.WaitForShutdown()
	app.Stop()
}
