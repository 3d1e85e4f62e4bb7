package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"binance-oi-sentry/internal/analyzer"
	"binance-oi-sentry/internal/catalog"
	"binance-oi-sentry/internal/notifier"
	"binance-oi-sentry/internal/oipoller"
	"binance-oi-sentry/internal/pricefeed"
	"binance-oi-sentry/internal/scheduler"
	"binance-oi-sentry/internal/server"
	"binance-oi-sentry/internal/storage"
	"binance-oi-sentry/pkg/types"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动应用程序
func (app *App) Start() {
	zap.L().Info("🚀 Binance OI Sentry 启动中...")

	// 初始化状态表
	stateManager := storage.NewStateManager(app.config.Redis)

	// 一次性加载合约目录，失败时以空集合继续运行
	loader := catalog.NewLoader(app.config.Binance, app.config.Network)
	stateManager.Seed(loader.Load(app.ctx))

	// 预警引擎：优先Telegram，否则按配置降级为控制台；都没有则完全关闭评估
	analysisEngine := app.buildAnalyzer(stateManager)

	// 对外发布层（注册变更监听，需在数据源启动前完成）
	apiServer := server.NewServer(app.config.Server, stateManager, analysisEngine)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := apiServer.Run(app.ctx); err != nil {
			zap.L().Error("❌ HTTP服务异常退出", zap.Error(err))
		}
	}()

	// 价格推送流
	feedClient := pricefeed.NewClient(app.config.Feed, app.config.Network, stateManager)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		feedClient.Start(app.ctx)
	}()

	// 持仓量轮询，按刻钟边界调度
	oiClient := oipoller.NewBinanceClient(app.config.Binance, app.config.Network)
	poller := oipoller.NewPoller(stateManager, oiClient, app.config.Poller)
	taskScheduler := scheduler.NewScheduler(poller, analysisEngine)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		taskScheduler.Start(app.ctx)
	}()

	zap.L().Info("✅ Binance OI Sentry 已启动")
}

// buildAnalyzer 根据通知配置决定预警引擎，未配置任何通知渠道时返回nil关闭评估
func (app *App) buildAnalyzer(stateManager *storage.StateManager) *analyzer.AnalysisEngine {
	var notifyService notifier.Interface
	switch {
	case app.config.Telegram.BotToken != "" && app.config.Telegram.ChatID != "":
		zap.L().Info("✅ 已配置Telegram通知服务")
		notifyService = notifier.NewTelegramNotifier(app.config.Telegram)
	case app.config.Alert.Console:
		zap.L().Info("🔧 使用控制台通知器")
		notifyService = notifier.NewConsoleNotifier()
	default:
		zap.L().Warn("⚠️ 未配置通知渠道，预警评估已关闭")
		return nil
	}
	return analyzer.NewAnalysisEngine(stateManager, notifyService, app.config.Alert)
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Binance OI Sentry 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
