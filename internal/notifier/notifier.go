package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"binance-oi-sentry/pkg/types"
)

// Interface 通知接口，发送失败只记录不重试
type Interface interface {
	SendAlert(alert *types.AlertData) error
}

// formatLargeNumber 大数字格式化 (K, M, B)
func formatLargeNumber(num float64) string {
	switch {
	case num >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", num/1_000_000_000)
	case num >= 1_000_000:
		return fmt.Sprintf("%.2fM", num/1_000_000)
	case num >= 1_000:
		return fmt.Sprintf("%.2fK", num/1_000)
	default:
		return fmt.Sprintf("%.2f", num)
	}
}

// buildFuturesURL 生成币安合约页面链接
func buildFuturesURL(symbol string) string {
	return fmt.Sprintf("https://www.binance.com/en/futures/%s", symbol)
}

// ConsoleNotifier 控制台通知器，本地调试用
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (cn *ConsoleNotifier) SendAlert(alert *types.AlertData) error {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Printf("║ 🚨 持仓量急剧增加预警\n")
	fmt.Printf("║ 交易对: %s\n", alert.Symbol)
	fmt.Printf("║ 变化率: +%.2f%%\n", alert.ChangePercent)
	fmt.Printf("║ 当前OI: %s\n", formatLargeNumber(alert.LatestOI))
	fmt.Printf("║ 之前OI: %s\n", formatLargeNumber(alert.PreviousOI))
	fmt.Printf("║ 当前价格: %v USDT\n", alert.Price)
	fmt.Printf("║ 预警时间: %s\n", alert.AlertTime.Format("2006-01-02 15:04:05"))
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
	return nil
}

// TelegramNotifier Telegram通知器
type TelegramNotifier struct {
	apiURL     string
	chatID     string
	httpClient *http.Client
}

type telegramRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegramNotifier(cfg types.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		apiURL: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.BotToken),
		chatID: cfg.ChatID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (tn *TelegramNotifier) SendAlert(alert *types.AlertData) error {
	message := tn.buildMessage(alert)

	reqData := telegramRequest{
		ChatID:                tn.chatID,
		Text:                  message,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %w", err)
	}

	resp, err := tn.httpClient.Post(tn.apiURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if !tgResp.OK {
		return fmt.Errorf("Telegram API错误: %s", tgResp.Description)
	}

	zap.L().Info("✅ Telegram预警已发送",
		zap.String("symbol", alert.Symbol),
		zap.Float64("change_percent", alert.ChangePercent))
	return nil
}

// buildMessage 构建Markdown格式的预警消息
func (tn *TelegramNotifier) buildMessage(alert *types.AlertData) string {
	return fmt.Sprintf("🚨 *OI急剧增加* 🚨\n\n"+
		"*%s*\n"+
		"*变化率:* +%.2f%%\n"+
		"*当前OI:* %s\n"+
		"*之前OI:* %s\n"+
		"*当前价格:* %v USDT\n\n"+
		"%s\n\n"+
		"[查看合约](%s)",
		alert.Symbol,
		alert.ChangePercent,
		formatLargeNumber(alert.LatestOI),
		formatLargeNumber(alert.PreviousOI),
		alert.Price,
		alert.AlertTime.Format("2006-01-02 15:04:05"),
		buildFuturesURL(alert.Symbol))
}
