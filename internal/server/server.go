package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"binance-oi-sentry/internal/analyzer"
	"binance-oi-sentry/internal/storage"
	"binance-oi-sentry/pkg/types"
)

// Server 对外发布层：快照查询、阈值管理和WebSocket推送
type Server struct {
	cfg      types.ServerConfig
	state    *storage.StateManager
	analyzer *analyzer.AnalysisEngine // 未启用预警时为nil
	hub      *hub
	mux      *http.ServeMux
}

func NewServer(cfg types.ServerConfig, state *storage.StateManager, analysisEngine *analyzer.AnalysisEngine) *Server {
	s := &Server{
		cfg:      cfg,
		state:    state,
		analyzer: analysisEngine,
		hub:      newHub(),
		mux:      http.NewServeMux(),
	}
	s.routes()
	go s.hub.run()

	// 每次合并事件（价格批次/持仓量刷新）推送一次全量快照
	state.OnChange(s.broadcastSnapshot)

	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/data", s.handleData)
	s.mux.HandleFunc("/api/alerts/threshold", s.handleThreshold)
	s.mux.HandleFunc("/ws", s.handleWS)
	if s.cfg.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
}

// Handler 返回带CORS的根处理器
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// Run 启动HTTP服务，ctx取消时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("🚀 HTTP服务启动", zap.Int("port", s.cfg.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleData 返回全部合约记录的当前快照
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Snapshot()); err != nil {
		zap.L().Error("编码快照失败", zap.Error(err))
	}
}

type thresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

// handleThreshold 设置预警阈值
// 预警服务未启用、字段缺失、非数字或负数一律400
func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.analyzer == nil {
		writeJSONError(w, http.StatusBadRequest, "alert service not configured")
		return
	}

	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "threshold must be a number")
		return
	}
	if req.Threshold == nil {
		writeJSONError(w, http.StatusBadRequest, "threshold is required")
		return
	}
	if err := s.analyzer.SetThreshold(*req.Threshold); err != nil {
		writeJSONError(w, http.StatusBadRequest, "threshold must be non-negative")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"threshold": *req.Threshold,
	})
}

// handleWS 推送订阅入口
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	snapshot, err := json.Marshal(s.state.Snapshot())
	if err != nil {
		zap.L().Error("编码快照失败", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.hub.serveWS(w, r, snapshot)
}

// broadcastSnapshot 把当前快照广播给全部订阅者，广播积压时丢弃本次
func (s *Server) broadcastSnapshot() {
	snapshot, err := json.Marshal(s.state.Snapshot())
	if err != nil {
		zap.L().Error("编码快照失败", zap.Error(err))
		return
	}
	select {
	case s.hub.broadcast <- snapshot:
	default:
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// corsMiddleware 仪表盘跨域访问支持
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
