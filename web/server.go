// Package web HTTP 与 WebSocket 服务
// gin 提供 REST API 与 Prometheus 抓取端点，
// WebSocket 连接直接讲 worker 信封协议，响应按 id 关联、完成顺序不保证。
package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quantdesk/alerts"
	"quantdesk/config"
	"quantdesk/engine"
	"quantdesk/event"
	"quantdesk/logger"
	"quantdesk/storage"
	"quantdesk/worker"
)

// Server Web 服务器
type Server struct {
	server *http.Server
	cfg    *config.Config

	pool   *worker.Pool
	store  storage.Store
	alerts *alerts.Manager
	bus    *event.EventBus

	// 回测走同步路径，不经过 worker 池
	btEngine *engine.Engine

	hub     *Hub
	started time.Time
}

// NewServer 创建 Web 服务器
func NewServer(cfg *config.Config, pool *worker.Pool, btEngine *engine.Engine,
	store storage.Store, alertMgr *alerts.Manager, bus *event.EventBus) *Server {

	logAll := strings.EqualFold(cfg.System.LogLevel, "DEBUG")
	if logAll {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(GinLoggerMiddleware(logAll))
	if cfg.Server.RateLimit.Enabled {
		r.Use(RateLimitMiddleware(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst))
	}

	s := &Server{
		cfg:      cfg,
		pool:     pool,
		store:    store,
		alerts:   alertMgr,
		bus:      bus,
		btEngine: btEngine,
		started:  time.Now(),
	}
	s.hub = NewHub(pool, bus, time.Duration(cfg.Engine.RequestTimeout)*time.Second)
	s.setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(r *gin.Engine) {
	// Prometheus 抓取端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// pprof 性能分析端点（调试用）
	pprofGroup := r.Group("/debug/pprof")
	{
		pprofGroup.GET("/", gin.WrapF(pprof.Index))
		pprofGroup.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
		pprofGroup.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofGroup.GET("/trace", gin.WrapF(pprof.Trace))
		pprofGroup.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofGroup.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofGroup.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}

	// 计算卸载的 WebSocket 入口
	r.GET("/ws", s.hub.handleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/status", s.getStatus)

		// 计算类接口
		api.POST("/evaluate", s.postEvaluate)
		api.POST("/batch", s.postBatchEvaluate)
		api.POST("/profile", s.postVolumeProfile)
		api.POST("/depth", s.postDepth)
		api.POST("/cache/clear", s.postClearCache)

		// 回测
		api.POST("/backtest", s.postBacktest)
		api.GET("/backtest/reports", s.listBacktestReports)

		// 指标预设
		presets := api.Group("/presets")
		{
			presets.GET("", s.listPresets)
			presets.GET("/:name", s.getPreset)
			presets.POST("", s.savePreset)
			presets.DELETE("/:name", s.deletePreset)
		}

		// 预警规则与记录
		alertGroup := api.Group("/alerts")
		{
			alertGroup.GET("/rules", s.listAlertRules)
			alertGroup.POST("/rules", s.saveAlertRule)
			alertGroup.DELETE("/rules/:id", s.deleteAlertRule)
			alertGroup.GET("/records", s.listAlertRecords)
			alertGroup.POST("/check", s.checkAlerts)
		}
	}
}

// Start 启动 Web 服务器，ctx 取消后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}

	go func() {
		logger.Info("🌐 Web服务器启动在 http://%s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("❌ Web服务器启动失败: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("❌ Web服务器关闭失败: %v", err)
		} else {
			logger.Info("✅ Web服务器已关闭")
		}
	}()

	return nil
}

// Stop 停止 Web 服务器
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("❌ Web服务器关闭失败: %v", err)
	}
	s.hub.Close()
}

// Handler 暴露 http.Handler，测试用
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
