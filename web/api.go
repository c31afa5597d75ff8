package web

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quantdesk/alerts"
	"quantdesk/backtest"
	"quantdesk/engine"
	"quantdesk/event"
	"quantdesk/indicators"
	"quantdesk/logger"
	"quantdesk/orderbook"
	"quantdesk/storage"
	"quantdesk/worker"
)

// requestContext 带配置超时的请求上下文
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.Engine.RequestTimeout) * time.Second
	return context.WithTimeout(c.Request.Context(), timeout)
}

// getStatus 运行状态快照
func (s *Server) getStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"pool": gin.H{
			"queue_depth": s.pool.QueueDepth(),
			"stats":       s.pool.Stats(),
		},
		"websocket_clients": s.hub.ClientCount(),
		"runtime": gin.H{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
			"gc_count":        memStats.NumGC,
		},
	})
}

// postEvaluate 单指标求值，经 worker 池执行
func (s *Server) postEvaluate(c *gin.Context) {
	var payload worker.EvaluatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.pool.Call(ctx, worker.OpEvaluateIndicator, &payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

// postBatchEvaluate 批量求值
func (s *Server) postBatchEvaluate(c *gin.Context) {
	var payload worker.BatchPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.pool.Call(ctx, worker.OpBatchEvaluate, &payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

// postVolumeProfile 成交量分布计算
func (s *Server) postVolumeProfile(c *gin.Context) {
	var payload worker.ProfilePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.pool.Call(ctx, worker.OpCalculateVolumeProfile, &payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

// depthRequest 盘口深度请求
type depthRequest struct {
	Bids []orderbook.RawLevel `json:"bids"`
	Asks []orderbook.RawLevel `json:"asks"`
}

// postDepth 盘口深度分析
// 计算量级轻，直接同步执行，不经过 worker 池
func (s *Server) postDepth(c *gin.Context) {
	var req depthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	depth := orderbook.CalculateDepth(req.Bids, req.Asks)
	c.JSON(http.StatusOK, gin.H{
		"depth":          depth,
		"recommendation": orderbook.QuickTradeRecommendation(depth),
	})
}

// postClearCache 清空各 worker 的求值缓存
func (s *Server) postClearCache(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.pool.Call(ctx, worker.OpClearCache, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.bus.Publish(&event.Event{Type: event.EventTypeCacheCleared})
	c.Data(http.StatusOK, "application/json", result)
}

// backtestRequest 回测请求
type backtestRequest struct {
	Indicator engine.CustomIndicator `json:"indicator"`
	Candles   []indicators.Candle    `json:"candles"`
	Threshold float64                `json:"threshold"`
	Symbol    string                 `json:"symbol"`
	Save      bool                   `json:"save"` // 是否持久化报告
}

// postBacktest 阈值穿越回测
func (s *Server) postBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := backtest.RunSimple(s.btEngine, &req.Indicator, req.Candles, req.Threshold)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if req.Save {
		data, err := json.Marshal(result)
		if err == nil {
			report := &storage.BacktestReport{
				Indicator: result.Indicator,
				Symbol:    req.Symbol,
				Threshold: req.Threshold,
				Result:    string(data),
			}
			if err := s.store.SaveBacktestReport(c.Request.Context(), report); err != nil {
				logger.Error("❌ 保存回测报告失败: %v", err)
			}
		}
	}

	s.bus.Publish(&event.Event{
		Type: event.EventTypeBacktestDone,
		Data: map[string]interface{}{
			"indicator": result.Indicator,
			"symbol":    req.Symbol,
			"trades":    result.Performance.TotalTrades,
			"return":    result.Performance.TotalReturn,
		},
	})
	c.JSON(http.StatusOK, result)
}

// listBacktestReports 历史回测报告
func (s *Server) listBacktestReports(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	reports, err := s.store.ListBacktestReports(c.Request.Context(), c.Query("indicator"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reports)
}

// presetRequest 预设保存请求
type presetRequest struct {
	Name  string          `json:"name" binding:"required"`
	Graph json.RawMessage `json:"graph" binding:"required"`
}

// savePreset 保存指标预设，入库前校验图 JSON 可解析
func (s *Server) savePreset(c *gin.Context) {
	var req presetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ind engine.CustomIndicator
	if err := json.Unmarshal(req.Graph, &ind); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid indicator graph: " + err.Error()})
		return
	}

	preset := &storage.IndicatorPreset{Name: req.Name, Graph: string(req.Graph)}
	if err := s.store.SavePreset(c.Request.Context(), preset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preset)
}

// getPreset 按名称查询预设
func (s *Server) getPreset(c *gin.Context) {
	preset, err := s.store.GetPreset(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preset not found"})
		return
	}
	c.JSON(http.StatusOK, preset)
}

// listPresets 列出全部预设
func (s *Server) listPresets(c *gin.Context) {
	presets, err := s.store.ListPresets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, presets)
}

// deletePreset 删除预设
func (s *Server) deletePreset(c *gin.Context) {
	if err := s.store.DeletePreset(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// saveAlertRule 保存预警规则
func (s *Server) saveAlertRule(c *gin.Context) {
	var rule storage.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !alerts.ValidCondition(rule.Condition) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid condition: " + rule.Condition})
		return
	}

	if err := s.store.SaveAlertRule(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// listAlertRules 列出预警规则，?enabled=true 仅启用的
func (s *Server) listAlertRules(c *gin.Context) {
	onlyEnabled := c.Query("enabled") == "true"
	rules, err := s.store.ListAlertRules(c.Request.Context(), onlyEnabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// deleteAlertRule 删除预警规则
func (s *Server) deleteAlertRule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}
	if err := s.store.DeleteAlertRule(c.Request.Context(), uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// listAlertRecords 最近的触发记录
func (s *Server) listAlertRecords(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	records, err := s.store.ListAlertRecords(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// checkRequest 预警检查请求
type checkRequest struct {
	Symbol    string    `json:"symbol" binding:"required"`
	Indicator string    `json:"indicator" binding:"required"`
	Values    []float64 `json:"values"`
}

// checkAlerts 用最新指标序列检查预警规则
func (s *Server) checkAlerts(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	triggered, err := s.alerts.Check(c.Request.Context(), req.Symbol, req.Indicator, req.Values)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggered": triggered})
}

// queryInt 解析整数查询参数
func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
