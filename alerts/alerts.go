// Package alerts 指标预警
// 把启用的预警规则套在最新指标序列上，命中后记录并发布事件。
// 通知投递（邮件/IM）不在本层职责内。
package alerts

import (
	"context"
	"fmt"
	"math"

	"quantdesk/event"
	"quantdesk/logger"
	"quantdesk/metrics"
	"quantdesk/storage"
)

// 规则条件
const (
	ConditionAbove     = "above"
	ConditionBelow     = "below"
	ConditionCrossUp   = "cross_up"
	ConditionCrossDown = "cross_down"
)

// ValidCondition 条件是否合法
func ValidCondition(cond string) bool {
	switch cond {
	case ConditionAbove, ConditionBelow, ConditionCrossUp, ConditionCrossDown:
		return true
	}
	return false
}

// Manager 预警管理器
type Manager struct {
	store storage.Store
	bus   *event.EventBus
}

// NewManager 创建预警管理器
func NewManager(store storage.Store, bus *event.EventBus) *Manager {
	return &Manager{store: store, bus: bus}
}

// Check 用指标序列检查某交易对的全部启用规则
// values 为时间升序的指标值；返回本轮触发的记录
func (m *Manager) Check(ctx context.Context, symbol, indicator string, values []float64) ([]*storage.AlertRecord, error) {
	rules, err := m.store.ListAlertRules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}

	var triggered []*storage.AlertRecord
	for _, rule := range rules {
		if rule.Symbol != symbol || rule.Indicator != indicator {
			continue
		}
		value, hit := evaluateRule(rule, values)
		if !hit {
			continue
		}

		record := &storage.AlertRecord{
			RuleID:    rule.ID,
			Symbol:    rule.Symbol,
			Value:     value,
			Threshold: rule.Threshold,
		}
		if err := m.store.SaveAlertRecord(ctx, record); err != nil {
			logger.Error("❌ 保存预警记录失败: %v", err)
			continue
		}

		metrics.GetPrometheusMetrics().RecordAlertTriggered(rule.Symbol, rule.Indicator)
		m.bus.Publish(&event.Event{
			Type: event.EventTypeAlertTriggered,
			Data: map[string]interface{}{
				"rule_id":   rule.ID,
				"symbol":    rule.Symbol,
				"indicator": rule.Indicator,
				"condition": rule.Condition,
				"threshold": rule.Threshold,
				"value":     value,
			},
		})
		logger.Info("🔔 预警触发: %s %s %s %.4f (当前 %.4f)",
			rule.Symbol, rule.Indicator, rule.Condition, rule.Threshold, value)

		triggered = append(triggered, record)
	}
	return triggered, nil
}

// evaluateRule 单条规则判定
// above/below 看最新值，cross 看最后两个有效值的穿越
func evaluateRule(rule *storage.AlertRule, values []float64) (float64, bool) {
	last, prev, ok := lastTwoValid(values)
	if !ok {
		return 0, false
	}

	switch rule.Condition {
	case ConditionAbove:
		return last, last > rule.Threshold
	case ConditionBelow:
		return last, last < rule.Threshold
	case ConditionCrossUp:
		return last, !math.IsNaN(prev) && prev <= rule.Threshold && last > rule.Threshold
	case ConditionCrossDown:
		return last, !math.IsNaN(prev) && prev >= rule.Threshold && last < rule.Threshold
	}
	return 0, false
}

// lastTwoValid 序列末尾的最新有效值及其前一个值
// prev 可能为 NaN（序列只有一个有效值时）
func lastTwoValid(values []float64) (last, prev float64, ok bool) {
	prev = math.NaN()
	i := len(values) - 1
	for ; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			last = values[i]
			break
		}
	}
	if i < 0 {
		return 0, 0, false
	}
	for j := i - 1; j >= 0; j-- {
		if !math.IsNaN(values[j]) {
			prev = values[j]
			break
		}
	}
	return last, prev, true
}
