package alerts

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"quantdesk/event"
	"quantdesk/storage"
)

// newTestManager SQLite 临时库上的管理器
func newTestManager(t *testing.T) (*Manager, storage.Store, *event.EventBus) {
	t.Helper()

	store, err := storage.NewStore(&storage.Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "alerts.db"),
	})
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := event.NewEventBus(16)
	t.Cleanup(bus.Close)
	return NewManager(store, bus), store, bus
}

// TestCheckAboveBelow 阈值规则按最新值判定
func TestCheckAboveBelow(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	rules := []*storage.AlertRule{
		{Symbol: "BTCUSDT", Indicator: "rsi", Condition: ConditionAbove, Threshold: 70, Enabled: true},
		{Symbol: "BTCUSDT", Indicator: "rsi", Condition: ConditionBelow, Threshold: 30, Enabled: true},
	}
	for _, r := range rules {
		if err := store.SaveAlertRule(ctx, r); err != nil {
			t.Fatalf("保存规则失败: %v", err)
		}
	}

	triggered, err := m.Check(ctx, "BTCUSDT", "rsi", []float64{50, 60, 75})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("触发数 %d，期望 1（仅 above）", len(triggered))
	}
	if triggered[0].Value != 75 || triggered[0].Threshold != 70 {
		t.Errorf("触发记录 %+v 不正确", triggered[0])
	}

	// 中性区间不触发
	triggered, _ = m.Check(ctx, "BTCUSDT", "rsi", []float64{50, 55})
	if len(triggered) != 0 {
		t.Errorf("中性值触发了 %d 条规则", len(triggered))
	}
}

// TestCheckCross 穿越规则需要方向正确的最后两个值
func TestCheckCross(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	rule := &storage.AlertRule{Symbol: "ETHUSDT", Indicator: "macd", Condition: ConditionCrossUp, Threshold: 0, Enabled: true}
	if err := store.SaveAlertRule(ctx, rule); err != nil {
		t.Fatalf("保存规则失败: %v", err)
	}

	// 上穿：-0.5 → 0.3
	triggered, err := m.Check(ctx, "ETHUSDT", "macd", []float64{-1, -0.5, 0.3})
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("上穿应触发，实际 %d", len(triggered))
	}

	// 已在阈值上方，不再触发
	triggered, _ = m.Check(ctx, "ETHUSDT", "macd", []float64{0.2, 0.3})
	if len(triggered) != 0 {
		t.Error("未发生穿越却触发了")
	}

	// 预热期 NaN 应被跳过：NaN, -0.5, 0.3 仍视作上穿
	triggered, _ = m.Check(ctx, "ETHUSDT", "macd", []float64{math.NaN(), -0.5, 0.3})
	if len(triggered) != 1 {
		t.Error("NaN 预热期应被跳过")
	}
}

// TestCheckScoping 规则只对自己的交易对与指标生效，停用规则被忽略
func TestCheckScoping(t *testing.T) {
	m, store, bus := newTestManager(t)
	ctx := context.Background()

	sub := bus.Subscribe()

	if err := store.SaveAlertRule(ctx, &storage.AlertRule{
		Symbol: "BTCUSDT", Indicator: "rsi", Condition: ConditionAbove, Threshold: 70, Enabled: true,
	}); err != nil {
		t.Fatalf("保存规则失败: %v", err)
	}
	if err := store.SaveAlertRule(ctx, &storage.AlertRule{
		Symbol: "BTCUSDT", Indicator: "rsi", Condition: ConditionBelow, Threshold: 90, Enabled: false,
	}); err != nil {
		t.Fatalf("保存规则失败: %v", err)
	}

	// 其他交易对或指标不触发
	if triggered, _ := m.Check(ctx, "ETHUSDT", "rsi", []float64{99}); len(triggered) != 0 {
		t.Error("其他交易对不应触发")
	}
	if triggered, _ := m.Check(ctx, "BTCUSDT", "mfi", []float64{99}); len(triggered) != 0 {
		t.Error("其他指标不应触发")
	}

	// 本规则触发并发布事件；停用的 below 规则不触发
	triggered, _ := m.Check(ctx, "BTCUSDT", "rsi", []float64{80})
	if len(triggered) != 1 {
		t.Fatalf("触发数 %d，期望 1", len(triggered))
	}

	select {
	case ev := <-sub:
		if ev.Type != event.EventTypeAlertTriggered {
			t.Errorf("事件类型 %s，期望 alert_triggered", ev.Type)
		}
		if ev.Data["symbol"] != "BTCUSDT" {
			t.Errorf("事件数据 %+v 不正确", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("未收到预警事件")
	}
}

// TestEvaluateRuleEmptySeries 全 NaN 或空序列不触发
func TestEvaluateRuleEmptySeries(t *testing.T) {
	rule := &storage.AlertRule{Condition: ConditionAbove, Threshold: 10}

	if _, hit := evaluateRule(rule, nil); hit {
		t.Error("空序列不应触发")
	}
	if _, hit := evaluateRule(rule, []float64{math.NaN(), math.NaN()}); hit {
		t.Error("全 NaN 序列不应触发")
	}
}
