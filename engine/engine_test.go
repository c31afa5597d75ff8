package engine

import (
	"errors"
	"math"
	"testing"

	"quantdesk/indicators"
)

// makeCandles 生成递增收盘价的测试K线
func makeCandles(count int) []indicators.Candle {
	candles := make([]indicators.Candle, count)
	for i := 0; i < count; i++ {
		price := 100 + float64(i)
		candles[i] = indicators.Candle{
			Timestamp: int64(i) * 60000,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

// TestEvaluateConstantGraph 常量相加：10 + 20 每个索引都应为 30
func TestEvaluateConstantGraph(t *testing.T) {
	ind := &CustomIndicator{
		ID:   "const-add",
		Name: "常量相加",
		Nodes: []IndicatorNode{
			{ID: "c1", Type: NodeConstant, Value: 10},
			{ID: "c2", Type: NodeConstant, Value: 20},
			{ID: "sum", Type: NodeOperator, Operator: OpAdd, Inputs: []string{"c1", "c2"}},
		},
		OutputNodeID: "sum",
	}

	e := New()
	values, err := e.Evaluate(ind, makeCandles(5))
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	if len(values) != 5 {
		t.Fatalf("输出长度 %d != 5", len(values))
	}
	for i, v := range values {
		if v.Value != 30 {
			t.Errorf("values[%d] = %v，期望 30", i, v.Value)
		}
		if v.Timestamp != int64(i)*60000 {
			t.Errorf("values[%d] 时间戳 %d 与输入不对应", i, v.Timestamp)
		}
	}
}

// TestEvaluateCondition 条件 10 > 5 应全部输出 1
func TestEvaluateCondition(t *testing.T) {
	ind := &CustomIndicator{
		ID: "cond",
		Nodes: []IndicatorNode{
			{ID: "a", Type: NodeConstant, Value: 10},
			{ID: "b", Type: NodeConstant, Value: 5},
			{ID: "gt", Type: NodeCondition, Operator: OpGT, Inputs: []string{"a", "b"}},
		},
		OutputNodeID: "gt",
	}

	values, err := New().Evaluate(ind, makeCandles(3))
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	for i, v := range values {
		if v.Value != 1 {
			t.Errorf("values[%d] = %v，期望 1", i, v.Value)
		}
	}
}

// TestEvaluateDivisionByZero 除零应得 0 而不是 Inf
func TestEvaluateDivisionByZero(t *testing.T) {
	ind := &CustomIndicator{
		ID: "div0",
		Nodes: []IndicatorNode{
			{ID: "a", Type: NodeConstant, Value: 7},
			{ID: "zero", Type: NodeConstant, Value: 0},
			{ID: "q", Type: NodeOperator, Operator: OpDiv, Inputs: []string{"a", "zero"}},
		},
		OutputNodeID: "q",
	}

	values, err := New().Evaluate(ind, makeCandles(3))
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	for i, v := range values {
		if v.Value != 0 {
			t.Errorf("values[%d] = %v，期望 0", i, v.Value)
		}
	}
}

// TestEvaluateBuiltinSMA 内置 SMA 预热期填 0
func TestEvaluateBuiltinSMA(t *testing.T) {
	ind := &CustomIndicator{
		ID: "sma3",
		Nodes: []IndicatorNode{
			{ID: "s", Type: NodeIndicator, Indicator: KindSMA, Params: map[string]float64{"period": 3}},
		},
		OutputNodeID: "s",
	}

	candles := makeCandles(5) // 收盘价 100,101,102,103,104
	values, err := New().Evaluate(ind, candles)
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}

	if values[0].Value != 0 || values[1].Value != 0 {
		t.Error("预热期应填 0")
	}
	if values[2].Value != 101 {
		t.Errorf("values[2] = %v，期望 101", values[2].Value)
	}
	if values[4].Value != 103 {
		t.Errorf("values[4] = %v，期望 103", values[4].Value)
	}
}

// TestEvaluateBuiltinRSIWarmup 内置 RSI 预热期取中性值 50
func TestEvaluateBuiltinRSIWarmup(t *testing.T) {
	ind := &CustomIndicator{
		ID: "rsi14",
		Nodes: []IndicatorNode{
			{ID: "r", Type: NodeIndicator, Indicator: KindRSI, Params: map[string]float64{"period": 14}},
		},
		OutputNodeID: "r",
	}

	values, err := New().Evaluate(ind, makeCandles(10))
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	for i, v := range values {
		if v.Value != 50 {
			t.Errorf("values[%d] = %v，序列不足周期时应全为 50", i, v.Value)
		}
	}
}

// TestCacheIdempotent 相同指标与序列重复求值只计算一次
func TestCacheIdempotent(t *testing.T) {
	ind := &CustomIndicator{
		ID: "cached",
		Nodes: []IndicatorNode{
			{ID: "c", Type: NodeConstant, Value: 42},
		},
		OutputNodeID: "c",
	}

	e := New()
	candles := makeCandles(10)

	first, err := e.Evaluate(ind, candles)
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	if e.CacheSize() != 1 {
		t.Fatalf("缓存条目 %d，期望 1", e.CacheSize())
	}

	second, err := e.Evaluate(ind, candles)
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	if e.CacheSize() != 1 {
		t.Errorf("重复求值后缓存条目 %d，期望仍为 1", e.CacheSize())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("第 %d 项缓存结果不一致", i)
		}
	}

	e.ClearCache()
	if e.CacheSize() != 0 {
		t.Errorf("清空后缓存条目 %d，期望 0", e.CacheSize())
	}
}

// TestCacheDistinguishesContent 等长但内容不同的序列不应命中同一缓存
func TestCacheDistinguishesContent(t *testing.T) {
	ind := &CustomIndicator{
		ID: "sma2",
		Nodes: []IndicatorNode{
			{ID: "s", Type: NodeIndicator, Indicator: KindSMA, Params: map[string]float64{"period": 2}},
		},
		OutputNodeID: "s",
	}

	e := New()
	a := makeCandles(5)
	b := makeCandles(5)
	for i := range b {
		b[i].Close += 100
		b[i].Timestamp += 1
	}

	ra, _ := e.Evaluate(ind, a)
	rb, _ := e.Evaluate(ind, b)

	if ra[4].Value == rb[4].Value {
		t.Error("不同内容的序列返回了相同结果，缓存键未区分内容")
	}
	if e.CacheSize() != 2 {
		t.Errorf("缓存条目 %d，期望 2", e.CacheSize())
	}
}

// TestCacheDistinguishesMiddleMutation 只有中段一根不同的等长序列不应命中旧结果
// 指纹必须覆盖全序列，首尾采样会漏掉这种改写
func TestCacheDistinguishesMiddleMutation(t *testing.T) {
	ind := &CustomIndicator{
		ID: "sma3",
		Nodes: []IndicatorNode{
			{ID: "s", Type: NodeIndicator, Indicator: KindSMA, Params: map[string]float64{"period": 3}},
		},
		OutputNodeID: "s",
	}

	e := New()
	a := makeCandles(5)
	b := makeCandles(5)
	b[2].Close += 500 // 首尾不变，仅改写中段

	ra, err := e.Evaluate(ind, a)
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	rb, err := e.Evaluate(ind, b)
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}

	if e.CacheSize() != 2 {
		t.Errorf("缓存条目 %d，期望 2（中段改写应产生新键）", e.CacheSize())
	}
	if ra[3].Value == rb[3].Value {
		t.Fatal("中段改写后返回了旧缓存结果")
	}
	want := (b[1].Close + b[2].Close + b[3].Close) / 3
	if math.Abs(rb[3].Value-want) > 1e-9 {
		t.Errorf("rb[3] = %v，期望重新计算得 %v", rb[3].Value, want)
	}
}

// recordingObserver 记录命中情况的测试观察者
type recordingObserver struct {
	hits   int
	misses int
}

func (o *recordingObserver) RecordCacheResult(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

// TestCacheObserver 命中与未命中都应回流给观察者
func TestCacheObserver(t *testing.T) {
	ind := &CustomIndicator{
		ID: "observed",
		Nodes: []IndicatorNode{
			{ID: "c", Type: NodeConstant, Value: 1},
		},
		OutputNodeID: "c",
	}

	obs := &recordingObserver{}
	e := New(WithCacheObserver(obs))
	candles := makeCandles(5)

	if _, err := e.Evaluate(ind, candles); err != nil {
		t.Fatalf("求值失败: %v", err)
	}
	if _, err := e.Evaluate(ind, candles); err != nil {
		t.Fatalf("求值失败: %v", err)
	}

	if obs.misses != 1 || obs.hits != 1 {
		t.Errorf("观察者记录 hits=%d misses=%d，期望 1/1", obs.hits, obs.misses)
	}
}

// TestEvaluateGraphCycle 有环图应返回 ErrGraphCycle
func TestEvaluateGraphCycle(t *testing.T) {
	ind := &CustomIndicator{
		ID: "cyclic",
		Nodes: []IndicatorNode{
			{ID: "a", Type: NodeOperator, Operator: OpAdd, Inputs: []string{"b", "b"}},
			{ID: "b", Type: NodeOperator, Operator: OpAdd, Inputs: []string{"a", "a"}},
		},
		OutputNodeID: "a",
	}

	_, err := New().Evaluate(ind, makeCandles(3))
	if !errors.Is(err, ErrGraphCycle) {
		t.Fatalf("期望 ErrGraphCycle，实际 %v", err)
	}
}

// TestEvaluateMissingNode 缺失引用应返回 ErrNodeNotFound
func TestEvaluateMissingNode(t *testing.T) {
	ind := &CustomIndicator{
		ID: "dangling",
		Nodes: []IndicatorNode{
			{ID: "a", Type: NodeConstant, Value: 1},
			{ID: "sum", Type: NodeOperator, Operator: OpAdd, Inputs: []string{"a", "ghost"}},
		},
		OutputNodeID: "sum",
	}

	_, err := New().Evaluate(ind, makeCandles(3))
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("期望 ErrNodeNotFound，实际 %v", err)
	}

	// 输出节点缺失同样报错
	ind2 := &CustomIndicator{
		ID:           "no-output",
		Nodes:        []IndicatorNode{{ID: "a", Type: NodeConstant, Value: 1}},
		OutputNodeID: "missing",
	}
	_, err = New().Evaluate(ind2, makeCandles(3))
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("期望 ErrNodeNotFound，实际 %v", err)
	}
}

// TestEvaluateTooFewInputs 运算节点少于 2 个输入应报错
func TestEvaluateTooFewInputs(t *testing.T) {
	ind := &CustomIndicator{
		ID: "unary",
		Nodes: []IndicatorNode{
			{ID: "a", Type: NodeConstant, Value: 1},
			{ID: "sum", Type: NodeOperator, Operator: OpAdd, Inputs: []string{"a"}},
		},
		OutputNodeID: "sum",
	}

	_, err := New().Evaluate(ind, makeCandles(3))
	if !errors.Is(err, ErrTooFewInputs) {
		t.Fatalf("期望 ErrTooFewInputs，实际 %v", err)
	}
}

// TestEvaluateUnknownIndicator 未知指标类型应报错
func TestEvaluateUnknownIndicator(t *testing.T) {
	ind := &CustomIndicator{
		ID: "bad-kind",
		Nodes: []IndicatorNode{
			{ID: "x", Type: NodeIndicator, Indicator: "supertrend"},
		},
		OutputNodeID: "x",
	}

	_, err := New().Evaluate(ind, makeCandles(3))
	if !errors.Is(err, ErrUnknownIndicator) {
		t.Fatalf("期望 ErrUnknownIndicator，实际 %v", err)
	}
}

// TestBatchEvaluateOrder 批量求值结果应保持输入顺序
func TestBatchEvaluateOrder(t *testing.T) {
	inds := []CustomIndicator{
		{ID: "first", Nodes: []IndicatorNode{{ID: "c", Type: NodeConstant, Value: 1}}, OutputNodeID: "c"},
		{ID: "second", Nodes: []IndicatorNode{{ID: "c", Type: NodeConstant, Value: 2}}, OutputNodeID: "c"},
		{ID: "third", Nodes: []IndicatorNode{{ID: "c", Type: NodeConstant, Value: 3}}, OutputNodeID: "c"},
	}

	results, err := New().BatchEvaluate(inds, makeCandles(4))
	if err != nil {
		t.Fatalf("批量求值失败: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("结果数 %d != 3", len(results))
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].IndicatorID != want {
			t.Errorf("results[%d].IndicatorID = %s，期望 %s", i, results[i].IndicatorID, want)
		}
		if results[i].Values[0].Value != float64(i+1) {
			t.Errorf("results[%d] 值 %v，期望 %d", i, results[i].Values[0].Value, i+1)
		}
	}
}

// TestEvaluateNestedGraph 嵌套图：SMA 与常量比较再做逻辑与
func TestEvaluateNestedGraph(t *testing.T) {
	ind := &CustomIndicator{
		ID: "nested",
		Nodes: []IndicatorNode{
			{ID: "sma", Type: NodeIndicator, Indicator: KindSMA, Params: map[string]float64{"period": 2}},
			{ID: "low", Type: NodeConstant, Value: 50},
			{ID: "high", Type: NodeConstant, Value: 1000},
			{ID: "above", Type: NodeCondition, Operator: OpGT, Inputs: []string{"sma", "low"}},
			{ID: "below", Type: NodeCondition, Operator: OpLT, Inputs: []string{"sma", "high"}},
			{ID: "both", Type: NodeCondition, Operator: OpAnd, Inputs: []string{"above", "below"}},
		},
		OutputNodeID: "both",
	}

	values, err := New().Evaluate(ind, makeCandles(5))
	if err != nil {
		t.Fatalf("求值失败: %v", err)
	}

	// 索引 0 预热期 SMA=0，above 为假
	if values[0].Value != 0 {
		t.Errorf("values[0] = %v，期望 0", values[0].Value)
	}
	for i := 1; i < 5; i++ {
		if values[i].Value != 1 {
			t.Errorf("values[%d] = %v，期望 1", i, values[i].Value)
		}
	}
}
