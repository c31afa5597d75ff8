package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"quantdesk/indicators"
	"quantdesk/logger"
	"quantdesk/metrics"
)

// 条件节点 == 比较的容差
const equalityEpsilon = 1e-4

// cacheKey 记忆化键：指标 id + 序列长度 + 序列指纹
// 指纹覆盖每根 K 线的时间戳与收盘价，等长但任意一根不同的序列不会命中旧结果
type cacheKey struct {
	indicatorID string
	length      int
	fingerprint uint64
}

// Engine 指标图求值引擎
// 每个实例持有自己的缓存；跨 worker 共享实例不安全，每个 worker 应独占一个
type Engine struct {
	mu       sync.Mutex
	cache    map[cacheKey][]IndicatorValue
	l2       ResultCache
	observer CacheObserver
}

// CacheObserver 缓存命中观察者，池级统计挂接点
type CacheObserver interface {
	RecordCacheResult(hit bool)
}

// Option Engine 构造选项
type Option func(*Engine)

// WithResultCache 挂接二级结果缓存（如 Redis）
func WithResultCache(l2 ResultCache) Option {
	return func(e *Engine) {
		if l2 != nil {
			e.l2 = l2
		}
	}
}

// WithCacheObserver 挂接缓存命中观察者
func WithCacheObserver(o CacheObserver) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New 创建求值引擎
func New(opts ...Option) *Engine {
	e := &Engine{
		cache: make(map[cacheKey][]IndicatorValue),
		l2:    NopCache{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate 对 K 线序列求值自定义指标
// 返回序列与输入等长，时间戳逐项对应；图结构错误在编译期返回
func (e *Engine) Evaluate(ind *CustomIndicator, candles []indicators.Candle) ([]IndicatorValue, error) {
	start := time.Now()

	// 空图广播 0
	if len(ind.Nodes) == 0 {
		return broadcastValues(0, candles), nil
	}

	key := cacheKey{
		indicatorID: ind.ID,
		length:      len(candles),
		fingerprint: seriesFingerprint(candles),
	}

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		metrics.RecordCacheHit("memory")
		e.observeCache(true)
		return cached, nil
	}
	e.mu.Unlock()

	if values, ok := e.l2.Get(context.Background(), l2Key(key)); ok {
		metrics.RecordCacheHit("l2")
		e.observeCache(true)
		e.mu.Lock()
		e.cache[key] = values
		e.mu.Unlock()
		return values, nil
	}
	metrics.RecordCacheMiss()
	e.observeCache(false)

	g, err := compileGraph(ind)
	if err != nil {
		metrics.RecordEvaluation(ind.ID, time.Since(start), false)
		return nil, fmt.Errorf("indicator %q: %w", ind.ID, err)
	}

	series := e.evaluateGraph(g, candles)
	values := make([]IndicatorValue, len(candles))
	for i, c := range candles {
		values[i] = IndicatorValue{Timestamp: c.Timestamp, Value: series[i]}
	}

	e.mu.Lock()
	e.cache[key] = values
	e.mu.Unlock()
	e.l2.Set(context.Background(), l2Key(key), values)

	metrics.RecordEvaluation(ind.ID, time.Since(start), true)
	return values, nil
}

// BatchResult 批量求值单项结果
type BatchResult struct {
	IndicatorID string           `json:"indicatorId"`
	Values      []IndicatorValue `json:"values"`
}

// BatchEvaluate 对同一 K 线序列批量求值，结果保持输入顺序
func (e *Engine) BatchEvaluate(inds []CustomIndicator, candles []indicators.Candle) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(inds))
	for i := range inds {
		values, err := e.Evaluate(&inds[i], candles)
		if err != nil {
			return nil, err
		}
		results = append(results, BatchResult{IndicatorID: inds[i].ID, Values: values})
	}
	return results, nil
}

// ClearCache 清空全部缓存结果
func (e *Engine) ClearCache() {
	e.mu.Lock()
	n := len(e.cache)
	e.cache = make(map[cacheKey][]IndicatorValue)
	e.mu.Unlock()

	e.l2.Clear(context.Background())
	logger.Debug("🧹 指标缓存已清空: %d 条", n)
}

// CacheSize 当前缓存条目数
func (e *Engine) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// evaluateGraph 自底向上求值，节点结果按句柄记忆化
func (e *Engine) evaluateGraph(g *compiledGraph, candles []indicators.Candle) []float64 {
	resolved := make([][]float64, len(g.nodes))

	var resolve func(i int) []float64
	resolve = func(i int) []float64 {
		if resolved[i] != nil {
			return resolved[i]
		}

		node := &g.nodes[i]
		var series []float64

		switch node.typ {
		case NodeConstant:
			series = make([]float64, len(candles))
			for k := range series {
				series[k] = node.value
			}

		case NodeIndicator:
			series = builtinSeries(node.indicator, node.params, candles)

		case NodeOperator, NodeCondition:
			series = resolve(node.inputs[0])
			for _, input := range node.inputs[1:] {
				series = combine(node.typ, node.operator, series, resolve(input))
			}
		}

		resolved[i] = series
		return series
	}

	return resolve(g.output)
}

// combine 逐索引合并两条序列；除零得 0，条件输出 1/0
func combine(typ NodeType, op string, left, right []float64) []float64 {
	result := make([]float64, len(left))
	for i := range left {
		a, b := left[i], right[i]

		if typ == NodeOperator {
			switch op {
			case OpAdd:
				result[i] = a + b
			case OpSub:
				result[i] = a - b
			case OpMul:
				result[i] = a * b
			case OpDiv:
				if b == 0 {
					result[i] = 0
				} else {
					result[i] = a / b
				}
			}
			continue
		}

		truth := false
		switch op {
		case OpGT:
			truth = a > b
		case OpLT:
			truth = a < b
		case OpEQ:
			truth = math.Abs(a-b) < equalityEpsilon
		case OpAnd:
			truth = a != 0 && b != 0
		case OpOr:
			truth = a != 0 || b != 0
		}
		if truth {
			result[i] = 1
		}
	}
	return result
}

func broadcastValues(v float64, candles []indicators.Candle) []IndicatorValue {
	values := make([]IndicatorValue, len(candles))
	for i, c := range candles {
		values[i] = IndicatorValue{Timestamp: c.Timestamp, Value: v}
	}
	return values
}

// observeCache 命中情况回流给观察者（未挂接时无操作）
func (e *Engine) observeCache(hit bool) {
	if e.observer != nil {
		e.observer.RecordCacheResult(hit)
	}
}

// seriesFingerprint FNV-1a 覆盖全序列的时间戳与收盘价
// 只取首尾采样会让中段被改写的等长序列命中旧结果
func seriesFingerprint(candles []indicators.Candle) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	mix := func(v uint64) {
		for i := 0; i < 8; i++ {
			h ^= (v >> (8 * i)) & 0xff
			h *= prime64
		}
	}
	for i := range candles {
		mix(uint64(candles[i].Timestamp))
		mix(math.Float64bits(candles[i].Close))
	}
	return h
}

func l2Key(key cacheKey) string {
	return fmt.Sprintf("%s:%d:%x", key.indicatorID, key.length, key.fingerprint)
}
