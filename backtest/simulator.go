// Package backtest 简易回测模拟器
// 对指标序列做阈值穿越扫描，生成买卖信号并汇总朴素绩效。
// 不含手续费、滑点与完整权益曲线，定位是图表面板的快速评估。
package backtest

import (
	"fmt"
	"math"
	"time"

	"quantdesk/engine"
	"quantdesk/indicators"
	"quantdesk/logger"
	"quantdesk/metrics"
)

// SignalType 信号方向
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// Signal 穿越信号
type Signal struct {
	Timestamp int64      `json:"timestamp"`
	Type      SignalType `json:"type"`
	Price     float64    `json:"price"` // 当根收盘价
	Value     float64    `json:"value"` // 穿越时的指标值
}

// Performance 绩效汇总
type Performance struct {
	TotalTrades      int     `json:"totalTrades"`
	ProfitableTrades int     `json:"profitableTrades"`
	TotalReturn      float64 `json:"totalReturn"` // 各笔收益率的不复利累加
	MaxDrawdown      float64 `json:"maxDrawdown"` // 仅基于信号价格，非完整权益曲线
	SharpeRatio      float64 `json:"sharpeRatio"` // totalReturn/sqrt(trades)，粗略启发值
}

// Result 回测结果
type Result struct {
	Indicator   string      `json:"indicator"`
	Signals     []Signal    `json:"signals"`
	Performance Performance `json:"performance"`
}

// RunSimple 运行阈值穿越回测
// 指标值上穿阈值（prev ≤ t < cur）在当根收盘价买入，下穿卖出；
// 买卖严格交替配对，末尾未平仓的买入不计入绩效
func RunSimple(e *engine.Engine, ind *engine.CustomIndicator, candles []indicators.Candle, threshold float64) (*Result, error) {
	start := time.Now()

	values, err := e.Evaluate(ind, candles)
	if err != nil {
		metrics.RecordBacktest(time.Since(start), false)
		return nil, fmt.Errorf("backtest evaluate: %w", err)
	}

	signals := scanCrossings(values, candles, threshold)
	perf := calculatePerformance(signals)

	logger.Debug("📊 回测完成: %s, %d 个信号, %d 笔交易",
		ind.Name, len(signals), perf.TotalTrades)
	metrics.RecordBacktest(time.Since(start), true)

	return &Result{
		Indicator:   ind.Name,
		Signals:     signals,
		Performance: perf,
	}, nil
}

// scanCrossings 扫描阈值穿越点
func scanCrossings(values []engine.IndicatorValue, candles []indicators.Candle, threshold float64) []Signal {
	signals := make([]Signal, 0)

	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1].Value, values[i].Value

		switch {
		case prev <= threshold && cur > threshold:
			signals = append(signals, Signal{
				Timestamp: candles[i].Timestamp,
				Type:      SignalBuy,
				Price:     candles[i].Close,
				Value:     cur,
			})
		case prev >= threshold && cur < threshold:
			signals = append(signals, Signal{
				Timestamp: candles[i].Timestamp,
				Type:      SignalSell,
				Price:     candles[i].Close,
				Value:     cur,
			})
		}
	}
	return signals
}

// calculatePerformance 按买→卖严格交替配对汇总绩效
func calculatePerformance(signals []Signal) Performance {
	var perf Performance

	entryPrice := 0.0
	holding := false

	for _, sig := range signals {
		switch sig.Type {
		case SignalBuy:
			if !holding {
				entryPrice = sig.Price
				holding = true
			}
		case SignalSell:
			if holding && entryPrice > 0 {
				tradeReturn := (sig.Price - entryPrice) / entryPrice
				perf.TotalTrades++
				perf.TotalReturn += tradeReturn
				if tradeReturn > 0 {
					perf.ProfitableTrades++
				}
				holding = false
			}
		}
	}

	perf.MaxDrawdown = signalDrawdown(signals)
	if perf.TotalTrades > 0 {
		perf.SharpeRatio = perf.TotalReturn / math.Sqrt(float64(perf.TotalTrades))
	}
	return perf
}

// signalDrawdown 信号价格序列的峰谷回撤
func signalDrawdown(signals []Signal) float64 {
	peak := 0.0
	maxDD := 0.0

	for _, sig := range signals {
		if sig.Price > peak {
			peak = sig.Price
		}
		if peak > 0 {
			dd := (peak - sig.Price) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
