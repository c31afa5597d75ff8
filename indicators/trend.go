package indicators

import (
	"math"
)

// ========== 趋势指标 ==========

// SMA 简单移动平均，前 period-1 项为 null
func SMA(values []float64, period int) Series {
	result := NewSeries(len(values))
	if period <= 0 || len(values) < period {
		return result
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			result[i] = sum / float64(period)
		}
	}
	return result
}

// SMASeries 对含 null 的序列做 SMA，窗口内含 null 则结果为 null
func SMASeries(values Series, period int) Series {
	result := NewSeries(len(values))
	if period <= 0 || len(values) < period {
		return result
	}

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			result[i] = sum / float64(period)
		}
	}
	return result
}

// EMA 指数移动平均，种子为前 period 项的 SMA（落在索引 period-1）
func EMA(values []float64, period int) Series {
	result := NewSeries(len(values))
	if period <= 0 || len(values) < period {
		return result
	}

	multiplier := 2.0 / (float64(period) + 1.0)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}
	return result
}

// MACDResult MACD 三线结果，互相对齐
type MACDResult struct {
	MACD      Series `json:"macd"`
	Signal    Series `json:"signal"`
	Histogram Series `json:"histogram"`
}

// MACD 指数平滑异同移动平均
// signal 线只对 macd 的非 null 段做 EMA，再对齐回原索引
func MACD(values []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	n := len(values)
	result := MACDResult{
		MACD:      NewSeries(n),
		Signal:    NewSeries(n),
		Histogram: NewSeries(n),
	}

	fast := EMA(values, fastPeriod)
	slow := EMA(values, slowPeriod)

	// macd 在快慢线都有值处定义
	compact := make([]float64, 0, n)
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if fast.Valid(i) && slow.Valid(i) {
			result.MACD[i] = fast[i] - slow[i]
			compact = append(compact, result.MACD[i])
			indices = append(indices, i)
		}
	}

	signal := EMA(compact, signalPeriod)
	for k, idx := range indices {
		if signal.Valid(k) {
			result.Signal[idx] = signal[k]
			result.Histogram[idx] = result.MACD[idx] - result.Signal[idx]
		}
	}
	return result
}

// ParabolicSAR 抛物线转向指标
// 极值点/加速因子递推，趋势反转时 SAR 跳到前极值
func ParabolicSAR(candles []Candle, afStart, afStep, afMax float64) Series {
	n := len(candles)
	result := NewSeries(n)
	if n == 0 {
		return result
	}
	if n == 1 {
		result[0] = candles[0].Low
		return result
	}

	isUpTrend := candles[1].Close > candles[0].Close
	af := afStart
	ep := candles[0].High
	result[0] = candles[0].Low
	if !isUpTrend {
		ep = candles[0].Low
		result[0] = candles[0].High
	}

	for i := 1; i < n; i++ {
		sar := result[i-1] + af*(ep-result[i-1])

		if isUpTrend {
			// SAR 不得高于前两根的最低价
			sar = math.Min(sar, candles[i-1].Low)
			if i >= 2 {
				sar = math.Min(sar, candles[i-2].Low)
			}

			if candles[i].Low < sar {
				// 转为下跌趋势
				isUpTrend = false
				sar = ep
				ep = candles[i].Low
				af = afStart
			} else if candles[i].High > ep {
				ep = candles[i].High
				af = math.Min(af+afStep, afMax)
			}
		} else {
			sar = math.Max(sar, candles[i-1].High)
			if i >= 2 {
				sar = math.Max(sar, candles[i-2].High)
			}

			if candles[i].High > sar {
				// 转为上涨趋势
				isUpTrend = true
				sar = ep
				ep = candles[i].High
				af = afStart
			} else if candles[i].Low < ep {
				ep = candles[i].Low
				af = math.Min(af+afStep, afMax)
			}
		}

		result[i] = sar
	}
	return result
}

// IchimokuResult 一目均衡表结果，四条位移线加迟行带
type IchimokuResult struct {
	Tenkan  Series `json:"tenkan"`  // 转换线
	Kijun   Series `json:"kijun"`   // 基准线
	SenkouA Series `json:"senkouA"` // 先行带 A，前移 displacement
	SenkouB Series `json:"senkouB"` // 先行带 B，前移 displacement
	Chikou  Series `json:"chikou"`  // 迟行带，后移 displacement
}

// Ichimoku 一目均衡表
func Ichimoku(candles []Candle, tenkanPeriod, kijunPeriod, senkouBPeriod, displacement int) IchimokuResult {
	n := len(candles)
	result := IchimokuResult{
		Tenkan:  middleLine(candles, tenkanPeriod),
		Kijun:   middleLine(candles, kijunPeriod),
		SenkouA: NewSeries(n),
		SenkouB: NewSeries(n),
		Chikou:  NewSeries(n),
	}

	senkouBRaw := middleLine(candles, senkouBPeriod)
	for i := 0; i < n; i++ {
		if i+displacement < n {
			if result.Tenkan.Valid(i) && result.Kijun.Valid(i) {
				result.SenkouA[i+displacement] = (result.Tenkan[i] + result.Kijun[i]) / 2
			}
			if senkouBRaw.Valid(i) {
				result.SenkouB[i+displacement] = senkouBRaw[i]
			}
		}
		if i-displacement >= 0 {
			result.Chikou[i-displacement] = candles[i].Close
		}
	}
	return result
}

// middleLine (最高 + 最低) / 2 中线
func middleLine(candles []Candle, period int) Series {
	result := NewSeries(len(candles))
	if period <= 0 || len(candles) < period {
		return result
	}

	for i := period - 1; i < len(candles); i++ {
		high := candles[i-period+1].High
		low := candles[i-period+1].Low
		for j := i - period + 2; j <= i; j++ {
			if candles[j].High > high {
				high = candles[j].High
			}
			if candles[j].Low < low {
				low = candles[j].Low
			}
		}
		result[i] = (high + low) / 2
	}
	return result
}
