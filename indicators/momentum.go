package indicators

import (
	"math"
)

// ========== 动量指标 ==========

// RSI 相对强弱指数（Wilder 平滑）
// 种子为前 period 个差分的平均涨跌幅，之后 avg = (avg*(p-1)+当前分量)/p
// avgLoss 为 0 时 RSI = 100
func RSI(values []float64, period int) Series {
	result := NewSeries(len(values))
	if period <= 0 || len(values) < period+1 {
		return result
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}
	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// StochasticResult 随机指标 %K/%D
type StochasticResult struct {
	K Series `json:"k"`
	D Series `json:"d"`
}

// Stochastic 随机振荡器
// %K = (close - 最低) / (最高 - 最低) * 100，窗口退化时取 50
func Stochastic(candles []Candle, kPeriod, dPeriod int) StochasticResult {
	n := len(candles)
	k := NewSeries(n)
	if kPeriod > 0 && n >= kPeriod {
		for i := kPeriod - 1; i < n; i++ {
			high := candles[i-kPeriod+1].High
			low := candles[i-kPeriod+1].Low
			for j := i - kPeriod + 2; j <= i; j++ {
				if candles[j].High > high {
					high = candles[j].High
				}
				if candles[j].Low < low {
					low = candles[j].Low
				}
			}

			v := (candles[i].Close - low) / (high - low) * 100
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 50
			}
			k[i] = v
		}
	}

	return StochasticResult{
		K: k,
		D: SMASeries(k, dPeriod),
	}
}

// CCI 商品通道指数，平均偏差为 0 时取 0
func CCI(candles []Candle, period int) Series {
	result := NewSeries(len(candles))
	if period <= 0 || len(candles) < period {
		return result
	}

	tp := TypicalPrice(candles)
	for i := period - 1; i < len(candles); i++ {
		mean := windowMean(tp, i-period+1, i+1)

		meanDev := 0.0
		for j := i - period + 1; j <= i; j++ {
			meanDev += math.Abs(tp[j] - mean)
		}
		meanDev /= float64(period)

		if meanDev == 0 {
			result[i] = 0
		} else {
			result[i] = (tp[i] - mean) / (0.015 * meanDev)
		}
	}
	return result
}

// WilliamsR 威廉指标，窗口退化时取 -50
func WilliamsR(candles []Candle, period int) Series {
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

		if high == low {
			result[i] = -50
		} else {
			result[i] = (high - candles[i].Close) / (high - low) * -100
		}
	}
	return result
}

// MFI 资金流量指数
// 负向流量为 0 时取 100，窗口内完全无流量时取 50
func MFI(candles []Candle, period int) Series {
	result := NewSeries(len(candles))
	if period <= 0 || len(candles) < period+1 {
		return result
	}

	tp := TypicalPrice(candles)
	for i := period; i < len(candles); i++ {
		positiveFlow := 0.0
		negativeFlow := 0.0

		for j := i - period + 1; j <= i; j++ {
			moneyFlow := tp[j] * candles[j].Volume
			if tp[j] > tp[j-1] {
				positiveFlow += moneyFlow
			} else if tp[j] < tp[j-1] {
				negativeFlow += moneyFlow
			}
		}

		switch {
		case positiveFlow == 0 && negativeFlow == 0:
			result[i] = 50
		case negativeFlow == 0:
			result[i] = 100
		default:
			mfr := positiveFlow / negativeFlow
			result[i] = 100 - 100/(1+mfr)
		}
	}
	return result
}
