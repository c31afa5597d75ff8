package engine

import (
	"quantdesk/indicators"
)

// 引擎内置的简化指标变体。
// 与 indicators 包的约定不同：图运算要求每个索引都有定义值，
// 因此预热期填 0（RSI 填中性值 50）而不是 null。

const defaultPeriod = 14

func builtinSeries(kind IndicatorKind, params map[string]float64, candles []indicators.Candle) []float64 {
	period := defaultPeriod
	if p, ok := params["period"]; ok && p >= 1 {
		period = int(p)
	}

	switch kind {
	case KindSMA:
		return simpleSMA(indicators.ClosePrices(candles), period)
	case KindEMA:
		return simpleEMA(indicators.ClosePrices(candles), period)
	case KindRSI:
		return simpleRSI(indicators.ClosePrices(candles), period)
	case KindVolume:
		return indicators.Volumes(candles)
	}
	// 编译期已拦截未知类型
	return make([]float64, len(candles))
}

// simpleSMA 预热期填 0
func simpleSMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
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

// simpleEMA 种子为前 period 项 SMA，预热期填 0
func simpleEMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) < period {
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

// simpleRSI 预热期取中性值 50，之后 Wilder 平滑
func simpleRSI(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	for i := range result {
		result[i] = 50
	}
	if len(values) < period+1 {
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

	for i := period; i < len(values); i++ {
		if i > period {
			change := values[i] - values[i-1]
			gain, loss := 0.0, 0.0
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		if avgLoss == 0 {
			result[i] = 100
		} else {
			rs := avgGain / avgLoss
			result[i] = 100 - 100/(1+rs)
		}
	}
	return result
}
