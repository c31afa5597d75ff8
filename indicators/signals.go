package indicators

import "math"

// SignalAction 单点交易信号
type SignalAction string

const (
	SignalBuy     SignalAction = "buy"
	SignalSell    SignalAction = "sell"
	SignalNeutral SignalAction = "neutral"
)

// GenerateSignals 按指标类型对指标值序列生成静态阈值/穿越信号
// 输出与输入逐索引对齐；null 值、未识别类型一律 neutral
func GenerateSignals(kind string, values Series, params map[string]float64) []SignalAction {
	signals := make([]SignalAction, len(values))
	for i := range signals {
		signals[i] = SignalNeutral
	}

	switch kind {
	case "rsi":
		oversold := paramOr(params, "oversold", 30)
		overbought := paramOr(params, "overbought", 70)
		thresholdSignals(signals, values, oversold, overbought)

	case "stochastic":
		oversold := paramOr(params, "oversold", 20)
		overbought := paramOr(params, "overbought", 80)
		thresholdSignals(signals, values, oversold, overbought)

	case "williamsr":
		oversold := paramOr(params, "oversold", -80)
		overbought := paramOr(params, "overbought", -20)
		thresholdSignals(signals, values, oversold, overbought)

	case "mfi":
		oversold := paramOr(params, "oversold", 20)
		overbought := paramOr(params, "overbought", 80)
		thresholdSignals(signals, values, oversold, overbought)

	case "macd":
		// 零轴穿越
		for i := 1; i < len(values); i++ {
			if !values.Valid(i - 1) || !values.Valid(i) {
				continue
			}
			if values[i-1] <= 0 && values[i] > 0 {
				signals[i] = SignalBuy
			} else if values[i-1] >= 0 && values[i] < 0 {
				signals[i] = SignalSell
			}
		}
	}

	return signals
}

// thresholdSignals 低于 oversold 买入、高于 overbought 卖出
func thresholdSignals(signals []SignalAction, values Series, oversold, overbought float64) {
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < oversold {
			signals[i] = SignalBuy
		} else if v > overbought {
			signals[i] = SignalSell
		}
	}
}

func paramOr(params map[string]float64, key string, defaultVal float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return defaultVal
}
