package indicators

// ========== 成交量指标 ==========

// OBV 能量潮，收盘上涨累加成交量、下跌累减、持平不变
func OBV(candles []Candle) Series {
	result := NewSeries(len(candles))
	if len(candles) == 0 {
		return result
	}

	result[0] = candles[0].Volume
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			result[i] = result[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			result[i] = result[i-1] - candles[i].Volume
		default:
			result[i] = result[i-1]
		}
	}
	return result
}

// VWAP 成交量加权平均价格，从序列起点累积
// 累计成交量为 0 时取 0
func VWAP(candles []Candle) Series {
	result := NewSeries(len(candles))
	cumVolume := 0.0
	cumVolumePrice := 0.0

	for i, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		cumVolume += c.Volume
		cumVolumePrice += tp * c.Volume

		if cumVolume == 0 {
			result[i] = 0
		} else {
			result[i] = cumVolumePrice / cumVolume
		}
	}
	return result
}
