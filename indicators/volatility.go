package indicators

// ========== 波动率指标 ==========

// BollingerResult 布林带三线
type BollingerResult struct {
	Middle Series `json:"middle"`
	Upper  Series `json:"upper"`
	Lower  Series `json:"lower"`
}

// BollingerBands 布林带，中轨为 SMA，上下轨为中轨 ± multiplier 倍窗口总体标准差
func BollingerBands(values []float64, period int, multiplier float64) BollingerResult {
	n := len(values)
	result := BollingerResult{
		Middle: SMA(values, period),
		Upper:  NewSeries(n),
		Lower:  NewSeries(n),
	}
	if period <= 0 || n < period {
		return result
	}

	for i := period - 1; i < n; i++ {
		band := multiplier * windowStdDev(values, i-period+1, i+1)
		result.Upper[i] = result.Middle[i] + band
		result.Lower[i] = result.Middle[i] - band
	}
	return result
}

// ATR 平均真实波幅
// 真实波幅序列首项补 0 与 K 线对齐，再做 SMA 平滑
func ATR(candles []Candle, period int) Series {
	n := len(candles)
	if n == 0 {
		return NewSeries(0)
	}

	tr := make([]float64, n)
	tr[0] = 0
	for i := 1; i < n; i++ {
		tr[i] = TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
	}
	return SMA(tr, period)
}
