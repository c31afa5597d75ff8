// Package profile 成交量分布分析
// 把K线成交量按价格分桶，计算 POC、价值区间与 VWAP 通道。
package profile

import (
	"math"

	"quantdesk/indicators"
)

// 价值区间覆盖的成交量占比
const valueAreaRatio = 0.70

// VWAP 通道的标准差倍数
const vwapBandMultiplier = 2.0

// Level 单个价格桶
type Level struct {
	Price      float64 `json:"price"` // 桶中心价
	Volume     float64 `json:"volume"`
	BuyVolume  float64 `json:"buyVolume"`
	SellVolume float64 `json:"sellVolume"`
	Delta      float64 `json:"delta"` // buyVolume - sellVolume
}

// Data 成交量分布结果
type Data struct {
	Levels        []Level `json:"levels"`
	POC           float64 `json:"poc"` // 成交量最大桶的价格
	ValueAreaHigh float64 `json:"valueAreaHigh"`
	ValueAreaLow  float64 `json:"valueAreaLow"`
	VWAP          float64 `json:"vwap"`
	VWAPBandUpper float64 `json:"vwapBandUpper"`
	VWAPBandLower float64 `json:"vwapBandLower"`
}

// Calculate 计算成交量分布
// 价格区间 [min(low), max(high)] 均分为 numLevels 个桶，
// 每根K线的成交量按典型价落桶；买卖拆分优先用K线自带的主动买卖量，
// 缺失时按价格变动方向加权
func Calculate(candles []indicators.Candle, numLevels int) *Data {
	if len(candles) == 0 || numLevels <= 0 {
		return &Data{Levels: []Level{}}
	}

	minPrice := candles[0].Low
	maxPrice := candles[0].High
	for _, c := range candles {
		if c.Low < minPrice {
			minPrice = c.Low
		}
		if c.High > maxPrice {
			maxPrice = c.High
		}
	}

	bucketWidth := (maxPrice - minPrice) / float64(numLevels)
	levels := make([]Level, numLevels)
	for i := range levels {
		levels[i].Price = minPrice + (float64(i)+0.5)*bucketWidth
	}

	for i, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		idx := bucketIndex(tp, minPrice, bucketWidth, numLevels)

		buy, sell := splitVolume(candles, i)
		levels[idx].Volume += c.Volume
		levels[idx].BuyVolume += buy
		levels[idx].SellVolume += sell
	}
	for i := range levels {
		levels[i].Delta = levels[i].BuyVolume - levels[i].SellVolume
	}

	data := &Data{Levels: levels}
	data.POC, data.ValueAreaLow, data.ValueAreaHigh = valueArea(levels)
	data.VWAP, data.VWAPBandUpper, data.VWAPBandLower = vwapBands(candles)
	return data
}

// bucketIndex 价格落桶，顶端价格归入最后一桶
func bucketIndex(price, minPrice, width float64, numLevels int) int {
	if width <= 0 {
		return 0
	}
	idx := int((price - minPrice) / width)
	if idx < 0 {
		idx = 0
	}
	if idx >= numLevels {
		idx = numLevels - 1
	}
	return idx
}

// splitVolume 拆分主动买卖量
// K线携带 BuyVolume/SellVolume 时直接使用，否则按涨跌方向加权
func splitVolume(candles []indicators.Candle, i int) (buy, sell float64) {
	c := candles[i]
	if c.BuyVolume > 0 || c.SellVolume > 0 {
		return c.BuyVolume, c.SellVolume
	}

	// 上涨 70/30，下跌 30/70，持平对半
	ratio := 0.5
	if i > 0 {
		switch {
		case c.Close > candles[i-1].Close:
			ratio = 0.7
		case c.Close < candles[i-1].Close:
			ratio = 0.3
		}
	}
	return c.Volume * ratio, c.Volume * (1 - ratio)
}

// valueArea 从 POC 向两侧扩展出覆盖 70% 成交量的最窄连续区间
// 每步并入当前相邻两侧中成交量更大的一桶
func valueArea(levels []Level) (poc, low, high float64) {
	if len(levels) == 0 {
		return 0, 0, 0
	}

	pocIdx := 0
	totalVolume := 0.0
	for i, lv := range levels {
		totalVolume += lv.Volume
		if lv.Volume > levels[pocIdx].Volume {
			pocIdx = i
		}
	}
	poc = levels[pocIdx].Price

	if totalVolume == 0 {
		return poc, levels[0].Price, levels[len(levels)-1].Price
	}

	lo, hi := pocIdx, pocIdx
	covered := levels[pocIdx].Volume
	target := totalVolume * valueAreaRatio

	for covered < target && (lo > 0 || hi < len(levels)-1) {
		lowerVol := -1.0
		if lo > 0 {
			lowerVol = levels[lo-1].Volume
		}
		upperVol := -1.0
		if hi < len(levels)-1 {
			upperVol = levels[hi+1].Volume
		}

		if upperVol >= lowerVol {
			hi++
			covered += upperVol
		} else {
			lo--
			covered += lowerVol
		}
	}

	return poc, levels[lo].Price, levels[hi].Price
}

// vwapBands 全区间 VWAP 与加权标准差通道
func vwapBands(candles []indicators.Candle) (vwap, upper, lower float64) {
	cumPV := 0.0
	cumVolume := 0.0
	for _, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		cumPV += tp * c.Volume
		cumVolume += c.Volume
	}
	if cumVolume == 0 {
		return 0, 0, 0
	}
	vwap = cumPV / cumVolume

	variance := 0.0
	for _, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		variance += c.Volume * (tp - vwap) * (tp - vwap)
	}
	stdDev := math.Sqrt(variance / cumVolume)

	return vwap, vwap + vwapBandMultiplier*stdDev, vwap - vwapBandMultiplier*stdDev
}
