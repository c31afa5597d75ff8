// Package indicators 技术指标函数库
// 所有指标均为纯函数：输出序列与输入 K 线逐索引对齐，
// 预热期（历史数据不足的前若干项）为 null（内部用 NaN 表示，JSON 输出 null）
package indicators

import (
	"encoding/json"
	"math"
)

// Candle K线数据
type Candle struct {
	Timestamp  int64   `json:"timestamp"` // 毫秒时间戳，序列按时间升序
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	BuyVolume  float64 `json:"buyVolume,omitempty"`  // 主动买量（可选）
	SellVolume float64 `json:"sellVolume,omitempty"` // 主动卖量（可选）
}

// Series 与输入对齐的指标序列，NaN 表示预热期的 null 值
type Series []float64

// NewSeries 创建全 null 序列
func NewSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Valid 判断第 i 项是否有值
func (s Series) Valid(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// FirstValid 返回第一个有值的索引，全 null 返回 -1
func (s Series) FirstValid() int {
	for i, v := range s {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// MarshalJSON NaN 输出为 null，保证跨 worker 边界可序列化
func (s Series) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if !math.IsNaN(s[i]) {
			v := s[i]
			out[i] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON null 还原为 NaN
func (s *Series) UnmarshalJSON(data []byte) error {
	var in []*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Series, len(in))
	for i, p := range in {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	*s = out
	return nil
}

// ClosePrices 提取收盘价序列
func ClosePrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Close
	}
	return result
}

// HighPrices 提取最高价序列
func HighPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.High
	}
	return result
}

// LowPrices 提取最低价序列
func LowPrices(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Low
	}
	return result
}

// Volumes 提取成交量序列
func Volumes(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = c.Volume
	}
	return result
}

// TypicalPrice 典型价格 (H+L+C)/3
func TypicalPrice(candles []Candle) []float64 {
	result := make([]float64, len(candles))
	for i, c := range candles {
		result[i] = (c.High + c.Low + c.Close) / 3
	}
	return result
}

// TrueRange 真实波幅
func TrueRange(high, low, prevClose float64) float64 {
	tr1 := high - low
	tr2 := math.Abs(high - prevClose)
	tr3 := math.Abs(low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}

// windowMean 窗口均值，窗口为 values[start:end)
func windowMean(values []float64, start, end int) float64 {
	sum := 0.0
	for i := start; i < end; i++ {
		sum += values[i]
	}
	return sum / float64(end-start)
}

// windowStdDev 窗口总体标准差
func windowStdDev(values []float64, start, end int) float64 {
	mean := windowMean(values, start, end)
	variance := 0.0
	for i := start; i < end; i++ {
		diff := values[i] - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(end-start))
}
