// Package orderbook 盘口深度分析
// 对买卖档位做累计深度、价差与失衡度计算，并给出快速交易倾向。
package orderbook

import (
	"math"
	"sort"
)

// RawLevel 外部输入的原始档位
type RawLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// Level 带累计量的档位
type Level struct {
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	Total      float64 `json:"total"`      // 本侧累计量
	Percentage float64 `json:"percentage"` // 占本侧总量百分比
}

// DepthData 深度分析结果
type DepthData struct {
	Bids           []Level `json:"bids"`
	Asks           []Level `json:"asks"`
	Spread         float64 `json:"spread"`
	SpreadPercent  float64 `json:"spreadPercent"`
	MidPrice       float64 `json:"midPrice"`
	Imbalance      float64 `json:"imbalance"` // 买量/卖量，无卖单时为 0
	TotalBidVolume float64 `json:"totalBidVolume"`
	TotalAskVolume float64 `json:"totalAskVolume"`
}

// CalculateDepth 计算盘口深度
// 买单按价格降序、卖单按价格升序排序后各做一次前向累计
func CalculateDepth(bids, asks []RawLevel) *DepthData {
	sortedBids := make([]RawLevel, len(bids))
	copy(sortedBids, bids)
	sort.Slice(sortedBids, func(i, j int) bool {
		return sortedBids[i].Price > sortedBids[j].Price
	})

	sortedAsks := make([]RawLevel, len(asks))
	copy(sortedAsks, asks)
	sort.Slice(sortedAsks, func(i, j int) bool {
		return sortedAsks[i].Price < sortedAsks[j].Price
	})

	bidLevels, totalBidVolume := accumulate(sortedBids)
	askLevels, totalAskVolume := accumulate(sortedAsks)

	data := &DepthData{
		Bids:           bidLevels,
		Asks:           askLevels,
		TotalBidVolume: totalBidVolume,
		TotalAskVolume: totalAskVolume,
	}

	// 中间价：双边取均值，单边取存活侧
	switch {
	case len(sortedBids) > 0 && len(sortedAsks) > 0:
		bestBid := sortedBids[0].Price
		bestAsk := sortedAsks[0].Price
		data.MidPrice = (bestBid + bestAsk) / 2
		data.Spread = bestAsk - bestBid
		if data.MidPrice > 0 {
			data.SpreadPercent = data.Spread / data.MidPrice * 100
		}
	case len(sortedBids) > 0:
		data.MidPrice = sortedBids[0].Price
	case len(sortedAsks) > 0:
		data.MidPrice = sortedAsks[0].Price
	}

	if totalAskVolume > 0 {
		data.Imbalance = totalBidVolume / totalAskVolume
	}

	return data
}

// accumulate 单侧前向累计
func accumulate(levels []RawLevel) ([]Level, float64) {
	total := 0.0
	for _, lv := range levels {
		total += lv.Amount
	}

	result := make([]Level, len(levels))
	cumulative := 0.0
	for i, lv := range levels {
		cumulative += lv.Amount
		percentage := 0.0
		if total > 0 {
			percentage = lv.Amount / total * 100
		}
		result[i] = Level{
			Price:      lv.Price,
			Amount:     lv.Amount,
			Total:      cumulative,
			Percentage: percentage,
		}
	}
	return result, total
}

// Bias 交易倾向
type Bias string

const (
	BiasBuy     Bias = "buy"
	BiasSell    Bias = "sell"
	BiasNeutral Bias = "neutral"
)

// Recommendation 快速交易建议
type Recommendation struct {
	Bias       Bias    `json:"bias"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// 失衡度阈值：>1.05 偏买，<0.95 偏卖
const (
	imbalanceBuyThreshold  = 1.05
	imbalanceSellThreshold = 0.95
)

// QuickTradeRecommendation 根据失衡度与价差给出倾向
// 中性带使用减半的归一化置信度，与买卖带公式不同
func QuickTradeRecommendation(depth *DepthData) *Recommendation {
	normalized := math.Min(math.Abs(depth.Imbalance-1), 1)
	spreadPenalty := 1 - math.Min(depth.SpreadPercent/1.5, 1)

	rec := &Recommendation{Bias: BiasNeutral}
	switch {
	case depth.Imbalance > imbalanceBuyThreshold:
		rec.Bias = BiasBuy
		rec.Confidence = normalized * spreadPenalty
	case depth.Imbalance < imbalanceSellThreshold:
		rec.Bias = BiasSell
		rec.Confidence = normalized * spreadPenalty
	default:
		rec.Confidence = normalized * 0.5
	}
	return rec
}
