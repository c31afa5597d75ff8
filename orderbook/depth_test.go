package orderbook

import (
	"math"
	"testing"
)

// TestCalculateDepthBasic 双边盘口的价差、中间价与失衡度
func TestCalculateDepthBasic(t *testing.T) {
	bids := []RawLevel{{Price: 100, Amount: 5}, {Price: 99, Amount: 3}}
	asks := []RawLevel{{Price: 101, Amount: 4}, {Price: 102, Amount: 2}}

	depth := CalculateDepth(bids, asks)

	if depth.Spread != 1 {
		t.Errorf("价差 %v，期望 1", depth.Spread)
	}
	if depth.MidPrice != 100.5 {
		t.Errorf("中间价 %v，期望 100.5", depth.MidPrice)
	}
	if math.Abs(depth.Imbalance-8.0/6.0) > 1e-9 {
		t.Errorf("失衡度 %v，期望 %v", depth.Imbalance, 8.0/6.0)
	}
	if depth.TotalBidVolume != 8 || depth.TotalAskVolume != 6 {
		t.Errorf("总量 bid=%v ask=%v，期望 8/6", depth.TotalBidVolume, depth.TotalAskVolume)
	}

	rec := QuickTradeRecommendation(depth)
	if rec.Bias != BiasBuy {
		t.Errorf("倾向 %s，期望 buy", rec.Bias)
	}
}

// TestCalculateDepthSorting 乱序输入应被排序：买单降序、卖单升序
func TestCalculateDepthSorting(t *testing.T) {
	bids := []RawLevel{{Price: 98, Amount: 1}, {Price: 100, Amount: 2}, {Price: 99, Amount: 3}}
	asks := []RawLevel{{Price: 103, Amount: 1}, {Price: 101, Amount: 2}}

	depth := CalculateDepth(bids, asks)

	if depth.Bids[0].Price != 100 || depth.Bids[2].Price != 98 {
		t.Error("买单未按价格降序")
	}
	if depth.Asks[0].Price != 101 {
		t.Error("卖单未按价格升序")
	}
	if depth.Spread != 1 {
		t.Errorf("价差 %v，期望 1（最优买 100 / 最优卖 101）", depth.Spread)
	}
}

// TestCalculateDepthCumulative 累计量与占比
func TestCalculateDepthCumulative(t *testing.T) {
	bids := []RawLevel{{Price: 100, Amount: 5}, {Price: 99, Amount: 3}, {Price: 98, Amount: 2}}
	depth := CalculateDepth(bids, nil)

	wantTotals := []float64{5, 8, 10}
	wantPercents := []float64{50, 30, 20}
	for i, lv := range depth.Bids {
		if lv.Total != wantTotals[i] {
			t.Errorf("bids[%d].Total = %v，期望 %v", i, lv.Total, wantTotals[i])
		}
		if math.Abs(lv.Percentage-wantPercents[i]) > 1e-9 {
			t.Errorf("bids[%d].Percentage = %v，期望 %v", i, lv.Percentage, wantPercents[i])
		}
	}
}

// TestCalculateDepthOneSided 单边盘口：价差为 0，中间价取存活侧，失衡度为 0
func TestCalculateDepthOneSided(t *testing.T) {
	depth := CalculateDepth([]RawLevel{{Price: 100, Amount: 5}}, nil)

	if depth.Spread != 0 {
		t.Errorf("价差 %v，期望 0", depth.Spread)
	}
	if depth.MidPrice != 100 {
		t.Errorf("中间价 %v，期望 100", depth.MidPrice)
	}
	if depth.Imbalance != 0 {
		t.Errorf("失衡度 %v，无卖单时期望 0", depth.Imbalance)
	}

	// 空盘口不应 panic
	empty := CalculateDepth(nil, nil)
	if empty.MidPrice != 0 || empty.Spread != 0 {
		t.Error("空盘口应返回零值")
	}
}

// TestQuickTradeRecommendation 三个区间的倾向与置信度
func TestQuickTradeRecommendation(t *testing.T) {
	cases := []struct {
		name       string
		imbalance  float64
		spreadPct  float64
		wantBias   Bias
		wantConf   float64
	}{
		{"偏买", 1.5, 0, BiasBuy, 0.5},
		{"偏卖", 0.5, 0, BiasSell, 0.5},
		{"中性", 1.02, 0, BiasNeutral, 0.02 * 0.5},
		{"价差惩罚", 2.5, 0.75, BiasBuy, 1 * 0.5},  // normalized 封顶 1，价差占半
		{"价差过大", 1.5, 3, BiasBuy, 0},            // spreadPenalty 封顶为 0
	}

	for _, tc := range cases {
		depth := &DepthData{Imbalance: tc.imbalance, SpreadPercent: tc.spreadPct}
		rec := QuickTradeRecommendation(depth)
		if rec.Bias != tc.wantBias {
			t.Errorf("%s: 倾向 %s，期望 %s", tc.name, rec.Bias, tc.wantBias)
		}
		if math.Abs(rec.Confidence-tc.wantConf) > 1e-9 {
			t.Errorf("%s: 置信度 %v，期望 %v", tc.name, rec.Confidence, tc.wantConf)
		}
	}
}
