package indicators

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

// generateMockCandles 生成模拟K线数据（震荡行情）
func generateMockCandles(count int, basePrice float64, volatility float64) []Candle {
	candles := make([]Candle, count)
	currentPrice := basePrice
	timestamp := time.Now().Add(-time.Duration(count)*time.Hour).Unix() * 1000

	for i := 0; i < count; i++ {
		change := (float64(i%10) - 5) * volatility * basePrice
		currentPrice += change

		if currentPrice < basePrice*0.8 {
			currentPrice = basePrice * 0.8
		}
		if currentPrice > basePrice*1.2 {
			currentPrice = basePrice * 1.2
		}

		candles[i] = Candle{
			Timestamp: timestamp + int64(i)*3600000,
			Open:      currentPrice,
			High:      currentPrice * (1 + volatility),
			Low:       currentPrice * (1 - volatility),
			Close:     currentPrice + (float64(i%3)-1)*volatility*basePrice,
			Volume:    1000 + float64(i%100)*10,
		}
	}
	return candles
}

// TestSMAKnownValues 测试 SMA 已知值
func TestSMAKnownValues(t *testing.T) {
	result := SMA([]float64{10, 12, 14, 16, 18, 20}, 3)

	if len(result) != 6 {
		t.Fatalf("输出长度应为 6，实际 %d", len(result))
	}
	if result.Valid(0) || result.Valid(1) {
		t.Error("前两项应为 null")
	}

	expected := []float64{12, 14, 16, 18}
	for i, want := range expected {
		got := result[i+2]
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("result[%d] = %v，期望 %v", i+2, got, want)
		}
	}
}

// TestWarmupAllNull 序列长度不足周期时输出应全为 null
func TestWarmupAllNull(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	candles := generateMockCandles(4, 100, 0.01)

	cases := map[string]Series{
		"SMA": SMA(values, 5),
		"EMA": EMA(values, 5),
		"RSI": RSI(values, 5),
		"ATR": ATR(candles, 5),
	}

	for name, s := range cases {
		if len(s) != len(values) {
			t.Errorf("%s: 输出长度 %d != 输入长度 %d", name, len(s), len(values))
		}
		for i := range s {
			if s.Valid(i) {
				t.Errorf("%s: 第 %d 项应为 null", name, i)
			}
		}
	}
}

// TestEMASeed EMA 种子应等于前 period 项的 SMA
func TestEMASeed(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10, 12}
	ema := EMA(values, 3)

	if ema.Valid(0) || ema.Valid(1) {
		t.Error("预热期应为 null")
	}
	if math.Abs(ema[2]-4) > 1e-9 {
		t.Errorf("种子应为 (2+4+6)/3 = 4，实际 %v", ema[2])
	}

	// 递推：ema[3] = (8-4)*0.5 + 4 = 6
	if math.Abs(ema[3]-6) > 1e-9 {
		t.Errorf("ema[3] 应为 6，实际 %v", ema[3])
	}
}

// TestRSIRange 任意有限输入下非 null 的 RSI 均在 [0,100]
func TestRSIRange(t *testing.T) {
	candles := generateMockCandles(500, 30000, 0.02)
	rsi := RSI(ClosePrices(candles), 14)

	count := 0
	for i := range rsi {
		if !rsi.Valid(i) {
			continue
		}
		count++
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Errorf("rsi[%d] = %v 超出 [0,100]", i, rsi[i])
		}
	}
	if count == 0 {
		t.Fatal("RSI 没有任何有效值")
	}
}

// TestRSIAllGains 单边上涨行情 RSI 应为 100
func TestRSIAllGains(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	rsi := RSI(values, 3)

	for i := 3; i < len(rsi); i++ {
		if math.Abs(rsi[i]-100) > 1e-9 {
			t.Errorf("rsi[%d] = %v，期望 100", i, rsi[i])
		}
	}
}

// TestMACDHistogramIdentity macd 与 signal 均有值处 histogram 必须恒等于差值
func TestMACDHistogramIdentity(t *testing.T) {
	candles := generateMockCandles(300, 30000, 0.02)
	result := MACD(ClosePrices(candles), 12, 26, 9)

	checked := 0
	for i := range result.MACD {
		if result.MACD.Valid(i) && result.Signal.Valid(i) {
			if !result.Histogram.Valid(i) {
				t.Fatalf("histogram[%d] 缺失", i)
			}
			if result.Histogram[i] != result.MACD[i]-result.Signal[i] {
				t.Errorf("histogram[%d] = %v != macd-signal = %v",
					i, result.Histogram[i], result.MACD[i]-result.Signal[i])
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatal("没有可校验的点")
	}
}

// TestBollingerBands 布林带上下轨应对称于中轨
func TestBollingerBands(t *testing.T) {
	candles := generateMockCandles(100, 100, 0.02)
	bb := BollingerBands(ClosePrices(candles), 20, 2)

	for i := 19; i < 100; i++ {
		if !bb.Middle.Valid(i) {
			t.Fatalf("middle[%d] 缺失", i)
		}
		upperDist := bb.Upper[i] - bb.Middle[i]
		lowerDist := bb.Middle[i] - bb.Lower[i]
		if math.Abs(upperDist-lowerDist) > 1e-9 {
			t.Errorf("第 %d 项上下轨不对称", i)
		}
		if upperDist < 0 {
			t.Errorf("第 %d 项上轨低于中轨", i)
		}
	}
}

// TestStochasticDegenerateWindow 高低价相同时 %K 应取 50
func TestStochasticDegenerateWindow(t *testing.T) {
	candles := make([]Candle, 10)
	for i := range candles {
		candles[i] = Candle{Timestamp: int64(i), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	}

	result := Stochastic(candles, 5, 3)
	for i := 4; i < 10; i++ {
		if result.K[i] != 50 {
			t.Errorf("k[%d] = %v，退化窗口期望 50", i, result.K[i])
		}
	}
}

// TestWilliamsRDegenerateWindow 高低价相同时 %R 应取 -50
func TestWilliamsRDegenerateWindow(t *testing.T) {
	candles := make([]Candle, 6)
	for i := range candles {
		candles[i] = Candle{Timestamp: int64(i), Open: 10, High: 10, Low: 10, Close: 10, Volume: 1}
	}

	wr := WilliamsR(candles, 3)
	for i := 2; i < 6; i++ {
		if wr[i] != -50 {
			t.Errorf("wr[%d] = %v，期望 -50", i, wr[i])
		}
	}
}

// TestOBV 测试能量潮累积方向
func TestOBV(t *testing.T) {
	candles := []Candle{
		{Close: 10, Volume: 100},
		{Close: 11, Volume: 200}, // 上涨 +200
		{Close: 9, Volume: 300},  // 下跌 -300
		{Close: 9, Volume: 400},  // 持平
	}

	obv := OBV(candles)
	expected := []float64{100, 300, 0, 0}
	for i, want := range expected {
		if obv[i] != want {
			t.Errorf("obv[%d] = %v，期望 %v", i, obv[i], want)
		}
	}
}

// TestVWAP VWAP 应等于累计典型价格×成交量除以累计成交量
func TestVWAP(t *testing.T) {
	candles := []Candle{
		{High: 12, Low: 8, Close: 10, Volume: 100}, // tp=10
		{High: 22, Low: 18, Close: 20, Volume: 100}, // tp=20
	}

	vwap := VWAP(candles)
	if math.Abs(vwap[0]-10) > 1e-9 {
		t.Errorf("vwap[0] = %v，期望 10", vwap[0])
	}
	if math.Abs(vwap[1]-15) > 1e-9 {
		t.Errorf("vwap[1] = %v，期望 15", vwap[1])
	}
}

// TestATRLeadingZero ATR 首个真实波幅补 0，输出与输入对齐
func TestATRLeadingZero(t *testing.T) {
	candles := generateMockCandles(50, 100, 0.02)
	atr := ATR(candles, 14)

	if len(atr) != 50 {
		t.Fatalf("输出长度 %d != 50", len(atr))
	}
	for i := 0; i < 13; i++ {
		if atr.Valid(i) {
			t.Errorf("第 %d 项应为 null", i)
		}
	}
	for i := 13; i < 50; i++ {
		if !atr.Valid(i) || atr[i] < 0 {
			t.Errorf("atr[%d] = %v 无效", i, atr[i])
		}
	}
}

// TestParabolicSARBounds SAR 值应始终落在价格区间附近且全序列有值
func TestParabolicSARBounds(t *testing.T) {
	candles := generateMockCandles(200, 100, 0.02)
	sar := ParabolicSAR(candles, 0.02, 0.02, 0.2)

	if len(sar) != 200 {
		t.Fatalf("输出长度 %d != 200", len(sar))
	}
	for i := range sar {
		if !sar.Valid(i) {
			t.Errorf("sar[%d] 应有值", i)
		}
	}
}

// TestIchimokuDisplacement 先行带应前移、迟行带应后移
func TestIchimokuDisplacement(t *testing.T) {
	candles := generateMockCandles(120, 100, 0.02)
	ich := Ichimoku(candles, 9, 26, 52, 26)

	// 迟行带最后 displacement 项为 null
	for i := 120 - 26; i < 120; i++ {
		if ich.Chikou.Valid(i) {
			t.Errorf("chikou[%d] 应为 null", i)
		}
	}
	if !ich.Chikou.Valid(0) {
		t.Error("chikou[0] 应等于 close[26]")
	}
	if ich.Chikou[0] != candles[26].Close {
		t.Errorf("chikou[0] = %v，期望 %v", ich.Chikou[0], candles[26].Close)
	}

	// 先行带 A 在基准线首个有效点前移 displacement 处出现
	firstA := ich.SenkouA.FirstValid()
	if firstA != 25+26 {
		t.Errorf("senkouA 首个有效索引 %d，期望 %d", firstA, 25+26)
	}
}

// TestSeriesJSONNull 序列 JSON 序列化预热期应输出 null
func TestSeriesJSONNull(t *testing.T) {
	s := SMA([]float64{10, 12, 14}, 3)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if string(data) != "[null,null,12]" {
		t.Errorf("JSON = %s，期望 [null,null,12]", data)
	}

	var back Series
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("反序列化失败: %v", err)
	}
	if back.Valid(0) || !back.Valid(2) || back[2] != 12 {
		t.Error("反序列化结果不一致")
	}
}

// TestGenerateSignals 测试阈值与穿越信号
func TestGenerateSignals(t *testing.T) {
	rsiValues := Series{math.NaN(), 25, 50, 75}
	signals := GenerateSignals("rsi", rsiValues, nil)
	expected := []SignalAction{SignalNeutral, SignalBuy, SignalNeutral, SignalSell}
	for i, want := range expected {
		if signals[i] != want {
			t.Errorf("rsi signals[%d] = %s，期望 %s", i, signals[i], want)
		}
	}

	macdValues := Series{-1, -0.5, 0.5, 1, -0.2}
	signals = GenerateSignals("macd", macdValues, nil)
	expected = []SignalAction{SignalNeutral, SignalNeutral, SignalBuy, SignalNeutral, SignalSell}
	for i, want := range expected {
		if signals[i] != want {
			t.Errorf("macd signals[%d] = %s，期望 %s", i, signals[i], want)
		}
	}

	// 未识别类型全部 neutral
	signals = GenerateSignals("unknown", Series{1, 2, 3}, nil)
	for i, s := range signals {
		if s != SignalNeutral {
			t.Errorf("unknown signals[%d] = %s，期望 neutral", i, s)
		}
	}
}
