package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/strataquant/strata/internal/core"
)

func makeBars(closes []float64) []core.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestRSI_ConstantGainsSaturate(t *testing.T) {
	// 15 bars with a constant +1.0 daily gain: avgLoss stays 0 and the
	// division-by-zero branch must produce RSI = 100 at index 14.
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := makeBars(closes)

	cfg := DefaultConfig()
	cfg.RSIPeriod = 14
	Compute(bars, cfg)

	if bars[14].RSI == nil {
		t.Fatal("RSI should be computed at index == rsiPeriod")
	}
	if *bars[14].RSI != 100 {
		t.Errorf("RSI = %f, want 100", *bars[14].RSI)
	}
	if bars[13].RSI != nil {
		t.Error("RSI should be undefined before the Wilder seed")
	}
}

func TestRSI_Bounded(t *testing.T) {
	closes := []float64{
		100, 103, 101, 98, 105, 104, 107, 102, 99, 103,
		108, 106, 110, 105, 109, 112, 108, 104, 111, 115,
		113, 110, 116, 114, 118, 112, 109, 117, 120, 116,
	}
	bars := makeBars(closes)

	Compute(bars, DefaultConfig())

	for i, b := range bars {
		if b.RSI == nil {
			continue
		}
		if *b.RSI < 0 || *b.RSI > 100 {
			t.Errorf("bars[%d].RSI = %f, out of [0,100]", i, *b.RSI)
		}
	}
}

func TestRSI_WilderSeed(t *testing.T) {
	// Alternating +2/-1 deltas over the seed window: mean gain 1.0,
	// mean loss 0.5 with period 4 -> RS = 2, RSI = 100 - 100/3.
	closes := []float64{100, 102, 101, 103, 102}
	bars := makeBars(closes)

	cfg := DefaultConfig()
	cfg.RSIPeriod = 4
	Compute(bars, cfg)

	if bars[4].RSI == nil {
		t.Fatal("RSI not computed at seed index")
	}
	want := 100 - 100/(1+2.0)
	if math.Abs(*bars[4].RSI-want) > 1e-9 {
		t.Errorf("RSI = %f, want %f", *bars[4].RSI, want)
	}
	if bars[4].AvgGain == nil || *bars[4].AvgGain != 1.0 {
		t.Errorf("AvgGain seed wrong: %v", bars[4].AvgGain)
	}
	if bars[4].AvgLoss == nil || *bars[4].AvgLoss != 0.5 {
		t.Errorf("AvgLoss seed wrong: %v", bars[4].AvgLoss)
	}
}

func TestMACD_HistogramIdentity(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	bars := makeBars(closes)

	Compute(bars, DefaultConfig())

	var computed int
	for i, b := range bars {
		if b.MACD == nil {
			if i >= 25 {
				t.Errorf("bars[%d].MACD should be defined from index macdSlow-1", i)
			}
			continue
		}
		computed++
		if b.MACDSignal == nil || b.MACDHistogram == nil {
			t.Fatalf("bars[%d]: signal/histogram missing where MACD defined", i)
		}
		if math.Abs(*b.MACDHistogram-(*b.MACD-*b.MACDSignal)) > 1e-12 {
			t.Errorf("bars[%d]: histogram %f != macd-signal %f",
				i, *b.MACDHistogram, *b.MACD-*b.MACDSignal)
		}
	}
	if computed == 0 {
		t.Fatal("no MACD values computed")
	}
}

func TestMACD_EMASeededAtFirstClose(t *testing.T) {
	closes := []float64{100, 110, 120}
	bars := makeBars(closes)

	Compute(bars, DefaultConfig())

	if bars[0].EMA12 == nil || *bars[0].EMA12 != 100 {
		t.Errorf("EMA12 should seed at first close, got %v", bars[0].EMA12)
	}
	// k = 2/13 for EMA12: (110-100)*2/13 + 100
	want := (110-100.0)*(2.0/13) + 100
	if math.Abs(*bars[1].EMA12-want) > 1e-12 {
		t.Errorf("EMA12[1] = %f, want %f", *bars[1].EMA12, want)
	}
}

func TestMovingAverages_WarmUp(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16}
	bars := makeBars(closes)

	Compute(bars, DefaultConfig())

	if bars[3].MA5 != nil {
		t.Error("MA5 must be undefined before 5 bars")
	}
	if bars[4].MA5 == nil || *bars[4].MA5 != 12 {
		t.Errorf("MA5[4] = %v, want 12", bars[4].MA5)
	}
	if bars[6].MA5 == nil || *bars[6].MA5 != 14 {
		t.Errorf("MA5[6] = %v, want 14", bars[6].MA5)
	}
	if bars[6].MA20 != nil {
		t.Error("MA20 must be undefined before 20 bars")
	}
}

func TestVolumeRatio(t *testing.T) {
	bars := makeBars(make([]float64, 25))
	for i := range bars {
		bars[i].Close = 100
		bars[i].Volume = 1000
	}
	bars[24].Volume = 2000

	Compute(bars, DefaultConfig())

	if bars[18].VolumeRatio != nil {
		t.Error("volume ratio must be undefined before 20 bars")
	}
	if bars[20].VolumeRatio == nil || *bars[20].VolumeRatio != 1.0 {
		t.Errorf("flat volume ratio = %v, want 1.0", bars[20].VolumeRatio)
	}
	// Window mean at index 24: (19*1000 + 2000)/20 = 1050
	if bars[24].VolumeRatio == nil {
		t.Fatal("volume ratio missing at index 24")
	}
	want := 2000.0 / 1050.0
	if math.Abs(*bars[24].VolumeRatio-want) > 1e-12 {
		t.Errorf("volume ratio = %f, want %f", *bars[24].VolumeRatio, want)
	}
}

func TestATR_RollingTrueRange(t *testing.T) {
	bars := makeBars([]float64{100, 100, 100, 100, 100, 100})
	for i := range bars {
		bars[i].High = 102
		bars[i].Low = 98
		bars[i].Close = 100
	}

	cfg := DefaultConfig()
	cfg.ATRPeriod = 3
	Compute(bars, cfg)

	if bars[2].ATR != nil {
		t.Error("ATR must be undefined before the window fills")
	}
	// Constant range 4 with flat closes: ATR = 4
	if bars[3].ATR == nil || *bars[3].ATR != 4 {
		t.Errorf("ATR = %v, want 4", bars[3].ATR)
	}
}

func TestATR_DisabledByConfig(t *testing.T) {
	bars := makeBars([]float64{100, 101, 102, 103, 104, 105})

	cfg := DefaultConfig()
	cfg.ATRPeriod = 3
	cfg.WithATR = false
	Compute(bars, cfg)

	for i, b := range bars {
		if b.ATR != nil {
			t.Errorf("bars[%d].ATR computed despite WithATR=false", i)
		}
	}
}

func TestPriceMomentum(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 110}
	bars := makeBars(closes)

	cfg := DefaultConfig()
	cfg.MomentumPeriod = 4
	Compute(bars, cfg)

	if bars[3].PriceMomentum != nil {
		t.Error("momentum must be undefined before the lookback fills")
	}
	if bars[4].PriceMomentum == nil {
		t.Fatal("momentum missing at index 4")
	}
	if math.Abs(*bars[4].PriceMomentum-0.10) > 1e-12 {
		t.Errorf("momentum = %f, want 0.10", *bars[4].PriceMomentum)
	}
}

func TestCompute_EmptyInput(t *testing.T) {
	Compute(nil, DefaultConfig()) // must not panic
	Compute([]core.Bar{}, DefaultConfig())
}
