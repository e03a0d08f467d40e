package stats

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestEmptySeries(t *testing.T) {
	checks := map[string]func() error{
		"Average":             func() error { _, err := Average(nil); return err },
		"Volatility":          func() error { _, err := Volatility(nil); return err },
		"SimpleMovingAverage": func() error { _, err := SimpleMovingAverage(nil, 3); return err },
		"RSI":                 func() error { _, err := RSI(nil, 14); return err },
		"TrendLabel":          func() error { _, err := TrendLabel(nil); return err },
		"Last":                func() error { _, err := Last([]float64{}); return err },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			err := fn()
			if !errors.Is(err, ErrEmptySeries) {
				t.Fatalf("error = %v, want ErrEmptySeries", err)
			}
			var se *InvalidSeriesError
			if !errors.As(err, &se) {
				t.Fatalf("error = %T, want *InvalidSeriesError", err)
			}
		})
	}
}

func TestAverageAndVolatility(t *testing.T) {
	series := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	avg, err := Average(series)
	if err != nil || !approx(avg, 5) {
		t.Errorf("Average() = %v, %v; want 5", avg, err)
	}
	vol, err := Volatility(series)
	if err != nil || !approx(vol, 2) {
		t.Errorf("Volatility() = %v, %v; want 2", vol, err)
	}

	flat, _ := Volatility([]float64{3, 3, 3})
	if flat != 0 {
		t.Errorf("Volatility(flat) = %v, want 0", flat)
	}
}

func TestVolatilityNonNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		n := 1 + rng.IntN(60)
		series := make([]float64, n)
		for j := range series {
			series[j] = (rng.Float64() - 0.5) * 1000
		}
		vol, err := Volatility(series)
		if err != nil {
			t.Fatalf("Volatility() unexpected error: %v", err)
		}
		if vol < 0 || math.IsNaN(vol) {
			t.Fatalf("Volatility(%v) = %v, want >= 0", series, vol)
		}
	}
}

func TestSimpleMovingAverage(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name   string
		window int
		want   []float64
	}{
		{"window 1 is identity", 1, []float64{1, 2, 3, 4, 5}},
		{"window 2", 2, []float64{1.5, 2.5, 3.5, 4.5}},
		{"window 3", 3, []float64{2, 3, 4}},
		{"window equals length", 5, []float64{3}},
		{"window exceeds length", 6, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SimpleMovingAverage(series, tt.window)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("got nil slice, want empty or populated slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if !approx(got[i], tt.want[i]) {
					t.Errorf("sma[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := SimpleMovingAverage(series, 0); err == nil {
		t.Error("window 0 should be rejected")
	}
}

func TestSimpleMovingAverageLength(t *testing.T) {
	for n := 1; n <= 30; n++ {
		series := make([]float64, n)
		for i := range series {
			series[i] = float64(i * i)
		}
		for w := 1; w <= 35; w++ {
			got, err := SimpleMovingAverage(series, w)
			if err != nil {
				t.Fatalf("n=%d w=%d: %v", n, w, err)
			}
			want := n - w + 1
			if want < 0 {
				want = 0
			}
			if len(got) != want {
				t.Fatalf("n=%d w=%d: len = %d, want %d", n, w, len(got), want)
			}
		}
	}
}

func TestLatestSMA(t *testing.T) {
	v, ok, err := LatestSMA([]float64{10, 20, 30}, 2)
	if err != nil || !ok || !approx(v, 25) {
		t.Errorf("LatestSMA() = %v, %v, %v; want 25, true, nil", v, ok, err)
	}
	_, ok, err = LatestSMA([]float64{10}, 2)
	if err != nil || ok {
		t.Errorf("LatestSMA(short) ok = %v, err = %v; want false, nil", ok, err)
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		period int
		want   float64
	}{
		{"only gains", []float64{1, 2, 3, 4, 5}, 14, 100},
		{"flat", []float64{5, 5, 5, 5}, 14, 50},
		{"only losses", []float64{5, 4, 3, 2}, 14, 0},
		// gains 2, losses 1 over 2 changes: rs = 2, rsi = 100 - 100/3
		{"mixed", []float64{10, 12, 11}, 14, 100 - 100.0/3},
		// period 2 looks only at the last two changes: +1, -3
		{"trailing window", []float64{1, 50, 51, 48}, 2, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.series, tt.period)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("RSI() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("RSI() = %v out of [0,100]", got)
			}
		})
	}

	if _, err := RSI([]float64{1}, 14); err == nil {
		t.Error("RSI with a single value should fail")
	}
	if _, err := RSI([]float64{1, 2}, 0); err == nil {
		t.Error("RSI with period 0 should fail")
	}
}

func TestTrendLabel(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   Trend
	}{
		{"+10%", []float64{100, 90, 110}, StrongUptrend},
		{"+1%", []float64{100, 101}, SlightUptrend},
		{"exactly +5% is slight", []float64{100, 105}, SlightUptrend},
		{"flat", []float64{100, 120, 100}, Neutral},
		{"-1%", []float64{100, 99}, SlightDowntrend},
		{"-10%", []float64{100, 90}, StrongDowntrend},
		{"single value", []float64{42}, Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrendLabel(tt.series)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("TrendLabel() = %s, want %s", got, tt.want)
			}
		})
	}

	_, err := TrendLabel([]float64{0, 10})
	var se *InvalidSeriesError
	if !errors.As(err, &se) || se.Op != "TrendLabel" {
		t.Errorf("TrendLabel(zero base) error = %v, want InvalidSeriesError from TrendLabel", err)
	}
}

func TestTrendLabelMonotonic(t *testing.T) {
	rank := map[Trend]int{
		StrongDowntrend: 0, SlightDowntrend: 1, Neutral: 2, SlightUptrend: 3, StrongUptrend: 4,
	}
	prev := -1
	for pct := -20.0; pct <= 20.0; pct += 0.5 {
		got, err := TrendLabel([]float64{100, 100 + pct})
		if err != nil {
			t.Fatalf("pct %v: %v", pct, err)
		}
		if rank[got] < prev {
			t.Fatalf("TrendLabel not monotonic at %v%%: %s", pct, got)
		}
		prev = rank[got]
	}

	small, _ := TrendLabel([]float64{100, 101})
	if small == StrongUptrend {
		t.Error("+1% must not be a strong uptrend")
	}
}
