// Package stats holds the numeric helpers shared by the analysis engine:
// mean, population standard deviation, simple moving averages, RSI and a
// five-level trend label. All functions are pure and safe for concurrent use.
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptySeries is wrapped by InvalidSeriesError when an operation receives
// no values.
var ErrEmptySeries = errors.New("empty series")

// DefaultRSIPeriod is the look-back used when callers do not pick one.
const DefaultRSIPeriod = 14

// InvalidSeriesError reports a numeric operation invoked on an unusable series.
type InvalidSeriesError struct {
	Op     string
	Reason string
	Err    error
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("%s: invalid series: %s", e.Op, e.Reason)
}

func (e *InvalidSeriesError) Unwrap() error { return e.Err }

func emptySeries(op string) error {
	return &InvalidSeriesError{Op: op, Reason: ErrEmptySeries.Error(), Err: ErrEmptySeries}
}

// Trend is the five-level classification of first-to-last percent change.
type Trend string

const (
	StrongUptrend   Trend = "STRONG_UPTREND"
	SlightUptrend   Trend = "SLIGHT_UPTREND"
	Neutral         Trend = "NEUTRAL"
	SlightDowntrend Trend = "SLIGHT_DOWNTREND"
	StrongDowntrend Trend = "STRONG_DOWNTREND"
)

// strongTrendPct is the percent change beyond which a trend is strong.
const strongTrendPct = 5.0

// Average returns the arithmetic mean.
func Average(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, emptySeries("Average")
	}
	return mean(series), nil
}

// Volatility returns the population standard deviation of the values
// themselves, not of their period returns.
func Volatility(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, emptySeries("Volatility")
	}
	m := mean(series)
	var sq float64
	for _, v := range series {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(series))), nil
}

// SimpleMovingAverage returns the trailing mean for every index i >= window-1.
// The result has len(series)-window+1 values, or none when window exceeds the
// series length.
func SimpleMovingAverage(series []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, &InvalidSeriesError{Op: "SimpleMovingAverage", Reason: fmt.Sprintf("window %d must be at least 1", window)}
	}
	if len(series) == 0 {
		return nil, emptySeries("SimpleMovingAverage")
	}
	if window > len(series) {
		return []float64{}, nil
	}

	out := make([]float64, 0, len(series)-window+1)
	var sum float64
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out, nil
}

// LatestSMA returns the last SMA value for window and false when the series
// is too short to produce one.
func LatestSMA(series []float64, window int) (float64, bool, error) {
	sma, err := SimpleMovingAverage(series, window)
	if err != nil {
		return 0, false, err
	}
	if len(sma) == 0 {
		return 0, false, nil
	}
	return sma[len(sma)-1], true, nil
}

// RSI averages the trailing period gains and losses and returns
// 100 - 100/(1+avgGain/avgLoss). Shorter series use every available change.
//
// Zero average loss: 100 when there was any gain, 50 for a flat series.
func RSI(series []float64, period int) (float64, error) {
	if len(series) == 0 {
		return 0, emptySeries("RSI")
	}
	if period < 1 {
		return 0, &InvalidSeriesError{Op: "RSI", Reason: fmt.Sprintf("period %d must be at least 1", period)}
	}
	if len(series) < 2 {
		return 0, &InvalidSeriesError{Op: "RSI", Reason: "need at least two values"}
	}

	n := period
	if changes := len(series) - 1; changes < n {
		n = changes
	}

	var gains, losses float64
	for i := len(series) - n; i < len(series); i++ {
		change := series[i] - series[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(n)
	avgLoss := losses / float64(n)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// PercentChange returns the change from the first to the last value in percent.
func PercentChange(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, emptySeries("PercentChange")
	}
	first := series[0]
	if first == 0 {
		return 0, &InvalidSeriesError{Op: "PercentChange", Reason: "zero base value"}
	}
	return (series[len(series)-1] - first) * 100 / first, nil
}

// TrendLabel classifies the first-to-last percent change: beyond +5% is a
// strong uptrend, any gain a slight one, and symmetrically for losses.
func TrendLabel(series []float64) (Trend, error) {
	pct, err := PercentChange(series)
	if err != nil {
		var se *InvalidSeriesError
		if errors.As(err, &se) {
			se.Op = "TrendLabel"
		}
		return "", err
	}
	return trendFor(pct), nil
}

func trendFor(pct float64) Trend {
	switch {
	case pct > strongTrendPct:
		return StrongUptrend
	case pct > 0:
		return SlightUptrend
	case pct < -strongTrendPct:
		return StrongDowntrend
	case pct < 0:
		return SlightDowntrend
	default:
		return Neutral
	}
}

// Last returns the final value of the series.
func Last(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, emptySeries("Last")
	}
	return series[len(series)-1], nil
}

func mean(series []float64) float64 {
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}
