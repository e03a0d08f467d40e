// Package analysis derives a technical snapshot and a recommendation from a
// price series. Snapshots are recomputed on every call and never cached.
package analysis

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/stats"
)

// Recommendation is the discrete trade signal of a snapshot.
type Recommendation string

const (
	StrongBuy  Recommendation = "STRONG_BUY"
	Buy        Recommendation = "BUY"
	Hold       Recommendation = "HOLD"
	Sell       Recommendation = "SELL"
	StrongSell Recommendation = "STRONG_SELL"
)

// Options selects the indicator windows. Zero values select the defaults.
type Options struct {
	SMAWindows []int
	RSIPeriod  int

	// FastWindow and SlowWindow are the averages the recommendation compares
	// the last close against.
	FastWindow int
	SlowWindow int
}

// DefaultOptions returns SMA20/SMA50 with a 14-period RSI.
func DefaultOptions() Options {
	return Options{
		SMAWindows: []int{20, 50},
		RSIPeriod:  stats.DefaultRSIPeriod,
		FastWindow: 20,
		SlowWindow: 50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.SMAWindows) == 0 {
		o.SMAWindows = d.SMAWindows
	}
	if o.RSIPeriod <= 0 {
		o.RSIPeriod = d.RSIPeriod
	}
	if o.FastWindow <= 0 {
		o.FastWindow = d.FastWindow
	}
	if o.SlowWindow <= 0 {
		o.SlowWindow = d.SlowWindow
	}
	return o
}

// Snapshot is the technical picture of a series at its last bar. SMA holds
// only the windows the series was long enough for; RSI is nil for a single
// bar.
type Snapshot struct {
	Symbol         string          `json:"symbol,omitempty"`
	AsOf           civil.Date      `json:"asOf"`
	Points         int             `json:"points"`
	LastClose      float64         `json:"lastClose"`
	SMA            map[int]float64 `json:"sma"`
	Volatility     float64         `json:"volatility"`
	RSI            *float64        `json:"rsi,omitempty"`
	Trend          stats.Trend     `json:"trend"`
	Recommendation Recommendation  `json:"recommendation"`
}

// Analyze computes the snapshot of series over its closing prices.
func Analyze(series domain.PriceSeries, opts Options) (*Snapshot, error) {
	opts = opts.withDefaults()

	if len(series.Bars) == 0 {
		return nil, &stats.InvalidSeriesError{Op: "Analyze", Reason: "empty series", Err: stats.ErrEmptySeries}
	}
	if err := series.Validate(); err != nil {
		return nil, &stats.InvalidSeriesError{Op: "Analyze", Reason: "invalid price series", Err: err}
	}

	closes := series.Closes()
	last := closes[len(closes)-1]
	snap := &Snapshot{
		Symbol:    series.Symbol,
		AsOf:      series.Bars[len(series.Bars)-1].Date,
		Points:    len(closes),
		LastClose: last,
		SMA:       make(map[int]float64),
	}

	for _, w := range windows(opts) {
		v, ok, err := stats.LatestSMA(closes, w)
		if err != nil {
			return nil, fmt.Errorf("Analyze: %w", err)
		}
		if ok {
			snap.SMA[w] = v
		}
	}

	vol, err := stats.Volatility(closes)
	if err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}
	snap.Volatility = vol

	if len(closes) >= 2 {
		rsi, err := stats.RSI(closes, opts.RSIPeriod)
		if err != nil {
			return nil, fmt.Errorf("Analyze: %w", err)
		}
		snap.RSI = &rsi
	}

	if snap.Trend, err = stats.TrendLabel(closes); err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}

	fast, hasFast := snap.SMA[opts.FastWindow]
	slow, hasSlow := snap.SMA[opts.SlowWindow]
	switch {
	case !hasFast:
		snap.Recommendation = Hold
	case !hasSlow:
		snap.Recommendation = Recommend(last, fast, fast)
	default:
		snap.Recommendation = Recommend(last, fast, slow)
	}
	return snap, nil
}

// Recommend applies the precedence rule: price above a rising average stack
// is a strong buy, above the fast average a buy, and symmetrically for sells.
func Recommend(price, fast, slow float64) Recommendation {
	switch {
	case price > fast && fast > slow:
		return StrongBuy
	case price > fast:
		return Buy
	case price < fast && fast < slow:
		return StrongSell
	case price < fast:
		return Sell
	default:
		return Hold
	}
}

func windows(opts Options) []int {
	seen := map[int]bool{}
	var out []int
	for _, w := range append(append([]int(nil), opts.SMAWindows...), opts.FastWindow, opts.SlowWindow) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out
}
