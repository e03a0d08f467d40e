package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// PriceBar is one OHLCV observation for a symbol.
type PriceBar struct {
	Date   civil.Date `json:"date" bigquery:"bar_date"`
	Open   float64    `json:"open" bigquery:"open"`
	High   float64    `json:"high" bigquery:"high"`
	Low    float64    `json:"low" bigquery:"low"`
	Close  float64    `json:"close" bigquery:"close"`
	Volume int64      `json:"volume" bigquery:"volume"`
}

// PriceSeries is a time-ordered run of bars. Gaps between dates are allowed.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// Closes returns the closing prices in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Validate checks that dates never decrease and prices are non-negative.
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if !b.Date.IsValid() {
			return invalid("date", b.Date.String(), fmt.Sprintf("bar %d is not a calendar date", i))
		}
		if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
			return invalid("price", fmt.Sprintf("%g", b.Close), fmt.Sprintf("bar %d has a negative price", i))
		}
		if b.Volume < 0 {
			return invalid("volume", fmt.Sprintf("%d", b.Volume), fmt.Sprintf("bar %d has a negative volume", i))
		}
		if i > 0 && b.Date.Before(s.Bars[i-1].Date) {
			return invalid("date", b.Date.String(), fmt.Sprintf("bar %d is earlier than bar %d", i, i-1))
		}
	}
	return nil
}
