package textparse

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ChartAnalysis is a decoded chart extraction: the charts read from a
// document, an optional time series and the model's summary. At least one
// of Charts and TimeBased is set.
type ChartAnalysis struct {
	Charts    []Chart         `json:"charts,omitempty"`
	TimeBased *TimeSeriesData `json:"timeBasedData,omitempty"`
	Summary   ChartSummary    `json:"summary"`
}

// Chart is one chart or graph.
type Chart struct {
	Type       string          `json:"type"`
	Title      string          `json:"title,omitempty"`
	Categories []ChartCategory `json:"categories"`
	// Total is the sum of the category values.
	Total    decimal.Decimal `json:"total"`
	Insights ChartInsights   `json:"insights"`
}

// ChartCategory is one labelled segment of a chart. Percentage is the
// model's figure, or derived from Total when the model gave none.
type ChartCategory struct {
	Label      string          `json:"label"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
	Color      string          `json:"color,omitempty"`
}

type ChartInsights struct {
	LargestSegment      string   `json:"largestSegment,omitempty"`
	SmallestSegment     string   `json:"smallestSegment,omitempty"`
	SignificantPatterns []string `json:"significantPatterns,omitempty"`
}

// TimeSeriesData is a dated series read from a chart.
type TimeSeriesData struct {
	Period     string      `json:"period"`
	DataPoints []DataPoint `json:"dataPoints"`
	Trends     SeriesTrend `json:"trends"`
}

type DataPoint struct {
	Date     civil.Date      `json:"date"`
	Value    decimal.Decimal `json:"value"`
	Category string          `json:"category,omitempty"`
}

// SeriesTrend holds the figures the model reported for the series.
type SeriesTrend struct {
	Highest decimal.NullDecimal `json:"highestValue"`
	Lowest  decimal.NullDecimal `json:"lowestValue"`
	Average decimal.NullDecimal `json:"averageValue"`
	Trend   string              `json:"trend,omitempty"`
}

type ChartSummary struct {
	TotalCharts     int      `json:"totalCharts"`
	MainInsights    []string `json:"mainInsights,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type wireCategory struct {
	Label      looseString      `json:"label"`
	Value      *decimal.Decimal `json:"value"`
	Percentage *decimal.Decimal `json:"percentage"`
	Color      looseString      `json:"color"`
}

type wireChart struct {
	Type       looseString    `json:"type"`
	Title      looseString    `json:"title"`
	Categories []wireCategory `json:"categories"`
	Insights   struct {
		LargestSegment      looseString   `json:"largestSegment"`
		SmallestSegment     looseString   `json:"smallestSegment"`
		SignificantPatterns []looseString `json:"significantPatterns"`
	} `json:"insights"`
}

type wirePoint struct {
	Date     looseString      `json:"date"`
	Value    *decimal.Decimal `json:"value"`
	Category looseString      `json:"category"`
}

type wireChartAnalysis struct {
	Charts        []wireChart `json:"charts"`
	TimeBasedData *struct {
		Period     looseString `json:"period"`
		DataPoints []wirePoint `json:"dataPoints"`
		Trends     struct {
			HighestValue decimal.NullDecimal `json:"highestValue"`
			LowestValue  decimal.NullDecimal `json:"lowestValue"`
			AverageValue decimal.NullDecimal `json:"averageValue"`
			Trend        looseString         `json:"trend"`
		} `json:"trends"`
	} `json:"timeBasedData"`
	Summary struct {
		TotalCharts     int           `json:"totalCharts"`
		MainInsights    []looseString `json:"mainInsights"`
		Recommendations []looseString `json:"recommendations"`
	} `json:"summary"`
}

var hundred = decimal.NewFromInt(100)

// DecodeChart parses text as a chart extraction. Every category needs a
// value and every data point a date and a value; chart totals are
// recomputed from the categories.
func DecodeChart(text string) (*ChartAnalysis, error) {
	obj, err := Parse(text, KindChart)
	if err != nil {
		return nil, err
	}
	var wire wireChartAnalysis
	if err := remarshal(obj, &wire); err != nil {
		return nil, &ParseError{Reason: "chart analysis does not match the expected shape", Err: err}
	}

	out := &ChartAnalysis{
		Summary: ChartSummary{
			TotalCharts:     wire.Summary.TotalCharts,
			MainInsights:    nonEmpty(wire.Summary.MainInsights),
			Recommendations: nonEmpty(wire.Summary.Recommendations),
		},
	}

	for i, wc := range wire.Charts {
		chart := Chart{
			Type:  string(wc.Type),
			Title: string(wc.Title),
			Insights: ChartInsights{
				LargestSegment:      string(wc.Insights.LargestSegment),
				SmallestSegment:     string(wc.Insights.SmallestSegment),
				SignificantPatterns: nonEmpty(wc.Insights.SignificantPatterns),
			},
		}
		for j, c := range wc.Categories {
			if c.Value == nil {
				return nil, missingField(fmt.Sprintf("charts[%d].categories[%d].value", i, j))
			}
			cat := ChartCategory{Label: string(c.Label), Value: *c.Value, Color: string(c.Color)}
			if c.Percentage != nil {
				cat.Percentage = *c.Percentage
			}
			chart.Total = chart.Total.Add(cat.Value)
			chart.Categories = append(chart.Categories, cat)
		}
		if !chart.Total.IsZero() {
			for j, c := range wc.Categories {
				if c.Percentage == nil {
					chart.Categories[j].Percentage = chart.Categories[j].Value.Mul(hundred).Div(chart.Total).Round(2)
				}
			}
		}
		out.Charts = append(out.Charts, chart)
	}

	if tb := wire.TimeBasedData; tb != nil {
		series := &TimeSeriesData{
			Period: string(tb.Period),
			Trends: SeriesTrend{
				Highest: tb.Trends.HighestValue,
				Lowest:  tb.Trends.LowestValue,
				Average: tb.Trends.AverageValue,
				Trend:   string(tb.Trends.Trend),
			},
		}
		for i, p := range tb.DataPoints {
			date, err := ParseDate(string(p.Date))
			if err != nil {
				return nil, badField(fmt.Sprintf("timeBasedData.dataPoints[%d].date", i), "invalid date", err)
			}
			if p.Value == nil {
				return nil, missingField(fmt.Sprintf("timeBasedData.dataPoints[%d].value", i))
			}
			series.DataPoints = append(series.DataPoints, DataPoint{Date: date, Value: *p.Value, Category: string(p.Category)})
		}
		out.TimeBased = series
	}

	if out.Summary.TotalCharts == 0 {
		out.Summary.TotalCharts = len(out.Charts)
	}
	return out, nil
}

func nonEmpty(in []looseString) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, string(s))
		}
	}
	return out
}
