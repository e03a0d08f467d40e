package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// LoadSeries decodes a price series from JSON, either an object
// {"symbol": ..., "bars": [...]} or a bare array of bars.
func LoadSeries(r io.Reader) (domain.PriceSeries, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("LoadSeries: read: %w", err)
	}
	data = bytes.TrimSpace(data)

	var series domain.PriceSeries
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &series.Bars)
	} else {
		err = json.Unmarshal(data, &series)
	}
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("LoadSeries: decode: %w", err)
	}
	return series, nil
}

// LoadSeriesFile reads a series from a JSON file.
func LoadSeriesFile(path string) (domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("LoadSeriesFile: %w", err)
	}
	defer f.Close()
	return LoadSeries(f)
}
