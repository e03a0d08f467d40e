package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// QueryPriceBarsWithClient loads the OHLCV bars of symbol dated within
// [startDate, endDate], oldest first.
func QueryPriceBarsWithClient(ctx context.Context, client *bigquery.Client, dataset, symbol string, startDate, endDate civil.Date) (domain.PriceSeries, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT bar_date, open, high, low, close, volume
		FROM %s
		WHERE symbol = @symbol
		  AND bar_date >= @start_date
		  AND bar_date <= @end_date
		ORDER BY bar_date
	`, tableRef(client, dataset, priceBarsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "symbol", Value: symbol},
		{Name: "start_date", Value: startDate},
		{Name: "end_date", Value: endDate},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("QueryPriceBars: query read: %w", err)
	}

	series := domain.PriceSeries{Symbol: symbol}
	for {
		var bar domain.PriceBar
		err := it.Next(&bar)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return domain.PriceSeries{}, fmt.Errorf("QueryPriceBars: iter next: %w", err)
		}
		series.Bars = append(series.Bars, bar)
	}

	return series, nil
}
