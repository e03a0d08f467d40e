// Package aggregation reduces collections of monetary records into overview,
// per-day, per-category and per-payment-mode totals. Filtering happens
// before aggregation and is the caller's job; Filter is provided for that.
package aggregation

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// Overview aggregates an entire record collection.
type Overview struct {
	TotalCredit       decimal.Decimal `json:"totalCredit"`
	TotalDebit        decimal.Decimal `json:"totalDebit"`
	NetBalance        decimal.Decimal `json:"netBalance"`
	TotalTransactions int             `json:"totalTransactions"`
}

// DailySummary aggregates the records of one calendar date. It is always
// derived from its source collection and never stored on its own.
type DailySummary struct {
	Date             civil.Date      `json:"date"`
	TotalCredit      decimal.Decimal `json:"totalCredit"`
	TotalDebit       decimal.Decimal `json:"totalDebit"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	TransactionCount int             `json:"transactionCount"`
}

// GroupTotal aggregates the records sharing one label. Total is the gross sum
// of amounts regardless of direction.
type GroupTotal struct {
	Label  string          `json:"label"`
	Count  int             `json:"count"`
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
	Total  decimal.Decimal `json:"total"`
}

// Net is credit minus debit for the group.
func (g GroupTotal) Net() decimal.Decimal {
	return g.Credit.Sub(g.Debit)
}

// Summary is the full breakdown of a record collection.
type Summary struct {
	Overview      Overview       `json:"overview"`
	Daily         []DailySummary `json:"dailySummary"`
	ByCategory    []GroupTotal   `json:"byCategory"`
	ByPaymentMode []GroupTotal   `json:"byPaymentMode"`
}

// Summarize computes every breakdown in one call.
func Summarize(records []domain.MonetaryRecord) Summary {
	return Summary{
		Overview:      ComputeOverview(records),
		Daily:         Daily(records),
		ByCategory:    GroupBy(records, func(r domain.MonetaryRecord) string { return r.Category }),
		ByPaymentMode: GroupBy(records, func(r domain.MonetaryRecord) string { return r.PaymentMode }),
	}
}

// ComputeOverview sums credits and debits independently.
func ComputeOverview(records []domain.MonetaryRecord) Overview {
	var o Overview
	for _, r := range records {
		switch r.Direction {
		case domain.Credit:
			o.TotalCredit = o.TotalCredit.Add(r.Amount)
		case domain.Debit:
			o.TotalDebit = o.TotalDebit.Add(r.Amount)
		}
	}
	o.NetBalance = o.TotalCredit.Sub(o.TotalDebit)
	o.TotalTransactions = len(records)
	return o
}

// Daily returns one summary per distinct date, in ascending date order.
func Daily(records []domain.MonetaryRecord) []DailySummary {
	byDate := make(map[civil.Date]*DailySummary)
	for _, r := range records {
		day, ok := byDate[r.Date]
		if !ok {
			day = &DailySummary{Date: r.Date}
			byDate[r.Date] = day
		}
		switch r.Direction {
		case domain.Credit:
			day.TotalCredit = day.TotalCredit.Add(r.Amount)
		case domain.Debit:
			day.TotalDebit = day.TotalDebit.Add(r.Amount)
		}
		day.TransactionCount++
	}

	out := make([]DailySummary, 0, len(byDate))
	for _, day := range byDate {
		day.NetAmount = day.TotalCredit.Sub(day.TotalDebit)
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// GroupBy totals records per label, taking labels verbatim. Records with an
// empty label form their own group. Groups are sorted by label.
func GroupBy(records []domain.MonetaryRecord, label func(domain.MonetaryRecord) string) []GroupTotal {
	groups := make(map[string]*GroupTotal)
	for _, r := range records {
		key := label(r)
		g, ok := groups[key]
		if !ok {
			g = &GroupTotal{Label: key}
			groups[key] = g
		}
		g.Count++
		g.Total = g.Total.Add(r.Amount)
		switch r.Direction {
		case domain.Credit:
			g.Credit = g.Credit.Add(r.Amount)
		case domain.Debit:
			g.Debit = g.Debit.Add(r.Amount)
		}
	}

	out := make([]GroupTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
