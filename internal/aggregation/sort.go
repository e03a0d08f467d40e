package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// SortOrder selects how Sort orders a record list.
type SortOrder string

const (
	DateAsc    SortOrder = "date-asc"
	DateDesc   SortOrder = "date-desc"
	AmountAsc  SortOrder = "amount-asc"
	AmountDesc SortOrder = "amount-desc"
)

// ParseSortOrder accepts the four order names, case-insensitively.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case DateAsc, DateDesc, AmountAsc, AmountDesc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q: want date-asc, date-desc, amount-asc or amount-desc", s)
}

// Sort returns a sorted copy of records. Ties keep their input order. Date
// orders compare the optional clock time too.
func Sort(records []domain.MonetaryRecord, order SortOrder) []domain.MonetaryRecord {
	out := append([]domain.MonetaryRecord(nil), records...)

	var less func(a, b domain.MonetaryRecord) bool
	switch order {
	case DateDesc:
		less = func(a, b domain.MonetaryRecord) bool { return a.Timestamp().After(b.Timestamp()) }
	case AmountAsc:
		less = func(a, b domain.MonetaryRecord) bool { return a.Amount.LessThan(b.Amount) }
	case AmountDesc:
		less = func(a, b domain.MonetaryRecord) bool { return a.Amount.GreaterThan(b.Amount) }
	default:
		less = func(a, b domain.MonetaryRecord) bool { return a.Timestamp().Before(b.Timestamp()) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Filter narrows a record collection before aggregation. Zero fields match
// everything; Category and PaymentMode compare case-insensitively.
type Filter struct {
	From        civil.Date
	To          civil.Date
	Category    string
	PaymentMode string
	Direction   domain.Direction
}

// Apply returns the records that match f, preserving order.
func (f Filter) Apply(records []domain.MonetaryRecord) []domain.MonetaryRecord {
	var out []domain.MonetaryRecord
	for _, r := range records {
		if f.From.IsValid() && r.Date.Before(f.From) {
			continue
		}
		if f.To.IsValid() && r.Date.After(f.To) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(f.Category, r.Category) {
			continue
		}
		if f.PaymentMode != "" && !strings.EqualFold(f.PaymentMode, r.PaymentMode) {
			continue
		}
		if f.Direction != "" && f.Direction != r.Direction {
			continue
		}
		out = append(out, r)
	}
	return out
}
