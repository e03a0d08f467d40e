package aggregation

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

func day(d int) civil.Date { return civil.Date{Year: 2025, Month: 1, Day: d} }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rec(d int, amount string, dir domain.Direction, category, mode string) domain.MonetaryRecord {
	return domain.MonetaryRecord{
		Date:        day(d),
		Direction:   dir,
		Amount:      dec(amount),
		Category:    category,
		PaymentMode: mode,
	}
}

func TestSummarize_OverviewAndDaily(t *testing.T) {
	records := []domain.MonetaryRecord{
		rec(1, "100", domain.Credit, "Salary", "UPI"),
		rec(1, "40", domain.Debit, "Food", "Card"),
		rec(2, "30", domain.Debit, "Transport", "UPI"),
	}

	s := Summarize(records)

	o := s.Overview
	if !o.TotalCredit.Equal(dec("100")) || !o.TotalDebit.Equal(dec("70")) ||
		!o.NetBalance.Equal(dec("30")) || o.TotalTransactions != 3 {
		t.Errorf("Overview = %+v, want credit 100 debit 70 net 30 count 3", o)
	}

	if len(s.Daily) != 2 {
		t.Fatalf("len(Daily) = %d, want 2", len(s.Daily))
	}
	first := s.Daily[0]
	if first.Date != day(1) || !first.TotalCredit.Equal(dec("100")) || !first.TotalDebit.Equal(dec("40")) ||
		!first.NetAmount.Equal(dec("60")) || first.TransactionCount != 2 {
		t.Errorf("Daily[0] = %+v, want 2025-01-01 credit 100 debit 40 net 60 count 2", first)
	}
	second := s.Daily[1]
	if second.Date != day(2) || !second.NetAmount.Equal(dec("-30")) || second.TransactionCount != 1 {
		t.Errorf("Daily[1] = %+v", second)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Overview.TotalTransactions != 0 || !s.Overview.NetBalance.IsZero() {
		t.Errorf("Overview = %+v, want zero", s.Overview)
	}
	if len(s.Daily) != 0 || len(s.ByCategory) != 0 || len(s.ByPaymentMode) != 0 {
		t.Errorf("expected empty breakdowns, got %+v", s)
	}
}

func TestGroupBy_EmptyLabelKept(t *testing.T) {
	records := []domain.MonetaryRecord{
		rec(1, "10", domain.Debit, "Food", ""),
		rec(1, "5", domain.Debit, "", ""),
		rec(2, "20", domain.Credit, "Refund", "Card"),
		rec(3, "7.50", domain.Debit, "Food", "Card"),
	}

	s := Summarize(records)

	wantCats := []struct {
		label string
		count int
		total string
	}{
		{"", 1, "5"},
		{"Food", 2, "17.50"},
		{"Refund", 1, "20"},
	}
	if len(s.ByCategory) != len(wantCats) {
		t.Fatalf("ByCategory = %+v", s.ByCategory)
	}
	for i, w := range wantCats {
		g := s.ByCategory[i]
		if g.Label != w.label || g.Count != w.count || !g.Total.Equal(dec(w.total)) {
			t.Errorf("ByCategory[%d] = %+v, want %+v", i, g, w)
		}
	}

	if len(s.ByPaymentMode) != 2 || s.ByPaymentMode[0].Label != "" || s.ByPaymentMode[0].Count != 2 {
		t.Errorf("ByPaymentMode = %+v", s.ByPaymentMode)
	}
	card := s.ByPaymentMode[1]
	if !card.Credit.Equal(dec("20")) || !card.Debit.Equal(dec("7.5")) || !card.Net().Equal(dec("12.5")) {
		t.Errorf("Card group = %+v", card)
	}
}

func TestSort(t *testing.T) {
	morning := civil.Time{Hour: 9}
	evening := civil.Time{Hour: 21}

	a := rec(2, "50", domain.Debit, "Food", "")
	a.Description = "a"
	b := rec(1, "50", domain.Debit, "Food", "")
	b.Description = "b"
	c := rec(2, "10", domain.Debit, "Food", "")
	c.Description = "c"
	c.Time = &evening
	d := rec(2, "90", domain.Debit, "Food", "")
	d.Description = "d"
	d.Time = &morning

	records := []domain.MonetaryRecord{a, b, c, d}

	tests := []struct {
		order SortOrder
		want  string
	}{
		{DateAsc, "badc"},
		{DateDesc, "cdab"},
		{AmountAsc, "cabd"},
		{AmountDesc, "dabc"},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got := ""
			for _, r := range Sort(records, tt.order) {
				got += r.Description
			}
			if got != tt.want {
				t.Errorf("Sort(%s) = %s, want %s", tt.order, got, tt.want)
			}
		})
	}

	if records[0].Description != "a" {
		t.Error("Sort must not reorder its input")
	}
}

func TestParseSortOrder(t *testing.T) {
	if o, err := ParseSortOrder("Date-Desc"); err != nil || o != DateDesc {
		t.Errorf("ParseSortOrder() = %q, %v", o, err)
	}
	if _, err := ParseSortOrder("random"); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestFilter(t *testing.T) {
	records := []domain.MonetaryRecord{
		rec(1, "10", domain.Debit, "Food", "UPI"),
		rec(5, "20", domain.Debit, "Food", "Card"),
		rec(9, "30", domain.Credit, "Salary", "UPI"),
	}

	got := Filter{From: day(2), To: day(9)}.Apply(records)
	if len(got) != 2 {
		t.Errorf("date filter kept %d records, want 2", len(got))
	}
	got = Filter{Category: "food", PaymentMode: "upi"}.Apply(records)
	if len(got) != 1 || !got[0].Amount.Equal(dec("10")) {
		t.Errorf("category/mode filter = %+v", got)
	}
	got = Filter{Direction: domain.Credit}.Apply(records)
	if len(got) != 1 {
		t.Errorf("direction filter kept %d, want 1", len(got))
	}
}

func TestCheckBudget(t *testing.T) {
	over := CheckBudget(dec("120"), dec("100"))
	if over.Status != OverBudget || !over.Delta.Equal(dec("20")) {
		t.Errorf("CheckBudget(120,100) = %+v", over)
	}
	exact := CheckBudget(dec("100"), dec("100"))
	if exact.Status != WithinBudget || !exact.Delta.IsZero() {
		t.Errorf("CheckBudget(100,100) = %+v", exact)
	}
}

func TestShares(t *testing.T) {
	groups := []GroupTotal{
		{Label: "Food", Total: dec("25")},
		{Label: "Rent", Total: dec("75")},
	}
	shares := Shares(groups)
	if !shares[0].Percent.Equal(dec("25")) || !shares[1].Percent.Equal(dec("75")) {
		t.Errorf("Shares() = %+v", shares)
	}
	if p := Percentage(dec("5"), decimal.Zero); !p.IsZero() {
		t.Errorf("Percentage(5, 0) = %s, want 0", p)
	}
	if p := Percentage(dec("1"), dec("3")); !p.Equal(dec("33.33")) {
		t.Errorf("Percentage(1, 3) = %s, want 33.33", p)
	}
}

func TestGoalTimeline(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	plan, err := GoalTimeline(dec("1000"), dec("250"), dec("100"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.MonthsRequired != 8 {
		t.Errorf("MonthsRequired = %d, want 8", plan.MonthsRequired)
	}
	if want := (civil.Date{Year: 2025, Month: 9, Day: 15}); plan.TargetDate != want {
		t.Errorf("TargetDate = %s, want %s", plan.TargetDate, want)
	}

	met, err := GoalTimeline(dec("100"), dec("150"), dec("10"), now)
	if err != nil || met.MonthsRequired != 0 {
		t.Errorf("GoalTimeline(met) = %+v, %v", met, err)
	}

	_, err = GoalTimeline(dec("100"), dec("0"), decimal.Zero, now)
	if !errors.Is(err, ErrNonPositiveContribution) {
		t.Errorf("GoalTimeline(0 monthly) error = %v", err)
	}
}

func TestCompareOverview(t *testing.T) {
	computed := Overview{TotalCredit: dec("100"), TotalDebit: dec("70"), NetBalance: dec("30"), TotalTransactions: 3}
	if d := CompareOverview(computed, computed); len(d) != 0 {
		t.Errorf("identical overviews reported %v", d)
	}

	reported := computed
	reported.TotalDebit = dec("75")
	reported.TotalTransactions = 4
	d := CompareOverview(reported, computed)
	if len(d) != 2 || d[0].Field != "totalDebit" || d[1].Field != "totalTransactions" {
		t.Errorf("CompareOverview() = %+v", d)
	}
}
