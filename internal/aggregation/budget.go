package aggregation

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Budget statuses reported by CheckBudget.
const (
	OverBudget   = "over_budget"
	WithinBudget = "within_budget"
)

var hundred = decimal.NewFromInt(100)

// BudgetStatus compares spending against a limit. Delta is the overspend
// when over budget and the remaining allowance otherwise.
type BudgetStatus struct {
	Status  string          `json:"status"`
	Spent   decimal.Decimal `json:"spent"`
	Limit   decimal.Decimal `json:"limit"`
	Delta   decimal.Decimal `json:"delta"`
	Message string          `json:"message"`
}

// CheckBudget reports over_budget only when spent strictly exceeds limit.
func CheckBudget(spent, limit decimal.Decimal) BudgetStatus {
	if spent.GreaterThan(limit) {
		delta := spent.Sub(limit)
		return BudgetStatus{
			Status:  OverBudget,
			Spent:   spent,
			Limit:   limit,
			Delta:   delta,
			Message: fmt.Sprintf("exceeded budget limit by %s", delta.StringFixed(2)),
		}
	}
	delta := limit.Sub(spent)
	return BudgetStatus{
		Status:  WithinBudget,
		Spent:   spent,
		Limit:   limit,
		Delta:   delta,
		Message: fmt.Sprintf("within budget, remaining %s", delta.StringFixed(2)),
	}
}

// Percentage returns amount as a percent of total rounded to two places, or
// zero when total is zero.
func Percentage(amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(hundred).Div(total).Round(2)
}

// Share is one group's portion of the combined total.
type Share struct {
	Label   string          `json:"label"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

// Shares converts group totals into percentages of their combined total.
func Shares(groups []GroupTotal) []Share {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Total)
	}
	out := make([]Share, len(groups))
	for i, g := range groups {
		out[i] = Share{Label: g.Label, Amount: g.Total, Percent: Percentage(g.Total, total)}
	}
	return out
}

// ErrNonPositiveContribution is returned by GoalTimeline for a monthly
// contribution of zero or less.
var ErrNonPositiveContribution = errors.New("monthly contribution must be greater than 0")

// GoalPlan says how long a savings goal takes at a fixed monthly contribution.
type GoalPlan struct {
	Remaining      decimal.Decimal `json:"remaining"`
	MonthsRequired int             `json:"monthsRequired"`
	TargetDate     civil.Date      `json:"targetDate"`
}

// GoalTimeline rounds the months needed up to a whole month. A goal already
// met needs zero months.
func GoalTimeline(goal, saved, monthly decimal.Decimal, now time.Time) (GoalPlan, error) {
	if !monthly.IsPositive() {
		return GoalPlan{}, fmt.Errorf("GoalTimeline: %w", ErrNonPositiveContribution)
	}

	remaining := goal.Sub(saved)
	if !remaining.IsPositive() {
		return GoalPlan{Remaining: decimal.Zero, TargetDate: civil.DateOf(now)}, nil
	}

	months := int(remaining.Div(monthly).Ceil().IntPart())
	return GoalPlan{
		Remaining:      remaining,
		MonthsRequired: months,
		TargetDate:     civil.DateOf(now.AddDate(0, months, 0)),
	}, nil
}

// Discrepancy is one overview figure on which a reported summary disagrees
// with the recomputed one.
type Discrepancy struct {
	Field    string          `json:"field"`
	Reported decimal.Decimal `json:"reported"`
	Computed decimal.Decimal `json:"computed"`
}

// CompareOverview lists the figures where reported differs from computed.
func CompareOverview(reported, computed Overview) []Discrepancy {
	var out []Discrepancy
	check := func(field string, r, c decimal.Decimal) {
		if !r.Equal(c) {
			out = append(out, Discrepancy{Field: field, Reported: r, Computed: c})
		}
	}
	check("totalCredit", reported.TotalCredit, computed.TotalCredit)
	check("totalDebit", reported.TotalDebit, computed.TotalDebit)
	check("netBalance", reported.NetBalance, computed.NetBalance)
	check("totalTransactions",
		decimal.NewFromInt(int64(reported.TotalTransactions)),
		decimal.NewFromInt(int64(computed.TotalTransactions)))
	return out
}
