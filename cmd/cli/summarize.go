package main

import (
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-analyzer/internal/aggregation"
	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/domain"
)

type summarizeOutput struct {
	aggregation.Summary
	CategoryShares []aggregation.Share       `json:"categoryShares"`
	Budget         *aggregation.BudgetStatus `json:"budget,omitempty"`
	Records        []domain.MonetaryRecord   `json:"records,omitempty"`
}

func runSummarize(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	startFlag := fs.String("start", "", "First date (YYYY-MM-DD)")
	endFlag := fs.String("end", "", "Last date (YYYY-MM-DD); defaults to today")
	sortFlag := fs.String("sort", string(aggregation.DateDesc), "Record order: date-asc, date-desc, amount-asc, amount-desc")
	category := fs.String("category", "", "Only records in this category")
	paymentMode := fs.String("payment-mode", "", "Only records with this payment mode")
	direction := fs.String("direction", "", "Only CREDIT or DEBIT records")
	budget := fs.String("budget", "", "Spending limit to check total debits against")
	withRecords := fs.Bool("records", false, "Include the sorted records in the output")
	fs.Parse(args)

	start := parseDateFlag(log, "start", *startFlag, civil.Date{})
	end := parseDateFlag(log, "end", *endFlag, civil.DateOf(time.Now()))
	order, err := aggregation.ParseSortOrder(*sortFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -sort")
	}

	filter := aggregation.Filter{Category: *category, PaymentMode: *paymentMode}
	if *direction != "" {
		if filter.Direction, err = domain.ParseDirection(*direction); err != nil {
			log.Fatal().Err(err).Msg("Invalid -direction")
		}
	}

	ctx := commandContext(log)
	repo, err := f.Repository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	records, err := repo.QueryRecords(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	base := aggregation.Sort(filter.Apply(domain.Bases(records)), order)
	out := summarizeOutput{Summary: aggregation.Summarize(base)}
	out.CategoryShares = aggregation.Shares(out.ByCategory)
	if *budget != "" {
		limit, err := decimal.NewFromString(*budget)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -budget")
		}
		status := aggregation.CheckBudget(out.Overview.TotalDebit, limit)
		out.Budget = &status
	}
	if *withRecords {
		out.Records = base
	}
	printJSON(log, out)
}

func runGoal(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("goal", flag.ExitOnError)
	goalFlag := fs.String("goal", "", "Savings target")
	savedFlag := fs.String("saved", "0", "Amount already saved")
	monthlyFlag := fs.String("monthly", "", "Monthly contribution")
	fs.Parse(args)

	amounts := make([]decimal.Decimal, 3)
	for i, v := range []struct{ name, value string }{
		{"goal", *goalFlag}, {"saved", *savedFlag}, {"monthly", *monthlyFlag},
	} {
		d, err := decimal.NewFromString(v.value)
		if err != nil {
			log.Fatal().Err(err).Msgf("Error: -%s must be a number", v.name)
		}
		amounts[i] = d
	}

	plan, err := aggregation.GoalTimeline(amounts[0], amounts[1], amounts[2], time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot plan goal")
	}
	fmt.Printf("Remaining %s: %d months, reached by %s.\n", plan.Remaining, plan.MonthsRequired, plan.TargetDate)
}
