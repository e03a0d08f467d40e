package domain

import (
	"sort"
	"strings"
)

// Income categories accepted on CREDIT records.
var IncomeCategories = []string{
	"Salary",
	"Freelance",
	"Business",
	"Investment",
	"Interest",
	"Rental",
	"Refund",
	"Gift",
	"Transfer",
	"Other",
}

// Expense categories accepted on DEBIT records.
var ExpenseCategories = []string{
	"Food",
	"Groceries",
	"Transport",
	"Shopping",
	"Bills",
	"Utilities",
	"Rent",
	"Entertainment",
	"Health",
	"Education",
	"Travel",
	"Loan",
	"Insurance",
	"Transfer",
	"Other",
}

// CategorySet is a closed set of category labels, matched case-insensitively
// and returned in their canonical spelling.
type CategorySet struct {
	name   string
	labels map[string]string
}

// NewCategorySet builds a set from canonical labels.
func NewCategorySet(name string, labels []string) CategorySet {
	set := CategorySet{name: name, labels: make(map[string]string, len(labels))}
	for _, l := range labels {
		set.labels[normalizeCategory(l)] = l
	}
	return set
}

var (
	incomeSet  = NewCategorySet("income", IncomeCategories)
	expenseSet = NewCategorySet("expense", ExpenseCategories)
)

// Canonical returns the canonical label for category or a ValidationError
// when the label is not part of the set.
func (s CategorySet) Canonical(category string) (string, error) {
	trimmed := strings.TrimSpace(category)
	if trimmed == "" {
		return "", invalid("category", "", "empty "+s.name+" category")
	}
	label, ok := s.labels[normalizeCategory(trimmed)]
	if !ok {
		return "", invalid("category", trimmed, "not a valid "+s.name+" category")
	}
	return label, nil
}

// Labels returns the canonical labels sorted alphabetically.
func (s CategorySet) Labels() []string {
	out := make([]string, 0, len(s.labels))
	for _, l := range s.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// CategoriesFor returns the closed set that applies to records of direction d.
func CategoriesFor(d Direction) CategorySet {
	if d == Credit {
		return incomeSet
	}
	return expenseSet
}

// normalizeCategory uppercases and trims for case-insensitive comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
