package textparse

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Keys whose string values are coerced to numbers wherever they appear.
var numericFields = map[string]bool{
	"amount":       true,
	"total":        true,
	"totalCredit":  true,
	"totalDebit":   true,
	"netAmount":    true,
	"netBalance":   true,
	"balance":      true,
	"tax":          true,
	"subtotal":     true,
	"price":        true,
	"value":        true,
	"percentage":   true,
	"highestValue": true,
	"lowestValue":  true,
	"averageValue": true,
}

// Keys holding counts. Their strings must be whole numbers.
var countFields = map[string]bool{
	"transactionCount":  true,
	"totalTransactions": true,
	"totalCharts":       true,
}

// Keys whose string values are trimmed.
var textFields = map[string]bool{
	"category":    true,
	"paymentMode": true,
	"description": true,
	"vendor":      true,
	"name":        true,
}

var (
	numberPattern   = regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?|[-+]?\.\d+`)
	currencyPattern = regexp.MustCompile(`(?i)rs\.?|inr|usd|eur|gbp|[₹$€£]`)
)

var errNotNumeric = errors.New("not a numeric value")

// Normalize walks obj in place: numeric-looking strings under numeric and
// count keys become json.Number with currency symbols and thousands
// separators removed, and free-text fields are trimmed. Empty numeric
// strings become null.
func Normalize(obj map[string]any) error {
	return normalizeValue("", obj)
}

func normalizeValue(path string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			childPath := joinPath(path, key)
			if s, ok := child.(string); ok {
				switch {
				case numericFields[key]:
					n, err := NormalizeNumber(s)
					if errors.Is(err, errEmptyNumber) {
						val[key] = nil
						continue
					}
					if err != nil {
						return badField(childPath, "invalid number "+strconv.Quote(s), err)
					}
					val[key] = n
				case countFields[key]:
					n, err := normalizeCount(s)
					if errors.Is(err, errEmptyNumber) {
						val[key] = nil
						continue
					}
					if err != nil {
						return badField(childPath, "invalid count "+strconv.Quote(s), err)
					}
					val[key] = n
				case textFields[key]:
					val[key] = strings.TrimSpace(s)
				}
				continue
			}
			if err := normalizeValue(childPath, child); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range val {
			if err := normalizeValue(indexPath(path, i), child); err != nil {
				return err
			}
		}
	}
	return nil
}

var errEmptyNumber = errors.New("empty numeric value")

// NormalizeNumber strips currency symbols, codes and thousands separators
// from s and returns the plain decimal, e.g. "₹1,234.50" -> 1234.50.
func NormalizeNumber(s string) (json.Number, error) {
	trimmed := strings.TrimSpace(currencyPattern.ReplaceAllString(s, " "))
	if trimmed == "" {
		if strings.TrimSpace(s) == "" {
			return "", errEmptyNumber
		}
		return "", errNotNumeric
	}

	loc := numberPattern.FindStringIndex(trimmed)
	if loc == nil {
		return "", errNotNumeric
	}
	// Only one number may be present.
	if numberPattern.MatchString(trimmed[loc[1]:]) {
		return "", errNotNumeric
	}

	digits := strings.TrimPrefix(strings.ReplaceAll(trimmed[loc[0]:loc[1]], ",", ""), "+")
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return "", err
	}
	// "-$5" style prefixes put the sign before the symbol.
	if strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(digits, "-") {
		d = d.Neg()
	}
	return json.Number(d.String()), nil
}

// normalizeCount is NormalizeNumber restricted to whole numbers.
func normalizeCount(s string) (json.Number, error) {
	n, err := NormalizeNumber(s)
	if err != nil {
		return "", err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", errNotNumeric
	}
	return n, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
