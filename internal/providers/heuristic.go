package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

var (
	receiptDatePattern  = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}`)
	receiptTotalPattern = regexp.MustCompile(`(?i)\btotal\b[:\s]*(?:rs\.?|inr|₹|\$)?\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	receiptPricePattern = regexp.MustCompile(`(?i)(?:rs\.?|inr|₹|\$)?\s*(\d[\d,]*\.\d{2}|\d[\d,]*)\s*$`)
)

// Keyword hints used to pick an expense category from receipt text.
var receiptCategoryHints = []struct {
	category string
	keywords []string
}{
	{"Groceries", []string{"mart", "grocery", "supermarket", "bazaar", "milk", "bread", "vegetable"}},
	{"Food", []string{"restaurant", "cafe", "coffee", "pizza", "burger", "kitchen", "dine"}},
	{"Transport", []string{"fuel", "petrol", "diesel", "uber", "taxi", "metro", "parking"}},
	{"Health", []string{"pharmacy", "chemist", "clinic", "hospital", "medical"}},
	{"Utilities", []string{"electricity", "water bill", "gas bill", "broadband"}},
	{"Shopping", []string{"store", "fashion", "apparel", "electronics"}},
}

// HeuristicReceipt reads OCR text of a receipt without any model: vendor is
// the first line, date the first date-like token, amount the last "total"
// line and items the remaining priced lines. It never rate limits.
type HeuristicReceipt struct {
	now func() time.Time
}

// NewHeuristicReceipt returns the offline receipt reader.
func NewHeuristicReceipt() *HeuristicReceipt {
	return &HeuristicReceipt{now: time.Now}
}

func (h *HeuristicReceipt) ID() string { return "heuristic:receipt" }

type heuristicItem struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type heuristicReceipt struct {
	Vendor   string          `json:"vendor"`
	Date     string          `json:"date"`
	Amount   string          `json:"amount"`
	Category string          `json:"category"`
	Items    []heuristicItem `json:"items"`
}

// Extract ignores the prompt and returns the receipt as JSON text.
func (h *HeuristicReceipt) Extract(ctx context.Context, doc Document, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if doc.Kind != "" && doc.Kind != textparse.KindReceipt {
		return "", fmt.Errorf("heuristic receipt: unsupported document kind %q", doc.Kind)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return "", fmt.Errorf("heuristic receipt: needs OCR text")
	}

	var lines []string
	for _, l := range strings.Split(doc.Text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	total, ok := receiptTotal(lines)
	if !ok {
		return "", fmt.Errorf("heuristic receipt: no total line found")
	}

	out := heuristicReceipt{
		Vendor:   lines[0],
		Date:     h.receiptDate(lines),
		Amount:   total,
		Category: receiptCategory(doc.Text),
		Items:    receiptItems(lines[1:]),
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("heuristic receipt: marshal: %w", err)
	}
	return string(b), nil
}

func (h *HeuristicReceipt) receiptDate(lines []string) string {
	for _, l := range lines {
		if m := receiptDatePattern.FindString(l); m != "" {
			if d, err := textparse.ParseDate(m); err == nil {
				return d.String()
			}
		}
	}
	return h.now().Format("2006-01-02")
}

// receiptTotal scans from the bottom, skipping subtotal lines.
func receiptTotal(lines []string) (string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if strings.Contains(strings.ToLower(l), "subtotal") {
			continue
		}
		if m := receiptTotalPattern.FindStringSubmatch(l); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func receiptItems(lines []string) []heuristicItem {
	var items []heuristicItem
	for _, l := range lines {
		lower := strings.ToLower(l)
		if strings.Contains(lower, "total") || strings.Contains(lower, "tax") || receiptDatePattern.MatchString(l) {
			continue
		}
		loc := receiptPricePattern.FindStringSubmatchIndex(l)
		if loc == nil {
			continue
		}
		name := strings.TrimSpace(l[:loc[0]])
		if name == "" {
			continue
		}
		items = append(items, heuristicItem{Name: name, Price: l[loc[2]:loc[3]]})
	}
	return items
}

func receiptCategory(text string) string {
	lower := strings.ToLower(text)
	for _, hint := range receiptCategoryHints {
		for _, kw := range hint.keywords {
			if strings.Contains(lower, kw) {
				return hint.category
			}
		}
	}
	return "Other"
}
