package extraction

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

const statementBasePrompt = "You are a financial statement parser for bank and wallet statements.\n\n" +
	"Task:\n" +
	"- Parse ALL transactions in the attached statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object with the keys \"transactions\", \"dailySummary\" and \"overview\".\n\n" +
	"Each element of \"transactions\" must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"time\": string \"HH:MM\" or null\n" +
	"- \"description\": string\n" +
	"- \"direction\": \"CREDIT\" for money in, \"DEBIT\" for money out\n" +
	"- \"amount\": number, always positive\n" +
	"- \"category\": string (see the category lists below)\n" +
	"- \"paymentMode\": string (e.g. \"UPI\", \"Card\", \"NEFT\", \"Cash\") or null\n" +
	"- \"externalId\": string or null\n" +
	"- \"referenceNo\": string or null\n\n" +
	"Each element of \"dailySummary\" must have:\n" +
	"- \"date\", \"totalCredit\", \"totalDebit\", \"netAmount\", \"transactionCount\"\n\n" +
	"\"overview\" must have:\n" +
	"- \"totalCredit\", \"totalDebit\", \"netBalance\", \"totalTransactions\"\n"

const statementRulesPrompt = "Rules:\n" +
	"- Never use a negative amount; the sign goes into \"direction\".\n" +
	"- If the statement has separate \"paid out\" / \"paid in\" columns, use them to pick the direction.\n" +
	"- netAmount is totalCredit minus totalDebit for that day.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

const receiptBasePrompt = "You are a receipt parser.\n\n" +
	"Task:\n" +
	"- Read the attached receipt.\n" +
	"- Output STRICT JSON only: a single object with these fields:\n" +
	"- \"vendor\": string, the store or merchant name\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"amount\": number, the final total paid, always positive\n" +
	"- \"category\": string (see the category list below)\n" +
	"- \"items\": array of {\"name\": string, \"price\": number or null}\n" +
	"- \"paymentMode\": string or null\n\n" +
	"Return ONLY valid raw JSON without code fences.\n"

const chartPrompt = "You are a chart and graph analyst.\n\n" +
	"Task:\n" +
	"- Analyze every chart and graph in the attached document.\n" +
	"- For each one identify its type, categories and values, percentages, labels and any trends.\n" +
	"- Output STRICT JSON only: a single object with the keys \"charts\", \"timeBasedData\" and \"summary\".\n\n" +
	"Each element of \"charts\" must have:\n" +
	"- \"type\": \"pie_chart\", \"bar_graph\" or \"line_graph\"\n" +
	"- \"title\": string\n" +
	"- \"categories\": array of {\"label\": string, \"value\": number, \"percentage\": number, \"color\": string or null}\n" +
	"- \"total\": number\n" +
	"- \"insights\": {\"largestSegment\": string, \"smallestSegment\": string, \"significantPatterns\": [string]}\n\n" +
	"\"timeBasedData\" is null when no chart is dated, otherwise:\n" +
	"- \"period\": \"daily\", \"monthly\" or \"yearly\"\n" +
	"- \"dataPoints\": array of {\"date\": \"YYYY-MM-DD\", \"value\": number, \"category\": string}\n" +
	"- \"trends\": {\"highestValue\": number, \"lowestValue\": number, \"averageValue\": number, \"trend\": \"increasing\", \"decreasing\" or \"stable\"}\n\n" +
	"\"summary\" must have:\n" +
	"- \"totalCharts\": number, \"mainInsights\": [string], \"recommendations\": [string]\n\n" +
	"Rules:\n" +
	"- Include all visible data points.\n" +
	"- Calculate percentages for pie charts.\n" +
	"- At least one of \"charts\" and \"timeBasedData\" must be present.\n\n" +
	"Return ONLY valid raw JSON without code fences.\n"

// Prompt returns the instruction text for kind. Statement and receipt prompts
// include the closed category sets the parser will enforce.
func Prompt(kind textparse.Kind) (string, error) {
	switch kind {
	case textparse.KindStatement, "":
		return statementBasePrompt + "\n" + categoriesPrompt(true) + "\n" + statementRulesPrompt, nil
	case textparse.KindReceipt:
		return receiptBasePrompt + "\n" + categoriesPrompt(false), nil
	case textparse.KindChart:
		return chartPrompt, nil
	default:
		return "", fmt.Errorf("Prompt: unsupported document kind %q", kind)
	}
}

func categoriesPrompt(withIncome bool) string {
	var b strings.Builder
	if withIncome {
		b.WriteString("CREDIT transactions use ONLY these categories:\n")
		b.WriteString("  " + strings.Join(domain.IncomeCategories, ", ") + "\n")
		b.WriteString("DEBIT transactions use ONLY these categories:\n")
	} else {
		b.WriteString("Use ONLY these categories:\n")
	}
	b.WriteString("  " + strings.Join(domain.ExpenseCategories, ", ") + "\n")
	b.WriteString("If you are unsure, use \"Other\".\n")
	return b.String()
}
