package domain

import "github.com/shopspring/decimal"

// Classification buckets every transaction into one spending lens.
type Classification string

const (
	ClassEssential     Classification = "Essential"
	ClassDiscretionary Classification = "Discretionary"
	ClassNonSpending   Classification = "Non-Spending"
	ClassIncome        Classification = "Income"
)

// ValidClassification reports whether s is one of the four known buckets.
func ValidClassification(s string) bool {
	switch Classification(s) {
	case ClassEssential, ClassDiscretionary, ClassNonSpending, ClassIncome:
		return true
	}
	return false
}

// Transaction is one ledger row as produced by the external ingester.
// Amount is signed: positive = expense, negative = income/credit.
type Transaction struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"` // YYYY-MM-DD
	Time           string          `json:"time"` // HH:MM:SS
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	Classification Classification  `json:"classification"`
	Merchant       string          `json:"merchant"`
	NeedsReview    bool            `json:"needsReview"`
}

// MerchantMapping is a per-user merchant-pattern to category rule consumed by
// the external ingester when normalizing future imports.
type MerchantMapping struct {
	Pattern        string         `json:"pattern"`
	Category       string         `json:"category"`
	Classification Classification `json:"classification"`
}
