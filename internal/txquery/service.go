// Package txquery implements read-only aggregation over the transaction
// ledger: filtered queries, grouped spending summaries and a recent-activity
// snapshot. Every operation is scoped by user id.
package txquery

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hearthledger/internal/domain"
)

const (
	defaultQueryLimit = 50
	topMerchantCount  = 10
	dateLayout        = "2006-01-02"
)

// GroupBy selects the dimension for a spending summary.
type GroupBy string

const (
	GroupByCategory       GroupBy = "category"
	GroupByClassification GroupBy = "classification"
	GroupByMerchant       GroupBy = "merchant"
)

// ledger is the minimal read surface the service needs from the repository.
type ledger interface {
	ListTransactions(ctx context.Context, userID, startDate, endDate string, limit int) ([]domain.Transaction, error)
}

// Service answers aggregation queries over a user's ledger.
type Service struct {
	store ledger
	now   func() time.Time
}

// New creates a Service over the given ledger store.
func New(store ledger) (*Service, error) {
	if store == nil {
		return nil, errors.New("txquery: store must not be nil")
	}
	return &Service{store: store, now: time.Now}, nil
}

// Filter holds the optional, conjunctive transaction filters.
type Filter struct {
	Category       string
	Classification string
	Merchant       string // case-insensitive substring
	MinAmount      *decimal.Decimal
	MaxAmount      *decimal.Decimal
	StartDate      string
	EndDate        string
	NeedsReview    *bool
	Limit          int
}

// QueryResult is a filtered page of transactions with aggregate totals.
type QueryResult struct {
	Transactions []domain.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	Total        decimal.Decimal      `json:"total"`
}

// BreakdownRow is one group of a spending summary.
type BreakdownRow struct {
	Name       string          `json:"name"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// Summary is a grouped spending summary over a date range. Income and
// non-spending rows are excluded.
type Summary struct {
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Total     decimal.Decimal `json:"total"`
	Breakdown []BreakdownRow  `json:"breakdown"`
}

// MerchantSpend is one merchant's aggregate within a recent-activity window.
type MerchantSpend struct {
	Merchant string          `json:"merchant"`
	Total    decimal.Decimal `json:"total"`
}

// Activity is the recent-activity snapshot for a trailing window.
type Activity struct {
	WindowDays           int             `json:"windowDays"`
	TotalSpending        decimal.Decimal `json:"totalSpending"`
	EssentialTotal       decimal.Decimal `json:"essentialTotal"`
	DiscretionaryTotal   decimal.Decimal `json:"discretionaryTotal"`
	DiscretionaryPercent float64         `json:"discretionaryPercent"`
	AverageDailySpend    decimal.Decimal `json:"averageDailySpend"`
	TopMerchants         []MerchantSpend `json:"topMerchants"`
}

// Query returns transactions matching every supplied filter, newest first.
func (s *Service) Query(ctx context.Context, userID string, f Filter) (QueryResult, error) {
	limit := f.Limit
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}

	// Non-date filters apply in memory, so fetch a full page and trim after.
	txns, err := s.store.ListTransactions(ctx, userID, f.StartDate, f.EndDate, 0)
	if err != nil {
		return QueryResult{}, err
	}

	matched := make([]domain.Transaction, 0, limit)
	total := decimal.Zero
	for _, txn := range txns {
		if !matches(txn, f) {
			continue
		}
		if len(matched) < limit {
			matched = append(matched, txn)
		}
		total = total.Add(txn.Amount)
	}
	return QueryResult{Transactions: matched, Count: len(matched), Total: total}, nil
}

func matches(txn domain.Transaction, f Filter) bool {
	if f.Category != "" && !strings.EqualFold(txn.Category, f.Category) {
		return false
	}
	if f.Classification != "" && !strings.EqualFold(string(txn.Classification), f.Classification) {
		return false
	}
	if f.Merchant != "" && !strings.Contains(strings.ToLower(txn.Merchant), strings.ToLower(f.Merchant)) {
		return false
	}
	if f.MinAmount != nil && txn.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && txn.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if f.NeedsReview != nil && txn.NeedsReview != *f.NeedsReview {
		return false
	}
	return true
}

// SpendingSummary groups spending between startDate and endDate inclusive.
// Only positive amounts count, and income / non-spending classifications are
// excluded so the summary reflects actual outflow.
func (s *Service) SpendingSummary(ctx context.Context, userID, startDate, endDate string, groupBy GroupBy) (Summary, error) {
	switch groupBy {
	case GroupByCategory, GroupByClassification, GroupByMerchant:
	default:
		return Summary{}, errors.New("txquery: groupBy must be category, classification or merchant")
	}

	txns, err := s.store.ListTransactions(ctx, userID, startDate, endDate, 0)
	if err != nil {
		return Summary{}, err
	}

	totals := map[string]decimal.Decimal{}
	counts := map[string]int{}
	grand := decimal.Zero
	for _, txn := range txns {
		if !isSpending(txn) {
			continue
		}
		key := groupKey(txn, groupBy)
		totals[key] = totals[key].Add(txn.Amount)
		counts[key]++
		grand = grand.Add(txn.Amount)
	}

	breakdown := make([]BreakdownRow, 0, len(totals))
	for name, total := range totals {
		row := BreakdownRow{Name: name, Total: total, Count: counts[name]}
		if grand.IsPositive() {
			pct, _ := total.Div(grand).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			row.Percentage = pct
		}
		breakdown = append(breakdown, row)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if !breakdown[i].Total.Equal(breakdown[j].Total) {
			return breakdown[i].Total.GreaterThan(breakdown[j].Total)
		}
		return breakdown[i].Name < breakdown[j].Name
	})

	return Summary{StartDate: startDate, EndDate: endDate, Total: grand, Breakdown: breakdown}, nil
}

// RecentActivity summarizes the trailing windowDays ending today. The daily
// average divides by days that actually saw spending, not calendar days, so
// zero-spend days do not dilute it.
func (s *Service) RecentActivity(ctx context.Context, userID string, windowDays int) (Activity, error) {
	if windowDays <= 0 {
		windowDays = 14
	}
	today := s.now().UTC()
	start := today.AddDate(0, 0, -(windowDays - 1)).Format(dateLayout)
	end := today.Format(dateLayout)

	txns, err := s.store.ListTransactions(ctx, userID, start, end, 0)
	if err != nil {
		return Activity{}, err
	}

	activity := Activity{
		WindowDays:         windowDays,
		TotalSpending:      decimal.Zero,
		EssentialTotal:     decimal.Zero,
		DiscretionaryTotal: decimal.Zero,
	}
	spendDays := map[string]struct{}{}
	merchants := map[string]decimal.Decimal{}
	for _, txn := range txns {
		if !isSpending(txn) {
			continue
		}
		activity.TotalSpending = activity.TotalSpending.Add(txn.Amount)
		spendDays[txn.Date] = struct{}{}
		switch txn.Classification {
		case domain.ClassEssential:
			activity.EssentialTotal = activity.EssentialTotal.Add(txn.Amount)
		case domain.ClassDiscretionary:
			activity.DiscretionaryTotal = activity.DiscretionaryTotal.Add(txn.Amount)
		}
		if txn.Merchant != "" {
			merchants[txn.Merchant] = merchants[txn.Merchant].Add(txn.Amount)
		}
	}

	if activity.TotalSpending.IsPositive() {
		pct, _ := activity.DiscretionaryTotal.Div(activity.TotalSpending).Mul(decimal.NewFromInt(100)).Round(1).Float64()
		activity.DiscretionaryPercent = pct
	}
	if len(spendDays) > 0 {
		activity.AverageDailySpend = activity.TotalSpending.Div(decimal.NewFromInt(int64(len(spendDays)))).Round(2)
	}

	top := make([]MerchantSpend, 0, len(merchants))
	for merchant, total := range merchants {
		top = append(top, MerchantSpend{Merchant: merchant, Total: total})
	}
	sort.Slice(top, func(i, j int) bool {
		if !top[i].Total.Equal(top[j].Total) {
			return top[i].Total.GreaterThan(top[j].Total)
		}
		return top[i].Merchant < top[j].Merchant
	})
	if len(top) > topMerchantCount {
		top = top[:topMerchantCount]
	}
	activity.TopMerchants = top
	return activity, nil
}

// isSpending reports whether a transaction counts toward spending summaries:
// positive amount, and not an income or non-spending row.
func isSpending(txn domain.Transaction) bool {
	if !txn.Amount.IsPositive() {
		return false
	}
	switch txn.Classification {
	case domain.ClassIncome, domain.ClassNonSpending:
		return false
	}
	return true
}

func groupKey(txn domain.Transaction, groupBy GroupBy) string {
	var key string
	switch groupBy {
	case GroupByCategory:
		key = txn.Category
	case GroupByClassification:
		key = string(txn.Classification)
	case GroupByMerchant:
		key = txn.Merchant
	}
	if key == "" {
		key = "Uncategorized"
	}
	return key
}
