package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/astrodart-api/models"
)

const (
	// OverallCategory is the synthetic total stored beside per-category sums.
	OverallCategory = "Overall"

	paymentCategory = "Payment"
	otherCategory   = "Other"
)

// SpendingCategory picks the label a transaction is summed under. Payments
// are relabeled with their subcategory when one exists.
func SpendingCategory(categories []string) string {
	if len(categories) == 0 || categories[0] == "" {
		return otherCategory
	}
	if categories[0] == paymentCategory && len(categories) > 1 && categories[1] != "" {
		return categories[1]
	}
	return categories[0]
}

// SummarizeSpending sums transactions per category. Only categories with a
// strictly positive total are kept, and Overall is the sum of those.
func SummarizeSpending(transactions []models.Transaction) map[string]models.CategoryAmount {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		category := SpendingCategory(tx.Category)
		totals[category] = totals[category].Add(decimal.NewFromFloat(tx.Amount))
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	spending := make(map[string]models.CategoryAmount, len(totals)+1)
	overall := decimal.Zero
	for _, name := range names {
		total := totals[name]
		if !total.IsPositive() {
			continue
		}
		overall = overall.Add(total)
		spending[name] = models.CategoryAmount{
			Amount:   total.InexactFloat64(),
			Category: name,
		}
	}
	spending[OverallCategory] = models.CategoryAmount{
		Amount:   overall.InexactFloat64(),
		Category: OverallCategory,
	}
	return spending
}

// MonthLabel formats t as "M-YYYY", the date label used by every snapshot.
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%d-%d", int(t.Month()), t.Year())
}
