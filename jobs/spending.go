package jobs

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/services"
)

// RollMonthlySpending summarizes last month's transactions for every user
// and keeps the two most recent summaries.
func (r *Runner) RollMonthlySpending(ctx context.Context) (*Report, error) {
	window := services.PreviousMonth(r.now())
	label := services.MonthLabel(window.Start)
	transactions := services.NewTransactionService(r.Aggregator)

	return r.sweep(ctx, JobSpending, func(ctx context.Context, user *models.User) ([]Failure, error) {
		txs, err := transactions.ForUser(ctx, user, window)
		if err != nil {
			return nil, err
		}

		snapshot := models.SpendingSnapshot{
			Date:     label,
			Spending: services.SummarizeSpending(txs),
		}
		history := rotateSpending(user.MonthlySpending, snapshot)
		if err := r.Store.Update(ctx, user.UserID, models.FieldMonthlySpending, history); err != nil {
			return nil, fmt.Errorf("save monthly spending: %w", err)
		}
		r.notify(user.UserID, "spending_updated", models.Indexed(history))
		return nil, nil
	})
}

// rotateSpending appends next, evicting from the front once the history
// holds models.MaxSpendingHistory entries. history is not modified.
func rotateSpending(history []models.SpendingSnapshot, next models.SpendingSnapshot) []models.SpendingSnapshot {
	out := make([]models.SpendingSnapshot, 0, models.MaxSpendingHistory)
	if len(history) >= models.MaxSpendingHistory {
		history = history[len(history)-models.MaxSpendingHistory+1:]
	}
	out = append(out, history...)
	return append(out, next)
}
