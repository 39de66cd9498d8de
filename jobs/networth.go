package jobs

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/services"
)

// SnapshotNetworth appends this month's net worth to every user's history.
// History is never trimmed.
func (r *Runner) SnapshotNetworth(ctx context.Context) (*Report, error) {
	label := services.MonthLabel(r.now())
	return r.sweep(ctx, JobNetworth, func(ctx context.Context, user *models.User) ([]Failure, error) {
		return nil, r.snapshotUser(ctx, user, label)
	})
}

func (r *Runner) snapshotUser(ctx context.Context, user *models.User, label string) error {
	networth := services.NetWorth(services.FlattenAccounts(user.LinkedItems))

	// The history is re-read rather than taken from the scanned page.
	current, err := r.Store.Get(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("reload user: %w", err)
	}

	history := append(current.NetworthHistory, models.NetworthSnapshot{
		Date:     label,
		Networth: networth,
	})
	if err := r.Store.Update(ctx, user.UserID, models.FieldNetworthHistory, history); err != nil {
		return fmt.Errorf("save networth history: %w", err)
	}
	r.notify(user.UserID, "networth_updated", models.Indexed(history))
	return nil
}
