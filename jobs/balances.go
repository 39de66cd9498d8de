package jobs

import (
	"context"
	"fmt"
	"sort"

	"github.com/LovationAdmin/astrodart-api/models"
)

// RefreshBalances re-reads the balance of every cached account from the
// aggregator and writes each user's LinkedItems back whole.
func (r *Runner) RefreshBalances(ctx context.Context) (*Report, error) {
	return r.sweep(ctx, JobBalances, r.refreshUser)
}

func (r *Runner) refreshUser(ctx context.Context, user *models.User) ([]Failure, error) {
	if len(user.LinkedItems) == 0 {
		return nil, errSkipped
	}

	keys := make([]string, 0, len(user.LinkedItems))
	for key := range user.LinkedItems {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	refreshed := make([]models.Link, len(keys))
	errs := fanOut(ctx, r.Concurrency, len(keys), func(ctx context.Context, i int) error {
		link, err := r.refreshLink(ctx, user.LinkedItems[keys[i]])
		refreshed[i] = link
		return err
	})

	items := make(map[string]models.Link, len(keys))
	var failures []Failure
	for i, key := range keys {
		if errs[i] != nil {
			failures = append(failures, Failure{UserID: user.UserID, ItemID: key, Err: errs[i]})
			items[key] = user.LinkedItems[key]
			continue
		}
		items[key] = refreshed[i]
	}
	if len(failures) == len(keys) {
		return failures, fmt.Errorf("all %d links failed, document left unchanged", len(keys))
	}

	if err := r.Store.Update(ctx, user.UserID, models.FieldLinkedItems, items); err != nil {
		return failures, fmt.Errorf("save linked items: %w", err)
	}
	r.notify(user.UserID, "balances_updated", items)
	return failures, nil
}

// refreshLink rebuilds the link's account map from the aggregator response.
// Only accounts already cached on the link are kept.
func (r *Runner) refreshLink(ctx context.Context, link models.Link) (models.Link, error) {
	balances, err := r.Aggregator.GetBalances(ctx, link.AccessToken)
	if err != nil {
		return link, err
	}

	accounts := make(map[string]models.Account, len(link.Accounts))
	for _, b := range balances {
		if _, known := link.Accounts[b.AccountID]; !known {
			continue
		}
		accounts[b.AccountID] = models.Account{
			AccountID: b.AccountID,
			Name:      b.Name,
			Balance:   b.Current,
			ItemID:    link.ItemID,
			Type:      b.Type,
		}
	}
	link.Accounts = accounts
	return link, nil
}
