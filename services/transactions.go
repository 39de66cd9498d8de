package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LovationAdmin/astrodart-api/models"
)

const creditCardCategory = "Credit Card"

// TransactionFetcher is the part of the aggregator needed to list transactions.
type TransactionFetcher interface {
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error)
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// CurrentMonth runs from the first of now's month through now.
func CurrentMonth(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: now}
}

// PreviousMonth covers the whole calendar month before now.
func PreviousMonth(now time.Time) Window {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{
		Start: firstOfThisMonth.AddDate(0, -1, 0),
		End:   firstOfThisMonth.AddDate(0, 0, -1),
	}
}

type TransactionService struct {
	fetcher TransactionFetcher
}

func NewTransactionService(fetcher TransactionFetcher) *TransactionService {
	return &TransactionService{fetcher: fetcher}
}

// ForUser collects transactions in window from the user's auth and
// liabilities links. Only depository and credit accounts are kept, and card
// payments are dropped when the user holds a credit account so they are not
// counted twice. Any failed link fails the whole call.
func (s *TransactionService) ForUser(ctx context.Context, user *models.User, window Window) ([]models.Transaction, error) {
	tracked := make(map[string]bool)
	hasCredit := false
	for _, account := range FlattenAccounts(user.LinkedItems) {
		switch Classify(account) {
		case ClassCredit:
			hasCredit = true
			tracked[account.AccountID] = true
		case ClassDepository:
			tracked[account.AccountID] = true
		}
	}

	var (
		mu  sync.Mutex
		all []models.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	for itemID, link := range user.LinkedItems {
		if link.Product != models.ProductAuth && link.Product != models.ProductLiabilities {
			continue
		}
		itemID, token := itemID, link.AccessToken
		g.Go(func() error {
			txs, err := s.fetcher.GetTransactions(gctx, token, window.Start, window.End)
			if err != nil {
				return fmt.Errorf("transactions for item %s: %w", itemID, err)
			}
			mu.Lock()
			all = append(all, txs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]models.Transaction, 0, len(all))
	for _, tx := range all {
		if !tracked[tx.AccountID] {
			continue
		}
		if hasCredit && hasCategory(tx.Category, creditCardCategory) {
			continue
		}
		kept = append(kept, tx)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Date != kept[j].Date {
			return kept[i].Date > kept[j].Date
		}
		return kept[i].TransactionID < kept[j].TransactionID
	})
	return kept, nil
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}
