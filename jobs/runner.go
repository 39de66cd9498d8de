// Package jobs holds the scheduled sweeps over every user document.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/LovationAdmin/astrodart-api/config"
	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/services"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

const (
	JobBalances = "balances"
	JobNetworth = "networth"
	JobSpending = "spending"
)

// Names lists every job in the order the one-shot mode accepts them.
var Names = []string{JobBalances, JobNetworth, JobSpending}

// Aggregator is the subset of the Plaid client the jobs call.
type Aggregator interface {
	GetBalances(ctx context.Context, accessToken string) ([]models.AccountBalance, error)
	services.TransactionFetcher
}

// Notifier pushes an event to a user's open sessions.
type Notifier interface {
	NotifyUser(userID string, event string, payload interface{})
}

type Runner struct {
	Store       store.Store
	Aggregator  Aggregator
	Notifier    Notifier
	Concurrency int
	PageSize    int
	Now         func() time.Time
}

func NewRunner(s store.Store, agg Aggregator, cfg config.JobsConfig) *Runner {
	return &Runner{
		Store:       s,
		Aggregator:  agg,
		Concurrency: cfg.Concurrency,
		PageSize:    cfg.ScanPageSize,
		Now:         time.Now,
	}
}

// Run executes the named job once.
func (r *Runner) Run(ctx context.Context, name string) (*Report, error) {
	switch name {
	case JobBalances:
		return r.RefreshBalances(ctx)
	case JobNetworth:
		return r.SnapshotNetworth(ctx)
	case JobSpending:
		return r.RollMonthlySpending(ctx)
	default:
		return nil, fmt.Errorf("unknown job %q", name)
	}
}

// userFunc updates one user. Link-level failures that did not stop the write
// are returned beside a nil error.
type userFunc func(ctx context.Context, user *models.User) ([]Failure, error)

// sweep pages through the store until no continuation key is left and runs
// fn for each page's users concurrently. Unreadable documents count as
// failed users. A scan error ends the run.
func (r *Runner) sweep(ctx context.Context, job string, fn userFunc) (*Report, error) {
	report := &Report{
		Job:     job,
		RunID:   uuid.NewString(),
		Started: r.now(),
	}
	log.Printf("🔄 [Job:%s] run %s started", job, report.RunID)
	defer func() {
		report.Duration = time.Since(report.Started)
		report.Log()
	}()

	startKey := ""
	for {
		page, err := r.Store.Scan(ctx, startKey, r.PageSize)
		if err != nil {
			utils.SafeError("[Job:%s] ❌ scan after %q failed: %v", job, startKey, err)
			return report, fmt.Errorf("%s: scan users: %w", job, err)
		}

		for _, doc := range page.Invalid {
			report.Failed++
			report.Failures = append(report.Failures, Failure{UserID: doc.UserID, Err: doc.Err})
			utils.SafeError("[Job:%s] ❌ %s: unreadable document: %v", job, doc.UserID, doc.Err)
		}

		users := page.Users
		linkFailures := make([][]Failure, len(users))
		errs := fanOut(ctx, r.Concurrency, len(users), func(ctx context.Context, i int) error {
			var err error
			linkFailures[i], err = fn(ctx, &users[i])
			return err
		})

		for i, err := range errs {
			userID := users[i].UserID
			for _, f := range linkFailures[i] {
				utils.SafeError("[Job:%s] ❌ %s item %s: %v", job, userID, f.ItemID, f.Err)
			}
			report.Failures = append(report.Failures, linkFailures[i]...)

			switch {
			case err == nil:
				report.Succeeded++
			case errors.Is(err, errSkipped):
				report.Skipped++
			default:
				report.Failed++
				report.Failures = append(report.Failures, Failure{UserID: userID, Err: err})
				utils.SafeError("[Job:%s] ❌ %s: %v", job, userID, err)
			}
		}

		if page.NextKey == "" {
			return report, nil
		}
		startKey = page.NextKey
	}
}

func (r *Runner) notify(userID, event string, payload interface{}) {
	if r.Notifier != nil {
		r.Notifier.NotifyUser(userID, event, payload)
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
