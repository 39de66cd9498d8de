package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LovationAdmin/astrodart-api/config"
)

// periodLayouts set the lease granularity per job. Balances run several
// times a day, the other jobs once a month.
var periodLayouts = map[string]string{
	JobBalances: "2006-01-02T15",
	JobNetworth: "2006-01",
	JobSpending: "2006-01",
}

type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	guard  Guard
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers every job on its cron expression. guard may be nil.
func NewScheduler(runner *Runner, guard Guard, cfg config.JobsConfig) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		guard:  guard,
		ctx:    ctx,
		cancel: cancel,
	}

	schedules := map[string]string{
		JobBalances: cfg.BalanceSchedule,
		JobNetworth: cfg.NetworthSchedule,
		JobSpending: cfg.SpendingSchedule,
	}
	for _, name := range Names {
		name := name
		if _, err := s.cron.AddFunc(schedules[name], func() { s.trigger(name) }); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s job %q: %w", name, schedules[name], err)
		}
		log.Printf("🕒 [Job:%s] scheduled at %q", name, schedules[name])
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Println("⚠️ Scheduler stop timed out, cancelling running jobs")
	}
	s.cancel()
}

func (s *Scheduler) trigger(name string) {
	if s.guard != nil {
		period := s.runner.now().Format(periodLayouts[name])
		ok, err := s.guard.Acquire(s.ctx, name, period)
		if err != nil {
			log.Printf("❌ [Job:%s] run guard unavailable, skipping: %v", name, err)
			return
		}
		if !ok {
			return
		}
	}

	start := time.Now()
	if _, err := s.runner.Run(s.ctx, name); err != nil {
		log.Printf("❌ [Job:%s] aborted after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
	}
}
