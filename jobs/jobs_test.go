package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v7"

	"github.com/LovationAdmin/astrodart-api/config"
	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/store"
)

type fakeAggregator struct {
	mu           sync.Mutex
	balances     map[string][]models.AccountBalance
	transactions map[string][]models.Transaction
	fail         map[string]bool
	calls        map[string]int
}

func newFakeAggregator() *fakeAggregator {
	return &fakeAggregator{
		balances:     map[string][]models.AccountBalance{},
		transactions: map[string][]models.Transaction{},
		fail:         map[string]bool{},
		calls:        map[string]int{},
	}
}

func (f *fakeAggregator) record(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[token]++
	if f.fail[token] {
		return errors.New("INTERNAL_SERVER_ERROR")
	}
	return nil
}

func (f *fakeAggregator) GetBalances(ctx context.Context, token string) ([]models.AccountBalance, error) {
	if err := f.record(token); err != nil {
		return nil, err
	}
	return f.balances[token], nil
}

func (f *fakeAggregator) GetTransactions(ctx context.Context, token string, start, end time.Time) ([]models.Transaction, error) {
	if err := f.record(token); err != nil {
		return nil, err
	}
	return f.transactions[token], nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]string
}

func (n *recordingNotifier) NotifyUser(userID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = map[string][]string{}
	}
	n.events[userID] = append(n.events[userID], event)
}

var october = time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

func newRunner(s store.Store, agg Aggregator) *Runner {
	return &Runner{
		Store:       s,
		Aggregator:  agg,
		Concurrency: 4,
		PageSize:    2,
		Now:         func() time.Time { return october },
	}
}

func depositoryUser(t *testing.T, s store.Store, email string, balances ...float64) {
	t.Helper()
	u := models.NewUser(email, "First", "Last", "hash")
	accounts := map[string]models.Account{}
	for i, b := range balances {
		id := fmt.Sprintf("%s-acc%d", email, i)
		accounts[id] = models.Account{AccountID: id, Name: "Checking", Balance: b, ItemID: "item-" + email, Type: models.AccountTypeDepository}
	}
	u.LinkedItems["item-"+email] = models.Link{
		InstitutionID: "ins_1",
		AccessToken:   "tok-" + email,
		ItemID:        "item-" + email,
		Product:       models.ProductAuth,
		Accounts:      accounts,
	}
	if err := s.Put(context.Background(), u); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func mustGet(t *testing.T, s store.Store, email string) *models.User {
	t.Helper()
	u, err := s.Get(context.Background(), email)
	if err != nil {
		t.Fatalf("Get(%s): %v", email, err)
	}
	return u
}

func TestSnapshotNetworthScenario(t *testing.T) {
	s := store.NewMemoryStore()
	depositoryUser(t, s, "a@example.com", 100, 200)
	depositoryUser(t, s, "b@example.com", 300, 400)
	depositoryUser(t, s, "c@example.com", 500, 600)

	report, err := newRunner(s, newFakeAggregator()).SnapshotNetworth(context.Background())
	if err != nil {
		t.Fatalf("SnapshotNetworth: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}

	want := map[string]int64{"a@example.com": 300, "b@example.com": 700, "c@example.com": 1100}
	for email, networth := range want {
		history := mustGet(t, s, email).NetworthHistory
		if len(history) != 1 {
			t.Fatalf("%s has %d snapshots, want 1", email, len(history))
		}
		if history[0].Networth != networth || history[0].Date != "10-2026" {
			t.Errorf("%s snapshot = %+v, want %d on 10-2026", email, history[0], networth)
		}
	}
}

func TestSnapshotNetworthAppendsWithoutCap(t *testing.T) {
	s := store.NewMemoryStore()
	depositoryUser(t, s, "a@example.com", 10)
	r := newRunner(s, newFakeAggregator())
	for i := 0; i < 4; i++ {
		if _, err := r.SnapshotNetworth(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := len(mustGet(t, s, "a@example.com").NetworthHistory); got != 4 {
		t.Errorf("history length = %d, want 4", got)
	}
}

func TestSnapshotNetworthSignConvention(t *testing.T) {
	s := store.NewMemoryStore()
	u := models.NewUser("d@example.com", "D", "E", "hash")
	u.LinkedItems["item"] = models.Link{ItemID: "item", Accounts: map[string]models.Account{
		"chk": {AccountID: "chk", Balance: 100.00, Type: models.AccountTypeDepository},
		"cc":  {AccountID: "cc", Balance: 50.00, Type: models.AccountTypeCredit},
	}}
	s.Put(context.Background(), u)

	if _, err := newRunner(s, newFakeAggregator()).SnapshotNetworth(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, s, "d@example.com").NetworthHistory[0].Networth; got != 50 {
		t.Errorf("networth = %d, want 50", got)
	}
}

func TestRefreshBalancesFailureIsPerUser(t *testing.T) {
	s := store.NewMemoryStore()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		depositoryUser(t, s, email, 1, 2)
	}
	before := mustGet(t, s, "b@example.com")

	agg := newFakeAggregator()
	for _, email := range []string{"a@example.com", "c@example.com"} {
		agg.balances["tok-"+email] = []models.AccountBalance{
			{AccountID: email + "-acc0", Name: "Renamed", Type: models.AccountTypeDepository, Current: 1000},
			{AccountID: email + "-acc1", Name: "Savings", Type: models.AccountTypeDepository, Current: 2000},
		}
	}
	agg.fail["tok-b@example.com"] = true

	notifier := &recordingNotifier{}
	r := newRunner(s, agg)
	r.Notifier = notifier
	report, err := r.RefreshBalances(context.Background())
	if err != nil {
		t.Fatalf("RefreshBalances: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 2 succeeded 1 failed", report)
	}

	for _, email := range []string{"a@example.com", "c@example.com"} {
		acc := mustGet(t, s, email).LinkedItems["item-"+email].Accounts[email+"-acc0"]
		if acc.Balance != 1000 || acc.Name != "Renamed" {
			t.Errorf("%s account = %+v, want refreshed", email, acc)
		}
		if len(notifier.events[email]) != 1 {
			t.Errorf("%s events = %v", email, notifier.events[email])
		}
	}

	after := mustGet(t, s, "b@example.com")
	for id, acc := range before.LinkedItems["item-b@example.com"].Accounts {
		if after.LinkedItems["item-b@example.com"].Accounts[id] != acc {
			t.Errorf("b's account %s changed: %+v", id, after.LinkedItems["item-b@example.com"].Accounts[id])
		}
	}
	if len(notifier.events["b@example.com"]) != 0 {
		t.Error("failed user was notified")
	}
}

func TestRefreshBalancesKeepsOnlyKnownAccounts(t *testing.T) {
	s := store.NewMemoryStore()
	depositoryUser(t, s, "a@example.com", 1, 2)

	agg := newFakeAggregator()
	agg.balances["tok-a@example.com"] = []models.AccountBalance{
		{AccountID: "a@example.com-acc0", Name: "Checking", Type: models.AccountTypeDepository, Current: 42},
		{AccountID: "brand-new", Name: "New", Type: models.AccountTypeDepository, Current: 9},
	}
	if _, err := newRunner(s, agg).RefreshBalances(context.Background()); err != nil {
		t.Fatal(err)
	}

	link := mustGet(t, s, "a@example.com").LinkedItems["item-a@example.com"]
	if _, ok := link.Accounts["brand-new"]; ok {
		t.Error("unknown account was added")
	}
	if len(link.Accounts) != 1 || link.Accounts["a@example.com-acc0"].Balance != 42 {
		t.Errorf("accounts = %+v", link.Accounts)
	}
	if link.AccessToken != "tok-a@example.com" || link.InstitutionID != "ins_1" || link.Product != models.ProductAuth {
		t.Errorf("link metadata not preserved: %+v", link)
	}
	if link.Accounts["a@example.com-acc0"].ItemID != "item-a@example.com" {
		t.Errorf("item_id back-reference lost")
	}
}

func TestRefreshBalancesPartialLinkFailure(t *testing.T) {
	s := store.NewMemoryStore()
	u := models.NewUser("a@example.com", "A", "B", "hash")
	u.LinkedItems["good"] = models.Link{AccessToken: "tok-good", ItemID: "good", Accounts: map[string]models.Account{
		"g": {AccountID: "g", Balance: 1, Type: models.AccountTypeDepository},
	}}
	u.LinkedItems["bad"] = models.Link{AccessToken: "tok-bad", ItemID: "bad", Accounts: map[string]models.Account{
		"x": {AccountID: "x", Balance: 5, Type: models.AccountTypeCredit},
	}}
	s.Put(context.Background(), u)

	agg := newFakeAggregator()
	agg.balances["tok-good"] = []models.AccountBalance{{AccountID: "g", Current: 77, Type: models.AccountTypeDepository}}
	agg.fail["tok-bad"] = true

	report, err := newRunner(s, agg).RefreshBalances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 1 || len(report.Failures) != 1 || report.Failures[0].ItemID != "bad" {
		t.Errorf("report = %+v", report)
	}
	got := mustGet(t, s, "a@example.com").LinkedItems
	if got["good"].Accounts["g"].Balance != 77 || got["bad"].Accounts["x"].Balance != 5 {
		t.Errorf("linked items = %+v", got)
	}
}

func TestRefreshBalancesSkipsUsersWithoutLinks(t *testing.T) {
	s := store.NewMemoryStore()
	s.Put(context.Background(), models.NewUser("empty@example.com", "E", "M", "hash"))
	report, err := newRunner(s, newFakeAggregator()).RefreshBalances(context.Background())
	if err != nil || report.Skipped != 1 {
		t.Errorf("report = %+v, err %v", report, err)
	}
}

func spendingUser(t *testing.T, s store.Store, email string, history []models.SpendingSnapshot) {
	t.Helper()
	depositoryUser(t, s, email, 10)
	if history != nil {
		if err := s.Update(context.Background(), email, models.FieldMonthlySpending, history); err != nil {
			t.Fatal(err)
		}
	}
}

func snapshot(date string, overall float64) models.SpendingSnapshot {
	return models.SpendingSnapshot{Date: date, Spending: map[string]models.CategoryAmount{
		"Overall": {Amount: overall, Category: "Overall"},
	}}
}

func TestRollMonthlySpendingRotation(t *testing.T) {
	s := store.NewMemoryStore()
	spendingUser(t, s, "zero@example.com", nil)
	spendingUser(t, s, "one@example.com", []models.SpendingSnapshot{snapshot("8-2026", 10)})
	spendingUser(t, s, "two@example.com", []models.SpendingSnapshot{snapshot("7-2026", 1), snapshot("8-2026", 2)})

	agg := newFakeAggregator()
	for _, email := range []string{"zero@example.com", "one@example.com", "two@example.com"} {
		agg.transactions["tok-"+email] = []models.Transaction{
			{TransactionID: "t1", AccountID: email + "-acc0", Amount: 25, Date: "2026-09-05", Category: []string{"Food and Drink"}},
			{TransactionID: "t2", AccountID: email + "-acc0", Amount: -10, Date: "2026-09-06", Category: []string{"Transfer"}},
		}
	}

	report, err := newRunner(s, agg).RollMonthlySpending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 3 {
		t.Errorf("report = %+v", report)
	}

	zero := mustGet(t, s, "zero@example.com").MonthlySpending
	if len(zero) != 1 || zero[0].Date != "9-2026" {
		t.Errorf("zero = %+v", zero)
	}

	one := mustGet(t, s, "one@example.com").MonthlySpending
	if len(one) != 2 || one[0].Date != "8-2026" || one[1].Date != "9-2026" {
		t.Errorf("one = %+v", one)
	}

	two := mustGet(t, s, "two@example.com").MonthlySpending
	if len(two) != 2 || two[0].Date != "8-2026" || two[0].Spending["Overall"].Amount != 2 || two[1].Date != "9-2026" {
		t.Errorf("two = %+v", two)
	}
	if two[1].Spending["Overall"].Amount != 25 || two[1].Spending["Food and Drink"].Amount != 25 {
		t.Errorf("new snapshot = %+v", two[1].Spending)
	}
	if _, ok := two[1].Spending["Transfer"]; ok {
		t.Error("negative category counted as spending")
	}
}

func TestRollMonthlySpendingSkipsFailingUser(t *testing.T) {
	s := store.NewMemoryStore()
	spendingUser(t, s, "a@example.com", nil)
	spendingUser(t, s, "b@example.com", []models.SpendingSnapshot{snapshot("8-2026", 3)})

	agg := newFakeAggregator()
	agg.fail["tok-b@example.com"] = true

	report, err := newRunner(s, agg).RollMonthlySpending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := mustGet(t, s, "b@example.com").MonthlySpending; len(got) != 1 || got[0].Date != "8-2026" {
		t.Errorf("failed user's spending changed: %+v", got)
	}
	if got := mustGet(t, s, "a@example.com").MonthlySpending; len(got) != 1 {
		t.Errorf("a's spending = %+v", got)
	}
}

func TestRollMonthlySpendingJanuaryLabel(t *testing.T) {
	s := store.NewMemoryStore()
	spendingUser(t, s, "a@example.com", nil)
	r := newRunner(s, newFakeAggregator())
	r.Now = func() time.Time { return time.Date(2027, time.January, 1, 1, 0, 0, 0, time.UTC) }
	if _, err := r.RollMonthlySpending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, s, "a@example.com").MonthlySpending[0].Date; got != "12-2026" {
		t.Errorf("label = %q, want 12-2026", got)
	}
}

func TestRotateSpendingLeavesInputAlone(t *testing.T) {
	history := []models.SpendingSnapshot{snapshot("7-2026", 1), snapshot("8-2026", 2)}
	got := rotateSpending(history, snapshot("9-2026", 3))
	if len(got) != 2 || got[0].Date != "8-2026" || got[1].Date != "9-2026" {
		t.Errorf("rotateSpending = %+v", got)
	}
	if history[0].Date != "7-2026" || history[1].Date != "8-2026" {
		t.Errorf("input modified: %+v", history)
	}
}

func TestSweepFollowsEveryPage(t *testing.T) {
	s := store.NewMemoryStore()
	for i := 0; i < 7; i++ {
		depositoryUser(t, s, fmt.Sprintf("user%d@example.com", i), float64(i))
	}
	r := newRunner(s, newFakeAggregator())
	r.PageSize = 3

	report, err := r.SnapshotNetworth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 7 {
		t.Errorf("succeeded = %d, want 7", report.Succeeded)
	}
}

// corruptDocument reports one user of the first page as undecodable.
type corruptDocument struct {
	*store.MemoryStore
	userID string
}

func (c corruptDocument) Scan(ctx context.Context, startKey string, limit int) (*store.Page, error) {
	page, err := c.MemoryStore.Scan(ctx, startKey, limit)
	if err != nil || startKey != "" {
		return page, err
	}
	page.Invalid = append(page.Invalid, store.InvalidDocument{UserID: c.userID, Err: errors.New("decode user: cannot unmarshal")})
	return page, nil
}

func TestSweepCountsUnreadableDocumentAsFailed(t *testing.T) {
	s := store.NewMemoryStore()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		depositoryUser(t, s, email, 10)
	}
	r := newRunner(corruptDocument{MemoryStore: s, userID: "broken@example.com"}, newFakeAggregator())

	report, err := r.SnapshotNetworth(context.Background())
	if err != nil {
		t.Fatalf("SnapshotNetworth: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 1 {
		t.Errorf("report = %+v, want 3 succeeded and 1 failed", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].UserID != "broken@example.com" {
		t.Errorf("failures = %+v", report.Failures)
	}
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if len(mustGet(t, s, email).NetworthHistory) != 1 {
			t.Errorf("%s was not snapshotted", email)
		}
	}
}

type brokenScan struct {
	*store.MemoryStore
}

func (b brokenScan) Scan(ctx context.Context, startKey string, limit int) (*store.Page, error) {
	return nil, errors.New("ProvisionedThroughputExceededException")
}

func TestSweepAbortsOnScanError(t *testing.T) {
	r := newRunner(brokenScan{store.NewMemoryStore()}, newFakeAggregator())
	if _, err := r.RefreshBalances(context.Background()); err == nil {
		t.Error("RefreshBalances succeeded with a failing scan")
	}
}

func TestRunUnknownJob(t *testing.T) {
	if _, err := newRunner(store.NewMemoryStore(), newFakeAggregator()).Run(context.Background(), "nope"); err == nil {
		t.Error("unknown job accepted")
	}
}

func TestFanOutLimitAndJoin(t *testing.T) {
	var running, peak int32
	errs := fanOut(context.Background(), 3, 20, func(ctx context.Context, i int) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		if i%5 == 0 {
			return fmt.Errorf("branch %d", i)
		}
		return nil
	})

	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
	failed := 0
	for i, err := range errs {
		if (err != nil) != (i%5 == 0) {
			t.Errorf("errs[%d] = %v", i, err)
		}
		if err != nil {
			failed++
		}
	}
	if failed != 4 {
		t.Errorf("failed = %d, want 4", failed)
	}
}

type fakeSetNX struct {
	mu   sync.Mutex
	keys map[string]interface{}
}

func (f *fakeSetNX) SetNX(key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.keys[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value
	return redis.NewBoolResult(true, nil)
}

func TestRedisGuardOneRunPerPeriod(t *testing.T) {
	client := &fakeSetNX{keys: map[string]interface{}{}}
	first, second := newRedisGuard(client), newRedisGuard(client)

	ok, err := first.Acquire(context.Background(), JobNetworth, "2026-10")
	if err != nil || !ok {
		t.Fatalf("first Acquire = %v, %v", ok, err)
	}
	if ok, _ := second.Acquire(context.Background(), JobNetworth, "2026-10"); ok {
		t.Error("second replica acquired the same period")
	}
	if ok, _ := second.Acquire(context.Background(), JobNetworth, "2026-11"); !ok {
		t.Error("next period was not acquirable")
	}
	if _, ok := client.keys["astrodart:job:networth:2026-10"]; !ok {
		t.Errorf("keys = %v", client.keys)
	}
}

type fixedGuard struct {
	allow   bool
	periods []string
}

func (g *fixedGuard) Acquire(ctx context.Context, job, period string) (bool, error) {
	g.periods = append(g.periods, job+":"+period)
	return g.allow, nil
}

func TestSchedulerTriggerRespectsGuard(t *testing.T) {
	s := store.NewMemoryStore()
	depositoryUser(t, s, "a@example.com", 10)
	r := newRunner(s, newFakeAggregator())
	cfg := config.JobsConfig{
		BalanceSchedule:  "0 8,17 * * *",
		NetworthSchedule: "0 9 1 * *",
		SpendingSchedule: "0 1 1 * *",
	}

	denied := &fixedGuard{allow: false}
	sched, err := NewScheduler(r, denied, cfg)
	if err != nil {
		t.Fatal(err)
	}
	sched.trigger(JobNetworth)
	if got := len(mustGet(t, s, "a@example.com").NetworthHistory); got != 0 {
		t.Errorf("job ran without the lease: %d snapshots", got)
	}
	if len(denied.periods) != 1 || denied.periods[0] != "networth:2026-10" {
		t.Errorf("periods = %v", denied.periods)
	}

	sched, _ = NewScheduler(r, &fixedGuard{allow: true}, cfg)
	sched.trigger(JobNetworth)
	if got := len(mustGet(t, s, "a@example.com").NetworthHistory); got != 1 {
		t.Errorf("snapshots = %d, want 1", got)
	}
}

func TestNewSchedulerRejectsBadExpression(t *testing.T) {
	cfg := config.JobsConfig{BalanceSchedule: "every day", NetworthSchedule: "0 9 1 * *", SpendingSchedule: "0 1 1 * *"}
	if _, err := NewScheduler(newRunner(store.NewMemoryStore(), newFakeAggregator()), nil, cfg); err == nil {
		t.Error("invalid cron expression accepted")
	}
}
