package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/LovationAdmin/astrodart-api/models"
)

func seed(t *testing.T, s Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		u := models.NewUser(fmt.Sprintf("user%02d@example.com", i), "First", "Last", "hash")
		if err := s.Put(context.Background(), u); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
}

func TestScanAllFollowsContinuationKeys(t *testing.T) {
	for _, pageSize := range []int{1, 2, 3, 7, 100} {
		t.Run(fmt.Sprintf("page=%d", pageSize), func(t *testing.T) {
			s := NewMemoryStore()
			seed(t, s, 7)

			users, _, err := ScanAll(context.Background(), s, pageSize)
			if err != nil {
				t.Fatalf("ScanAll: %v", err)
			}
			if len(users) != 7 {
				t.Fatalf("got %d users, want 7", len(users))
			}
			seen := map[string]bool{}
			for _, u := range users {
				if seen[u.UserID] {
					t.Errorf("user %s returned twice", u.UserID)
				}
				seen[u.UserID] = true
			}
		})
	}
}

type failingScan struct {
	*MemoryStore
	calls int
}

func (f *failingScan) Scan(ctx context.Context, startKey string, limit int) (*Page, error) {
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("throttled")
	}
	return f.MemoryStore.Scan(ctx, startKey, limit)
}

func TestScanAllStopsOnError(t *testing.T) {
	s := &failingScan{MemoryStore: NewMemoryStore()}
	seed(t, s, 4)

	users, _, err := ScanAll(context.Background(), s, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(users) != 2 {
		t.Errorf("got %d users before failure, want 2", len(users))
	}
}

func TestMemoryUpdateReplacesWholeField(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, 1)
	id := "user00@example.com"

	if err := s.Update(ctx, id, models.FieldChecklist, map[string]interface{}{"link_bank": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Update(ctx, id, models.FieldChecklist, map[string]interface{}{"budget": false}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	history := []models.NetworthSnapshot{{Date: "9-2026", Networth: 10}, {Date: "10-2026", Networth: 20}}
	if err := s.Update(ctx, id, models.FieldNetworthHistory, history); err != nil {
		t.Fatalf("Update: %v", err)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, stale := u.Checklist["link_bank"]; len(u.Checklist) != 1 || stale {
		t.Errorf("Checklist = %v, want only budget", u.Checklist)
	}
	if len(u.NetworthHistory) != 2 || u.NetworthHistory[1].Networth != 20 {
		t.Errorf("NetworthHistory = %v", u.NetworthHistory)
	}
	if u.FirstName != "First" {
		t.Errorf("unrelated field changed: %q", u.FirstName)
	}
}

func TestMemoryUpdateErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, 1)

	if err := s.Update(ctx, "missing@example.com", models.FieldChecklist, map[string]interface{}{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user: err = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, "user00@example.com", models.FieldChecklist, "nope"); !errors.Is(err, ErrFieldType) {
		t.Errorf("bad type: err = %v, want ErrFieldType", err)
	}
	if err := s.Update(ctx, "user00@example.com", models.Field("Bogus"), 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("bad field: err = %v, want ErrUnknownField", err)
	}
	if _, err := s.Get(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryKeepsAbsentAndEmptyApart(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, &models.User{UserID: "legacy@example.com", LinkedItems: map[string]models.Link{}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	u, err := s.Get(ctx, "legacy@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Checklist != nil || u.MonthlySpending != nil {
		t.Errorf("absent mappings decoded as present: %+v", u)
	}
	if u.LinkedItems == nil {
		t.Error("empty LinkedItems decoded as absent")
	}
}

func TestMemoryReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, 1)

	u, _ := s.Get(ctx, "user00@example.com")
	u.Checklist["mutated"] = true

	again, _ := s.Get(ctx, "user00@example.com")
	if _, leaked := again.Checklist["mutated"]; leaked {
		t.Error("mutating a read leaked into the store")
	}
}

func TestMemoryScanReportsUndecodableDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, 3)
	s.docs["user01@example.com"] = []byte(`{"UserId":"user01@example.com","NetworthHistory":"corrupt"}`)

	page, err := s.Scan(ctx, "", 2)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(page.Users) != 1 || page.Users[0].UserID != "user00@example.com" {
		t.Errorf("users = %+v", page.Users)
	}
	if len(page.Invalid) != 1 || page.Invalid[0].UserID != "user01@example.com" || page.Invalid[0].Err == nil {
		t.Errorf("invalid = %+v", page.Invalid)
	}
	if page.NextKey != "user01@example.com" {
		t.Errorf("NextKey = %q, want user01@example.com", page.NextKey)
	}

	users, invalid, err := ScanAll(ctx, s, 2)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(users) != 2 || len(invalid) != 1 {
		t.Errorf("ScanAll = %d users, %d invalid; want 2 and 1", len(users), len(invalid))
	}
}

func TestJSONDecodesBareOverallAmount(t *testing.T) {
	s := NewMemoryStore()
	s.docs["old@example.com"] = []byte(`{"UserId":"old@example.com","MonthlySpending":{"0":{"Date":"9-2026","Spending":{"Overall":42.5,"Food":{"Amount":40,"Category":"Food"}}}}}`)

	u, err := s.Get(context.Background(), "old@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	spending := u.MonthlySpending[0].Spending
	if got := spending["Overall"]; got.Amount != 42.5 || got.Category != "Overall" {
		t.Errorf("Overall = %+v", got)
	}
	if got := spending["Food"]; got.Amount != 40 || got.Category != "Food" {
		t.Errorf("Food = %+v", got)
	}
}
