// migration/backfill.go
// Brings stored user documents up to the current shape: every mapping
// present, and access tokens sealed when a data key is configured.
//
// USAGE:
//   astrodart-api -migrate

package migration

import (
	"context"
	"fmt"
	"log"

	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

// Result counts what a backfill did.
type Result struct {
	Migrated int
	Skipped  int
	Errors   int
}

// BackfillDocuments scans every document and repairs it. cipher may be nil,
// in which case access tokens are left as they are.
func BackfillDocuments(ctx context.Context, s store.Store, cipher *utils.TokenCipher, pageSize int) (Result, error) {
	var result Result

	users, invalid, err := store.ScanAll(ctx, s, pageSize)
	if err != nil {
		return result, fmt.Errorf("scan documents: %w", err)
	}
	for _, doc := range invalid {
		result.Errors++
		utils.SafeError("  ❌ %s: %v", doc.UserID, doc.Err)
	}

	log.Printf("🔄 Backfilling %d documents", len(users))
	for i := range users {
		user := &users[i]
		changed, err := BackfillUser(ctx, s, user, cipher)
		switch {
		case err != nil:
			result.Errors++
			utils.SafeError("  ❌ %s: %v", user.UserID, err)
		case changed:
			result.Migrated++
			utils.SafeInfo("  ✅ %s migrated", user.UserID)
		default:
			result.Skipped++
		}
	}

	log.Printf("📊 Backfill: %d migrated, %d skipped, %d errors", result.Migrated, result.Skipped, result.Errors)
	return result, nil
}

// BackfillUser writes each missing mapping as empty and seals plain access
// tokens. It reports whether anything was written.
func BackfillUser(ctx context.Context, s store.Store, user *models.User, cipher *utils.TokenCipher) (bool, error) {
	updates := missingFields(user)

	if cipher != nil && user.LinkedItems != nil {
		items, sealed, err := sealTokens(user.LinkedItems, cipher)
		if err != nil {
			return false, err
		}
		if sealed {
			updates[models.FieldLinkedItems] = items
		}
	}

	for _, field := range []models.Field{
		models.FieldChecklist,
		models.FieldLinkedItems,
		models.FieldNetworthHistory,
		models.FieldMonthlySpending,
	} {
		value, ok := updates[field]
		if !ok {
			continue
		}
		if err := s.Update(ctx, user.UserID, field, value); err != nil {
			return false, fmt.Errorf("update %s: %w", field, err)
		}
	}
	return len(updates) > 0, nil
}

func missingFields(user *models.User) map[models.Field]interface{} {
	updates := map[models.Field]interface{}{}
	if user.Checklist == nil {
		updates[models.FieldChecklist] = map[string]interface{}{}
	}
	if user.LinkedItems == nil {
		updates[models.FieldLinkedItems] = map[string]models.Link{}
	}
	if user.NetworthHistory == nil {
		updates[models.FieldNetworthHistory] = []models.NetworthSnapshot{}
	}
	if user.MonthlySpending == nil {
		updates[models.FieldMonthlySpending] = []models.SpendingSnapshot{}
	}
	return updates
}

func sealTokens(items map[string]models.Link, cipher *utils.TokenCipher) (map[string]models.Link, bool, error) {
	out := make(map[string]models.Link, len(items))
	sealed := false
	for key, link := range items {
		if link.AccessToken != "" && !utils.IsSealed(link.AccessToken) {
			token, err := cipher.Seal(link.AccessToken)
			if err != nil {
				return nil, false, fmt.Errorf("seal token for item %s: %w", key, err)
			}
			link.AccessToken = token
			sealed = true
		}
		out[key] = link
	}
	return out, sealed, nil
}
