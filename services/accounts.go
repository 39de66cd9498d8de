package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/astrodart-api/models"
)

// AccountClass is the three-way partition used for net worth and
// transaction filtering.
type AccountClass int

const (
	ClassOther AccountClass = iota
	ClassDepository
	ClassCredit
)

// FlattenAccounts lists every account across all links, ordered by link key
// then account key. A nil or empty mapping yields an empty slice.
func FlattenAccounts(links map[string]models.Link) []models.Account {
	accounts := []models.Account{}

	linkKeys := make([]string, 0, len(links))
	for key := range links {
		linkKeys = append(linkKeys, key)
	}
	sort.Strings(linkKeys)

	for _, linkKey := range linkKeys {
		link := links[linkKey]
		accountKeys := make([]string, 0, len(link.Accounts))
		for key := range link.Accounts {
			accountKeys = append(accountKeys, key)
		}
		sort.Strings(accountKeys)
		for _, accountKey := range accountKeys {
			accounts = append(accounts, link.Accounts[accountKey])
		}
	}
	return accounts
}

func Classify(account models.Account) AccountClass {
	switch account.Type {
	case models.AccountTypeCredit:
		return ClassCredit
	case models.AccountTypeDepository:
		return ClassDepository
	default:
		return ClassOther
	}
}

// IsLiability reports whether the balance counts against net worth.
func IsLiability(account models.Account) bool {
	return account.Type == models.AccountTypeCredit || account.Type == models.AccountTypeLoan
}

// NetWorth sums balances with liabilities negated and floors the result.
func NetWorth(accounts []models.Account) int64 {
	sum := decimal.Zero
	for _, account := range accounts {
		balance := decimal.NewFromFloat(account.Balance)
		if IsLiability(account) {
			sum = sum.Sub(balance)
		} else {
			sum = sum.Add(balance)
		}
	}
	return sum.Floor().IntPart()
}
