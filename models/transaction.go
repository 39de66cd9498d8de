package models

// Transaction is the subset of an aggregator transaction the backend uses.
type Transaction struct {
	TransactionID string   `json:"transaction_id"`
	AccountID     string   `json:"account_id"`
	Name          string   `json:"name"`
	Amount        float64  `json:"amount"`
	Date          string   `json:"date"`
	Category      []string `json:"category"`
}

// AccountBalance is one account as returned by the balance endpoint.
type AccountBalance struct {
	AccountID string  `json:"account_id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Current   float64 `json:"current"`
}
