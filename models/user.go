package models

// ============================================================================
// USER DOCUMENT
// ============================================================================

// Field names a top-level attribute of a user document. Updates always
// replace the whole field.
type Field string

const (
	FieldPassword        Field = "Password"
	FieldTOTPSecret      Field = "TOTPSecret"
	FieldTOTPEnabled     Field = "TOTPEnabled"
	FieldChecklist       Field = "Checklist"
	FieldLinkedItems     Field = "LinkedItems"
	FieldNetworthHistory Field = "NetworthHistory"
	FieldMonthlySpending Field = "MonthlySpending"
)

// MaxSpendingHistory is the number of monthly spending snapshots kept per user.
const MaxSpendingHistory = 2

// User is the single document stored per email. A nil mapping means the
// attribute is absent from the stored document.
type User struct {
	UserID          string
	FirstName       string
	LastName        string
	Password        string
	TOTPSecret      string
	TOTPEnabled     bool
	Checklist       map[string]interface{}
	LinkedItems     map[string]Link
	NetworthHistory []NetworthSnapshot
	MonthlySpending []SpendingSnapshot
}

// NewUser returns a freshly signed-up user with every mapping present and empty.
func NewUser(email, firstName, lastName, passwordHash string) *User {
	return &User{
		UserID:          email,
		FirstName:       firstName,
		LastName:        lastName,
		Password:        passwordHash,
		Checklist:       map[string]interface{}{},
		LinkedItems:     map[string]Link{},
		NetworthHistory: []NetworthSnapshot{},
		MonthlySpending: []SpendingSnapshot{},
	}
}

// ============================================================================
// LINKS & ACCOUNTS
// ============================================================================

// Products a link can be created for.
const (
	ProductTransactions = "transactions"
	ProductAuth         = "auth"
	ProductLiabilities  = "liabilities"
	ProductInvestments  = "investments"
)

// Account types reported by the aggregator.
const (
	AccountTypeDepository = "depository"
	AccountTypeCredit     = "credit"
	AccountTypeLoan       = "loan"
	AccountTypeInvestment = "investment"
)

// Link is one institution connection and the accounts cached for it.
type Link struct {
	InstitutionID string             `json:"institution_id" dynamodbav:"institution_id" bson:"institution_id"`
	AccessToken   string             `json:"access_token" dynamodbav:"access_token" bson:"access_token"`
	ItemID        string             `json:"item_id" dynamodbav:"item_id" bson:"item_id"`
	Product       string             `json:"product" dynamodbav:"product" bson:"product"`
	Accounts      map[string]Account `json:"accounts" dynamodbav:"accounts" bson:"accounts"`
}

type Account struct {
	AccountID string  `json:"accountId" dynamodbav:"accountId" bson:"accountId"`
	Name      string  `json:"name" dynamodbav:"name" bson:"name"`
	Balance   float64 `json:"balance" dynamodbav:"balance" bson:"balance"`
	ItemID    string  `json:"item_id" dynamodbav:"item_id" bson:"item_id"`
	Type      string  `json:"type" dynamodbav:"type" bson:"type"`
}

// ============================================================================
// SNAPSHOTS
// ============================================================================

type NetworthSnapshot struct {
	Date     string `json:"Date" dynamodbav:"Date" bson:"Date"`
	Networth int64  `json:"Networth" dynamodbav:"Networth" bson:"Networth"`
}

type SpendingSnapshot struct {
	Date     string                    `json:"Date" dynamodbav:"Date" bson:"Date"`
	Spending map[string]CategoryAmount `json:"Spending" dynamodbav:"Spending" bson:"Spending"`
}

type CategoryAmount struct {
	Amount   float64 `json:"Amount" dynamodbav:"Amount" bson:"Amount"`
	Category string  `json:"Category" dynamodbav:"Category" bson:"Category"`
}
