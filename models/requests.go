package models

// ============================================================================
// AUTHENTICATION REQUESTS
// ============================================================================

type SignupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type DeleteUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserData is the document view returned on login and signup.
type UserData struct {
	Token           string                      `json:"token"`
	FirstName       string                      `json:"firstName"`
	LastName        string                      `json:"lastName"`
	Checklist       map[string]interface{}      `json:"checklist"`
	Items           map[string]Link             `json:"items"`
	NetworthHistory map[string]NetworthSnapshot `json:"networthHistory"`
	MonthlySpending map[string]SpendingSnapshot `json:"monthlySpending"`
}

type AuthResponse struct {
	Data UserData `json:"data"`
}

// NewUserData builds the response view of a user document. Absent mappings
// are reported as empty.
func NewUserData(token string, u *User) UserData {
	data := UserData{
		Token:           token,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Checklist:       u.Checklist,
		Items:           u.LinkedItems,
		NetworthHistory: Indexed(u.NetworthHistory),
		MonthlySpending: Indexed(u.MonthlySpending),
	}
	if data.Checklist == nil {
		data.Checklist = map[string]interface{}{}
	}
	if data.Items == nil {
		data.Items = map[string]Link{}
	}
	return data
}

// ============================================================================
// DOCUMENT UPDATES
// ============================================================================

type ChecklistRequest struct {
	Email     string                 `json:"email" binding:"required"`
	Checklist map[string]interface{} `json:"checklist" binding:"required"`
}

type ItemsRequest struct {
	Email string          `json:"email" binding:"required"`
	Items map[string]Link `json:"items" binding:"required"`
}

type TransactionsRequest struct {
	Email string `json:"email" binding:"required"`
}

// ============================================================================
// AGGREGATOR REQUESTS
// ============================================================================

type LinkTokenRequest struct {
	UserToken string `json:"userToken" binding:"required"`
	Type      string `json:"type" binding:"required"`
}

type PublicTokenRequest struct {
	PublicToken string `json:"public_token" binding:"required"`
}

type AccessTokenRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// ============================================================================
// 2FA
// ============================================================================

type TOTPSetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

type VerifyTOTPRequest struct {
	Code string `json:"code" binding:"required,len=6"`
}

type DisableTOTPRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}
