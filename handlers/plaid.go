package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/LovationAdmin/astrodart-api/middleware"
	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/services"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

// Aggregator is the Plaid surface the HTTP layer exposes.
type Aggregator interface {
	Products() []string
	CreateLinkToken(ctx context.Context, userToken string, product string) (plaid.LinkTokenCreateResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error)
	GetAuth(ctx context.Context, accessToken string) (plaid.AuthGetResponse, error)
	GetBalances(ctx context.Context, accessToken string) ([]models.AccountBalance, error)
	GetLiabilities(ctx context.Context, accessToken string) (plaid.LiabilitiesGetResponse, error)
	GetInvestments(ctx context.Context, accessToken string) (plaid.InvestmentsHoldingsGetResponse, error)
	GetCategories(ctx context.Context) ([]plaid.Category, error)
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error)
}

type PlaidHandler struct {
	Plaid        Aggregator
	Store        store.Store
	Now          func() time.Time
	transactions *services.TransactionService
}

func NewPlaidHandler(agg Aggregator, s store.Store) *PlaidHandler {
	return &PlaidHandler{
		Plaid:        agg,
		Store:        s,
		transactions: services.NewTransactionService(agg),
		Now:          time.Now,
	}
}

// linkedToken binds the request and checks that its access token belongs to
// one of the caller's linked items. It writes the error response itself.
func (h *PlaidHandler) linkedToken(c *gin.Context) (string, bool) {
	var req models.AccessTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}

	user, err := h.Store.Get(c.Request.Context(), userID)
	if err != nil {
		storeError(c, "load account", err)
		return "", false
	}
	for _, link := range user.LinkedItems {
		if link.AccessToken != "" && link.AccessToken == req.AccessToken {
			return req.AccessToken, true
		}
	}
	utils.SafeWarn("Access token rejected for %s: not a linked item", userID)
	c.JSON(http.StatusForbidden, gin.H{"error": "Access token is not linked to this account"})
	return "", false
}

func aggregatorError(c *gin.Context, action string, err error) {
	utils.SafeError("Plaid %s failed: %v", action, err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to " + action})
}

// Info reports the configured products. Tokens are never held in process
// state, so none are returned.
func (h *PlaidHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.Plaid.Products()})
}

func (h *PlaidHandler) CreateLinkToken(c *gin.Context) {
	var req models.LinkTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Plaid.CreateLinkToken(c.Request.Context(), req.UserToken, req.Type)
	if err != nil {
		aggregatorError(c, "create link token", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PlaidHandler) SetAccessToken(c *gin.Context) {
	var req models.PublicTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessToken, itemID, err := h.Plaid.ExchangePublicToken(c.Request.Context(), req.PublicToken)
	if err != nil {
		aggregatorError(c, "exchange public token", err)
		return
	}

	utils.SafeInfo("Item %s linked for %s", itemID, middleware.GetUserID(c))
	c.JSON(http.StatusOK, models.AccessTokenResponse{
		AccessToken: accessToken,
		ItemID:      itemID,
	})
}

func (h *PlaidHandler) Auth(c *gin.Context) {
	accessToken, ok := h.linkedToken(c)
	if !ok {
		return
	}
	resp, err := h.Plaid.GetAuth(c.Request.Context(), accessToken)
	if err != nil {
		aggregatorError(c, "get auth", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PlaidHandler) Balance(c *gin.Context) {
	accessToken, ok := h.linkedToken(c)
	if !ok {
		return
	}
	accounts, err := h.Plaid.GetBalances(c.Request.Context(), accessToken)
	if err != nil {
		aggregatorError(c, "get balances", err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *PlaidHandler) Liabilities(c *gin.Context) {
	accessToken, ok := h.linkedToken(c)
	if !ok {
		return
	}
	resp, err := h.Plaid.GetLiabilities(c.Request.Context(), accessToken)
	if err != nil {
		aggregatorError(c, "get liabilities", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PlaidHandler) Investments(c *gin.Context) {
	accessToken, ok := h.linkedToken(c)
	if !ok {
		return
	}
	resp, err := h.Plaid.GetInvestments(c.Request.Context(), accessToken)
	if err != nil {
		aggregatorError(c, "get investments", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PlaidHandler) Categories(c *gin.Context) {
	categories, err := h.Plaid.GetCategories(c.Request.Context())
	if err != nil {
		aggregatorError(c, "get categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Transactions lists this month's transactions across the caller's cash and
// credit accounts.
func (h *PlaidHandler) Transactions(c *gin.Context) {
	var req models.TransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !authorizedEmail(c, req.Email) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Get(ctx, middleware.GetUserID(c))
	if err != nil {
		storeError(c, "load account", err)
		return
	}

	transactions, err := h.transactions.ForUser(ctx, user, services.CurrentMonth(h.Now()))
	if err != nil {
		aggregatorError(c, "get transactions", err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}
