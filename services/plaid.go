package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/LovationAdmin/astrodart-api/config"
	"github.com/LovationAdmin/astrodart-api/models"
	"github.com/LovationAdmin/astrodart-api/utils"
)

const (
	plaidDateLayout = "2006-01-02"
	linkClientName  = "AstroDart"
)

type PlaidService struct {
	Client *plaid.APIClient
	cfg    config.PlaidConfig
	cipher *utils.TokenCipher
}

// NewPlaidService builds a client for cfg.Env. A nil cipher leaves access
// tokens unsealed.
func NewPlaidService(cfg config.PlaidConfig, cipher *utils.TokenCipher) *PlaidService {
	var env plaid.Environment
	switch cfg.Env {
	case "production":
		env = plaid.Production
	case "development":
		env = plaid.Development
	default:
		env = plaid.Sandbox
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(env)

	return &PlaidService{
		Client: plaid.NewAPIClient(configuration),
		cfg:    cfg,
		cipher: cipher,
	}
}

// Products returns the products configured for this deployment.
func (s *PlaidService) Products() []string {
	return s.cfg.Products
}

// CreateLinkToken initializes Plaid Link for one product. auth and
// liabilities links also request transactions.
func (s *PlaidService) CreateLinkToken(ctx context.Context, userToken string, product string) (plaid.LinkTokenCreateResponse, error) {
	requested, err := plaid.NewProductsFromValue(product)
	if err != nil {
		return plaid.LinkTokenCreateResponse{}, fmt.Errorf("unsupported product %q", product)
	}
	products := []plaid.Products{*requested}
	if product == models.ProductAuth || product == models.ProductLiabilities {
		products = append(products, plaid.PRODUCTS_TRANSACTIONS)
	}

	countryCodes := make([]plaid.CountryCode, 0, len(s.cfg.CountryCodes))
	for _, code := range s.cfg.CountryCodes {
		countryCodes = append(countryCodes, plaid.CountryCode(strings.ToUpper(code)))
	}

	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userToken,
	}
	request := plaid.NewLinkTokenCreateRequest(linkClientName, "en", countryCodes, user)
	request.SetProducts(products)
	if s.cfg.RedirectURI != "" {
		request.SetRedirectUri(s.cfg.RedirectURI)
	}
	if s.cfg.AndroidPackageName != "" {
		request.SetAndroidPackageName(s.cfg.AndroidPackageName)
	}

	resp, _, err := s.Client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		log.Printf("❌ Plaid CreateLinkToken failed: %v", formatPlaidError(err))
		return plaid.LinkTokenCreateResponse{}, formatPlaidError(err)
	}

	return resp, nil
}

// ExchangePublicToken trades a Link public token for a durable access token.
// The returned access token is sealed when a cipher is configured.
func (s *PlaidService) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)

	resp, _, err := s.Client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", formatPlaidError(err)
	}

	accessToken, err := s.cipher.Seal(resp.GetAccessToken())
	if err != nil {
		return "", "", fmt.Errorf("seal access token: %w", err)
	}
	return accessToken, resp.GetItemId(), nil
}

func (s *PlaidService) GetBalances(ctx context.Context, accessToken string) ([]models.AccountBalance, error) {
	token, err := s.cipher.Open(accessToken)
	if err != nil {
		return nil, err
	}
	request := plaid.NewAccountsBalanceGetRequest(token)

	resp, _, err := s.Client.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
	if err != nil {
		return nil, formatPlaidError(err)
	}

	accounts := make([]models.AccountBalance, 0, len(resp.GetAccounts()))
	for _, acc := range resp.GetAccounts() {
		balances := acc.GetBalances()
		accounts = append(accounts, models.AccountBalance{
			AccountID: acc.GetAccountId(),
			Name:      acc.GetName(),
			Type:      string(acc.GetType()),
			Current:   balances.GetCurrent(),
		})
	}
	return accounts, nil
}

// GetTransactions pages through every transaction between start and end.
func (s *PlaidService) GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error) {
	token, err := s.cipher.Open(accessToken)
	if err != nil {
		return nil, err
	}

	fetch := func(offset int32) ([]models.Transaction, int32, error) {
		request := plaid.NewTransactionsGetRequest(token, start.Format(plaidDateLayout), end.Format(plaidDateLayout))
		if offset > 0 {
			options := plaid.NewTransactionsGetRequestOptions()
			options.SetOffset(offset)
			request.SetOptions(*options)
		}

		resp, _, err := s.Client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, 0, formatPlaidError(err)
		}

		page := make([]models.Transaction, 0, len(resp.GetTransactions()))
		for _, tx := range resp.GetTransactions() {
			page = append(page, models.Transaction{
				TransactionID: tx.GetTransactionId(),
				AccountID:     tx.GetAccountId(),
				Name:          tx.GetName(),
				Amount:        tx.GetAmount(),
				Date:          tx.GetDate(),
				Category:      tx.GetCategory(),
			})
		}
		return page, resp.GetTotalTransactions(), nil
	}

	return collectTransactions(fetch)
}

// collectTransactions requests pages by offset until total is reached. An
// empty page ends the loop early.
func collectTransactions(fetch func(offset int32) ([]models.Transaction, int32, error)) ([]models.Transaction, error) {
	transactions, total, err := fetch(0)
	if err != nil {
		return nil, err
	}
	for int32(len(transactions)) < total {
		page, _, err := fetch(int32(len(transactions)))
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		transactions = append(transactions, page...)
	}
	return transactions, nil
}

func (s *PlaidService) GetAuth(ctx context.Context, accessToken string) (plaid.AuthGetResponse, error) {
	token, err := s.cipher.Open(accessToken)
	if err != nil {
		return plaid.AuthGetResponse{}, err
	}
	request := plaid.NewAuthGetRequest(token)

	resp, _, err := s.Client.PlaidApi.AuthGet(ctx).AuthGetRequest(*request).Execute()
	if err != nil {
		return plaid.AuthGetResponse{}, formatPlaidError(err)
	}
	return resp, nil
}

func (s *PlaidService) GetLiabilities(ctx context.Context, accessToken string) (plaid.LiabilitiesGetResponse, error) {
	token, err := s.cipher.Open(accessToken)
	if err != nil {
		return plaid.LiabilitiesGetResponse{}, err
	}
	request := plaid.NewLiabilitiesGetRequest(token)

	resp, _, err := s.Client.PlaidApi.LiabilitiesGet(ctx).LiabilitiesGetRequest(*request).Execute()
	if err != nil {
		return plaid.LiabilitiesGetResponse{}, formatPlaidError(err)
	}
	return resp, nil
}

func (s *PlaidService) GetInvestments(ctx context.Context, accessToken string) (plaid.InvestmentsHoldingsGetResponse, error) {
	token, err := s.cipher.Open(accessToken)
	if err != nil {
		return plaid.InvestmentsHoldingsGetResponse{}, err
	}
	request := plaid.NewInvestmentsHoldingsGetRequest(token)

	resp, _, err := s.Client.PlaidApi.InvestmentsHoldingsGet(ctx).InvestmentsHoldingsGetRequest(*request).Execute()
	if err != nil {
		return plaid.InvestmentsHoldingsGetResponse{}, formatPlaidError(err)
	}
	return resp, nil
}

func (s *PlaidService) GetCategories(ctx context.Context) ([]plaid.Category, error) {
	resp, _, err := s.Client.PlaidApi.CategoriesGet(ctx).Body(map[string]interface{}{}).Execute()
	if err != nil {
		return nil, formatPlaidError(err)
	}
	return resp.GetCategories(), nil
}

// Helper for error formatting
func formatPlaidError(err error) error {
	if plaidErr, ok := err.(plaid.GenericOpenAPIError); ok {
		return fmt.Errorf("plaid error: %s", string(plaidErr.Body()))
	}
	return err
}
