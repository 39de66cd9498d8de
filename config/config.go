package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverDynamo   = "dynamodb"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port           string
	FrontendURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	RateLimit      int
	Production     bool
	LogLevel       string
	DataEncryptKey string

	Plaid PlaidConfig
	Store StoreConfig
	Jobs  JobsConfig
}

type PlaidConfig struct {
	ClientID           string
	Secret             string
	Env                string
	Products           []string
	CountryCodes       []string
	RedirectURI        string
	AndroidPackageName string
}

type StoreConfig struct {
	Driver         string
	DynamoTable    string
	AWSRegion      string
	DynamoEndpoint string
	DatabaseURL    string
	MongoURL       string
	MongoDatabase  string
}

type JobsConfig struct {
	Enabled          bool
	Concurrency      int
	ScanPageSize     int
	RedisAddr        string
	BalanceSchedule  string
	NetworthSchedule string
	SpendingSchedule string
}

// Load reads the configuration from the environment. Call godotenv.Load
// first when a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		JWTSecret:      firstEnv("JWT_SECRET", "SECRET"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		DataEncryptKey: os.Getenv("DATA_ENCRYPTION_KEY"),
		Production: os.Getenv("GIN_MODE") == "release" ||
			os.Getenv("ENVIRONMENT") == "production" ||
			os.Getenv("ENV") == "production",
		Plaid: PlaidConfig{
			ClientID:           os.Getenv("PLAID_CLIENT_ID"),
			Secret:             os.Getenv("PLAID_SECRET"),
			Env:                getEnv("PLAID_ENV", "sandbox"),
			Products:           splitList(getEnv("PLAID_PRODUCTS", "transactions")),
			CountryCodes:       splitList(getEnv("PLAID_COUNTRY_CODES", "US")),
			RedirectURI:        os.Getenv("PLAID_REDIRECT_URI"),
			AndroidPackageName: os.Getenv("PLAID_ANDROID_PACKAGE_NAME"),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", DriverDynamo)),
			DynamoTable:    getEnv("DYNAMODB_TABLE", "AstroDart.Users"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			MongoURL:       os.Getenv("MONGODB_URL"),
			MongoDatabase:  getEnv("MONGODB_DATABASE", "astrodart"),
		},
		Jobs: JobsConfig{
			RedisAddr:        os.Getenv("REDIS_ADDR"),
			BalanceSchedule:  getEnv("BALANCE_SCHEDULE", "0 8,17 * * *"),
			NetworthSchedule: getEnv("NETWORTH_SCHEDULE", "0 9 1 * *"),
			SpendingSchedule: getEnv("SPENDING_SCHEDULE", "0 1 1 * *"),
		},
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getInt("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.Jobs.Concurrency, err = getInt("JOB_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.Jobs.ScanPageSize, err = getInt("SCAN_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.Jobs.Enabled, err = getBool("JOBS_ENABLED", true); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case DriverDynamo, DriverPostgres, DriverMongo, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.DataEncryptKey != "" && len(cfg.DataEncryptKey) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
