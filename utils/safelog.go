// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks personal and financial data in production
// ============================================================================

package utils

import (
	"fmt"
	"log"
	"regexp"
	"strings"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction enables masking of emails, access tokens and amounts.
	IsProduction = false

	// LogLevel filters SafeDebug/SafeInfo/SafeWarn output.
	LogLevel = LogLevelInfo
)

const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ConfigureLogging sets the masking mode and level, usually once from main.
func ConfigureLogging(production bool, level string) {
	IsProduction = production
	LogLevel = parseLogLevel(level)
}

func parseLogLevel(level string) int {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ============================================================================
// MASKING PATTERNS
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Plaid access/public/link tokens and sealed tokens.
	tokenRegex = regexp.MustCompile(`\b(access|public|link)-(sandbox|development|production)-[0-9a-fA-F-]+|enc:[A-Za-z0-9+/=]+`)

	amountRegex = regexp.MustCompile(`\$\s?-?\d+([.,]\d{1,2})?\b`)
)

// ============================================================================
// MASKING FUNCTIONS
// ============================================================================

// MaskString masks sensitive data in a string.
func MaskString(input string) string {
	if !IsProduction {
		return input
	}

	result := emailRegex.ReplaceAllString(input, "***@***.***")
	result = tokenRegex.ReplaceAllString(result, "***token***")
	result = amountRegex.ReplaceAllString(result, "$$***")
	return result
}

func MaskAmount(amount float64) string {
	if IsProduction {
		return "***"
	}
	return fmt.Sprintf("%.2f", amount)
}

func MaskEmail(email string) string {
	if !IsProduction {
		return email
	}
	at := strings.Index(email, "@")
	if at <= 1 {
		return "***@***.***"
	}
	return email[:1] + "***@***.***"
}

// MaskToken keeps the environment prefix of an access token.
func MaskToken(token string) string {
	if !IsProduction {
		return token
	}
	parts := strings.SplitN(token, "-", 3)
	if len(parts) == 3 {
		return parts[0] + "-" + parts[1] + "-***"
	}
	return "***"
}

// ============================================================================
// SAFE LOGGING FUNCTIONS
// ============================================================================

func SafeLog(format string, args ...interface{}) {
	log.Print(MaskString(fmt.Sprintf(format, args...)))
}

func SafeDebug(format string, args ...interface{}) {
	if LogLevel > LogLevelDebug {
		return
	}
	log.Printf("[DEBUG] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	if LogLevel > LogLevelInfo {
		return
	}
	log.Printf("[INFO] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	if LogLevel > LogLevelWarn {
		return
	}
	log.Printf("[WARN] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	log.Printf("[ERROR] %s", MaskString(fmt.Sprintf(format, args...)))
}

// ============================================================================
// DOMAIN LOGGING
// ============================================================================

// LogJobAction logs one step of a batch job for one user.
func LogJobAction(job string, action string, userID string) {
	log.Printf("[Job:%s] %s - User: %s", job, action, MaskEmail(userID))
}

func LogAuthAction(action string, email string, success bool) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	log.Printf("[Auth] %s - Email: %s Status: %s", action, MaskEmail(email), status)
}

func LogAPIRequest(method string, path string, userID string, statusCode int, duration string) {
	log.Printf("[API] %s %s - User: %s Status: %d Duration: %s",
		method,
		path,
		MaskEmail(userID),
		statusCode,
		duration)
}

func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

func LogStartup(appName string, version string, port string) {
	log.Printf("🚀 %s v%s starting...", appName, version)
	log.Printf("   Mode: %s", GetEnvMode())
	log.Printf("   Port: %s", port)
	log.Printf("   Log Level: %d", LogLevel)
	if IsProduction {
		log.Printf("   ⚠️  Production mode: Sensitive data will be masked in logs")
	}
}
