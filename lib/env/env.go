package env

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// Bungie API
	BungieAPIKey        string
	BungieURLBase       string
	BungieStatsURLBase  string
	BungieRequestsPerS  float64
	BungieStatsRequests float64

	// Logging
	LogLevel   string
	StdoutPath string
	StderrPath string

	// Sentry (optional)
	SentryDSN   string
	Environment string
	Release     string

	// Metrics (optional)
	MetricsPort    string
	PushgatewayURL string
)

func init() {
	// Load .env file (ignore error - variables may be set via environment)
	godotenv.Load()

	BungieAPIKey = getEnv("BUNGIE_API_KEY")
	BungieURLBase = getEnvWithDefault("BUNGIE_URL_BASE", "https://www.bungie.net")
	BungieStatsURLBase = getEnvWithDefault("BUNGIE_STATS_URL_BASE", "https://stats.bungie.net")
	BungieRequestsPerS = getFloatEnv("BUNGIE_RPS", 12)
	BungieStatsRequests = getFloatEnv("BUNGIE_STATS_RPS", 40)

	LogLevel = getEnv("LOG_LEVEL")
	StdoutPath = getEnv("STDOUT")
	StderrPath = getEnv("STDERR")

	SentryDSN = getEnv("SENTRY_DSN")
	Environment = getEnvWithDefault("ENVIRONMENT", "development")
	Release = getEnv("RELEASE")

	MetricsPort = getEnv("METRICS_PORT")
	PushgatewayURL = getEnv("PUSHGATEWAY_URL")
}

func getEnv(key string) string {
	return os.Getenv(key)
}

func getEnvWithDefault(key string, defaultValue string) string {
	if val := getEnv(key); val != "" {
		return val
	}
	return defaultValue
}

// getFloatEnv falls back to the default when the variable is unset or not a positive number
func getFloatEnv(key string, defaultValue float64) float64 {
	val := getEnv(key)
	if val == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return defaultValue
	}
	return f
}
