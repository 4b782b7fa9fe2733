package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderConfig describes one market-data provider.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
}

// RiskConfig mirrors the RiskLimits row defaults applied at boot.
type RiskConfig struct {
	MaxOpenPositions         int
	MaxDailyLoss             decimal.Decimal
	MaxVixForEntry           decimal.Decimal
	VixHardReject            bool
	VixPositionSizeReduction decimal.Decimal
	MTFGatingEnabled         bool
	AutoCloseEnabled         bool
}

// ExitRuleConfig mirrors the ExitRules row defaults applied at boot.
type ExitRuleConfig struct {
	ProfitTargetPct     decimal.Decimal
	StopLossPct         decimal.Decimal
	TrailingStopPct     decimal.Decimal
	MinDaysToExpiration int
	MaxDaysInTrade      int
}

// Config is the fully-resolved process configuration.
type Config struct {
	Mode              string // PAPER or LIVE
	Debug             bool
	HTTPAddr          string
	JWTSecret         string
	WebhookHMACSecret string

	DatabaseURL string // postgres://... or a sqlite file path

	MaxSignalAgeMinutes      int
	DeduplicationTTLSeconds  int
	DeduplicationGranularity int

	BaseConfidence         int
	MinConfidenceThreshold int

	Risk RiskConfig
	Exit ExitRuleConfig

	PrimaryMarketDataProvider string
	Providers                 []ProviderConfig

	PreferredBroker    string
	LiveTradingEnabled bool
	TradierAPIKey      string
	TradierBaseURL     string
	AlpacaAPIKey       string
	AlpacaAPISecret    string
	AlpacaBaseURL      string

	TelegramBotToken string
	TelegramChatID   int64

	GEXRefreshSymbols []string
}

// Load builds a Config from the process environment, matching the teacher's
// "build defaults, then validate required fields" sequencing.
func Load() (*Config, error) {
	cfg := &Config{
		Mode:              getEnv("APP_MODE", "PAPER"),
		Debug:             getEnvBool("DEBUG", false),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		WebhookHMACSecret: os.Getenv("WEBHOOK_HMAC_SECRET"),
		DatabaseURL:       getEnv("DATABASE_URL", "data/signalengine.db"),

		MaxSignalAgeMinutes:      getEnvInt("MAX_SIGNAL_AGE_MINUTES", 15),
		DeduplicationTTLSeconds:  getEnvInt("DEDUPLICATION_TTL_SECONDS", 60),
		DeduplicationGranularity: getEnvInt("DEDUPLICATION_GRANULARITY_SECONDS", 60),

		BaseConfidence:         getEnvInt("BASE_CONFIDENCE", 50),
		MinConfidenceThreshold: getEnvInt("MIN_CONFIDENCE_THRESHOLD", 35),

		Risk: RiskConfig{
			MaxOpenPositions:         getEnvInt("RISK_MAX_OPEN_POSITIONS", 10),
			MaxDailyLoss:             getEnvDecimal("RISK_MAX_DAILY_LOSS", decimal.NewFromInt(1000)),
			MaxVixForEntry:           getEnvDecimal("RISK_MAX_VIX_FOR_ENTRY", decimal.NewFromInt(30)),
			VixHardReject:            getEnvBool("RISK_VIX_HARD_REJECT", false),
			VixPositionSizeReduction: getEnvDecimal("RISK_VIX_POSITION_SIZE_REDUCTION", decimal.NewFromFloat(0.5)),
			MTFGatingEnabled:         getEnvBool("RISK_MTF_GATING_ENABLED", true),
			AutoCloseEnabled:         getEnvBool("RISK_AUTO_CLOSE_ENABLED", true),
		},

		Exit: ExitRuleConfig{
			ProfitTargetPct:     getEnvDecimal("EXIT_PROFIT_TARGET_PCT", decimal.NewFromFloat(0.5)),
			StopLossPct:         getEnvDecimal("EXIT_STOP_LOSS_PCT", decimal.NewFromFloat(0.5)),
			TrailingStopPct:     getEnvDecimal("EXIT_TRAILING_STOP_PCT", decimal.NewFromFloat(0.2)),
			MinDaysToExpiration: getEnvInt("EXIT_MIN_DTE", 1),
			MaxDaysInTrade:      getEnvInt("EXIT_MAX_DAYS_IN_TRADE", 7),
		},

		PrimaryMarketDataProvider: getEnv("MARKET_DATA_PROVIDER", "primary"),

		PreferredBroker:    getEnv("PREFERRED_BROKER", "paper"),
		LiveTradingEnabled: getEnvBool("LIVE_TRADING_ENABLED", false),
		TradierAPIKey:      os.Getenv("TRADIER_API_KEY"),
		TradierBaseURL:     getEnv("TRADIER_BASE_URL", "https://sandbox.tradier.com"),
		AlpacaAPIKey:       os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret:    os.Getenv("ALPACA_API_SECRET"),
		AlpacaBaseURL:      getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		GEXRefreshSymbols: splitCSV(getEnv("GEX_REFRESH_SYMBOLS", "SPY,QQQ,IWM")),
	}

	cfg.Providers = loadProviders()

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.Mode != "PAPER" && cfg.Mode != "LIVE" {
		return nil, fmt.Errorf("invalid APP_MODE %q: must be PAPER or LIVE", cfg.Mode)
	}
	if cfg.JWTSecret == "" && !getEnvBool("ALLOW_INSECURE_NO_JWT", false) {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Mode == "LIVE" && cfg.LiveTradingEnabled && cfg.PreferredBroker == "paper" {
		return nil, fmt.Errorf("LIVE mode with LIVE_TRADING_ENABLED requires PREFERRED_BROKER to name a real broker")
	}

	return cfg, nil
}

func loadProviders() []ProviderConfig {
	names := splitCSV(getEnv("MARKET_DATA_PROVIDERS", "primary,secondary"))
	providers := make([]ProviderConfig, 0, len(names))
	for _, name := range names {
		key := strings.ToUpper(name) + "_API_KEY"
		urlKey := strings.ToUpper(name) + "_BASE_URL"
		providers = append(providers, ProviderConfig{
			Name:    name,
			APIKey:  os.Getenv(key),
			BaseURL: getEnv(urlKey, ""),
		})
	}
	return providers
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

