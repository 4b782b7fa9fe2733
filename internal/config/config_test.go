package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenUnset(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "PAPER", cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, []string{"SPY", "QQQ", "IWM"}, cfg.GEXRefreshSymbols)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_MODE", "LIVE")
	t.Setenv("RISK_MAX_OPEN_POSITIONS", "3")
	t.Setenv("GEX_REFRESH_SYMBOLS", "SPY, TSLA ,AAPL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "LIVE", cfg.Mode)
	assert.Equal(t, 3, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, []string{"SPY", "TSLA", "AAPL"}, cfg.GEXRefreshSymbols)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_MODE", "SIMULATION")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresJWTSecretUnlessInsecureAllowed(t *testing.T) {
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ALLOW_INSECURE_NO_JWT", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.JWTSecret)
}

func TestLoadRejectsLiveTradingWithPaperBroker(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_MODE", "LIVE")
	t.Setenv("LIVE_TRADING_ENABLED", "true")
	t.Setenv("PREFERRED_BROKER", "paper")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadParsesTelegramChatID(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
}

func TestLoadRejectsNonNumericTelegramChatID(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadProvidersReadsPerProviderKeys(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MARKET_DATA_PROVIDERS", "primary,secondary")
	t.Setenv("PRIMARY_API_KEY", "pkey")
	t.Setenv("SECONDARY_BASE_URL", "https://secondary.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "pkey", cfg.Providers[0].APIKey)
	assert.Equal(t, "https://secondary.example.com", cfg.Providers[1].BaseURL)
}
