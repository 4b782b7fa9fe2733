package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/parsers"
	"github.com/optionpulse/signalengine/internal/pipeline"
	"github.com/optionpulse/signalengine/internal/store"
)

func newTestServer(t *testing.T, jwtSecret, hmacSecret string) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := parsers.NewRegistry()
	p := pipeline.New(reg, st, pipeline.Config{
		MaxSignalAge:             time.Hour,
		DeduplicationTTL:         time.Minute,
		DeduplicationGranularity: time.Minute,
	})
	tr := observability.NewDegradedModeTracker(3, time.Minute)
	health := observability.NewHealthCheckService(tr, func() error { return nil })
	metrics := observability.NewMetricsService(prometheus.NewRegistry())
	auditQuery := observability.NewAuditQueryService(st)

	s := NewServer(p, st, health, metrics, auditQuery, jwtSecret, hmacSecret)
	return s, st
}

func TestHandleHealthReturnsOKWhenHealthy(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleWebhookWithoutHMACSecretAccepts(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	body := `{"ticker":"SPY","direction":"CALL","current_price":450.25}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "processing_time_ms")
}

func TestHandleWebhookRejectsMalformedJSON(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhookAcceptsParseableButNonActionablePayload(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"unrelated":"field"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleWebhookNonPostReturnsMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleWebhookRejectsBadSignatureWhenSecretConfigured(t *testing.T) {
	s, _ := newTestServer(t, "secret", "webhooksecret")

	body := `{"ticker":"SPY"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("x-signature", "bogus")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsPositionsRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics/positions", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsPositionsSucceedsWithValidBearerToken(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics/positions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsPositionsRejectsTokenSignedWithWrongSecret(t *testing.T) {
	s, _ := newTestServer(t, "secret", "")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics/positions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRiskLimitsFromUpdateSetsActiveTrue(t *testing.T) {
	in := riskLimitsUpdate{Mode: "PAPER", MaxOpenPositions: 3, MaxVixForEntry: 28.5}

	out := riskLimitsFromUpdate(in)
	assert.True(t, out.Active)
	assert.Equal(t, 3, out.MaxOpenPositions)
	assert.True(t, out.MaxVixForEntry.Equal(decimal.NewFromFloat(28.5)))
}
