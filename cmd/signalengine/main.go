// Command signalengine runs the options-trading signal pipeline: webhook
// ingestion, entry/exit orchestration, paper or live execution, and the
// supporting HTTP surface. Startup sequencing (load env, build config, open
// store, construct singletons, start background workers, wait on a signal
// channel) follows cmd/polybot/main.go (teacher).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/broker"
	"github.com/optionpulse/signalengine/internal/config"
	"github.com/optionpulse/signalengine/internal/httpapi"
	"github.com/optionpulse/signalengine/internal/marketdata"
	"github.com/optionpulse/signalengine/internal/notify"
	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/parsers"
	"github.com/optionpulse/signalengine/internal/pipeline"
	"github.com/optionpulse/signalengine/internal/ratelimiter"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
	"github.com/optionpulse/signalengine/internal/workers"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	mode := types.OrderMode(cfg.Mode)

	log.Info().Str("version", version).Str("mode", cfg.Mode).Msg("signalengine starting")

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	seedDefaults(st, cfg, mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := ratelimiter.NewManager()
	for _, p := range cfg.Providers {
		limiter.Register(p.Name, 60, 60, time.Minute)
	}

	var providers []marketdata.Provider
	var primary marketdata.Provider
	for _, p := range cfg.Providers {
		prov := marketdata.NewHTTPProvider(p.Name, p.BaseURL, p.APIKey, 5*time.Second)
		if p.Name == cfg.PrimaryMarketDataProvider {
			primary = prov
		} else {
			providers = append(providers, prov)
		}
	}
	md := marketdata.NewService(primary, providers, limiter)

	registry := parsers.NewRegistry()
	pl := pipeline.New(registry, st, pipeline.Config{
		MaxSignalAge:             time.Duration(cfg.MaxSignalAgeMinutes) * time.Minute,
		DeduplicationTTL:         time.Duration(cfg.DeduplicationTTLSeconds) * time.Second,
		DeduplicationGranularity: time.Duration(cfg.DeduplicationGranularity) * time.Second,
	})

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsService(reg)
	degraded := observability.NewDegradedModeTracker(3, 2*time.Minute)
	health := observability.NewHealthCheckService(degraded, func() error { return pingStore(st) })

	telegramSink, err := notify.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("telegram sink disabled")
		telegramSink = nil
	}
	var auditSink observability.AuditSink
	if telegramSink != nil {
		auditSink = telegramSink
	}
	audit := observability.NewAuditLogger(st, auditSink)
	auditQuery := observability.NewAuditQueryService(st)

	paperBroker := broker.NewPaperAdapter()
	liveBroker := selectLiveBroker(cfg)

	startWorkers(ctx, st, mode, md, paperBroker, liveBroker, audit, metrics, degraded, cfg)

	server := httpapi.NewServer(pl, st, health, metrics, auditQuery, cfg.JWTSecret, cfg.WebhookHMACSecret)
	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("goodbye")
}

func pingStore(st *store.Store) error {
	_, err := st.ActiveRiskLimits(context.Background(), types.ModePaper)
	if err != nil {
		if _, ok := err.(*store.NotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

func selectLiveBroker(cfg *config.Config) broker.Adapter {
	switch cfg.PreferredBroker {
	case "tradier":
		return broker.NewTradierAdapter(cfg.TradierBaseURL, cfg.TradierAPIKey)
	case "alpaca":
		return broker.NewAlpacaAdapter(cfg.AlpacaBaseURL, cfg.AlpacaAPIKey, cfg.AlpacaAPISecret)
	default:
		return nil
	}
}

func seedDefaults(st *store.Store, cfg *config.Config, mode types.OrderMode) {
	ctx := context.Background()
	if _, err := st.ActiveRiskLimits(ctx, mode); err != nil {
		risk := workers.ConfigRiskToTypes(mode, cfg.Risk)
		if err := st.SaveRiskLimits(ctx, &risk); err != nil {
			log.Error().Err(err).Msg("failed to seed default risk limits")
		}
	}
	if _, err := st.ActiveExitRules(ctx, mode); err != nil {
		exitRules := workers.ConfigExitToTypes(mode, cfg.Exit)
		if err := st.SaveExitRules(ctx, &exitRules); err != nil {
			log.Error().Err(err).Msg("failed to seed default exit rules")
		}
	}
}

func startWorkers(ctx context.Context, st *store.Store, mode types.OrderMode, md *marketdata.Service, paperBroker, liveBroker broker.Adapter, audit *observability.AuditLogger, metrics *observability.MetricsService, degraded *observability.DegradedModeTracker, cfg *config.Config) {
	go workers.NewSignalProcessor(st, mode, audit, metrics, degraded).Run(ctx)
	go workers.NewOrderCreator(st, mode).Run(ctx)
	go workers.NewPaperExecutor(st, md, paperBroker, audit, metrics).Run(ctx)
	go workers.NewPositionRefresher(st, md, metrics).Run(ctx)
	go workers.NewExitMonitor(st, mode, audit, metrics).Run(ctx)

	if mode == types.ModeLive && cfg.LiveTradingEnabled && liveBroker != nil {
		go workers.NewOrderPoller(st, liveBroker).Run(ctx)
	}

	go workers.NewGEXRefresher(st, md, workers.NewDemoGEXProvider(), cfg.GEXRefreshSymbols, degraded).Run(ctx)
}
