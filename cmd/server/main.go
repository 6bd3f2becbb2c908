package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"orderdesk/backend/internal/config"
	"orderdesk/backend/internal/db"
	"orderdesk/backend/internal/db/migrate"
	healthhandler "orderdesk/backend/internal/health/handler"
	"orderdesk/backend/internal/history"
	historyhandler "orderdesk/backend/internal/history/handler"
	historyrepo "orderdesk/backend/internal/history/repository"
	"orderdesk/backend/internal/identity"
	"orderdesk/backend/internal/realtime/hub"
	"orderdesk/backend/internal/realtime/presence"
	"orderdesk/backend/internal/realtime/server"
	recordrepo "orderdesk/backend/internal/record/repository"
	"orderdesk/backend/internal/telemetry"
	otelsetup "orderdesk/backend/internal/telemetry/otel"
	"orderdesk/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTelExporterEndpoint, "orderdesk-realtime", cfg.OTelExporterInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("telemetry: metrics: %v", err)
	}

	emitter := otelsetup.NewEventEmitter(providers.LoggerProvider)
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("telemetry: kafka producer: %v", err)
		}
		defer kafkaProducer.Close()
		emitter = telemetry.Combine(emitter, kafkaProducer)
		log.Printf("telemetry: emitting to kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	resolver, err := identity.NewResolver(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	if cfg.JWTPublicKey == "" {
		log.Println("identity: no JWT_PUBLIC_KEY set, accepting dev ?user= handshakes")
	}

	router := mux.NewRouter()

	var pinger healthhandler.Pinger
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				log.Fatalf("migrate: %v", err)
			}
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		pinger = pool

		histRepo := historyrepo.NewPostgresRepository(pool)
		recRepo := recordrepo.NewPostgresRepository(pool)
		journeys := history.NewReconstructor(histRepo, recRepo)
		historyhandler.New(journeys, histRepo).RegisterRoutes(router)
	} else {
		log.Println("db: DATABASE_URL not set, journey and history endpoints disabled")
	}

	tracker := presence.NewTracker(cfg.PresenceTTLDuration())
	h := hub.New(metrics)
	rt := server.New(server.Deps{
		Resolver:   resolver,
		Hub:        h,
		Tracker:    tracker,
		Metrics:    metrics,
		Emitter:    emitter,
		SendBuffer: cfg.SendBuffer,
	})
	rt.RegisterRoutes(router)
	tracker.StartSweeper(ctx, cfg.SweepIntervalDuration(), rt.OnExpired)

	healthhandler.New(pinger).RegisterRoutes(router)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("realtime server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down realtime server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	h.Close()
	cancel()

	// Let in-flight async telemetry emits finish before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(context.Background()); err != nil {
		log.Printf("telemetry: shutdown: %v", err)
	}
	log.Println("realtime server stopped")
}
