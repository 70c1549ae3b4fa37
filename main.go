package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	alarmrepo "shipboard-health/internal/alarms/infrastructure/postgres"
	"shipboard-health/internal/assessment/application"
	assessment "shipboard-health/internal/assessment/domain"
	reportrepo "shipboard-health/internal/assessment/infrastructure/postgres"
	assessmenthttp "shipboard-health/internal/assessment/interfaces/http"
	assessmentnotify "shipboard-health/internal/assessment/notify"
	"shipboard-health/internal/audit"
	"shipboard-health/internal/auth"
	equipmentrepo "shipboard-health/internal/equipment/infrastructure/postgres"
	"shipboard-health/internal/observability/metrics"
	telemetrypostgres "shipboard-health/internal/telemetry/infrastructure/postgres"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	assessmentCfg, err := application.LoadConfig(cfg.AssessmentConfigPath)
	if err != nil {
		logger.Fatalf("assessment config error: %v", err)
	}

	readingQuery := telemetrypostgres.NewReadingQuery(db)
	alarmRepo := alarmrepo.NewAlarmRepository(db)
	equipmentRepo := equipmentrepo.NewRepository(db)
	reports := reportrepo.NewReportRepository(db)
	equipmentChecker := auth.NewEquipmentChecker(equipmentRepo)

	broker := assessmenthttp.NewSSEBroker()
	notifiers := []application.ResultNotifier{broker}
	if cfg.WebhookURL != "" {
		webhookOpts := []assessmentnotify.WebhookOption{assessmentnotify.WithFormat(cfg.WebhookFormat)}
		if cfg.WebhookAuth != "" {
			webhookOpts = append(webhookOpts, assessmentnotify.WithHeader("Authorization", cfg.WebhookAuth))
		}
		channel, err := assessmentnotify.NewWebhookChannel(cfg.WebhookURL, webhookOpts...)
		if err != nil {
			logger.Fatalf("assessment webhook error: %v", err)
		}
		riskNotifier, err := assessmentnotify.NewNotifier(channel, nil,
			assessmentnotify.WithMinRisk(assessment.FaultRiskLevel(cfg.WebhookMinRisk)),
			assessmentnotify.WithEquipmentReader(equipmentRepo),
			assessmentnotify.WithCooldown(cfg.WebhookCooldown),
			assessmentnotify.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("assessment notifier error: %v", err)
		}
		notifiers = append(notifiers, riskNotifier)
	}
	if cfg.NATSURL != "" {
		publisher, err := assessmentnotify.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Fatalf("nats connect error: %v", err)
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	service, err := application.NewService(readingQuery, alarmRepo, equipmentRepo, reports,
		application.WithConfig(assessmentCfg),
		application.WithNotifier(assessmentnotify.NewMultiNotifier(notifiers...)),
		application.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("assessment service error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.AssessmentConfigPath != "" {
		go func() {
			if err := application.WatchConfig(ctx, cfg.AssessmentConfigPath, logger, service.UpdateConfig); err != nil {
				logger.Printf("assessment config watch stopped: %v", err)
			}
		}()
	}

	handler, err := assessmenthttp.NewHandler(service, equipmentChecker,
		assessmenthttp.WithAuditLogger(audit.NewRepository(db)),
	)
	if err != nil {
		logger.Fatalf("assessment handler error: %v", err)
	}
	timed := requestTimeout(handler, cfg.AssessmentTimeout)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/equipment/", timed)
	mux.Handle("/api/v1/reports", timed)
	mux.Handle("/api/v1/reports/", timed)
	mux.Handle("/api/v1/assessments/stream", assessmenthttp.NewStreamHandler(broker, equipmentChecker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

type config struct {
	DatabaseURL          string
	HTTPAddr             string
	JWTSecret            string
	AssessmentConfigPath string
	AssessmentTimeout    time.Duration
	WebhookURL           string
	WebhookFormat        string
	WebhookAuth          string
	WebhookMinRisk       string
	WebhookCooldown      time.Duration
	NATSURL              string
	NATSSubject          string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AssessmentConfigPath: getenvDefault("ASSESSMENT_CONFIG", ""),
		AssessmentTimeout:    getenvDuration("ASSESSMENT_TIMEOUT", 30*time.Second),
		WebhookURL:           getenvDefault("ASSESSMENT_WEBHOOK_URL", ""),
		WebhookFormat:        getenvDefault("ASSESSMENT_WEBHOOK_FORMAT", assessmentnotify.FormatText),
		WebhookAuth:          getenvDefault("ASSESSMENT_WEBHOOK_AUTH", ""),
		WebhookMinRisk:       getenvDefault("ASSESSMENT_WEBHOOK_MIN_RISK", string(assessment.RiskHigh)),
		WebhookCooldown:      getenvDuration("ASSESSMENT_WEBHOOK_COOLDOWN", 0),
		NATSURL:              getenvDefault("NATS_URL", ""),
		NATSSubject:          getenvDefault("NATS_SUBJECT", assessmentnotify.DefaultNATSSubject),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if assessment.FaultRiskLevel(cfg.WebhookMinRisk).Rank() == 0 {
		log.Fatalf("ASSESSMENT_WEBHOOK_MIN_RISK must be one of low, medium, high, critical")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func requestTimeout(next http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer when it supports flushing.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
