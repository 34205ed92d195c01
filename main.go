package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	alertapp "fleetops-cloud/internal/alerting/application"
	alertredis "fleetops-cloud/internal/alerting/infrastructure/redis"
	alerthttp "fleetops-cloud/internal/alerting/interfaces/http"
	"fleetops-cloud/internal/alerting/notify"
	"fleetops-cloud/internal/breakdown/application"
	"fleetops-cloud/internal/breakdown/application/eventbus"
	"fleetops-cloud/internal/breakdown/application/events"
	"fleetops-cloud/internal/breakdown/infrastructure/memory"
	breakdownpg "fleetops-cloud/internal/breakdown/infrastructure/postgres"
	"fleetops-cloud/internal/breakdown/infrastructure/redisstore"
	"fleetops-cloud/internal/breakdown/infrastructure/s3"
	breakdowninterfaces "fleetops-cloud/internal/breakdown/interfaces"
	breakdownhttp "fleetops-cloud/internal/breakdown/interfaces/http"
	"fleetops-cloud/internal/logging"
	"fleetops-cloud/internal/observability/metrics"
	"fleetops-cloud/internal/reporting"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// recordStore is what the pipeline and the report handler together need
// from a record backend.
type recordStore interface {
	application.RecordStore
	reporting.RecordLister
}

func main() {
	cfg := loadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "fleetops-cloud")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		logger.Fatal("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	var store recordStore
	switch cfg.RecordBackend {
	case "redis":
		redisStore, err := redisstore.NewStore(redisClient)
		if err != nil {
			logger.Fatal("redis record store error", zap.Error(err))
		}
		store = redisStore
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
		pgStore, err := breakdownpg.NewStore(db)
		if err != nil {
			logger.Fatal("postgres record store error", zap.Error(err))
		}
		store = pgStore
	case "memory":
		store = memory.NewStore()
		logger.Warn("using in-memory record store; records do not survive restarts")
	default:
		logger.Fatal("unknown record backend", zap.String("backend", cfg.RecordBackend))
	}

	archiverCtx, archiverCancel := context.WithTimeout(context.Background(), 10*time.Second)
	archiver, err := s3.NewArchiver(archiverCtx, s3.Config{
		Bucket:          cfg.RawBucket,
		Prefix:          cfg.RawPrefix,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		UsePathStyle:    cfg.S3PathStyle,
		Timeout:         cfg.S3Timeout,
	})
	archiverCancel()
	if err != nil {
		logger.Fatal("raw archiver error", zap.Error(err))
	}

	alertCfg, err := alertapp.LoadConfig()
	if err != nil {
		logger.Fatal("alerting config error", zap.Error(err))
	}
	sink, err := alertredis.NewMetricSink(redisClient, alertCfg.Namespace)
	if err != nil {
		logger.Fatal("metric sink error", zap.Error(err))
	}
	evaluator, err := alertapp.NewEvaluator(sink, alertCfg.Threshold, alertCfg.Window)
	if err != nil {
		logger.Fatal("alert evaluator error", zap.Error(err))
	}
	metrics.RegisterAlertWindowGauge(func() float64 {
		gaugeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		now := time.Now().UTC()
		count, err := sink.CountHighPriority(gaugeCtx, now.Add(-alertCfg.Window), now)
		if err != nil {
			return 0
		}
		return float64(count)
	})

	alertBroker := alerthttp.NewSSEBroker("alerts")
	channels := []notify.Channel{alertBroker}
	if alertCfg.WebhookURL != "" {
		tpl, err := notify.NewTemplate(alertCfg.Template)
		if err != nil {
			logger.Fatal("alert template error", zap.Error(err))
		}
		webhook, err := notify.NewWebhookChannel(alertCfg.WebhookURL, tpl)
		if err != nil {
			logger.Fatal("alert webhook error", zap.Error(err))
		}
		channels = append(channels, webhook)
	}
	if alertCfg.MQTT.BrokerURL != "" {
		mqttChannel, err := notify.NewMQTTChannel(notify.MQTTOptions{
			BrokerURL: alertCfg.MQTT.BrokerURL,
			Topic:     alertCfg.MQTT.Topic,
			ClientID:  alertCfg.MQTT.ClientID,
			Username:  alertCfg.MQTT.Username,
			Password:  alertCfg.MQTT.Password,
			QoS:       byte(alertCfg.MQTT.QoS),
		})
		if err != nil {
			logger.Fatal("mqtt channel error", zap.Error(err))
		}
		defer mqttChannel.Close()
		channels = append(channels, mqttChannel)
	}
	if alertCfg.AMQP.URL != "" {
		amqpChannel, err := notify.NewAMQPChannel(alertCfg.AMQP.URL, alertCfg.AMQP.Exchange, alertCfg.AMQP.RoutingKey)
		if err != nil {
			logger.Fatal("amqp channel error", zap.Error(err))
		}
		defer amqpChannel.Close()
		channels = append(channels, amqpChannel)
	}
	dispatcher, err := notify.NewDispatcher(notify.NewMultiChannel(channels...), logger,
		notify.WithRequestTimeout(alertCfg.NotifyTimeout))
	if err != nil {
		logger.Fatal("alert dispatcher error", zap.Error(err))
	}

	bus := eventbus.NewInMemoryBus()
	incidentBroker := alerthttp.NewSSEBroker("incidents")
	incidentConsumer, err := breakdowninterfaces.NewIncidentRecordedConsumer(incidentBroker)
	if err != nil {
		logger.Fatal("incident consumer error", zap.Error(err))
	}
	bus.Subscribe(eventbus.EventTypeOf[events.IncidentRecorded](), func(ctx context.Context, event any) error {
		evt, ok := event.(events.IncidentRecorded)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return incidentConsumer.Consume(ctx, evt)
	})

	pipeline, err := application.NewPipeline(archiver, store, sink, evaluator, logger,
		application.WithDispatcher(dispatcher),
		application.WithEventPublisher(bus),
	)
	if err != nil {
		logger.Fatal("pipeline error", zap.Error(err))
	}

	ingestHandler, err := breakdownhttp.NewIngestHandler(pipeline, logger)
	if err != nil {
		logger.Fatal("ingest handler error", zap.Error(err))
	}
	reportHandler, err := reporting.NewDailyReportHandler(store, logger)
	if err != nil {
		logger.Fatal("report handler error", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/breakdowns", ingestHandler)
	mux.Handle("/api/v1/breakdowns/stream", alerthttp.NewStreamHandler(incidentBroker, "incident"))
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(alertBroker, "alert"))
	mux.Handle("/api/v1/reports/daily", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
}

type config struct {
	HTTPAddr      string
	LogLevel      string
	LogFormat     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RecordBackend string
	DatabaseURL   string
	RawBucket     string
	RawPrefix     string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3PathStyle   bool
	S3Timeout     time.Duration
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		LogFormat:     getenvDefault("LOG_FORMAT", "json"),
		RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:       getenvIntDefault("REDIS_DB", 0),
		RecordBackend: getenvDefault("RECORD_BACKEND", "redis"),
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		RawBucket:     getenvDefault("RAW_BUCKET", ""),
		RawPrefix:     getenvDefault("RAW_PREFIX", "raw/"),
		S3Region:      getenvDefault("S3_REGION", "us-east-1"),
		S3Endpoint:    getenvDefault("S3_ENDPOINT", ""),
		S3AccessKey:   getenvDefault("S3_ACCESS_KEY", ""),
		S3SecretKey:   getenvDefault("S3_SECRET_KEY", ""),
		S3PathStyle:   getenvBoolDefault("S3_PATH_STYLE", false),
		S3Timeout:     getenvDuration("S3_TIMEOUT", 10*time.Second),
	}
	if cfg.RawBucket == "" {
		log.Fatal("RAW_BUCKET is required")
	}
	if cfg.RecordBackend == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required for the postgres record backend")
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

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
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

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)))
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

// Flush keeps event streams working behind the middleware.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
