// cmd/loan-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"loan-intake/internal/common/aws"
	"loan-intake/internal/common/camunda"
	"loan-intake/internal/common/config"
	"loan-intake/internal/common/database"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/observability"
	"loan-intake/internal/common/storage"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/httpapi"
	"loan-intake/internal/loan/documents"
	"loan-intake/internal/loan/formstore"
	"loan-intake/internal/loan/intake"
	"loan-intake/internal/loan/offers"
	"loan-intake/internal/loan/review"
	"loan-intake/internal/models"
	"loan-intake/internal/repository"
	"loan-intake/internal/search"
	"loan-intake/pkg/registry"

	checkpriorityrouting "loan-intake/internal/workers/application/check-priority-routing"
	checkserviceability "loan-intake/internal/workers/application/check-serviceability"
	sendnotification "loan-intake/internal/workers/application/send-notification"
	validateapplicationdata "loan-intake/internal/workers/application/validate-application-data"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting loan intake server...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		TracingEnabled: cfg.Tracing.Enabled,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("postgres migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := esClient.Ping(ctx); err != nil {
			return err
		}
		return esClient.EnsureIndex(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init MinIO with retry ---
	var files *storage.MinioStore
	err = retryWithBackoff(func() error {
		var err error
		files, err = storage.NewMinioStore(ctx, cfg.Storage, log)
		return err
	}, 10, 2*time.Second, zapLog, "MinIO connection")
	if err != nil {
		zapLog.Fatal("object storage failed after retries", zap.Error(err))
	}
	zapLog.Info("MinIO connected successfully")

	// --- Catalogs ---
	var docCatalog []models.DocumentDefinition
	var offerCatalog []models.LoanOffer
	if cfg.Catalog.Path != "" {
		catalog, err := registry.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			zapLog.Fatal("catalog load failed", zap.String("path", cfg.Catalog.Path), zap.Error(err))
		}
		docCatalog, offerCatalog = catalog.Documents, catalog.Offers
		zapLog.Info("Catalog loaded",
			zap.String("version", catalog.Version),
			zap.Int("documents", len(docCatalog)),
			zap.Int("offers", len(offerCatalog)),
		)
	}
	if len(docCatalog) == 0 {
		docCatalog = documents.DefaultCatalog()
	}

	validator, err := validation.NewValidator()
	if err != nil {
		zapLog.Fatal("section schemas failed to compile", zap.Error(err))
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	var notifier review.Notifier
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		notifier = zeebe
		zapLog.Info("Zeebe client connected successfully")
	}

	// --- Services ---
	repo := repository.NewPostgres(pg.DB, log.WithFields(map[string]interface{}{"component": "repository"}))
	store := formstore.New(repo, rdb.Client, cfg.Cache.DraftTTLDuration(), cfg.Cache.KeyPrefix,
		log.WithFields(map[string]interface{}{"component": "formstore"}))
	index := search.New(esClient.Client, esClient.Index, log.WithFields(map[string]interface{}{"component": "search"}))

	intakeSvc := intake.NewService(store, validator, index, docCatalog, log.WithFields(map[string]interface{}{"component": "intake"}))
	docSvc := documents.NewService(store, files, docCatalog, cfg.HTTP.MaxUploadBytes, log.WithFields(map[string]interface{}{"component": "documents"}))
	offerSvc := offers.NewService(store, offerCatalog, log.WithFields(map[string]interface{}{"component": "offers"}))
	reviewSvc := review.NewService(repo, store, index, notifier, validator, obs, review.Config{
		ReviewProcessID: cfg.Camunda.ReviewProcessID,
		StatusProcessID: cfg.Camunda.StatusProcessID,
	}, log.WithFields(map[string]interface{}{"component": "review"}))

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	if zeebe != nil {
		start := func(taskType string, handler camunda.JobHandler) {
			wc := config.GetWorkerConfig(cfg, taskType)
			if !wc.Enabled {
				zapLog.Info("worker disabled", zap.String("taskType", taskType))
				return
			}
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
				MaxJobsActive: wc.MaxJobsActive,
				Timeout:       config.GetDuration(wc.Timeout),
			}, handler, obs, log))
		}

		start(checkpriorityrouting.TaskType, checkpriorityrouting.NewHandler(checkpriorityrouting.LoadConfig(cfg), reviewSvc, rdb.Client, log))
		start(validateapplicationdata.TaskType, validateapplicationdata.NewHandler(validateapplicationdata.LoadConfig(cfg), store, validator, docCatalog, log))
		start(checkserviceability.TaskType, checkserviceability.NewHandler(checkserviceability.LoadConfig(cfg), store, log))

		awsClients, err := aws.NewClients(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Error("AWS clients unavailable, send-notification worker not started", zap.Error(err))
		} else {
			start(sendnotification.TaskType, sendnotification.NewHandler(sendnotification.LoadConfig(cfg), repo, awsClients.SES, awsClients.SNS, log))
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	}

	// --- HTTP Server ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]httpapi.Check{
		"postgres":      pg.Ping,
		"redis":         rdb.Ping,
		"elasticsearch": esClient.Ping,
		"storage":       files.Ping,
	}
	if zeebe != nil {
		checks["zeebe"] = zeebe.HealthCheck
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Intake:    intakeSvc,
		Documents: docSvc,
		Offers:    offerSvc,
		Review:    reviewSvc,
		Search:    index,
		Checks:    checks,
		Logger:    log.WithFields(map[string]interface{}{"component": "http"}),
	}, cfg.HTTP)

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("Loan intake server stopped")
}
