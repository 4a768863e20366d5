// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lifelink-workers/internal/common/aws"
	"lifelink-workers/internal/common/camunda"
	"lifelink-workers/internal/common/config"
	"lifelink-workers/internal/common/database"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/donorindex"
	"lifelink-workers/internal/donorstore"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/scheduler"

	cds "lifelink-workers/internal/workers/matching/calculate-donor-score"
	nmd "lifelink-workers/internal/workers/matching/notify-matched-donors"
	rd "lifelink-workers/internal/workers/matching/rank-donors"
	rdn "lifelink-workers/internal/workers/matching/record-donation"
	rda "lifelink-workers/internal/workers/matching/refresh-donor-availability"
	sdi "lifelink-workers/internal/workers/matching/sync-donor-index"
	ums "lifelink-workers/internal/workers/matching/update-matching-settings"
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
			if delay < 30*time.Second {
				delay *= 2
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type registration struct {
	taskType string
	handle   camunda.JobHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New("info", "console")
		bootstrap.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("candidateSource", cfg.Matching.CandidateSource),
	)

	var obsOpts []observability.Option
	if cfg.Observability.JaegerEndpoint != "" {
		obsOpts = append(obsOpts, observability.WithJaeger(cfg.Observability.JaegerEndpoint))
	}
	obs := observability.New(cfg.Observability.ServiceName, obsOpts...)

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ClientConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
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
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var es *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis ---
	var rc *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rc, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rc.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	store := donorstore.New(pg.DB, rc.Client, log, donorstore.Options{
		RequestTTL:  config.Seconds(cfg.Matching.RequestCacheTTL),
		SettingsTTL: config.Seconds(cfg.Matching.SettingsCacheTTL),
	})
	index := donorindex.New(es.Client, donorindex.Options{
		Name:        cfg.Database.Elasticsearch.DonorIndex,
		BulkWorkers: cfg.Database.Elasticsearch.BulkWorkers,
	}, log)

	// --- Matching settings: config first, database overrides ---
	settings, err := matching.NewSettingsStore(cfg.Matching.ToSettings())
	if err != nil {
		zapLog.Fatal("invalid matching settings", zap.Error(err))
	}
	if loaded, err := store.LoadSettings(ctx, settings.Snapshot()); err != nil {
		zapLog.Warn("stored matching settings unavailable, using config values", zap.Error(err))
	} else if err := settings.Update(loaded); err != nil {
		zapLog.Warn("stored matching settings rejected, using config values", zap.Error(err))
	}
	current := settings.Snapshot()
	zapLog.Info("matching settings loaded",
		zap.Int("cooldownDays", current.CooldownDays),
		zap.Float64("emergencyRadiusKm", current.EmergencyRadiusKm),
		zap.Float64("weightsTotal", current.Weights.Sum()),
	)

	// --- SMS delivery ---
	var publisher nmd.Publisher
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Warn("SNS client unavailable, donor SMS will be skipped", zap.Error(err))
		} else {
			publisher = snsClient
		}
	}

	// --- Handlers ---
	clock := matching.SystemClock{}

	rankHandler := rd.NewHandler(rd.ConfigFrom(cfg), rd.Dependencies{
		Store:         store,
		Index:         index,
		Settings:      settings,
		Clock:         clock,
		Observability: obs,
		Logger:        log,
	})
	scoreHandler := cds.NewHandler(cds.ConfigFrom(cfg), store, settings, clock, obs, log)
	refreshHandler := rda.NewHandler(rda.ConfigFrom(cfg), store, settings, clock, obs, log)
	donationHandler := rdn.NewHandler(rdn.ConfigFrom(cfg), store, settings, clock, obs, log)
	settingsHandler := ums.NewHandler(ums.ConfigFrom(cfg), store, settings, clock, obs, log)
	notifyHandler := nmd.NewHandler(nmd.ConfigFrom(cfg), store, publisher, clock, obs, log)
	syncHandler := sdi.NewHandler(sdi.ConfigFrom(cfg), store, index, clock, obs, log)

	registrations := []registration{
		{rd.TaskType, rankHandler.Handle},
		{cds.TaskType, scoreHandler.Handle},
		{rda.TaskType, refreshHandler.Handle},
		{rdn.TaskType, donationHandler.Handle},
		{ums.TaskType, settingsHandler.Handle},
		{nmd.TaskType, notifyHandler.Handle},
		{sdi.TaskType, syncHandler.Handle},
	}

	var workers []*camunda.CamundaWorker
	for _, reg := range registrations {
		if !config.IsWorkerEnabled(cfg, reg.taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", reg.taskType))
			continue
		}
		w := camunda.NewWorker(zeebe.GetClient(), reg.taskType, config.GetWorkerConfig(cfg, reg.taskType), reg.handle, obs, zapLog)
		w.Start()
		workers = append(workers, w)
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Scheduler ---
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(config.GetDuration(cfg.Scheduler.JobTimeout), log)
		if err := sched.Add("availability-refresh", cfg.Scheduler.AvailabilityRefreshCron, func(ctx context.Context) error {
			_, err := refreshHandler.Execute(ctx, &rda.Input{})
			return err
		}); err != nil {
			zapLog.Fatal("failed to schedule availability refresh", zap.Error(err))
		}
		if err := sched.Add("donor-index-sync", cfg.Scheduler.IndexSyncCron, func(ctx context.Context) error {
			_, err := syncHandler.Execute(ctx, &sdi.Input{})
			return err
		}); err != nil {
			zapLog.Fatal("failed to schedule donor index sync", zap.Error(err))
		}
		sched.Start()
	}

	// --- Health & Metrics Server ---
	deps := map[string]database.Pinger{
		"zeebe":         zeebe,
		"postgres":      pg,
		"redis":         rc,
		"elasticsearch": es,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"workers": len(workers),
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		failures := database.CheckAll(r.Context(), 3*time.Second, deps)
		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "not ready",
				"failures": failures,
				"time":     time.Now().Format(time.RFC3339),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := rc.Close(); err != nil {
		zapLog.Error("Error closing Redis client", zap.Error(err))
	}
	if err := pg.Close(); err != nil {
		zapLog.Error("Error closing PostgreSQL pool", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
