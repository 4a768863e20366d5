// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"lifelink-workers/internal/common/config"
	"lifelink-workers/internal/common/metrics"
)

// JobHandler is the callback every task handler exposes as Handle.
type JobHandler func(client worker.JobClient, job entities.Job)

// Tracer starts a span and returns the function that ends it.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Every activation is counted in
// worker_jobs_active, timed in worker_job_duration_seconds and wrapped in a
// span. A panicking handler fails the job instead of killing the process.
func NewWorker(
	client zbc.Client,
	taskType string,
	cfg config.WorkerConfig,
	handler JobHandler,
	tracer Tracer,
	logger *zap.Logger,
) *CamundaWorker {
	logger = logger.With(zap.String("taskType", taskType))

	builder := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, tracer, logger)).
		MaxJobsActive(cfg.MaxJobsActive)
	if cfg.Timeout > 0 {
		builder = builder.Timeout(config.GetDuration(cfg.Timeout))
	}

	return &CamundaWorker{
		worker:   builder.Open(),
		logger:   logger,
		taskType: taskType,
	}
}

// Instrument wraps handler with metrics, tracing and panic recovery.
func Instrument(taskType string, handler JobHandler, tracer Tracer, logger *zap.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()

		var end func(error)
		if tracer != nil {
			_, end = tracer.StartSpan(context.Background(), taskType,
				attribute.Int64("job.key", job.Key),
				attribute.Int64("process.instance.key", job.ProcessInstanceKey),
			)
		}

		var panicErr error
		defer func() {
			if r := recover(); r != nil {
				panicErr = fmt.Errorf("handler panic: %v", r)
				logger.Error("handler panicked", zap.Int64("jobKey", job.Key), zap.Any("panic", r))
				metrics.WorkerJobsFailed.WithLabelValues(taskType, "PANIC").Inc()
				failAfterPanic(client, job, panicErr, logger)
			}
			if end != nil {
				end(panicErr)
			}
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()

		handler(client, job)
	}
}

func failAfterPanic(client worker.JobClient, job entities.Job, cause error, logger *zap.Logger) {
	retries := job.Retries - 1
	if retries < 0 {
		retries = 0
	}
	_, err := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(cause.Error()).
		Send(context.Background())
	if err != nil {
		logger.Error("failed to fail job after panic", zap.Int64("jobKey", job.Key), zap.Error(err))
	}
}

func (w *CamundaWorker) TaskType() string { return w.taskType }

func (w *CamundaWorker) Start() {
	w.logger.Info("worker started")
}

// Stop closes the job worker and waits for in-flight handlers.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker")
	w.worker.Close()
	w.worker.AwaitClose()
}
