// Package jobutil holds the parse, complete and error-mapping steps shared
// by the donor matching job handlers.
package jobutil

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/donorindex"
	"lifelink-workers/internal/donorstore"
)

// ParseInput validates variables against schema and decodes them into out.
func ParseInput(schema *validation.Schema, variables string, out interface{}) error {
	res, err := schema.ValidateJSON(variables)
	if err != nil {
		return errors.NewInputValidationFailedError(err.Error())
	}
	if !res.Valid {
		return errors.NewInputValidationFailedError(res.Error())
	}
	if variables == "" {
		variables = "{}"
	}
	if err := json.Unmarshal([]byte(variables), out); err != nil {
		return errors.NewInputValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}
	return nil
}

// Reporter sends the final command for a job and records the outcome.
type Reporter struct {
	TaskType string
	Errors   *errors.ErrorHandler
	Obs      *observability.Observability
	Logger   logger.Logger
}

func NewReporter(taskType string, obs *observability.Observability, log logger.Logger) *Reporter {
	return &Reporter{
		TaskType: taskType,
		Errors:   errors.NewErrorHandler(log),
		Obs:      obs,
		Logger:   log,
	}
}

// Complete sends output as the job's variables.
func (r *Reporter) Complete(client worker.JobClient, job entities.Job, output interface{}, started time.Time) {
	ctx := context.Background()

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		r.Logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		r.Fail(client, job, errors.NewInternalError(err), started)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.Logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.TaskType).Inc()
	r.Obs.RecordJobProcessed(ctx, r.TaskType, "completed")
	r.Obs.RecordJobDuration(ctx, r.TaskType, time.Since(started), "completed")
	r.Logger.Info("job completed", map[string]interface{}{
		"jobKey":   job.Key,
		"duration": time.Since(started).String(),
	})
}

// Fail hands err to the error handler, which either retries the job or
// throws a BPMN error.
func (r *Reporter) Fail(client worker.JobClient, job entities.Job, err error, started time.Time) {
	ctx := context.Background()
	d := r.Errors.HandleJobError(ctx, client, job, err)

	metrics.WorkerJobsFailed.WithLabelValues(r.TaskType, d.BPMN.Code).Inc()
	r.Obs.RecordJobProcessed(ctx, r.TaskType, "failed")
	r.Obs.RecordJobDuration(ctx, r.TaskType, time.Since(started), "failed")
}

// StoreError maps a donorstore failure onto a job error code.
func StoreError(ctx context.Context, queryType string, err error) error {
	var stdErr *errors.StandardError
	switch {
	case stderrors.As(err, &stdErr):
		return stdErr
	case stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return errors.NewQueryTimeoutError(queryType)
	}
	return errors.NewQueryExecutionFailedError(queryType, err)
}

// SearchError maps a donorindex failure onto a job error code.
func SearchError(ctx context.Context, indexName string, err error) error {
	switch {
	case stderrors.Is(err, donorindex.ErrIndexNotFound):
		return errors.NewIndexNotFoundError(indexName)
	case stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return errors.NewSearchTimeoutError("donor_candidates")
	}
	return errors.NewSearchQueryFailedError("donor_candidates", err)
}

// NotFound reports whether err is one of the store's lookup misses.
func NotFound(err error) bool {
	return stderrors.Is(err, donorstore.ErrDonorNotFound) || stderrors.Is(err, donorstore.ErrRequestNotFound)
}
