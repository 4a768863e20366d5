// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler turns worker failures into Zeebe fail or throw-error commands.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Decision is what HandleJobError did with a failed job.
type Decision struct {
	BPMN        *BPMNError
	Retry       bool
	RetriesLeft int32
}

// Decide classifies err for job without talking to the broker.
func (h *ErrorHandler) Decide(job entities.Job, err error) Decision {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	d := Decision{BPMN: bpmnErr}
	if bpmnErr.Retries > 0 && job.Retries > 1 {
		left := job.Retries - 1
		if left > int32(bpmnErr.Retries) {
			left = int32(bpmnErr.Retries)
		}
		d.Retry = true
		d.RetriesLeft = left
	}
	return d
}

// HandleJobError reports err to the broker: retryable errors fail the job
// with a decremented retry count, everything else is thrown as a BPMN error.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) Decision {
	d := h.Decide(job, err)
	h.logError(job, Normalize(err), d)

	if d.Retry {
		h.failJobWithRetries(ctx, client, job, d.BPMN, d.RetriesLeft)
	} else {
		h.throwBPMNError(ctx, client, job, d.BPMN)
	}
	return d
}

// Normalize ensures we always have a StandardError. Wrapped StandardErrors
// are unwrapped, anything else becomes INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int32) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if cmdWithVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			h.send(ctx, job, func(ctx context.Context) error { _, err := cmdWithVars.Send(ctx); return err })
			return
		}
	}

	h.send(ctx, job, func(ctx context.Context) error { _, err := cmd.Send(ctx); return err })
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if cmdWithVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			h.send(ctx, job, func(ctx context.Context) error { _, err := cmdWithVars.Send(ctx); return err })
			return
		}
	}

	h.send(ctx, job, func(ctx context.Context) error { _, err := cmd.Send(ctx); return err })
}

func (h *ErrorHandler) send(ctx context.Context, job entities.Job, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, d Decision) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    d.BPMN.Code,
		"message":          d.BPMN.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retry":            d.Retry,
		"retriesLeft":      d.RetriesLeft,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
