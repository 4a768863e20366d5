package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobWithRetries(retries int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "rank-donors", Retries: retries}}
}

// ==========================
// Conversion
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewRequestNotFoundError(17)
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "REQUEST_NOT_FOUND", bpmnErr.Code)
	assert.False(t, bpmnErr.Retryable)
	assert.Equal(t, 0, bpmnErr.Retries)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "REQUEST_NOT_FOUND", vars["errorCode"])
	assert.Equal(t, "REQUEST_NOT_FOUND", vars["originalErrorCode"])
	assert.EqualValues(t, 17, vars["requestId"])
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeQueryExecutionFailed, 3},
		{ErrCodeNotificationSendFailed, 3},
		{ErrCodeIndexSyncFailed, 3},
		{ErrCodeAvailabilityRefresh, 3},
		{ErrCodeQueryTimeout, 2},
		{ErrCodeSearchTimeout, 2},
		{ErrCodeInvalidBloodGroup, 0},
		{ErrCodeRequestNotFound, 0},
		{ErrCodeInternal, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeDonorNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeAvailabilityRefresh))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexSyncFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidCoordinates))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

// ==========================
// Handler decisions
// ==========================

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("rank request 3: %w", NewQueryTimeoutError("candidates"))
	assert.Equal(t, ErrCodeQueryTimeout, Normalize(wrapped).Code)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestErrorHandler_Decide(t *testing.T) {
	h := NewErrorHandler(nil)

	tests := []struct {
		name        string
		err         error
		jobRetries  int32
		wantRetry   bool
		wantLeft    int32
		wantBPMNErr string
	}{
		{"retryable with budget", NewQueryExecutionFailedError("candidates", stderrors.New("conn reset")), 5, true, 3, "QUERY_EXECUTION_FAILED"},
		{"retryable capped by job", NewQueryTimeoutError("candidates"), 2, true, 1, "QUERY_TIMEOUT"},
		{"retryable but last attempt", NewSearchQueryFailedError("candidates", stderrors.New("503")), 1, false, 0, "SEARCH_QUERY_FAILED"},
		{"business error", NewInvalidBloodGroupError("Z+"), 3, false, 0, "INVALID_BLOOD_GROUP"},
		{"unknown error", stderrors.New("boom"), 3, false, 0, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := h.Decide(jobWithRetries(tt.jobRetries), tt.err)
			require.NotNil(t, d.BPMN)
			assert.Equal(t, tt.wantRetry, d.Retry)
			assert.Equal(t, tt.wantLeft, d.RetriesLeft)
			assert.Equal(t, tt.wantBPMNErr, d.BPMN.Code)
		})
	}
}
