// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeInvalidBloodGroup     ErrorCode = "INVALID_BLOOD_GROUP"
	ErrCodeInvalidCoordinates    ErrorCode = "INVALID_COORDINATES"
	ErrCodeInvalidSettings       ErrorCode = "INVALID_SETTINGS"

	ErrCodeRequestNotFound ErrorCode = "REQUEST_NOT_FOUND"
	ErrCodeDonorNotFound   ErrorCode = "DONOR_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseUpdateFailed     ErrorCode = "DATABASE_UPDATE_FAILED"
	ErrCodeAvailabilityRefresh      ErrorCode = "AVAILABILITY_REFRESH_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeIndexSyncFailed               ErrorCode = "INDEX_SYNC_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeBrokerUnavailable ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerTimeout     ErrorCode = "BROKER_TIMEOUT"
	ErrCodeBrokerRejected    ErrorCode = "BROKER_REJECTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationFailedError is raised when job variables fail schema validation.
func NewInputValidationFailedError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Job input validation failed", details, false)
}

func NewInvalidBloodGroupError(value string) *StandardError {
	return newError(ErrCodeInvalidBloodGroup, "Unknown blood group", fmt.Sprintf("bloodGroup: %q", value), false)
}

func NewInvalidCoordinatesError(details string) *StandardError {
	return newError(ErrCodeInvalidCoordinates, "Coordinates out of range", details, false)
}

func NewInvalidSettingsError(err error) *StandardError {
	return newError(ErrCodeInvalidSettings, "Matching settings rejected", err.Error(), false)
}

func NewRequestNotFoundError(requestID int64) *StandardError {
	return newError(ErrCodeRequestNotFound, "Blood request not found", fmt.Sprintf("requestId: %d", requestID), false).
		WithMetadata("requestId", requestID)
}

func NewDonorNotFoundError(donorID int64) *StandardError {
	return newError(ErrCodeDonorNotFound, "Donor not found", fmt.Sprintf("donorId: %d", donorID), false).
		WithMetadata("donorId", donorID)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

func NewDatabaseUpdateFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseUpdateFailed, "Database update failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// NewAvailabilityRefreshFailedError reports a cooldown sweep that did not commit.
func NewAvailabilityRefreshFailedError(err error) *StandardError {
	return newError(ErrCodeAvailabilityRefresh, "Donor availability refresh failed", err.Error(), true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewSearchTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("indexName: %s", indexName), false)
}

// NewIndexSyncFailedError reports a bulk indexing run that left failed documents.
func NewIndexSyncFailedError(indexName string, failed int64, err error) *StandardError {
	details := fmt.Sprintf("indexName: %s, failed: %d", indexName, failed)
	if err != nil {
		details += ", error: " + err.Error()
	}
	return newError(ErrCodeIndexSyncFailed, "Donor index sync failed", details, true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

// NewBrokerUnavailableError covers Zeebe gateway connection failures.
func NewBrokerUnavailableError(err error) *StandardError {
	return newError(ErrCodeBrokerUnavailable, "Zeebe gateway unavailable", err.Error(), true)
}

func NewBrokerTimeoutError(err error) *StandardError {
	return newError(ErrCodeBrokerTimeout, "Zeebe command timeout", err.Error(), true)
}

// NewBrokerRejectedError covers commands the broker refused, such as an
// unknown job key or a permission failure.
func NewBrokerRejectedError(err error) *StandardError {
	return newError(ErrCodeBrokerRejected, "Zeebe command rejected", err.Error(), false)
}

// NewInternalError wraps an error nothing else classified.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the codes caught by
// boundary events in the donor-matching process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputValidationFailed:         "INPUT_VALIDATION_FAILED",
	ErrCodeInvalidBloodGroup:             "INVALID_BLOOD_GROUP",
	ErrCodeInvalidCoordinates:            "INVALID_COORDINATES",
	ErrCodeInvalidSettings:               "INVALID_SETTINGS",
	ErrCodeRequestNotFound:               "REQUEST_NOT_FOUND",
	ErrCodeDonorNotFound:                 "DONOR_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeDatabaseUpdateFailed:          "DATABASE_UPDATE_FAILED",
	ErrCodeAvailabilityRefresh:           "AVAILABILITY_REFRESH_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:                 "INDEX_NOT_FOUND",
	ErrCodeIndexSyncFailed:               "INDEX_SYNC_FAILED",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseUpdateFailed,
		ErrCodeAvailabilityRefresh,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeIndexSyncFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeBrokerUnavailable:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeBrokerTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOT_FOUND") && !strings.Contains(codeStr, "INDEX"):
		return "LOOKUP"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "AVAILABILITY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "BROKER"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
