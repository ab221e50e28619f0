package errors

// Error codes returned by the REST API. Messages are English; clients
// localize by code.

// Alert error codes.
const (
	CodeAlertNotFound   = "ALERT_NOT_FOUND"
	CodeAlertEmitFail   = "ALERT_EMIT_FAILED"
	CodeAlertQueryFail  = "ALERT_QUERY_FAILED"
	CodeAlertUpdateFail = "ALERT_UPDATE_FAILED"
	CodeAlertIDsEmpty   = "ALERT_IDS_REQUIRED"
)

// Preference error codes.
const (
	CodePreferenceLoadFail = "PREFERENCE_LOAD_FAILED"
	CodePreferenceSaveFail = "PREFERENCE_SAVE_FAILED"
	CodeUnknownModule      = "UNKNOWN_MODULE"
)

// Scanner error codes.
const (
	CodeScanEnqueueFail = "SCAN_ENQUEUE_FAILED"
)

// Auth and validation error codes.
const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL_ERROR"
)

// Contract error codes, raised by the OpenAPI validator.
const (
	CodeContractRoute    = "OPENAPI_ROUTE_INVALID"
	CodeContractRequest  = "OPENAPI_REQUEST_INVALID"
	CodeContractResponse = "OPENAPI_RESPONSE_INVALID"
)

// ErrAlertNotFoundf creates an alert not found error.
func ErrAlertNotFoundf(alertID int64) *AppError {
	return NotFound(CodeAlertNotFound, "alert not found").
		WithParams(map[string]any{"alert_id": alertID})
}

// ErrUnknownModulef creates a bad request error for an unrecognized channel.
func ErrUnknownModulef(module string) *AppError {
	return BadRequest(CodeUnknownModule, "unknown notification channel: "+module).
		WithParams(map[string]any{"module": module})
}

// ErrInvalidRequestf creates a bad request error with a reason.
func ErrInvalidRequestf(reason string) *AppError {
	return BadRequest(CodeInvalidRequest, reason)
}
