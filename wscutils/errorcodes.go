package wscutils

// Error codes for machine-to-machine communication. Every user-visible
// failure maps to one of these; handlers pick the HTTP status separately.
const (
	ErrcodeUnknown            = "unknown"
	ErrcodeInvalidJSON        = "invalid_json"
	ErrcodeValidation         = "validation_error"
	ErrcodeInvalidRequest     = "invalid_request"
	ErrcodeConfig             = "config_error"
	ErrcodeAlreadyRunning     = "already_running"
	ErrcodeNotRunning         = "not_running"
	ErrcodeNotFound           = "not_found"
	ErrcodeDatabaseError      = "database_error"
	ErrcodeQueueError         = "queue_error"
	ErrcodeServiceUnavailable = "service_unavailable"
	ErrcodeInternal           = "internal_error"
)

func init() {
	errorMessages[ErrcodeUnknown] = "unknown error"
	errorMessages[ErrcodeInvalidJSON] = "request body is not valid JSON"
	errorMessages[ErrcodeValidation] = "request failed validation"
	errorMessages[ErrcodeInvalidRequest] = "invalid request"
	errorMessages[ErrcodeConfig] = "invalid configuration"
	errorMessages[ErrcodeAlreadyRunning] = "a job is already running for this worker"
	errorMessages[ErrcodeNotRunning] = "no job is running for this worker"
	errorMessages[ErrcodeNotFound] = "not found"
	errorMessages[ErrcodeDatabaseError] = "database error"
	errorMessages[ErrcodeQueueError] = "queue error"
	errorMessages[ErrcodeServiceUnavailable] = "dependent service is unavailable"
	errorMessages[ErrcodeInternal] = "internal error"
}
