package errors

// Common error codes
const (
	// System errors
	ErrInternal ErrorCode = "internal_error"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrBindFlags        ErrorCode = "bind_flags_failed"
	ErrParseFlags       ErrorCode = "parse_flags_failed"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrInvalidFrequency ErrorCode = "invalid_frequency"
	ErrMissingDevice    ErrorCode = "missing_device_id"
	ErrInvalidDevice    ErrorCode = "invalid_device_id"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrAlreadyRunning ErrorCode = "already_running"

	// Transport errors
	ErrConnect        ErrorCode = "connect_failed"
	ErrListen         ErrorCode = "listen_failed"
	ErrTransportWrite ErrorCode = "transport_write_failed"
	ErrTransportRead  ErrorCode = "transport_read_failed"
	ErrFrameTooLarge  ErrorCode = "frame_too_large"

	// Sensor errors
	ErrUnknownDriver ErrorCode = "unknown_sensor_driver"
	ErrSensorAttach  ErrorCode = "sensor_attach_failed"
	ErrSensorDetach  ErrorCode = "sensor_detach_failed"

	// Record errors
	ErrDecodeRecord ErrorCode = "decode_record_failed"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"

	// Metrics errors
	ErrInitMetrics    ErrorCode = "init_metrics_failed"
	ErrCollectMetrics ErrorCode = "collect_metrics_failed"
	ErrCloseMetrics   ErrorCode = "close_metrics_failed"

	// Telemetry errors
	ErrInitTelemetry ErrorCode = "init_telemetry_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidConfig:    "Invalid configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrParseFlags:       "Failed to parse flags",
	ErrReadConfig:       "Failed to read configuration",
	ErrInvalidFrequency: "Invalid sampling frequency",
	ErrMissingDevice:    "Need at least one device id, e.g. 00:06:66:AA:BB:CC",
	ErrInvalidDevice:    "Malformed device id",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrConnect:          "Failed to connect to message bus",
	ErrListen:           "Failed to listen on socket",
	ErrTransportWrite:   "Failed to write frame",
	ErrTransportRead:    "Failed to read frame",
	ErrFrameTooLarge:    "Frame payload exceeds length header",
	ErrUnknownDriver:    "Unknown sensor driver",
	ErrSensorAttach:     "Failed to attach sensor",
	ErrSensorDetach:     "Failed to detach sensor",
	ErrDecodeRecord:     "Failed to decode record",
	ErrTimeout:          "Operation timed out",
	ErrInitMetrics:      "Failed to initialize metrics",
	ErrCollectMetrics:   "Failed to collect metrics data",
	ErrCloseMetrics:     "Failed to close metrics connection",
	ErrInitTelemetry:    "Failed to initialize telemetry",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
