package config

import "time"

// Provider defines the interface for accessing configuration values
// All configuration values are immutable after initial loading
type Provider interface {
	// GetNetwork returns the transport network of the message bus ("unix" or "tcp")
	GetNetwork() string

	// GetSocket returns the message bus address
	GetSocket() string

	// GetFrequency returns the target sampling frequency in Hz
	GetFrequency() float64

	// GetLogEvery returns how many accepted samples pass between diagnostics
	GetLogEvery() int

	// GetIdleTick returns the pause between two poll rounds
	GetIdleTick() time.Duration

	// GetConnectPoll returns the pause between two connection status checks
	GetConnectPoll() time.Duration

	// GetDriver returns the name of the sensor driver
	GetDriver() string

	// GetDevices returns the device ids in attach order
	GetDevices() []string

	// GetSimRate returns the native output rate of simulated sensors in Hz
	GetSimRate() float64

	// GetSimConnectDelay returns how long a simulated sensor takes to connect
	GetSimConnectDelay() time.Duration

	// GetLogLevel returns the configured logging level
	GetLogLevel() string

	// GetLogFile returns the log file path, empty for console only
	GetLogFile() string

	// GetPIDFile returns the PID file path, empty to skip it
	GetPIDFile() string

	// IsMetricsEnabled returns whether metrics collection is enabled
	IsMetricsEnabled() bool

	// GetMetricsDBPath returns the path to the metrics database
	GetMetricsDBPath() string

	// GetMetricsBatchSize returns how many samples are buffered per write
	GetMetricsBatchSize() int

	// GetMetricsBatchTimeout returns the longest a sample waits in the buffer
	GetMetricsBatchTimeout() time.Duration

	// IsTelemetryEnabled returns whether the run ledger is enabled
	IsTelemetryEnabled() bool

	// GetTelemetryDBPath returns the path to the run ledger database
	GetTelemetryDBPath() string
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "IMUPRODUCER"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// ValidationError represents a configuration validation error
type ValidationError interface {
	error
	// Field returns the name of the invalid field
	Field() string
	// Value returns the invalid value
	Value() interface{}
	// Reason returns why the value is invalid
	Reason() string
}
