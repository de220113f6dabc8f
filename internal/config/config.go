package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/imuproducer/internal/errors"
	"codeberg.org/mutker/imuproducer/internal/sensor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName          = "imuproducer"
	DefaultEnvPrefix = "IMUPRODUCER"
	DefaultLogLevel  = "info"

	DefaultNetwork     = "unix"
	DefaultSocket      = "/tmp/sensor_producer"
	DefaultFrequency   = 133.0
	DefaultLogEvery    = 100
	DefaultIdleTick    = time.Millisecond
	DefaultConnectPoll = time.Second
	DefaultDriver      = sensor.DriverSimulated
	DefaultSimRate     = 400.0

	DefaultMetricsDB           = "/var/lib/imuproducer/metrics.db"
	DefaultMetricsBatchSize    = 10
	DefaultMetricsBatchTimeout = 5 * time.Second
	DefaultTelemetryDB         = "/var/lib/imuproducer/telemetry.db"
)

// Config is the loaded configuration. It implements Provider.
type Config struct {
	Network             string        `mapstructure:"network"`
	Socket              string        `mapstructure:"socket"`
	Frequency           float64       `mapstructure:"frequency"`
	LogEvery            int           `mapstructure:"log_every"`
	IdleTick            time.Duration `mapstructure:"idle_tick"`
	ConnectPoll         time.Duration `mapstructure:"connect_poll"`
	Driver              string        `mapstructure:"driver"`
	Devices             []string      `mapstructure:"devices"`
	SimRate             float64       `mapstructure:"sim_rate"`
	SimConnectDelay     time.Duration `mapstructure:"sim_connect_delay"`
	LogLevel            string        `mapstructure:"log_level"`
	LogFile             string        `mapstructure:"log_file"`
	Metrics             bool          `mapstructure:"metrics"`
	MetricsDB           string        `mapstructure:"metrics_db"`
	MetricsBatchSize    int           `mapstructure:"metrics_batch_size"`
	MetricsBatchTimeout time.Duration `mapstructure:"metrics_batch_timeout"`
	Telemetry           bool          `mapstructure:"telemetry"`
	TelemetryDB         string        `mapstructure:"telemetry_db"`
	PIDFile             string        `mapstructure:"pid_file"`
}

// Load reads configuration from defaults, the config file, environment
// variables and args, in increasing order of precedence. Positional args
// are device ids and replace any configured device list.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	configPath := o.configPath
	if configPath == "" {
		configPath, _ = fs.GetString("config")
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join("/etc", AppName))
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if devices := fs.Args(); len(devices) > 0 {
		cfg.Devices = devices
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] DEVICE_ID [DEVICE_ID...]\n\n", AppName)
		fmt.Fprintf(os.Stderr, "Example: %s 00:06:66:AA:BB:CC\n\n", AppName)
		fs.PrintDefaults()
	}

	fs.String("config", "", "Path to TOML config file")
	fs.String("network", DefaultNetwork, "Message bus network (unix, tcp)")
	fs.String("socket", DefaultSocket, "Message bus address")
	fs.Float64("frequency", DefaultFrequency, "Target sampling frequency per sensor in Hz")
	fs.Int("log-every", DefaultLogEvery, "Accepted samples between diagnostic lines")
	fs.Duration("idle-tick", DefaultIdleTick, "Pause between poll rounds")
	fs.Duration("connect-poll", DefaultConnectPoll, "Pause between sensor connection checks")
	fs.String("driver", DefaultDriver, "Sensor driver")
	fs.Float64("sim-rate", DefaultSimRate, "Simulated sensor output rate in Hz")
	fs.Duration("sim-connect-delay", 0, "Time a simulated sensor takes to connect")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("log-file", "", "Also write logs to this file, rotated by size")
	fs.Bool("metrics", false, "Store diagnostic snapshots in sqlite")
	fs.String("metrics-db", DefaultMetricsDB, "Metrics database path")
	fs.Bool("telemetry", false, "Record producer runs in sqlite")
	fs.String("telemetry-db", DefaultTelemetryDB, "Telemetry database path")
	fs.String("pid-file", defaultPIDFile(), "PID file path")

	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", DefaultNetwork)
	v.SetDefault("socket", DefaultSocket)
	v.SetDefault("frequency", DefaultFrequency)
	v.SetDefault("log_every", DefaultLogEvery)
	v.SetDefault("idle_tick", DefaultIdleTick)
	v.SetDefault("connect_poll", DefaultConnectPoll)
	v.SetDefault("driver", DefaultDriver)
	v.SetDefault("devices", []string{})
	v.SetDefault("sim_rate", DefaultSimRate)
	v.SetDefault("sim_connect_delay", time.Duration(0))
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", DefaultMetricsDB)
	v.SetDefault("metrics_batch_size", DefaultMetricsBatchSize)
	v.SetDefault("metrics_batch_timeout", DefaultMetricsBatchTimeout)
	v.SetDefault("telemetry", false)
	v.SetDefault("telemetry_db", DefaultTelemetryDB)
	v.SetDefault("pid_file", defaultPIDFile())
}

// bindFlags maps dashed flag names onto the underscored config keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	return err
}

func defaultPIDFile() string {
	return filepath.Join(os.TempDir(), AppName+".pid")
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch c.Network {
	case "unix", "tcp", "tcp4", "tcp6":
	default:
		return errFactory.Wrap(errors.ErrInvalidConfig,
			newFieldError("network", c.Network, "must be a stream network: unix, tcp, tcp4 or tcp6"))
	}

	if c.Socket == "" {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("socket", c.Socket, "must not be empty"))
	}

	if c.Frequency <= 0 {
		return errFactory.Wrap(errors.ErrInvalidFrequency, newFieldError("frequency", c.Frequency, "must be positive"))
	}

	if c.LogEvery <= 0 {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("log_every", c.LogEvery, "must be positive"))
	}

	if c.IdleTick < 0 {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("idle_tick", c.IdleTick, "must not be negative"))
	}

	if c.ConnectPoll <= 0 {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("connect_poll", c.ConnectPoll, "must be positive"))
	}

	if c.Driver == sensor.DriverSimulated && c.SimRate <= 0 {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("sim_rate", c.SimRate, "must be positive"))
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.Wrap(errors.ErrInvalidLogLevel, newFieldError("log_level", c.LogLevel, "must be debug, info, warning or error"))
	}

	if c.Metrics && c.MetricsDB == "" {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("metrics_db", c.MetricsDB, "required when metrics is enabled"))
	}

	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.Wrap(errors.ErrInvalidConfig, newFieldError("telemetry_db", c.TelemetryDB, "required when telemetry is enabled"))
	}

	if len(c.Devices) == 0 {
		return errFactory.New(errors.ErrMissingDevice)
	}

	for _, d := range c.Devices {
		if _, err := sensor.ParseDeviceID(d); err != nil {
			return err
		}
	}

	return nil
}

var _ Provider = (*Config)(nil)

func (c *Config) GetNetwork() string { return c.Network }
func (c *Config) GetSocket() string { return c.Socket }
func (c *Config) GetFrequency() float64 { return c.Frequency }
func (c *Config) GetLogEvery() int { return c.LogEvery }
func (c *Config) GetIdleTick() time.Duration { return c.IdleTick }
func (c *Config) GetConnectPoll() time.Duration { return c.ConnectPoll }
func (c *Config) GetDriver() string { return c.Driver }
func (c *Config) GetDevices() []string { return c.Devices }
func (c *Config) GetSimRate() float64 { return c.SimRate }
func (c *Config) GetSimConnectDelay() time.Duration { return c.SimConnectDelay }
func (c *Config) GetLogLevel() string { return c.LogLevel }
func (c *Config) GetLogFile() string { return c.LogFile }
func (c *Config) GetPIDFile() string { return c.PIDFile }
func (c *Config) IsMetricsEnabled() bool { return c.Metrics }
func (c *Config) GetMetricsDBPath() string { return c.MetricsDB }
func (c *Config) GetMetricsBatchSize() int { return c.MetricsBatchSize }
func (c *Config) GetMetricsBatchTimeout() time.Duration { return c.MetricsBatchTimeout }
func (c *Config) IsTelemetryEnabled() bool { return c.Telemetry }
func (c *Config) GetTelemetryDBPath() string { return c.TelemetryDB }

type fieldError struct {
	field  string
	value  interface{}
	reason string
}

func newFieldError(field string, value interface{}, reason string) ValidationError {
	return &fieldError{field: field, value: value, reason: reason}
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.field, e.value, e.reason)
}

func (e *fieldError) Field() string      { return e.field }
func (e *fieldError) Value() interface{} { return e.value }
func (e *fieldError) Reason() string     { return e.reason }
