package telemetry

import "codeberg.org/mutker/imuproducer/internal/errors"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/imuproducer/telemetry.db"
)

type Config struct {
	DBPath  string
	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		DBPath: defaultDBPath,
	}
}

func (c Config) Validate() error {
	if c.Enabled && c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}
